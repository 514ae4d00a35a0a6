package store

// QueryOptions specifies how to query archived items.
type QueryOptions struct {
	Limit              int
	Offset             int
	Source             string // restrict to one source type ("reddit", "x")
	HighConfidenceOnly bool   // only items whose date confidence is "high"
	MinRecency         int    // minimum recency score (0-100)
}

// BuildQueryOptions constructs QueryOptions from CLI flags.
func BuildQueryOptions(limit, offset int, source string, highConfidence bool, minRecency int) QueryOptions {
	if minRecency < 0 {
		minRecency = 0
	}
	if minRecency > 100 {
		minRecency = 100
	}

	return QueryOptions{
		Limit:              limit,
		Offset:             offset,
		Source:             source,
		HighConfidenceOnly: highConfidence,
		MinRecency:         minRecency,
	}
}
