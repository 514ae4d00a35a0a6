package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildQueryOptions(t *testing.T) {
	tests := []struct {
		name           string
		limit          int
		offset         int
		source         string
		highConfidence bool
		minRecency     int
		checkOpts      func(t *testing.T, opts QueryOptions)
	}{
		{
			name:   "basic pagination",
			limit:  20,
			offset: 40,
			checkOpts: func(t *testing.T, opts QueryOptions) {
				assert.Equal(t, 20, opts.Limit)
				assert.Equal(t, 40, opts.Offset)
				assert.False(t, opts.HighConfidenceOnly)
				assert.Zero(t, opts.MinRecency)
			},
		},
		{
			name:   "source filter",
			source: "reddit",
			checkOpts: func(t *testing.T, opts QueryOptions) {
				assert.Equal(t, "reddit", opts.Source)
			},
		},
		{
			name:           "high confidence filter",
			highConfidence: true,
			checkOpts: func(t *testing.T, opts QueryOptions) {
				assert.True(t, opts.HighConfidenceOnly)
			},
		},
		{
			name:       "min recency passes through",
			minRecency: 75,
			checkOpts: func(t *testing.T, opts QueryOptions) {
				assert.Equal(t, 75, opts.MinRecency)
			},
		},
		{
			name:       "negative min recency clamps to zero",
			minRecency: -10,
			checkOpts: func(t *testing.T, opts QueryOptions) {
				assert.Zero(t, opts.MinRecency)
			},
		},
		{
			name:       "min recency above the scale clamps to 100",
			minRecency: 250,
			checkOpts: func(t *testing.T, opts QueryOptions) {
				assert.Equal(t, 100, opts.MinRecency)
			},
		},
		{
			name:           "combined filters",
			limit:          10,
			source:         "x",
			highConfidence: true,
			minRecency:     50,
			checkOpts: func(t *testing.T, opts QueryOptions) {
				assert.Equal(t, 10, opts.Limit)
				assert.Equal(t, "x", opts.Source)
				assert.True(t, opts.HighConfidenceOnly)
				assert.Equal(t, 50, opts.MinRecency)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := BuildQueryOptions(tt.limit, tt.offset, tt.source, tt.highConfidence, tt.minRecency)
			if tt.checkOpts != nil {
				tt.checkOpts(t, opts)
			}
		})
	}
}
