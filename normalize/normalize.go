// Package normalize maps raw platform records into normalized items and
// enforces the URL-safety and date-range gates on what enters the pipeline.
package normalize

import (
	"net/url"
	"strconv"

	"github.com/robertmeta/pulse/model"
	"github.com/robertmeta/pulse/timerange"
)

// DefaultRelevance is assumed when a raw record carries no relevance signal.
const DefaultRelevance = 0.5

// RedditHosts is the exact-match allow-list for Reddit permalinks.
var RedditHosts = []string{"reddit.com", "www.reddit.com", "old.reddit.com"}

// XHosts is the exact-match allow-list for X permalinks.
var XHosts = []string{"x.com", "www.x.com", "twitter.com", "www.twitter.com"}

// IsSafeURL reports whether raw is a well-formed http or https URL with a
// host. Everything else is rejected, which blocks file://, javascript:, and
// similar dangerous schemes.
func IsSafeURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// IsKnownSourceURL reports whether raw is a safe URL whose host exactly
// equals one of hosts. Exact equality, not substring matching, so
// "https://reddit.com@evil.com/" and "https://reddit.com.evil.com/" both
// fail.
func IsKnownSourceURL(raw string, hosts []string) bool {
	if !IsSafeURL(raw) {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	for _, h := range hosts {
		if u.Host == h {
			return true
		}
	}
	return false
}

// IsRedditURL reports whether raw points at reddit.com.
func IsRedditURL(raw string) bool {
	return IsKnownSourceURL(raw, RedditHosts)
}

// IsXURL reports whether raw points at x.com or twitter.com.
func IsXURL(raw string) bool {
	return IsKnownSourceURL(raw, XHosts)
}

// RedditItems normalizes raw Reddit records. Records whose primary URL fails
// the safety check are dropped outright; invalid nested comment URLs are
// blanked rather than dropping the comment. Each kept item gets a date
// confidence computed against the [from, to] window.
func RedditItems(raw []map[string]any, from, to string) []model.RedditItem {
	var normalized []model.RedditItem

	for _, rec := range raw {
		u := str(rec, "url")
		if !IsSafeURL(u) {
			continue
		}

		var engagement *model.Engagement
		if eng, ok := rec["engagement"].(map[string]any); ok {
			engagement = &model.Engagement{
				Score:       intPtr(eng, "score"),
				NumComments: intPtr(eng, "num_comments"),
				UpvoteRatio: floatPtr(eng, "upvote_ratio"),
			}
		}

		var comments []model.Comment
		if list, ok := rec["top_comments"].([]any); ok {
			for _, el := range list {
				c, ok := el.(map[string]any)
				if !ok {
					continue
				}
				commentURL := str(c, "url")
				if commentURL != "" && !IsSafeURL(commentURL) {
					commentURL = ""
				}
				comments = append(comments, model.Comment{
					Score:   intOr(c, "score", 0),
					Date:    dateStr(c),
					Author:  str(c, "author"),
					Excerpt: str(c, "excerpt"),
					URL:     commentURL,
				})
			}
		}

		date := dateStr(rec)
		normalized = append(normalized, model.RedditItem{
			ID:              str(rec, "id"),
			Title:           str(rec, "title"),
			URL:             u,
			Subreddit:       str(rec, "subreddit"),
			Date:            date,
			DateConfidence:  timerange.Confidence(deref(date), from, to),
			Engagement:      engagement,
			TopComments:     comments,
			CommentInsights: strList(rec, "comment_insights"),
			Relevance:       floatOr(rec, "relevance", DefaultRelevance),
			WhyRelevant:     str(rec, "why_relevant"),
		})
	}

	return normalized
}

// XItems normalizes raw X records with the same URL and date policy as
// RedditItems.
func XItems(raw []map[string]any, from, to string) []model.XItem {
	var normalized []model.XItem

	for _, rec := range raw {
		u := str(rec, "url")
		if !IsSafeURL(u) {
			continue
		}

		var engagement *model.Engagement
		if eng, ok := rec["engagement"].(map[string]any); ok {
			engagement = &model.Engagement{
				Likes:   intPtr(eng, "likes"),
				Reposts: intPtr(eng, "reposts"),
				Replies: intPtr(eng, "replies"),
				Quotes:  intPtr(eng, "quotes"),
			}
		}

		date := dateStr(rec)
		normalized = append(normalized, model.XItem{
			ID:             str(rec, "id"),
			Text:           str(rec, "text"),
			URL:            u,
			AuthorHandle:   str(rec, "author_handle"),
			Date:           date,
			DateConfidence: timerange.Confidence(deref(date), from, to),
			Engagement:     engagement,
			Relevance:      floatOr(rec, "relevance", DefaultRelevance),
			WhyRelevant:    str(rec, "why_relevant"),
		})
	}

	return normalized
}

// FilterByDateRange is the hard filter: items dated strictly before from or
// strictly after to are dropped no matter what upstream relevance judgments
// said. Items with no date are kept unless requireDate is set. Comparison
// happens on the date-only portion of each string, so mixed date and
// datetime representations behave. Applying the filter to its own output
// changes nothing.
func FilterByDateRange[T model.Item](items []T, from, to string, requireDate bool) []T {
	fromDay := timerange.DateOnly(from)
	toDay := timerange.DateOnly(to)

	var kept []T
	for _, item := range items {
		date := item.PostedAt()
		if date == nil || *date == "" {
			if !requireDate {
				kept = append(kept, item) // unknown date survives, scoring penalizes it
			}
			continue
		}

		day := timerange.DateOnly(*date)
		if day < fromDay {
			continue // too old
		}
		if day > toDay {
			continue // future date, likely a parsing error upstream
		}
		kept = append(kept, item)
	}

	return kept
}

// Raw records arrive as decoded JSON, so every field access below has to
// tolerate missing keys and off-type values.

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// dateStr pulls a date field that may be a string or an epoch number.
func dateStr(m map[string]any) *string {
	switch v := m["date"].(type) {
	case string:
		if v == "" {
			return nil
		}
		return &v
	case float64:
		s := strconv.FormatFloat(v, 'f', -1, 64)
		return &s
	default:
		return nil
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func strList(m map[string]any, key string) []string {
	list, ok := m[key].([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, el := range list {
		if s, ok := el.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func intPtr(m map[string]any, key string) *int {
	f, ok := m[key].(float64)
	if !ok {
		return nil
	}
	n := int(f)
	return &n
}

func intOr(m map[string]any, key string, fallback int) int {
	if f, ok := m[key].(float64); ok {
		return int(f)
	}
	return fallback
}

func floatPtr(m map[string]any, key string) *float64 {
	f, ok := m[key].(float64)
	if !ok {
		return nil
	}
	return &f
}

func floatOr(m map[string]any, key string, fallback float64) float64 {
	if f, ok := m[key].(float64); ok {
		return f
	}
	return fallback
}
