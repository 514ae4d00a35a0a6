package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robertmeta/pulse/model"
	"github.com/robertmeta/pulse/timerange"
)

func TestIsSafeURL(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		expect bool
	}{
		{"https", "https://example.com/x", true},
		{"http", "http://example.com/", true},
		{"javascript scheme", "javascript:alert(1)", false},
		{"file scheme", "file:///etc/passwd", false},
		{"data scheme", "data:text/html,<script></script>", false},
		{"scheme only", "https://", false},
		{"relative path", "/r/golang", false},
		{"empty", "", false},
		{"garbage", "not a url", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, IsSafeURL(tt.url))
		})
	}
}

func TestIsKnownSourceURL(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		hosts  []string
		expect bool
	}{
		{"exact host", "https://reddit.com/r/golang", RedditHosts, true},
		{"www host", "https://www.reddit.com/r/golang", RedditHosts, true},
		{"old host", "https://old.reddit.com/r/golang", RedditHosts, true},
		{"credential spoof", "https://reddit.com@evil.com/", RedditHosts, false},
		{"subdomain spoof", "https://reddit.com.evil.com/", RedditHosts, false},
		{"suffix spoof", "https://notreddit.com/", RedditHosts, false},
		{"port mismatch", "https://reddit.com:8443/", RedditHosts, false},
		{"unsafe scheme", "javascript:alert(1)", RedditHosts, false},
		{"x host", "https://x.com/user/status/1", XHosts, true},
		{"twitter host", "https://twitter.com/user/status/1", XHosts, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, IsKnownSourceURL(tt.url, tt.hosts))
		})
	}
}

func TestIsRedditURL_IsXURL(t *testing.T) {
	assert.True(t, IsRedditURL("https://www.reddit.com/r/golang/comments/abc"))
	assert.False(t, IsRedditURL("https://x.com/user"))
	assert.True(t, IsXURL("https://x.com/user/status/1"))
	assert.False(t, IsXURL("https://www.reddit.com/r/golang"))
}

func redditRaw() []map[string]any {
	return []map[string]any{
		{
			"id":        "t3_abc",
			"title":     "Go 1.26 released",
			"url":       "https://www.reddit.com/r/golang/comments/abc",
			"subreddit": "golang",
			"date":      "2026-01-15",
			"engagement": map[string]any{
				"score":        float64(420),
				"num_comments": float64(37),
				"upvote_ratio": 0.97,
			},
			"top_comments": []any{
				map[string]any{
					"score":   float64(12),
					"author":  "gopher",
					"excerpt": "finally",
					"url":     "https://www.reddit.com/r/golang/comments/abc/c1",
				},
				map[string]any{
					"score":   float64(3),
					"author":  "eve",
					"excerpt": "click here",
					"url":     "javascript:alert(1)",
				},
			},
			"comment_insights": []any{"release excitement"},
			"relevance":        0.8,
			"why_relevant":     "release announcement",
		},
		{
			"id":    "t3_bad",
			"title": "malicious",
			"url":   "file:///etc/passwd",
		},
	}
}

func TestRedditItems(t *testing.T) {
	items := RedditItems(redditRaw(), "2026-01-01", "2026-01-31")

	require.Len(t, items, 1, "item with unsafe primary URL must be dropped")
	item := items[0]

	assert.Equal(t, "t3_abc", item.ID)
	assert.Equal(t, "golang", item.Subreddit)
	require.NotNil(t, item.Date)
	assert.Equal(t, "2026-01-15", *item.Date)
	assert.Equal(t, timerange.ConfidenceHigh, item.DateConfidence)
	assert.Equal(t, 0.8, item.Relevance)
	assert.Equal(t, "release announcement", item.WhyRelevant)
	assert.Equal(t, []string{"release excitement"}, item.CommentInsights)

	require.NotNil(t, item.Engagement)
	require.NotNil(t, item.Engagement.Score)
	assert.Equal(t, 420, *item.Engagement.Score)
	require.NotNil(t, item.Engagement.UpvoteRatio)
	assert.Equal(t, 0.97, *item.Engagement.UpvoteRatio)

	require.Len(t, item.TopComments, 2, "comments with bad URLs are kept, not dropped")
	assert.Equal(t, "https://www.reddit.com/r/golang/comments/abc/c1", item.TopComments[0].URL)
	assert.Equal(t, "", item.TopComments[1].URL, "invalid nested URL must be blanked")
	assert.Equal(t, 3, item.TopComments[1].Score)
}

func TestRedditItems_Defaults(t *testing.T) {
	raw := []map[string]any{
		{
			"id":    "t3_min",
			"title": "minimal",
			"url":   "https://www.reddit.com/r/golang/comments/min",
		},
	}

	items := RedditItems(raw, "2026-01-01", "2026-01-31")
	require.Len(t, items, 1)

	item := items[0]
	assert.Nil(t, item.Date)
	assert.Equal(t, timerange.ConfidenceLow, item.DateConfidence, "missing date is low confidence")
	assert.Nil(t, item.Engagement)
	assert.Empty(t, item.TopComments)
	assert.Equal(t, DefaultRelevance, item.Relevance)
	assert.Equal(t, "", item.WhyRelevant)
}

func TestRedditItems_EpochDate(t *testing.T) {
	raw := []map[string]any{
		{
			"id":   "t3_ts",
			"url":  "https://www.reddit.com/r/golang/comments/ts",
			"date": float64(1768435200), // JSON numbers decode as float64
		},
	}

	items := RedditItems(raw, "2026-01-01", "2026-01-31")
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Date)
	assert.Equal(t, "1768435200", *items[0].Date)
}

func TestXItems(t *testing.T) {
	raw := []map[string]any{
		{
			"id":            "188",
			"text":          "shipping a new go runtime",
			"url":           "https://x.com/dev/status/188",
			"author_handle": "@dev",
			"date":          "2026-01-20T08:00:00Z",
			"engagement": map[string]any{
				"likes":   float64(99),
				"reposts": float64(5),
			},
		},
		{
			"id":   "189",
			"text": "bad",
			"url":  "javascript:alert(1)",
		},
	}

	items := XItems(raw, "2026-01-01", "2026-01-31")
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, "@dev", item.AuthorHandle)
	assert.Equal(t, timerange.ConfidenceHigh, item.DateConfidence)
	assert.Equal(t, DefaultRelevance, item.Relevance)
	require.NotNil(t, item.Engagement)
	require.NotNil(t, item.Engagement.Likes)
	assert.Equal(t, 99, *item.Engagement.Likes)
	assert.Nil(t, item.Engagement.Replies)
}

func strPtr(s string) *string { return &s }

func filterFixture() []model.RedditItem {
	return []model.RedditItem{
		{ID: "in-window", Date: strPtr("2026-01-15")},
		{ID: "too-old", Date: strPtr("2025-12-20")},
		{ID: "future", Date: strPtr("2026-02-10")},
		{ID: "datetime-in-window", Date: strPtr("2026-01-20T08:30:00Z")},
		{ID: "dateless"},
	}
}

func TestFilterByDateRange(t *testing.T) {
	kept := FilterByDateRange(filterFixture(), "2026-01-01", "2026-01-31", false)

	var ids []string
	for _, item := range kept {
		ids = append(ids, item.ID)
	}
	assert.Equal(t, []string{"in-window", "datetime-in-window", "dateless"}, ids)
}

func TestFilterByDateRange_RequireDate(t *testing.T) {
	kept := FilterByDateRange(filterFixture(), "2026-01-01", "2026-01-31", true)

	var ids []string
	for _, item := range kept {
		ids = append(ids, item.ID)
	}
	assert.Equal(t, []string{"in-window", "datetime-in-window"}, ids)
}

func TestFilterByDateRange_DatetimeBoundaries(t *testing.T) {
	items := []model.RedditItem{
		{ID: "kept", Date: strPtr("2026-01-15")},
		{ID: "dropped", Date: strPtr("2026-01-16")},
	}

	kept := FilterByDateRange(items, "2026-01-14T06:00:00Z", "2026-01-15T06:00:00Z", false)
	require.Len(t, kept, 1)
	assert.Equal(t, "kept", kept[0].ID)
}

func TestFilterByDateRange_Idempotent(t *testing.T) {
	once := FilterByDateRange(filterFixture(), "2026-01-01", "2026-01-31", false)
	twice := FilterByDateRange(once, "2026-01-01", "2026-01-31", false)

	assert.Equal(t, once, twice)
}

func TestFilterByDateRange_Empty(t *testing.T) {
	kept := FilterByDateRange([]model.RedditItem{}, "2026-01-01", "2026-01-31", false)
	assert.Empty(t, kept)
}
