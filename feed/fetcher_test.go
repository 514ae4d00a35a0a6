package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// redditAtom mimics the Atom feed Reddit serves at /r/<sub>/.rss.
const redditAtom = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>posts from r/golang</title>
  <entry>
    <author><name>/u/gopher</name></author>
    <id>t3_abc</id>
    <link href="https://www.reddit.com/r/golang/comments/abc/go_126_released/" />
    <title>Go 1.26 released</title>
    <updated>2026-01-15T10:30:00+00:00</updated>
  </entry>
  <entry>
    <author><name>/u/ferret</name></author>
    <id>t3_def</id>
    <link href="https://www.reddit.com/r/golang/comments/def/generics_question/" />
    <title>Generics question</title>
    <updated>2026-01-14T22:05:00+00:00</updated>
  </entry>
</feed>`

// mirrorRSS mimics an X mirror's RSS 2.0 feed.
const mirrorRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>@dev / mirror</title>
    <item>
      <title>shipping a new go runtime</title>
      <link>https://x.com/dev/status/188</link>
      <guid>188</guid>
      <author>@dev</author>
      <pubDate>Tue, 20 Jan 2026 08:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

func TestFetcher_ParseRedditRecords(t *testing.T) {
	fetcher := NewFetcher()

	records, err := fetcher.Parse(redditAtom, TypeReddit, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "t3_abc", first["id"])
	assert.Equal(t, "https://www.reddit.com/r/golang/comments/abc/go_126_released/", first["url"])
	assert.Equal(t, "Go 1.26 released", first["title"])
	assert.Equal(t, "golang", first["subreddit"])
	assert.Equal(t, "2026-01-15T10:30:00Z", first["date"])
}

func TestFetcher_ParseXRecords(t *testing.T) {
	fetcher := NewFetcher()

	records, err := fetcher.Parse(mirrorRSS, TypeX, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "188", rec["id"])
	assert.Equal(t, "https://x.com/dev/status/188", rec["url"])
	assert.Equal(t, "shipping a new go runtime", rec["text"])
	assert.Equal(t, "2026-01-20T08:00:00Z", rec["date"])
	assert.NotContains(t, rec, "title", "x records carry text, not title")
}

func TestFetcher_ParseRespectsLimit(t *testing.T) {
	fetcher := NewFetcher()

	records, err := fetcher.Parse(redditAtom, TypeReddit, 1)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestFetcher_ParseInvalidFeed(t *testing.T) {
	fetcher := NewFetcher()

	_, err := fetcher.Parse("<invalid>xml</broken>", TypeReddit, 0)
	assert.Error(t, err, "Should error on invalid XML")

	_, err = fetcher.Parse("", TypeReddit, 0)
	assert.Error(t, err, "Should error on empty string")
}

func TestFetcher_MissingDateOmitsField(t *testing.T) {
	minimalRSS := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Minimal Feed</title>
    <item>
      <title>Entry with no date</title>
      <link>https://example.com/minimal</link>
      <guid>minimal-1</guid>
    </item>
  </channel>
</rss>`

	fetcher := NewFetcher()
	records, err := fetcher.Parse(minimalRSS, TypeRSS, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.NotContains(t, records[0], "date", "no parseable date means no date field")
	assert.Equal(t, "Entry with no date", records[0]["title"])
}

func TestFetcher_GUIDFallsBackToLink(t *testing.T) {
	noGUID := `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Feed</title>
    <item>
      <title>No guid</title>
      <link>https://example.com/no-guid</link>
    </item>
  </channel>
</rss>`

	fetcher := NewFetcher()
	records, err := fetcher.Parse(noGUID, TypeRSS, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "https://example.com/no-guid", records[0]["id"])
}

func TestSubredditURL(t *testing.T) {
	assert.Equal(t, "https://www.reddit.com/r/golang/.rss", SubredditURL("golang"))
}

func TestFetcher_FetchURL(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping network test in short mode")
	}

	fetcher := NewFetcher()

	records, err := fetcher.Fetch("https://news.ycombinator.com/rss", TypeRSS, 5)
	require.NoError(t, err)
	assert.NotEmpty(t, records, "Should fetch at least some records")

	for _, rec := range records {
		assert.NotEmpty(t, rec["id"])
		assert.NotEmpty(t, rec["url"])
	}
}
