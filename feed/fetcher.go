// Package feed retrieves raw discussion records from public RSS/Atom
// endpoints. It is the concrete fetch collaborator the cache sits in front
// of: output records are the untrusted input of the normalize package.
package feed

import (
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// Source types understood by the fetcher.
const (
	TypeReddit = "reddit"
	TypeX      = "x"
	TypeRSS    = "rss"
)

// Fetcher pulls feeds and converts their entries to raw records.
type Fetcher struct {
	parser *gofeed.Parser
}

// NewFetcher creates a new Fetcher.
func NewFetcher() *Fetcher {
	return &Fetcher{
		parser: gofeed.NewParser(),
	}
}

// SubredditURL builds the public RSS endpoint for a subreddit.
func SubredditURL(subreddit string) string {
	return fmt.Sprintf("https://www.reddit.com/r/%s/.rss", subreddit)
}

// FetchSubreddit retrieves recent posts from a subreddit's RSS endpoint.
func (f *Fetcher) FetchSubreddit(subreddit string, limit int) ([]map[string]any, error) {
	return f.Fetch(SubredditURL(subreddit), TypeReddit, limit)
}

// Fetch retrieves a feed and converts up to limit entries into raw records
// shaped for sourceType (limit <= 0 means all).
func (f *Fetcher) Fetch(url, sourceType string, limit int) ([]map[string]any, error) {
	parsed, err := f.parser.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed from %s: %w", url, err)
	}
	return f.convert(parsed, sourceType, limit), nil
}

// Parse converts feed content from a string, mainly for tests and piped
// input.
func (f *Fetcher) Parse(content, sourceType string, limit int) ([]map[string]any, error) {
	if content == "" {
		return nil, fmt.Errorf("feed content is empty")
	}

	parsed, err := f.parser.ParseString(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	return f.convert(parsed, sourceType, limit), nil
}

func (f *Fetcher) convert(parsed *gofeed.Feed, sourceType string, limit int) []map[string]any {
	var records []map[string]any
	for _, item := range parsed.Items {
		if limit > 0 && len(records) >= limit {
			break
		}
		records = append(records, f.convertItem(item, parsed, sourceType))
	}
	return records
}

// convertItem maps a feed entry onto the raw record shape the normalizer
// expects for the source type. Dates are emitted as RFC 3339 strings; an
// entry with no parseable date gets no date field at all, so downstream
// confidence scoring can flag it.
func (f *Fetcher) convertItem(item *gofeed.Item, parsed *gofeed.Feed, sourceType string) map[string]any {
	id := item.GUID
	if id == "" {
		id = item.Link
	}

	rec := map[string]any{
		"id":  id,
		"url": item.Link,
	}

	if ts := publishedAt(item); !ts.IsZero() {
		rec["date"] = ts.UTC().Format(time.RFC3339)
	}

	switch sourceType {
	case TypeX:
		rec["text"] = item.Title
		rec["author_handle"] = authorName(item)
	default:
		rec["title"] = item.Title
		if sourceType == TypeReddit {
			rec["subreddit"] = subredditOf(item, parsed)
		}
	}

	return rec
}

func publishedAt(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed
	}
	if item.UpdatedParsed != nil {
		return *item.UpdatedParsed
	}
	return time.Time{}
}

func authorName(item *gofeed.Item) string {
	if len(item.Authors) > 0 {
		return item.Authors[0].Name
	}
	return ""
}

// subredditOf extracts the subreddit name from an entry link like
// https://www.reddit.com/r/golang/comments/..., falling back to the feed
// title Reddit emits ("posts from r/golang" style titles keep the r/ part).
func subredditOf(item *gofeed.Item, parsed *gofeed.Feed) string {
	if name := subredditFromPath(item.Link); name != "" {
		return name
	}
	if i := strings.Index(parsed.Title, "r/"); i >= 0 {
		rest := parsed.Title[i+2:]
		if j := strings.IndexAny(rest, " /"); j >= 0 {
			return rest[:j]
		}
		return rest
	}
	return ""
}

func subredditFromPath(link string) string {
	i := strings.Index(link, "/r/")
	if i < 0 {
		return ""
	}
	rest := link[i+3:]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		return rest[:j]
	}
	return rest
}
