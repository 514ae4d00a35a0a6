// Package model defines the core data structures for pulse.
package model

import (
	"errors"
	"time"
)

// Source represents a watched community source (a subreddit feed, an X
// mirror feed, or a plain RSS feed).
type Source struct {
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type" yaml:"type"` // "reddit", "x", or "rss"
	URL      string `json:"url" yaml:"url"`
	Category string `json:"category,omitempty" yaml:"category,omitempty"`
	Enabled  bool   `json:"enabled" yaml:"enabled"`
}

// Validate checks if the source has required fields.
func (s *Source) Validate() error {
	if s.Name == "" {
		return errors.New("source name is required")
	}
	if s.URL == "" {
		return errors.New("source URL is required")
	}
	return nil
}

// Search records one search run for the archive.
type Search struct {
	ID      int64     `json:"id"`
	Topic   string    `json:"topic"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	Sources string    `json:"sources"`
	Label   string    `json:"label,omitempty"`
	Created time.Time `json:"created"`
}

// Item is the capability set shared by every normalized item, whatever
// platform it came from. PostedAt returns nil when the platform gave us no
// usable date.
type Item interface {
	ItemID() string
	Permalink() string
	PostedAt() *string
}

// Engagement holds optional platform engagement counters. Reddit items use
// the score/comments/ratio fields, X items the likes/reposts/replies/quotes
// fields; absent counters marshal away.
type Engagement struct {
	Score       *int     `json:"score,omitempty"`
	NumComments *int     `json:"num_comments,omitempty"`
	UpvoteRatio *float64 `json:"upvote_ratio,omitempty"`
	Likes       *int     `json:"likes,omitempty"`
	Reposts     *int     `json:"reposts,omitempty"`
	Replies     *int     `json:"replies,omitempty"`
	Quotes      *int     `json:"quotes,omitempty"`
}

// Comment is a sanitized top comment on a Reddit item. URL is empty when the
// raw comment carried an invalid or unsafe link.
type Comment struct {
	Score   int     `json:"score"`
	Date    *string `json:"date"`
	Author  string  `json:"author"`
	Excerpt string  `json:"excerpt"`
	URL     string  `json:"url"`
}

// RedditItem is a normalized Reddit post.
type RedditItem struct {
	ID              string      `json:"id"`
	Title           string      `json:"title"`
	URL             string      `json:"url"`
	Subreddit       string      `json:"subreddit"`
	Date            *string     `json:"date"`
	DateConfidence  string      `json:"date_confidence"`
	Engagement      *Engagement `json:"engagement,omitempty"`
	TopComments     []Comment   `json:"top_comments,omitempty"`
	CommentInsights []string    `json:"comment_insights,omitempty"`
	Relevance       float64     `json:"relevance"`
	WhyRelevant     string      `json:"why_relevant"`
}

// ItemID returns the platform identifier of the post.
func (r RedditItem) ItemID() string { return r.ID }

// Permalink returns the post URL.
func (r RedditItem) Permalink() string { return r.URL }

// PostedAt returns the reported date, or nil if unknown.
func (r RedditItem) PostedAt() *string { return r.Date }

// XItem is a normalized X (Twitter) post.
type XItem struct {
	ID             string      `json:"id"`
	Text           string      `json:"text"`
	URL            string      `json:"url"`
	AuthorHandle   string      `json:"author_handle"`
	Date           *string     `json:"date"`
	DateConfidence string      `json:"date_confidence"`
	Engagement     *Engagement `json:"engagement,omitempty"`
	Relevance      float64     `json:"relevance"`
	WhyRelevant    string      `json:"why_relevant"`
}

// ItemID returns the platform identifier of the post.
func (x XItem) ItemID() string { return x.ID }

// Permalink returns the post URL.
func (x XItem) Permalink() string { return x.URL }

// PostedAt returns the reported date, or nil if unknown.
func (x XItem) PostedAt() *string { return x.Date }
