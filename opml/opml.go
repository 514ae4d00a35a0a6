// Package opml provides OPML import and export of the watched-source list.
package opml

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"github.com/robertmeta/pulse/model"
)

// OPML represents the root OPML structure.
type OPML struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    Head     `xml:"head"`
	Body    Body     `xml:"body"`
}

// Head contains metadata about the OPML document.
type Head struct {
	Title       string `xml:"title,omitempty"`
	DateCreated string `xml:"dateCreated,omitempty"`
}

// Body contains the outline elements (sources).
type Body struct {
	Outlines []Outline `xml:"outline"`
}

// Outline represents a source or category in OPML.
type Outline struct {
	Text     string    `xml:"text,attr,omitempty"`
	Title    string    `xml:"title,attr,omitempty"`
	Type     string    `xml:"type,attr,omitempty"`
	XMLUrl   string    `xml:"xmlUrl,attr,omitempty"`
	Category string    `xml:"category,attr,omitempty"`
	Outlines []Outline `xml:"outline,omitempty"`
}

// Parse reads an OPML document and extracts watched sources. Imported
// sources start enabled; outlines typed "reddit" or "x" keep that type,
// anything else imports as a plain RSS source.
func Parse(r io.Reader) ([]*model.Source, error) {
	var doc OPML
	decoder := xml.NewDecoder(r)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse OPML: %w", err)
	}

	return extractSources(doc.Body.Outlines, ""), nil
}

// extractSources recursively extracts sources from outlines.
// parentCategory is used for nested outlines that don't specify their own
// category.
func extractSources(outlines []Outline, parentCategory string) []*model.Source {
	var sources []*model.Source

	for _, outline := range outlines {
		// If this outline has an xmlUrl, it's a source
		if outline.XMLUrl != "" {
			src := &model.Source{
				Name:    outline.Title,
				URL:     outline.XMLUrl,
				Type:    sourceType(outline.Type),
				Enabled: true,
			}

			// Use explicit category if provided, otherwise inherit from parent
			if outline.Category != "" {
				src.Category = outline.Category
			} else if parentCategory != "" {
				src.Category = parentCategory
			}

			// Fallback to text if title is empty
			if src.Name == "" {
				src.Name = outline.Text
			}

			sources = append(sources, src)
		}

		// Recursively process nested outlines
		if len(outline.Outlines) > 0 {
			categoryForChildren := outline.Text
			if categoryForChildren == "" {
				categoryForChildren = parentCategory
			}

			childSources := extractSources(outline.Outlines, categoryForChildren)
			sources = append(sources, childSources...)
		}
	}

	return sources
}

func sourceType(outlineType string) string {
	switch outlineType {
	case "reddit", "x":
		return outlineType
	default:
		return "rss"
	}
}

// Generate writes an OPML document from a list of watched sources.
func Generate(w io.Writer, sources []*model.Source) error {
	// Group sources by category
	categories := make(map[string][]*model.Source)
	var uncategorized []*model.Source

	for _, src := range sources {
		if src.Category == "" {
			uncategorized = append(uncategorized, src)
		} else {
			categories[src.Category] = append(categories[src.Category], src)
		}
	}

	doc := OPML{
		Version: "2.0",
		Head: Head{
			Title:       "pulse watched sources",
			DateCreated: time.Now().Format(time.RFC1123),
		},
		Body: Body{
			Outlines: []Outline{},
		},
	}

	for category, categorySources := range categories {
		categoryOutline := Outline{
			Text:     category,
			Title:    category,
			Outlines: []Outline{},
		}

		for _, src := range categorySources {
			categoryOutline.Outlines = append(categoryOutline.Outlines, outlineFor(src))
		}

		doc.Body.Outlines = append(doc.Body.Outlines, categoryOutline)
	}

	for _, src := range uncategorized {
		doc.Body.Outlines = append(doc.Body.Outlines, outlineFor(src))
	}

	// Write XML with indentation
	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")

	if _, err := w.Write([]byte(xml.Header)); err != nil {
		return fmt.Errorf("failed to write XML header: %w", err)
	}

	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode OPML: %w", err)
	}

	if _, err := w.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write final newline: %w", err)
	}

	return nil
}

func outlineFor(src *model.Source) Outline {
	return Outline{
		Type:     src.Type,
		Text:     src.Name,
		Title:    src.Name,
		XMLUrl:   src.URL,
		Category: src.Category,
	}
}
