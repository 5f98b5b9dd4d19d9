// Package feed builds RSS 2.0 and Atom syndication feeds.
package feed

import (
	"fmt"
	"io"
	"time"

	"github.com/gorilla/feeds"
)

// Supported feed formats
const (
	FormatRSS  = "rss"
	FormatAtom = "atom"
)

// Meta describes the feed itself.
type Meta struct {
	Title       string
	Link        string
	Description string
	Author      string
	Email       string
}

// Entry is one item of a feed.
type Entry struct {
	ID          string
	Title       string
	Link        string
	Description string
	Author      string
	Published   time.Time
	Updated     time.Time
	Categories  []string
}

// Build assembles a feed. The feed's updated time is that of the newest entry.
func Build(meta Meta, entries []Entry) *feeds.Feed {
	f := &feeds.Feed{
		Title:       meta.Title,
		Link:        &feeds.Link{Href: meta.Link},
		Description: meta.Description,
	}
	if meta.Author != "" || meta.Email != "" {
		f.Author = &feeds.Author{Name: meta.Author, Email: meta.Email}
	}

	for _, e := range entries {
		item := &feeds.Item{
			Id:          e.ID,
			Title:       e.Title,
			Link:        &feeds.Link{Href: e.Link},
			Description: e.Description,
			Created:     e.Published,
			Updated:     e.Updated,
		}
		if e.Author != "" {
			item.Author = &feeds.Author{Name: e.Author}
		}
		f.Items = append(f.Items, item)

		if e.Published.After(f.Created) {
			f.Created = e.Published
		}
		if e.Updated.After(f.Updated) {
			f.Updated = e.Updated
		}
	}
	if f.Created.IsZero() {
		f.Created = time.Now().UTC()
	}
	return f
}

// Write renders the feed in the requested format.
func Write(w io.Writer, f *feeds.Feed, format string) error {
	switch format {
	case FormatRSS:
		return f.WriteRss(w)
	case FormatAtom:
		return f.WriteAtom(w)
	default:
		return fmt.Errorf("unknown feed format %q", format)
	}
}

// ContentType returns the MIME type of a feed format.
func ContentType(format string) string {
	if format == FormatAtom {
		return "application/atom+xml; charset=utf-8"
	}
	return "application/rss+xml; charset=utf-8"
}
