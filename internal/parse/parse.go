// Package parse converts raw feed payloads into the canonical feed model.
// It is pure and synchronous: bytes in, records out, no I/O.
package parse

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/atom"
	"github.com/mmcdole/gofeed/rss"

	"github.com/rektdeckard/moccasin/internal/domain/feed"
)

// Sentinel reasons carried by *Error.
var (
	// ErrMalformed marks a payload that sniffed as a known format but
	// failed to decode.
	ErrMalformed = errors.New("malformed feed")
	// ErrUnsupported marks a payload that is neither RSS 2.0 nor Atom.
	ErrUnsupported = errors.New("unsupported feed format")
)

// Error describes a failed parse of one source's payload.
type Error struct {
	SourceURL string
	Reason    error // ErrMalformed or ErrUnsupported
	cause     error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("parse %s: %v: %v", e.SourceURL, e.Reason, e.cause)
	}
	return fmt.Sprintf("parse %s: %v", e.SourceURL, e.Reason)
}

func (e *Error) Unwrap() []error {
	if e.cause != nil {
		return []error{e.Reason, e.cause}
	}
	return []error{e.Reason}
}

// Parse sniffs the payload format, decodes it with the matching
// format-specific parser, and normalizes the result into one canonical
// (Feed, []Item) pair. Identifier derivation is deterministic: the same
// bytes and source URL always yield the same ids.
func Parse(data []byte, sourceURL string) (*feed.Feed, []feed.Item, error) {
	switch gofeed.DetectFeedType(bytes.NewReader(data)) {
	case gofeed.FeedTypeRSS:
		parsed, err := (&rss.Parser{}).Parse(bytes.NewReader(data))
		if err != nil {
			return nil, nil, &Error{SourceURL: sourceURL, Reason: ErrMalformed, cause: err}
		}
		f, items := fromRSS(parsed, sourceURL)
		return f, items, nil
	case gofeed.FeedTypeAtom:
		parsed, err := (&atom.Parser{}).Parse(bytes.NewReader(data))
		if err != nil {
			return nil, nil, &Error{SourceURL: sourceURL, Reason: ErrMalformed, cause: err}
		}
		f, items := fromAtom(parsed, sourceURL)
		return f, items, nil
	default:
		return nil, nil, &Error{SourceURL: sourceURL, Reason: ErrUnsupported}
	}
}

func fromRSS(parsed *rss.Feed, sourceURL string) (*feed.Feed, []feed.Item) {
	f := &feed.Feed{
		ID:          feed.NewFeedID(sourceURL),
		Title:       parsed.Title,
		Description: parsed.Description,
		Categories:  rssCategories(parsed.Categories),
		SourceURL:   sourceURL,
		SiteLink:    parsed.Link,
		TTL:         optional(parsed.TTL),
		PubDate:     parsed.PubDateParsed,
	}

	items := make([]feed.Item, 0, len(parsed.Items))
	for _, in := range parsed.Items {
		title := optional(in.Title)
		link := optional(in.Link)
		guid := ""
		if in.GUID != nil {
			guid = in.GUID.Value
		}

		it := feed.Item{
			ID:          feed.NewItemID(guid, title, link, in.PubDateParsed),
			FeedID:      f.ID,
			Title:       title,
			Author:      rssAuthor(in),
			Content:     optional(in.Content),
			Description: optional(in.Description),
			Categories:  rssCategories(in.Categories),
			Link:        link,
			PubDate:     in.PubDateParsed,
		}
		it.TextDescription = textDescription(it.Description, it.Content)
		items = append(items, it)
	}
	return f, items
}

func fromAtom(parsed *atom.Feed, sourceURL string) (*feed.Feed, []feed.Item) {
	f := &feed.Feed{
		ID:          feed.NewFeedID(sourceURL),
		Title:       parsed.Title,
		Description: parsed.Subtitle,
		Categories:  atomCategories(parsed.Categories),
		SourceURL:   sourceURL,
		SiteLink:    alternateLink(parsed.Links),
		PubDate:     parsed.UpdatedParsed,
	}

	items := make([]feed.Item, 0, len(parsed.Entries))
	for _, in := range parsed.Entries {
		title := optional(in.Title)
		link := optional(alternateLink(in.Links))
		pubDate := in.PublishedParsed
		if pubDate == nil {
			pubDate = in.UpdatedParsed
		}

		var content *string
		if in.Content != nil {
			content = optional(in.Content.Value)
		}

		it := feed.Item{
			ID:          feed.NewItemID(in.ID, title, link, pubDate),
			FeedID:      f.ID,
			Title:       title,
			Author:      atomAuthor(in.Authors),
			Content:     content,
			Description: optional(in.Summary),
			Categories:  atomCategories(in.Categories),
			Link:        link,
			PubDate:     pubDate,
		}
		it.TextDescription = textDescription(it.Description, it.Content)
		items = append(items, it)
	}
	return f, items
}

// rssAuthor resolves an item author from the RSS author element, falling
// back to iTunes and Dublin Core metadata for podcast-style feeds.
func rssAuthor(in *rss.Item) *string {
	if in.Author != "" {
		return optional(in.Author)
	}
	if in.ITunesExt != nil && in.ITunesExt.Author != "" {
		return optional(in.ITunesExt.Author)
	}
	if in.DublinCoreExt != nil && len(in.DublinCoreExt.Creator) > 0 {
		joined := ""
		for i, c := range in.DublinCoreExt.Creator {
			if i > 0 {
				joined += ", "
			}
			joined += c
		}
		return optional(joined)
	}
	return nil
}

func atomAuthor(authors []*atom.Person) *string {
	for _, p := range authors {
		if p != nil && p.Name != "" {
			return optional(p.Name)
		}
	}
	return nil
}

func rssCategories(in []*rss.Category) []feed.Category {
	out := make([]feed.Category, 0, len(in))
	for _, c := range in {
		if c == nil {
			continue
		}
		out = append(out, feed.Category{Name: c.Value, Domain: optional(c.Domain)})
	}
	return out
}

func atomCategories(in []*atom.Category) []feed.Category {
	out := make([]feed.Category, 0, len(in))
	for _, c := range in {
		if c == nil {
			continue
		}
		out = append(out, feed.Category{Name: c.Term, Domain: optional(c.Scheme)})
	}
	return out
}

// alternateLink picks the site link from an Atom link set: an explicit
// rel="alternate" wins, then a link with no rel, then nothing.
func alternateLink(links []*atom.Link) string {
	var bare string
	for _, l := range links {
		if l == nil {
			continue
		}
		switch l.Rel {
		case "alternate":
			return l.Href
		case "":
			if bare == "" {
				bare = l.Href
			}
		}
	}
	return bare
}

// textDescription computes the plain-text display variant from the
// description, falling back to the content body.
func textDescription(description, content *string) *string {
	src := description
	if src == nil {
		src = content
	}
	if src == nil {
		return nil
	}
	return optional(Flatten(*src))
}

// optional maps an omitted value to absent rather than an empty-string
// sentinel.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
