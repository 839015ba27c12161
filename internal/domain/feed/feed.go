// Package feed defines the canonical feed and item models shared by the
// parser, store, sync engine, and view layers.
package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Category is a single feed or item category, optionally scoped to a domain.
type Category struct {
	Name   string  `json:"name"`
	Domain *string `json:"domain,omitempty"`
}

// Feed is the canonical representation of a remote feed source.
type Feed struct {
	ID          string
	Title       string
	Description string
	Categories  []Category
	SourceURL   string
	SiteLink    string
	TTL         *string
	PubDate     *time.Time
	LastFetched *time.Time
}

// Item is a single entry belonging to a Feed.
//
// Canonical fields are overwritten on every successful merge. The user-owned
// fields (Read, Favorite, Tags, SortKey) are set only through the user-state
// mutation path and survive refreshes untouched.
type Item struct {
	ID              string
	FeedID          string
	Title           *string
	Author          *string
	Content         *string
	Description     *string
	TextDescription *string
	Categories      []Category
	Link            *string
	PubDate         *time.Time

	Read     bool
	Favorite bool
	Tags     []string
	SortKey  *int
}

// NewFeedID derives a stable feed identifier from the source URL.
// The URL, not any feed-supplied GUID, anchors identity: feed content can
// change independently of where it is fetched from.
func NewFeedID(sourceURL string) string {
	sum := sha256.Sum256([]byte(sourceURL))
	return hex.EncodeToString(sum[:16])
}

// NewItemID derives a stable item identifier. The feed-supplied GUID wins
// when present; otherwise a content hash of (title, link, pub date) stands
// in for feeds that omit GUIDs.
func NewItemID(guid string, title, link *string, pubDate *time.Time) string {
	if guid != "" {
		return guid
	}
	h := sha256.New()
	writeField := func(s *string) {
		if s != nil {
			h.Write([]byte(*s))
		}
		h.Write([]byte{0})
	}
	writeField(title)
	writeField(link)
	if pubDate != nil {
		h.Write([]byte(pubDate.UTC().Format(time.RFC3339)))
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// HasTag reports whether the item carries the given user tag.
func (it *Item) HasTag(tag string) bool {
	for _, t := range it.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
