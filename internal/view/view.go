// Package view projects stored feeds and items into the shapes the UI
// renders: ordered slices and per-feed summaries. It never mutates the
// store and never talks to the network.
package view

import (
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/rektdeckard/moccasin/internal/domain/feed"
	"github.com/rektdeckard/moccasin/internal/store"
)

// FeedEntry is one row of the feed list: the feed plus item counts.
type FeedEntry struct {
	Feed        feed.Feed
	ItemCount   int
	UnreadCount int
}

// Model reads projections out of the store.
type Model struct {
	store *store.Store
}

// New builds a Model over the given store.
func New(st *store.Store) *Model {
	return &Model{store: st}
}

// SortedFeeds returns all feeds in the requested order, each annotated with
// its total and unread item counts.
func (m *Model) SortedFeeds(order feed.SortOrder) ([]FeedEntry, error) {
	feedOrder := order
	switch order {
	case feed.SortUnreadFirst, feed.SortManual:
		// Item-level orders have no feed meaning; fall back to newest.
		feedOrder = feed.SortNewest
	}

	feeds, err := m.store.ListFeeds(feedOrder)
	if err != nil {
		return nil, err
	}

	items, err := m.store.ListItems("", store.ItemFilter{})
	if err != nil {
		return nil, err
	}
	byFeed := lo.GroupBy(items, func(it feed.Item) string { return it.FeedID })

	entries := lo.Map(feeds, func(f feed.Feed, _ int) FeedEntry {
		own := byFeed[f.ID]
		return FeedEntry{
			Feed:      f,
			ItemCount: len(own),
			UnreadCount: lo.CountBy(own, func(it feed.Item) bool {
				return !it.Read
			}),
		}
	})
	return entries, nil
}

// ItemsFor returns one feed's items (or all items when feedID is empty),
// filtered and ordered for display.
func (m *Model) ItemsFor(feedID string, filter store.ItemFilter, order feed.SortOrder) ([]feed.Item, error) {
	items, err := m.store.ListItems(feedID, filter)
	if err != nil {
		return nil, err
	}
	return Order(items, order), nil
}

// Search matches free text across all feeds, newest first.
func (m *Model) Search(query string) ([]feed.Item, error) {
	return m.store.SearchItems(query)
}

// Order rearranges items for display. The input is expected newest-first,
// the store's natural order; every rearrangement here is stable, so equal
// keys keep that relative order.
func Order(items []feed.Item, order feed.SortOrder) []feed.Item {
	out := append([]feed.Item(nil), items...)
	switch order {
	case feed.SortOldest:
		// Sorted ascending rather than reversed: a reversal would also flip
		// the store's id tiebreak for items sharing a publication date.
		sort.SliceStable(out, func(i, j int) bool {
			return pubBefore(out[i], out[j])
		})
	case feed.SortTitleAsc:
		sort.SliceStable(out, func(i, j int) bool {
			return titleKey(out[i]) < titleKey(out[j])
		})
	case feed.SortTitleDesc:
		sort.SliceStable(out, func(i, j int) bool {
			return titleKey(out[i]) > titleKey(out[j])
		})
	case feed.SortUnreadFirst:
		sort.SliceStable(out, func(i, j int) bool {
			return !out[i].Read && out[j].Read
		})
	case feed.SortManual:
		sort.SliceStable(out, func(i, j int) bool {
			return manualBefore(out[i], out[j])
		})
	}
	return out
}

// pubBefore orders dated items ascending by publication date, undated ones
// last. Items sharing a date keep their incoming order.
func pubBefore(a, b feed.Item) bool {
	switch {
	case a.PubDate != nil && b.PubDate != nil:
		return a.PubDate.Before(*b.PubDate)
	case a.PubDate != nil:
		return true
	default:
		return false
	}
}

// manualBefore orders keyed items ahead of unkeyed ones, keyed items by
// ascending sort key. Unkeyed items keep their incoming order.
func manualBefore(a, b feed.Item) bool {
	switch {
	case a.SortKey != nil && b.SortKey != nil:
		return *a.SortKey < *b.SortKey
	case a.SortKey != nil:
		return true
	default:
		return false
	}
}

func titleKey(it feed.Item) string {
	if it.Title == nil {
		return ""
	}
	return strings.ToLower(*it.Title)
}
