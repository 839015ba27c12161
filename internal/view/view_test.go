package view

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rektdeckard/moccasin/internal/domain/feed"
	"github.com/rektdeckard/moccasin/internal/store"
)

func strp(s string) *string { return &s }

func intp(i int) *int { return &i }

func timep(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func newTestModel(t *testing.T) (*Model, *store.Store) {
	t.Helper()
	st, err := store.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return New(st), st
}

func seedFeed(t *testing.T, st *store.Store, url, title string, items []feed.Item) string {
	t.Helper()
	f := &feed.Feed{ID: feed.NewFeedID(url), Title: title, SourceURL: url}
	_, err := st.UpsertFeed(f)
	require.NoError(t, err)
	_, err = st.MergeItems(f.ID, items, time.Now())
	require.NoError(t, err)
	return f.ID
}

func item(id, title, pubDate string) feed.Item {
	it := feed.Item{ID: id, Title: strp(title)}
	if pubDate != "" {
		it.PubDate = timep(pubDate)
	}
	return it
}

func titles(items []feed.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = *it.Title
	}
	return out
}

func TestOrder(t *testing.T) {
	newest := []feed.Item{
		item("1", "cherry", "2026-03-03T00:00:00Z"),
		item("2", "apple", "2026-03-02T00:00:00Z"),
		item("3", "banana", "2026-03-01T00:00:00Z"),
	}
	newest[0].Read = true

	t.Run("newest keeps input order", func(t *testing.T) {
		assert.Equal(t, []string{"cherry", "apple", "banana"}, titles(Order(newest, feed.SortNewest)))
	})

	t.Run("oldest sorts ascending", func(t *testing.T) {
		assert.Equal(t, []string{"banana", "apple", "cherry"}, titles(Order(newest, feed.SortOldest)))
	})

	t.Run("oldest keeps id order for equal dates", func(t *testing.T) {
		tied := []feed.Item{
			item("1", "late", "2026-03-05T00:00:00Z"),
			item("2", "first of pair", "2026-03-04T00:00:00Z"),
			item("3", "second of pair", "2026-03-04T00:00:00Z"),
			item("4", "undated", ""),
		}
		got := titles(Order(tied, feed.SortOldest))
		assert.Equal(t, []string{"first of pair", "second of pair", "late", "undated"}, got)
	})

	t.Run("title ascending", func(t *testing.T) {
		assert.Equal(t, []string{"apple", "banana", "cherry"}, titles(Order(newest, feed.SortTitleAsc)))
	})

	t.Run("title descending", func(t *testing.T) {
		assert.Equal(t, []string{"cherry", "banana", "apple"}, titles(Order(newest, feed.SortTitleDesc)))
	})

	t.Run("unread first is stable", func(t *testing.T) {
		assert.Equal(t, []string{"apple", "banana", "cherry"}, titles(Order(newest, feed.SortUnreadFirst)))
	})

	t.Run("manual puts keyed items first", func(t *testing.T) {
		keyed := append([]feed.Item(nil), newest...)
		keyed[2].SortKey = intp(0)
		keyed[0].SortKey = intp(1)
		assert.Equal(t, []string{"banana", "cherry", "apple"}, titles(Order(keyed, feed.SortManual)))
	})

	t.Run("input is not mutated", func(t *testing.T) {
		_ = Order(newest, feed.SortTitleAsc)
		assert.Equal(t, []string{"cherry", "apple", "banana"}, titles(newest))
	})
}

func TestSortedFeeds(t *testing.T) {
	m, st := newTestModel(t)

	alpha := seedFeed(t, st, "https://alpha.example/rss", "alpha", []feed.Item{
		item("a1", "one", "2026-01-01T00:00:00Z"),
		item("a2", "two", "2026-01-02T00:00:00Z"),
	})
	seedFeed(t, st, "https://beta.example/rss", "beta", []feed.Item{
		item("b1", "three", "2026-01-03T00:00:00Z"),
	})

	read := true
	require.NoError(t, st.SetItemUserState(alpha, "a1", store.UserState{Read: &read}))

	entries, err := m.SortedFeeds(feed.SortTitleAsc)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "alpha", entries[0].Feed.Title)
	assert.Equal(t, 2, entries[0].ItemCount)
	assert.Equal(t, 1, entries[0].UnreadCount)

	assert.Equal(t, "beta", entries[1].Feed.Title)
	assert.Equal(t, 1, entries[1].ItemCount)
	assert.Equal(t, 1, entries[1].UnreadCount)
}

func TestItemsFor(t *testing.T) {
	m, st := newTestModel(t)

	id := seedFeed(t, st, "https://gamma.example/rss", "gamma", []feed.Item{
		item("g1", "first", "2026-02-01T00:00:00Z"),
		item("g2", "second", "2026-02-02T00:00:00Z"),
		item("g3", "third", "2026-02-03T00:00:00Z"),
	})

	read := true
	require.NoError(t, st.SetItemUserState(id, "g3", store.UserState{Read: &read}))

	items, err := m.ItemsFor(id, store.ItemFilter{}, feed.SortNewest)
	require.NoError(t, err)
	assert.Equal(t, []string{"third", "second", "first"}, titles(items))

	items, err = m.ItemsFor(id, store.ItemFilter{}, feed.SortUnreadFirst)
	require.NoError(t, err)
	assert.Equal(t, []string{"second", "first", "third"}, titles(items))

	items, err = m.ItemsFor(id, store.ItemFilter{UnreadOnly: true}, feed.SortOldest)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, titles(items))
}

func TestSearch(t *testing.T) {
	m, st := newTestModel(t)

	seedFeed(t, st, "https://delta.example/rss", "delta", []feed.Item{
		item("d1", "release notes", "2026-02-01T00:00:00Z"),
		item("d2", "weekly digest", "2026-02-02T00:00:00Z"),
	})

	items, err := m.Search("release")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "release notes", *items[0].Title)

	items, err = m.Search("nowhere")
	require.NoError(t, err)
	assert.Empty(t, items)
}
