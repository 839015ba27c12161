package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rektdeckard/moccasin/internal/domain/feed"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func strp(s string) *string { return &s }

func timep(t time.Time) *time.Time { return &t }

func boolp(b bool) *bool { return &b }

func testFeed(url string) *feed.Feed {
	return &feed.Feed{
		ID:          feed.NewFeedID(url),
		Title:       "Test Feed",
		Description: "A feed for testing",
		SourceURL:   url,
		SiteLink:    "https://example.com",
	}
}

func testItem(feedID, id string, day int) feed.Item {
	return feed.Item{
		ID:          id,
		FeedID:      feedID,
		Title:       strp("Item " + id),
		Description: strp("Description " + id),
		Link:        strp("https://example.com/" + id),
		PubDate:     timep(time.Date(2026, 1, day, 12, 0, 0, 0, time.UTC)),
	}
}

func TestUpsertFeedInsertAndOverwrite(t *testing.T) {
	s := newTestStore(t)
	f := testFeed("https://a.example/rss")

	stored, err := s.UpsertFeed(f)
	require.NoError(t, err)
	assert.Equal(t, f.ID, stored.ID)
	assert.Nil(t, stored.LastFetched)

	f.Title = "Renamed"
	f.TTL = strp("30")
	stored, err = s.UpsertFeed(f)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", stored.Title)
	require.NotNil(t, stored.TTL)
	assert.Equal(t, "30", *stored.TTL)
	assert.Nil(t, stored.LastFetched, "upsert must not advance last_fetched")

	feeds, err := s.ListFeeds(feed.SortTitleAsc)
	require.NoError(t, err)
	assert.Len(t, feeds, 1)
}

func TestMergeItemsCreateUpdateUnchanged(t *testing.T) {
	s := newTestStore(t)
	f := testFeed("https://a.example/rss")
	_, err := s.UpsertFeed(f)
	require.NoError(t, err)

	items := []feed.Item{testItem(f.ID, "1", 1), testItem(f.ID, "2", 2)}
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	res, err := s.MergeItems(f.ID, items, now)
	require.NoError(t, err)
	assert.Equal(t, MergeResult{Created: 2}, res)

	stored, err := s.GetFeed(f.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastFetched)
	assert.Equal(t, now, stored.LastFetched.UTC())

	// Identical payload again: all unchanged.
	res, err = s.MergeItems(f.ID, items, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, MergeResult{Unchanged: 2}, res)

	// One canonical change.
	items[0].Title = strp("Edited")
	res, err = s.MergeItems(f.ID, items, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, MergeResult{Updated: 1, Unchanged: 1}, res)

	got, err := s.GetItem(f.ID, "1")
	require.NoError(t, err)
	require.NotNil(t, got.Title)
	assert.Equal(t, "Edited", *got.Title)
}

func TestMergePreservesUserState(t *testing.T) {
	s := newTestStore(t)
	f := testFeed("https://a.example/rss")
	_, err := s.UpsertFeed(f)
	require.NoError(t, err)

	items := []feed.Item{testItem(f.ID, "1", 1)}
	_, err = s.MergeItems(f.ID, items, time.Now())
	require.NoError(t, err)

	require.NoError(t, s.SetItemUserState(f.ID, "1", UserState{
		Read:     boolp(true),
		Favorite: boolp(true),
		Tags:     []string{"keeper"},
	}))

	// Unchanged payload.
	_, err = s.MergeItems(f.ID, items, time.Now())
	require.NoError(t, err)

	// Changed canonical payload for the same id.
	items[0].Content = strp("new body")
	_, err = s.MergeItems(f.ID, items, time.Now())
	require.NoError(t, err)

	got, err := s.GetItem(f.ID, "1")
	require.NoError(t, err)
	assert.True(t, got.Read)
	assert.True(t, got.Favorite)
	assert.Equal(t, []string{"keeper"}, got.Tags)
	require.NotNil(t, got.Content)
	assert.Equal(t, "new body", *got.Content)
}

func TestMergeItemsAtomicity(t *testing.T) {
	s := newTestStore(t)
	f := testFeed("https://a.example/rss")
	_, err := s.UpsertFeed(f)
	require.NoError(t, err)

	first := []feed.Item{testItem(f.ID, "1", 1)}
	fetched := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	_, err = s.MergeItems(f.ID, first, fetched)
	require.NoError(t, err)

	before, err := s.ListItems(f.ID, ItemFilter{})
	require.NoError(t, err)

	// A batch that fails part-way (third item carries no id) must leave the
	// feed exactly as it was: no new rows, no canonical edits, stale
	// last_fetched.
	edited := testItem(f.ID, "1", 1)
	edited.Title = strp("should not land")
	bad := []feed.Item{edited, testItem(f.ID, "2", 2), {FeedID: f.ID}}
	_, err = s.MergeItems(f.ID, bad, fetched.Add(time.Hour))
	require.Error(t, err)

	after, err := s.ListItems(f.ID, ItemFilter{})
	require.NoError(t, err)
	assert.Equal(t, before, after)

	storedFeed, err := s.GetFeed(f.ID)
	require.NoError(t, err)
	require.NotNil(t, storedFeed.LastFetched)
	assert.Equal(t, fetched, storedFeed.LastFetched.UTC())
}

func TestMergeItemsUnknownFeed(t *testing.T) {
	s := newTestStore(t)
	_, err := s.MergeItems("nope", []feed.Item{{ID: "1"}}, time.Now())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMergeItemsRejectsForeignItems(t *testing.T) {
	s := newTestStore(t)
	f := testFeed("https://a.example/rss")
	_, err := s.UpsertFeed(f)
	require.NoError(t, err)

	alien := testItem("some-other-feed", "1", 1)
	_, err = s.MergeItems(f.ID, []feed.Item{alien}, time.Now())
	assert.Error(t, err)
}

func TestDeleteFeedCascades(t *testing.T) {
	s := newTestStore(t)
	f := testFeed("https://a.example/rss")
	other := testFeed("https://b.example/rss")
	_, err := s.UpsertFeed(f)
	require.NoError(t, err)
	_, err = s.UpsertFeed(other)
	require.NoError(t, err)

	_, err = s.MergeItems(f.ID, []feed.Item{testItem(f.ID, "1", 1)}, time.Now())
	require.NoError(t, err)
	_, err = s.MergeItems(other.ID, []feed.Item{testItem(other.ID, "1", 1)}, time.Now())
	require.NoError(t, err)

	require.NoError(t, s.DeleteFeedByURL("https://a.example/rss"))

	items, err := s.ListItems("", ItemFilter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, other.ID, items[0].FeedID)

	assert.ErrorIs(t, s.DeleteFeed(f.ID), ErrNotFound)
}

func TestSetItemUserStateDoesNotTouchCanonical(t *testing.T) {
	s := newTestStore(t)
	f := testFeed("https://a.example/rss")
	_, err := s.UpsertFeed(f)
	require.NoError(t, err)
	_, err = s.MergeItems(f.ID, []feed.Item{testItem(f.ID, "1", 1)}, time.Now())
	require.NoError(t, err)

	require.NoError(t, s.SetItemUserState(f.ID, "1", UserState{Read: boolp(true)}))

	got, err := s.GetItem(f.ID, "1")
	require.NoError(t, err)
	assert.True(t, got.Read)
	require.NotNil(t, got.Title)
	assert.Equal(t, "Item 1", *got.Title)

	key := 3
	require.NoError(t, s.SetItemUserState(f.ID, "1", UserState{SortKey: &key}))
	got, err = s.GetItem(f.ID, "1")
	require.NoError(t, err)
	require.NotNil(t, got.SortKey)
	assert.Equal(t, 3, *got.SortKey)

	require.NoError(t, s.SetItemUserState(f.ID, "1", UserState{ClearSortKey: true}))
	got, err = s.GetItem(f.ID, "1")
	require.NoError(t, err)
	assert.Nil(t, got.SortKey)

	assert.ErrorIs(t, s.SetItemUserState(f.ID, "missing", UserState{Read: boolp(true)}), ErrNotFound)
	assert.NoError(t, s.SetItemUserState(f.ID, "1", UserState{}), "empty change is a no-op")
}

func TestListItemsFilters(t *testing.T) {
	s := newTestStore(t)
	f := testFeed("https://a.example/rss")
	_, err := s.UpsertFeed(f)
	require.NoError(t, err)

	items := []feed.Item{testItem(f.ID, "1", 1), testItem(f.ID, "2", 2), testItem(f.ID, "3", 3)}
	items[2].Content = strp("needle in a haystack")
	_, err = s.MergeItems(f.ID, items, time.Now())
	require.NoError(t, err)

	require.NoError(t, s.SetItemUserState(f.ID, "2", UserState{
		Read:     boolp(true),
		Favorite: boolp(true),
		Tags:     []string{"go"},
	}))

	unread, err := s.ListItems(f.ID, ItemFilter{UnreadOnly: true})
	require.NoError(t, err)
	assert.Len(t, unread, 2)

	favorites, err := s.ListItems(f.ID, ItemFilter{FavoritesOnly: true})
	require.NoError(t, err)
	require.Len(t, favorites, 1)
	assert.Equal(t, "2", favorites[0].ID)

	tagged, err := s.ListItems("", ItemFilter{Tag: "go"})
	require.NoError(t, err)
	require.Len(t, tagged, 1)
	assert.Equal(t, "2", tagged[0].ID)

	found, err := s.SearchItems("needle")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "3", found[0].ID)

	// Newest first by default.
	all, err := s.ListItems(f.ID, ItemFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "3", all[0].ID)
	assert.Equal(t, "1", all[2].ID)
}

func TestListFeedsOrdering(t *testing.T) {
	s := newTestStore(t)

	a := testFeed("https://a.example/rss")
	a.Title = "alpha"
	a.PubDate = timep(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	b := testFeed("https://b.example/rss")
	b.Title = "Beta"
	b.PubDate = timep(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC))

	for _, f := range []*feed.Feed{b, a} {
		_, err := s.UpsertFeed(f)
		require.NoError(t, err)
	}

	byTitle, err := s.ListFeeds(feed.SortTitleAsc)
	require.NoError(t, err)
	require.Len(t, byTitle, 2)
	assert.Equal(t, "alpha", byTitle[0].Title, "title sort is case-insensitive")

	byTitleDesc, err := s.ListFeeds(feed.SortTitleDesc)
	require.NoError(t, err)
	assert.Equal(t, "Beta", byTitleDesc[0].Title)

	newest, err := s.ListFeeds(feed.SortNewest)
	require.NoError(t, err)
	assert.Equal(t, "Beta", newest[0].Title)

	oldest, err := s.ListFeeds(feed.SortOldest)
	require.NoError(t, err)
	assert.Equal(t, "alpha", oldest[0].Title)
}

func TestCorruptTimestampIsReported(t *testing.T) {
	s := newTestStore(t)
	f := testFeed("https://a.example/rss")
	_, err := s.UpsertFeed(f)
	require.NoError(t, err)
	_, err = s.MergeItems(f.ID, []feed.Item{testItem(f.ID, "1", 1)}, time.Now())
	require.NoError(t, err)

	_, err = s.db.Exec("UPDATE feeds SET last_fetched = 'not-a-time' WHERE id = ?", f.ID)
	require.NoError(t, err)
	_, err = s.GetFeed(f.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not-a-time", "a mangled timestamp must not read back as never-fetched")

	_, err = s.db.Exec("UPDATE items SET pub_date = 'garbage' WHERE id = '1'")
	require.NoError(t, err)
	_, err = s.GetItem(f.ID, "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "garbage")
}
