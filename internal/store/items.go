package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/huandu/go-sqlbuilder"

	"github.com/rektdeckard/moccasin/internal/domain/feed"
)

// MergeResult reports how one feed's incoming items reconciled.
type MergeResult struct {
	Created   int
	Updated   int
	Unchanged int
}

// ItemFilter narrows item list queries.
type ItemFilter struct {
	UnreadOnly    bool
	FavoritesOnly bool
	Tag           string
	Query         string // matches title, description, or content
}

// UserState describes a change to an item's user-owned fields. Nil members
// leave the corresponding field untouched.
type UserState struct {
	Read         *bool
	Favorite     *bool
	Tags         []string
	SortKey      *int
	ClearSortKey bool
}

// canonical is the comparable tuple of remote-sourced item columns.
type canonical struct {
	title           sql.NullString
	author          sql.NullString
	content         sql.NullString
	description     sql.NullString
	textDescription sql.NullString
	categories      string
	link            sql.NullString
	pubDate         sql.NullString
}

func itemCanonical(it *feed.Item) canonical {
	return canonical{
		title:           toNull(it.Title),
		author:          toNull(it.Author),
		content:         toNull(it.Content),
		description:     toNull(it.Description),
		textDescription: toNull(it.TextDescription),
		categories:      marshalCategories(it.Categories),
		link:            toNull(it.Link),
		pubDate:         toNullTime(it.PubDate),
	}
}

// MergeItems reconciles one feed's freshly fetched items against the stored
// rows, preserving user-owned fields, and advances last_fetched. The whole
// merge runs in a single transaction: a failure part-way leaves the feed's
// prior state intact, so a concurrent reader never observes a torn feed.
func (s *Store) MergeItems(feedID string, items []feed.Item, fetchedAt time.Time) (MergeResult, error) {
	var result MergeResult

	tx, err := s.db.Begin()
	if err != nil {
		return result, fmt.Errorf("begin merge for feed %s: %w", feedID, err)
	}
	defer func() { _ = tx.Rollback() }()

	var one int
	if err := tx.QueryRow("SELECT 1 FROM feeds WHERE id = ?", feedID).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return MergeResult{}, fmt.Errorf("merge feed %s: %w", feedID, ErrNotFound)
		}
		return MergeResult{}, fmt.Errorf("merge feed %s: %w", feedID, err)
	}

	for i := range items {
		it := &items[i]
		if it.ID == "" {
			return MergeResult{}, fmt.Errorf("merge feed %s: item %d has no id", feedID, i)
		}
		if it.FeedID != "" && it.FeedID != feedID {
			return MergeResult{}, fmt.Errorf("merge feed %s: item %s belongs to feed %s", feedID, it.ID, it.FeedID)
		}

		var existing canonical
		err := tx.QueryRow(`
			SELECT title, author, content, description, text_description, categories, link, pub_date
			FROM items WHERE feed_id = ? AND id = ?`, feedID, it.ID).
			Scan(&existing.title, &existing.author, &existing.content, &existing.description,
				&existing.textDescription, &existing.categories, &existing.link, &existing.pubDate)

		incoming := itemCanonical(it)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			_, err = tx.Exec(`
				INSERT INTO items (id, feed_id, title, author, content, description,
					text_description, categories, link, pub_date, read, favorite, tags, sort_key)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, '[]', NULL)`,
				it.ID, feedID, incoming.title, incoming.author, incoming.content,
				incoming.description, incoming.textDescription, incoming.categories,
				incoming.link, incoming.pubDate)
			if err != nil {
				return MergeResult{}, fmt.Errorf("merge feed %s: insert item %s: %w", feedID, it.ID, err)
			}
			result.Created++
		case err != nil:
			return MergeResult{}, fmt.Errorf("merge feed %s: read item %s: %w", feedID, it.ID, err)
		case existing == incoming:
			result.Unchanged++
		default:
			// Canonical fields only. Read, favorite, tags, and sort_key are
			// user-owned and never touched by a merge.
			_, err = tx.Exec(`
				UPDATE items SET title = ?, author = ?, content = ?, description = ?,
					text_description = ?, categories = ?, link = ?, pub_date = ?
				WHERE feed_id = ? AND id = ?`,
				incoming.title, incoming.author, incoming.content, incoming.description,
				incoming.textDescription, incoming.categories, incoming.link, incoming.pubDate,
				feedID, it.ID)
			if err != nil {
				return MergeResult{}, fmt.Errorf("merge feed %s: update item %s: %w", feedID, it.ID, err)
			}
			result.Updated++
		}
	}

	res, err := tx.Exec("UPDATE feeds SET last_fetched = ? WHERE id = ?",
		fetchedAt.UTC().Format(time.RFC3339), feedID)
	if err != nil {
		return MergeResult{}, fmt.Errorf("merge feed %s: advance last_fetched: %w", feedID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return MergeResult{}, fmt.Errorf("merge feed %s: %w", feedID, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return MergeResult{}, fmt.Errorf("commit merge for feed %s: %w", feedID, err)
	}
	return result, nil
}

// ListItems returns items for one feed, or across all feeds when feedID is
// empty, newest first. The view layer applies any further ordering.
func (s *Store) ListItems(feedID string, filter ItemFilter) ([]feed.Item, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(itemColumns...).From("items")
	if feedID != "" {
		sb.Where(sb.Equal("feed_id", feedID))
	}
	if filter.UnreadOnly {
		sb.Where(sb.Equal("read", 0))
	}
	if filter.FavoritesOnly {
		sb.Where(sb.Equal("favorite", 1))
	}
	if filter.Tag != "" {
		// Tags are stored as a JSON string array; match the quoted element.
		sb.Where(sb.Like("tags", `%"`+filter.Tag+`"%`))
	}
	if filter.Query != "" {
		pattern := "%" + filter.Query + "%"
		sb.Where(sb.Or(
			sb.Like("title", pattern),
			sb.Like("description", pattern),
			sb.Like("content", pattern),
		))
	}
	sb.OrderBy("pub_date IS NULL ASC", "pub_date DESC", "id ASC")
	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []feed.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// GetItem returns a single stored item.
func (s *Store) GetItem(feedID, itemID string) (*feed.Item, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(itemColumns...).From("items")
	sb.Where(sb.Equal("feed_id", feedID), sb.Equal("id", itemID))
	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	it, err := scanItem(s.db.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %s/%s: %w", feedID, itemID, ErrNotFound)
	}
	return it, err
}

// SetItemUserState mutates only user-owned fields. It is the isolated
// mutation path: canonical columns are unreachable from here.
func (s *Store) SetItemUserState(feedID, itemID string, change UserState) error {
	ub := sqlbuilder.NewUpdateBuilder()
	ub.Update("items")

	var assignments []string
	if change.Read != nil {
		assignments = append(assignments, ub.Assign("read", boolToInt(*change.Read)))
	}
	if change.Favorite != nil {
		assignments = append(assignments, ub.Assign("favorite", boolToInt(*change.Favorite)))
	}
	if change.Tags != nil {
		assignments = append(assignments, ub.Assign("tags", marshalTags(change.Tags)))
	}
	if change.SortKey != nil {
		assignments = append(assignments, ub.Assign("sort_key", *change.SortKey))
	} else if change.ClearSortKey {
		assignments = append(assignments, "sort_key = NULL")
	}
	if len(assignments) == 0 {
		return nil
	}

	ub.Set(assignments...)
	ub.Where(ub.Equal("feed_id", feedID), ub.Equal("id", itemID))
	query, args := ub.BuildWithFlavor(sqlbuilder.SQLite)

	res, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("set user state for item %s/%s: %w", feedID, itemID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("item %s/%s: %w", feedID, itemID, ErrNotFound)
	}
	return nil
}

// SearchItems matches free text against title, description, and content
// across all feeds.
func (s *Store) SearchItems(query string) ([]feed.Item, error) {
	return s.ListItems("", ItemFilter{Query: query})
}

var itemColumns = []string{
	"id", "feed_id", "title", "author", "content", "description",
	"text_description", "categories", "link", "pub_date",
	"read", "favorite", "tags", "sort_key",
}

func scanItem(row rowScanner) (*feed.Item, error) {
	var it feed.Item
	var title, author, content, description, textDescription, link, pubDate sql.NullString
	var categories, tags string
	var read, favorite int
	var sortKey sql.NullInt64

	err := row.Scan(&it.ID, &it.FeedID, &title, &author, &content, &description,
		&textDescription, &categories, &link, &pubDate, &read, &favorite, &tags, &sortKey)
	if err != nil {
		return nil, err
	}

	it.Title = fromNullString(title)
	it.Author = fromNullString(author)
	it.Content = fromNullString(content)
	it.Description = fromNullString(description)
	it.TextDescription = fromNullString(textDescription)
	it.Categories = unmarshalCategories(categories)
	it.Link = fromNullString(link)
	if it.PubDate, err = fromNullTime(pubDate); err != nil {
		return nil, fmt.Errorf("item %s/%s pub_date: %w", it.FeedID, it.ID, err)
	}
	it.Read = read != 0
	it.Favorite = favorite != 0
	it.Tags = unmarshalTags(tags)
	if sortKey.Valid {
		k := int(sortKey.Int64)
		it.SortKey = &k
	}
	return &it, nil
}

func toNull(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func toNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
