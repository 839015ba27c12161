// Package store owns the persisted feed and item tables. It runs on an
// embedded SQLite database, or fully in memory when caching is disabled,
// and is the only component allowed to mutate persisted records.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/huandu/go-sqlbuilder"
	_ "modernc.org/sqlite"

	"github.com/rektdeckard/moccasin/internal/domain/feed"
)

// ErrNotFound is returned when a feed or item id resolves to no record.
var ErrNotFound = errors.New("record not found")

// Store is an embedded feed/item table pair.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single connection keeps the in-memory mode coherent (every pooled
	// connection would otherwise see its own empty database) and serializes
	// writers, which is how SQLite wants to be used anyway.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// OpenMemory opens a non-durable store for cache-disabled runs and tests.
func OpenMemory() (*Store, error) {
	return Open(":memory:")
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping distinguishes a dead store (cycle-fatal) from a per-record failure.
func (s *Store) Ping() error {
	return s.db.Ping()
}

func (s *Store) init() error {
	if _, err := s.db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS feeds (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		categories TEXT NOT NULL DEFAULT '[]',
		url TEXT NOT NULL UNIQUE,
		link TEXT NOT NULL DEFAULT '',
		ttl TEXT,
		pub_date TEXT,
		last_fetched TEXT
	);

	CREATE TABLE IF NOT EXISTS items (
		id TEXT NOT NULL,
		feed_id TEXT NOT NULL REFERENCES feeds(id) ON DELETE CASCADE,
		title TEXT,
		author TEXT,
		content TEXT,
		description TEXT,
		text_description TEXT,
		categories TEXT NOT NULL DEFAULT '[]',
		link TEXT,
		pub_date TEXT,
		read INTEGER NOT NULL DEFAULT 0,
		favorite INTEGER NOT NULL DEFAULT 0,
		tags TEXT NOT NULL DEFAULT '[]',
		sort_key INTEGER,
		PRIMARY KEY (feed_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_items_pub_date ON items(pub_date DESC);
	CREATE INDEX IF NOT EXISTS idx_items_read ON items(read);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// UpsertFeed inserts the feed or overwrites its canonical fields. The source
// URL is immutable and last_fetched is advanced only by MergeItems, never
// here. The stored record is returned.
func (s *Store) UpsertFeed(f *feed.Feed) (*feed.Feed, error) {
	_, err := s.db.Exec(`
		INSERT INTO feeds (id, title, description, categories, url, link, ttl, pub_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			categories = excluded.categories,
			link = excluded.link,
			ttl = excluded.ttl,
			pub_date = excluded.pub_date`,
		f.ID, f.Title, f.Description, marshalCategories(f.Categories),
		f.SourceURL, f.SiteLink, nullString(f.TTL), nullTime(f.PubDate),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert feed %s: %w", f.ID, err)
	}
	return s.GetFeed(f.ID)
}

// GetFeed returns the stored feed record by id.
func (s *Store) GetFeed(id string) (*feed.Feed, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(feedColumns...).From("feeds")
	sb.Where(sb.Equal("id", id))
	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	f, err := scanFeed(s.db.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("feed %s: %w", id, ErrNotFound)
	}
	return f, err
}

// GetFeedByURL returns the stored feed record by source URL.
func (s *Store) GetFeedByURL(url string) (*feed.Feed, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(feedColumns...).From("feeds")
	sb.Where(sb.Equal("url", url))
	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	f, err := scanFeed(s.db.QueryRow(query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("feed %s: %w", url, ErrNotFound)
	}
	return f, err
}

// ListFeeds returns all feeds in the requested order.
func (s *Store) ListFeeds(order feed.SortOrder) ([]feed.Feed, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select(feedColumns...).From("feeds")
	switch order {
	case feed.SortTitleAsc:
		sb.OrderBy("title COLLATE NOCASE ASC")
	case feed.SortTitleDesc:
		sb.OrderBy("title COLLATE NOCASE DESC")
	case feed.SortOldest:
		sb.OrderBy("pub_date IS NULL ASC", "pub_date ASC")
	default:
		sb.OrderBy("pub_date IS NULL ASC", "pub_date DESC")
	}
	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list feeds: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var feeds []feed.Feed
	for rows.Next() {
		f, err := scanFeed(rows)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, *f)
	}
	return feeds, rows.Err()
}

// DeleteFeed removes a feed and, by cascade, all of its items.
func (s *Store) DeleteFeed(id string) error {
	res, err := s.db.Exec("DELETE FROM feeds WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete feed %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("feed %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteFeedByURL removes a feed addressed by its source URL.
func (s *Store) DeleteFeedByURL(url string) error {
	return s.DeleteFeed(feed.NewFeedID(url))
}

var feedColumns = []string{
	"id", "title", "description", "categories", "url", "link", "ttl", "pub_date", "last_fetched",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeed(row rowScanner) (*feed.Feed, error) {
	var f feed.Feed
	var categories string
	var ttl, pubDate, lastFetched sql.NullString
	err := row.Scan(&f.ID, &f.Title, &f.Description, &categories,
		&f.SourceURL, &f.SiteLink, &ttl, &pubDate, &lastFetched)
	if err != nil {
		return nil, err
	}
	f.Categories = unmarshalCategories(categories)
	f.TTL = fromNullString(ttl)
	if f.PubDate, err = fromNullTime(pubDate); err != nil {
		return nil, fmt.Errorf("feed %s pub_date: %w", f.ID, err)
	}
	if f.LastFetched, err = fromNullTime(lastFetched); err != nil {
		return nil, fmt.Errorf("feed %s last_fetched: %w", f.ID, err)
	}
	return &f, nil
}

func marshalCategories(cats []feed.Category) string {
	if cats == nil {
		cats = []feed.Category{}
	}
	b, err := json.Marshal(cats)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func unmarshalCategories(raw string) []feed.Category {
	var cats []feed.Category
	if err := json.Unmarshal([]byte(raw), &cats); err != nil {
		return nil
	}
	if len(cats) == 0 {
		return nil
	}
	return cats
}

func marshalTags(tags []string) string {
	if tags == nil {
		tags = []string{}
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func unmarshalTags(raw string) []string {
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// fromNullTime decodes a stored RFC3339 timestamp. A NULL column is a
// legitimate absent value; a non-NULL value that fails to parse is a
// corrupt record and is reported, not silently treated as absent.
func fromNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil, fmt.Errorf("corrupt timestamp %q: %w", ns.String, err)
	}
	return &t, nil
}
