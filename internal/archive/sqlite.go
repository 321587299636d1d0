package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"newsbot/internal/model"
	"newsbot/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Store backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Record inserts one published post and populates its ID. Re-recording
// the same entry id is ignored, matching the at-least-once publish
// semantics upstream.
func (s *SQLite) Record(ctx context.Context, post *model.ArchivedPost) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO published_posts
		   (entry_id, feed_url, title, link, rewritten, image_used, published_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		post.EntryID, post.FeedURL, post.Title, post.Link,
		boolToInt(post.Rewritten), string(post.ImageUsed),
		post.PublishedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert published post: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		post.ID = id
	}
	return nil
}

// ListRecent returns the most recently published posts, newest first.
func (s *SQLite) ListRecent(ctx context.Context, limit int) ([]model.ArchivedPost, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, entry_id, feed_url, title, link, rewritten, image_used, published_at
		 FROM published_posts ORDER BY published_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query published posts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var posts []model.ArchivedPost
	for rows.Next() {
		var p model.ArchivedPost
		var rewritten int
		var imageUsed, publishedAt string
		if err := rows.Scan(&p.ID, &p.EntryID, &p.FeedURL, &p.Title, &p.Link,
			&rewritten, &imageUsed, &publishedAt); err != nil {
			return nil, fmt.Errorf("scan published post: %w", err)
		}
		p.Rewritten = rewritten == 1
		p.ImageUsed = model.ImageUse(imageUsed)
		p.PublishedAt, _ = time.Parse(timeLayout, publishedAt)
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
