package posts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"autoblog/pkg/host"

	"github.com/jmoiron/sqlx"
)

// Postgres stores posts and post meta in PostgreSQL.
type Postgres struct {
	db      *sqlx.DB
	baseURL string
}

var _ Store = (*Postgres)(nil)

// NewPostgres creates a store on db.
func NewPostgres(db *sqlx.DB, baseURL string) *Postgres {
	return &Postgres{db: db, baseURL: baseURL}
}

const postColumns = `id, title, content, status, category, author_id, featured_image, created_at`

func (s *Postgres) Create(ctx context.Context, p *host.Post) (int64, error) {
	if p == nil || strings.TrimSpace(p.Title) == "" {
		return 0, fmt.Errorf("post title is required")
	}
	if p.Status == "" {
		p.Status = host.StatusDraft
	}
	if !ValidStatus(p.Status) {
		return 0, fmt.Errorf("invalid post status %q", p.Status)
	}

	rows, err := s.db.NamedQueryContext(ctx, `
		INSERT INTO posts (title, content, status, category, author_id, featured_image)
		VALUES (:title, :content, :status, :category, :author_id, :featured_image)
		RETURNING id, created_at`, p)
	if err != nil {
		return 0, fmt.Errorf("failed to insert post: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return 0, fmt.Errorf("failed to insert post: no id returned")
	}
	if err := rows.Scan(&p.ID, &p.CreatedAt); err != nil {
		return 0, fmt.Errorf("failed to read post id: %w", err)
	}
	return p.ID, nil
}

func (s *Postgres) Get(ctx context.Context, id int64) (*host.Post, error) {
	var p host.Post
	err := s.db.GetContext(ctx, &p, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("post %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post %d: %w", id, err)
	}
	return &p, nil
}

// List returns up to limit posts, newest first. A limit of 0 returns all.
func (s *Postgres) List(ctx context.Context, limit int) ([]host.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	var out []host.Post
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return out, nil
}

func (s *Postgres) SetStatus(ctx context.Context, id int64, status string) error {
	if !ValidStatus(status) {
		return fmt.Errorf("invalid post status %q", status)
	}
	return s.exec(ctx, id, `UPDATE posts SET status = $2 WHERE id = $1`, status)
}

func (s *Postgres) SetFeaturedImage(ctx context.Context, id int64, url string) error {
	return s.exec(ctx, id, `UPDATE posts SET featured_image = $2 WHERE id = $1`, url)
}

func (s *Postgres) exec(ctx context.Context, id int64, query string, value string) error {
	res, err := s.db.ExecContext(ctx, query, id, value)
	if err != nil {
		return fmt.Errorf("failed to update post %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("post %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *Postgres) GetMeta(ctx context.Context, id int64, key string) (string, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM post_meta WHERE post_id = $1 AND key = $2`, id, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get meta %s for post %d: %w", key, id, err)
	}
	return value, true, nil
}

func (s *Postgres) SetMeta(ctx context.Context, id int64, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO post_meta (post_id, key, value) VALUES ($1, $2, $3)
		ON CONFLICT (post_id, key) DO UPDATE SET value = EXCLUDED.value`,
		id, key, value)
	if err != nil {
		return fmt.Errorf("failed to set meta %s for post %d: %w", key, id, err)
	}
	return nil
}

func (s *Postgres) DeleteMeta(ctx context.Context, id int64, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM post_meta WHERE post_id = $1 AND key = $2`, id, key); err != nil {
		return fmt.Errorf("failed to delete meta %s for post %d: %w", key, id, err)
	}
	return nil
}

func (s *Postgres) Permalink(p *host.Post) string {
	return Permalink(s.baseURL, p)
}
