package knowledge

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Postgres stores documents in the knowledge_documents table and ranks them
// with PostgreSQL full-text search.
type Postgres struct {
	db *sqlx.DB
}

var _ Store = (*Postgres)(nil)

// NewPostgres creates a store on db.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

type row struct {
	ID      string  `db:"id"`
	Title   string  `db:"title"`
	Content string  `db:"content"`
	Tags    string  `db:"tags"`
	Source  string  `db:"source"`
	Score   float64 `db:"score"`
}

// Add upserts docs.
func (p *Postgres) Add(ctx context.Context, docs ...Document) error {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `
		INSERT INTO knowledge_documents (id, title, content, tags, source)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			tags = EXCLUDED.tags,
			source = EXCLUDED.source`

	for _, d := range docs {
		if d.ID == "" {
			d.ID = Slug(d.Title)
		}
		if _, err := tx.ExecContext(ctx, q, d.ID, d.Title, d.Content, strings.Join(d.Tags, ","), d.Source); err != nil {
			return fmt.Errorf("failed to store document %s: %w", d.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit documents: %w", err)
	}
	return nil
}

// Search ranks documents with ts_rank against plainto_tsquery.
func (p *Postgres) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	const q = `
		SELECT id, title, content, tags, source,
			ts_rank(to_tsvector('english', title || ' ' || content || ' ' || tags),
			        plainto_tsquery('english', $1)) AS score
		FROM knowledge_documents
		WHERE to_tsvector('english', title || ' ' || content || ' ' || tags) @@ plainto_tsquery('english', $1)
		ORDER BY score DESC, id
		LIMIT $2`

	var rows []row
	if err := p.db.SelectContext(ctx, &rows, q, query, limit); err != nil {
		return nil, fmt.Errorf("knowledge search failed: %w", err)
	}

	results := make([]Result, 0, len(rows))
	for _, r := range rows {
		var tags []string
		if r.Tags != "" {
			tags = strings.Split(r.Tags, ",")
		}
		results = append(results, Result{
			Document: Document{ID: r.ID, Title: r.Title, Content: r.Content, Tags: tags, Source: r.Source},
			Score:    r.Score,
		})
	}
	return results, nil
}
