package options

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"autoblog/pkg/host"

	"github.com/jmoiron/sqlx"
)

// Postgres stores options as JSONB rows in the options table.
type Postgres struct {
	db *sqlx.DB
}

var _ host.OptionStore = (*Postgres)(nil)

// NewPostgres creates a store on db. The schema is created by the
// storage/postgres migrations.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

func (p *Postgres) Get(ctx context.Context, key string) (map[string]any, bool, error) {
	var data []byte
	err := p.db.GetContext(ctx, &data, `SELECT value FROM options WHERE name = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get option %s: %w", key, err)
	}

	value := map[string]any{}
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, false, fmt.Errorf("failed to decode option %s: %w", key, err)
	}
	return value, true, nil
}

func (p *Postgres) Set(ctx context.Context, key string, value map[string]any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode option %s: %w", key, err)
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO options (name, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()`,
		key, data)
	if err != nil {
		return fmt.Errorf("failed to set option %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM options WHERE name = $1`, key); err != nil {
		return fmt.Errorf("failed to delete option %s: %w", key, err)
	}
	return nil
}
