package watchlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/polymarket-mirror/internal/database"
	"github.com/rickgao/polymarket-mirror/internal/model"
)

// PostgresBackend stores the watchlist in PostgreSQL.
type PostgresBackend struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a backend over a migrated PostgreSQL pool.
func NewPostgres(pool *pgxpool.Pool) *PostgresBackend {
	return &PostgresBackend{pool: pool}
}

func (b *PostgresBackend) Insert(ctx context.Context, e model.WatchEntry) (bool, error) {
	tag, err := b.pool.Exec(ctx, `
        INSERT INTO watchlist (address, cursor, added_at) VALUES ($1, $2, $3)
        ON CONFLICT (address) DO NOTHING`,
		e.Address, e.Cursor, e.AddedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (b *PostgresBackend) Delete(ctx context.Context, address string) (bool, error) {
	tag, err := b.pool.Exec(ctx, `DELETE FROM watchlist WHERE address = $1`, address)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (b *PostgresBackend) List(ctx context.Context) ([]model.WatchEntry, error) {
	rows, err := b.pool.Query(ctx, `SELECT address, cursor, added_at FROM watchlist ORDER BY address`)
	if err != nil {
		return nil, fmt.Errorf("query watchlist: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanPostgres)
	if err != nil {
		return nil, fmt.Errorf("scan watchlist: %w", err)
	}
	return out, nil
}

func (b *PostgresBackend) Get(ctx context.Context, address string) (model.WatchEntry, error) {
	rows, err := b.pool.Query(ctx, `SELECT address, cursor, added_at FROM watchlist WHERE address = $1`, address)
	if err != nil {
		return model.WatchEntry{}, fmt.Errorf("query watchlist: %w", err)
	}
	e, err := pgx.CollectExactlyOneRow(rows, scanPostgres)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.WatchEntry{}, fmt.Errorf("%w: %s", model.ErrNotFound, address)
	}
	return e, err
}

func (b *PostgresBackend) SetCursor(ctx context.Context, address string, cursor time.Time) (bool, error) {
	tag, err := b.pool.Exec(ctx,
		`UPDATE watchlist SET cursor = $1 WHERE address = $2 AND cursor <= $1`, cursor, address)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (b *PostgresBackend) RefreshedAt(ctx context.Context) (time.Time, error) {
	var v string
	err := b.pool.QueryRow(ctx, `SELECT value FROM meta WHERE key = $1`, database.MetaRefreshedAt).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("query refresh time: %w", err)
	}
	t, err := database.ParseTime(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: refresh time: %v", model.ErrCorruptState, err)
	}
	return t, nil
}

func (b *PostgresBackend) MarkRefreshed(ctx context.Context, t time.Time) error {
	_, err := b.pool.Exec(ctx, `
        INSERT INTO meta (key, value) VALUES ($1, $2)
        ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		database.MetaRefreshedAt, database.FormatTime(t))
	if err != nil {
		return fmt.Errorf("store refresh time: %w", err)
	}
	return nil
}

func scanPostgres(row pgx.CollectableRow) (model.WatchEntry, error) {
	var e model.WatchEntry
	if err := row.Scan(&e.Address, &e.Cursor, &e.AddedAt); err != nil {
		return model.WatchEntry{}, err
	}
	e.Cursor = e.Cursor.UTC()
	e.AddedAt = e.AddedAt.UTC()
	return e, nil
}
