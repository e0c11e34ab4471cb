package watchlist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rickgao/polymarket-mirror/internal/database"
	"github.com/rickgao/polymarket-mirror/internal/model"
)

// SQLiteBackend stores the watchlist in SQLite.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLite creates a backend over a migrated SQLite database.
func NewSQLite(db *sql.DB) *SQLiteBackend {
	return &SQLiteBackend{db: db}
}

func (b *SQLiteBackend) Insert(ctx context.Context, e model.WatchEntry) (bool, error) {
	res, err := b.db.ExecContext(ctx, `
        INSERT INTO watchlist (address, cursor, added_at) VALUES (?, ?, ?)
        ON CONFLICT(address) DO NOTHING`,
		e.Address, database.FormatTime(e.Cursor), database.FormatTime(e.AddedAt))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (b *SQLiteBackend) Delete(ctx context.Context, address string) (bool, error) {
	res, err := b.db.ExecContext(ctx, `DELETE FROM watchlist WHERE address = ?`, address)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (b *SQLiteBackend) List(ctx context.Context) ([]model.WatchEntry, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT address, cursor, added_at FROM watchlist ORDER BY address`)
	if err != nil {
		return nil, fmt.Errorf("query watchlist: %w", err)
	}
	defer rows.Close()

	var out []model.WatchEntry
	for rows.Next() {
		e, err := scanSQLite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watchlist: %w", err)
	}
	return out, nil
}

func (b *SQLiteBackend) Get(ctx context.Context, address string) (model.WatchEntry, error) {
	r := b.db.QueryRowContext(ctx, `SELECT address, cursor, added_at FROM watchlist WHERE address = ?`, address)
	e, err := scanSQLite(r)
	if errors.Is(err, sql.ErrNoRows) {
		return model.WatchEntry{}, fmt.Errorf("%w: %s", model.ErrNotFound, address)
	}
	return e, err
}

func (b *SQLiteBackend) SetCursor(ctx context.Context, address string, cursor time.Time) (bool, error) {
	c := database.FormatTime(cursor)
	res, err := b.db.ExecContext(ctx,
		`UPDATE watchlist SET cursor = ? WHERE address = ? AND cursor <= ?`, c, address, c)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (b *SQLiteBackend) RefreshedAt(ctx context.Context) (time.Time, error) {
	var v string
	err := b.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, database.MetaRefreshedAt).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
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

func (b *SQLiteBackend) MarkRefreshed(ctx context.Context, t time.Time) error {
	_, err := b.db.ExecContext(ctx, `
        INSERT INTO meta (key, value) VALUES (?, ?)
        ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		database.MetaRefreshedAt, database.FormatTime(t))
	if err != nil {
		return fmt.Errorf("store refresh time: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLite(s scanner) (model.WatchEntry, error) {
	var addr, cursor, added string
	if err := s.Scan(&addr, &cursor, &added); err != nil {
		return model.WatchEntry{}, err
	}
	c, err := database.ParseTime(cursor)
	if err != nil {
		return model.WatchEntry{}, fmt.Errorf("%w: watchlist %s cursor: %v", model.ErrCorruptState, addr, err)
	}
	a, err := database.ParseTime(added)
	if err != nil {
		return model.WatchEntry{}, fmt.Errorf("%w: watchlist %s added_at: %v", model.ErrCorruptState, addr, err)
	}
	return model.WatchEntry{Address: addr, Cursor: c, AddedAt: a}, nil
}
