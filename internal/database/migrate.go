package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TimeLayout is the fixed-width UTC layout used for SQLite timestamp columns,
// so that string comparison matches chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatTime renders t for a SQLite timestamp column.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a SQLite timestamp column.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(TimeLayout, s)
}

// MetaRefreshedAt is the meta key holding the last trader refresh time.
const MetaRefreshedAt = "trader_refreshed_at"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS watchlist (
    address  TEXT PRIMARY KEY,
    cursor   TEXT NOT NULL,
    added_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ledger (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    source_trade_id   TEXT NOT NULL UNIQUE,
    ts                TEXT NOT NULL,
    market_id         TEXT NOT NULL,
    asset_id          TEXT NOT NULL,
    side              TEXT NOT NULL,
    price             TEXT NOT NULL,
    copy_amount       TEXT NOT NULL,
    executed_order_id TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ledger_ts ON ledger(ts);
CREATE INDEX IF NOT EXISTS idx_ledger_market ON ledger(market_id, ts);

CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS watchlist (
    address  TEXT PRIMARY KEY,
    cursor   TIMESTAMPTZ NOT NULL,
    added_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS ledger (
    id                BIGSERIAL PRIMARY KEY,
    source_trade_id   TEXT NOT NULL UNIQUE,
    ts                TIMESTAMPTZ NOT NULL,
    market_id         TEXT NOT NULL,
    asset_id          TEXT NOT NULL,
    side              TEXT NOT NULL,
    price             NUMERIC NOT NULL,
    copy_amount       NUMERIC NOT NULL,
    executed_order_id TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ledger_ts ON ledger(ts);
CREATE INDEX IF NOT EXISTS idx_ledger_market ON ledger(market_id, ts);

CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// MigrateSQLite creates the schema if it does not exist.
func MigrateSQLite(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}
	return nil
}

// MigratePostgres creates the schema if it does not exist.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	return nil
}
