package database

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite"

	"github.com/rickgao/polymarket-mirror/internal/config"
)

// Handle holds the open store. Exactly one of SQL or Pool is set.
type Handle struct {
	// SQL is the SQLite database when the driver is sqlite.
	SQL *sql.DB

	// Pool is the PostgreSQL pool when the driver is postgres.
	Pool *pgxpool.Pool
}

// Open connects to the configured store and applies migrations.
func Open(ctx context.Context, cfg config.StorageConfig) (*Handle, error) {
	switch cfg.Driver {
	case "sqlite", "":
		db, err := OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Handle{SQL: db}, nil
	case "postgres":
		pool, err := Connect(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := MigratePostgres(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		return &Handle{Pool: pool}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// Close releases the underlying connection(s).
func (h *Handle) Close() {
	if h.SQL != nil {
		h.SQL.Close()
	}
	if h.Pool != nil {
		h.Pool.Close()
	}
}

// Ping verifies the store is reachable.
func (h *Handle) Ping(ctx context.Context) error {
	switch {
	case h.SQL != nil:
		if err := h.SQL.PingContext(ctx); err != nil {
			return fmt.Errorf("ping sqlite: %w", err)
		}
	case h.Pool != nil:
		if err := h.Pool.Ping(ctx); err != nil {
			return fmt.Errorf("ping postgres: %w", err)
		}
	default:
		return errors.New("store not open")
	}
	return nil
}

// OpenSQLite opens (and creates if needed) the SQLite database at path.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("sqlite path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Single writer; SQLite serializes anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(0)

	if err := MigrateSQLite(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// applicationName tags server-side sessions so operators can find them in
// pg_stat_activity.
const applicationName = "copytrader"

// DSN returns the postgres URL for cfg. Credentials are escaped; an empty
// ssl mode means prefer.
func DSN(cfg config.DBConfig) string {
	q := url.Values{}
	q.Set("sslmode", cmp.Or(cfg.SSLMode, "prefer"))
	q.Set("application_name", applicationName)

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Connect creates a single PostgreSQL connection pool.
func Connect(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	connStr := DSN(cfg)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}
