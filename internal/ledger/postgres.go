package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/polymarket-mirror/internal/model"
)

// PostgresLedger stores the ledger in PostgreSQL.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a ledger over a migrated PostgreSQL pool.
func NewPostgres(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

const pgSelect = `SELECT source_trade_id, ts, market_id, asset_id, side, price::text, copy_amount::text, executed_order_id FROM ledger`

// Append records an entry.
func (l *PostgresLedger) Append(ctx context.Context, e model.LedgerEntry) error {
	if err := validate(e); err != nil {
		return err
	}
	tag, err := l.pool.Exec(ctx, `
        INSERT INTO ledger (source_trade_id, ts, market_id, asset_id, side, price, copy_amount, executed_order_id)
        VALUES ($1, $2, $3, $4, $5, $6::numeric, $7::numeric, $8)
        ON CONFLICT (source_trade_id) DO NOTHING`,
		e.SourceTradeID,
		e.Timestamp.UTC(),
		e.MarketID,
		e.AssetID,
		string(e.Side),
		e.Price.String(),
		e.CopyAmount.String(),
		e.ExecutedOrderID,
	)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", model.ErrDuplicateTrade, e.SourceTradeID)
	}
	return nil
}

// Has reports whether the source trade was already recorded.
func (l *PostgresLedger) Has(ctx context.Context, sourceTradeID string) (bool, error) {
	var exists bool
	err := l.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM ledger WHERE source_trade_id = $1)`, sourceTradeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query ledger: %w", err)
	}
	return exists, nil
}

// EntriesSince returns entries at or after since.
func (l *PostgresLedger) EntriesSince(ctx context.Context, since time.Time) ([]model.LedgerEntry, error) {
	return l.query(ctx, pgSelect+` WHERE ts >= $1 ORDER BY ts, id`, since.UTC())
}

// Entries returns every entry.
func (l *PostgresLedger) Entries(ctx context.Context) ([]model.LedgerEntry, error) {
	return l.query(ctx, pgSelect+` ORDER BY ts, id`)
}

// MarketEntries returns the entries for one market.
func (l *PostgresLedger) MarketEntries(ctx context.Context, marketID string) ([]model.LedgerEntry, error) {
	return l.query(ctx, pgSelect+` WHERE market_id = $1 ORDER BY ts, id`, marketID)
}

func (l *PostgresLedger) query(ctx context.Context, q string, args ...any) ([]model.LedgerEntry, error) {
	rows, err := l.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}

	raw, err := pgx.CollectRows(rows, func(rows pgx.CollectableRow) (row, error) {
		var r row
		err := rows.Scan(&r.sourceTradeID, &r.ts, &r.marketID, &r.assetID, &r.side, &r.price, &r.copyAmount, &r.orderID)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan ledger: %w", err)
	}

	out := make([]model.LedgerEntry, 0, len(raw))
	for _, r := range raw {
		e, err := r.entry()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
