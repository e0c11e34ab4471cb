package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rickgao/polymarket-mirror/internal/database"
	"github.com/rickgao/polymarket-mirror/internal/model"
)

// SQLiteLedger stores the ledger in SQLite.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLite creates a ledger over a migrated SQLite database.
func NewSQLite(db *sql.DB) *SQLiteLedger {
	return &SQLiteLedger{db: db}
}

const sqliteColumns = `source_trade_id, ts, market_id, asset_id, side, price, copy_amount, executed_order_id`

// Append records an entry.
func (l *SQLiteLedger) Append(ctx context.Context, e model.LedgerEntry) error {
	if err := validate(e); err != nil {
		return err
	}
	res, err := l.db.ExecContext(ctx, `
        INSERT INTO ledger (`+sqliteColumns+`)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(source_trade_id) DO NOTHING`,
		e.SourceTradeID,
		database.FormatTime(e.Timestamp),
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
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", model.ErrDuplicateTrade, e.SourceTradeID)
	}
	return nil
}

// Has reports whether the source trade was already recorded.
func (l *SQLiteLedger) Has(ctx context.Context, sourceTradeID string) (bool, error) {
	var n int
	err := l.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM ledger WHERE source_trade_id = ?`, sourceTradeID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query ledger: %w", err)
	}
	return n > 0, nil
}

// EntriesSince returns entries at or after since.
func (l *SQLiteLedger) EntriesSince(ctx context.Context, since time.Time) ([]model.LedgerEntry, error) {
	return l.query(ctx, `SELECT `+sqliteColumns+` FROM ledger WHERE ts >= ? ORDER BY ts, id`,
		database.FormatTime(since))
}

// Entries returns every entry.
func (l *SQLiteLedger) Entries(ctx context.Context) ([]model.LedgerEntry, error) {
	return l.query(ctx, `SELECT `+sqliteColumns+` FROM ledger ORDER BY ts, id`)
}

// MarketEntries returns the entries for one market.
func (l *SQLiteLedger) MarketEntries(ctx context.Context, marketID string) ([]model.LedgerEntry, error) {
	return l.query(ctx, `SELECT `+sqliteColumns+` FROM ledger WHERE market_id = ? ORDER BY ts, id`, marketID)
}

func (l *SQLiteLedger) query(ctx context.Context, q string, args ...any) ([]model.LedgerEntry, error) {
	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var out []model.LedgerEntry
	for rows.Next() {
		var (
			r  row
			ts string
		)
		if err := rows.Scan(&r.sourceTradeID, &ts, &r.marketID, &r.assetID, &r.side, &r.price, &r.copyAmount, &r.orderID); err != nil {
			return nil, fmt.Errorf("scan ledger: %w", err)
		}
		r.ts, err = database.ParseTime(ts)
		if err != nil {
			return nil, fmt.Errorf("%w: ledger %s timestamp: %v", model.ErrCorruptState, r.sourceTradeID, err)
		}
		e, err := r.entry()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger: %w", err)
	}
	return out, nil
}
