// Package ledger is the append-only history of executed mirror trades.
//
// Entries are unique by source trade id. Reads return freshly decoded copies;
// a row that cannot be decoded is reported as model.ErrCorruptState.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/polymarket-mirror/internal/database"
	"github.com/rickgao/polymarket-mirror/internal/model"
)

// Ledger records executed mirror trades.
type Ledger interface {
	// Append records an entry. Returns model.ErrDuplicateTrade if the source
	// trade was already recorded.
	Append(ctx context.Context, e model.LedgerEntry) error

	// Has reports whether the source trade was already recorded.
	Has(ctx context.Context, sourceTradeID string) (bool, error)

	// EntriesSince returns entries with Timestamp >= since, oldest first.
	EntriesSince(ctx context.Context, since time.Time) ([]model.LedgerEntry, error)

	// Entries returns every entry, oldest first.
	Entries(ctx context.Context) ([]model.LedgerEntry, error)

	// MarketEntries returns the entries for one market, oldest first.
	MarketEntries(ctx context.Context, marketID string) ([]model.LedgerEntry, error)
}

// New returns the ledger backed by the open store.
func New(h *database.Handle) Ledger {
	if h.Pool != nil {
		return NewPostgres(h.Pool)
	}
	return NewSQLite(h.SQL)
}

// row is the textual form shared by both drivers.
type row struct {
	sourceTradeID string
	ts            time.Time
	marketID      string
	assetID       string
	side          string
	price         string
	copyAmount    string
	orderID       string
}

func (r row) entry() (model.LedgerEntry, error) {
	side, err := model.ParseSide(r.side)
	if err != nil {
		return model.LedgerEntry{}, fmt.Errorf("%w: ledger %s: %v", model.ErrCorruptState, r.sourceTradeID, err)
	}
	price, err := decimal.NewFromString(r.price)
	if err != nil {
		return model.LedgerEntry{}, fmt.Errorf("%w: ledger %s price: %v", model.ErrCorruptState, r.sourceTradeID, err)
	}
	amount, err := decimal.NewFromString(r.copyAmount)
	if err != nil {
		return model.LedgerEntry{}, fmt.Errorf("%w: ledger %s copy_amount: %v", model.ErrCorruptState, r.sourceTradeID, err)
	}
	return model.LedgerEntry{
		Timestamp:       r.ts.UTC(),
		SourceTradeID:   r.sourceTradeID,
		MarketID:        r.marketID,
		AssetID:         r.assetID,
		Side:            side,
		Price:           price,
		CopyAmount:      amount,
		ExecutedOrderID: r.orderID,
	}, nil
}

func validate(e model.LedgerEntry) error {
	if e.SourceTradeID == "" {
		return fmt.Errorf("ledger entry: source trade id is empty")
	}
	if e.MarketID == "" {
		return fmt.Errorf("ledger entry %s: market id is empty", e.SourceTradeID)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("ledger entry %s: timestamp is zero", e.SourceTradeID)
	}
	return nil
}
