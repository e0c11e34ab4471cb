// Package budget derives the daily and per-market risk counters from the ledger.
//
// State is recomputed on every query rather than tracked incrementally, so a
// restart never drifts from what the ledger actually recorded.
package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/polymarket-mirror/internal/model"
)

// EntrySource provides ledger entries recorded at or after a point in time.
type EntrySource interface {
	EntriesSince(ctx context.Context, since time.Time) ([]model.LedgerEntry, error)
}

// CurrentState folds ledger entries from the UTC day of asOf into a BudgetState.
//
// Every mirrored trade of the day opens a position in its market, whatever its
// side. Nothing closes one: the ledger carries no resolution or exit data.
func CurrentState(entries []model.LedgerEntry, asOf time.Time) model.BudgetState {
	dayStart, dayEnd := utcDay(asOf)

	state := model.BudgetState{
		DailyAmount:            decimal.Zero,
		OpenPositionsPerMarket: make(map[string]int),
	}

	for _, e := range entries {
		ts := e.Timestamp.UTC()
		if ts.Before(dayStart) || !ts.Before(dayEnd) {
			continue
		}

		state.DailyTradeCount++
		state.DailyAmount = state.DailyAmount.Add(e.CopyAmount)
		state.OpenPositionsPerMarket[e.MarketID]++
	}

	return state
}

// Guard reads the ledger and computes the current budget state.
type Guard struct {
	entries EntrySource
}

// NewGuard creates a Guard over the given ledger.
func NewGuard(entries EntrySource) *Guard {
	return &Guard{entries: entries}
}

// CurrentState returns the budget state for the UTC day of asOf.
func (g *Guard) CurrentState(ctx context.Context, asOf time.Time) (model.BudgetState, error) {
	dayStart, _ := utcDay(asOf)

	entries, err := g.entries.EntriesSince(ctx, dayStart)
	if err != nil {
		return model.BudgetState{}, fmt.Errorf("read ledger: %w", err)
	}

	return CurrentState(entries, asOf), nil
}

// utcDay returns the [start, end) bounds of the UTC calendar day containing t.
func utcDay(t time.Time) (time.Time, time.Time) {
	u := t.UTC()
	start := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}
