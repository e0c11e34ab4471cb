package scheduler

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/polymarket-mirror/internal/model"
)

// OrderGateway submits a mirrored order. SELL sizes are USD notional, BUY
// sizes are shares.
type OrderGateway interface {
	Submit(ctx context.Context, assetID string, side model.Side, price, size decimal.Decimal) (string, error)
}

// Watchlist is the address store the scheduler polls.
type Watchlist interface {
	Add(ctx context.Context, address string) (bool, error)
	List(ctx context.Context) ([]model.WatchEntry, error)
	AdvanceCursor(ctx context.Context, address string, cursor time.Time) error
	RefreshedAt(ctx context.Context) (time.Time, error)
	MarkRefreshed(ctx context.Context, t time.Time) error
}

// Ledger records executed mirror trades.
type Ledger interface {
	Append(ctx context.Context, e model.LedgerEntry) error
	Has(ctx context.Context, sourceTradeID string) (bool, error)
	EntriesSince(ctx context.Context, since time.Time) ([]model.LedgerEntry, error)
}

// Selector ranks traders across analytics sources.
type Selector interface {
	Select(ctx context.Context, minWinRate, minPnL float64, limitPerSource int) []model.TraderRecord
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// Sleeper waits for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// Rand is the randomness the scheduler uses. *rand.Rand satisfies it.
type Rand interface {
	Shuffle(n int, swap func(i, j int))
	Int64N(n int64) int64
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type timerSleeper struct{}

func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type globalRand struct{}

func (globalRand) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }
func (globalRand) Int64N(n int64) int64               { return rand.Int64N(n) }
