// Package report summarizes mirrored trades and watched trader performance.
package report

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/polymarket-mirror/internal/aggregator"
	"github.com/rickgao/polymarket-mirror/internal/model"
)

// lookupConcurrency bounds parallel performance lookups.
const lookupConcurrency = 4

// EntryReader reads the full ledger.
type EntryReader interface {
	Entries(ctx context.Context) ([]model.LedgerEntry, error)
}

// WatchReader lists watched addresses.
type WatchReader interface {
	List(ctx context.Context) ([]model.WatchEntry, error)
}

// TraderStats is the performance of one watched trader.
type TraderStats struct {
	PnL       *float64 `json:"pnl,omitempty"`
	WinRate   *float64 `json:"win_rate,omitempty"`
	Positions int      `json:"positions"`
}

// Statistics summarizes the ledger and watchlist.
type Statistics struct {
	TotalTrades    int                    `json:"total_trades"`
	TotalAmount    decimal.Decimal        `json:"total_amount_traded"`
	MarketsCount   int                    `json:"markets_count"`
	MostRecent     *model.LedgerEntry     `json:"most_recent_trade,omitempty"`
	TradersWatched int                    `json:"traders_watched"`
	Traders        map[string]TraderStats `json:"trader_stats,omitempty"`
}

// Build computes statistics. Performance is looked up for each watched
// trader when lookups are given; traders without data are omitted.
func Build(ctx context.Context, entries EntryReader, watched WatchReader, logger *slog.Logger, lookups ...aggregator.PerformanceSource) (Statistics, error) {
	if logger == nil {
		logger = slog.Default()
	}

	ledger, err := entries.Entries(ctx)
	if err != nil {
		return Statistics{}, fmt.Errorf("read ledger: %w", err)
	}
	list, err := watched.List(ctx)
	if err != nil {
		return Statistics{}, fmt.Errorf("list watchlist: %w", err)
	}

	st := Statistics{
		TotalTrades:    len(ledger),
		TotalAmount:    decimal.Zero,
		MarketsCount:   len(model.GroupByMarket(ledger)),
		TradersWatched: len(list),
	}
	for i := range ledger {
		e := ledger[i]
		st.TotalAmount = st.TotalAmount.Add(e.CopyAmount)
		if st.MostRecent == nil || e.Timestamp.After(st.MostRecent.Timestamp) {
			st.MostRecent = &e
		}
	}

	if len(lookups) == 0 || len(list) == 0 {
		return st, nil
	}

	var mu sync.Mutex
	st.Traders = make(map[string]TraderStats, len(list))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupConcurrency)
	for _, w := range list {
		g.Go(func() error {
			rec, err := aggregator.Lookup(gctx, w.Address, lookups...)
			if err != nil {
				logger.Warn("no performance data for trader", "address", w.Address, "err", err)
				return nil
			}
			mu.Lock()
			st.Traders[w.Address] = TraderStats{
				PnL:       rec.PnL,
				WinRate:   rec.WinRate,
				Positions: rec.TotalPositions,
			}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return Statistics{}, err
	}
	return st, nil
}

// Write renders statistics as plain text.
func Write(w io.Writer, st Statistics) {
	fmt.Fprintln(w, "Trading Statistics:")
	fmt.Fprintf(w, "  Total Trades:        %d\n", st.TotalTrades)
	fmt.Fprintf(w, "  Total Amount Traded: $%s\n", st.TotalAmount.StringFixed(2))
	fmt.Fprintf(w, "  Markets Traded:      %d\n", st.MarketsCount)
	fmt.Fprintf(w, "  Traders Watched:     %d\n", st.TradersWatched)
	if st.MostRecent != nil {
		fmt.Fprintf(w, "  Most Recent:         %s %s $%s in %s\n",
			st.MostRecent.Timestamp.Format("2006-01-02 15:04:05"),
			st.MostRecent.Side,
			st.MostRecent.CopyAmount.StringFixed(2),
			st.MostRecent.MarketID,
		)
	}

	if len(st.Traders) == 0 {
		return
	}

	addrs := make([]string, 0, len(st.Traders))
	for a := range st.Traders {
		addrs = append(addrs, a)
	}
	sort.Strings(addrs)

	fmt.Fprintln(w, "\nWatched Trader Performance:")
	for _, a := range addrs {
		ts := st.Traders[a]
		fmt.Fprintf(w, "  %s - PnL: %s, Win Rate: %s, Positions: %d\n",
			a, formatPnL(ts.PnL), formatRate(ts.WinRate), ts.Positions)
	}
}

func formatPnL(p *float64) string {
	if p == nil {
		return "n/a"
	}
	return fmt.Sprintf("$%.2f", *p)
}

func formatRate(r *float64) string {
	if r == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", *r*100)
}
