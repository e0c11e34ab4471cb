// Package aggregator merges ranked traders from several analytics providers
// into one deduplicated, filtered candidate list.
package aggregator

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/polymarket-mirror/internal/model"
)

// Source is an analytics provider ranking traders by PnL.
type Source interface {
	Name() string
	FetchTopTraders(ctx context.Context, limit int) ([]model.TraderRecord, error)
}

// PerformanceSource reports the current performance of one trader.
type PerformanceSource interface {
	Name() string
	TraderPerformance(ctx context.Context, address string) (model.TraderRecord, error)
}

// Aggregator queries a fixed, ordered list of sources.
type Aggregator struct {
	sources []Source
	logger  *slog.Logger
}

// New creates an Aggregator. Source order decides which record wins a
// duplicate address.
func New(sources []Source, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{sources: sources, logger: logger}
}

// Select queries every source, merges, filters and ranks the results.
func Select(ctx context.Context, sources []Source, minWinRate, minPnL float64, limitPerSource int) []model.TraderRecord {
	return New(sources, nil).Select(ctx, minWinRate, minPnL, limitPerSource)
}

// qualifies applies the win-rate and PnL thresholds. Records with a missing,
// non-finite or out-of-range value never qualify.
func qualifies(r model.TraderRecord, minWinRate, minPnL float64) bool {
	if r.WinRate == nil || r.PnL == nil {
		return false
	}
	wr, pnl := *r.WinRate, *r.PnL
	if !validRate(wr) || math.IsNaN(pnl) || math.IsInf(pnl, 0) {
		return false
	}
	return wr >= minWinRate && pnl >= minPnL
}

// Select returns traders with WinRate >= minWinRate and PnL >= minPnL, sorted
// by PnL descending then address ascending. A failing source contributes
// nothing. The result is empty, never an error, when nothing qualifies.
func (a *Aggregator) Select(ctx context.Context, minWinRate, minPnL float64, limitPerSource int) []model.TraderRecord {
	merged := a.collect(ctx, limitPerSource)

	out := make([]model.TraderRecord, 0, len(merged))
	for _, r := range merged {
		if qualifies(r, minWinRate, minPnL) {
			out = append(out, r)
		}
	}

	slices.SortStableFunc(out, func(x, y model.TraderRecord) int {
		if c := cmp.Compare(*y.PnL, *x.PnL); c != 0 {
			return c
		}
		return cmp.Compare(x.Address, y.Address)
	})

	a.logger.Info("selected traders",
		"sources", len(a.sources),
		"candidates", len(merged),
		"selected", len(out),
		"min_win_rate", minWinRate,
		"min_pnl", minPnL,
	)
	return out
}

// collect queries sources concurrently and merges results in source order,
// keeping the first record seen for each address.
func (a *Aggregator) collect(ctx context.Context, limit int) []model.TraderRecord {
	results := make([][]model.TraderRecord, len(a.sources))

	var g errgroup.Group
	for i, src := range a.sources {
		g.Go(func() error {
			recs, err := src.FetchTopTraders(ctx, limit)
			if err != nil {
				a.logger.Warn("trader source failed",
					"source", src.Name(),
					"err", fmt.Errorf("%w: %w", model.ErrProviderUnavailable, err),
				)
				return nil
			}
			a.logger.Debug("trader source fetched", "source", src.Name(), "count", len(recs))
			results[i] = recs
			return nil
		})
	}
	_ = g.Wait()

	seen := make(map[string]struct{})
	var merged []model.TraderRecord
	for _, recs := range results {
		for _, r := range recs {
			if _, dup := seen[r.Address]; dup {
				continue
			}
			seen[r.Address] = struct{}{}
			merged = append(merged, r)
		}
	}
	return merged
}

// Lookup returns the first successful performance record for address,
// trying sources in order.
func Lookup(ctx context.Context, address string, sources ...PerformanceSource) (model.TraderRecord, error) {
	addr, err := model.NormalizeAddress(address)
	if err != nil {
		return model.TraderRecord{}, err
	}

	var errs []error
	for _, src := range sources {
		rec, err := src.TraderPerformance(ctx, addr)
		if err == nil {
			return rec, nil
		}
		if ctx.Err() != nil {
			return model.TraderRecord{}, ctx.Err()
		}
		errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
	}
	if len(errs) == 0 {
		return model.TraderRecord{}, fmt.Errorf("%w: no performance sources configured", model.ErrProviderUnavailable)
	}
	return model.TraderRecord{}, fmt.Errorf("%w: no performance data for %s: %w",
		model.ErrProviderUnavailable, addr, errors.Join(errs...))
}
