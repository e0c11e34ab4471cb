package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/polymarket-mirror/internal/metrics"
	"github.com/rickgao/polymarket-mirror/internal/model"
)

// TradeSource fetches trades made by an address strictly after a point in time.
type TradeSource interface {
	FetchTrades(ctx context.Context, address string, after time.Time) ([]model.TradeEvent, error)
}

// cursorOverlap widens each fetch below the stored cursor. Trade timestamps
// have one-second resolution, so a trade indexed late can share the cursor's
// second with trades already returned.
const cursorOverlap = time.Second

// CursorStore persists per-address cursors.
type CursorStore interface {
	AdvanceCursor(ctx context.Context, address string, cursor time.Time) error
}

// Config holds poller configuration.
type Config struct {
	Concurrency int           // Max concurrent fetches (default: 4)
	Timeout     time.Duration // Per-address fetch timeout (default: 30s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency: 4,
		Timeout:     30 * time.Second,
	}
}

// Result is the outcome of polling one address.
type Result struct {
	Address string
	Trades  []model.TradeEvent // Sorted by timestamp
	Err     error              // Fetch or cursor error; Trades may still be set on cursor errors
}

// boundary holds the ids already returned for an address at its cursor second.
type boundary struct {
	at  time.Time
	ids map[string]struct{}
}

// Poller fetches new trades for watched addresses. It remembers the trades
// returned at each cursor so the overlapping fetch does not hand them out
// again. That memory is process-local: after a restart the boundary second is
// returned once more and the ledger replay check filters what was mirrored.
type Poller struct {
	source   TradeSource
	cursors  CursorStore
	counters *metrics.Counters
	logger   *slog.Logger

	mu       sync.Mutex
	cfg      Config
	boundary map[string]boundary
}

// New creates a new Poller. counters may be nil.
func New(cfg Config, source TradeSource, cursors CursorStore, counters *metrics.Counters, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if counters == nil {
		counters = metrics.New()
	}
	p := &Poller{
		source:   source,
		cursors:  cursors,
		counters: counters,
		logger:   logger,
		boundary: make(map[string]boundary),
	}
	p.Reconfigure(cfg)
	return p
}

// Reconfigure replaces concurrency and timeout for later polls.
func (p *Poller) Reconfigure(cfg Config) {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	p.mu.Lock()
	p.cfg = cfg
	p.mu.Unlock()
}

func (p *Poller) config() Config {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg
}

// Poll fetches every entry concurrently and returns results in entry order.
// It only returns early when ctx is cancelled.
func (p *Poller) Poll(ctx context.Context, entries []model.WatchEntry) ([]Result, error) {
	start := time.Now()
	cfg := p.config()
	results := make([]Result, len(entries))

	var fetched, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Concurrency)

	for i, entry := range entries {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i] = p.pollOne(gctx, entry, cfg.Timeout)
			if results[i].Err != nil {
				failed.Add(1)
			} else {
				fetched.Add(int64(len(results[i].Trades)))
			}
			return nil
		})
	}

	g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.logger.Info("poll cycle complete",
		"addresses", len(entries),
		"trades", fetched.Load(),
		"errors", failed.Load(),
		"duration", time.Since(start),
	)
	return results, nil
}

// pollOne fetches one address and advances its cursor to the newest trade.
// The fetch starts one second below the cursor; trades before the cursor and
// trades at the cursor that were already returned are dropped.
func (p *Poller) pollOne(ctx context.Context, entry model.WatchEntry, timeout time.Duration) Result {
	res := Result{Address: entry.Address}
	p.counters.AddressesPolled.Add(1)

	fetchCtx, cancel := context.WithTimeout(ctx, timeout)
	fetched, err := p.source.FetchTrades(fetchCtx, entry.Address, entry.Cursor.Add(-cursorOverlap))
	cancel()
	if err != nil {
		p.counters.FetchErrors.Add(1)
		if ctx.Err() == nil {
			p.logger.Warn("failed to fetch trades",
				"address", entry.Address,
				"err", err,
			)
		}
		res.Err = fmt.Errorf("%w: %v", model.ErrProviderUnavailable, err)
		return res
	}

	seen := p.seenAt(entry.Address, entry.Cursor)
	trades := make([]model.TradeEvent, 0, len(fetched))
	for _, t := range fetched {
		if t.Timestamp.Before(entry.Cursor) {
			continue
		}
		if _, ok := seen[t.ID]; ok && t.Timestamp.Equal(entry.Cursor) {
			continue
		}
		trades = append(trades, t)
	}

	res.Trades = trades
	p.counters.TradesFetched.Add(int64(len(trades)))
	if len(trades) == 0 {
		return res
	}

	newest := entry.Cursor
	for _, t := range trades {
		if t.Timestamp.After(newest) {
			newest = t.Timestamp
		}
	}

	if newest.After(entry.Cursor) {
		if err := p.cursors.AdvanceCursor(ctx, entry.Address, newest); err != nil {
			if errors.Is(err, model.ErrInvalidCursor) {
				p.counters.CursorRejections.Add(1)
			}
			p.logger.Warn("failed to advance cursor",
				"address", entry.Address,
				"cursor", newest,
				"err", err,
			)
			res.Err = err
			return res
		}
		seen = nil
	}
	p.remember(entry.Address, newest, seen, trades)
	return res
}

// seenAt returns the ids already returned for address at cursor.
func (p *Poller) seenAt(address string, cursor time.Time) map[string]struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.boundary[address]
	if !ok || !b.at.Equal(cursor) {
		return nil
	}
	return b.ids
}

// remember records the trades at the new cursor second, keeping prior ids
// when the cursor did not move.
func (p *Poller) remember(address string, at time.Time, prior map[string]struct{}, trades []model.TradeEvent) {
	ids := make(map[string]struct{}, len(prior)+1)
	for id := range prior {
		ids[id] = struct{}{}
	}
	for _, t := range trades {
		if t.Timestamp.Equal(at) {
			ids[t.ID] = struct{}{}
		}
	}
	p.mu.Lock()
	p.boundary[address] = boundary{at: at, ids: ids}
	p.mu.Unlock()
}
