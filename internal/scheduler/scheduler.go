// Package scheduler runs the mirroring loop.
//
// Each cycle moves through Refreshing, Polling, Evaluating and Executing,
// then sleeps. Evaluation and execution happen inline on the scheduler
// goroutine, one trade at a time, so budget reads always see every
// previously executed trade.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/polymarket-mirror/internal/audit"
	"github.com/rickgao/polymarket-mirror/internal/budget"
	"github.com/rickgao/polymarket-mirror/internal/config"
	"github.com/rickgao/polymarket-mirror/internal/metrics"
	"github.com/rickgao/polymarket-mirror/internal/model"
	"github.com/rickgao/polymarket-mirror/internal/policy"
	"github.com/rickgao/polymarket-mirror/internal/poller"
)

// State is the scheduler's current phase.
type State string

const (
	StateIdle       State = "idle"
	StateRefreshing State = "refreshing"
	StatePolling    State = "polling"
	StateEvaluating State = "evaluating"
	StateExecuting  State = "executing"
	StateSleeping   State = "sleeping"
	StateStopped    State = "stopped"
)

// Deps are the scheduler's collaborators. Config, Watchlist, Ledger, Trades
// and Gateway are required.
type Deps struct {
	Config    *config.Holder
	Watchlist Watchlist
	Ledger    Ledger
	Trades    poller.TradeSource
	Gateway   OrderGateway
	Selector  Selector        // nil disables auto refresh
	Publisher audit.Publisher // nil discards events
	Counters  *metrics.Counters
	Logger    *slog.Logger
	Clock     Clock
	Sleeper   Sleeper
	Rand      Rand
}

// Status is a snapshot of the scheduler for health reporting.
type Status struct {
	State     State     `json:"state"`
	LastCycle time.Time `json:"last_cycle,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

// Scheduler drives the mirroring loop.
type Scheduler struct {
	d      Deps
	poller *poller.Poller

	mu     sync.RWMutex
	status Status
}

// New validates deps and fills defaults.
func New(d Deps) (*Scheduler, error) {
	switch {
	case d.Config == nil:
		return nil, errors.New("scheduler: config is required")
	case d.Watchlist == nil:
		return nil, errors.New("scheduler: watchlist is required")
	case d.Ledger == nil:
		return nil, errors.New("scheduler: ledger is required")
	case d.Trades == nil:
		return nil, errors.New("scheduler: trade source is required")
	case d.Gateway == nil:
		return nil, errors.New("scheduler: gateway is required")
	}

	if d.Publisher == nil {
		d.Publisher = audit.Nop{}
	}
	if d.Counters == nil {
		d.Counters = metrics.New()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Clock == nil {
		d.Clock = systemClock{}
	}
	if d.Sleeper == nil {
		d.Sleeper = timerSleeper{}
	}
	if d.Rand == nil {
		d.Rand = globalRand{}
	}

	cfg := d.Config.Load()
	p := poller.New(pollerConfig(cfg), d.Trades, d.Watchlist, d.Counters, d.Logger)

	return &Scheduler{d: d, poller: p, status: Status{State: StateIdle}}, nil
}

func pollerConfig(cfg *config.Config) poller.Config {
	return poller.Config{
		Concurrency: cfg.Poller.Concurrency,
		Timeout:     cfg.Poller.Timeout,
	}
}

// Status returns the current status.
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Scheduler) setState(st State) {
	s.mu.Lock()
	s.status.State = st
	s.mu.Unlock()
}

// Run loops until ctx is cancelled or persisted state is found corrupt.
// It returns nil on cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.setState(StateStopped)

	s.d.Logger.Info("scheduler started",
		"trading_active", s.d.Config.TradingActive(),
	)

	for {
		err := s.RunCycle(ctx)
		if ctx.Err() != nil {
			s.d.Logger.Info("scheduler stopped")
			return nil
		}

		cfg := s.d.Config.Load()
		wait := cfg.Copy.PollingInterval

		s.mu.Lock()
		s.status.LastCycle = s.d.Clock.Now()
		s.status.LastError = ""
		if err != nil {
			s.status.LastError = err.Error()
		}
		s.mu.Unlock()

		if err != nil {
			if errors.Is(err, model.ErrCorruptState) {
				s.d.Logger.Error("persisted state corrupt, stopping", "err", err)
				return err
			}
			s.d.Counters.CycleErrors.Add(1)
			s.d.Logger.Error("cycle failed", "err", err, "backoff", cfg.Copy.ErrorBackoff)
			wait = cfg.Copy.ErrorBackoff
		}

		s.setState(StateSleeping)
		if err := s.d.Sleeper.Sleep(ctx, wait); err != nil {
			s.d.Logger.Info("scheduler stopped")
			return nil
		}
	}
}

// RunCycle runs one refresh, poll and evaluate pass against the current
// config snapshot.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	cfg := s.d.Config.Load()
	s.d.Counters.Cycles.Add(1)
	defer s.setState(StateIdle)

	if err := s.refresh(ctx, cfg); err != nil {
		return err
	}

	trades, err := s.poll(ctx, cfg)
	if err != nil {
		return err
	}
	if len(trades) == 0 {
		return nil
	}

	return s.evaluate(ctx, cfg, trades)
}

// refresh adds top traders from analytics when the update interval elapsed.
func (s *Scheduler) refresh(ctx context.Context, cfg *config.Config) error {
	if s.d.Selector == nil || !cfg.AnalyticsEnabled() || !cfg.Analytics.AutoUpdateTraders {
		return nil
	}

	now := s.d.Clock.Now()
	last, err := s.d.Watchlist.RefreshedAt(ctx)
	if err != nil {
		return fmt.Errorf("read refresh time: %w", err)
	}
	if !last.IsZero() && now.Sub(last) < cfg.Analytics.UpdateInterval {
		return nil
	}

	s.setState(StateRefreshing)
	s.d.Logger.Info("refreshing watched traders from analytics")

	traders := s.d.Selector.Select(ctx, cfg.Analytics.MinWinRate, cfg.Analytics.MinPnL, cfg.Analytics.PerSourceLimit)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	added := 0
	for _, tr := range traders {
		if added >= cfg.Analytics.MaxAutoTraders {
			break
		}
		ok, err := s.d.Watchlist.Add(ctx, tr.Address)
		if err != nil {
			if errors.Is(err, model.ErrCorruptState) {
				return err
			}
			s.d.Logger.Warn("failed to add trader", "address", tr.Address, "err", err)
			continue
		}
		if ok {
			added++
			s.d.Logger.Info("added trader from analytics",
				"address", tr.Address,
				"username", tr.Username,
			)
		}
	}

	if err := s.d.Watchlist.MarkRefreshed(ctx, now); err != nil {
		return fmt.Errorf("persist refresh time: %w", err)
	}

	s.d.Logger.Info("trader refresh complete", "candidates", len(traders), "added", added)
	return nil
}

// poll fetches new trades for every watched address in shuffled order.
func (s *Scheduler) poll(ctx context.Context, cfg *config.Config) ([]model.TradeEvent, error) {
	s.setState(StatePolling)

	entries, err := s.d.Watchlist.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list watchlist: %w", err)
	}
	if len(entries) == 0 {
		s.d.Logger.Info("no traders to watch")
		return nil, nil
	}

	s.d.Rand.Shuffle(len(entries), func(i, j int) {
		entries[i], entries[j] = entries[j], entries[i]
	})

	s.poller.Reconfigure(pollerConfig(cfg))
	results, err := s.poller.Poll(ctx, entries)
	if err != nil {
		return nil, err
	}

	var trades []model.TradeEvent
	for _, r := range results {
		if errors.Is(r.Err, model.ErrCorruptState) {
			return nil, r.Err
		}
		trades = append(trades, r.Trades...)
	}
	return trades, nil
}

// evaluate runs each trade through the policy against a fresh budget and
// executes approved decisions inline.
func (s *Scheduler) evaluate(ctx context.Context, cfg *config.Config, trades []model.TradeEvent) error {
	guard := budget.NewGuard(s.d.Ledger)
	rules := cfg.Policy()

	for _, trade := range trades {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.setState(StateEvaluating)

		seen, err := s.d.Ledger.Has(ctx, trade.ID)
		if err != nil {
			return fmt.Errorf("check ledger: %w", err)
		}
		if seen {
			s.d.Counters.ReplaysSkipped.Add(1)
			s.d.Logger.Debug("trade already mirrored", "trade_id", trade.ID)
			continue
		}

		state, err := guard.CurrentState(ctx, s.d.Clock.Now())
		if err != nil {
			return err
		}

		d := policy.Evaluate(trade, rules, state)
		s.d.Publisher.Publish(audit.NewEvent(audit.KindDecision, s.d.Clock.Now(), d))

		if !d.Approved {
			s.d.Counters.Reject(d.Reason)
			s.d.Logger.Debug("trade not copied",
				"trade_id", trade.ID,
				"trader", trade.TraderAddress,
				"market_id", trade.MarketID,
				"reason", d.Reason,
			)
			continue
		}
		s.d.Counters.Approved.Add(1)

		if err := s.execute(ctx, cfg, d); err != nil {
			return err
		}
	}
	return nil
}

// execute submits an approved decision and records it. Gateway failures are
// logged and never retried.
func (s *Scheduler) execute(ctx context.Context, cfg *config.Config, d model.CopyDecision) error {
	s.setState(StateExecuting)

	if !s.d.Config.TradingActive() {
		s.simulate(d)
		return nil
	}

	if err := s.d.Sleeper.Sleep(ctx, s.jitter(cfg)); err != nil {
		return err
	}
	if !s.d.Config.TradingActive() {
		s.simulate(d)
		return nil
	}

	orderID, err := s.d.Gateway.Submit(ctx, d.AssetID, d.Side, d.Price, d.OrderSize())
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !errors.Is(err, model.ErrExecutionFailed) {
			err = fmt.Errorf("%w: %v", model.ErrExecutionFailed, err)
		}
		s.d.Counters.ExecutionFailed.Add(1)
		s.d.Logger.Error("copy trade failed",
			"trade_id", d.SourceTradeID,
			"market_id", d.MarketID,
			"err", err,
		)
		ev := audit.NewEvent(audit.KindFailed, s.d.Clock.Now(), d)
		ev.Error = err.Error()
		s.d.Publisher.Publish(ev)
		return nil
	}

	entry := model.LedgerEntry{
		Timestamp:       s.d.Clock.Now().UTC(),
		SourceTradeID:   d.SourceTradeID,
		MarketID:        d.MarketID,
		AssetID:         d.AssetID,
		Side:            d.Side,
		Price:           d.Price,
		CopyAmount:      d.CopyAmount,
		ExecutedOrderID: orderID,
	}

	// The order is live; record it even if shutdown began.
	if err := s.d.Ledger.Append(context.WithoutCancel(ctx), entry); err != nil {
		if errors.Is(err, model.ErrDuplicateTrade) {
			s.d.Logger.Warn("trade already in ledger", "trade_id", d.SourceTradeID, "order_id", orderID)
		} else {
			return fmt.Errorf("record order %s: %w", orderID, err)
		}
	}

	s.d.Counters.Executed.Add(1)
	s.d.Logger.Info("copied trade",
		"trade_id", d.SourceTradeID,
		"order_id", orderID,
		"market_id", d.MarketID,
		"side", d.Side,
		"amount", d.CopyAmount,
		"price", d.Price,
	)
	ev := audit.NewEvent(audit.KindExecuted, s.d.Clock.Now(), d)
	ev.OrderID = orderID
	s.d.Publisher.Publish(ev)
	return nil
}

func (s *Scheduler) simulate(d model.CopyDecision) {
	s.d.Counters.Simulated.Add(1)
	s.d.Logger.Info("trading inactive, not submitting",
		"trade_id", d.SourceTradeID,
		"market_id", d.MarketID,
		"side", d.Side,
		"amount", d.CopyAmount,
	)
	s.d.Publisher.Publish(audit.NewEvent(audit.KindSimulated, s.d.Clock.Now(), d))
}

// jitter picks a uniform delay in [MinCopyDelay, MaxCopyDelay].
func (s *Scheduler) jitter(cfg *config.Config) time.Duration {
	lo, hi := cfg.Copy.MinCopyDelay, cfg.Copy.MaxCopyDelay
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(s.d.Rand.Int64N(int64(hi-lo)+1))
}
