// Package market caches exchange market metadata needed to build orders.
//
// Markets are keyed by condition id. Outcome tokens are indexed back to their
// market so an order for a token can find its tick size and exchange.
package market

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/polymarket-mirror/internal/model"
)

// Info is the metadata of one market.
type Info struct {
	ConditionID string
	Question    string
	TickSize    decimal.Decimal
	NegRisk     bool
	Active      bool
	Closed      bool
	Tokens      []Token
}

// Token is one outcome of a market.
type Token struct {
	TokenID string
	Outcome string
}

// Fetcher loads market metadata from the exchange.
type Fetcher interface {
	GetMarket(ctx context.Context, conditionID string) (Info, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, conditionID string) (Info, error)

// GetMarket calls f.
func (f FetcherFunc) GetMarket(ctx context.Context, conditionID string) (Info, error) {
	return f(ctx, conditionID)
}

// Config holds Market Registry configuration.
type Config struct {
	TTL               time.Duration // Age after which an entry is refetched on Get
	ReconcileInterval time.Duration // Background refresh period for cached markets
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TTL:               10 * time.Minute,
		ReconcileInterval: 5 * time.Minute,
	}
}

type entry struct {
	info      Info
	fetchedAt time.Time
}

// Registry is a TTL cache of market metadata.
type Registry struct {
	cfg     Config
	fetcher Fetcher
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.RWMutex
	markets map[string]entry
	tokens  map[string]string // token id -> condition id

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRegistry creates a new Market Registry.
func NewRegistry(cfg Config, fetcher Fetcher, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		cfg:     cfg,
		fetcher: fetcher,
		logger:  logger,
		now:     time.Now,
		markets: make(map[string]entry),
		tokens:  make(map[string]string),
	}
}

// Get returns metadata for a market, fetching it when missing or stale.
func (r *Registry) Get(ctx context.Context, conditionID string) (Info, error) {
	r.mu.RLock()
	e, ok := r.markets[conditionID]
	r.mu.RUnlock()

	if ok && r.now().Sub(e.fetchedAt) < r.cfg.TTL {
		return e.info, nil
	}

	info, err := r.fetcher.GetMarket(ctx, conditionID)
	if err != nil {
		if ok {
			r.logger.Warn("market refresh failed, serving stale entry",
				"condition_id", conditionID,
				"err", err,
			)
			return e.info, nil
		}
		return Info{}, fmt.Errorf("fetch market %s: %w", conditionID, err)
	}

	r.store(conditionID, info)
	return info, nil
}

// Index records that tokenID belongs to conditionID.
func (r *Registry) Index(tokenID, conditionID string) {
	if tokenID == "" || conditionID == "" {
		return
	}
	r.mu.Lock()
	r.tokens[tokenID] = conditionID
	r.mu.Unlock()
}

// ByToken returns the market an outcome token belongs to.
// The token must have been indexed or belong to an already cached market.
func (r *Registry) ByToken(ctx context.Context, tokenID string) (Info, error) {
	r.mu.RLock()
	conditionID, ok := r.tokens[tokenID]
	r.mu.RUnlock()

	if !ok {
		return Info{}, fmt.Errorf("token %s: %w", tokenID, model.ErrNotFound)
	}
	return r.Get(ctx, conditionID)
}

// Len returns the number of cached markets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.markets)
}

func (r *Registry) store(conditionID string, info Info) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.markets[conditionID] = entry{info: info, fetchedAt: r.now()}
	for _, t := range info.Tokens {
		r.tokens[t.TokenID] = conditionID
	}
}

// Start begins background refresh of cached markets.
func (r *Registry) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.reconciliationLoop(ctx)
	}()
}

// Stop gracefully shuts down.
func (r *Registry) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("market registry stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Registry) reconciliationLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reconcile(ctx)
		}
	}
}

// reconcile refetches every cached market. Closed markets are dropped.
func (r *Registry) reconcile(ctx context.Context) {
	r.mu.RLock()
	ids := make([]string, 0, len(r.markets))
	for id := range r.markets {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	var refreshed, dropped int
	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		info, err := r.fetcher.GetMarket(ctx, id)
		if err != nil {
			r.logger.Debug("market reconcile failed", "condition_id", id, "err", err)
			continue
		}
		if info.Closed {
			r.mu.Lock()
			delete(r.markets, id)
			r.mu.Unlock()
			dropped++
			continue
		}
		r.store(id, info)
		refreshed++
	}

	r.logger.Debug("market reconciliation complete",
		"refreshed", refreshed,
		"dropped", dropped,
	)
}
