package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/rickgao/polymarket-mirror/internal/aggregator"
	"github.com/rickgao/polymarket-mirror/internal/audit"
	"github.com/rickgao/polymarket-mirror/internal/cache"
	"github.com/rickgao/polymarket-mirror/internal/clob"
	"github.com/rickgao/polymarket-mirror/internal/config"
	"github.com/rickgao/polymarket-mirror/internal/database"
	"github.com/rickgao/polymarket-mirror/internal/feed"
	"github.com/rickgao/polymarket-mirror/internal/gateway"
	"github.com/rickgao/polymarket-mirror/internal/httpapi"
	"github.com/rickgao/polymarket-mirror/internal/ledger"
	"github.com/rickgao/polymarket-mirror/internal/metrics"
	"github.com/rickgao/polymarket-mirror/internal/report"
	"github.com/rickgao/polymarket-mirror/internal/scheduler"
	"github.com/rickgao/polymarket-mirror/internal/sources"
	"github.com/rickgao/polymarket-mirror/internal/watchlist"
)

const shutdownTimeout = 30 * time.Second

// run wires every component and blocks until ctx is cancelled or the
// scheduler stops on corrupt state.
func run(ctx context.Context, holder *config.Holder, opts options, logger *slog.Logger) error {
	cfg := holder.Load()

	// Storage
	store, err := database.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	watched := watchlist.Open(store, cfg.Copy.InitialLookback, time.Now)
	mirrored := ledger.New(store)

	// Analytics providers
	providerCache, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("create cache: %w", err)
	}
	if c, ok := providerCache.(io.Closer); ok {
		defer c.Close()
	}

	providers, err := sources.FromConfig(cfg.Analytics, providerCache, cfg.Cache.TTL, logger)
	if err != nil {
		return err
	}
	agg := aggregator.New(providers.Rankers, logger)

	if err := seedWatchlist(ctx, watched, agg, cfg, opts, logger); err != nil {
		return err
	}

	// Exchange
	client, err := clob.New(cfg.CLOB, clob.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create clob client: %w", err)
	}
	client.Markets().Start(ctx)

	gw, err := gateway.New(cfg.Gateway.Mode, client, logger)
	if err != nil {
		return err
	}
	if cfg.Copy.TradingActive && cfg.Gateway.Mode == gateway.ModePaper {
		logger.Warn("trading active with paper gateway, orders are recorded locally only")
	}
	if cfg.AutoClose() {
		logger.Info("auto_close_positions is set but not implemented, per-market positions only grow")
	}

	// Audit and live feed
	hub := feed.NewHub(feed.DefaultConfig(), logger)
	publishers := audit.Multi{hub}

	var stream *audit.KafkaPublisher
	if len(cfg.Audit.Brokers) > 0 {
		stream = audit.NewKafkaPublisher(cfg.Audit, logger)
		stream.Start(ctx)
		publishers = append(publishers, stream)
	}

	counters := metrics.New()

	deps := scheduler.Deps{
		Config:    holder,
		Watchlist: watched,
		Ledger:    mirrored,
		Trades:    client,
		Gateway:   gw,
		Publisher: publishers,
		Counters:  counters,
		Logger:    logger,
	}
	if cfg.AnalyticsEnabled() {
		deps.Selector = agg
	}
	sched, err := scheduler.New(deps)
	if err != nil {
		return err
	}

	// Operator API
	var api *httpapi.Server
	if cfg.HTTP.Addr != "" {
		api = httpapi.New(httpapi.Deps{
			Config:     holder,
			ConfigPath: opts.configPath,
			Watchlist:  watched,
			Ledger:     mirrored,
			Counters:   counters,
			Scheduler:  sched,
			Ping:       store.Ping,
			Feed:       hub,
			Lookups:    providers.Lookups,
			Logger:     logger,
		})
		if err := api.Start(cfg.HTTP.Addr); err != nil {
			return fmt.Errorf("start http api: %w", err)
		}
	}

	runErr := sched.Run(ctx)

	logger.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	hub.Close()
	if api != nil {
		if err := api.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http api shutdown", "error", err)
		}
	}
	if stream != nil {
		if err := stream.Stop(shutdownCtx); err != nil {
			logger.Warn("audit publisher shutdown", "error", err)
		}
	}
	if err := client.Markets().Stop(shutdownCtx); err != nil {
		logger.Warn("market registry shutdown", "error", err)
	}

	snap := counters.Snapshot()
	logger.Info("session counters",
		"cycles", snap.Cycles,
		"trades_fetched", snap.TradesFetched,
		"approved", snap.Approved,
		"rejected", snap.TotalRejected(),
		"simulated", snap.Simulated,
		"executed", snap.Executed,
		"execution_failed", snap.ExecutionFailed,
	)

	st, err := report.Build(shutdownCtx, mirrored, watched, logger, providers.Lookups...)
	if err != nil {
		logger.Warn("failed to build statistics", "error", err)
	} else {
		fmt.Fprintln(os.Stdout)
		report.Write(os.Stdout, st)
	}

	return runErr
}

// seedWatchlist adds configured addresses, the -add-trader address and, with
// -find-top-traders, the best traders from analytics.
func seedWatchlist(ctx context.Context, watched *watchlist.Watchlist, agg *aggregator.Aggregator, cfg *config.Config, opts options, logger *slog.Logger) error {
	addrs := append([]string(nil), cfg.Copy.WatchedTraders...)
	if opts.addTrader != "" {
		addrs = append(addrs, opts.addTrader)
	}
	for _, a := range addrs {
		added, err := watched.Add(ctx, a)
		if err != nil {
			return fmt.Errorf("watch %s: %w", a, err)
		}
		if added {
			logger.Info("added trader to watchlist", "address", a)
		}
	}

	if !opts.findTopTraders {
		return nil
	}

	minWinRate, minPnL := cfg.Analytics.MinWinRate, cfg.Analytics.MinPnL
	if opts.minWinRate > 0 {
		minWinRate = opts.minWinRate
	}
	if opts.minPnL > 0 {
		minPnL = opts.minPnL
	}
	logger.Info("finding top traders", "min_win_rate", minWinRate, "min_pnl", minPnL)

	traders := agg.Select(ctx, minWinRate, minPnL, cfg.Analytics.PerSourceLimit)
	added := 0
	for _, tr := range traders {
		if added >= cfg.Analytics.MaxAutoTraders {
			break
		}
		ok, err := watched.Add(ctx, tr.Address)
		if err != nil {
			logger.Warn("failed to add trader", "address", tr.Address, "error", err)
			continue
		}
		if ok {
			added++
			logger.Info("added top trader", "address", tr.Address, "username", tr.Username)
		}
	}
	logger.Info("top trader search complete", "candidates", len(traders), "added", added)
	return nil
}
