// Command analyze lists top Polymarket traders from the configured analytics
// providers, or reports the performance of a single trader.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rickgao/polymarket-mirror/internal/aggregator"
	"github.com/rickgao/polymarket-mirror/internal/cache"
	"github.com/rickgao/polymarket-mirror/internal/config"
	"github.com/rickgao/polymarket-mirror/internal/model"
	"github.com/rickgao/polymarket-mirror/internal/sources"
)

func main() {
	configPath := flag.String("config", "config/copytrader.yaml", "path to config file")
	envPath := flag.String("env", ".env", "path to .env file")
	count := flag.Int("count", 10, "number of traders to show")
	minWinRate := flag.Float64("min-win-rate", 0.6, "minimum win rate")
	minPnL := flag.Float64("min-pnl", 10000, "minimum PnL in USD")
	trader := flag.String("trader", "", "analyze a single trader address instead of ranking")
	flag.Parse()

	if err := config.LoadEnvFile(*envPath); err != nil {
		slog.Error("failed to load env file", "error", err)
		os.Exit(1)
	}
	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Diagnostics go to stderr so the report can be piped.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providerCache, err := cache.New(cfg.Cache)
	if err != nil {
		logger.Error("failed to create cache", "error", err)
		os.Exit(1)
	}
	if c, ok := providerCache.(io.Closer); ok {
		defer c.Close()
	}

	providers, err := sources.FromConfig(cfg.Analytics, providerCache, cfg.Cache.TTL, logger)
	if err != nil {
		logger.Error("failed to configure analytics sources", "error", err)
		os.Exit(1)
	}

	if *trader != "" {
		rec, err := aggregator.Lookup(ctx, *trader, providers.Lookups...)
		if err != nil {
			logger.Error("trader analysis failed", "address", *trader, "error", err)
			os.Exit(1)
		}
		printTrader(os.Stdout, 0, rec)
		return
	}

	fmt.Printf("Finding top traders (min win rate: %.1f%%, min PnL: $%.2f)...\n", *minWinRate*100, *minPnL)
	traders := aggregator.New(providers.Rankers, logger).Select(ctx, *minWinRate, *minPnL, cfg.Analytics.PerSourceLimit)

	shown := min(*count, len(traders))
	fmt.Printf("\nFound %d traders matching criteria.\n", len(traders))
	if shown == 0 {
		return
	}
	fmt.Printf("\nTop %d recommended traders:\n", shown)
	for i, tr := range traders[:shown] {
		printTrader(os.Stdout, i+1, tr)
	}

	fmt.Println("\nTo watch these traders, run:")
	for _, tr := range traders[:min(3, shown)] {
		fmt.Printf("  copytrader -add-trader %s\n", tr.Address)
	}
}

// printTrader writes one record. rank 0 omits the rank prefix.
func printTrader(w io.Writer, rank int, tr model.TraderRecord) {
	if rank > 0 {
		fmt.Fprintf(w, "\n%d. Address: %s\n", rank, tr.Address)
	} else {
		fmt.Fprintf(w, "Address: %s\n", tr.Address)
	}
	if tr.Username != "" {
		fmt.Fprintf(w, "   Username: %s\n", tr.Username)
	}
	fmt.Fprintf(w, "   PnL: %s\n", dollars(tr.PnL))
	fmt.Fprintf(w, "   Win Rate: %s\n", percent(tr.WinRate))
	fmt.Fprintf(w, "   Total Positions: %d\n", tr.TotalPositions)
	fmt.Fprintf(w, "   Active Positions: %d\n", tr.ActivePositions)
	if tr.CurrentValue != 0 {
		fmt.Fprintf(w, "   Current Value: $%.2f\n", tr.CurrentValue)
	}
}

func dollars(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("$%.2f", *v)
}

func percent(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f%%", *v*100)
}
