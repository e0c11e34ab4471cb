// Command copytrader mirrors trades of watched Polymarket accounts.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rickgao/polymarket-mirror/internal/config"
	"github.com/rickgao/polymarket-mirror/internal/version"
)

type options struct {
	configPath     string
	addTrader      string
	findTopTraders bool
	minWinRate     float64
	minPnL         float64
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "config/copytrader.yaml", "path to config file")
	envPath := flag.String("env", ".env", "path to .env file")
	flag.StringVar(&opts.addTrader, "add-trader", "", "address to add to the watchlist before starting")
	flag.BoolVar(&opts.findTopTraders, "find-top-traders", false, "add top traders from analytics before starting")
	flag.Float64Var(&opts.minWinRate, "min-win-rate", 0, "minimum win rate for -find-top-traders (default from config)")
	flag.Float64Var(&opts.minPnL, "min-pnl", 0, "minimum PnL for -find-top-traders (default from config)")
	activate := flag.Bool("activate-trading", false, "persist copy.trading_active=true and submit real orders")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if err := config.LoadEnvFile(*envPath); err != nil {
		slog.Error("failed to load env file", "error", err)
		os.Exit(1)
	}

	if *activate {
		if _, err := config.Update(opts.configPath, func(c *config.Config) { c.Copy.TradingActive = true }); err != nil {
			slog.Error("failed to activate trading", "error", err)
			os.Exit(1)
		}
		slog.Warn("trading activated, real orders will be submitted", "config", opts.configPath)
	}

	cfg, err := config.LoadOrDefault(opts.configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))
	slog.SetDefault(logger)

	logger.Info("starting copytrader",
		"version", version.Version,
		"commit", version.Commit,
		"config", opts.configPath,
		"gateway", cfg.Gateway.Mode,
		"storage", cfg.Storage.Driver,
		"trading_active", cfg.Copy.TradingActive,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	holder := config.NewHolder(cfg)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		for sig := range sigCh {
			if sig == syscall.SIGHUP {
				reload(opts.configPath, holder, logger)
				continue
			}
			logger.Info("received shutdown signal", "signal", sig)
			cancel()
			return
		}
	}()

	if err := run(ctx, holder, opts, logger); err != nil {
		logger.Error("copytrader failed", "error", err)
		os.Exit(1)
	}
	logger.Info("copytrader stopped")
}

// reload swaps in a fresh config snapshot. The scheduler picks it up at the
// start of the next cycle. Storage, gateway and API settings need a restart.
func reload(path string, holder *config.Holder, logger *slog.Logger) {
	cfg, err := config.LoadOrDefault(path)
	if err != nil {
		logger.Error("config reload failed, keeping current config", "error", err)
		return
	}
	prev := holder.Load()
	holder.Store(cfg)
	logger.Info("config reloaded",
		"trading_active", cfg.Copy.TradingActive,
		"polling_interval", cfg.Copy.PollingInterval,
	)
	if cfg.Gateway.Mode != prev.Gateway.Mode || cfg.Storage != prev.Storage || cfg.HTTP != prev.HTTP {
		logger.Warn("gateway, storage and http changes take effect after restart")
	}
}
