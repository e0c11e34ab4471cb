// Command configure edits copy trader settings and saves them back to the
// config file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/rickgao/polymarket-mirror/internal/config"
	"github.com/rickgao/polymarket-mirror/internal/database"
	"github.com/rickgao/polymarket-mirror/internal/watchlist"
)

// changes are the settings given on the command line. nil means unchanged.
type changes struct {
	minAmount       *float64
	maxAmount       *float64
	copyPercentage  *float64
	autoUpdate      *bool
	activateTrading *bool
}

func (ch changes) empty() bool {
	return ch == changes{}
}

func (ch changes) apply(c *config.Config) {
	if ch.minAmount != nil {
		c.Copy.MinAmountToCopy = *ch.minAmount
	}
	if ch.maxAmount != nil {
		c.Copy.MaxAmountToCopy = *ch.maxAmount
	}
	if ch.copyPercentage != nil {
		c.Copy.CopyPercentage = *ch.copyPercentage
	}
	if ch.autoUpdate != nil {
		c.Analytics.AutoUpdateTraders = *ch.autoUpdate
	}
	if ch.activateTrading != nil {
		c.Copy.TradingActive = *ch.activateTrading
	}
}

// parseChanges collects the flags that were explicitly set.
func parseChanges(fs *flag.FlagSet) (changes, error) {
	var (
		ch  changes
		err error
	)
	fs.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}
		v := f.Value.String()
		switch f.Name {
		case "min-amount":
			ch.minAmount, err = parseFloat(f.Name, v)
		case "max-amount":
			ch.maxAmount, err = parseFloat(f.Name, v)
		case "copy-percentage":
			ch.copyPercentage, err = parseFloat(f.Name, v)
		case "auto-update":
			ch.autoUpdate, err = parseBool(f.Name, v)
		case "activate-trading":
			ch.activateTrading, err = parseBool(f.Name, v)
		}
	})
	return ch, err
}

func parseFloat(name, v string) (*float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("-%s: %w", name, err)
	}
	return &f, nil
}

func parseBool(name, v string) (*bool, error) {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, fmt.Errorf("-%s: %w", name, err)
	}
	return &b, nil
}

func main() {
	fs := flag.NewFlagSet("configure", flag.ExitOnError)
	configPath := fs.String("config", "config/copytrader.yaml", "path to config file")
	envPath := fs.String("env", ".env", "path to .env file")
	fs.Float64("min-amount", 0, "minimum trade value to copy, USD")
	fs.Float64("max-amount", 0, "maximum copy amount per trade, USD")
	fs.Float64("copy-percentage", 0, "fraction of the trade value to copy (0.1 = 10%)")
	fs.Bool("auto-update", false, "refresh watched traders from analytics")
	fs.Bool("activate-trading", false, "submit real orders (false = simulate)")
	fs.Parse(os.Args[1:])

	ch, err := parseChanges(fs)
	if err != nil {
		slog.Error("invalid flag", "error", err)
		os.Exit(2)
	}

	if !ch.empty() {
		if _, err := config.Update(*configPath, ch.apply); err != nil {
			slog.Error("failed to save config", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Saved %s\n", *configPath)
		if ch.activateTrading != nil {
			if *ch.activateTrading {
				fmt.Println("Trading has been ACTIVATED. The bot will execute real trades.")
			} else {
				fmt.Println("Trading has been DEACTIVATED. The bot will only simulate trades.")
			}
		}
	}

	if err := config.LoadEnvFile(*envPath); err != nil {
		slog.Error("failed to load env file", "error", err)
		os.Exit(1)
	}
	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	fmt.Println("\nCurrent configuration:")
	fmt.Printf("  Minimum amount to copy: $%.2f\n", cfg.Copy.MinAmountToCopy)
	fmt.Printf("  Maximum amount to copy: $%.2f\n", cfg.Copy.MaxAmountToCopy)
	fmt.Printf("  Copy percentage:        %.1f%%\n", cfg.Copy.CopyPercentage*100)
	fmt.Printf("  Trading active:         %t\n", cfg.Copy.TradingActive)
	fmt.Printf("  Auto-update traders:    %t\n", cfg.Analytics.AutoUpdateTraders)
	fmt.Printf("  Gateway:                %s\n", cfg.Gateway.Mode)

	n, err := watchedCount(cfg)
	switch {
	case err != nil:
		slog.Warn("could not read watchlist", "error", err)
	case n == 0:
		fmt.Println("\nNo traders currently in watch list.")
		fmt.Println("Use 'analyze' to find traders to copy.")
	default:
		fmt.Printf("\nCurrently watching %d traders\n", n)
	}
}

func watchedCount(cfg *config.Config) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := database.Open(ctx, cfg.Storage)
	if err != nil {
		return 0, err
	}
	defer store.Close()

	list, err := watchlist.Open(store, cfg.Copy.InitialLookback, time.Now).List(ctx)
	if err != nil {
		return 0, err
	}
	return len(list), nil
}
