package policy

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/polymarket-mirror/internal/model"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func trade(side model.Side, size, price string) model.TradeEvent {
	return model.TradeEvent{
		ID:            "trade-1",
		MarketID:      "market-1",
		AssetID:       "asset-1",
		Side:          side,
		Size:          dec(size),
		Price:         dec(price),
		Timestamp:     time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
		TraderAddress: "0x00000000000000000000000000000000000000aa",
	}
}

func emptyBudget() model.BudgetState {
	return model.BudgetState{DailyAmount: decimal.Zero, OpenPositionsPerMarket: map[string]int{}}
}

func sameDecision(a, b model.CopyDecision) bool {
	return a.SourceTradeID == b.SourceTradeID &&
		a.MarketID == b.MarketID &&
		a.AssetID == b.AssetID &&
		a.Side == b.Side &&
		a.Price.Equal(b.Price) &&
		a.TradeValue.Equal(b.TradeValue) &&
		a.CopyAmount.Equal(b.CopyAmount) &&
		a.Approved == b.Approved &&
		a.Reason == b.Reason
}

func TestEvaluate_Scenario(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinAmountToCopy = dec("50")
	cfg.CopyPercentage = dec("0.1")
	cfg.MaxAmountToCopy = dec("500")

	d := Evaluate(trade(model.SideBuy, "2000", "1"), cfg, emptyBudget())

	if !d.Approved {
		t.Fatalf("Approved = false (reason %q), want true", d.Reason)
	}
	if !d.TradeValue.Equal(dec("2000")) {
		t.Errorf("TradeValue = %s, want 2000", d.TradeValue)
	}
	if !d.CopyAmount.Equal(dec("200")) {
		t.Errorf("CopyAmount = %s, want 200", d.CopyAmount)
	}
	if d.Reason != model.ReasonNone {
		t.Errorf("Reason = %q, want none", d.Reason)
	}
}

func TestEvaluate_Blacklisted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BlacklistedMarkets = []string{"market-1"}

	d := Evaluate(trade(model.SideBuy, "2000", "0.5"), cfg, emptyBudget())

	if d.Approved {
		t.Fatal("Approved = true, want false")
	}
	if d.Reason != model.ReasonBlacklisted {
		t.Errorf("Reason = %q, want %q", d.Reason, model.ReasonBlacklisted)
	}
	if !d.CopyAmount.IsZero() {
		t.Errorf("CopyAmount = %s, want 0 on rejection", d.CopyAmount)
	}
}

// The trade value of a BUY is its raw size while a SELL is size*price.
// This asymmetry is deliberate and pinned here.
func TestTradeValue_SideAsymmetry(t *testing.T) {
	buy := trade(model.SideBuy, "100", "0.4")
	sell := trade(model.SideSell, "100", "0.4")

	if got := TradeValue(buy); !got.Equal(dec("100")) {
		t.Errorf("TradeValue(BUY) = %s, want 100", got)
	}
	if got := TradeValue(sell); !got.Equal(dec("40")) {
		t.Errorf("TradeValue(SELL) = %s, want 40", got)
	}

	cfg := DefaultConfig()
	cfg.MinAmountToCopy = dec("50")
	if d := Evaluate(buy, cfg, emptyBudget()); !d.Approved {
		t.Errorf("BUY 100@0.4 rejected with %q, want approved", d.Reason)
	}
	if d := Evaluate(sell, cfg, emptyBudget()); d.Reason != model.ReasonBelowMinimum {
		t.Errorf("SELL 100@0.4 reason = %q, want %q", d.Reason, model.ReasonBelowMinimum)
	}
}

func TestEvaluate_BelowMinimumDominates(t *testing.T) {
	// Every other gate would also reject; BelowMinimum must win.
	cfg := Config{
		MinAmountToCopy:       dec("50"),
		MaxAmountToCopy:       dec("500"),
		CopyPercentage:        dec("0.1"),
		BlacklistedMarkets:    []string{"market-1"},
		WhitelistOnly:         true,
		CopyBuys:              false,
		CopySells:             false,
		MaxPositionsPerMarket: 0,
		MaxDailyTrades:        0,
		MaxDailyAmount:        dec("0"),
	}
	budget := model.BudgetState{
		DailyTradeCount:        100,
		DailyAmount:            dec("100000"),
		OpenPositionsPerMarket: map[string]int{"market-1": 100},
	}

	sizes := []string{"0", "0.01", "10", "49.99"}
	for _, side := range []model.Side{model.SideBuy, model.SideSell} {
		for _, size := range sizes {
			d := Evaluate(trade(side, size, "1"), cfg, budget)
			if d.Approved || d.Reason != model.ReasonBelowMinimum {
				t.Errorf("%s size %s: approved=%v reason=%q, want BelowMinimum", side, size, d.Approved, d.Reason)
			}
		}
	}
}

func TestEvaluate_GateOrder(t *testing.T) {
	base := func() (Config, model.BudgetState) {
		cfg := DefaultConfig()
		cfg.WhitelistedMarkets = []string{"market-1"}
		return cfg, emptyBudget()
	}

	tests := []struct {
		name  string
		setup func(cfg *Config, b *model.BudgetState)
		want  model.Reason
	}{
		{
			name: "blacklist beats whitelist, side, caps",
			setup: func(cfg *Config, b *model.BudgetState) {
				cfg.BlacklistedMarkets = []string{"market-1"}
				cfg.WhitelistOnly = true
				cfg.WhitelistedMarkets = nil
				cfg.CopyBuys = false
				b.OpenPositionsPerMarket["market-1"] = 10
				b.DailyTradeCount = 10
			},
			want: model.ReasonBlacklisted,
		},
		{
			name: "whitelist beats side and caps",
			setup: func(cfg *Config, b *model.BudgetState) {
				cfg.WhitelistOnly = true
				cfg.WhitelistedMarkets = []string{"other"}
				cfg.CopyBuys = false
				b.OpenPositionsPerMarket["market-1"] = 10
				b.DailyTradeCount = 10
			},
			want: model.ReasonNotWhitelisted,
		},
		{
			name: "whitelisted market passes whitelist gate",
			setup: func(cfg *Config, b *model.BudgetState) {
				cfg.WhitelistOnly = true
			},
			want: model.ReasonNone,
		},
		{
			name: "side beats caps",
			setup: func(cfg *Config, b *model.BudgetState) {
				cfg.CopyBuys = false
				b.OpenPositionsPerMarket["market-1"] = 10
				b.DailyTradeCount = 10
				b.DailyAmount = dec("5000")
			},
			want: model.ReasonSideDisabled,
		},
		{
			name: "market cap beats daily caps",
			setup: func(cfg *Config, b *model.BudgetState) {
				b.OpenPositionsPerMarket["market-1"] = 3
				b.DailyTradeCount = 10
				b.DailyAmount = dec("5000")
			},
			want: model.ReasonMarketPositionCapReached,
		},
		{
			name: "other market positions do not count",
			setup: func(cfg *Config, b *model.BudgetState) {
				b.OpenPositionsPerMarket["market-2"] = 3
			},
			want: model.ReasonNone,
		},
		{
			name: "daily trade cap beats amount cap",
			setup: func(cfg *Config, b *model.BudgetState) {
				b.DailyTradeCount = 10
				b.DailyAmount = dec("5000")
			},
			want: model.ReasonDailyTradeCapReached,
		},
		{
			name: "amount cap without partial sizing",
			setup: func(cfg *Config, b *model.BudgetState) {
				b.DailyAmount = dec("900")
			},
			want: model.ReasonDailyAmountCapReached,
		},
		{
			name: "amount exactly at cap is allowed",
			setup: func(cfg *Config, b *model.BudgetState) {
				b.DailyAmount = dec("800")
			},
			want: model.ReasonNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, budget := base()
			tt.setup(&cfg, &budget)

			// BUY 2000 -> copy amount 200.
			d := Evaluate(trade(model.SideBuy, "2000", "0.5"), cfg, budget)

			if d.Reason != tt.want {
				t.Errorf("Reason = %q, want %q", d.Reason, tt.want)
			}
			if d.Approved != (tt.want == model.ReasonNone) {
				t.Errorf("Approved = %v, want %v", d.Approved, tt.want == model.ReasonNone)
			}
		})
	}
}

func TestEvaluate_SellSideDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CopySells = false

	d := Evaluate(trade(model.SideSell, "1000", "0.5"), cfg, emptyBudget())
	if d.Reason != model.ReasonSideDisabled {
		t.Errorf("Reason = %q, want %q", d.Reason, model.ReasonSideDisabled)
	}
}

func TestEvaluate_CopyAmountBounds(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDailyAmount = dec("1000000")

	sizes := []string{"50", "100", "999.99", "5000", "5001", "100000"}
	prices := []string{"0.01", "0.5", "0.99", "1"}

	for _, side := range []model.Side{model.SideBuy, model.SideSell} {
		for _, size := range sizes {
			for _, price := range prices {
				d := Evaluate(trade(side, size, price), cfg, emptyBudget())
				if !d.Approved {
					continue
				}
				if d.CopyAmount.IsNegative() || d.CopyAmount.GreaterThan(cfg.MaxAmountToCopy) {
					t.Errorf("%s %s@%s: CopyAmount = %s, want within [0, %s]",
						side, size, price, d.CopyAmount, cfg.MaxAmountToCopy)
				}
			}
		}
	}

	d := Evaluate(trade(model.SideBuy, "100000", "0.5"), cfg, emptyBudget())
	if !d.CopyAmount.Equal(cfg.MaxAmountToCopy) {
		t.Errorf("CopyAmount = %s, want capped at %s", d.CopyAmount, cfg.MaxAmountToCopy)
	}
}

func TestEvaluate_Idempotent(t *testing.T) {
	cfg := DefaultConfig()
	budget := model.BudgetState{
		DailyTradeCount:        4,
		DailyAmount:            dec("350"),
		OpenPositionsPerMarket: map[string]int{"market-1": 1},
	}

	for _, tr := range []model.TradeEvent{
		trade(model.SideBuy, "2000", "0.5"),
		trade(model.SideSell, "300", "0.7"),
		trade(model.SideBuy, "10", "0.5"),
	} {
		first := Evaluate(tr, cfg, budget)
		second := Evaluate(tr, cfg, budget)
		if !sameDecision(first, second) {
			t.Errorf("Evaluate not idempotent: %+v vs %+v", first, second)
		}
	}
}

func TestEvaluate_DailyTradeCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxDailyTrades = 2
	budget := emptyBudget()

	var reasons []model.Reason
	for i, market := range []string{"m1", "m2", "m3"} {
		tr := trade(model.SideBuy, "1000", "0.5")
		tr.ID = string(rune('a' + i))
		tr.MarketID = market

		d := Evaluate(tr, cfg, budget)
		reasons = append(reasons, d.Reason)
		if d.Approved {
			budget.DailyTradeCount++
			budget.DailyAmount = budget.DailyAmount.Add(d.CopyAmount)
			budget.OpenPositionsPerMarket[market]++
		}
	}

	want := []model.Reason{model.ReasonNone, model.ReasonNone, model.ReasonDailyTradeCapReached}
	for i := range want {
		if reasons[i] != want[i] {
			t.Errorf("trade %d reason = %q, want %q", i, reasons[i], want[i])
		}
	}
}
