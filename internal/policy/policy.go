// Package policy decides whether and how much of a watched trade to mirror.
//
// Evaluate is pure: identical inputs always yield identical decisions.
// Gates run in a fixed order and the first failing gate sets the reason.
package policy

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/rickgao/polymarket-mirror/internal/model"
)

// Config holds the thresholds the policy engine applies.
type Config struct {
	MinAmountToCopy       decimal.Decimal
	MaxAmountToCopy       decimal.Decimal
	CopyPercentage        decimal.Decimal
	BlacklistedMarkets    []string
	WhitelistOnly         bool
	WhitelistedMarkets    []string
	CopyBuys              bool
	CopySells             bool
	MaxPositionsPerMarket int
	MaxDailyTrades        int
	MaxDailyAmount        decimal.Decimal
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		MinAmountToCopy:       decimal.NewFromInt(50),
		MaxAmountToCopy:       decimal.NewFromInt(500),
		CopyPercentage:        decimal.RequireFromString("0.1"),
		CopyBuys:              true,
		CopySells:             true,
		MaxPositionsPerMarket: 3,
		MaxDailyTrades:        10,
		MaxDailyAmount:        decimal.NewFromInt(1000),
	}
}

// TradeValue returns the USD notional of a trade.
// SELL trades are valued at size*price; BUY sizes are already USD-quoted.
func TradeValue(trade model.TradeEvent) decimal.Decimal {
	if trade.Side == model.SideSell {
		return trade.Size.Mul(trade.Price)
	}
	return trade.Size
}

// Evaluate maps a trade, configuration and budget to a copy decision.
func Evaluate(trade model.TradeEvent, cfg Config, budget model.BudgetState) model.CopyDecision {
	d := model.CopyDecision{
		SourceTradeID: trade.ID,
		TraderAddress: trade.TraderAddress,
		MarketID:      trade.MarketID,
		AssetID:       trade.AssetID,
		Side:          trade.Side,
		Price:         trade.Price,
		CopyAmount:    decimal.Zero,
	}

	value := TradeValue(trade)
	d.TradeValue = value

	if value.LessThan(cfg.MinAmountToCopy) {
		return reject(d, model.ReasonBelowMinimum)
	}
	if slices.Contains(cfg.BlacklistedMarkets, trade.MarketID) {
		return reject(d, model.ReasonBlacklisted)
	}
	if cfg.WhitelistOnly && !slices.Contains(cfg.WhitelistedMarkets, trade.MarketID) {
		return reject(d, model.ReasonNotWhitelisted)
	}
	if !sideEnabled(trade.Side, cfg) {
		return reject(d, model.ReasonSideDisabled)
	}
	if budget.OpenPositionsPerMarket[trade.MarketID] >= cfg.MaxPositionsPerMarket {
		return reject(d, model.ReasonMarketPositionCapReached)
	}
	if budget.DailyTradeCount >= cfg.MaxDailyTrades {
		return reject(d, model.ReasonDailyTradeCapReached)
	}

	amount := decimal.Min(value.Mul(cfg.CopyPercentage), cfg.MaxAmountToCopy)

	// No partial sizing: an amount that would breach the daily cap is dropped whole.
	if budget.DailyAmount.Add(amount).GreaterThan(cfg.MaxDailyAmount) {
		return reject(d, model.ReasonDailyAmountCapReached)
	}

	d.CopyAmount = amount
	d.Approved = true
	return d
}

func reject(d model.CopyDecision, reason model.Reason) model.CopyDecision {
	d.Approved = false
	d.Reason = reason
	d.CopyAmount = decimal.Zero
	return d
}

func sideEnabled(side model.Side, cfg Config) bool {
	switch side {
	case model.SideBuy:
		return cfg.CopyBuys
	case model.SideSell:
		return cfg.CopySells
	default:
		return false
	}
}
