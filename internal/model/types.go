package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Trader Selection Types
// -----------------------------------------------------------------------------

// TraderRecord is a normalized snapshot of a ranked trader from an analytics provider.
// PnL and WinRate are nil when the provider did not report them.
type TraderRecord struct {
	Address         string   `json:"address"`            // Lowercase hex, unique key
	Username        string   `json:"username,omitempty"` // Optional display name
	PnL             *float64 `json:"pnl,omitempty"`
	WinRate         *float64 `json:"win_rate,omitempty"` // 0.0-1.0
	TotalPositions  int      `json:"total_positions"`
	ActivePositions int      `json:"active_positions"`
	TotalWins       float64  `json:"total_wins"`
	TotalLosses     float64  `json:"total_losses"`
	CurrentValue    float64  `json:"current_value"`
}

// WatchEntry is a watched address and its trade cursor.
type WatchEntry struct {
	Address string    `json:"address"`
	Cursor  time.Time `json:"cursor"` // Timestamp of the last trade already considered
	AddedAt time.Time `json:"added_at"`
}

// -----------------------------------------------------------------------------
// Trading Types
// -----------------------------------------------------------------------------

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ParseSide parses a side string case-insensitively.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return SideBuy, nil
	case "SELL":
		return SideSell, nil
	default:
		return "", fmt.Errorf("unknown side %q", s)
	}
}

// TradeEvent is a trade made by a watched address, as reported by the exchange.
type TradeEvent struct {
	ID            string
	MarketID      string // Condition ID
	AssetID       string // Outcome token ID
	Side          Side
	Size          decimal.Decimal
	Price         decimal.Decimal
	Timestamp     time.Time
	TraderAddress string
}

// Reason explains why a CopyDecision was not approved.
type Reason string

const (
	ReasonNone                     Reason = ""
	ReasonBelowMinimum             Reason = "below_minimum"
	ReasonBlacklisted              Reason = "blacklisted"
	ReasonNotWhitelisted           Reason = "not_whitelisted"
	ReasonSideDisabled             Reason = "side_disabled"
	ReasonMarketPositionCapReached Reason = "market_position_cap_reached"
	ReasonDailyTradeCapReached     Reason = "daily_trade_cap_reached"
	ReasonDailyAmountCapReached    Reason = "daily_amount_cap_reached"
)

// Reasons lists every rejection reason in gate order.
var Reasons = []Reason{
	ReasonBelowMinimum,
	ReasonBlacklisted,
	ReasonNotWhitelisted,
	ReasonSideDisabled,
	ReasonMarketPositionCapReached,
	ReasonDailyTradeCapReached,
	ReasonDailyAmountCapReached,
}

// CopyDecision is the policy outcome for a single trade event.
type CopyDecision struct {
	SourceTradeID string          `json:"source_trade_id"`
	TraderAddress string          `json:"trader_address"`
	MarketID      string          `json:"market_id"`
	AssetID       string          `json:"asset_id"`
	Side          Side            `json:"side"`
	Price         decimal.Decimal `json:"price"`
	TradeValue    decimal.Decimal `json:"trade_value"`
	CopyAmount    decimal.Decimal `json:"copy_amount"` // USD notional
	Approved      bool            `json:"approved"`
	Reason        Reason          `json:"reason,omitempty"`
}

// OrderSize returns the size to submit for this decision.
// SELL orders are sized in USD notional, BUY orders in shares.
func (d CopyDecision) OrderSize() decimal.Decimal {
	if d.Side == SideSell || d.Price.IsZero() {
		return d.CopyAmount
	}
	return d.CopyAmount.Div(d.Price)
}

// -----------------------------------------------------------------------------
// Ledger Types
// -----------------------------------------------------------------------------

// LedgerEntry records an executed mirror trade. Append-only.
type LedgerEntry struct {
	Timestamp       time.Time       `json:"timestamp"`
	SourceTradeID   string          `json:"source_trade_id"` // Unique across the ledger
	MarketID        string          `json:"market_id"`
	AssetID         string          `json:"asset_id"`
	Side            Side            `json:"side"`
	Price           decimal.Decimal `json:"price"`
	CopyAmount      decimal.Decimal `json:"copy_amount"`
	ExecutedOrderID string          `json:"executed_order_id"`
}

// BudgetState is derived from the ledger for one UTC day. Never stored.
type BudgetState struct {
	DailyTradeCount        int
	DailyAmount            decimal.Decimal
	OpenPositionsPerMarket map[string]int
}

// GroupByMarket groups entries by market ID, preserving order within each market.
func GroupByMarket(entries []LedgerEntry) map[string][]LedgerEntry {
	out := make(map[string][]LedgerEntry)
	for _, e := range entries {
		out[e.MarketID] = append(out[e.MarketID], e)
	}
	return out
}
