package clob

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/polymarket-mirror/internal/model"
)

// Pagination cursors used by the CLOB.
const (
	firstCursor = "MA=="
	endCursor   = "LTE="
	maxPages    = 50
)

// tradesPage is one page of GET /data/trades.
type tradesPage struct {
	Data       []apiTrade `json:"data"`
	NextCursor string     `json:"next_cursor"`
}

type apiTrade struct {
	ID           string          `json:"id"`
	Market       string          `json:"market"`
	AssetID      string          `json:"asset_id"`
	Side         string          `json:"side"`
	Size         decimal.Decimal `json:"size"`
	Price        decimal.Decimal `json:"price"`
	Status       string          `json:"status"`
	MatchTime    string          `json:"match_time"` // Unix seconds
	Outcome      string          `json:"outcome"`
	MakerAddress string          `json:"maker_address"`
	MakerOrders  []makerOrder    `json:"maker_orders"`
}

type makerOrder struct {
	MakerAddress  string          `json:"maker_address"`
	AssetID       string          `json:"asset_id"`
	Side          string          `json:"side"`
	MatchedAmount decimal.Decimal `json:"matched_amount"`
	Price         decimal.Decimal `json:"price"`
}

// FetchTrades returns trades by address strictly newer than after, sorted by
// match time. The address is queried as maker and as taker and the results
// are unioned by trade id.
func (c *Client) FetchTrades(ctx context.Context, address string, after time.Time) ([]model.TradeEvent, error) {
	seen := make(map[string]bool)
	var out []model.TradeEvent

	for _, role := range []string{"maker_address", "taker"} {
		raw, err := c.fetchAllTrades(ctx, role, address, after)
		if err != nil {
			return nil, fmt.Errorf("fetch trades as %s: %w", role, err)
		}

		for _, t := range raw {
			if seen[t.ID] {
				continue
			}
			ev, err := t.event(address)
			if err != nil {
				c.logger.Warn("skipping malformed trade", "trade_id", t.ID, "err", err)
				continue
			}
			if !ev.Timestamp.After(after) {
				continue
			}
			seen[t.ID] = true
			c.markets.Index(ev.AssetID, ev.MarketID)
			out = append(out, ev)
		}
	}

	slices.SortStableFunc(out, func(a, b model.TradeEvent) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return out, nil
}

func (c *Client) fetchAllTrades(ctx context.Context, role, address string, after time.Time) ([]apiTrade, error) {
	var all []apiTrade
	cursor := firstCursor

	for page := 0; page < maxPages && cursor != endCursor; page++ {
		q := url.Values{}
		q.Set(role, address)
		q.Set("after", strconv.FormatInt(after.Unix(), 10))
		q.Set("next_cursor", cursor)

		var resp tradesPage
		if err := c.rest.Get(ctx, "/data/trades", q, &resp); err != nil {
			return nil, err
		}
		all = append(all, resp.Data...)

		if resp.NextCursor == "" || resp.NextCursor == cursor {
			break
		}
		cursor = resp.NextCursor
	}

	return all, nil
}

// event converts a trade to the watched address's view of it. When the
// address provided a maker order, its own side, size and price are used.
func (t apiTrade) event(address string) (model.TradeEvent, error) {
	if t.ID == "" || t.Market == "" {
		return model.TradeEvent{}, fmt.Errorf("missing id or market")
	}

	secs, err := strconv.ParseInt(t.MatchTime, 10, 64)
	if err != nil {
		return model.TradeEvent{}, fmt.Errorf("match_time %q: %w", t.MatchTime, err)
	}

	ev := model.TradeEvent{
		ID:            t.ID,
		MarketID:      t.Market,
		AssetID:       t.AssetID,
		Size:          t.Size,
		Price:         t.Price,
		Timestamp:     time.Unix(secs, 0).UTC(),
		TraderAddress: strings.ToLower(address),
	}
	side := t.Side

	for _, mo := range t.MakerOrders {
		if strings.EqualFold(mo.MakerAddress, address) {
			side = mo.Side
			ev.Size = mo.MatchedAmount
			ev.Price = mo.Price
			if mo.AssetID != "" {
				ev.AssetID = mo.AssetID
			}
			break
		}
	}

	ev.Side, err = model.ParseSide(side)
	if err != nil {
		return model.TradeEvent{}, err
	}
	return ev, nil
}
