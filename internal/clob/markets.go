package clob

import (
	"context"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/rickgao/polymarket-mirror/internal/market"
)

type apiMarket struct {
	ConditionID     string          `json:"condition_id"`
	Question        string          `json:"question"`
	MinimumTickSize decimal.Decimal `json:"minimum_tick_size"`
	NegRisk         bool            `json:"neg_risk"`
	Active          bool            `json:"active"`
	Closed          bool            `json:"closed"`
	Tokens          []struct {
		TokenID string `json:"token_id"`
		Outcome string `json:"outcome"`
	} `json:"tokens"`
}

// GetMarket fetches metadata for one market by condition id.
func (c *Client) GetMarket(ctx context.Context, conditionID string) (market.Info, error) {
	var m apiMarket
	if err := c.rest.Get(ctx, "/markets/"+url.PathEscape(conditionID), nil, &m); err != nil {
		return market.Info{}, err
	}

	info := market.Info{
		ConditionID: m.ConditionID,
		Question:    m.Question,
		TickSize:    m.MinimumTickSize,
		NegRisk:     m.NegRisk,
		Active:      m.Active,
		Closed:      m.Closed,
	}
	if info.ConditionID == "" {
		info.ConditionID = conditionID
	}
	for _, t := range m.Tokens {
		info.Tokens = append(info.Tokens, market.Token{TokenID: t.TokenID, Outcome: t.Outcome})
	}
	return info, nil
}
