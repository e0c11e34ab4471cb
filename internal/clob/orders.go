package clob

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/rickgao/polymarket-mirror/internal/auth"
	"github.com/rickgao/polymarket-mirror/internal/model"
)

var (
	defaultTick = decimal.RequireFromString("0.01")
	minSize     = decimal.RequireFromString("0.01")
)

// orderPayload is the JSON form of a signed order.
type orderPayload struct {
	Salt          int64  `json:"salt"`
	Maker         string `json:"maker"`
	Signer        string `json:"signer"`
	Taker         string `json:"taker"`
	TokenID       string `json:"tokenId"`
	MakerAmount   string `json:"makerAmount"`
	TakerAmount   string `json:"takerAmount"`
	Expiration    string `json:"expiration"`
	Nonce         string `json:"nonce"`
	FeeRateBps    string `json:"feeRateBps"`
	Side          string `json:"side"`
	SignatureType int    `json:"signatureType"`
	Signature     string `json:"signature"`
}

type orderRequest struct {
	Order     orderPayload `json:"order"`
	Owner     string       `json:"owner"`
	OrderType string       `json:"orderType"`
}

type orderResponse struct {
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg"`
	OrderID  string `json:"orderId"`
	Status   string `json:"status"`
}

// Submit places a GTC limit order and returns the exchange order id.
// Size is in shares. Orders are never retried.
func (c *Client) Submit(ctx context.Context, assetID string, side model.Side, price, size decimal.Decimal) (string, error) {
	if c.signer == nil {
		return "", fmt.Errorf("%w: no private key configured", model.ErrExecutionFailed)
	}

	info, err := c.markets.ByToken(ctx, assetID)
	if err != nil {
		return "", fmt.Errorf("%w: resolve market for %s: %v", model.ErrExecutionFailed, assetID, err)
	}

	tick := info.TickSize
	if !tick.IsPositive() {
		tick = defaultTick
	}

	order, err := buildOrder(side, roundPrice(price, tick), roundSize(size))
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrExecutionFailed, err)
	}
	order.Salt = c.salt()
	order.Maker = c.funder
	order.Signer = c.signer.Address().Hex()
	order.TokenID = assetID
	order.SignatureType = c.sigType

	sig, err := c.signer.SignOrder(order, info.NegRisk)
	if err != nil {
		return "", fmt.Errorf("%w: %v", model.ErrExecutionFailed, err)
	}

	req := orderRequest{
		Order: orderPayload{
			Salt:          order.Salt,
			Maker:         order.Maker,
			Signer:        order.Signer,
			Taker:         order.Taker,
			TokenID:       order.TokenID,
			MakerAmount:   order.MakerAmount,
			TakerAmount:   order.TakerAmount,
			Expiration:    order.Expiration,
			Nonce:         order.Nonce,
			FeeRateBps:    order.FeeRateBps,
			Side:          string(side),
			SignatureType: int(order.SignatureType),
			Signature:     sig,
		},
		Owner:     c.creds.APIKey,
		OrderType: "GTC",
	}

	var resp orderResponse
	if err := c.rest.PostJSON(ctx, "/order", req, &resp); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", fmt.Errorf("%w: post order: %v", model.ErrExecutionFailed, err)
	}
	if !resp.Success || resp.OrderID == "" {
		return "", fmt.Errorf("%w: order rejected: %s", model.ErrExecutionFailed, resp.ErrorMsg)
	}

	c.logger.Info("order placed",
		"order_id", resp.OrderID,
		"status", resp.Status,
		"asset_id", assetID,
		"side", side,
		"price", price,
		"size", size,
	)
	return resp.OrderID, nil
}

// buildOrder computes 6-decimal maker and taker amounts.
// BUY gives USDC for shares; SELL gives shares for USDC.
func buildOrder(side model.Side, price, size decimal.Decimal) (auth.Order, error) {
	if !price.IsPositive() || price.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return auth.Order{}, fmt.Errorf("price %s outside (0, 1)", price)
	}

	shares := baseUnits(size)
	usdc := baseUnits(size.Mul(price).Round(4))

	o := auth.Order{
		Taker:      auth.ZeroAddress,
		Expiration: "0",
		Nonce:      "0",
		FeeRateBps: "0",
	}
	switch side {
	case model.SideBuy:
		o.Side = auth.OrderSideBuy
		o.MakerAmount, o.TakerAmount = usdc, shares
	case model.SideSell:
		o.Side = auth.OrderSideSell
		o.MakerAmount, o.TakerAmount = shares, usdc
	default:
		return auth.Order{}, fmt.Errorf("unknown side %q", side)
	}
	return o, nil
}

// roundPrice rounds to the nearest tick and keeps the price inside (0, 1).
func roundPrice(price, tick decimal.Decimal) decimal.Decimal {
	p := price.Div(tick).Round(0).Mul(tick)
	if p.LessThan(tick) {
		return tick
	}
	if ceiling := decimal.NewFromInt(1).Sub(tick); p.GreaterThan(ceiling) {
		return ceiling
	}
	return p
}

func roundSize(size decimal.Decimal) decimal.Decimal {
	s := size.Round(2)
	if s.LessThan(minSize) {
		return minSize
	}
	return s
}

func baseUnits(d decimal.Decimal) string {
	return strconv.FormatInt(d.Shift(6).Round(0).IntPart(), 10)
}
