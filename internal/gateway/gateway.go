// Package gateway selects where mirrored orders are sent.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rickgao/polymarket-mirror/internal/model"
)

// Gateway modes.
const (
	ModePaper = "paper"
	ModeCLOB  = "clob"
)

// Gateway submits orders and returns the exchange order id.
type Gateway interface {
	Submit(ctx context.Context, assetID string, side model.Side, price, size decimal.Decimal) (string, error)
}

// New returns the gateway for mode. live is used in clob mode and may be nil
// otherwise.
func New(mode string, live Gateway, logger *slog.Logger) (Gateway, error) {
	switch mode {
	case ModePaper, "":
		return NewPaper(logger), nil
	case ModeCLOB:
		if live == nil {
			return nil, fmt.Errorf("gateway mode %q requires a clob client", mode)
		}
		return live, nil
	default:
		return nil, fmt.Errorf("unknown gateway mode %q", mode)
	}
}

// Order is an order accepted by the paper gateway.
type Order struct {
	ID       string
	AssetID  string
	Side     model.Side
	Price    decimal.Decimal
	Size     decimal.Decimal
	PlacedAt time.Time
}

// Paper accepts every order without sending it anywhere.
type Paper struct {
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	orders []Order
}

// NewPaper creates a paper gateway.
func NewPaper(logger *slog.Logger) *Paper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Paper{logger: logger, now: time.Now}
}

// Submit records the order and returns a random id.
func (p *Paper) Submit(ctx context.Context, assetID string, side model.Side, price, size decimal.Decimal) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !size.IsPositive() || !price.IsPositive() {
		return "", fmt.Errorf("%w: price %s size %s must be positive", model.ErrExecutionFailed, price, size)
	}

	o := Order{
		ID:       "paper-" + uuid.NewString(),
		AssetID:  assetID,
		Side:     side,
		Price:    price,
		Size:     size,
		PlacedAt: p.now().UTC(),
	}

	p.mu.Lock()
	p.orders = append(p.orders, o)
	p.mu.Unlock()

	p.logger.Info("paper order placed",
		"order_id", o.ID,
		"asset_id", assetID,
		"side", side,
		"price", price,
		"size", size,
	)
	return o.ID, nil
}

// Orders returns a copy of every accepted order.
func (p *Paper) Orders() []Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Order(nil), p.orders...)
}
