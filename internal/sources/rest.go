package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/rickgao/polymarket-mirror/internal/aggregator"
	"github.com/rickgao/polymarket-mirror/internal/api"
	"github.com/rickgao/polymarket-mirror/internal/model"
)

// Provider-side prefilter sent with every ranking request.
const providerMinPnL = "10000"

var analyticsFields = aggregator.FieldMap{
	Address:         []string{"address"},
	Username:        "username",
	PnL:             "pnl",
	WinRate:         "win_rate",
	TotalPositions:  "total_positions",
	ActivePositions: "active_positions",
	TotalWins:       "total_wins",
	TotalLosses:     "total_losses",
	CurrentValue:    "current_value",
}

var whalesFields = aggregator.FieldMap{
	Address:         []string{"address"},
	Username:        "name",
	PnL:             "pnl",
	WinRate:         "win_rate",
	TotalPositions:  "total_positions",
	ActivePositions: "active_positions",
	TotalWins:       "wins_value",
	TotalLosses:     "losses_value",
	CurrentValue:    "holdings_value",
}

type tradersResponse struct {
	Traders []aggregator.Payload `json:"traders"`
}

type traderResponse struct {
	Trader aggregator.Payload `json:"trader"`
}

// AnalyticsSource queries polymarketanalytics.
type AnalyticsSource struct {
	client *api.Client
	logger *slog.Logger
}

// NewAnalyticsSource creates the source. endpoint is the traders collection URL.
func NewAnalyticsSource(endpoint, apiKey string, logger *slog.Logger, opts ...api.ClientOption) *AnalyticsSource {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append([]api.ClientOption{api.WithHeader("X-API-KEY", apiKey), api.WithLogger(logger)}, opts...)
	return &AnalyticsSource{client: api.NewClient(endpoint, opts...), logger: logger}
}

func (s *AnalyticsSource) Name() string { return "polymarketanalytics" }

// FetchTopTraders returns up to limit traders ranked by PnL.
func (s *AnalyticsSource) FetchTopTraders(ctx context.Context, limit int) ([]model.TraderRecord, error) {
	q := url.Values{}
	q.Set("sort", "pnl")
	q.Set("order", "desc")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("min_pnl", providerMinPnL)
	q.Set("min_win_rate", "0.6")

	var resp tradersResponse
	if err := s.client.Get(ctx, "", q, &resp); err != nil {
		return nil, fmt.Errorf("fetch %s traders: %w", s.Name(), err)
	}
	return normalize(s.logger, s.Name(), resp.Traders, analyticsFields, limit), nil
}

// TraderPerformance returns the provider's record for one address.
func (s *AnalyticsSource) TraderPerformance(ctx context.Context, address string) (model.TraderRecord, error) {
	var resp traderResponse
	if err := s.client.Get(ctx, "/"+url.PathEscape(address), nil, &resp); err != nil {
		return model.TraderRecord{}, fmt.Errorf("fetch %s trader %s: %w", s.Name(), address, err)
	}
	if len(resp.Trader) == 0 {
		return model.TraderRecord{}, fmt.Errorf("%w: trader %s", model.ErrNotFound, address)
	}
	if _, ok := resp.Trader["address"]; !ok {
		resp.Trader["address"] = address
	}
	return aggregator.Normalize(resp.Trader, analyticsFields)
}

// WhalesSource queries polymarketwhales.
type WhalesSource struct {
	client *api.Client
	logger *slog.Logger
}

// NewWhalesSource creates the source. endpoint is the traders collection URL.
func NewWhalesSource(endpoint, apiKey string, logger *slog.Logger, opts ...api.ClientOption) *WhalesSource {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append([]api.ClientOption{api.WithBearer(apiKey), api.WithLogger(logger)}, opts...)
	return &WhalesSource{client: api.NewClient(endpoint, opts...), logger: logger}
}

func (s *WhalesSource) Name() string { return "polymarketwhales" }

// FetchTopTraders returns up to limit traders ranked by PnL.
func (s *WhalesSource) FetchTopTraders(ctx context.Context, limit int) ([]model.TraderRecord, error) {
	q := url.Values{}
	q.Set("sort", "pnl")
	q.Set("direction", "desc")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("min_pnl", providerMinPnL)

	var resp tradersResponse
	if err := s.client.Get(ctx, "", q, &resp); err != nil {
		return nil, fmt.Errorf("fetch %s traders: %w", s.Name(), err)
	}
	return normalize(s.logger, s.Name(), resp.Traders, whalesFields, limit), nil
}

func normalize(logger *slog.Logger, source string, items []aggregator.Payload, fields aggregator.FieldMap, limit int) []model.TraderRecord {
	recs, dropped := aggregator.NormalizeAll(items, fields)
	if dropped > 0 {
		logger.Warn("dropped malformed trader records", "source", source, "dropped", dropped)
	}
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}
