package sources

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rickgao/polymarket-mirror/internal/aggregator"
	"github.com/rickgao/polymarket-mirror/internal/api"
	"github.com/rickgao/polymarket-mirror/internal/model"
)

const topTradersQuery = `query TopTraders($count: Int) {
  users(first: $count, orderBy: totalPnl, orderDirection: desc, where: { totalPnl_gt: 10000 }) {
    id address totalPnl winCount loseCount totalPositions activePositions totalWins totalLosses currentValue
  }
}`

const traderQuery = `query Trader($address: ID!) {
  user(id: $address) {
    id address totalPnl winCount loseCount totalPositions activePositions totalWins totalLosses currentValue
  }
}`

var subgraphFields = aggregator.FieldMap{
	Address:         []string{"address", "id"},
	PnL:             "totalPnl",
	WinCount:        "winCount",
	LoseCount:       "loseCount",
	TotalPositions:  "totalPositions",
	ActivePositions: "activePositions",
	TotalWins:       "totalWins",
	TotalLosses:     "totalLosses",
	CurrentValue:    "currentValue",
}

type graphRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphError struct {
	Message string `json:"message"`
}

type usersResponse struct {
	Data struct {
		Users []aggregator.Payload `json:"users"`
	} `json:"data"`
	Errors []graphError `json:"errors"`
}

type userResponse struct {
	Data struct {
		User aggregator.Payload `json:"user"`
	} `json:"data"`
	Errors []graphError `json:"errors"`
}

// SubgraphSource queries the Polymarket subgraph.
type SubgraphSource struct {
	client *api.Client
	logger *slog.Logger
}

// NewSubgraphSource creates the source for a GraphQL endpoint.
func NewSubgraphSource(endpoint string, logger *slog.Logger, opts ...api.ClientOption) *SubgraphSource {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append([]api.ClientOption{api.WithLogger(logger)}, opts...)
	return &SubgraphSource{client: api.NewClient(endpoint, opts...), logger: logger}
}

func (s *SubgraphSource) Name() string { return "subgraph" }

// FetchTopTraders returns up to limit users ranked by total PnL.
func (s *SubgraphSource) FetchTopTraders(ctx context.Context, limit int) ([]model.TraderRecord, error) {
	var resp usersResponse
	req := graphRequest{Query: topTradersQuery, Variables: map[string]any{"count": limit}}
	if err := s.client.PostJSON(ctx, "", req, &resp); err != nil {
		return nil, fmt.Errorf("query subgraph users: %w", err)
	}
	if err := joinGraphErrors(resp.Errors); err != nil {
		return nil, err
	}
	return normalize(s.logger, s.Name(), resp.Data.Users, subgraphFields, limit), nil
}

// TraderPerformance returns the subgraph user for one address.
func (s *SubgraphSource) TraderPerformance(ctx context.Context, address string) (model.TraderRecord, error) {
	var resp userResponse
	req := graphRequest{Query: traderQuery, Variables: map[string]any{"address": address}}
	if err := s.client.PostJSON(ctx, "", req, &resp); err != nil {
		return model.TraderRecord{}, fmt.Errorf("query subgraph user %s: %w", address, err)
	}
	if err := joinGraphErrors(resp.Errors); err != nil {
		return model.TraderRecord{}, err
	}
	if len(resp.Data.User) == 0 {
		return model.TraderRecord{}, fmt.Errorf("%w: subgraph user %s", model.ErrNotFound, address)
	}
	return aggregator.Normalize(resp.Data.User, subgraphFields)
}

func joinGraphErrors(errs []graphError) error {
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Message
	}
	return fmt.Errorf("subgraph errors: %s", strings.Join(msgs, "; "))
}
