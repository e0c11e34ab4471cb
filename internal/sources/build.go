package sources

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/polymarket-mirror/internal/aggregator"
	"github.com/rickgao/polymarket-mirror/internal/api"
	"github.com/rickgao/polymarket-mirror/internal/cache"
	"github.com/rickgao/polymarket-mirror/internal/config"
)

// Set is the configured providers in query order.
type Set struct {
	// Rankers are queried for top traders, cached when a cache is configured.
	Rankers []aggregator.Source

	// Lookups answer per-trader performance queries (analytics, then subgraph).
	Lookups []aggregator.PerformanceSource
}

// FromConfig builds providers from cfg. c may be nil to disable caching;
// otherwise rankings are cached for ttl.
// Unknown provider names are an error.
func FromConfig(cfg config.AnalyticsConfig, c cache.Cache, ttl time.Duration, logger *slog.Logger) (Set, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []api.ClientOption{api.WithTimeout(cfg.Timeout)}

	var (
		set      Set
		subgraph *SubgraphSource
	)
	for _, sc := range cfg.Sources {
		var src aggregator.Source
		switch sc.Name {
		case config.SourceAnalytics:
			a := NewAnalyticsSource(sc.URL, sc.APIKey, logger, opts...)
			set.Lookups = append(set.Lookups, a)
			src = a
		case config.SourceWhales:
			src = NewWhalesSource(sc.URL, sc.APIKey, logger, opts...)
		case config.SourceSubgraph:
			subgraph = NewSubgraphSource(sc.URL, logger, opts...)
			src = subgraph
		default:
			return Set{}, fmt.Errorf("unknown analytics source %q", sc.Name)
		}

		if c != nil {
			src = NewCachedSource(src, c, ttl, logger)
		}
		set.Rankers = append(set.Rankers, src)
	}

	// Subgraph is the performance fallback regardless of its position.
	if subgraph != nil {
		set.Lookups = append(set.Lookups, subgraph)
	}
	return set, nil
}
