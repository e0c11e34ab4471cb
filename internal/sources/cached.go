package sources

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/rickgao/polymarket-mirror/internal/aggregator"
	"github.com/rickgao/polymarket-mirror/internal/cache"
	"github.com/rickgao/polymarket-mirror/internal/model"
)

// CachedSource serves a source's ranking from cache while it is fresh.
type CachedSource struct {
	inner  aggregator.Source
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedSource wraps inner. Cache failures fall through to inner.
func NewCachedSource(inner aggregator.Source, c cache.Cache, ttl time.Duration, logger *slog.Logger) *CachedSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedSource{inner: inner, cache: c, ttl: ttl, logger: logger}
}

func (s *CachedSource) Name() string { return s.inner.Name() }

func (s *CachedSource) key() string { return s.inner.Name() + "_top_traders" }

// FetchTopTraders returns cached records when present, else queries and caches.
func (s *CachedSource) FetchTopTraders(ctx context.Context, limit int) ([]model.TraderRecord, error) {
	data, ok, err := s.cache.Get(ctx, s.key())
	if err != nil {
		s.logger.Warn("trader cache read failed", "source", s.Name(), "err", err)
	}
	if ok {
		var recs []model.TraderRecord
		if err := json.Unmarshal(data, &recs); err == nil {
			s.logger.Debug("trader cache hit", "source", s.Name(), "count", len(recs))
			if limit > 0 && len(recs) > limit {
				recs = recs[:limit]
			}
			return recs, nil
		}
		s.logger.Warn("discarding undecodable trader cache", "source", s.Name())
	}

	recs, err := s.inner.FetchTopTraders(ctx, limit)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(recs); err == nil {
		if err := s.cache.Set(ctx, s.key(), data, s.ttl); err != nil {
			s.logger.Warn("trader cache write failed", "source", s.Name(), "err", err)
		}
	}
	return recs, nil
}
