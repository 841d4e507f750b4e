package llm

import (
	"context"
	"fmt"

	"github.com/couchcryptid/maternal-heat-risk/internal/domain"
	"github.com/couchcryptid/maternal-heat-risk/internal/observability"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the number of cached recommendation sets.
const DefaultCacheSize = 256

// CachedRecommender wraps a Recommender with an in-memory LRU cache keyed by
// RecommendationRequest.CacheKey.
type CachedRecommender struct {
	inner   domain.Recommender
	cache   *lru.Cache[string, domain.AIRecommendations]
	metrics *observability.Metrics
}

// NewCachedRecommender creates a cache decorator around a recommender.
func NewCachedRecommender(inner domain.Recommender, maxEntries int, metrics *observability.Metrics) (*CachedRecommender, error) {
	if maxEntries <= 0 {
		maxEntries = DefaultCacheSize
	}
	cache, err := lru.New[string, domain.AIRecommendations](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create recommendation cache: %w", err)
	}
	return &CachedRecommender{inner: inner, cache: cache, metrics: metrics}, nil
}

func (c *CachedRecommender) Recommend(ctx context.Context, req domain.RecommendationRequest) (domain.AIRecommendations, error) {
	key := req.CacheKey()
	if rec, ok := c.cache.Get(key); ok {
		c.metrics.AICache.WithLabelValues("hit").Inc()
		return rec, nil
	}
	c.metrics.AICache.WithLabelValues("miss").Inc()

	rec, err := c.inner.Recommend(ctx, req)
	if err != nil {
		return rec, err
	}
	// Unparsed replies are not cached so a later call can get structured advice.
	if rec.RawResponse == "" {
		c.cache.Add(key, rec)
	}
	return rec, nil
}

// Len returns the number of cached entries.
func (c *CachedRecommender) Len() int {
	return c.cache.Len()
}
