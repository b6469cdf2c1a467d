package remoteclip

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/couchcryptid/satellite-change-service/internal/domain"
	"github.com/couchcryptid/satellite-change-service/internal/observability"
	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedEmbedder wraps an Embedder with an in-memory LRU cache keyed by the
// SHA-256 of the image bytes.
type CachedEmbedder struct {
	inner   domain.Embedder
	model   string
	cache   *lru.Cache[string, domain.FeatureVector]
	metrics *observability.Metrics
}

// NewCachedEmbedder creates a cache decorator around an embedder. Model labels
// the inference metrics.
func NewCachedEmbedder(inner domain.Embedder, model string, maxEntries int, metrics *observability.Metrics) (*CachedEmbedder, error) {
	cache, err := lru.New[string, domain.FeatureVector](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &CachedEmbedder{inner: inner, model: model, cache: cache, metrics: metrics}, nil
}

func (c *CachedEmbedder) Embed(ctx context.Context, image []byte) (domain.FeatureVector, error) {
	sum := sha256.Sum256(image)
	key := hex.EncodeToString(sum[:])
	if v, ok := c.cache.Get(key); ok {
		c.metrics.EmbeddingCache.WithLabelValues("hit").Inc()
		return v, nil
	}
	c.metrics.EmbeddingCache.WithLabelValues("miss").Inc()

	start := time.Now()
	v, err := c.inner.Embed(ctx, image)
	c.metrics.EmbedDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.Embeddings.WithLabelValues(c.model, "error").Inc()
		return v, err
	}
	c.metrics.Embeddings.WithLabelValues(c.model, "success").Inc()
	c.cache.Add(key, v)
	return v, nil
}

// Len reports the number of cached vectors.
func (c *CachedEmbedder) Len() int { return c.cache.Len() }
