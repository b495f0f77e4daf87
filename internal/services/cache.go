package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/temcen/shopsense/internal/recommender"
)

// RecommendationCache memoizes results per model version. Keys embed the version, so a
// model swap invalidates every entry without a flush. A nil cache is a permanent miss.
type RecommendationCache struct {
	client  redis.Cmdable
	ttl     time.Duration
	logger  *logrus.Logger
	metrics *Metrics
}

func NewRecommendationCache(client redis.Cmdable, ttl time.Duration, metrics *Metrics, logger *logrus.Logger) *RecommendationCache {
	return &RecommendationCache{client: client, ttl: ttl, metrics: metrics, logger: logger}
}

func cacheKey(version, userID string, n int) string {
	return fmt.Sprintf("recs:%s:%s:%d", version, userID, n)
}

func (c *RecommendationCache) Get(ctx context.Context, version, userID string, n int) (*recommender.Recommendation, bool) {
	if c == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, cacheKey(version, userID, n)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.metrics.cacheLookups.WithLabelValues("miss").Inc()
		} else {
			c.metrics.cacheLookups.WithLabelValues("error").Inc()
			c.logger.WithError(err).Warn("Recommendation cache read failed")
		}
		return nil, false
	}

	var rec recommender.Recommendation
	if err := json.Unmarshal(data, &rec); err != nil {
		c.metrics.cacheLookups.WithLabelValues("error").Inc()
		c.logger.WithError(err).Warn("Discarding undecodable cache entry")
		return nil, false
	}

	c.metrics.cacheLookups.WithLabelValues("hit").Inc()
	return &rec, true
}

// Set stores rec. Failures are logged and otherwise ignored.
func (c *RecommendationCache) Set(ctx context.Context, rec *recommender.Recommendation, n int) {
	if c == nil {
		return
	}

	data, err := json.Marshal(rec)
	if err != nil {
		c.logger.WithError(err).Warn("Failed to encode recommendation for cache")
		return
	}

	if err := c.client.Set(ctx, cacheKey(rec.ModelVersion, rec.UserID, n), data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("Recommendation cache write failed")
	}
}
