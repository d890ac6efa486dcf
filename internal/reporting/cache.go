package reporting

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"time"

	"github.com/radiusdt/adinsights/internal/metrics"
	"github.com/radiusdt/adinsights/internal/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "adinsights:report:"

// CachedFetcher serves repeated report fetches from Redis.
// Redis failures fall through to the wrapped fetcher.
type CachedFetcher struct {
	next    ReportFetcher
	client  redis.Cmdable
	ttl     time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewCachedFetcher wraps next with a Redis cache holding rows for ttl.
func NewCachedFetcher(next ReportFetcher, client redis.Cmdable, ttl time.Duration, logger *zap.Logger, m *metrics.Metrics) *CachedFetcher {
	return &CachedFetcher{
		next:    next,
		client:  client,
		ttl:     ttl,
		logger:  logger,
		metrics: m,
	}
}

// CacheKey is the Redis key for a request. url.Values encodes in sorted key
// order, so equal requests share a key.
func CacheKey(entityPath string, params url.Values) string {
	sum := sha256.Sum256([]byte(entityPath + "?" + params.Encode()))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

// FetchReport implements ReportFetcher.
func (c *CachedFetcher) FetchReport(ctx context.Context, entityPath string, params url.Values) ([]models.ReportRow, error) {
	key := CacheKey(entityPath, params)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var rows []models.ReportRow
		if err := json.Unmarshal(data, &rows); err == nil {
			c.metrics.RecordCacheLookup("hit")
			return rows, nil
		}
		c.logger.Warn("discarding unreadable cache entry", zap.String("key", key))
		c.metrics.RecordCacheLookup("error")
	case errors.Is(err, redis.Nil):
		c.metrics.RecordCacheLookup("miss")
	default:
		c.logger.Warn("report cache unavailable", zap.Error(err))
		c.metrics.RecordCacheLookup("error")
	}

	rows, err := c.next.FetchReport(ctx, entityPath, params)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(rows)
	if err != nil {
		c.logger.Warn("failed to encode rows for cache", zap.Error(err))
		return rows, nil
	}
	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		c.logger.Warn("failed to store report in cache", zap.String("key", key), zap.Error(err))
	}
	return rows, nil
}
