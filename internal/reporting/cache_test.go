package reporting

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/radiusdt/adinsights/internal/metrics"
	"github.com/radiusdt/adinsights/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newCache(t *testing.T, next ReportFetcher) (*CachedFetcher, *miniredis.Miniredis, *metrics.Metrics) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	return NewCachedFetcher(next, client, time.Minute, zap.NewNop(), m), mr, m
}

func TestCachedFetcherServesRepeatRequests(t *testing.T) {
	next := &fakeFetcher{rows: []models.ReportRow{
		{CampaignID: "c1", Spend: "12.50", Dimensions: map[string]string{"age": "18-24"}},
	}}
	cache, mr, m := newCache(t, next)
	params := url.Values{"level": {"campaign"}, "fields": {"spend"}}

	first, err := cache.FetchReport(context.Background(), "act_1/insights", params)
	require.NoError(t, err)
	second, err := cache.FetchReport(context.Background(), "act_1/insights", params)
	require.NoError(t, err)

	assert.Equal(t, 1, next.calls)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].CampaignID, second[0].CampaignID)
	assert.Equal(t, "18-24", second[0].Dimension("age"))
	assert.Equal(t, "12.50", second[0].Spend)

	key := CacheKey("act_1/insights", params)
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Minute, mr.TTL(key))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
}

func TestCachedFetcherKeysByParams(t *testing.T) {
	next := &fakeFetcher{}
	cache, _, _ := newCache(t, next)

	_, err := cache.FetchReport(context.Background(), "act_1/insights", url.Values{"level": {"ad"}})
	require.NoError(t, err)
	_, err = cache.FetchReport(context.Background(), "act_1/insights", url.Values{"level": {"adset"}})
	require.NoError(t, err)

	assert.Equal(t, 2, next.calls)
}

func TestCachedFetcherFallsThroughWhenRedisDown(t *testing.T) {
	next := &fakeFetcher{rows: []models.ReportRow{{CampaignID: "c1"}}}
	cache, mr, m := newCache(t, next)
	mr.Close()

	rows, err := cache.FetchReport(context.Background(), "act_1/insights", url.Values{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("error")))
}

func TestCachedFetcherDoesNotCacheErrors(t *testing.T) {
	next := &fakeFetcher{err: assert.AnError}
	cache, mr, _ := newCache(t, next)

	_, err := cache.FetchReport(context.Background(), "act_1/insights", url.Values{})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, mr.Keys())
}
