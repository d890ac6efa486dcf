package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/radiusdt/adinsights/internal/config"
	"github.com/radiusdt/adinsights/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		logger, err := NewLogger("debug", format)
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(zap.DebugLevel))
	}

	logger, err := NewLogger("bogus", "json")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.DebugLevel))
	assert.True(t, logger.Core().Enabled(zap.InfoLevel))
}

func TestRecoveryMiddleware(t *testing.T) {
	h := NewRecoveryMiddleware(zap.NewNop()).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tools", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func TestLoggingMiddlewareKeepsStatus(t *testing.T) {
	h := NewLoggingMiddleware(zap.NewNop(), "/health").Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "short and stout", rec.Body.String())
}

func TestLoggingMiddlewareTagsToolRuns(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(NewLoggingMiddleware(zap.New(core), "/health").Handler)
	r.Post("/tools/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(RunIDHeader, "run-17")
		w.WriteHeader(http.StatusOK)
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/tools/get_funnel", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	entries := logs.All()
	require.Len(t, entries, 2)

	tool := entries[0].ContextMap()
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, "get_funnel", tool["tool"])
	assert.Equal(t, "run-17", tool["run_id"])
	assert.Equal(t, "/tools/{name}", tool["route"])
	assert.NotEmpty(t, tool["request_id"])

	health := entries[1].ContextMap()
	assert.Equal(t, zap.DebugLevel, entries[1].Level)
	assert.NotContains(t, health, "tool")
	assert.NotContains(t, health, "run_id")
}

func TestLoggingMiddlewareWarnsOnClientErrors(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := NewLoggingMiddleware(zap.New(core)).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/tools/x", nil))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zap.WarnLevel, logs.All()[0].Level)
	assert.EqualValues(t, http.StatusBadRequest, logs.All()[0].ContextMap()["status"])
}

func TestAuthMiddleware(t *testing.T) {
	cfg := config.AuthConfig{Enabled: true, APIKey: "s3cret"}
	h := NewAuthMiddleware(cfg, zap.NewNop()).Handler(okHandler)

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"missing key", "/tools", "", http.StatusUnauthorized},
		{"wrong key", "/tools", "nope", http.StatusUnauthorized},
		{"header key", "/tools", "s3cret", http.StatusOK},
		{"query key", "/tools?api_key=s3cret", "", http.StatusOK},
		{"wrong query key", "/runs?api_key=s3cre", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(AuthHeaderName, tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAuthMiddlewareDisabled(t *testing.T) {
	h := NewAuthMiddleware(config.AuthConfig{}, zap.NewNop()).Handler(okHandler)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tools", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitSeparatesToolCalls(t *testing.T) {
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	cfg := config.RateLimitConfig{Enabled: true, RPS: 0.001, Burst: 5, ToolRPS: 0.001, ToolBurst: 1}
	h := NewRateLimitMiddleware(cfg, zap.NewNop(), m).Handler(okHandler)

	call := func(method, path string) int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call(http.MethodPost, "/tools/get_account_summary"))
	assert.Equal(t, http.StatusTooManyRequests, call(http.MethodPost, "/tools/get_account_summary"))
	assert.Equal(t, http.StatusOK, call(http.MethodGet, "/tools"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitHits.WithLabelValues("tool")))
}

func TestRateLimitDisabled(t *testing.T) {
	h := NewRateLimitMiddleware(config.RateLimitConfig{}, zap.NewNop(), nil).Handler(okHandler)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tools/x", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
