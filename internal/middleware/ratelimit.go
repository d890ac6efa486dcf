package middleware

import (
	"net/http"
	"strings"

	"github.com/radiusdt/adinsights/internal/config"
	"github.com/radiusdt/adinsights/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ToolPathPrefix marks the endpoints that run tools and hit the upstream API.
const ToolPathPrefix = "/tools/"

// RateLimitMiddleware implements token bucket rate limiting. Tool invocations
// get their own, tighter bucket since each one fans out to upstream requests.
type RateLimitMiddleware struct {
	cfg         config.RateLimitConfig
	logger      *zap.Logger
	metrics     *metrics.Metrics
	toolLimiter *rate.Limiter
	readLimiter *rate.Limiter
}

// NewRateLimitMiddleware creates a new rate limiting middleware.
func NewRateLimitMiddleware(cfg config.RateLimitConfig, logger *zap.Logger, m *metrics.Metrics) *RateLimitMiddleware {
	return &RateLimitMiddleware{
		cfg:         cfg,
		logger:      logger,
		metrics:     m,
		toolLimiter: rate.NewLimiter(rate.Limit(cfg.ToolRPS), cfg.ToolBurst),
		readLimiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
	}
}

// Handler wraps an http.Handler with rate limiting.
func (rl *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.cfg.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		limiter, endpoint := rl.readLimiter, "read"
		if isToolCall(r) {
			limiter, endpoint = rl.toolLimiter, "tool"
		}

		if !limiter.Allow() {
			rl.logger.Warn("rate limit exceeded",
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
			)
			rl.metrics.RecordRateLimitHit(endpoint)
			rl.tooManyRequests(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isToolCall(r *http.Request) bool {
	return r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, ToolPathPrefix)
}

func (rl *RateLimitMiddleware) tooManyRequests(w http.ResponseWriter) {
	w.Header().Set("Retry-After", "1")
	writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
}
