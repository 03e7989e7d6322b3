package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/DukeRupert/rateflow/internal/domain"
	"github.com/DukeRupert/rateflow/internal/handler"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// rateLimitPrefix namespaces limiter keys in a shared store.
const rateLimitPrefix = "rateflow:ratelimit"

// =============================================================================
// Rate Limiter
// =============================================================================

// RateLimiter limits requests per client IP. Limits are shared between
// instances when the store is Redis.
type RateLimiter struct {
	limiter *limiter.Limiter
	logger  *slog.Logger
	now     func() time.Time
}

// NewRateLimiter creates an in-memory limiter. rate uses the limiter format,
// e.g. "30-M" for thirty requests per minute.
func NewRateLimiter(rate string, logger *slog.Logger) (*RateLimiter, error) {
	return newRateLimiter(rate, memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          rateLimitPrefix,
		CleanUpInterval: limiter.DefaultCleanUpInterval,
	}), logger)
}

// NewRedisRateLimiter creates a limiter backed by Redis.
func NewRedisRateLimiter(rate string, client *redis.Client, logger *slog.Logger) (*RateLimiter, error) {
	store, err := sredis.NewStoreWithOptions(client, limiter.StoreOptions{
		Prefix:   rateLimitPrefix,
		MaxRetry: 3,
	})
	if err != nil {
		return nil, fmt.Errorf("create redis limiter store: %w", err)
	}
	return newRateLimiter(rate, store, logger)
}

func newRateLimiter(rate string, store limiter.Store, logger *slog.Logger) (*RateLimiter, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit %q: %w", rate, err)
	}
	return &RateLimiter{
		limiter: limiter.New(store, parsed),
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Limit returns middleware that rate limits requests by client IP. Store
// failures let the request through.
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := getClientIP(r)

		lctx, err := rl.limiter.Get(r.Context(), clientIP)
		if err != nil {
			rl.logger.Error("rate limit store unavailable", "ip", clientIP, "error", err)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			rl.logger.Warn("rate limit exceeded",
				"ip", clientIP,
				"path", r.URL.Path,
				"method", r.Method,
			)

			retryAfter := lctx.Reset - rl.now().Unix()
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))

			handler.ErrorResponse(w, r, rl.logger,
				domain.Errorf(domain.ERATELIMIT, "", "Too many requests. Please try again later."))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Helpers
// =============================================================================

// getClientIP extracts the client IP from the request, considering proxy headers.
func getClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs: client, proxy1, proxy2
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if clientIP := strings.TrimSpace(first); clientIP != "" {
			return clientIP
		}
	}

	// X-Real-IP (nginx)
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not have a port
		return r.RemoteAddr
	}
	return ip
}
