package middleware

import (
	"math"
	"net/http"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

const defaultTrackedKeys = 10000

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	// TrackedKeys bounds how many callers keep a limiter; the least
	// recently seen are evicted and start over with a full burst.
	TrackedKeys int
}

// DefaultRateLimitConfig returns default rate limiting settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		BurstSize:         200,
		TrackedKeys:       defaultTrackedKeys,
	}
}

type limiterStore struct {
	cache *lru.Cache[string, *rate.Limiter]
	limit rate.Limit
	burst int
}

func newLimiterStore(cfg RateLimitConfig) *limiterStore {
	size := cfg.TrackedKeys
	if size <= 0 {
		size = defaultTrackedKeys
	}
	cache, _ := lru.New[string, *rate.Limiter](size)
	return &limiterStore{
		cache: cache,
		limit: rate.Limit(cfg.RequestsPerSecond),
		burst: cfg.BurstSize,
	}
}

func (s *limiterStore) get(key string) *rate.Limiter {
	if lim, ok := s.cache.Get(key); ok {
		return lim
	}
	lim := rate.NewLimiter(s.limit, s.burst)
	if prev, ok, _ := s.cache.PeekOrAdd(key, lim); ok {
		return prev
	}
	return lim
}

// retryAfter reports whole seconds until lim admits another request.
func retryAfter(lim *rate.Limiter) int {
	r := lim.Reserve()
	if !r.OK() {
		return 1
	}
	d := r.Delay()
	r.Cancel()
	if secs := int(math.Ceil(d.Seconds())); secs > 1 {
		return secs
	}
	return 1
}

// rateLimitKey buckets authenticated callers by user id and everyone else
// by client IP.
func rateLimitKey(c echo.Context) string {
	if uid, ok := c.Get("user_id").(string); ok && uid != "" {
		return "user:" + uid
	}
	return "ip:" + c.RealIP()
}

// RateLimit returns a rate limiting middleware. It must run after the auth
// middleware for per-user buckets to apply.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	store := newLimiterStore(cfg)
	limitHeader := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', 0, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limitHeader)

			lim := store.get(rateLimitKey(c))
			if !lim.Allow() {
				h.Set("Retry-After", strconv.Itoa(retryAfter(lim)))
				h.Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
