package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// RateLimitConfig is a token bucket per client address.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// LoginRateLimitConfig throttles credential guessing against the login
// endpoint: a burst of five, then one attempt every two seconds.
func LoginRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{RequestsPerSecond: 0.5, BurstSize: 5}
}

type tokenBucket struct {
	mu         sync.Mutex
	tokens     float64
	max        float64
	rate       float64
	lastRefill time.Time
}

// take consumes a token, or reports how many seconds until one is free.
func (b *tokenBucket) take(now time.Time) (bool, int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens += now.Sub(b.lastRefill).Seconds() * b.rate
	if b.tokens > b.max {
		b.tokens = b.max
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	if b.rate <= 0 {
		return false, 1
	}
	return false, int(math.Ceil((1 - b.tokens) / b.rate))
}

type buckets struct {
	mu  sync.Mutex
	m   map[string]*tokenBucket
	cfg RateLimitConfig
	now func() time.Time
}

func (s *buckets) get(key string) *tokenBucket {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.m[key]
	if !ok {
		b = &tokenBucket{
			tokens:     float64(s.cfg.BurstSize),
			max:        float64(s.cfg.BurstSize),
			rate:       s.cfg.RequestsPerSecond,
			lastRefill: s.now(),
		}
		s.m[key] = b
	}
	return b
}

// RateLimit answers 429 with a Retry-After header once a client address
// runs out of tokens.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	return rateLimit(cfg, time.Now)
}

func rateLimit(cfg RateLimitConfig, now func() time.Time) echo.MiddlewareFunc {
	store := &buckets{m: make(map[string]*tokenBucket), cfg: cfg, now: now}
	limit := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', -1, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)

			ok, wait := store.get(c.RealIP()).take(now())
			if !ok {
				h.Set("Retry-After", strconv.Itoa(wait))
				h.Set("X-RateLimit-Remaining", "0")
				return Detail(c, http.StatusTooManyRequests,
					fmt.Sprintf("Request was throttled. Expected available in %d seconds.", wait))
			}
			return next(c)
		}
	}
}
