// middleware/rate_limiter.go
package middleware

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/HSouheill/partner_marketplace/logger"
	"github.com/HSouheill/partner_marketplace/models"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type limitRule struct {
	limit rate.Limit
	burst int
}

// RateLimiter keeps one token bucket per client IP and route class.
type RateLimiter struct {
	mu            sync.Mutex
	buckets       map[string]*bucket
	defaultRule   limitRule
	prefixRules   map[string]limitRule
	exempt        map[string]bool
	idleAfter     time.Duration
	lastCleanupAt time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		buckets:     make(map[string]*bucket),
		defaultRule: limitRule{limit: rate.Every(100 * time.Millisecond), burst: 20},
		prefixRules: map[string]limitRule{
			// Checkout endpoints are called a handful of times per booking
			"/api/payments/create-order": {limit: rate.Every(2 * time.Second), burst: 5},
			"/api/payments/verify":       {limit: rate.Every(2 * time.Second), burst: 5},
			"/api/wallet/":               {limit: rate.Every(time.Second), burst: 5},
			"/api/earnings/withdrawal":   {limit: rate.Every(2 * time.Second), burst: 3},
		},
		// The gateway retries webhooks from a small set of IPs
		exempt:    map[string]bool{"/api/payments/webhook": true},
		idleAfter: 10 * time.Minute,
	}
}

func (r *RateLimiter) ruleFor(path string) (string, limitRule) {
	for prefix, rule := range r.prefixRules {
		if strings.HasPrefix(path, prefix) {
			return prefix, rule
		}
	}
	return "", r.defaultRule
}

// Allow reports whether a request from ip to path fits its bucket.
func (r *RateLimiter) Allow(ip, path string, now time.Time) bool {
	class, rule := r.ruleFor(path)
	key := ip + "|" + class

	r.mu.Lock()
	defer r.mu.Unlock()

	if now.Sub(r.lastCleanupAt) > r.idleAfter {
		for k, b := range r.buckets {
			if now.Sub(b.lastSeen) > r.idleAfter {
				delete(r.buckets, k)
			}
		}
		r.lastCleanupAt = now
	}

	b, ok := r.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rule.limit, rule.burst)}
		r.buckets[key] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

func (r *RateLimiter) RateLimit() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if r.exempt[path] {
				return next(c)
			}
			ip := c.RealIP()
			if !r.Allow(ip, path, time.Now()) {
				logger.Log.WithFields(logrus.Fields{
					"ip":   ip,
					"path": path,
				}).Warn("Rate limit exceeded")
				return c.JSON(http.StatusTooManyRequests, models.Response{
					Success: false,
					Message: "Too many requests",
				})
			}
			return next(c)
		}
	}
}
