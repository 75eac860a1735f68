// Package ratelimit implements the per-IP request throttle described in
// §10/§11, adapting the teacher's login-attempt limiter (Redis INCR+EXPIRE
// fixed-window counter) from a narrow login-failure guard into a general
// per-IP request budget applied to every request.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pramana-labs/pramana/internal/apierr"
	"github.com/pramana-labs/pramana/internal/httpserver"
)

// Limiter throttles requests per IP address to at most maxPerMinute within a
// one-minute fixed window, using the same Redis INCR+EXPIRE idiom as the
// teacher's login rate limiter.
type Limiter struct {
	redis        *redis.Client
	maxPerMinute int
}

// New creates a Limiter. maxPerMinute <= 0 disables limiting entirely.
func New(rdb *redis.Client, maxPerMinute int) *Limiter {
	return &Limiter{redis: rdb, maxPerMinute: maxPerMinute}
}

// Result holds the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	RetryAt   time.Time
}

// Check increments the request counter for ip's current one-minute window
// and reports whether the request should proceed.
func (l *Limiter) Check(ctx context.Context, ip string) (Result, error) {
	if l.maxPerMinute <= 0 {
		return Result{Allowed: true}, nil
	}

	key := fmt.Sprintf("ratelimit:%s:%d", ip, time.Now().Unix()/60)

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return Result{}, fmt.Errorf("incrementing rate limit counter: %w", err)
	}
	if count == 1 {
		if err := l.redis.Expire(ctx, key, time.Minute).Err(); err != nil {
			return Result{}, fmt.Errorf("setting rate limit expiry: %w", err)
		}
	}

	if int(count) > l.maxPerMinute {
		ttl, err := l.redis.TTL(ctx, key).Result()
		if err != nil || ttl < 0 {
			ttl = time.Minute
		}
		return Result{Allowed: false, RetryAt: time.Now().Add(ttl)}, nil
	}

	return Result{Allowed: true, Remaining: l.maxPerMinute - int(count)}, nil
}

// Middleware enforces the per-IP request budget, responding 429 when
// exceeded. A Redis failure fails open — a down rate limiter must not take
// the whole API down with it — and is left to the request logger to surface.
func Middleware(limiter *Limiter, logger interface{ Error(string, ...any) }) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			result, err := limiter.Check(r.Context(), ip)
			if err != nil {
				if logger != nil && !errors.Is(err, context.Canceled) {
					logger.Error("rate limit check failed", "error", err, "ip", ip)
				}
				next.ServeHTTP(w, r)
				return
			}
			if !result.Allowed {
				retryAfter := int(time.Until(result.RetryAt).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
				apiErr := apierr.RateLimited("too many requests from %s", ip)
				httpserver.RespondError(w, apiErr.Status, apiErr.Code, apiErr.Message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP follows internal/audit's header precedence (X-Forwarded-For,
// then X-Real-IP, then RemoteAddr). Unlike audit, it does not check that a
// header value parses as an IP address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.SplitN(xff, ",", 2)
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
