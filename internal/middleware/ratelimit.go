package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	apperrors "github.com/openclaw/inbox-sync-go/internal/errors"
	"github.com/openclaw/inbox-sync-go/internal/httputil"
)

const (
	rateLimitKeyPrefix = "ratelimit:"
	rateLimitWindow    = 60 * time.Second
)

// rateLimitScript is a sliding window over a sorted set of request times.
var rateLimitScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

local windowStart = now - window

redis.call('ZREMRANGEBYSCORE', key, '-inf', windowStart)

local count = redis.call('ZCARD', key)

if count >= limit then
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    local resetAt = 0
    if #oldest >= 2 then
        resetAt = tonumber(oldest[2]) + window
    else
        resetAt = now + window
    end
    return {0, 0, resetAt}
end

redis.call('ZADD', key, now, now .. '-' .. math.random())
redis.call('EXPIRE', key, window + 10)

local remaining = limit - count - 1
local resetAt = now + window

return {1, remaining, resetAt}
`)

// Limiter decides whether one more request for key fits in the window.
type Limiter interface {
	Check(ctx context.Context, key string, limit int) (allowed bool, remaining int, resetAt int64)
}

type RedisRateLimiter struct {
	client *redis.Client
}

func NewRedisRateLimiter(client *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{client: client}
}

// Check fails open: a redis error lets the request through.
func (rl *RedisRateLimiter) Check(ctx context.Context, key string, limit int) (bool, int, int64) {
	now := time.Now().Unix()
	window := int64(rateLimitWindow.Seconds())

	result, err := rateLimitScript.Run(ctx, rl.client, []string{rateLimitKeyPrefix + key}, now, window, limit).Int64Slice()
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("redis rate limit check failed, allowing request")
		return true, limit - 1, now + window
	}
	if len(result) != 3 {
		log.Warn().Str("key", key).Msg("unexpected redis rate limit result")
		return true, limit - 1, now + window
	}

	return result[0] == 1, int(result[1]), result[2]
}

// RateLimit limits each authenticated user to limit requests per minute.
// Unauthenticated requests pass through untouched.
func RateLimit(limiter Limiter, limit int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := GetPrincipal(r.Context())
			if p == nil || limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			allowed, remaining, resetAt := limiter.Check(r.Context(), p.UserID, limit)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))

			if !allowed {
				log.Warn().Str("userId", p.UserID).Msg("rate limit exceeded")
				w.Header().Set("Retry-After", strconv.Itoa(int(rateLimitWindow.Seconds())))
				httputil.WriteError(w, apperrors.RateLimited().WithDetails(map[string]int64{"resetAt": resetAt}))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
