package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/bohdanPatriot/polska-jednostka-online/internal/config"
	"github.com/bohdanPatriot/polska-jednostka-online/internal/domain/ratelimit"
	metricsinfra "github.com/bohdanPatriot/polska-jednostka-online/internal/infra/metrics"
)

// fixedWindowScript mirrors MemoryLimiter.Check: a missing key opens a new
// window, a key under quota is incremented, a key at quota is left as is.
// Returns {allowed, count, pttl_ms}.
var fixedWindowScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
local window = tonumber(ARGV[2])
if not current then
  redis.call('SET', KEYS[1], 1, 'PX', window)
  return {1, 1, window}
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('SET', KEYS[1], 1, 'PX', window)
  return {1, 1, window}
end
local count = tonumber(current)
if count < tonumber(ARGV[1]) then
  count = redis.call('INCR', KEYS[1])
  return {1, count, ttl}
end
return {0, count, ttl}
`)

// RedisLimiter shares fixed windows between processes. Redis failures and
// an open breaker route checks to the in-memory fallback.
type RedisLimiter struct {
	client   *redis.Client
	prefix   string
	fallback *MemoryLimiter
	cb       *gobreaker.CircuitBreaker
	clock    ratelimit.Clock
	logger   *slog.Logger
	metrics  *metricsinfra.Metrics
}

func NewRedis(client *redis.Client, prefix string, fallback *MemoryLimiter, cfg config.CircuitBreakerConfig, logger *slog.Logger, metrics *metricsinfra.Metrics) *RedisLimiter {
	if fallback == nil {
		fallback = NewMemory(WithSweepInterval(0))
	}
	l := &RedisLimiter{
		client:   client,
		prefix:   prefix,
		fallback: fallback,
		clock:    fallback.clock,
		logger:   logger,
		metrics:  metrics,
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 1
	}
	l.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ratelimit-redis",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: breakerSuccess,
		OnStateChange: func(_ string, from, to gobreaker.State) {
			l.observeState(to)
			if l.logger != nil {
				l.logger.Warn("redis limiter breaker state change", "from", from.String(), "to", to.String())
			}
		},
	})
	return l
}

func (l *RedisLimiter) Check(ctx context.Context, p ratelimit.Policy) (ratelimit.Decision, error) {
	if err := p.Validate(); err != nil {
		return ratelimit.Decision{}, err
	}
	if l.client == nil {
		return l.fallback.Check(ctx, p)
	}

	now := l.clock.Now()
	out, err := l.cb.Execute(func() (any, error) {
		res, err := fixedWindowScript.Run(ctx, l.client, []string{l.key(p.Identifier)}, p.MaxRequests, windowMillis(p.Window)).Int64Slice()
		if err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return res, err
	})
	if errors.Is(err, context.Canceled) {
		return l.fallback.Check(ctx, p)
	}
	if err != nil {
		l.onRedisError(err)
		return l.fallback.Check(ctx, p)
	}

	dec, err := decisionFromScript(out.([]int64), p, now)
	if err != nil {
		l.onRedisError(err)
		return l.fallback.Check(ctx, p)
	}
	return dec, nil
}

// Degraded reports whether checks currently bypass Redis.
func (l *RedisLimiter) Degraded() bool {
	return l.client == nil || l.cb.State() == gobreaker.StateOpen
}

func (l *RedisLimiter) key(identifier string) string {
	if l.prefix == "" {
		return identifier
	}
	return l.prefix + ":" + identifier
}

func (l *RedisLimiter) onRedisError(err error) {
	if l.logger != nil && !errors.Is(err, gobreaker.ErrOpenState) {
		l.logger.Warn("redis limiter error", "err", err)
	}
	l.metrics.IncRedisDegraded("ratelimit")
}

func (l *RedisLimiter) observeState(s gobreaker.State) {
	if l.metrics == nil {
		return
	}
	switch s {
	case gobreaker.StateClosed:
		l.metrics.RateLimitBreaker.Set(0)
	case gobreaker.StateHalfOpen:
		l.metrics.RateLimitBreaker.Set(1)
	case gobreaker.StateOpen:
		l.metrics.RateLimitBreaker.Set(2)
	}
}

// breakerSuccess keeps a caller that went away from counting against Redis.
func breakerSuccess(err error) bool {
	return err == nil || errors.Is(err, context.Canceled)
}

// windowMillis is the PX argument for a window; Redis refuses PX 0.
func windowMillis(d time.Duration) int64 {
	ms := d.Milliseconds()
	if d%time.Millisecond != 0 {
		ms++
	}
	if ms < 1 {
		ms = 1
	}
	return ms
}

func decisionFromScript(res []int64, p ratelimit.Policy, now time.Time) (ratelimit.Decision, error) {
	if len(res) != 3 {
		return ratelimit.Decision{}, fmt.Errorf("unexpected script reply length %d", len(res))
	}
	allowed, count, ttl := res[0] == 1, int(res[1]), res[2]
	if ttl < 0 {
		ttl = 0
	}
	resetAt := now.Add(time.Duration(ttl) * time.Millisecond)
	if !allowed {
		return ratelimit.Decision{Allowed: false, Remaining: 0, ResetAt: resetAt}, nil
	}
	remaining := p.MaxRequests - count
	if remaining < 0 {
		remaining = 0
	}
	return ratelimit.Decision{Allowed: true, Remaining: remaining, ResetAt: resetAt}, nil
}
