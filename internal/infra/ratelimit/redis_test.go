package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/bohdanPatriot/polska-jednostka-online/internal/config"
	"github.com/bohdanPatriot/polska-jednostka-online/internal/domain/ratelimit"
	metricsinfra "github.com/bohdanPatriot/polska-jednostka-online/internal/infra/metrics"
)

func TestDecisionFromScript(t *testing.T) {
	now := time.Unix(1000, 0)
	p := ratelimit.Policy{Identifier: "k", MaxRequests: 20, Window: time.Minute}

	tests := []struct {
		name    string
		res     []int64
		want    ratelimit.Decision
		wantErr bool
	}{
		{
			name: "new window",
			res:  []int64{1, 1, 60000},
			want: ratelimit.Decision{Allowed: true, Remaining: 19, ResetAt: now.Add(time.Minute)},
		},
		{
			name: "incremented",
			res:  []int64{1, 5, 30000},
			want: ratelimit.Decision{Allowed: true, Remaining: 15, ResetAt: now.Add(30 * time.Second)},
		},
		{
			name: "denied",
			res:  []int64{0, 20, 1500},
			want: ratelimit.Decision{Allowed: false, Remaining: 0, ResetAt: now.Add(1500 * time.Millisecond)},
		},
		{
			name: "negative ttl clamps",
			res:  []int64{0, 20, -2},
			want: ratelimit.Decision{Allowed: false, Remaining: 0, ResetAt: now},
		},
		{name: "short reply", res: []int64{1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decisionFromScript(tt.res, p, now)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if got.Allowed != tt.want.Allowed || got.Remaining != tt.want.Remaining || !got.ResetAt.Equal(tt.want.ResetAt) {
				t.Fatalf("got=%+v want=%+v", got, tt.want)
			}
		})
	}
}

func TestRedisLimiter_NilClientUsesFallback(t *testing.T) {
	fallback := NewMemory(WithClock(newFakeClock()), WithSweepInterval(0))
	lim := NewRedis(nil, "rl", fallback, config.CircuitBreakerConfig{}, nil, nil)
	p := ratelimit.Policy{Identifier: "message:u1", MaxRequests: 1, Window: time.Minute}

	if dec, err := lim.Check(context.Background(), p); err != nil || !dec.Allowed {
		t.Fatalf("expected allowed, got %+v err=%v", dec, err)
	}
	if dec, _ := lim.Check(context.Background(), p); dec.Allowed {
		t.Fatalf("expected fallback to enforce quota")
	}
	if !lim.Degraded() {
		t.Fatalf("expected degraded without client")
	}
}

func TestRedisLimiter_InvalidPolicyNotForwarded(t *testing.T) {
	fallback := NewMemory(WithSweepInterval(0))
	lim := NewRedis(nil, "", fallback, config.CircuitBreakerConfig{}, nil, nil)

	_, err := lim.Check(context.Background(), ratelimit.Policy{Identifier: "k"})
	if !errors.Is(err, ratelimit.ErrInvalidPolicy) {
		t.Fatalf("expected ErrInvalidPolicy, got %v", err)
	}
	if fallback.Len() != 0 {
		t.Fatalf("fallback should not be touched")
	}
}

func TestRedisLimiter_UnreachableRedisDegradesAndTrips(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 50 * time.Millisecond,
	})
	t.Cleanup(func() { _ = client.Close() })

	m := metricsinfra.New()
	fallback := NewMemory(WithSweepInterval(0))
	lim := NewRedis(client, "rl", fallback, config.CircuitBreakerConfig{
		MaxRequests:      1,
		Timeout:          time.Minute,
		FailureThreshold: 2,
	}, nil, m)
	p := ratelimit.Policy{Identifier: "report:u1", MaxRequests: 2, Window: time.Minute}

	for i := 0; i < 3; i++ {
		dec, err := lim.Check(context.Background(), p)
		if err != nil {
			t.Fatalf("call %d: unexpected err: %v", i, err)
		}
		wantAllowed := i < 2
		if dec.Allowed != wantAllowed {
			t.Fatalf("call %d: allowed=%v want=%v", i, dec.Allowed, wantAllowed)
		}
	}

	if got := testutil.ToFloat64(m.RedisDegraded.WithLabelValues("ratelimit")); got != 3 {
		t.Fatalf("expected 3 degraded checks, got %v", got)
	}
	if !lim.Degraded() {
		t.Fatalf("expected breaker open after consecutive failures")
	}
}

func TestRedisLimiter_Key(t *testing.T) {
	if got := (&RedisLimiter{prefix: "rl"}).key("message:u1"); got != "rl:message:u1" {
		t.Fatalf("got=%q", got)
	}
	if got := (&RedisLimiter{}).key("message:u1"); got != "message:u1" {
		t.Fatalf("got=%q", got)
	}
}

func TestRedisLimiter_CanceledCallerDoesNotTrip(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		MaxRetries:  -1,
		DialTimeout: 50 * time.Millisecond,
	})
	t.Cleanup(func() { _ = client.Close() })

	m := metricsinfra.New()
	lim := NewRedis(client, "rl", NewMemory(WithSweepInterval(0)), config.CircuitBreakerConfig{
		MaxRequests:      1,
		Timeout:          time.Minute,
		FailureThreshold: 1,
	}, nil, m)
	p := ratelimit.Policy{Identifier: "message:u1", MaxRequests: 5, Window: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 3; i++ {
		if _, err := lim.Check(ctx, p); err != nil {
			t.Fatalf("call %d: unexpected err: %v", i, err)
		}
	}

	if st := lim.cb.State(); st != gobreaker.StateClosed {
		t.Fatalf("breaker state=%s, canceled calls must not trip it", st)
	}
	if got := testutil.ToFloat64(m.RedisDegraded.WithLabelValues("ratelimit")); got != 0 {
		t.Fatalf("canceled calls counted as degraded: %v", got)
	}
}

func TestBreakerSuccess(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{err: nil, want: true},
		{err: context.Canceled, want: true},
		{err: fmt.Errorf("script: %w", context.Canceled), want: true},
		{err: context.DeadlineExceeded, want: false},
		{err: errors.New("connection refused"), want: false},
	}
	for _, tt := range tests {
		if got := breakerSuccess(tt.err); got != tt.want {
			t.Fatalf("breakerSuccess(%v)=%v want %v", tt.err, got, tt.want)
		}
	}
}

func TestWindowMillis(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int64
	}{
		{in: time.Minute, want: 60000},
		{in: time.Millisecond, want: 1},
		{in: 500 * time.Microsecond, want: 1},
		{in: 1500 * time.Microsecond, want: 2},
	}
	for _, tt := range tests {
		if got := windowMillis(tt.in); got != tt.want {
			t.Fatalf("windowMillis(%s)=%d want %d", tt.in, got, tt.want)
		}
	}
}
