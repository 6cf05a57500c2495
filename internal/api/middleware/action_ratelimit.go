package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/bohdanPatriot/polska-jednostka-online/internal/domain/ratelimit"
	metricsinfra "github.com/bohdanPatriot/polska-jednostka-online/internal/infra/metrics"
	"github.com/bohdanPatriot/polska-jednostka-online/pkg/api/response"
)

const ctxDecision ctxKey = "ratelimit_decision"

// DecisionFromContext returns the admission decision recorded by ActionThrottle.Middleware.
func DecisionFromContext(ctx context.Context) (ratelimit.Decision, bool) {
	d, ok := ctx.Value(ctxDecision).(ratelimit.Decision)
	return d, ok
}

// ActionThrottle admits at most maxRequests calls of one action per user
// and window. The caller must be authenticated.
type ActionThrottle struct {
	limiter     ratelimit.Limiter
	action      string
	maxRequests int
	window      time.Duration
	clock       ratelimit.Clock
	logger      *slog.Logger
	metrics     *metricsinfra.Metrics
}

func NewActionThrottle(
	limiter ratelimit.Limiter,
	action string,
	maxRequests int,
	window time.Duration,
	clock ratelimit.Clock,
	logger *slog.Logger,
	metrics *metricsinfra.Metrics,
) *ActionThrottle {
	if clock == nil {
		clock = ratelimit.SystemClock
	}
	return &ActionThrottle{
		limiter:     limiter,
		action:      action,
		maxRequests: maxRequests,
		window:      window,
		clock:       clock,
		logger:      logger,
		metrics:     metrics,
	}
}

// Admit consumes one unit of the caller's quota. When it returns false the
// response (429 or 500) has already been written.
func (t *ActionThrottle) Admit(w http.ResponseWriter, r *http.Request) (ratelimit.Decision, bool) {
	if t == nil || t.limiter == nil {
		return ratelimit.Decision{Allowed: true}, true
	}

	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		if t.logger != nil {
			t.logger.Error("internal auth context missing", "action", t.action)
		}
		response.Error(w, http.StatusInternalServerError, "internal error")
		return ratelimit.Decision{}, false
	}

	dec, err := t.limiter.Check(r.Context(), ratelimit.Policy{
		Identifier:  ratelimit.Key(t.action, userID),
		MaxRequests: t.maxRequests,
		Window:      t.window,
	})
	if err != nil {
		if t.logger != nil {
			t.logger.Error("rate limit check failed", "action", t.action, "err", err)
		}
		response.Error(w, http.StatusInternalServerError, "internal error")
		return ratelimit.Decision{}, false
	}
	t.metrics.IncDecision(t.action, dec.Allowed)

	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(t.maxRequests))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(dec.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(dec.ResetAt.Unix(), 10))

	if !dec.Allowed {
		now := t.clock.Now()
		h.Set("Retry-After", strconv.FormatInt(ratelimit.RetryAfterSeconds(dec.ResetAt, now), 10))
		response.TooManyRequests(w, ratelimit.FormatResetTime(dec.ResetAt, now))
		return dec, false
	}
	return dec, true
}

// Middleware throttles every request reaching next. Use Admit directly when
// invalid input must not consume quota.
func (t *ActionThrottle) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dec, ok := t.Admit(w, r)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxDecision, dec)))
	})
}
