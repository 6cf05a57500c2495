package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	metricsinfra "github.com/bohdanPatriot/polska-jednostka-online/internal/infra/metrics"
	"github.com/bohdanPatriot/polska-jednostka-online/pkg/api/response"
)

type KeyFunc func(r *http.Request) string

type ipLimiter interface {
	Allow(key string) (bool, time.Duration)
}

// ClientKey identifies the caller: the configured header when present, the
// first X-Forwarded-For hop when trusted, else the RemoteAddr host.
func ClientKey(keyHeader string, trustXFF bool) KeyFunc {
	return func(r *http.Request) string {
		if keyHeader != "" {
			if v := strings.TrimSpace(r.Header.Get(keyHeader)); v != "" {
				return v
			}
		}
		if trustXFF {
			if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if ip := strings.TrimSpace(first); ip != "" {
					return ip
				}
			}
		}
		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return host
		}
		if r.RemoteAddr != "" {
			return r.RemoteAddr
		}
		return "unknown"
	}
}

func EdgeThrottle(store ipLimiter, keyFn KeyFunc, metrics *metricsinfra.Metrics) func(http.Handler) http.Handler {
	if store == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	if keyFn == nil {
		keyFn = ClientKey("", false)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" || r.URL.Path == "/ready" {
				next.ServeHTTP(w, r)
				return
			}

			ok, retry := store.Allow(keyFn(r))
			if !ok {
				metrics.IncEdgeThrottled()
				secs := int64(math.Ceil(retry.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
				response.Error(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
