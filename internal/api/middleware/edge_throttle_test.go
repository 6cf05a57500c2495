package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	metricsinfra "github.com/bohdanPatriot/polska-jednostka-online/internal/infra/metrics"
	"github.com/bohdanPatriot/polska-jednostka-online/internal/infra/throttle"
)

func TestClientKey(t *testing.T) {
	tests := []struct {
		name      string
		keyHeader string
		trustXFF  bool
		headers   map[string]string
		remote    string
		want      string
	}{
		{name: "header wins", keyHeader: "X-Client", headers: map[string]string{"X-Client": " client-123 "}, remote: "10.0.0.1:1234", want: "client-123"},
		{name: "first xff hop", trustXFF: true, headers: map[string]string{"X-Forwarded-For": "1.2.3.4, 5.6.7.8"}, remote: "10.0.0.9:5555", want: "1.2.3.4"},
		{name: "xff ignored when untrusted", headers: map[string]string{"X-Forwarded-For": "1.2.3.4"}, remote: "10.0.0.9:5555", want: "10.0.0.9"},
		{name: "remote without port", remote: "10.0.0.7", want: "10.0.0.7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
			r.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			if got := ClientKey(tt.keyHeader, tt.trustXFF)(r); got != tt.want {
				t.Fatalf("got %q want %q", got, tt.want)
			}
		})
	}
}

func TestEdgeThrottle(t *testing.T) {
	now := time.Unix(1000, 0)
	store := throttle.NewStore(1, 1, throttle.WithNow(func() time.Time { return now }))
	m := metricsinfra.New()
	h := EdgeThrottle(store, ClientKey("", false), m)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(path, remote string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, path, nil)
		r.RemoteAddr = remote
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	if w := do("/api/v1/messages", "10.0.0.1:1"); w.Code != http.StatusOK {
		t.Fatalf("first request: %d", w.Code)
	}
	w := do("/api/v1/messages", "10.0.0.1:2")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "1" {
		t.Fatalf("Retry-After=%q", w.Header().Get("Retry-After"))
	}
	if w := do("/health", "10.0.0.1:3"); w.Code != http.StatusOK {
		t.Fatalf("health must bypass throttle, got %d", w.Code)
	}
	if w := do("/api/v1/messages", "10.0.0.2:1"); w.Code != http.StatusOK {
		t.Fatalf("other ip: %d", w.Code)
	}
	if got := testutil.ToFloat64(m.EdgeThrottled); got != 1 {
		t.Fatalf("edge metric=%v", got)
	}
}
