package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	Registry           *prometheus.Registry
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
	HTTPInFlight       prometheus.Gauge
	HTTPErrors         *prometheus.CounterVec
	RedisDegraded      *prometheus.CounterVec
	RateLimitDecisions *prometheus.CounterVec
	RateLimitBreaker   prometheus.Gauge
	EdgeThrottled      prometheus.Counter
	MessagesSent       prometheus.Counter
	ReportsSubmitted   *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "code"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_in_flight_requests",
				Help: "Number of in-flight HTTP requests.",
			},
		),
		HTTPErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_errors_total",
				Help: "Total number of HTTP 5xx errors.",
			},
			[]string{"method", "path", "code"},
		),
		RedisDegraded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "redis_degraded_total",
				Help: "Total number of Redis degradation events.",
			},
			[]string{"component"},
		),
		RateLimitDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ratelimit_decisions_total",
				Help: "Total number of rate limit decisions by action and result.",
			},
			[]string{"action", "result"},
		),
		RateLimitBreaker: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ratelimit_redis_circuit_state",
				Help: "Redis limiter circuit breaker state: 0=closed,1=half_open,2=open.",
			},
		),
		EdgeThrottled: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "edge_throttled_total",
				Help: "Total number of requests rejected by the per-IP throttle.",
			},
		),
		MessagesSent: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "direct_messages_sent_total",
				Help: "Total number of direct messages stored.",
			},
		),
		ReportsSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reports_submitted_total",
				Help: "Total number of moderation reports stored.",
			},
			[]string{"target_type"},
		),
	}

	reg.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.HTTPInFlight,
		m.HTTPErrors,
		m.RedisDegraded,
		m.RateLimitDecisions,
		m.RateLimitBreaker,
		m.EdgeThrottled,
		m.MessagesSent,
		m.ReportsSubmitted,
	)

	return m
}

func (m *Metrics) IncDecision(action string, allowed bool) {
	if m == nil {
		return
	}
	result := "denied"
	if allowed {
		result = "allowed"
	}
	m.RateLimitDecisions.WithLabelValues(action, result).Inc()
}

func (m *Metrics) IncRedisDegraded(component string) {
	if m == nil {
		return
	}
	m.RedisDegraded.WithLabelValues(component).Inc()
}

func (m *Metrics) IncMessageSent() {
	if m == nil {
		return
	}
	m.MessagesSent.Inc()
}

func (m *Metrics) IncReportSubmitted(targetType string) {
	if m == nil {
		return
	}
	m.ReportsSubmitted.WithLabelValues(targetType).Inc()
}

func (m *Metrics) IncEdgeThrottled() {
	if m == nil {
		return
	}
	m.EdgeThrottled.Inc()
}
