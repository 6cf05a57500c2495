package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	middlewarex "github.com/bohdanPatriot/polska-jednostka-online/internal/api/middleware"
	"github.com/bohdanPatriot/polska-jednostka-online/internal/config"
	"github.com/bohdanPatriot/polska-jednostka-online/internal/domain/ratelimit"
	metricsinfra "github.com/bohdanPatriot/polska-jednostka-online/internal/infra/metrics"
	"github.com/bohdanPatriot/polska-jednostka-online/pkg/api/response"
)

type Router struct {
	*chi.Mux
	Server *http.Server
	logger *slog.Logger
	cfg    *config.Config
}

type dbPinger interface {
	PingContext(ctx context.Context) error
}

type redisPinger interface {
	Ping(ctx context.Context, logger *slog.Logger) bool
}

// degradedReporter is implemented by limiters that can bypass their backend.
type degradedReporter interface {
	Degraded() bool
}

type edgeLimiter interface {
	Allow(key string) (bool, time.Duration)
}

type tokenVerifier interface {
	UserID(token string) (string, error)
}

// Deps are the collaborators the router wires into handlers. Nil Edge,
// Redis or Metrics disable the matching feature.
type Deps struct {
	Limiter  ratelimit.Limiter
	Clock    ratelimit.Clock
	Verifier tokenVerifier
	Messages messageService
	Reports  reportService
	Edge     edgeLimiter
	DB       dbPinger
	Redis    redisPinger
	Metrics  *metricsinfra.Metrics
}

func New(cfg *config.Config, logger *slog.Logger, deps Deps) *Router {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middlewarex.Logger(logger))
	r.Use(middlewarex.Metrics(deps.Metrics))
	if !cfg.RateLimit.Edge.Disabled && deps.Edge != nil {
		r.Use(middlewarex.EdgeThrottle(deps.Edge, middlewarex.ClientKey(cfg.RateLimit.Edge.KeyHeader, cfg.RateLimit.Edge.TrustXFF), deps.Metrics))
	}

	throttles := make(map[string]*middlewarex.ActionThrottle)
	for action, p := range cfg.RateLimit.Actions() {
		throttles[action] = middlewarex.NewActionThrottle(deps.Limiter, action, p.MaxRequests, p.Window, deps.Clock, logger, deps.Metrics)
	}

	messages := NewMessageHandler(deps.Messages, throttles["message"])
	reports := NewReportHandler(deps.Reports, throttles["report"])
	consume := NewRateLimitHandler(throttles)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	breaker, _ := deps.Limiter.(degradedReporter)
	r.Get("/ready", readyHandler(deps.DB, deps.Redis, breaker, logger))
	if deps.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middlewarex.AuthMiddleware(deps.Verifier))

		r.Post("/messages", messages.Send)
		r.Get("/messages", messages.List)
		r.Post("/reports", reports.Submit)
		r.Post("/ratelimit/{action}", consume.Consume)
	})

	router := &Router{
		Mux:    r,
		logger: logger,
		cfg:    cfg,
	}

	router.Server = &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return router
}

// readyHandler fails only when MySQL is unreachable. A Redis outage or an
// open limiter breaker is reported, but the limiter keeps serving from memory.
func readyHandler(db dbPinger, rdb redisPinger, breaker degradedReporter, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		checks := map[string]string{"mysql": "ok", "redis": "disabled"}

		if db == nil {
			checks["mysql"] = "unavailable"
			status = http.StatusServiceUnavailable
		} else if err := db.PingContext(ctx); err != nil {
			logger.Warn("mysql ping failed", "err", err)
			checks["mysql"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
		if rdb != nil {
			checks["redis"] = "ok"
			if !rdb.Ping(ctx, logger) || (breaker != nil && breaker.Degraded()) {
				checks["redis"] = "degraded"
			}
		}

		response.JSON(w, status, checks)
	}
}
