package application

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/bohdanPatriot/polska-jednostka-online/internal/api"
	"github.com/bohdanPatriot/polska-jednostka-online/internal/config"
	"github.com/bohdanPatriot/polska-jednostka-online/internal/domain/ratelimit"
	authinfra "github.com/bohdanPatriot/polska-jednostka-online/internal/infra/auth"
	metricsinfra "github.com/bohdanPatriot/polska-jednostka-online/internal/infra/metrics"
	rlinfra "github.com/bohdanPatriot/polska-jednostka-online/internal/infra/ratelimit"
	redisinfra "github.com/bohdanPatriot/polska-jednostka-online/internal/infra/redis"
	"github.com/bohdanPatriot/polska-jednostka-online/internal/infra/throttle"
	"github.com/bohdanPatriot/polska-jednostka-online/internal/repository"
	"github.com/bohdanPatriot/polska-jednostka-online/internal/service"
	"github.com/bohdanPatriot/polska-jednostka-online/pkg/nethttp/runner"
)

type Application struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metricsinfra.Metrics
	db      *sqlx.DB
	redis   *redisinfra.Client
	memory  *rlinfra.MemoryLimiter
	limiter ratelimit.Limiter
	edge    *throttle.Store
	router  *api.Router

	errChan chan error
	wg      sync.WaitGroup
}

func New() *Application {
	return &Application{errChan: make(chan error)}
}

func (a *Application) Start(ctx context.Context, build string) error {
	if err := a.initCoreComponents(); err != nil {
		return fmt.Errorf("initCoreComponents(): %w", err)
	}

	if err := a.initStorage(ctx); err != nil {
		return fmt.Errorf("initStorage(): %w", err)
	}

	a.initLimiters(ctx)

	if err := a.initPublicRouter(ctx); err != nil {
		return fmt.Errorf("initPublicRouter(): %w", err)
	}

	a.logger.Info("application started", slog.String("build", build), slog.String("addr", a.cfg.HTTP.Addr))
	return nil
}

func (a *Application) Wait(ctx context.Context, cancel context.CancelFunc) error {
	var appErr error

	errWg := sync.WaitGroup{}
	errWg.Add(1)

	go func() {
		defer errWg.Done()
		for err := range a.errChan {
			cancel()
			if err != nil {
				a.logger.Error("error in Wait", slog.String("error", err.Error()))
				appErr = err
			}
		}
	}()

	<-ctx.Done()
	a.wg.Wait()
	close(a.errChan)
	errWg.Wait()

	a.shutdown()
	return appErr
}

func (a *Application) initCoreComponents() error {
	if err := a.initConfig(); err != nil {
		return fmt.Errorf("initConfig(): %w", err)
	}

	a.initLogger()
	a.metrics = metricsinfra.New()
	return nil
}

func (a *Application) initConfig() error {
	cfg, err := config.New()
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func (a *Application) initLogger() {
	a.logger = NewLogger(a.cfg.Log.LevelStr)
}

func (a *Application) initStorage(ctx context.Context) error {
	db, err := repository.NewMySQL(a.cfg.MySQL)
	if err != nil {
		return fmt.Errorf("mysql: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("mysql ping: %w", err)
	}
	a.db = db

	a.redis = redisinfra.New(a.cfg.Redis)
	if a.redis != nil && !a.redis.Ping(ctx, a.logger) {
		a.logger.Warn("redis unavailable at startup, rate limiter starts degraded")
	}
	return nil
}

// initLimiters builds the process-wide limiter. The in-memory limiter is
// always present: it serves alone without Redis and as the Redis fallback.
func (a *Application) initLimiters(ctx context.Context) {
	a.memory = rlinfra.NewMemory(
		rlinfra.WithSweepInterval(a.cfg.RateLimit.SweepInterval),
		rlinfra.WithLogger(a.logger),
	)
	a.memory.Start(ctx)
	a.limiter = a.memory

	if a.redis != nil {
		a.limiter = rlinfra.NewRedis(a.redis.Raw(), a.cfg.Redis.Prefix, a.memory, a.cfg.CircuitBreaker, a.logger, a.metrics)
	}

	edge := a.cfg.RateLimit.Edge
	if !edge.Disabled {
		a.edge = throttle.NewStore(edge.RPS, edge.Burst, throttle.WithIdleTTL(edge.IdleTTL))
		a.edge.StartJanitor(ctx)
	}
}

func (a *Application) initPublicRouter(ctx context.Context) error {
	verifier, err := authinfra.NewVerifier(a.cfg.JWT)
	if err != nil {
		return err
	}

	deps := api.Deps{
		Limiter:  a.limiter,
		Clock:    ratelimit.SystemClock,
		Verifier: verifier,
		Messages: service.NewMessageService(repository.NewMessageRepository(a.db), a.metrics),
		Reports:  service.NewReportService(repository.NewReportRepository(a.db), a.metrics),
		DB:       a.db,
		Metrics:  a.metrics,
	}
	if a.edge != nil {
		deps.Edge = a.edge
	}
	if a.redis != nil {
		deps.Redis = a.redis
	}
	a.router = api.New(a.cfg, a.logger, deps)

	port, err := parsePort(a.cfg.HTTP.Addr)
	if err != nil {
		return err
	}

	if err := runner.RunServer(ctx, a.router.Server, port, a.errChan, &a.wg, a.cfg.HTTP.ShutdownTimeout); err != nil {
		return err
	}

	return nil
}

func (a *Application) shutdown() {
	if a.memory != nil {
		a.memory.Stop()
	}
	if err := a.redis.Close(); err != nil {
		a.logger.Warn("redis close failed", "err", err)
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("mysql close failed", "err", err)
		}
	}
	a.logger.Info("application stopped")
}

func parsePort(addr string) (string, error) {
	if strings.HasPrefix(addr, ":") {
		return strings.TrimPrefix(addr, ":"), nil
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("invalid http addr: %w", err)
	}
	return port, nil
}
