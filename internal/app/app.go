package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/sourcegraph/conc/pool"

	"github.com/riskibarqy/softball-stats/external/ncaa"
	"github.com/riskibarqy/softball-stats/internal/config"
	"github.com/riskibarqy/softball-stats/internal/domain/rawdata"
	"github.com/riskibarqy/softball-stats/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/softball-stats/internal/infrastructure/repository/postgres"
	"github.com/riskibarqy/softball-stats/internal/interfaces/httpapi"
	"github.com/riskibarqy/softball-stats/internal/platform/cache"
	"github.com/riskibarqy/softball-stats/internal/platform/logging"
	"github.com/riskibarqy/softball-stats/internal/platform/ratelimit"
	"github.com/riskibarqy/softball-stats/internal/platform/resilience"
	"github.com/riskibarqy/softball-stats/internal/usecase"
)

// App owns the HTTP server and every long lived dependency behind it.
type App struct {
	cfg    config.Config
	logger *logging.Logger

	server *http.Server
	stats  *usecase.StatsService
	warmup *usecase.WarmupService

	redis *redis.Client
	db    *sqlx.DB
}

func New(ctx context.Context, cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.HTTPAddr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	a := &App{cfg: cfg, logger: logger}

	if needsRedis(cfg) {
		client, err := openRedis(ctx, cfg.RedisURL, logger)
		if err != nil {
			return nil, err
		}
		a.redis = client
	}

	archive, err := a.buildArchive(ctx)
	if err != nil {
		_ = a.closeResources()
		return nil, err
	}

	client := ncaa.NewClient(ncaa.ClientConfig{
		BaseURL:   cfg.NCAABaseURL,
		APIKey:    cfg.NCAAAPIKey,
		UserAgent: cfg.NCAAUserAgent,
		Timeout:   cfg.NCAATimeout,
		MaxPages:  cfg.NCAAMaxPages,
		Limiter:   a.buildLimiter(),
		Logger:    logger.Named("ncaa"),
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.NCAACircuitEnabled,
			FailureThreshold: cfg.NCAACircuitFailureCount,
			OpenTimeout:      cfg.NCAACircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.NCAACircuitHalfOpenMaxReq,
		},
	})

	a.stats = usecase.NewStatsService(client, a.buildResponseCache(), archive, logger)
	if cfg.WarmupEnabled {
		a.warmup = usecase.NewWarmupService(a.stats, cfg.WarmupWorkers, logger.Named("warmup"))
	}

	handler := httpapi.NewHandler(a.stats, client, logger)
	router := httpapi.NewRouter(handler, logger, cfg.SwaggerEnabled, cfg.CORSAllowedOrigins)

	a.server = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return a, nil
}

// Handler exposes the router, mostly for tests.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := pool.New().WithErrors().WithContext(runCtx).WithCancelOnError()

	p.Go(func(ctx context.Context) error {
		a.logger.Info("http server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	if a.warmup != nil {
		p.Go(func(ctx context.Context) error {
			a.warmup.Run(ctx, a.cfg.WarmupInterval)
			return nil
		})
	}

	p.Go(func(ctx context.Context) error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.ShutdownTimeout)
		defer cancel()
		return a.Shutdown(shutdownCtx)
	})

	return p.Wait()
}

// Shutdown stops the HTTP server and releases backing connections.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("graceful shutdown failed: %w", err))
	}
	if err := a.closeResources(); err != nil {
		errs = append(errs, err)
	}

	a.logger.Info("http server stopped")
	return errors.Join(errs...)
}

func (a *App) closeResources() error {
	var errs []error
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close postgres: %w", err))
		}
		a.db = nil
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
		a.redis = nil
	}
	return errors.Join(errs...)
}

func (a *App) buildResponseCache() usecase.ResponseCache {
	if !a.cfg.CacheEnabled {
		return nil
	}
	if a.cfg.CacheBackend == config.CacheBackendRedis {
		return cache.NewRedisStore(a.redis, a.cfg.CachePrefix, a.cfg.CacheTTL, a.logger)
	}
	return cache.NewStore(a.cfg.CacheTTL, cache.WithMaxEntries(a.cfg.CacheMaxEntries))
}

func (a *App) buildLimiter() ratelimit.Limiter {
	if a.cfg.NCAARateLimitBackend == config.RateLimitBackendRedis {
		return ratelimit.NewRedisSpacer(a.redis, a.cfg.NCAARateLimitKey, a.cfg.NCAAMinRequestInterval, a.logger)
	}
	return ratelimit.NewSpacer(a.cfg.NCAAMinRequestInterval, a.logger)
}

func (a *App) buildArchive(ctx context.Context) (rawdata.Repository, error) {
	if !a.cfg.ArchiveEnabled {
		return nil, nil
	}
	if a.cfg.ArchiveBackend == config.ArchiveBackendMemory {
		return memory.NewUpstreamPayloadRepository(), nil
	}

	db, err := openDB(ctx, a.cfg.DBURL, a.logger)
	if err != nil {
		return nil, err
	}
	a.db = db
	return postgres.NewUpstreamPayloadRepository(db), nil
}

func needsRedis(cfg config.Config) bool {
	return (cfg.CacheEnabled && cfg.CacheBackend == config.CacheBackendRedis) ||
		cfg.NCAARateLimitBackend == config.RateLimitBackendRedis
}
