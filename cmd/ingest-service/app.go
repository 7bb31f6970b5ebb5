package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"sift/internal/config"
	"sift/internal/constants"
	"sift/internal/dedup"
	"sift/internal/ingest"
	"sift/internal/logger"
	"sift/internal/secrets"
	"sift/pkg/bootstrap"
	"sift/pkg/health"
	"sift/pkg/logging"
	"sift/pkg/metrics"
	"sift/pkg/middleware"
	"sift/pkg/ratelimit"
	"sift/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	redis          *redis.Client
	dedup          *dedup.Deduplicator
	secretCache    *secrets.Cache
	service        *ingest.Service
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("ingest-service")
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initRedis(ctx); err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}

	if err := a.InitProducer(); err != nil {
		return fmt.Errorf("failed to initialize broker: %w", err)
	}

	a.initService()

	tp, err := tracing.Init(a.Config.Tracing, "ingest-service")
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterIngestMetrics()
	metrics.RegisterSecretMetrics()
	metrics.RegisterBrokerMetrics()

	a.initHTTPServer()

	return nil
}

func (a *App) initRedis(ctx context.Context) error {
	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.redis = rdb
	return nil
}

func (a *App) initService() {
	a.secretCache = secrets.NewCache(secrets.NewRedisStore(a.redis), a.Config.Secrets, a.Logger)
	a.dedup = dedup.New(a.Config.Dedup, a.Logger)

	a.service = ingest.NewService(
		a.Producer,
		a.dedup,
		a.secretCache,
		a.Config.Broker.Kafka.CheckoutTopic,
		a.Logger,
	)
}

func (a *App) initHTTPServer() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware(a.Logger))
	router.Use(middleware.RecoveryMiddleware(a.Logger))
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.CORSMiddleware(a.Config.Ingest.AllowOrigin))

	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware("ingest-service"))
	}

	if a.Config.Ingest.RateLimit.Enabled {
		rlCfg := ratelimit.DefaultConfig()
		if a.Config.Ingest.RateLimit.RPS > 0 {
			rlCfg.RPS = a.Config.Ingest.RateLimit.RPS
		}
		if a.Config.Ingest.RateLimit.Burst > 0 {
			rlCfg.Burst = a.Config.Ingest.RateLimit.Burst
		}
		router.Use(ratelimit.Middleware(rlCfg))
	}

	handler := ingest.NewHandler(a.service, a.Logger)
	handler.RegisterRoutes(router)

	healthRegistry := health.NewCheckerRegistry()
	if a.redis != nil {
		healthRegistry.Register(health.NewRedisChecker(a.redis))
	}

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		c.JSON(statusCode, gin.H{
			"status":    h.Status,
			"timestamp": h.Timestamp.Format(time.RFC3339),
		})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(a.Config.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(a.Config.Server.WriteTimeoutSeconds) * time.Second,
	}
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, "ingest-service")
	a.Logger.InfowCtx(shutdownCtx, "Shutting down ingestion service")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.dedup != nil {
			a.dedup.Stop()
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redis, nil)...)

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
