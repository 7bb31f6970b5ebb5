package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"sift/internal/broker"
	"sift/internal/config"
	"sift/internal/constants"
	"sift/internal/enrichment"
	"sift/internal/logger"
	"sift/internal/processor"
	"sift/internal/secrets"
	"sift/internal/storage"
	"sift/pkg/bootstrap"
	"sift/pkg/health"
	"sift/pkg/logging"
	"sift/pkg/metrics"
	"sift/pkg/tracing"
)

// worker pairs a processor variant with its own consumer so each variant
// keeps an independent position on the shared topic.
type worker struct {
	processor *processor.Processor
	consumer  broker.Consumer
}

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	redis          *redis.Client
	mongoClient    *mongo.Client
	secretCache    *secrets.Cache
	workers        []worker
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName("processor-service")
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := a.initWorkers(); err != nil {
		return fmt.Errorf("failed to initialize processors: %w", err)
	}

	tp, err := tracing.Init(a.Config.Tracing, "processor-service")
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterProcessorMetrics()
	metrics.RegisterEnrichmentMetrics()
	metrics.RegisterSecretMetrics()
	metrics.RegisterBrokerMetrics()
	if a.Config.CircuitBreaker.Enabled {
		metrics.RegisterCircuitBreakerMetrics()
	}

	a.initHTTPServer()

	return nil
}

func (a *App) initDatabases(ctx context.Context) error {
	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.redis = rdb

	mongoClient, err := a.dbConnector.InitMongoDB(ctx)
	if err != nil {
		return err
	}
	a.mongoClient = mongoClient

	return nil
}

func (a *App) objectStore() storage.ObjectStore {
	if a.mongoClient == nil {
		a.Logger.Warn("MongoDB not configured, records are kept in memory only")
		return storage.NewMemoryStore()
	}

	collection := a.Config.Storage.Collection
	if collection == "" {
		collection = "records"
	}
	return storage.NewMongoStore(a.mongoClient.Database(a.Config.Database.MongoDB.Database), collection)
}

func (a *App) initWorkers() error {
	a.secretCache = secrets.NewCache(secrets.NewRedisStore(a.redis), a.Config.Secrets, a.Logger)
	store := a.objectStore()

	for _, pcfg := range a.Config.Processors {
		enricher, err := enrichment.New(pcfg.Enrichment, a.Config, a.secretCache, a.Logger)
		if err != nil {
			return fmt.Errorf("processor %s: %w", pcfg.Name, err)
		}

		serviceName := fmt.Sprintf("processor-%s", pcfg.Name)
		consumer, err := broker.NewConsumer(a.Config.Broker, pcfg.GroupID, a.Logger)
		if err != nil {
			return fmt.Errorf("processor %s: %w", pcfg.Name, err)
		}
		consumer.SetServiceName(serviceName)

		a.workers = append(a.workers, worker{
			processor: processor.New(pcfg, enricher, store, a.Logger),
			consumer:  consumer,
		})
	}

	if len(a.workers) == 0 {
		return fmt.Errorf("no processors configured")
	}

	return nil
}

func (a *App) initHTTPServer() {
	mux := http.NewServeMux()

	healthRegistry := health.NewCheckerRegistry()
	if a.redis != nil {
		healthRegistry.Register(health.NewRedisChecker(a.redis))
	}
	if a.mongoClient != nil {
		healthRegistry.Register(health.NewMongoDBChecker(a.mongoClient))
	}

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		h := healthRegistry.Check(r.Context())
		statusCode := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			statusCode = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		fmt.Fprintf(w, `{"status":"%s","timestamp":"%s"}`, h.Status, h.Timestamp.Format(time.RFC3339))
	})

	mux.Handle("/metrics", promhttp.Handler())

	a.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler: mux,
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

	topic := a.Config.Broker.Kafka.CheckoutTopic
	if topic == "" {
		topic = constants.DefaultCheckoutTopic
	}

	for _, w := range a.workers {
		w := w
		g.Go(func() error {
			runCtx := logging.WithServiceName(gCtx, fmt.Sprintf("processor-%s", w.processor.Name()))
			a.Logger.InfowCtx(runCtx, "Starting processor",
				"processor", w.processor.Name(),
				"topic", topic,
			)
			return w.consumer.Consume(gCtx, topic, w.processor.Handle)
		})
	}

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	shutdownCtx := logging.WithServiceName(ctx, "processor-service")
	a.Logger.InfowCtx(shutdownCtx, "Shutting down processor service")

	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		for _, w := range a.workers {
			if err := w.consumer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("consumer close error: %w", err))
			}
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(ctx, a.redis, a.mongoClient)...)

		return errs
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
