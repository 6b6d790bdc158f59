package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cuongbtq/lecture-analysis/internal/analysis"
	"github.com/cuongbtq/lecture-analysis/internal/analysis/identity"
	"github.com/cuongbtq/lecture-analysis/internal/analysis/pipeline"
	"github.com/cuongbtq/lecture-analysis/internal/analysis/registry"
	"github.com/cuongbtq/lecture-analysis/internal/api/handler"
	"github.com/cuongbtq/lecture-analysis/internal/api/router"
	"github.com/cuongbtq/lecture-analysis/internal/api/storage"
	"github.com/cuongbtq/lecture-analysis/internal/config"
	"github.com/cuongbtq/lecture-analysis/internal/metrics"
	"github.com/cuongbtq/lecture-analysis/internal/sink"
	"github.com/cuongbtq/lecture-analysis/internal/worker"
	"github.com/cuongbtq/lecture-analysis/shared/logger"
	"github.com/cuongbtq/lecture-analysis/shared/objectstore"
	"github.com/cuongbtq/lecture-analysis/shared/postgresql"
	"github.com/cuongbtq/lecture-analysis/shared/rabbitmq"
)

func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting analysis service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.Storage.UploadDir, 0o755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}

	collector := metrics.NewCollector()

	jobs := registry.New(&registry.Config{
		Logger:        appLogger.Component("registry"),
		Retention:     cfg.Registry.Retention,
		SweepInterval: cfg.Registry.SweepInterval,
	})

	pool := worker.NewPool(&worker.Config{
		Logger:      appLogger.Component("worker"),
		Concurrency: cfg.Worker.Concurrency,
		QueueSize:   cfg.Worker.QueueSize,
		JobTimeout:  cfg.Worker.JobTimeout,
	})

	pipe := pipeline.New(&pipeline.Config{
		UploadDir: cfg.Storage.UploadDir,
		Extractor: pipeline.NewAudioExtractor(cfg.FFmpeg.Path, cfg.FFmpeg.Timeout),
		Analyzer:  pipeline.NewHTTPAnalyzer(cfg.Analyzer.BaseURL, cfg.Analyzer.Timeout),
		Logger:    appLogger.Component("pipeline"),
	})
	pipe.AddSink(collector)

	healthChecks := make(map[string]handler.HealthChecker)
	var closers []func() error

	// Optional components below only add sinks and health checks; the
	// analysis flow itself never depends on them.
	var history handler.JobHistory
	if cfg.Database.Enabled {
		dbClient, err := initPostgreSQL(ctx, &cfg.Database, appLogger.Component("postgresql"))
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		closers = append(closers, dbClient.Close)

		if cfg.Database.AutoMigrate {
			if err := dbClient.Migrate(ctx, storage.Schema); err != nil {
				closeAll(closers, appLogger.Logger)
				return err
			}
		}

		store := storage.NewStorage(dbClient)
		pipe.AddSink(sink.NewRecordSink(store))
		history = store
		healthChecks["database"] = dbClient
	}

	if cfg.RabbitMQ.Enabled {
		rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Component("rabbitmq"))
		if err != nil {
			closeAll(closers, appLogger.Logger)
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		closers = append(closers, rabbitClient.Close)
		pipe.AddSink(sink.NewEventSink(rabbitClient))
		healthChecks["rabbitmq"] = rabbitClient
	}

	if cfg.ObjectStore.Enabled {
		store, err := initObjectStore(ctx, &cfg.ObjectStore, appLogger.Component("objectstore"))
		if err != nil {
			closeAll(closers, appLogger.Logger)
			return fmt.Errorf("failed to initialize object store: %w", err)
		}
		pipe.AddSink(sink.NewMirrorSink(store))
		healthChecks["object_store"] = store
	}
	defer closeAll(closers, appLogger.Logger)

	collector.TrackRegistry(jobs.Stats)
	collector.TrackPool(pool.Active, pool.Queued, pool.Capacity())

	svc := analysis.NewService(&analysis.Config{
		Logger:    appLogger.Component("analysis"),
		UploadDir: cfg.Storage.UploadDir,
		Registry:  jobs,
		Resolver:  identity.NewResolver(cfg.Storage.UploadDir, appLogger.Component("identity")),
		Pool:      pool,
		Pipeline:  pipe,
		Recorder:  collector,
	})

	// Running jobs must outlive the signal so Stop can drain them.
	pool.Start(context.WithoutCancel(ctx))
	go jobs.Run(ctx)

	deps := &handler.Dependencies{
		Logger:         appLogger.Component("http"),
		ServiceName:    cfg.App.Name,
		Analysis:       svc,
		History:        history,
		MaxUploadBytes: cfg.Upload.MaxBytes,
		HealthChecks:   healthChecks,
		UploadRate:     cfg.Upload.RatePerSecond,
		UploadBurst:    cfg.Upload.Burst,
		OnRateLimited:  collector.UploadRateLimited,
	}
	if cfg.Metrics.Enabled {
		deps.MetricsHandler = collector.Handler()
		deps.MetricsPath = cfg.Metrics.Path
	}
	r := initRouter(cfg.App.Environment, deps)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	appLogger.Info("Analysis service is running",
		slog.String("address", addr),
		slog.String("upload_dir", cfg.Storage.UploadDir),
		slog.Int("workers", cfg.Worker.Concurrency),
		slog.Int("queue_size", cfg.Worker.QueueSize),
	)

	var runErr error
	select {
	case <-ctx.Done():
		appLogger.Info("Shutting down server...")
	case err := <-serveErr:
		appLogger.Error("Server failed", slog.Any("error", err))
		runErr = err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", slog.Any("error", err))
		runErr = errors.Join(runErr, err)
	}

	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer cancelDrain()
	if err := pool.Stop(drainCtx); err != nil {
		appLogger.Warn("Analysis jobs canceled during shutdown", slog.Any("error", err))
	}

	appLogger.Info("Server shutdown complete")
	return runErr
}

func closeAll(closers []func() error, logger *slog.Logger) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			logger.Warn("Failed to close client", slog.Any("error", err))
		}
	}
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(ctx context.Context, cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		ConnectTimeout:  cfg.ConnectTimeout,
	}

	return postgresql.NewClient(ctx, dbConfig, logger)
}

// initRabbitMQ initializes the job event publisher
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

func initObjectStore(ctx context.Context, cfg *config.ObjectStoreConfig, logger *slog.Logger) (*objectstore.Store, error) {
	return objectstore.New(ctx, &objectstore.Config{
		Endpoint:  cfg.Endpoint,
		Region:    cfg.Region,
		Bucket:    cfg.Bucket,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		UseSSL:    cfg.UseSSL,
		Prefix:    cfg.Prefix,
	}, logger)
}

// initRouter sets the Gin mode from the environment and builds the router
func initRouter(environment string, deps *handler.Dependencies) *gin.Engine {
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	return router.SetupRouter(deps)
}
