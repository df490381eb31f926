package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/niceshot/internal/api/handler"
	"github.com/cuongbtq/niceshot/internal/api/router"
	"github.com/cuongbtq/niceshot/internal/config"
	"github.com/cuongbtq/niceshot/internal/intake"
	"github.com/cuongbtq/niceshot/internal/metrics"
	"github.com/cuongbtq/niceshot/internal/notify"
	"github.com/cuongbtq/niceshot/internal/pipeline"
	"github.com/cuongbtq/niceshot/internal/recording"
	"github.com/cuongbtq/niceshot/internal/storage"
	"github.com/cuongbtq/niceshot/shared/database"
	"github.com/cuongbtq/niceshot/shared/logger"
	"github.com/cuongbtq/niceshot/shared/rabbitmq"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

const (
	eventBufferSize = 256
	sinkTimeout     = 5 * time.Second
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("NICESHOT_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/niceshot-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	appLogger.Info("Starting NiceShot service",
		slog.String("app", cfg.App.Name),
		slog.String("version", pipeline.Version),
		slog.String("environment", cfg.App.Environment),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sinks []notify.Sink

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(cfg.Metrics.Namespace)
		sinks = append(sinks, collector)
	}

	var dbClient *database.Client
	var history *storage.Store
	if cfg.Database.Enabled {
		dbClient, history, err = initHistory(ctx, &cfg.Database, appLogger.Component("database"))
		if err != nil {
			return fmt.Errorf("failed to initialize history store: %w", err)
		}
		defer dbClient.Close()
		sinks = append(sinks, &notify.HistorySink{Store: history})
		appLogger.Info("History store ready", slog.String("driver", cfg.Database.Driver))
	}

	var rabbitClient *rabbitmq.Client
	if cfg.RabbitMQ.Enabled {
		rabbitClient, err = initRabbitMQ(&cfg.RabbitMQ, appLogger.Component("rabbitmq"))
		if err != nil {
			return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
		}
		defer rabbitClient.Close()
		if cfg.RabbitMQ.Events.Enabled {
			sinks = append(sinks, &notify.BrokerSink{
				Publisher: rabbitClient,
				Prefix:    cfg.RabbitMQ.Events.RoutingKeyPrefix,
			})
		}
		appLogger.Info("RabbitMQ connection established")
	}

	hub := notify.NewHub(appLogger.Component("notify"), eventBufferSize, sinkTimeout, sinks...)

	p, err := initPipeline(cfg, appLogger.Component("pipeline"), hub)
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	if collector != nil {
		collector.RegisterPipeline(cfg.Metrics.Namespace, p)
	}
	if cfg.Pipeline.AutoInit {
		if err := p.Init(); err != nil {
			return fmt.Errorf("failed to start pipeline: %w", err)
		}
	}

	intakeErr := make(chan error, 1)
	if rabbitClient != nil && cfg.RabbitMQ.Intake.Enabled {
		consumer := intake.NewConsumer(rabbitClient, p, appLogger.Component("intake"))
		go func() {
			if err := consumer.Run(ctx); err != nil {
				intakeErr <- err
			}
		}()
	}

	r := initRouter(cfg, appLogger.Component("http"), p, history, collector)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	appLogger.Info("NiceShot service is running",
		slog.String("address", addr),
		slog.Bool("pipeline_initialized", p.Initialized()),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		appLogger.Info("Received signal, shutting down gracefully",
			slog.String("signal", sig.String()),
		)
	case err := <-serverErr:
		appLogger.Error("HTTP server failed", slog.Any("error", err))
		runErr = err
	case err := <-intakeErr:
		appLogger.Error("Intake consumer failed", slog.Any("error", err))
		runErr = err
	}

	// Stop accepting work first, then drain the pipeline, then flush events
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", slog.Any("error", err))
	}

	if err := p.Shutdown(); err != nil {
		appLogger.Error("Pipeline shutdown reported an error", slog.Any("error", err))
	}
	hub.Close()

	appLogger.Info("NiceShot service stopped")
	return runErr
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableSource,
		TimeFormat:   time.RFC3339,
	})
}

// initHistory connects to the database and migrates the history schema
func initHistory(ctx context.Context, cfg *config.DatabaseConfig, logger *slog.Logger) (*database.Client, *storage.Store, error) {
	client, err := database.NewClient(&database.Config{
		Driver:          cfg.Driver,
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(client, logger)
	if err := store.Migrate(ctx); err != nil {
		client.Close()
		return nil, nil, err
	}
	return client, store, nil
}

// initRabbitMQ initializes the RabbitMQ client. The intake queue is declared only when intake is enabled.
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		Durable:            cfg.Exchange.Durable,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}
	if cfg.Intake.Enabled {
		rabbitConfig.QueueName = cfg.Intake.Queue
		rabbitConfig.BindingKey = cfg.Intake.BindingKey
		rabbitConfig.PrefetchCount = cfg.Intake.PrefetchCount
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// initPipeline builds the pipeline with every terminal event routed through the hub
func initPipeline(cfg *config.Config, logger *slog.Logger, hub *notify.Hub) (*pipeline.PipelineContext, error) {
	factory, err := recording.NewEncoderFactory(cfg.Recording.Encoder, cfg.Recording.FFmpegPath)
	if err != nil {
		return nil, err
	}

	return pipeline.New(&pipeline.Config{
		Logger:            logger,
		WorkerCount:       cfg.Pipeline.WorkerCount,
		CompressionLevel:  cfg.Pipeline.CompressionLevel,
		VideoPreset:       cfg.Recording.Preset,
		VideoFactory:      factory,
		FrameOverhead:     cfg.Recording.FrameOverheadBytes,
		WriteSidecar:      cfg.Recording.WriteSidecar,
		JobObserver:       hub,
		RecordingObserver: hub,
	})
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(cfg *config.Config, logger *slog.Logger, p *pipeline.PipelineContext, history *storage.Store, collector *metrics.Collector) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	opts := router.Options{}
	if collector != nil {
		opts.MetricsPath = cfg.Metrics.Path
		opts.Metrics = collector.Handler()
	}

	return router.SetupRouter(&handler.Dependencies{
		Logger:       logger,
		Pipeline:     p,
		History:      history,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}, opts)
}
