// Command worker consumes classification requests from Kafka and publishes
// the results.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/FakeProfile-Intelligence/internal/app"
	"github.com/turtacn/FakeProfile-Intelligence/internal/config"
	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/FakeProfile-Intelligence/internal/interfaces/http"
	"github.com/turtacn/FakeProfile-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/FakeProfile-Intelligence/internal/interfaces/messaging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to configuration file (default: FPI_* environment and defaults)")
	workers := flag.Int("workers", 0, "number of concurrent consumers (overrides config)")
	flag.Parse()

	cfg, err := config.LoadOrEnv(*configPath)
	if err != nil {
		return err
	}
	if *workers > 0 {
		cfg.Messaging.Workers = *workers
	}
	if !cfg.Messaging.Enabled {
		return fmt.Errorf("messaging.enabled must be true to run the worker")
	}

	logger, err := app.NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	logger = logger.Named("worker")
	logger.Info("Starting FakeProfile-Intelligence worker",
		logging.String("version", app.Version),
		logging.Strings("brokers", cfg.Messaging.Brokers),
		logging.String("topic", cfg.Messaging.RequestTopic),
		logging.Int("workers", cfg.Messaging.Workers))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The handler publishes results itself, so the service gets no publisher.
	rt, err := app.New(ctx, cfg, logger, app.Options{Component: "worker", Metrics: true, Producer: true})
	if err != nil {
		logger.Error("Failed to initialize runtime", logging.Err(err))
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn("Error while releasing clients", logging.Err(err))
		}
	}()

	if cfg.Messaging.EnsureTopics {
		if err := ensureTopics(ctx, cfg.Messaging, logger); err != nil {
			return err
		}
	}

	handler, err := messaging.NewClassificationHandler(rt.Service, rt.Publisher, rt.Metrics, logger)
	if err != nil {
		return err
	}
	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:        cfg.Messaging.Brokers,
		GroupID:        cfg.Messaging.GroupID,
		Topics:         []string{cfg.Messaging.RequestTopic},
		Workers:        cfg.Messaging.Workers,
		HandlerTimeout: cfg.Messaging.HandlerTimeout,
		RetryConfig: kafka.RetryConfig{
			MaxRetries:      cfg.Messaging.MaxRetries,
			RetryBackoff:    cfg.Messaging.RetryBackoff,
			DeadLetterTopic: cfg.Messaging.DeadLetterTopic,
		},
	}, rt.Producer, logger)
	if err != nil {
		return fmt.Errorf("kafka consumer: %w", err)
	}
	if err := consumer.Subscribe(cfg.Messaging.RequestTopic, handler.Handle); err != nil {
		return err
	}

	healthSrv := httpserver.NewServer(config.ServerConfig{
		Port:            cfg.Messaging.HealthPort,
		ShutdownTimeout: 5 * time.Second,
	}, healthMux(rt, consumer), logger)

	g, gctx := errgroup.WithContext(ctx)
	if err := consumer.Start(gctx); err != nil {
		return err
	}
	g.Go(healthSrv.Start)
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Draining in-flight messages")
		if err := consumer.Close(); err != nil {
			logger.Warn("Kafka consumer close failed", logging.Err(err))
		}
		return healthSrv.Stop(context.Background())
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker exited with error", logging.Err(err))
		return err
	}
	logger.Info("Worker stopped")
	return nil
}

// healthMux serves /healthz, /readyz and, with metrics on, the scrape path.
func healthMux(rt *app.Runtime, consumer *kafka.Consumer) *http.ServeMux {
	checkers := append(rt.HealthCheckers(), handlers.NewChecker("consumer", func(context.Context) error {
		if !consumer.Running() {
			return fmt.Errorf("consumer not running")
		}
		return nil
	}))
	var opts []handlers.HealthOption
	if obs := rt.HealthObserver(); obs != nil {
		opts = append(opts, handlers.WithHealthObserver(obs))
	}

	mux := http.NewServeMux()
	handlers.NewHealthHandler(app.Version, checkers, opts...).RegisterRoutes(mux)
	if rt.Collector != nil {
		mux.Handle("GET "+rt.Config.Metrics.Path, rt.Collector.Handler())
	}
	return mux
}

func ensureTopics(ctx context.Context, cfg config.MessagingConfig, logger logging.Logger) error {
	tm, err := kafka.NewTopicManager(ctx, cfg.Brokers, logger)
	if err != nil {
		return fmt.Errorf("kafka topic manager: %w", err)
	}
	defer tm.Close()
	return tm.EnsureTopics(ctx, kafka.ServiceTopics(cfg))
}
