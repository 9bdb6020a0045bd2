// Command apiserver serves the prediction HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/turtacn/FakeProfile-Intelligence/internal/app"
	"github.com/turtacn/FakeProfile-Intelligence/internal/config"
	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/FakeProfile-Intelligence/internal/interfaces/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "apiserver: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to configuration file (default: FPI_* environment and defaults)")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	flag.Parse()

	cfg, err := config.LoadOrEnv(*configPath)
	if err != nil {
		return err
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	gin.SetMode(cfg.Server.Mode)

	logger, err := app.NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	logger = logger.Named("apiserver")
	logger.Info("Starting FakeProfile-Intelligence API server",
		logging.String("version", app.Version),
		logging.String("commit", app.GitCommit),
		logging.String("addr", cfg.Server.Addr()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := app.New(ctx, cfg, logger, app.Options{
		Component:      "apiserver",
		Metrics:        true,
		Producer:       true,
		PublishResults: true,
	})
	if err != nil {
		logger.Error("Failed to initialize runtime", logging.Err(err))
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Warn("Error while releasing clients", logging.Err(err))
		}
	}()

	srv := httpserver.NewServer(cfg.Server, httpserver.NewRouter(routerConfig(rt)), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		return srv.Stop(context.Background())
	})

	if err := g.Wait(); err != nil {
		logger.Error("API server exited with error", logging.Err(err))
		return err
	}
	logger.Info("API server stopped")
	return nil
}
