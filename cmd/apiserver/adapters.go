package main

import (
	"github.com/turtacn/FakeProfile-Intelligence/internal/app"
	httpserver "github.com/turtacn/FakeProfile-Intelligence/internal/interfaces/http"
	"github.com/turtacn/FakeProfile-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/FakeProfile-Intelligence/internal/interfaces/http/middleware"
)

// routerConfig maps the runtime and its config sections onto the router.
// CORS is on only when origins are configured; rate limiting only when enabled.
func routerConfig(rt *app.Runtime) httpserver.RouterConfig {
	cfg := rt.Config

	var healthOpts []handlers.HealthOption
	if obs := rt.HealthObserver(); obs != nil {
		healthOpts = append(healthOpts, handlers.WithHealthObserver(obs))
	}

	rc := httpserver.RouterConfig{
		PredictionHandler: handlers.NewPredictionHandler(rt.Service, rt.Logger),
		HealthHandler:     handlers.NewHealthHandler(app.Version, rt.HealthCheckers(), healthOpts...),
		Logging:           middleware.DefaultLoggingConfig(),
		Logger:            rt.Logger,
		MetricsCollector:  rt.Collector,
		Metrics:           rt.Metrics,
		MetricsPath:       cfg.Metrics.Path,
	}
	if len(cfg.CORS.AllowedOrigins) > 0 {
		c := middleware.CORSConfigFrom(cfg.CORS)
		rc.CORS = &c
	}
	if cfg.RateLimit.Enabled {
		rl := middleware.RateLimitConfigFrom(cfg.RateLimit)
		rc.RateLimit = &rl
	}
	return rc
}
