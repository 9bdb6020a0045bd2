// Package http assembles the API server: a gin engine for the routes wrapped
// in net/http middleware for request ids, access logs, CORS and rate limiting.
package http

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/FakeProfile-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/FakeProfile-Intelligence/internal/interfaces/http/handlers"
	"github.com/turtacn/FakeProfile-Intelligence/internal/interfaces/http/middleware"
	"github.com/turtacn/FakeProfile-Intelligence/pkg/errors"
)

// APIPrefix is the versioned mount point of the predict routes. They are also
// served at the root for existing clients.
const APIPrefix = "/api/v1"

// RouterConfig aggregates the handler and middleware dependencies of the
// route tree. Nil handlers leave their routes unregistered.
type RouterConfig struct {
	PredictionHandler *handlers.PredictionHandler
	HealthHandler     *handlers.HealthHandler

	CORS      *middleware.CORSConfig
	RateLimit *middleware.RateLimitConfig
	Logging   middleware.LoggingConfig

	Logger           logging.Logger
	MetricsCollector prometheus.MetricsCollector
	Metrics          *prometheus.AppMetrics
	MetricsPath      string
}

// NewRouter builds the complete handler tree.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	if cfg.Metrics != nil {
		engine.Use(metricsMiddleware(cfg.Metrics))
	}
	engine.Use(gin.CustomRecoveryWithWriter(io.Discard, recoveryHandler(logger)))
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, handlers.ErrorResponse{
			Error:     "route not found",
			Code:      string(errors.ErrCodeNotFound),
			RequestID: logging.RequestIDFromContext(c.Request.Context()),
		})
	})

	if cfg.HealthHandler != nil {
		engine.GET("/healthz", gin.WrapF(cfg.HealthHandler.Liveness))
		engine.GET("/readyz", gin.WrapF(cfg.HealthHandler.Readiness))
	}
	if cfg.MetricsCollector != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		engine.GET(path, gin.WrapH(cfg.MetricsCollector.Handler()))
	}
	if cfg.PredictionHandler != nil {
		cfg.PredictionHandler.RegisterRoutes(engine)
		cfg.PredictionHandler.RegisterRoutes(engine.Group(APIPrefix))
	}

	var h http.Handler = engine
	if cfg.RateLimit != nil {
		rl := *cfg.RateLimit
		if cfg.Metrics != nil {
			routes := knownPaths(engine)
			rl.OnLimited = func(r *http.Request) {
				path := r.URL.Path
				if !routes[path] {
					path = "other"
				}
				cfg.Metrics.HTTPRateLimited.WithLabelValues(path).Inc()
			}
		}
		limiter := middleware.NewKeyedLimiter(rl.RequestsPerSecond, rl.Burst, rl.IdleTimeout)
		h = middleware.RateLimit(limiter, rl, logger)(h)
	}
	if cfg.CORS != nil {
		h = middleware.CORS(*cfg.CORS)(h)
	}
	h = middleware.RequestLogging(logger, cfg.Logging)(h)
	return middleware.RequestID(h)
}

func knownPaths(engine *gin.Engine) map[string]bool {
	paths := make(map[string]bool)
	for _, r := range engine.Routes() {
		paths[r.Path] = true
	}
	return paths
}

// metricsMiddleware labels by route template so unknown paths collapse into
// one series.
func metricsMiddleware(m *prometheus.AppMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method

		active := m.HTTPActiveRequests.WithLabelValues(method, path)
		active.Inc()
		start := time.Now()
		c.Next()
		active.Dec()

		prometheus.RecordHTTPRequest(m, method, path, c.Writer.Status(), time.Since(start))
		if status := c.Writer.Status(); status >= http.StatusInternalServerError && len(c.Errors) > 0 {
			prometheus.RecordError(m, "http", string(errors.GetCode(c.Errors.Last().Err)))
		}
	}
}

func recoveryHandler(logger logging.Logger) gin.RecoveryFunc {
	return func(c *gin.Context, recovered interface{}) {
		logger.WithContext(c.Request.Context()).Error("panic recovered",
			logging.Any("panic", recovered),
			logging.String("path", c.Request.URL.Path))
		c.AbortWithStatusJSON(http.StatusInternalServerError, handlers.ErrorResponse{
			Error:     "internal server error",
			Code:      string(errors.ErrCodeInternal),
			RequestID: logging.RequestIDFromContext(c.Request.Context()),
		})
	}
}
