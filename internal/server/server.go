// Package server exposes the orchestrator over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cartai/internal/core"
	"cartai/internal/orchestrator"
)

// Config holds HTTP server configuration.
type Config struct {
	Port string
	// MetricsRegistry enables GET /metrics when non-nil
	MetricsRegistry *prometheus.Registry
}

// Server wraps echo with the gateway's routes.
type Server struct {
	echo *echo.Echo
	orch *orchestrator.Orchestrator
	cfg  Config
}

// New builds the server and registers all routes.
func New(orch *orchestrator.Orchestrator, cfg Config) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, orch: orch, cfg: cfg}

	e.Use(middleware.Recover())
	e.Use(s.requestContext)

	e.GET("/healthz", s.handleHealth)
	e.POST("/v1/chat", s.handleChat)
	e.GET("/v1/rate-limit", s.handleRateLimit)
	e.GET("/v1/usage/daily", s.handleDailyUsage)
	e.POST("/v1/maintenance/purge", s.handlePurge)

	if cfg.MetricsRegistry != nil {
		e.GET("/metrics", echo.WrapHandler(
			promhttp.HandlerFor(cfg.MetricsRegistry, promhttp.HandlerOpts{})))
	}

	return s
}

// Start runs the server until Shutdown is called.
func (s *Server) Start() error {
	addr := ":" + s.cfg.Port
	slog.Info("http server listening", "addr", addr)
	if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// requestContext tags each request with an id and the caller's user id,
// and logs one line per request.
func (s *Server) requestContext(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		requestID := c.Request().Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Response().Header().Set("X-Request-Id", requestID)

		ctx := core.WithRequestID(c.Request().Context(), requestID)
		if userID := c.Request().Header.Get("X-User-Id"); userID != "" {
			ctx = core.WithUserID(ctx, userID)
		}
		c.SetRequest(c.Request().WithContext(ctx))

		start := time.Now()
		err := next(c)
		slog.Info("request",
			"request_id", requestID,
			"method", c.Request().Method,
			"path", c.Path(),
			"status", c.Response().Status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return err
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
