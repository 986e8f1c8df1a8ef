// Package http serves the prompt pipeline over a REST API.
package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Gabriell-Belmont/sam--product-management/internal/blobstore"
	"github.com/Gabriell-Belmont/sam--product-management/internal/item"
	"github.com/Gabriell-Belmont/sam--product-management/internal/pipeline"
	"github.com/Gabriell-Belmont/sam--product-management/internal/secrets"
)

// Pipeline is the part of pipeline.Orchestrator the API serves.
type Pipeline interface {
	Process(ctx context.Context, prompt string, pc pipeline.ProjectContext) *pipeline.Result
	Classify(ctx context.Context, prompt string, pc pipeline.ProjectContext) (*item.PromptRecord, item.FieldSet)
	CheckConflicts(ctx context.Context, prompt string, pc pipeline.ProjectContext) (*pipeline.ConflictReport, error)
	History(ctx context.Context, project string, t item.Type, limit int) ([]blobstore.Record, error)
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Server provides the HTTP endpoints.
type Server struct {
	echo     *echo.Echo
	pipeline Pipeline
	scrubber secrets.Scrubber
	logger   *zap.Logger
	config   *Config

	checks   map[string]HealthCheck
	gatherer prometheus.Gatherer
	version  string
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
	// BodyLimit caps request bodies, in echo's notation ("1M").
	BodyLimit string
}

// Option configures a Server.
type Option func(*Server)

// WithHealthCheck adds a dependency to GET /health.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(s *Server) { s.checks[name] = check }
}

// WithGatherer serves g on GET /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithVersion reports version on GET /health.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// NewServer creates a new HTTP server.
func NewServer(p Pipeline, scrubber secrets.Scrubber, logger *zap.Logger, cfg *Config, opts ...Option) (*Server, error) {
	if p == nil {
		return nil, fmt.Errorf("pipeline cannot be nil")
	}
	if scrubber == nil {
		return nil, fmt.Errorf("scrubber cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "127.0.0.1", Port: 8085}
	}
	if cfg.BodyLimit == "" {
		cfg.BodyLimit = "1M"
	}

	s := &Server{
		pipeline: p,
		scrubber: scrubber,
		logger:   logger.Named("http"),
		config:   cfg,
		checks:   make(map[string]HealthCheck),
	}
	for _, opt := range opts {
		opt(s)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(s.contextMiddleware())
	e.Use(NewHTTPMetrics(s.logger).MetricsMiddleware())
	e.Use(s.logMiddleware())
	s.echo = e

	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	if s.gatherer != nil {
		s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	v1 := s.echo.Group("/api/v1")
	v1.POST("/process", s.handleProcess)
	v1.POST("/classify", s.handleClassify)
	v1.POST("/check-conflicts", s.handleCheckConflicts)
	v1.GET("/history/:type", s.handleHistory)
	v1.POST("/scrub", s.handleScrub)
}

// Handler returns the server's http.Handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Start serves on the configured address until Shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
