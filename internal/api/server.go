// Package api serves the read-only status HTTP API: scheduler snapshot,
// twilight window and allocation, health and Prometheus metrics.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/solarwindow/pvpoll/internal/errors"
	"github.com/solarwindow/pvpoll/internal/logger"
	"github.com/solarwindow/pvpoll/internal/scheduler"
)

// Default constants for the HTTP server
const (
	DefaultListen          = ":8089"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
)

// GetLogger returns the api package logger
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// Config holds the HTTP server configuration
type Config struct {
	Listen       string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	DailyBudget  int // used for ad hoc window allocations
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.DailyBudget <= 0 {
		c.DailyBudget = scheduler.DefaultDailyBudget
	}
}

// StatusProvider exposes the scheduler state
type StatusProvider interface {
	Snapshot() scheduler.Snapshot
}

// Server is the status HTTP server
type Server struct {
	cfg       Config
	echo      *echo.Echo
	status    StatusProvider
	windows   scheduler.WindowSource
	metrics   http.Handler
	location  *time.Location
	now       func() time.Time
	startTime time.Time
	log       logger.Logger
	errCh     chan error
}

// ServerOption configures optional collaborators
type ServerOption func(*Server)

// WithMetricsHandler serves h on /metrics
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(s *Server) { s.metrics = h }
}

// WithLocation sets the timezone used to interpret ?date=
func WithLocation(loc *time.Location) ServerOption {
	return func(s *Server) { s.location = loc }
}

// WithLogger replaces the module logger
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) { s.log = l }
}

// New builds the server and its routes. Start must be called to serve.
func New(cfg Config, status StatusProvider, windows scheduler.WindowSource, opts ...ServerOption) *Server {
	cfg.applyDefaults()
	s := &Server{
		cfg:      cfg,
		status:   status,
		windows:  windows,
		location: time.Local,
		now:      time.Now,
		log:      GetLogger(),
		errCh:    make(chan error, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startTime = s.now()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = cfg.ReadTimeout
	e.Server.WriteTimeout = cfg.WriteTimeout
	e.Server.IdleTimeout = cfg.IdleTimeout
	e.HTTPErrorHandler = s.errorHandler

	e.Use(echomw.Recover())
	e.Use(newRequestLogger(s.log))

	e.GET("/healthz", s.health)
	v1 := e.Group("/api/v1")
	v1.GET("/status", s.getStatus)
	v1.GET("/window", s.getWindow)
	if s.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(s.metrics))
	}

	s.echo = e
	return s
}

// Start serves in a background goroutine. A listen failure is logged and
// reported on Err.
func (s *Server) Start() {
	go func() {
		s.log.Info("starting HTTP server", logger.String("address", s.cfg.Listen))
		if err := s.echo.Start(s.cfg.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			wrapped := errors.New(err).
				Component("api").
				Category(errors.CategoryNetwork).
				Context("operation", "listen").
				Context("address", s.cfg.Listen).
				Build()
			s.log.Error("HTTP server failed", logger.Error(wrapped))
			s.errCh <- wrapped
		}
	}()
}

// Err delivers a fatal serve error
func (s *Server) Err() <-chan error {
	return s.errCh
}

// Shutdown stops accepting requests and waits for active ones
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return errors.New(err).
			Component("api").
			Category(errors.CategoryNetwork).
			Context("operation", "shutdown").
			Build()
	}
	s.log.Info("HTTP server stopped")
	return nil
}

// Handler returns the router, used by tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

// errorHandler renders every error as {"error": "..."} and logs server errors
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	message := "internal server error"
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	}
	if code >= http.StatusInternalServerError {
		s.log.Error("request failed", logger.String("path", c.Path()), logger.Error(err))
	}
	if err := c.JSON(code, map[string]string{"error": message}); err != nil {
		s.log.Warn("failed to write error response", logger.Error(err))
	}
}
