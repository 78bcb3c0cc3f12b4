package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	mw "github.com/phibia-app/phibia-go/internal/api/middleware"
	"github.com/phibia-app/phibia-go/internal/conf"
	"github.com/phibia-app/phibia-go/internal/datastore"
	"github.com/phibia-app/phibia-go/internal/logger"
	"github.com/phibia-app/phibia-go/internal/observability"
	"github.com/phibia-app/phibia-go/internal/session"
)

// Geocoder names a position for display.
type Geocoder interface {
	Address(ctx context.Context, lat, lng float64) string
}

// Server is the daemon's HTTP server.
type Server struct {
	echo    *echo.Echo
	config  *Config
	version string
	log     logger.Logger

	session  *session.Session
	history  datastore.Interface   // optional
	metrics  *observability.Metrics // optional
	geocoder Geocoder              // optional

	now       func() time.Time
	startTime time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithHistory enables the /history routes.
func WithHistory(store datastore.Interface) ServerOption {
	return func(s *Server) {
		s.history = store
	}
}

// WithMetrics enables /metrics and request metrics.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithGeocoder adds addresses to session views.
func WithGeocoder(g Geocoder) ServerOption {
	return func(s *Server) {
		s.geocoder = g
	}
}

// WithVersion sets the version reported by /health.
func WithVersion(version string) ServerOption {
	return func(s *Server) {
		s.version = version
	}
}

// WithClock overrides time.Now for view derivation.
func WithClock(now func() time.Time) ServerOption {
	return func(s *Server) {
		s.now = now
	}
}

// New builds a server around sess. Nothing listens until Run.
func New(settings *conf.Settings, sess *session.Session, opts ...ServerOption) (*Server, error) {
	return NewWithConfig(ConfigFromSettings(settings), sess, opts...)
}

// NewWithConfig is New with an explicit Config.
func NewWithConfig(config *Config, sess *session.Session, opts ...ServerOption) (*Server, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}
	if sess == nil {
		return nil, fmt.Errorf("session is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:    config,
		log:       GetLogger(),
		session:   sess,
		now:       time.Now,
		startTime: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	if s.metrics != nil {
		s.echo.Use(mw.NewMetrics(s.metrics.HTTP))
	}
	s.echo.Use(mw.NewRequestLoggerWithSkipper(s.log, func(c echo.Context) bool {
		// pollers hit these constantly
		return c.Path() == "/api/v1/session" || c.Path() == "/metrics"
	}))

	s.echo.Use(mw.NewCORS(s.config.AllowedOrigins))
	s.echo.Use(mw.NewBodyLimit(s.config.BodyLimit()))
	s.echo.Use(mw.NewSecureHeaders())
}

func (s *Server) setupRoutes() {
	g := s.echo.Group("/api/v1")
	g.GET("/health", s.healthCheck)

	sg := g.Group("/session")
	sg.GET("", s.GetSession)
	sg.GET("/events", s.StreamSession)
	sg.POST("/record", s.StartRecording)
	sg.POST("/stop", s.StopRecording)
	sg.POST("/upload", s.UploadAudio)
	sg.POST("/cancel", s.CancelSession)

	hg := g.Group("/history")
	hg.GET("", s.ListHistory)
	hg.GET("/stats", s.HistoryStats)
	hg.GET("/:id", s.GetHistoryEntry)
	hg.DELETE("/:id", s.DeleteHistoryEntry)

	if s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}
}

func (s *Server) healthCheck(c echo.Context) error {
	uptime := time.Since(s.startTime)
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "healthy",
		"version":        s.version,
		"phase":          s.session.Snapshot().Phase,
		"history":        s.history != nil,
		"uptime":         uptime.String(),
		"uptime_seconds": uptime.Seconds(),
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Address(), err)
	}
	return s.Serve(ctx, listener)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.echo.Listener = listener
	s.log.Info("HTTP server starting", logger.String("address", listener.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start("")
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	if err := s.Shutdown(); err != nil {
		return err
	}
	<-errCh
	return nil
}

// Shutdown stops event streams and the HTTP server.
func (s *Server) Shutdown() error {
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	err := s.echo.Shutdown(ctx)
	s.wg.Wait()
	if err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.log.Info("HTTP server stopped")
	return nil
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
