// Package httpapi exposes the daemon's HTTP surface: health and metrics,
// the chat webhook ingress, and a small operator API.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/reportd/internal/dispatch"
	"github.com/fyrsmithlabs/reportd/internal/report"
	"github.com/fyrsmithlabs/reportd/internal/store"
	"github.com/fyrsmithlabs/reportd/internal/vacation"
)

// Publisher forwards chat events onto the internal bus.
type Publisher interface {
	PublishMessage(msg report.InboundMessage) error
	PublishRecall(ev report.RecallEvent) error
}

// Config holds the HTTP listener settings.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
}

// Server is the reportd HTTP server.
type Server struct {
	cfg         Config
	echo        *echo.Echo
	publisher   Publisher
	coordinator *dispatch.Coordinator
	store       *store.Store
	vacations   *vacation.Store
	logger      *zap.Logger
}

// New assembles the server and registers all routes.
func New(cfg Config, pub Publisher, c *dispatch.Coordinator, st *store.Store, v *vacation.Store, logger *zap.Logger) (*Server, error) {
	if pub == nil {
		return nil, errors.New("publisher is required")
	}
	if c == nil {
		return nil, errors.New("coordinator is required")
	}
	if st == nil {
		return nil, errors.New("store is required")
	}
	if v == nil {
		return nil, errors.New("vacation store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	s := &Server{
		cfg:         cfg,
		echo:        e,
		publisher:   pub,
		coordinator: c,
		store:       st,
		vacations:   v,
		logger:      logger,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	s.echo.POST("/webhook/message", s.handleWebhookMessage)
	s.echo.POST("/webhook/recall", s.handleWebhookRecall)

	api := s.echo.Group("/api/v1")
	api.POST("/summary", s.handleSummary)
	api.GET("/reports/:date", s.handleReports)
	api.GET("/vacations/:date", s.handleVacationList)
	api.POST("/vacations", s.handleVacationSet)
	api.DELETE("/vacations", s.handleVacationCancel)
}

// Start runs the listener until ctx is cancelled, then shuts down
// gracefully. Returns http.ErrServerClosed on clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return http.ErrServerClosed
	}
}

// Echo exposes the router for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
