// Package api serves the daemon's HTTP API: agenda views, cancellation and
// Prometheus metrics.
package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/alan/citascrit-cli/internal/app"
	"github.com/alan/citascrit-cli/internal/metrics"
	"github.com/alan/citascrit-cli/internal/reminders"
)

// PendingLister reports the alarms currently armed.
// *reminders.TimerScheduler implements it.
type PendingLister interface {
	Pending() []reminders.Alarm
}

// Server handles the HTTP API
type Server struct {
	app       *fiber.App
	svc       *app.App
	pending   PendingLister
	metrics   *metrics.Metrics
	jwtSecret []byte
	logger    *zap.Logger
}

// New creates a new API server. Routes that change the agenda need a bearer
// token signed with the configured secret and are disabled without one.
func New(svc *app.App, pending PendingLister, m *metrics.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	fa := fiber.New(fiber.Config{
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		IdleTimeout:           120 * time.Second,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})

	s := &Server{
		app:       fa,
		svc:       svc,
		pending:   pending,
		metrics:   m,
		jwtSecret: []byte(svc.Config.Server.JWTSecret),
		logger:    logger,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.app.Use(recover.New())
	s.app.Use(s.requestLogger())

	s.app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))

	api := s.app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Get("/agenda", s.handleAgenda)
	api.Get("/status", s.handleStatus)
	api.Get("/alarms", s.handleAlarms)

	auth := s.authMiddleware()
	api.Post("/appointments/:number/cancel", auth, s.handleCancel)
	api.Delete("/alarms/log", auth, s.handleClearAlarmLog)
}

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown stops the server, waiting for in-flight requests.
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(5 * time.Second)
}
