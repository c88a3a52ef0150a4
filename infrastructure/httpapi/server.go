// Package httpapi exposes the Clarvoy services over HTTP with echo.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/clarvoy/clarvoy/internal/application"
	"github.com/clarvoy/clarvoy/internal/logging"
	"github.com/clarvoy/clarvoy/internal/ports"
)

// Services bundles the application services the API serves.
type Services struct {
	Decisions   *application.DecisionService
	Judgments   *application.JudgmentService
	Noise       *application.NoiseService
	Comments    *application.CommentService
	Attachments *application.AttachmentService
	Coaching    *application.CoachingService
	Audit       *application.AuditService
	Analytics   *application.AnalyticsService
}

func (s Services) validate() error {
	if s.Decisions == nil || s.Judgments == nil || s.Noise == nil || s.Comments == nil ||
		s.Attachments == nil || s.Coaching == nil || s.Audit == nil || s.Analytics == nil {
		return errors.New("every service is required")
	}
	return nil
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the server. Every field is optional.
type Options struct {
	Logger *zap.Logger
	// Metrics receives request counts and latencies.
	Metrics ports.MetricsCollector
	// MetricsHandler is mounted at MetricsPath when set.
	MetricsHandler http.Handler
	MetricsPath    string
	// BodyLimit caps request bodies, e.g. "2M".
	BodyLimit string
	// Health is pinged by GET /health.
	Health Pinger
}

// Server serves the Clarvoy API.
type Server struct {
	echo     *echo.Echo
	services Services
	logger   *zap.Logger
	metrics  ports.MetricsCollector
	health   Pinger
}

// NewServer builds the echo instance and registers every route.
func NewServer(services Services, opts Options) (*Server, error) {
	if err := services.validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:     e,
		services: services,
		logger:   logger,
		metrics:  opts.Metrics,
		health:   opts.Health,
	}
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
		},
	}))
	e.Use(s.requestLogger)
	if s.metrics != nil {
		e.Use(s.requestMetrics)
	}
	if opts.BodyLimit != "" {
		e.Use(middleware.BodyLimit(opts.BodyLimit))
	}

	s.registerRoutes(opts)
	return s, nil
}

func (s *Server) registerRoutes(opts Options) {
	s.echo.GET("/health", s.handleHealth)
	if opts.MetricsHandler != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.echo.GET(path, echo.WrapHandler(opts.MetricsHandler))
	}

	api := s.echo.Group("/api")
	auth := requireUser

	api.GET("/decisions", s.listDecisions)
	api.GET("/decisions/:id", s.getDecision)
	api.POST("/decisions", s.createDecision, auth)
	api.PUT("/decisions/:id", s.updateDecision, auth)
	api.DELETE("/decisions/:id", s.deleteDecision, auth)

	api.POST("/decisions/:id/judgments", s.submitJudgment, auth)
	api.GET("/decisions/:id/judgments", s.listJudgments, auth)
	api.GET("/decisions/:id/variance", s.variance)

	api.POST("/decisions/:id/comments", s.postComment, auth)
	api.GET("/decisions/:id/comments", s.listComments)

	api.POST("/decisions/:id/attachments", s.addAttachment, auth)
	api.GET("/decisions/:id/attachments", s.listAttachments, auth)
	api.GET("/attachments/:id/text", s.attachmentText, auth)
	api.DELETE("/attachments/:id", s.deleteAttachment, auth)

	api.GET("/coaching/providers", s.coachingProviders)
	api.POST("/coaching/chat", s.coachingChat, auth)

	admin := api.Group("/admin", auth)
	admin.GET("/audit-logs", s.auditLogs)
	admin.GET("/noise", s.noiseByCategory)
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on addr until Shutdown. It returns nil after a clean
// shutdown.
func (s *Server) Start(addr string, readTimeout, writeTimeout time.Duration) error {
	s.echo.Server.ReadTimeout = readTimeout
	s.echo.Server.WriteTimeout = writeTimeout
	s.logger.Info("starting http server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

func (s *Server) handleHealth(c echo.Context) error {
	if s.health != nil {
		if err := s.health.Ping(c.Request().Context()); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			return c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "unavailable"})
		}
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}
