// Package http provides the HTTP API for finbotd.
package http

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

	"github.com/fyrsmithlabs/finbotd/internal/config"
	"github.com/fyrsmithlabs/finbotd/internal/extract"
	"github.com/fyrsmithlabs/finbotd/internal/provider"
	"github.com/fyrsmithlabs/finbotd/internal/rag"
	"github.com/fyrsmithlabs/finbotd/internal/session"
)

// HeaderSessionID carries the session identifier on requests and responses.
const HeaderSessionID = "X-Session-ID"

// Server exposes the RAG pipeline over HTTP.
type Server struct {
	echo   *echo.Echo
	svc    *rag.Service
	logger *zap.Logger
	config *config.Config
}

// NewServer creates the HTTP server with routes and middleware registered.
func NewServer(svc *rag.Service, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("rag service cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:   e,
		svc:    svc,
		logger: logger,
		config: cfg,
	}
	e.HTTPErrorHandler = s.errorHandler
	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	api := s.echo.Group("/api")
	api.POST("/query", s.handleQuery)
	api.POST("/documents/upload", s.handleUpload)
	api.POST("/documents/add-url", s.handleAddURL)
	api.GET("/documents", s.handleDocuments)
	api.GET("/health", s.handleHealth)

	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// errorHandler renders every error as {"detail": string} with the status
// implied by the error kind.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	detail := "internal server error"

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		code = httpErr.Code
		detail = fmt.Sprintf("%v", httpErr.Message)
	} else {
		code = statusFor(err)
		detail = err.Error()
		if code == http.StatusInternalServerError {
			// Internal details stay in the log, not the response.
			s.logger.Error("request failed", zap.Error(err))
			detail = "internal server error"
		}
	}

	if jsonErr := c.JSON(code, ErrorResponse{Detail: detail}); jsonErr != nil {
		s.logger.Error("writing error response", zap.Error(jsonErr))
	}
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, rag.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, extract.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, extract.ErrEmptyContent):
		return http.StatusUnprocessableEntity
	case errors.Is(err, extract.ErrFetchFailed):
		return http.StatusBadGateway
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, provider.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, provider.ErrQuota):
		return http.StatusTooManyRequests
	case errors.Is(err, provider.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routing tree for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
