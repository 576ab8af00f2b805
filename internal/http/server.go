// Package http provides the HTTP API for ragd: question answering, document
// ingestion, and status reporting.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragd/internal/engine"
	"github.com/fyrsmithlabs/ragd/internal/repository"
)

// Answerer is the answering surface the API exposes. Satisfied by
// *engine.Engine.
type Answerer interface {
	Answer(ctx context.Context, question string) string
	SystemInfo(ctx context.Context) engine.SystemInfo
}

// DocumentAdder ingests one document. Satisfied by *repository.Repository.
type DocumentAdder interface {
	AddDocument(ctx context.Context, id, content string) error
}

var (
	_ Answerer      = (*engine.Engine)(nil)
	_ DocumentAdder = (*repository.Repository)(nil)
)

// Config holds HTTP server configuration.
type Config struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
}

// Server serves the ragd HTTP API.
type Server struct {
	echo      *echo.Echo
	answerer  Answerer
	documents DocumentAdder
	logger    *zap.Logger
	config    *Config
}

// NewServer creates the HTTP server with recovery, request-ID, request
// logging, and metrics middleware installed.
func NewServer(answerer Answerer, documents DocumentAdder, logger *zap.Logger, cfg *Config) (*Server, error) {
	if answerer == nil {
		return nil, fmt.Errorf("answerer cannot be nil")
	}
	if documents == nil {
		return nil, fmt.Errorf("document adder cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
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
	e.Use(NewHTTPMetrics(logger).Middleware())

	s := &Server{
		echo:      e,
		answerer:  answerer,
		documents: documents,
		logger:    logger,
		config:    cfg,
	}

	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/status", s.handleStatus)
	v1.POST("/ask", s.handleAsk)
	v1.POST("/documents", s.handleAddDocument)
}

// AskRequest is the request body for POST /api/v1/ask.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse is the response body for POST /api/v1/ask.
type AskResponse struct {
	Answer string `json:"answer"`
}

// AddDocumentRequest is the request body for POST /api/v1/documents.
type AddDocumentRequest struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// AddDocumentResponse is the response body for POST /api/v1/documents.
type AddDocumentResponse struct {
	ID string `json:"id"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Service: "ragd"})
}

func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.answerer.SystemInfo(c.Request().Context()))
}

func (s *Server) handleAsk(c echo.Context) error {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid ask request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if strings.TrimSpace(req.Question) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question field is required")
	}

	answer := s.answerer.Answer(c.Request().Context(), req.Question)

	return c.JSON(http.StatusOK, AskResponse{Answer: answer})
}

func (s *Server) handleAddDocument(c echo.Context) error {
	var req AddDocumentRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid document request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if req.ID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "id field is required")
	}
	if req.Content == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "content field is required")
	}

	if err := s.documents.AddDocument(c.Request().Context(), req.ID, req.Content); err != nil {
		s.logger.Error("document ingestion failed",
			zap.String("id", req.ID),
			zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "document ingestion failed")
	}

	return c.JSON(http.StatusCreated, AddDocumentResponse{ID: req.ID})
}

// Start runs the server and blocks until ctx is cancelled, then performs a
// graceful shutdown bounded by the configured timeout. Returns
// http.ErrServerClosed after a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))

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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		s.logger.Info("shutting down http server")
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return http.ErrServerClosed
	}
}
