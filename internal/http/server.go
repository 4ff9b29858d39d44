// Package http provides the HTTP API for paddockd.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fyrsmithlabs/paddockd/internal/answer"
	"github.com/fyrsmithlabs/paddockd/internal/ingest"
	"github.com/fyrsmithlabs/paddockd/internal/vectorstore"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Pipeline is the answer service surface the transport needs.
// Implemented by answer.Service.
type Pipeline interface {
	Submit(ctx context.Context, sessionID, query string) (*answer.Answer, error)
	Upload(ctx context.Context, sessionID, docName string, passages []vectorstore.Passage) (string, error)
	Reset(ctx context.Context, sessionID string) error
}

// Server provides HTTP endpoints for paddockd.
type Server struct {
	echo     *echo.Echo
	pipeline Pipeline
	metrics  *Metrics
	logger   *zap.Logger
	config   *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server.
func NewServer(pipeline Pipeline, metrics *Metrics, logger *zap.Logger, cfg *Config) (*Server, error) {
	if pipeline == nil {
		return nil, fmt.Errorf("pipeline cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8000,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(metrics.Middleware())
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
		echo:     e,
		pipeline: pipeline,
		metrics:  metrics,
		logger:   logger,
		config:   cfg,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/ask", s.handleAsk)
	v1.POST("/chat", s.handleChat)
	v1.POST("/upload", s.handleUpload)
	v1.POST("/reset", s.handleReset)
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: "0.1.0"})
}

// handleAsk runs the full pipeline and returns the answer with intent,
// citations, and the guardrail verdict.
func (s *Server) handleAsk(c echo.Context) error {
	req, err := bindAsk(c)
	if err != nil {
		return err
	}

	ans, err := s.pipeline.Submit(c.Request().Context(), req.SessionID, req.Query)
	if err != nil {
		s.observeFailure(err)
		return s.answerError(c, err)
	}
	s.observeAnswer(ans)

	return c.JSON(http.StatusOK, toAskResponse(ans))
}

// handleChat is the conversational endpoint: same pipeline, answer text
// only.
func (s *Server) handleChat(c echo.Context) error {
	req, err := bindAsk(c)
	if err != nil {
		return err
	}

	ans, err := s.pipeline.Submit(c.Request().Context(), req.SessionID, req.Query)
	if err != nil {
		s.observeFailure(err)
		return s.answerError(c, err)
	}
	s.observeAnswer(ans)

	return c.JSON(http.StatusOK, ChatResponse{Answer: ans.Text})
}

// handleUpload ingests a pre-chunked payload into a fresh uploaded
// collection and binds it to the session.
func (s *Server) handleUpload(c echo.Context) error {
	var req UploadRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid upload request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.SessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session_id field is required")
	}

	passages := make([]vectorstore.Passage, 0, len(req.Passages))
	for _, p := range req.Passages {
		passages = append(passages, vectorstore.Passage{
			ID:       p.ID,
			Text:     p.Text,
			Metadata: p.Metadata,
		})
	}

	collectionID, err := s.pipeline.Upload(c.Request().Context(), req.SessionID, req.Document, passages)
	if err != nil {
		return s.answerError(c, err)
	}

	return c.JSON(http.StatusOK, UploadResponse{
		CollectionID: collectionID,
		Passages:     len(passages),
	})
}

// handleReset clears the session and releases its uploaded collection.
func (s *Server) handleReset(c echo.Context) error {
	var req ResetRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid reset request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.SessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session_id field is required")
	}

	if err := s.pipeline.Reset(c.Request().Context(), req.SessionID); err != nil {
		return s.answerError(c, err)
	}

	return c.JSON(http.StatusOK, ResetResponse{Status: "reset"})
}

func bindAsk(c echo.Context) (*AskRequest, error) {
	var req AskRequest
	if err := c.Bind(&req); err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.SessionID == "" {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "session_id field is required")
	}
	if req.Query == "" {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}
	return &req, nil
}

// answerError maps the pipeline's error taxonomy to HTTP status codes.
func (s *Server) answerError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, answer.ErrInputRejected):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, answer.ErrCollectionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ingest.ErrEmptyPayload):
		status = http.StatusBadRequest
	case errors.Is(err, ingest.ErrPayloadTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, answer.ErrRetrievalUnavailable),
		errors.Is(err, answer.ErrGenerationUnavailable):
		status = http.StatusBadGateway
	}
	return c.JSON(status, ErrorResponse{Error: err.Error()})
}

func (s *Server) observeAnswer(ans *answer.Answer) {
	outcome := "answered"
	if ans.Verdict.Flagged {
		outcome = "flagged"
	}
	s.metrics.ObserveQuery(string(ans.Intent), outcome)
}

func (s *Server) observeFailure(err error) {
	outcome := "failed"
	if errors.Is(err, answer.ErrInputRejected) {
		outcome = "rejected"
	}
	s.metrics.ObserveQuery("", outcome)
}

func toAskResponse(ans *answer.Answer) AskResponse {
	citations := make([]Citation, 0, len(ans.Citations))
	for _, c := range ans.Citations {
		citations = append(citations, Citation{
			ID:     c.ID,
			Source: c.Source(),
			RuleID: c.RuleID(),
			Score:  c.Score,
		})
	}
	return AskResponse{
		Answer:     ans.Text,
		Intent:     string(ans.Intent),
		Collection: ans.Collection,
		Citations:  citations,
		Verdict: VerdictBody{
			Grounded:       ans.Verdict.Grounded,
			Score:          ans.Verdict.Score,
			CitationsValid: ans.Verdict.CitationsValid,
			Flagged:        ans.Verdict.Flagged,
			Reason:         ans.Verdict.Reason,
		},
	}
}

// Start starts the HTTP server.
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

// Handler exposes the echo engine as an http.Handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
