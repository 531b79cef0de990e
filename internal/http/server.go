// Package http exposes the suggestion engine and feedback loop over HTTP.
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

	"github.com/fyrsmithlabs/troubleshootd/internal/feedback"
	"github.com/fyrsmithlabs/troubleshootd/internal/logging"
	"github.com/fyrsmithlabs/troubleshootd/internal/support"
)

// HeaderActorID optionally names the user submitting feedback.
const HeaderActorID = "X-Actor-ID"

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// FeedbackRate is submissions per second per client; zero disables
	// throttling.
	FeedbackRate  float64
	FeedbackBurst int
}

// Deps are the services the server routes to. Articles and Health are
// optional.
type Deps struct {
	Suggestions Suggester
	Feedback    FeedbackService
	Articles    ArticleStore
	Health      Pinger
}

// Server provides HTTP endpoints for troubleshootd.
type Server struct {
	echo    *echo.Echo
	deps    Deps
	logger  *logging.Logger
	config  *Config
	limiter *clientLimiter
}

// NewServer creates a new HTTP server.
func NewServer(deps Deps, logger *logging.Logger, cfg *Config) (*Server, error) {
	if deps.Suggestions == nil {
		return nil, fmt.Errorf("suggestion service is required")
	}
	if deps.Feedback == nil {
		return nil, fmt.Errorf("feedback service is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{Host: "localhost", Port: 9191}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:    e,
		deps:    deps,
		logger:  logger,
		config:  cfg,
		limiter: newClientLimiter(cfg.FeedbackRate, cfg.FeedbackBurst),
	}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(NewHTTPMetrics(logger.Underlying()).Middleware())
	e.Use(s.requestLogger)

	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.GET("/errors/:id/suggestions", s.handleSuggestions)
	v1.POST("/feedback", s.handleFeedback)
	v1.GET("/weights", s.handleWeights)
	if s.deps.Articles != nil {
		v1.GET("/articles/:id", s.handleArticle)
	}
}

// requestLogger puts the request id into the request context and logs each
// request once it completes.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		req := c.Request()
		ctx := logging.WithRequestID(req.Context(), c.Response().Header().Get(echo.HeaderXRequestID))
		c.SetRequest(req.WithContext(ctx))

		err := next(c)

		s.logger.Info(ctx, "http request",
			zap.String("method", req.Method),
			zap.String("route", c.Path()),
			zap.Int("status", c.Response().Status),
			zap.Duration("duration", time.Since(start)),
		)
		return err
	}
}

func (s *Server) handleHealth(c echo.Context) error {
	if s.deps.Health != nil {
		if err := s.deps.Health.Ping(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Error: "storage unreachable"})
		}
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleSuggestions(c echo.Context) error {
	errorID := strings.TrimSpace(c.Param("id"))
	ctx := logging.WithErrorID(c.Request().Context(), errorID)

	res, err := s.deps.Suggestions.GetSuggestions(ctx, errorID)
	if err != nil {
		return s.fail(ctx, c, err)
	}
	if res.Partial {
		s.logger.Warn(ctx, "partial suggestions served", zap.Strings("failed_tiers", res.FailedTiers))
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleFeedback(c echo.Context) error {
	ctx := c.Request().Context()
	if !s.limiter.Allow(c.RealIP()) {
		return c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many feedback submissions"})
	}

	var req feedback.SubmitRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn(ctx, "invalid feedback request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
	}
	if req.ActorID == "" {
		req.ActorID = c.Request().Header.Get(HeaderActorID)
	}
	ctx = logging.WithActorID(logging.WithErrorID(ctx, req.ErrorID), req.ActorID)

	ack, err := s.deps.Feedback.Submit(ctx, req)
	if err != nil {
		return s.fail(ctx, c, err)
	}
	return c.JSON(http.StatusCreated, ack)
}

func (s *Server) handleWeights(c echo.Context) error {
	ctx := c.Request().Context()
	weights, err := s.deps.Feedback.Weights(ctx)
	if err != nil {
		return s.fail(ctx, c, err)
	}
	if weights == nil {
		weights = []support.Weight{}
	}
	return c.JSON(http.StatusOK, WeightsResponse{Weights: weights})
}

func (s *Server) handleArticle(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	article, err := s.deps.Articles.GetArticle(ctx, id)
	if err != nil {
		return s.fail(ctx, c, err)
	}
	if err := s.deps.Articles.IncrementArticleView(ctx, id); err != nil {
		s.logger.Warn(ctx, "failed to count article view", zap.String("article_id", id), zap.Error(err))
	} else {
		article.ViewCount++
	}
	return c.JSON(http.StatusOK, article)
}

// fail maps domain errors onto status codes.
func (s *Server) fail(ctx context.Context, c echo.Context, err error) error {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		s.logger.Error(ctx, "request failed", zap.String("route", c.Path()), zap.Error(err))
		msg = http.StatusText(status)
	}
	return c.JSON(status, ErrorResponse{Error: msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, support.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, support.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Echo exposes the router for extra routes.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Start serves until Shutdown; it returns http.ErrServerClosed on a clean stop.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info(context.Background(), "starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "shutting down http server")
	return s.echo.Shutdown(ctx)
}
