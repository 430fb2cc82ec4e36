// Package http provides the HTTP gateway in front of the memory engine.
//
// The gateway owns request validation, defaulting, response reshaping,
// and error translation. It performs no retrieval, extraction, or
// storage itself; every data operation is a single engine call.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Omkar399/project-z/internal/memory"
)

// ServiceName and Version identify the service in the liveness response.
const (
	ServiceName = "ProjectZ Memory Service"
	Version     = "1.0.0"
)

const defaultUserID = "default_user"

// defaultSearchLimit applies when a search request omits limit.
const defaultSearchLimit = 5

// Server provides the HTTP API over a memory engine.
//
// The engine handle is set exactly once at construction and never
// replaced. When initialization failed, engine is nil and initErr
// records why; every data operation then short-circuits with 503
// until the process restarts.
type Server struct {
	echo    *echo.Echo
	engine  memory.Engine
	initErr error
	logger  *zap.Logger
	config  *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer creates a new HTTP server.
//
// Exactly one of engine and initErr must be set: a working engine, or
// the error explaining why none could be constructed. The second form
// still serves traffic so that the liveness and health endpoints can
// report the failure.
func NewServer(engine memory.Engine, initErr error, logger *zap.Logger, cfg *Config) (*Server, error) {
	if engine == nil && initErr == nil {
		return nil, fmt.Errorf("either engine or initErr must be provided")
	}
	if engine != nil && initErr != nil {
		return nil, fmt.Errorf("engine and initErr are mutually exclusive")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "0.0.0.0",
			Port: 8420,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
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
	e.Use(NewHTTPMetrics(logger).MetricsMiddleware())

	s := &Server{
		echo:    e,
		engine:  engine,
		initErr: initErr,
		logger:  logger,
		config:  cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleRoot)
	s.echo.GET("/health", s.handleHealth)
	s.echo.POST("/add", s.handleAdd)
	s.echo.POST("/search", s.handleSearch)
	s.echo.GET("/all", s.handleAll)
	s.echo.DELETE("/clear", s.handleClear)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// requireEngine gates data operations on initialization state. The
// engine is never invoked when unavailable.
func (s *Server) requireEngine() error {
	if s.engine == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "memory engine not initialized")
	}
	return nil
}

// handleRoot reports service identity without touching the engine.
func (s *Server) handleRoot(c echo.Context) error {
	status := "running"
	if s.engine == nil {
		status = "error"
	}
	return c.JSON(http.StatusOK, RootResponse{
		Service: ServiceName,
		Status:  status,
		Version: Version,
	})
}

// handleHealth is a readiness gate on initialization state, not a
// live ping to the engine.
func (s *Server) handleHealth(c echo.Context) error {
	if err := s.requireEngine(); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, HealthResponse{Status: "healthy"})
}

// handleAdd forwards a conversation to the engine for fact extraction
// and storage.
func (s *Server) handleAdd(c echo.Context) error {
	if err := s.requireEngine(); err != nil {
		return err
	}

	var req AddRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid add request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" {
		req.UserID = defaultUserID
	}
	if req.Metadata == nil {
		req.Metadata = map[string]any{}
	}

	// Messages are forwarded in request order; the engine reads
	// earlier turns as context for later ones.
	result, err := s.engine.Add(c.Request().Context(), req.Messages, req.UserID, req.Metadata)
	if err != nil {
		s.logger.Error("add failed", zap.String("user_id", req.UserID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, AddResponse{
		Success: true,
		Result:  result,
		Message: "Memories extracted and stored",
	})
}

// handleSearch performs a semantic search over the user's memories.
func (s *Server) handleSearch(c echo.Context) error {
	if err := s.requireEngine(); err != nil {
		return err
	}

	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid search request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.UserID == "" {
		req.UserID = defaultUserID
	}
	if req.Limit == 0 {
		req.Limit = defaultSearchLimit
	}

	result, err := s.engine.Search(c.Request().Context(), req.Query, req.UserID, req.Limit)
	if err != nil {
		s.logger.Error("search failed", zap.String("user_id", req.UserID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	memories := normalizeResults(result, true)
	return c.JSON(http.StatusOK, MemoriesResponse{
		Success:  true,
		Count:    len(memories),
		Memories: memories,
	})
}

// handleAll lists every memory stored for a user.
func (s *Server) handleAll(c echo.Context) error {
	if err := s.requireEngine(); err != nil {
		return err
	}

	userID := c.QueryParam("user_id")
	if userID == "" {
		userID = defaultUserID
	}

	result, err := s.engine.GetAll(c.Request().Context(), userID)
	if err != nil {
		s.logger.Error("list failed", zap.String("user_id", userID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	// List results carry no score; omit the field rather than
	// serializing a meaningless zero.
	memories := normalizeResults(result, false)
	return c.JSON(http.StatusOK, MemoriesResponse{
		Success:  true,
		Count:    len(memories),
		Memories: memories,
	})
}

// handleClear deletes every memory stored for a user.
func (s *Server) handleClear(c echo.Context) error {
	if err := s.requireEngine(); err != nil {
		return err
	}

	userID := c.QueryParam("user_id")
	if userID == "" {
		userID = defaultUserID
	}

	if err := s.engine.DeleteAll(c.Request().Context(), userID); err != nil {
		s.logger.Error("clear failed", zap.String("user_id", userID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, ClearResponse{
		Success: true,
		Message: "All memories cleared",
	})
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
