// Package server provides the HTTP server implementation.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/tasklist/internal/auth"
	"github.com/vyrodovalexey/tasklist/internal/config"
	"github.com/vyrodovalexey/tasklist/internal/events"
	"github.com/vyrodovalexey/tasklist/internal/handler"
	"github.com/vyrodovalexey/tasklist/internal/middleware"
	"github.com/vyrodovalexey/tasklist/internal/store"
)

// Server represents the HTTP server.
type Server struct {
	httpServer    *http.Server
	router        *mux.Router
	config        *config.Config
	logger        *zap.Logger
	bus           *events.Bus
	authenticator auth.Authenticator
	wsHandler     *handler.WebSocketHandler
	stopCounting  func()
}

// New creates a new Server instance. A nil authenticator disables
// authentication and every caller acts as the anonymous owner.
func New(
	cfg *config.Config,
	logger *zap.Logger,
	itemStore store.Store,
	authenticator auth.Authenticator,
	bus *events.Bus,
) *Server {
	if bus == nil {
		bus = events.NewBus(logger)
	}

	s := &Server{
		router:        mux.NewRouter(),
		config:        cfg,
		logger:        logger,
		bus:           bus,
		authenticator: authenticator,
	}

	s.setupMiddleware()
	s.setupRoutes(itemStore)
	s.setupHTTPServer()

	return s
}

// setupMiddleware configures the middleware chain. Middleware added with
// Use runs after route matching, so every layer sees the route name.
func (s *Server) setupMiddleware() {
	// first applied = outermost
	s.router.Use(mux.MiddlewareFunc(middleware.Recovery(s.logger)))
	s.router.Use(mux.MiddlewareFunc(middleware.RequestID()))

	if s.config.MetricsEnabled {
		s.router.Use(mux.MiddlewareFunc(middleware.Metrics()))
	}

	s.router.Use(mux.MiddlewareFunc(middleware.Logging(s.logger, handler.QuietOperations...)))

	if s.authenticator != nil {
		s.router.Use(mux.MiddlewareFunc(middleware.Auth(s.authenticator, s.logger)))
	}
}

// setupRoutes configures the API routes.
func (s *Server) setupRoutes(itemStore store.Store) {
	restHandler := handler.NewRESTHandler(itemStore, s.bus, s.logger)
	restHandler.RegisterRoutes(s.router)

	s.wsHandler = handler.NewWebSocketHandler(s.bus, s.logger)
	s.wsHandler.RegisterRoutes(s.router)

	if s.config.MetricsEnabled {
		s.stopCounting = s.bus.Subscribe(handler.CountEvent)
		s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet).Name(handler.OpMetrics)
	}
}

// setupHTTPServer configures the HTTP server.
func (s *Server) setupHTTPServer() {
	s.httpServer = &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting server",
		zap.String("address", s.config.Address()),
		zap.Bool("metrics_enabled", s.config.MetricsEnabled),
		zap.Bool("auth_enabled", s.authenticator != nil),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	if s.wsHandler != nil {
		s.wsHandler.CloseAllConnections()
	}

	if s.stopCounting != nil {
		s.stopCounting()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Router returns the server's router for testing purposes.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Bus returns the event bus the server publishes domain events on.
func (s *Server) Bus() *events.Bus {
	return s.bus
}
