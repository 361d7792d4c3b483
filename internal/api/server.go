// Package api exposes the regime engine over a JSON HTTP API.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/newthinker/memcycle/internal/config"
	"github.com/newthinker/memcycle/internal/metrics"
	"github.com/newthinker/memcycle/internal/storage/table"
)

// Server is the HTTP server for the regime engine.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux

	cfg     *config.Config
	store   *table.Store
	metrics *metrics.Registry
}

// NewServer creates an HTTP server wired to the observation store.
func NewServer(cfg *config.Config, store *table.Store, reg *metrics.Registry, logger *zap.Logger) *Server {
	mux := http.NewServeMux()

	var handler http.Handler = mux
	if cfg.Metrics.Enabled {
		handler = metrics.HTTPMiddleware(reg)(mux)
	}

	s := &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:      handler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger:  logger,
		mux:     mux,
		cfg:     cfg,
		store:   store,
		metrics: reg,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("GET /api/regime", s.handleRegime)
	s.mux.HandleFunc("GET /api/regime/history", s.handleRegimeHistory)
	s.mux.HandleFunc("GET /api/predictions", s.handlePredictions)
	s.mux.HandleFunc("GET /api/transitions", s.handleTransitions)
	s.mux.HandleFunc("GET /api/signal", s.handleSignal)
	s.mux.HandleFunc("POST /api/forecast", s.handleForecast)
	s.mux.HandleFunc("POST /api/backtest", s.handleBacktest)
	s.mux.HandleFunc("POST /api/observations", s.handleUpsertObservation)
	s.mux.HandleFunc("GET /api/observations", s.handleListObservations)

	if s.cfg.Metrics.Enabled {
		s.mux.Handle("GET "+s.cfg.Metrics.Path,
			promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	}
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
