// Package api serves the REST endpoints and the /ws market push.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"tierwatch/internal/assistant"
	"tierwatch/internal/config"
	"tierwatch/internal/database"
	"tierwatch/internal/market"
	"tierwatch/internal/metrics"
	"tierwatch/internal/model"
)

// Analyzer runs and stores one opportunity analysis.
type Analyzer interface {
	Run(ctx context.Context) ([]model.TradingOpportunity, error)
}

// Refresher runs one market ingestion cycle.
type Refresher interface {
	Refresh(ctx context.Context) (market.Result, error)
}

// Assistant answers free-form questions.
type Assistant interface {
	Analyze(ctx context.Context, query string, mc assistant.Context) assistant.Reply
}

// MarketCache holds the latest published snapshot.
type MarketCache interface {
	PutMarketUpdate(ctx context.Context, payload any) error
	PutMarketStats(ctx context.Context, stats model.MarketStats) error
	MarketStats(ctx context.Context) (model.MarketStats, error)
}

// Deps are the collaborators the server reads from and drives. Refresher,
// Assistant and Cache are optional.
type Deps struct {
	Repo      database.Repository
	Analyzer  Analyzer
	Refresher Refresher
	Assistant Assistant
	Cache     MarketCache
}

// Server represents the HTTP and WebSocket server.
type Server struct {
	logger *slog.Logger
	cfg    *config.ServerConfig
	deps   Deps
	router *mux.Router
	hub    *Hub
}

// NewServer creates a new Server and registers its routes.
func NewServer(logger *slog.Logger, cfg *config.ServerConfig, deps Deps) *Server {
	s := &Server{
		logger: logger,
		cfg:    cfg,
		deps:   deps,
		router: mux.NewRouter(),
	}
	s.hub = NewHub(logger, s.marketUpdate, cfg.PushInterval)
	s.setupRoutes()
	return s
}

// Handler exposes the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.requestLoggingMiddleware)

	s.router.HandleFunc("/ws", s.hub.ServeWS).Methods(http.MethodGet)
	s.router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := s.router.PathPrefix("/").Subrouter()
	api.Use(jsonContentTypeMiddleware)

	api.HandleFunc("/health", s.health).Methods(http.MethodGet)
	api.HandleFunc("/api/cryptocurrencies", s.listTokens).Methods(http.MethodGet)
	api.HandleFunc("/api/cryptocurrencies/{tier}", s.listTokensByTier).Methods(http.MethodGet)
	api.HandleFunc("/api/cryptocurrencies/{symbol}/history", s.priceHistory).Methods(http.MethodGet)
	api.HandleFunc("/api/opportunities", s.listOpportunities).Methods(http.MethodGet)
	api.HandleFunc("/api/opportunities/analyze", s.analyze).Methods(http.MethodPost)
	api.HandleFunc("/api/correlations", s.listCorrelations).Methods(http.MethodGet)
	api.HandleFunc("/api/market/refresh", s.refresh).Methods(http.MethodPost)
	api.HandleFunc("/api/market/stats", s.marketStats).Methods(http.MethodGet)
	api.HandleFunc("/api/assistant/query", s.assistantQuery).Methods(http.MethodPost)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
}

// Start serves on cfg.Addr and runs the push hub until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	go s.hub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		s.logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Publish pushes a fresh snapshot to every websocket client and the cache.
func (s *Server) Publish(ctx context.Context) {
	update, err := s.marketUpdate(ctx)
	if err != nil {
		s.logger.Error("Failed to build market update", "error", err)
		return
	}
	s.hub.Broadcast(update)

	if s.deps.Cache == nil {
		return
	}
	if err := s.deps.Cache.PutMarketUpdate(ctx, update); err != nil {
		s.logger.Warn("Failed to cache market update", "error", err)
	}
	st, err := s.computeStats(ctx)
	if err != nil {
		s.logger.Warn("Failed to compute market stats for cache", "error", err)
		return
	}
	if err := s.deps.Cache.PutMarketStats(ctx, st); err != nil {
		s.logger.Warn("Failed to cache market stats", "error", err)
	}
}
