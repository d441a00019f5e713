// Package api serves dashboard results over JSON HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/rewired-gh/polyfolio/internal/dashboard"
	"github.com/rewired-gh/polyfolio/internal/logger"
	"github.com/rewired-gh/polyfolio/internal/storage"
)

// DashboardService runs query cycles
type DashboardService interface {
	Compute(ctx context.Context, params dashboard.QueryParameters) (*dashboard.Result, error)
}

// ResultStore exposes the results of background refreshes
type ResultStore interface {
	Latest() (storage.Entry[*dashboard.Result], bool)
	History() []storage.Entry[*dashboard.Result]
}

// Server represents the HTTP API server.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	service    DashboardService
	store      ResultStore
	config     *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Query defaults for requests that omit them
	DefaultWallets  []string
	DefaultHours    int
	StrictAddresses bool
}

// NewServer creates a new API server instance.
func NewServer(config *ServerConfig, service DashboardService, store ResultStore) *Server {
	s := &Server{
		router:  mux.NewRouter(),
		service: service,
		store:   store,
		config:  config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet, http.MethodOptions)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/dashboard", s.handleDashboard).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/dashboard/latest", s.handleLatest).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/dashboard/history", s.handleHistory).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet, http.MethodOptions)
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "polyfolio",
	})
}

// Start starts the HTTP server. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	logger.Info("Starting API server on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("Shutting down API server...")
	if s.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()
	}
	return s.httpServer.Shutdown(ctx)
}
