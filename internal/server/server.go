// Package server exposes the backend over HTTP: an RPC envelope endpoint
// for request/response calls and an SSE stream for subscription pushes.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sidekick-dev/sidekick/internal/clienttool"
	"github.com/sidekick-dev/sidekick/internal/event"
	"github.com/sidekick-dev/sidekick/internal/mcp"
	"github.com/sidekick-dev/sidekick/internal/provider"
	"github.com/sidekick-dev/sidekick/internal/secrets"
	"github.com/sidekick-dev/sidekick/internal/session"
	"github.com/sidekick-dev/sidekick/internal/tool"
	"github.com/sidekick-dev/sidekick/pkg/types"
)

// Config holds server configuration.
type Config struct {
	Port         int
	EnableCORS   bool
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:        8199,
		EnableCORS:  true,
		ReadTimeout: 30 * time.Second,
		// No write timeout: the SSE stream stays open indefinitely.
		WriteTimeout: 0,
	}
}

// Deps are the backend components the server fronts.
type Deps struct {
	AppConfig    *types.Config
	Sessions     *session.Service
	Orchestrator *session.Orchestrator
	Providers    *provider.Registry
	Tools        *tool.Registry
	Policy       func() *tool.Policy
	Secrets      *secrets.Keys
	MCP          *mcp.Manager
	ClientTools  *clienttool.Registry
	Bus          *event.Bus
}

// Server is the HTTP server.
type Server struct {
	config  *Config
	deps    *Deps
	router  *chi.Mux
	httpSrv *http.Server

	handlers map[string]rpcHandler

	clientsMu sync.Mutex
	clients   map[string]*sseClient
}

// New assembles the server around its dependencies.
func New(cfg *Config, deps *Deps) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := &Server{
		config:  cfg,
		deps:    deps,
		router:  chi.NewRouter(),
		clients: make(map[string]*sseClient),
	}
	s.handlers = s.buildHandlers()
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)

	if s.config.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
}

func (s *Server) setupRoutes() {
	s.router.Post("/rpc", s.handleRPC)
	s.router.Get("/events", s.handleEvents)
	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// Start starts the HTTP server and blocks.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Router returns the router, mainly for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
