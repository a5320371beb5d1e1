// Package webui provides the browser front end for the image generator.
// This file contains the Server organism that wires together all web UI components.
package webui

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"text2image/metrics"

	"go.uber.org/zap"
)

// AuthProvider is implemented by auth.AuthMiddleware. The interface keeps
// this package free of an import on auth.
type AuthProvider interface {
	// Middleware wraps an http.Handler with authentication
	Middleware(next http.Handler) http.Handler
	// MiddlewareFunc wraps an http.HandlerFunc with authentication
	MiddlewareFunc(next http.HandlerFunc) http.HandlerFunc
	// LoginHandler returns a handler for the login page
	LoginHandler() http.HandlerFunc
	// LogoutHandler returns a handler for logout
	LogoutHandler() http.HandlerFunc
	// IsAuthenticated reports whether r carries a valid session
	IsAuthenticated(r *http.Request) bool
}

// Server is the HTTP server organism. It wires together:
//   - StaticAssetHandler for the embedded page
//   - AuthProvider for session-based authentication (optional)
//   - LoggingMiddleware for request logging
//   - GenerateAPI for the JSON endpoints
//   - WebSocketBroadcaster for progress updates
type Server struct {
	httpServer    *http.Server
	mux           *http.ServeMux
	config        ServerConfig
	logger        *zap.Logger
	authProvider  AuthProvider
	loggingMw     *LoggingMiddleware
	api           *GenerateAPI
	wsBroadcaster *WebSocketBroadcaster
	staticHandler *StaticAssetHandler
}

// ServerConfig configures the Server.
type ServerConfig struct {
	// Host to bind to (default: "127.0.0.1")
	Host string

	// Port to listen on (default: 8501)
	Port int

	// ReadTimeout for HTTP requests (default: 30s)
	ReadTimeout time.Duration

	// WriteTimeout for HTTP responses (default: 0, generation can be slow)
	WriteTimeout time.Duration

	// IdleTimeout for keep-alive connections (default: 120s)
	IdleTimeout time.Duration

	// ShutdownTimeout for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration

	// StaticConfig for static asset handler
	StaticConfig StaticAssetConfig

	// LogSkipPaths are paths to skip logging
	LogSkipPaths []string

	// API configures the JSON endpoints
	API GenerateAPIConfig
}

// DefaultServerConfig returns a ServerConfig serving files from outputDir.
func DefaultServerConfig(outputDir string) ServerConfig {
	return ServerConfig{
		Host:            "127.0.0.1",
		Port:            8501,
		ReadTimeout:     30 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		StaticConfig:    DefaultStaticAssetConfig(),
		LogSkipPaths:    []string{"/health"},
		API:             DefaultGenerateAPIConfig(outputDir),
	}
}

// Dependencies are the collaborators the server exposes over HTTP.
// Generator is required; the rest may be nil.
type Dependencies struct {
	Generator Generator
	Runs      RunLister
	Metrics   metrics.Collector
	GPU       *metrics.GPUCollector
	Auth      AuthProvider
}

// NewServer creates a Server with all routes registered.
func NewServer(config ServerConfig, deps Dependencies, logger *zap.Logger) (*Server, error) {
	if deps.Generator == nil {
		return nil, errors.New("webui: generator cannot be nil")
	}
	if config.API.OutputDir == "" {
		return nil, errors.New("webui: output directory cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		mux:           http.NewServeMux(),
		config:        config,
		logger:        logger,
		authProvider:  deps.Auth,
		staticHandler: NewStaticAssetHandler(config.StaticConfig),
		loggingMw: NewLoggingMiddlewareWithConfig(LoggingMiddlewareConfig{
			Logger:    logger.Named("http"),
			SkipPaths: config.LogSkipPaths,
		}),
	}

	config.API.AuthEnabled = deps.Auth != nil
	var api *GenerateAPI
	s.wsBroadcaster = NewWebSocketBroadcasterWithConfig(BroadcasterConfig{
		Logger:       logger.Named("ws"),
		InitialState: func() WSMessage { return api.InitialState() },
	})
	api = NewGenerateAPI(deps.Generator, deps.Runs, deps.Metrics, deps.GPU, s.wsBroadcaster, logger.Named("api"), config.API)
	s.api = api

	s.setupRoutes()

	addr := net.JoinHostPort(config.Host, fmt.Sprint(config.Port))
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.loggingMw.Handler(s.mux),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	logger.Info("web server created",
		zap.String("addr", addr),
		zap.Bool("auth_enabled", deps.Auth != nil),
	)
	return s, nil
}

func (s *Server) setupRoutes() {
	// No auth on health.
	s.mux.HandleFunc("/health", s.handleHealth)

	s.staticHandler.RegisterRoutes(s.mux)
	s.api.RegisterRoutes(s.mux, s.ProtectHandlerFunc)
	s.mux.HandleFunc("/ws", s.ProtectHandlerFunc(s.wsBroadcaster.HandleConnection))

	if s.authProvider != nil {
		s.mux.HandleFunc("/login", s.authProvider.LoginHandler())
		s.mux.HandleFunc("/logout", s.authProvider.LogoutHandler())
	}

	s.mux.HandleFunc("/", s.handleRoot)
}

// handleRoot serves the generator page; unauthenticated visitors are
// sent to the login page.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if s.authProvider != nil && !s.authProvider.IsAuthenticated(r) {
		http.Redirect(w, r, "/login", http.StatusTemporaryRedirect)
		return
	}
	s.staticHandler.ServeIndex()(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// Handler returns the root handler, including middleware.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start runs the broadcaster and serves HTTP until Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	go s.wsBroadcaster.Start(ctx)

	s.logger.Info("web server starting", zap.String("addr", s.httpServer.Addr))

	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, waiting at most ShutdownTimeout
// for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down web server")

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown error: %w", err)
	}
	s.wsBroadcaster.Close()

	s.logger.Info("web server stopped")
	return nil
}

// Broadcaster returns the WebSocket broadcaster.
func (s *Server) Broadcaster() *WebSocketBroadcaster {
	return s.wsBroadcaster
}

// API returns the JSON API.
func (s *Server) API() *GenerateAPI {
	return s.api
}

// Addr returns the server's address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// ProtectHandlerFunc wraps a handler function with auth middleware if enabled.
func (s *Server) ProtectHandlerFunc(handler http.HandlerFunc) http.HandlerFunc {
	if s.authProvider != nil {
		return s.authProvider.MiddlewareFunc(handler)
	}
	return handler
}

// HasAuth returns whether authentication is enabled.
func (s *Server) HasAuth() bool {
	return s.authProvider != nil
}
