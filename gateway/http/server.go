// Package http is the browser-facing surface of the gateway. It exposes
// REST endpoints over the OSDU service client, a per-service GraphQL
// pass-through with playground, the artifact preview proxy, and health.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/c360/osdugate/config"
	"github.com/c360/osdugate/errors"
	"github.com/c360/osdugate/filestore"
	"github.com/c360/osdugate/health"
	"github.com/c360/osdugate/metric"
	"github.com/c360/osdugate/osdu"
	"github.com/c360/osdugate/osdu/introspect"
	"github.com/c360/osdugate/osdu/validate"
)

// Server serves the REST and proxy surface for the SPA
type Server struct {
	config          config.GatewayConfig
	osdu            *osdu.Client
	schemas         *introspect.Manager
	files           *filestore.Store
	chat            http.Handler
	monitor         *health.Monitor
	metrics         *metric.Metrics
	logger          *slog.Logger
	validator       *validate.Validator
	validateRecords bool

	httpServer *http.Server
	mux        *http.ServeMux

	// Lifecycle
	running  bool
	mu       sync.RWMutex
	stopChan chan struct{}
	stopOnce sync.Once // Ensures stopChan is closed exactly once
}

// Option configures a Server
type Option func(*Server)

// WithFilestore enables the /file/{key} preview proxy
func WithFilestore(store *filestore.Store) Option {
	return func(s *Server) {
		s.files = store
	}
}

// WithIntrospection enables the /api/introspection/{service} endpoint
func WithIntrospection(m *introspect.Manager) Option {
	return func(s *Server) {
		s.schemas = m
	}
}

// WithValidation enables POST /api/records/validate, checking record
// payloads against Schema service definitions
func WithValidation() Option {
	return func(s *Server) {
		s.validateRecords = true
	}
}

// WithChat mounts a WebSocket chat handler at /ws/chat
func WithChat(handler http.Handler) Option {
	return func(s *Server) {
		s.chat = handler
	}
}

// WithMonitor wires component health checks into /health
func WithMonitor(m *health.Monitor) Option {
	return func(s *Server) {
		s.monitor = m
	}
}

// WithMetrics enables HTTP request metrics
func WithMetrics(m *metric.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates the gateway HTTP server
func NewServer(cfg config.GatewayConfig, client *osdu.Client, opts ...Option) (*Server, error) {
	if client == nil {
		return nil, errors.WrapFatal(fmt.Errorf("osdu client is nil"),
			"Server", "NewServer", "client is required")
	}
	if cfg.BindAddress == "" {
		return nil, errors.WrapInvalid(fmt.Errorf("bind address is required"),
			"Server", "NewServer", "config validation")
	}

	s := &Server{
		config:   cfg,
		osdu:     client,
		logger:   slog.Default().With("component", "gateway"),
		mux:      http.NewServeMux(),
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Setup configures routes and the HTTP server
func (s *Server) Setup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("POST /api/search", s.handleSearch)

	s.mux.HandleFunc("GET /api/schemas", s.handleListSchemas)
	s.mux.HandleFunc("GET /api/schemas/{id}", s.handleGetSchema)

	s.mux.HandleFunc("GET /api/legal-tags", s.handleListLegalTags)
	s.mux.HandleFunc("POST /api/legal-tags", s.handleCreateLegalTag)
	s.mux.HandleFunc("GET /api/legal-tags/country-codes", s.handleCountryCodes)
	s.mux.HandleFunc("GET /api/legal-tags/{name}", s.handleGetLegalTag)

	s.mux.HandleFunc("GET /api/groups", s.handleMyGroups)
	s.mux.HandleFunc("GET /api/groups/{group}/members", s.handleGroupMembers)
	s.mux.HandleFunc("POST /api/groups/{group}/members", s.handleAddMember)
	s.mux.HandleFunc("DELETE /api/groups/{group}/members/{member}", s.handleRemoveMember)

	s.mux.HandleFunc("GET /api/records/{id}", s.handleGetRecord)
	s.mux.HandleFunc("GET /api/records/{id}/versions", s.handleRecordVersions)

	if s.validateRecords {
		v, err := validate.NewValidator(s.osdu)
		if err != nil {
			return err
		}
		s.validator = v
		s.mux.HandleFunc("POST /api/records/validate", s.handleValidateRecord)
	}

	s.mux.HandleFunc("POST /graphql/{service}", s.handleGraphQL)
	if s.config.EnablePlayground {
		s.mux.HandleFunc("GET /graphql/{service}", s.handlePlayground)
		s.logger.Info("GraphQL playground enabled")
	}

	if s.schemas != nil {
		s.mux.HandleFunc("GET /api/introspection/{service}", s.handleIntrospection)
	}

	if s.files != nil {
		s.mux.HandleFunc("GET /file/{key...}", s.handleFile)
	}

	if s.chat != nil {
		s.mux.Handle("GET /ws/chat", s.chat)
	}

	handler := s.buildMiddleware(s.mux)

	s.httpServer = &http.Server{
		Addr:         s.config.BindAddress,
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout.Std(),
		WriteTimeout: s.config.WriteTimeout.Std(),
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Server configured",
		"address", s.config.BindAddress,
		"cors", s.config.EnableCORS,
		"playground", s.config.EnablePlayground)

	return nil
}

// Handler returns the configured handler chain. Setup must run first.
func (s *Server) Handler() http.Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.httpServer == nil {
		return s.mux
	}
	return s.httpServer.Handler
}

// Start runs the HTTP server until the context is cancelled or Stop is
// called. The ready channel is closed once the listener is up.
func (s *Server) Start(ctx context.Context, ready chan<- struct{}) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.WrapFatal(fmt.Errorf("server already running"),
			"Server", "Start", "duplicate start")
	}
	if s.httpServer == nil {
		s.mu.Unlock()
		return errors.WrapFatal(fmt.Errorf("Setup not called"),
			"Server", "Start", "server not configured")
	}
	s.running = true
	server := s.httpServer
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		s.logger.Info("Server starting", "address", s.config.BindAddress)

		// ListenAndServe blocks after binding the socket, so signal
		// ready immediately before the call
		if ready != nil {
			close(ready)
		}

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", "error", err)
			select {
			case errChan <- err:
			case <-ctx.Done():
			case <-s.stopChan:
			}
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Server context cancelled, shutting down")
		return s.Stop(30 * time.Second)

	case <-s.stopChan:
		s.logger.Info("Server stop requested")
		return nil

	case err := <-errChan:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return errors.WrapFatal(err, "Server", "Start", "HTTP server failed")
	}
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	server := s.httpServer
	s.mu.Unlock()

	s.stopOnce.Do(func() {
		close(s.stopChan)
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shutdown server gracefully", "error", err)
		return errors.WrapTransient(err, "Server", "Stop", "graceful shutdown failed")
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("Server stopped")
	return nil
}

// IsRunning returns whether the server is currently running
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}
