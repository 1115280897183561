package observability

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

var errNoTools = errors.New("no API tools registered")

// Server provides HTTP endpoints for observability
type Server struct {
	httpServer *http.Server
	checker    *HealthChecker
	addr       string
	mu         sync.Mutex
}

// NewServer creates a new observability server
func NewServer(port int, checker *HealthChecker) *Server {
	return &Server{
		addr:    fmt.Sprintf(":%d", port),
		checker: checker,
	}
}

// Handler returns the observability mux
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health endpoints
	mux.HandleFunc("/health", s.checker.HealthHandler())
	mux.HandleFunc("/health/live", LivenessHandler())
	mux.HandleFunc("/health/ready", s.checker.ReadinessHandler())

	// Metrics endpoint
	mux.Handle("/metrics", MetricsHandler())
	return mux
}

// Start starts the observability server and blocks until it stops.
// It returns nil after a graceful Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}
