// Package server provides the HTTP surface of the ghostedit daemon: the
// GhostText discovery endpoint, the WebSocket upgrade that becomes an edit
// session, and the idle auto-shutdown logic.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/ghostedit/ghostedit/internal/admission"
	"github.com/ghostedit/ghostedit/internal/event"
	"github.com/ghostedit/ghostedit/internal/session"
)

// Config holds server configuration.
type Config struct {
	Host string
	Port int
	// EnableCORS allows the browser extension's origins.
	EnableCORS bool
	// IdleTimeout shuts the accept loop down after this long with zero
	// active sessions. Zero disables idle shutdown.
	IdleTimeout time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:       "127.0.0.1",
		Port:       4001,
		EnableCORS: true,
	}
}

// Server accepts protocol sessions and runs one engine per session.
type Server struct {
	config     *Config
	router     *chi.Mux
	httpSrv    *http.Server
	ctrl       *admission.Controller
	engineOpts session.Options
	bus        *event.Bus

	idle *idleMonitor

	baseCtx    context.Context
	baseCancel context.CancelFunc

	sessions sync.WaitGroup

	mu     sync.Mutex
	active int
}

// New creates a Server. The admission controller and engine options are
// built by the caller from the loaded configuration.
func New(cfg *Config, ctrl *admission.Controller, engineOpts session.Options, bus *event.Bus) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		config:     cfg,
		router:     chi.NewRouter(),
		ctrl:       ctrl,
		engineOpts: engineOpts,
		bus:        bus,
		baseCtx:    ctx,
		baseCancel: cancel,
	}

	if cfg.IdleTimeout > 0 {
		s.idle = newIdleMonitor(cfg.IdleTimeout, func() {
			log.Info().Dur("timeout", cfg.IdleTimeout).Msg("idle timeout reached, shutting down")
			if bus != nil {
				bus.Publish(event.Event{Type: event.ServerIdle})
			}
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			s.Shutdown(shutdownCtx)
		})
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures middleware for the server.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)

	if s.config.EnableCORS {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}
}

// Start binds the configured address and serves until shutdown.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding %s: %w", addr, err)
	}
	log.Info().Str("addr", addr).Msg("listening")
	return s.Serve(ln)
}

// Serve runs the accept loop on a caller-supplied listener, which is how a
// systemd-activated socket comes in.
func (s *Server) Serve(ln net.Listener) error {
	s.httpSrv = &http.Server{
		Handler:     s.router,
		ReadTimeout: 30 * time.Second,
		// No write timeout: WebSocket sessions are long-lived.
	}

	if s.idle != nil {
		s.idle.Arm()
	}

	err := s.httpSrv.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops accepting new sessions and waits for running ones, up to
// the context's deadline. WebSocket sessions are hijacked connections, so
// they are tracked and awaited here rather than by net/http.
func (s *Server) Shutdown(ctx context.Context) error {
	s.baseCancel()
	if s.idle != nil {
		s.idle.Stop()
	}

	var err error
	if s.httpSrv != nil {
		err = s.httpSrv.Shutdown(ctx)
	}

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

// ActiveSessions reports how many sessions are currently running.
func (s *Server) ActiveSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Server) sessionStarted() {
	s.sessions.Add(1)
	s.mu.Lock()
	s.active++
	s.mu.Unlock()
	if s.idle != nil {
		s.idle.Inc()
	}
}

func (s *Server) sessionEnded() {
	s.mu.Lock()
	s.active--
	s.mu.Unlock()
	if s.idle != nil {
		s.idle.Dec()
	}
	s.sessions.Done()
}

// Router returns the chi router, mainly for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
