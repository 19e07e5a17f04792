// Package health serves the keep-alive HTTP endpoint. Hosting platforms that
// only run web services probe it to keep the bot process alive.
package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Enabled bool
	Addr    string // default ":8080"
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	return c
}

type Server struct {
	mu   sync.Mutex
	log  zerolog.Logger
	srv  *http.Server
	ln   net.Listener
	addr string
}

func NewServer(log zerolog.Logger) *Server {
	return &Server{log: log.With().Str("comp", "health").Logger()}
}

func (s *Server) Start(cfg Config) error {
	cfg = cfg.withDefaults()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !cfg.Enabled || s.srv != nil {
		return nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", alive)
	mux.HandleFunc("/healthz", alive)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("health listen: %w", err)
	}

	s.srv = srv
	s.ln = ln
	s.addr = ln.Addr().String()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn().Str("addr", s.addr).Err(err).Msg("health server error")
		}
	}()
	s.log.Info().Str("addr", s.addr).Msg("health server started")
	return nil
}

// Addr reports the bound listen address, or "" when the server is stopped.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv == nil {
		return
	}
	srv := s.srv
	s.srv = nil
	s.ln = nil

	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Warn().Err(err).Msg("health shutdown error")
	}
	s.log.Info().Str("addr", s.addr).Msg("health server stopped")
	s.addr = ""
}

func alive(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Bot is ALIVE and running 24/7!\n"))
}
