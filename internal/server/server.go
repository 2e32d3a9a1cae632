// Package server exposes a host over HTTP: agent inspection, event injection,
// prometheus metrics and a websocket stream of frame summaries.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/zeusync/behave/internal/core/observability/log"
	"github.com/zeusync/behave/internal/host"
)

// Config holds server configuration
type Config struct {
	ListenAddr string `mapstructure:"listen_addr"`
	// Token enables bearer authentication when set.
	Token string `mapstructure:"token"`
	// StreamBuffer is the number of frames queued per websocket client before
	// frames are dropped for that client.
	StreamBuffer    int           `mapstructure:"stream_buffer"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() Config {
	return Config{
		ListenAddr:      "127.0.0.1:8080",
		StreamBuffer:    16,
		ShutdownTimeout: 5 * time.Second,
	}
}

type Option func(*Server)

func WithLogger(l log.Log) Option {
	return func(s *Server) { s.logger = l }
}

// WithMetrics mounts h on GET /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// Server serves one host.
type Server struct {
	host    *host.Host
	config  Config
	logger  log.Log
	metrics http.Handler
	stream  *frameStream
	handler http.Handler

	http     *http.Server
	listener net.Listener
	unlisten func()

	running int32 // atomic bool
	closed  int32 // atomic bool
}

// NewServer builds the router. Zero config fields fall back to
// DefaultServerConfig.
func NewServer(h *host.Host, config Config, opts ...Option) *Server {
	def := DefaultServerConfig()
	if config.ListenAddr == "" {
		config.ListenAddr = def.ListenAddr
	}
	if config.StreamBuffer <= 0 {
		config.StreamBuffer = def.StreamBuffer
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = def.ShutdownTimeout
	}

	s := &Server{host: h, config: config, logger: log.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(log.String("component", "server"))
	s.stream = newFrameStream(config.StreamBuffer, s.logger)
	s.unlisten = h.OnFrame(s.stream.broadcast)
	s.handler = s.routes()
	return s
}

// Handler returns the router, for embedding or tests.
func (s *Server) Handler() http.Handler { return s.handler }

// Start listens on the configured address and serves in the background.
func (s *Server) Start(_ context.Context) error {
	if atomic.LoadInt32(&s.closed) == 1 {
		return ErrServerClosed
	}
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrServerAlreadyRunning
	}

	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		atomic.StoreInt32(&s.running, 0)
		s.logger.Error("Failed to create listener", log.Error(err))
		return err
	}
	s.listener = ln
	s.http = &http.Server{Handler: s.handler, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Server stopped unexpectedly", log.Error(err))
		}
	}()

	s.logger.Info("Server listening", log.String("addr", ln.Addr().String()))
	return nil
}

// Addr is the bound address while running.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop closes streams and shuts the listener down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return ErrServerNotRunning
	}
	s.logger.Info("Stopping server")

	s.stream.close()
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()
	err := s.http.Shutdown(ctx)

	s.logger.Info("Server stopped")
	return err
}

// Close stops the server if needed and detaches it from the host.
func (s *Server) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	if atomic.LoadInt32(&s.running) == 1 {
		_ = s.Stop(context.Background())
	}
	s.stream.close()
	s.unlisten()
	return nil
}
