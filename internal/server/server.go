package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/r2k/internal/logging"
	"github.com/muurk/r2k/internal/protocol"
	"github.com/muurk/r2k/internal/reader"
)

// Config holds the server configuration
type Config struct {
	Listen   string // host:port, ":8080" by default
	Reader   string // reader name stamped on every message
	CertPath string // serve TLS when both paths are set
	KeyPath  string

	// Stats, when set, is reported under "reader" by /status.
	Stats func() reader.Stats
}

// Server fans reader events out to WebSocket clients.
type Server struct {
	config   *Config
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[int64]*client
	nextID  int64

	httpServer *http.Server
	addr       atomic.Value // net.Addr once listening

	published atomic.Uint64
	dropped   atomic.Uint64
	startTime time.Time
}

// New creates a new Server instance
func New(config *Config) *Server {
	if config == nil {
		config = &Config{}
	}
	if config.Listen == "" {
		config.Listen = ":8080"
	}
	return &Server{
		config:  config,
		clients: make(map[int64]*client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		startTime: time.Now(),
	}
}

// Handler returns the HTTP handler serving all endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/events", s.handleEvents)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	return mux
}

// ListenAndServe listens on the configured address and serves until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	l, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Listen, err)
	}
	return s.Serve(ctx, l)
}

// Serve accepts connections on l until ctx is cancelled. It returns nil
// after a clean shutdown.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	if s.config.CertPath != "" && s.config.KeyPath != "" {
		tlsConfig, err := NewTLSConfig(s.config.CertPath, s.config.KeyPath)
		if err != nil {
			l.Close()
			return err
		}
		l = tls.NewListener(l, tlsConfig)
	}

	s.addr.Store(l.Addr())
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logging.Info("Event server listening",
		zap.String("addr", l.Addr().String()),
		zap.String("reader", s.config.Reader),
		zap.Bool("tls", s.config.CertPath != ""),
	)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.httpServer.Serve(l)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Addr returns the listening address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	a, _ := s.addr.Load().(net.Addr)
	return a
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down event server...")

	// Hijacked WebSocket connections are not tracked by http.Server.
	s.mu.Lock()
	for id, c := range s.clients {
		c.close()
		delete(s.clients, id)
	}
	s.mu.Unlock()

	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		logging.Warn("Shutdown timeout, forcing close", zap.Error(err))
		return s.httpServer.Close()
	}
	return nil
}

// Publish sends msg to every connected client.
func (s *Server) Publish(msg Message) error {
	data, err := msg.encode()
	if err != nil {
		return err
	}
	s.published.Add(1)

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		if !c.send(data) {
			s.dropped.Add(1)
			logging.Debug("Dropped event for slow client", zap.Int64("client", c.id))
		}
	}
	return nil
}

// Pump publishes every event from events until the channel closes or ctx
// is cancelled.
func (s *Server) Pump(ctx context.Context, events <-chan protocol.Response) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				logging.Info("Reader event stream closed")
				return
			}
			if err := s.Publish(NewMessage(s.config.Reader, ev)); err != nil {
				logging.Warn("Failed to publish event", zap.Error(err))
			}
		}
	}
}

// Clients returns the number of connected WebSocket clients.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

func (s *Server) addClient(conn *websocket.Conn) *client {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	c := newClient(s.nextID, conn)
	s.clients[c.id] = c
	return c
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()
	c.close()
}
