package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wagiedev/postbridge-go/internal/bridge"
	"github.com/wagiedev/postbridge-go/internal/config"
	"github.com/wagiedev/postbridge-go/internal/handler"
	wstransport "github.com/wagiedev/postbridge-go/internal/transport/websocket"
)

// DefaultBridgePath is where WebSocket bridges are accepted unless Config
// names another path.
const DefaultBridgePath = "/bridge"

// Config configures a Server.
type Config struct {
	// BridgePath is the route of the WebSocket upgrade. Defaults to /bridge.
	BridgePath string

	// AllowedOrigins restricts browser origins for CORS and the WebSocket
	// handshake. Entries are host patterns such as "example.com" or
	// "*.example.com". Empty allows same-host requests only.
	AllowedOrigins []string

	// Bridge is the template for each connection's bridge. Target, Handlers
	// and MetricsRegisterer are set per connection.
	Bridge config.Options

	// Handlers overrides the built-in handlers when non-nil.
	Handlers handler.Registry
}

// Server serves bridges over WebSocket connections.
type Server struct {
	log      *slog.Logger
	cfg      Config
	handlers handler.Registry
	registry *prometheus.Registry

	mu    sync.Mutex
	conns map[*wstransport.Conn]struct{}
	wg    sync.WaitGroup
}

// New creates a server. Metrics are collected in a registry owned by the
// server and exposed on /metrics.
func New(log *slog.Logger, cfg Config) *Server {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	if cfg.BridgePath == "" {
		cfg.BridgePath = DefaultBridgePath
	}

	log = log.With("component", "server")

	handlers := cfg.Handlers
	if handlers == nil {
		handlers = Handlers(log, nil)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Server{
		log:      log,
		cfg:      cfg,
		handlers: handlers,
		registry: registry,
		conns:    make(map[*wstransport.Conn]struct{}),
	}
}

// Registry returns the Prometheus registry backing /metrics. Other bridges
// run by the process can register their collectors here.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

// BridgeOptions returns the options a served bridge starts with, targeting
// peer.
func (s *Server) BridgeOptions(peer config.Peer) *config.Options {
	opts := s.cfg.Bridge
	opts.Target = peer
	opts.Handlers = s.handlers
	opts.MetricsRegisterer = s.registry

	if opts.Logger == nil {
		opts.Logger = s.log
	}

	return &opts
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	if len(s.cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsOrigins(s.cfg.AllowedOrigins),
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"*"},
		}))
	}

	r.Get("/healthz", s.healthz)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	r.Get(s.cfg.BridgePath, s.serveBridge)

	return r
}

// ListenAndServe serves on addr until ctx ends, then closes open bridge
// connections and waits for them to finish.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		s.log.Info("Listening", "addr", addr, "bridge_path", s.cfg.BridgePath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)

	s.Close()

	return err
}

// Close closes every open bridge connection and waits for their bridges to
// stop.
func (s *Server) Close() {
	s.mu.Lock()
	conns := make([]*wstransport.Conn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		if err := conn.Close(); err != nil {
			s.log.Debug("Close connection", "origin", conn.Origin(), "error", err)
		}
	}

	s.wg.Wait()
}

// Connections reports how many bridge connections are open.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.conns)
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) serveBridge(w http.ResponseWriter, r *http.Request) {
	conn, err := wstransport.Accept(s.log, w, r, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.AllowedOrigins,
	})
	if err != nil {
		// Accept has already written the HTTP error.
		s.log.Warn("Rejected bridge connection", "remote", r.RemoteAddr, "error", err)

		return
	}

	s.track(conn)
	defer s.untrack(conn)

	log := s.log.With("origin", conn.Origin())

	b := bridge.New(conn)

	opts := s.BridgeOptions(conn)
	opts.Logger = log

	if err := b.Start(r.Context(), opts); err != nil {
		log.Error("Start bridge", "error", err)
		_ = conn.Close()

		return
	}

	defer func() {
		if err := b.Close(); err != nil {
			log.Warn("Close bridge", "error", err)
		}
	}()

	log.Info("Bridge connected")

	if err := conn.Run(r.Context()); err != nil {
		log.Warn("Bridge connection failed", "error", err)

		return
	}

	log.Info("Bridge disconnected")
}

func (s *Server) track(conn *wstransport.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.wg.Add(1)
	s.conns[conn] = struct{}{}
}

func (s *Server) untrack(conn *wstransport.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()

	s.wg.Done()
}

// corsOrigins turns host patterns into the scheme-qualified origins the CORS
// middleware matches against.
func corsOrigins(patterns []string) []string {
	out := make([]string, 0, 2*len(patterns))
	for _, p := range patterns {
		if p == "*" {
			return []string{"*"}
		}

		out = append(out, "http://"+p, "https://"+p)
	}

	return out
}
