package postbridge

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/wagiedev/postbridge-go/internal/transport/memory"
	"github.com/wagiedev/postbridge-go/internal/transport/pipe"
	redistransport "github.com/wagiedev/postbridge-go/internal/transport/redis"
	wstransport "github.com/wagiedev/postbridge-go/internal/transport/websocket"
)

// ===== In-process windows =====

// MemoryHub connects in-process windows with browser-like postMessage
// semantics.
type MemoryHub = memory.Hub

// MemoryWindow is one side of an in-process channel.
type MemoryWindow = memory.Window

// NewMemoryHub creates an empty hub.
func NewMemoryHub(log *slog.Logger) *MemoryHub {
	return memory.NewHub(log)
}

// ===== WebSocket =====

// WebSocketConn carries frames as WebSocket text messages. It is both the
// Endpoint and the Peer; call Run to receive.
type WebSocketConn = wstransport.Conn

// DialWebSocket connects to a bridge WebSocket endpoint.
func DialWebSocket(ctx context.Context, log *slog.Logger, url string) (*WebSocketConn, error) {
	return wstransport.Dial(ctx, log, url)
}

// AcceptWebSocket upgrades an HTTP request to a bridge connection.
func AcceptWebSocket(
	log *slog.Logger,
	w http.ResponseWriter,
	r *http.Request,
	opts *websocket.AcceptOptions,
) (*WebSocketConn, error) {
	return wstransport.Accept(log, w, r, opts)
}

// ===== Redis pub/sub =====

// RedisChannel is an Endpoint subscribed to one Redis pub/sub channel.
// Address remote bridges with To(name); call Run to receive.
type RedisChannel = redistransport.Channel

// NewRedisClient connects to Redis at host:port or a redis:// URL.
func NewRedisClient(ctx context.Context, addr string) (redis.UniversalClient, error) {
	return redistransport.NewClient(ctx, addr)
}

// NewRedisChannel creates an endpoint listening on the named channel.
func NewRedisChannel(log *slog.Logger, client redis.UniversalClient, name string) *RedisChannel {
	return redistransport.New(log, client, name)
}

// ===== Pipes and processes =====

// PipeConn carries newline-delimited frames over a reader/writer pair.
type PipeConn = pipe.Conn

// Process is a child process acting as the remote peer over stdin/stdout.
type Process = pipe.Process

// NewPipe creates a connection reading frames from r and writing them to w.
func NewPipe(log *slog.Logger, r io.Reader, w io.WriteCloser, origin string) *PipeConn {
	return pipe.New(log, r, w, origin)
}

// StartProcess spawns name with args and connects to its stdin and stdout.
func StartProcess(ctx context.Context, log *slog.Logger, name string, args ...string) (*Process, error) {
	return pipe.StartProcess(ctx, log, name, args...)
}
