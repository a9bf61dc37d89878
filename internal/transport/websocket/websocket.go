// Package websocket carries bridge frames as WebSocket text messages.
//
// A Conn is both the local endpoint and the peer for the remote side of one
// connection. Run reads frames and hands them to listeners in arrival order.
package websocket

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/coder/websocket"

	"github.com/wagiedev/postbridge-go/internal/config"
	"github.com/wagiedev/postbridge-go/internal/errors"
	"github.com/wagiedev/postbridge-go/internal/transport"
)

// Conn adapts a WebSocket connection to the bridge transport interfaces.
type Conn struct {
	log       *slog.Logger
	ws        *websocket.Conn
	origin    string
	listeners transport.Listeners
}

// Compile-time verification that Conn implements the transport interfaces.
var (
	_ config.Endpoint = (*Conn)(nil)
	_ config.Peer     = (*Conn)(nil)
)

// New wraps an established connection. origin labels inbound events.
func New(log *slog.Logger, ws *websocket.Conn, origin string) *Conn {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	ws.SetReadLimit(transport.MaxFrameSize)

	return &Conn{
		log:    log.With("component", "websocket", "origin", origin),
		ws:     ws,
		origin: origin,
	}
}

// Dial connects to a bridge WebSocket endpoint such as ws://host/bridge.
func Dial(ctx context.Context, log *slog.Logger, url string) (*Conn, error) {
	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	return New(log, ws, url), nil
}

// Accept upgrades an HTTP request. The Origin header, or the remote address
// when absent, labels inbound events.
func Accept(
	log *slog.Logger,
	w http.ResponseWriter,
	r *http.Request,
	opts *websocket.AcceptOptions,
) (*Conn, error) {
	ws, err := websocket.Accept(w, r, opts)
	if err != nil {
		return nil, fmt.Errorf("accept websocket: %w", err)
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = r.RemoteAddr
	}

	return New(log, ws, origin), nil
}

// Origin returns the label of the remote side.
func (c *Conn) Origin() string { return c.origin }

// Subscribe registers a listener for inbound frames.
func (c *Conn) Subscribe(listener func(config.MessageEvent)) func() {
	return c.listeners.Add(listener)
}

// IsSelf reports whether target is the local endpoint. Only nil is; the Conn
// itself addresses the remote side.
func (c *Conn) IsSelf(target config.Peer) bool {
	return target == nil
}

// PostMessage writes message as one text message. The target origin is not
// checked; the connection already identifies the remote side.
func (c *Conn) PostMessage(ctx context.Context, message, _ string) error {
	if err := c.ws.Write(ctx, websocket.MessageText, []byte(message)); err != nil {
		if websocket.CloseStatus(err) != -1 || stderrors.Is(err, net.ErrClosed) {
			return fmt.Errorf("%w: %w", errors.ErrTransportClosed, err)
		}

		return fmt.Errorf("write websocket: %w", err)
	}

	return nil
}

// Run reads frames until the connection closes or ctx ends. A normal closure
// or an ended ctx returns nil. Binary messages are skipped.
func (c *Conn) Run(ctx context.Context) error {
	c.log.Debug("WebSocket read loop started")
	defer c.log.Debug("WebSocket read loop stopped")

	for {
		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			if ce, ok := stderrors.AsType[websocket.CloseError](err); ok {
				if ce.Code == websocket.StatusNormalClosure || ce.Code == websocket.StatusGoingAway {
					return nil
				}
			}

			return fmt.Errorf("read websocket: %w", err)
		}

		if typ != websocket.MessageText {
			c.log.Debug("Skipping binary message", "size", len(data))

			continue
		}

		c.listeners.Notify(config.MessageEvent{
			Data:   string(data),
			Origin: c.origin,
			Source: c,
		})
	}
}

// Close performs a normal closure handshake.
func (c *Conn) Close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "")
}
