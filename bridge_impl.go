package postbridge

import (
	"context"
	"encoding/json"
	"time"

	"github.com/wagiedev/postbridge-go/internal/bridge"
)

// bridgeWrapper wraps the internal bridge to adapt it to the public interface.
type bridgeWrapper struct {
	impl    *bridge.Bridge
	options *Options
}

// Compile-time check that *bridgeWrapper implements the Bridge interface.
var _ Bridge = (*bridgeWrapper)(nil)

// newBridgeImpl creates the internal bridge implementation.
func newBridgeImpl(endpoint Endpoint, options *Options) Bridge {
	return &bridgeWrapper{impl: bridge.New(endpoint), options: options}
}

// Start attaches the bridge to its endpoint.
func (b *bridgeWrapper) Start(ctx context.Context) error {
	return b.impl.Start(ctx, b.options)
}

// SetMessagePrefix switches the frame prefix.
func (b *bridgeWrapper) SetMessagePrefix(prefix string) error {
	return b.impl.SetMessagePrefix(prefix)
}

// MessagePrefix returns the frame prefix in use.
func (b *bridgeWrapper) MessagePrefix() string {
	return b.impl.MessagePrefix()
}

// SendMessage posts a fire-and-forget envelope.
func (b *bridgeWrapper) SendMessage(ctx context.Context, env *Envelope) error {
	return b.impl.SendMessage(ctx, env)
}

// AsyncGetData sends a correlated request.
func (b *bridgeWrapper) AsyncGetData(ctx context.Context, env Envelope, timeout time.Duration) (*Call, error) {
	return b.impl.AsyncGetData(ctx, env, timeout)
}

// Request sends a correlated request and waits for the reply.
func (b *bridgeWrapper) Request(ctx context.Context, env Envelope, timeout time.Duration) (json.RawMessage, error) {
	return b.impl.Request(ctx, env, timeout)
}

// AsyncSetData answers a remote request.
func (b *bridgeWrapper) AsyncSetData(ctx context.Context, callbackID string, data any) error {
	return b.impl.AsyncSetData(ctx, callbackID, data)
}

// Pending reports whether a call awaits its reply.
func (b *bridgeWrapper) Pending(id string) bool {
	return b.impl.Pending(id)
}

// PendingCount returns the number of calls awaiting a reply.
func (b *bridgeWrapper) PendingCount() int {
	return b.impl.PendingCount()
}

// Close detaches the bridge.
func (b *bridgeWrapper) Close() error {
	return b.impl.Close()
}
