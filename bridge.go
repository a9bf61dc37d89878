package postbridge

import (
	"context"
	"encoding/json"
	"time"
)

// Bridge exchanges correlated requests and replies with one remote peer.
//
// Lifecycle: bridges are single-use. After Close, create a new one with New.
//
// Example usage:
//
//	b := postbridge.New(endpoint,
//	    postbridge.WithTarget(peer),
//	    postbridge.WithLogger(slog.Default()),
//	)
//	if err := b.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Close()
//
//	call, err := b.AsyncGetData(ctx, postbridge.Envelope{Method: "ping"}, 0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	var reply string
//	if err := call.Decode(ctx, &reply); err != nil {
//	    log.Fatal(err)
//	}
type Bridge interface {
	// Start attaches the bridge to its endpoint.
	// Must be called before any other methods.
	// Returns ErrBridgeAlreadyStarted or ErrBridgeClosed when misused.
	Start(ctx context.Context) error

	// SetMessagePrefix switches the frame prefix. The inbound listener is
	// detached and attached again, so no frame is dispatched twice.
	SetMessagePrefix(prefix string) error

	// MessagePrefix returns the frame prefix in use, or "" before Start.
	MessagePrefix() string

	// SendMessage posts a fire-and-forget envelope to the target.
	// Sending to the local endpoint itself is a no-op.
	SendMessage(ctx context.Context, env *Envelope) error

	// AsyncGetData sends env as a correlated request and returns its future.
	// A non-positive timeout selects the configured default (5s).
	AsyncGetData(ctx context.Context, env Envelope, timeout time.Duration) (*Call, error)

	// Request sends a correlated request and waits for the reply. An ended
	// ctx abandons the call and returns ctx.Err().
	Request(ctx context.Context, env Envelope, timeout time.Duration) (json.RawMessage, error)

	// AsyncSetData answers the remote request identified by callbackID.
	AsyncSetData(ctx context.Context, callbackID string, data any) error

	// Pending reports whether the call with the given id awaits its reply.
	Pending(id string) bool

	// PendingCount returns the number of calls awaiting a reply.
	PendingCount() int

	// Close detaches the bridge, rejects pending calls with ErrBridgeStopped
	// and waits for running handlers. Safe to call multiple times.
	Close() error
}

// New creates a bridge bound to the local endpoint.
//
// The bridge is not attached after creation. Call Start to begin receiving.
func New(endpoint Endpoint, opts ...Option) Bridge {
	return newBridgeImpl(endpoint, applyOptions(opts))
}
