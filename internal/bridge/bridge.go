package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wagiedev/postbridge-go/internal/config"
	"github.com/wagiedev/postbridge-go/internal/envelope"
	"github.com/wagiedev/postbridge-go/internal/errors"
	"github.com/wagiedev/postbridge-go/internal/metrics"
	"github.com/wagiedev/postbridge-go/internal/protocol"
)

// Bridge binds a protocol engine to an endpoint.
type Bridge struct {
	log      *slog.Logger
	endpoint config.Endpoint
	engine   *protocol.Engine

	// runCtx outlives the context passed to Start; it is cancelled by Close.
	runCtx context.Context
	cancel context.CancelFunc

	// Lifecycle management
	mu          sync.Mutex
	unsubscribe func()
	started     bool
	closed      bool
	closeOnce   sync.Once
}

// New creates a bridge for the local endpoint.
//
// The bridge is not attached after creation. Call Start to begin receiving.
func New(endpoint config.Endpoint) *Bridge {
	return &Bridge{endpoint: endpoint}
}

// Start creates the engine from options and attaches the inbound listener.
//
// Returns errors.ErrBridgeAlreadyStarted when called twice and
// errors.ErrBridgeClosed after Close.
func (b *Bridge) Start(ctx context.Context, options *config.Options) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.ErrBridgeClosed
	}

	if b.started {
		return errors.ErrBridgeAlreadyStarted
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	options = options.WithDefaults()

	if options.MetricsRegisterer != nil {
		recorder, err := metrics.NewPrometheus(options.MetricsRegisterer)
		if err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}

		options.Metrics = recorder
	}

	b.log = options.Logger.With("component", "bridge")
	b.engine = protocol.NewEngine(b.endpoint, options)

	// The caller's ctx may only bound startup. The bridge stays attached
	// until Close.
	b.runCtx, b.cancel = context.WithCancel(context.Background())

	b.unsubscribe = b.endpoint.Subscribe(b.onMessage)
	b.started = true

	b.log.Info("Bridge started",
		"prefix", b.engine.Prefix(),
		"target_origin", options.TargetOrigin,
		"handlers", len(options.Handlers),
	)

	return nil
}

// onMessage is the single inbound listener.
func (b *Bridge) onMessage(evt config.MessageEvent) {
	if err := b.engine.HandleFrame(b.runCtx, evt); err != nil {
		b.log.Warn("Dropping malformed frame", "origin", evt.Origin, "error", err)
	}
}

// engineFor returns the engine if the bridge is started and not closed.
func (b *Bridge) engineFor() (*protocol.Engine, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errors.ErrBridgeClosed
	}

	if !b.started {
		return nil, errors.ErrBridgeNotStarted
	}

	return b.engine, nil
}

// SetMessagePrefix detaches the listener, switches the prefix and attaches a
// fresh listener. Pending calls survive the switch.
func (b *Bridge) SetMessagePrefix(prefix string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.ErrBridgeClosed
	}

	if !b.started {
		return errors.ErrBridgeNotStarted
	}

	b.unsubscribe()
	b.engine.SetPrefix(prefix)
	b.unsubscribe = b.endpoint.Subscribe(b.onMessage)

	b.log.Info("Bridge re-attached", "prefix", b.engine.Prefix())

	return nil
}

// MessagePrefix returns the frame prefix in use, or "" before Start.
func (b *Bridge) MessagePrefix() string {
	engine, err := b.engineFor()
	if err != nil {
		return ""
	}

	return engine.Prefix()
}

// SendMessage posts a fire-and-forget envelope.
func (b *Bridge) SendMessage(ctx context.Context, env *envelope.Envelope) error {
	engine, err := b.engineFor()
	if err != nil {
		return err
	}

	return engine.SendMessage(ctx, env)
}

// AsyncGetData sends a correlated request and returns its future.
func (b *Bridge) AsyncGetData(
	ctx context.Context,
	env envelope.Envelope,
	timeout time.Duration,
) (*protocol.Call, error) {
	engine, err := b.engineFor()
	if err != nil {
		return nil, err
	}

	return engine.AsyncGetData(ctx, env, timeout)
}

// Request sends a correlated request and waits for the reply.
func (b *Bridge) Request(
	ctx context.Context,
	env envelope.Envelope,
	timeout time.Duration,
) (json.RawMessage, error) {
	engine, err := b.engineFor()
	if err != nil {
		return nil, err
	}

	return engine.Request(ctx, env, timeout)
}

// AsyncSetData answers a remote request.
func (b *Bridge) AsyncSetData(ctx context.Context, callbackID string, data any) error {
	engine, err := b.engineFor()
	if err != nil {
		return err
	}

	return engine.AsyncSetData(ctx, callbackID, data)
}

// Pending reports whether the call with the given id awaits its reply.
func (b *Bridge) Pending(id string) bool {
	engine, err := b.engineFor()
	if err != nil {
		return false
	}

	return engine.Pending(id)
}

// PendingCount returns the number of calls awaiting a reply.
func (b *Bridge) PendingCount() int {
	engine, err := b.engineFor()
	if err != nil {
		return 0
	}

	return engine.PendingCount()
}

// Close detaches the listener, rejects pending calls with
// errors.ErrBridgeStopped and waits for running handlers.
// It's safe to call Close multiple times.
func (b *Bridge) Close() error {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		wasStarted := b.started
		b.started = false
		b.mu.Unlock()

		if !wasStarted {
			return
		}

		b.log.Info("Closing bridge")

		b.unsubscribe()
		b.cancel()
		b.engine.Stop()

		b.log.Info("Bridge closed")
	})

	return nil
}
