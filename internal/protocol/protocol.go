package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wagiedev/postbridge-go/internal/config"
	"github.com/wagiedev/postbridge-go/internal/envelope"
	"github.com/wagiedev/postbridge-go/internal/errors"
	"github.com/wagiedev/postbridge-go/internal/handler"
	"github.com/wagiedev/postbridge-go/internal/metrics"
)

// Engine correlates requests with replies and dispatches inbound method calls.
//
// The Engine does not read from the channel itself. The owner subscribes to
// the endpoint and passes every event to HandleFrame; this keeps attach and
// detach under the owner's control.
type Engine struct {
	log          *slog.Logger
	endpoint     config.Endpoint
	target       config.Peer
	targetOrigin string
	codec        atomic.Pointer[envelope.Codec]
	handlers     handler.Registry
	ids          IDGenerator
	timeout      time.Duration
	policy       config.ReplyPolicy
	metrics      metrics.Recorder

	// pendingMu also guards stopping, so no call is registered and no
	// handler goroutine is started once Stop has drained the table.
	pendingMu sync.Mutex
	pending   map[string]*Call

	// Lifecycle management
	stopCtx  context.Context
	stop     context.CancelFunc
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewEngine creates an engine bound to the local endpoint.
//
// The options are completed with defaults; the handler registry is copied.
func NewEngine(endpoint config.Endpoint, opts *config.Options) *Engine {
	opts = opts.WithDefaults()

	stopCtx, stop := context.WithCancel(context.Background())

	e := &Engine{
		log:          opts.Logger.With("component", "protocol"),
		endpoint:     endpoint,
		target:       opts.Target,
		targetOrigin: opts.TargetOrigin,
		handlers:     opts.Handlers.Clone(),
		ids:          newIDGenerator(opts),
		timeout:      opts.DefaultTimeout,
		policy:       opts.ReplyPolicy,
		metrics:      opts.Metrics,
		pending:      make(map[string]*Call, 10),
		stopCtx:      stopCtx,
		stop:         stop,
	}
	e.codec.Store(envelope.NewCodec(opts.MessagePrefix))

	return e
}

// Prefix returns the frame prefix currently in use.
func (e *Engine) Prefix() string {
	return e.codec.Load().Prefix()
}

// SetPrefix switches the frame prefix for subsequent sends and receives.
// Pending calls are kept.
func (e *Engine) SetPrefix(prefix string) {
	e.codec.Store(envelope.NewCodec(prefix))
	e.log.Debug("Message prefix changed", "prefix", e.Prefix())
}

// Done returns a channel that is closed once Stop has been called.
func (e *Engine) Done() <-chan struct{} {
	return e.stopCtx.Done()
}

// SendMessage posts a fire-and-forget envelope to the target.
//
// Sending to the local endpoint itself is a silent no-op.
func (e *Engine) SendMessage(ctx context.Context, env *envelope.Envelope) error {
	return e.send(ctx, env, metrics.SendMessage)
}

// AsyncGetData sends env as a correlated request and returns its Call.
//
// A fresh callback id replaces any id already present on env. The call fails
// with a *errors.TimeoutError when no reply arrives within timeout; a
// non-positive timeout selects the configured default. The timeout also bounds
// the send itself. When the frame cannot be sent the call is discarded and the
// send error returned.
func (e *Engine) AsyncGetData(
	ctx context.Context,
	env envelope.Envelope,
	timeout time.Duration,
) (*Call, error) {
	if timeout <= 0 {
		timeout = e.timeout
	}

	call := newCall(e.ids.Next(), env.Method, timeout)

	e.pendingMu.Lock()

	if e.stopCtx.Err() != nil {
		e.pendingMu.Unlock()

		return nil, errors.ErrBridgeStopped
	}

	e.pending[call.id] = call
	call.timer = time.AfterFunc(timeout, func() { e.expire(call.id) })
	e.pendingMu.Unlock()

	e.metrics.CallStarted()
	e.log.Debug("Sending request", "callback_id", call.id, "method", env.Method, "timeout", timeout)

	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := e.send(sendCtx, env.WithCallback(call.id), metrics.SendRequest); err != nil {
		if ctx.Err() == nil && sendCtx.Err() != nil {
			e.expire(call.id)

			return call, nil
		}

		if e.take(call.id) == nil {
			// Stopped or answered while the send was blocked.
			e.log.Debug("Request completed during send", "callback_id", call.id, "error", err)

			return call, nil
		}

		e.metrics.CallFinished(metrics.OutcomeFailed, time.Since(call.started))
		e.log.Error("Failed to send request", "callback_id", call.id, "error", err)

		return nil, fmt.Errorf("send request: %w", err)
	}

	return call, nil
}

// Request sends a correlated request and waits for its outcome.
//
// Unlike Call.Wait, an ended ctx abandons the call: it is removed from the
// pending table and ctx.Err() is returned. A reply arriving afterwards is
// treated as stale.
func (e *Engine) Request(
	ctx context.Context,
	env envelope.Envelope,
	timeout time.Duration,
) (json.RawMessage, error) {
	call, err := e.AsyncGetData(ctx, env, timeout)
	if err != nil {
		return nil, err
	}

	select {
	case <-call.Done():
	case <-ctx.Done():
		if c := e.take(call.id); c != nil {
			e.log.Debug("Request abandoned", "callback_id", call.id)
			e.metrics.CallFinished(metrics.OutcomeCancelled, time.Since(call.started))
			c.finish(nil, ctx.Err())
		}
	}

	return call.Result()
}

// AsyncSetData answers a remote request identified by callbackID.
//
// The data value is encoded as JSON; nil omits the data key.
func (e *Engine) AsyncSetData(ctx context.Context, callbackID string, data any) error {
	raw, err := envelope.MarshalData(data)
	if err != nil {
		return err
	}

	return e.send(ctx, &envelope.Envelope{CallbackID: callbackID, Data: raw}, metrics.SendReply)
}

// HandleFrame classifies and processes one inbound event.
//
// Frames without the prefix are ignored. A prefixed frame that does not decode
// yields a *errors.FrameDecodeError and has no other effect. Decoded frames
// are classified in order:
//
//  1. a callbackId and no registered handler for method: a reply, resolving
//     the matching pending call or dropped when none matches
//  2. a method with a registered handler: an invocation
//  3. anything else: unroutable, dropped
func (e *Engine) HandleFrame(ctx context.Context, evt config.MessageEvent) error {
	env, ok, err := e.codec.Load().Decode(evt.Data)
	if !ok {
		return nil
	}

	if err != nil {
		e.metrics.FrameReceived(metrics.FrameMalformed)

		return err
	}

	h, registered := e.handlers.Lookup(env.Method)

	switch {
	case env.HasCallback() && !registered:
		e.handleReply(env)

	case registered:
		e.invoke(ctx, h, env)

	case env.HasMethod():
		e.metrics.FrameReceived(metrics.FrameUnroutable)
		e.log.Debug("No handler registered for method", "method", env.Method, "origin", evt.Origin)

	default:
		e.metrics.FrameReceived(metrics.FrameNotify)
		e.log.Debug("Dropping frame without method or callback id", "origin", evt.Origin)
	}

	return nil
}

// Pending reports whether a call with the given id awaits its reply.
func (e *Engine) Pending(id string) bool {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()

	_, ok := e.pending[id]

	return ok
}

// PendingCount returns the number of calls awaiting a reply.
func (e *Engine) PendingCount() int {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()

	return len(e.pending)
}

// Stop rejects every pending call with errors.ErrBridgeStopped, cancels the
// contexts of running asynchronous handlers and waits for them to return.
// It's safe to call Stop multiple times.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.log.Debug("Stopping protocol engine")

		e.pendingMu.Lock()
		e.stop()

		calls := make([]*Call, 0, len(e.pending))
		for id, call := range e.pending {
			if call.timer != nil {
				call.timer.Stop()
			}

			delete(e.pending, id)

			calls = append(calls, call)
		}
		e.pendingMu.Unlock()

		for _, call := range calls {
			e.metrics.CallFinished(metrics.OutcomeStopped, time.Since(call.started))
			call.finish(nil, errors.ErrBridgeStopped)
		}

		if len(calls) > 0 {
			e.log.Debug("Rejected pending calls", "count", len(calls))
		}
	})

	e.wg.Wait()
}

// send encodes env and posts it to the target.
func (e *Engine) send(ctx context.Context, env *envelope.Envelope, kind string) error {
	if e.endpoint.IsSelf(e.target) {
		e.metrics.FrameSent(metrics.SendLoop)
		e.log.Debug("Skipping send to own endpoint", "method", env.Method, "callback_id", env.CallbackID)

		return nil
	}

	frame, err := e.codec.Load().Encode(env)
	if err != nil {
		return err
	}

	if err := e.target.PostMessage(ctx, frame, e.targetOrigin); err != nil {
		return fmt.Errorf("post message: %w", err)
	}

	e.metrics.FrameSent(kind)

	return nil
}

// take removes the call from the pending table. The caller that receives a
// non-nil call owns its completion.
func (e *Engine) take(id string) *Call {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()

	call, ok := e.pending[id]
	if !ok {
		return nil
	}

	delete(e.pending, id)

	if call.timer != nil {
		call.timer.Stop()
	}

	return call
}

// expire fails the call with a timeout if it is still pending.
func (e *Engine) expire(id string) {
	call := e.take(id)
	if call == nil {
		return
	}

	e.log.Warn("Request timed out", "callback_id", id, "method", call.method, "timeout", call.timeout)
	e.metrics.CallFinished(metrics.OutcomeTimeout, time.Since(call.started))

	call.finish(nil, &errors.TimeoutError{
		CallbackID: id,
		Method:     call.method,
		Timeout:    call.timeout,
	})
}

// handleReply routes a reply to its pending call.
func (e *Engine) handleReply(env *envelope.Envelope) {
	call := e.take(env.CallbackID)
	if call == nil {
		e.metrics.FrameReceived(metrics.FrameStale)
		e.log.Debug("No pending request for reply", "callback_id", env.CallbackID)

		return
	}

	e.metrics.FrameReceived(metrics.FrameReply)
	e.metrics.CallFinished(metrics.OutcomeResolved, time.Since(call.started))
	e.log.Debug("Received reply", "callback_id", env.CallbackID)

	call.finish(env.Data, nil)
}

// invoke runs the handler registered for env.Method.
func (e *Engine) invoke(ctx context.Context, h handler.Handler, env *envelope.Envelope) {
	e.metrics.FrameReceived(metrics.FrameInvoke)
	e.log.Debug("Invoking handler", "method", env.Method, "callback_id", env.CallbackID)

	switch fn := h.(type) {
	case handler.Sync:
		result, err := callSync(ctx, fn, env)
		if err != nil {
			e.handlerFailed(env, err)

			return
		}

		if !env.HasCallback() {
			return
		}

		if e.policy != config.ReplyAlways {
			e.log.Debug("Synchronous handler result not sent", "method", env.Method, "callback_id", env.CallbackID)

			return
		}

		e.reply(ctx, env, result)

	case handler.Async:
		e.pendingMu.Lock()

		if e.stopCtx.Err() != nil {
			e.pendingMu.Unlock()
			e.log.Debug("Engine stopped, dropping invocation", "method", env.Method)

			return
		}

		e.wg.Add(1)
		e.pendingMu.Unlock()

		opCtx, cancel := context.WithCancel(ctx)
		release := context.AfterFunc(e.stopCtx, cancel)

		go func() {
			defer e.wg.Done()
			defer cancel()
			defer release()

			result, err := callAsync(opCtx, fn, env)
			if err != nil {
				e.handlerFailed(env, err)

				return
			}

			if env.HasCallback() {
				e.reply(opCtx, env, result)
			}
		}()

	default:
		e.log.Warn("Unsupported handler type", "method", env.Method, "type", fmt.Sprintf("%T", h))
	}
}

// reply answers env with the handler result.
func (e *Engine) reply(ctx context.Context, env *envelope.Envelope, result any) {
	if err := e.AsyncSetData(ctx, env.CallbackID, result); err != nil {
		if ctx.Err() != nil {
			e.log.Debug("Could not send reply during shutdown", "callback_id", env.CallbackID, "error", err)

			return
		}

		e.log.Error("Failed to send reply", "method", env.Method, "callback_id", env.CallbackID, "error", err)
	}
}

func (e *Engine) handlerFailed(env *envelope.Envelope, err error) {
	e.metrics.HandlerFailed(env.Method)
	e.log.Warn("Handler failed",
		"method", env.Method,
		"callback_id", env.CallbackID,
		"error", &errors.HandlerError{Method: env.Method, Err: err},
	)
}

func callSync(ctx context.Context, fn handler.Sync, env *envelope.Envelope) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	return fn(ctx, env), nil
}

func callAsync(ctx context.Context, fn handler.Async, env *envelope.Envelope) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	return fn(ctx, env)
}
