package postbridge

import (
	"context"
	"encoding/json"

	"github.com/wagiedev/postbridge-go/internal/config"
	"github.com/wagiedev/postbridge-go/internal/envelope"
	"github.com/wagiedev/postbridge-go/internal/handler"
	"github.com/wagiedev/postbridge-go/internal/protocol"
)

// Re-export types from internal packages

// ===== Options and Configuration =====

// Options configures the behavior of a bridge.
type Options = config.Options

// ReplyPolicy decides whether synchronous handlers answer correlated invocations.
type ReplyPolicy = config.ReplyPolicy

const (
	// ReplyAwaitable only replies for asynchronous handlers. This is the default.
	ReplyAwaitable = config.ReplyAwaitable

	// ReplyAlways also sends a synchronous handler's return value as the reply.
	ReplyAlways = config.ReplyAlways
)

const (
	// DefaultPrefix marks bridge frames unless WithMessagePrefix is used.
	DefaultPrefix = envelope.DefaultPrefix

	// DefaultTargetOrigin delivers to any origin.
	DefaultTargetOrigin = config.DefaultTargetOrigin

	// DefaultTimeout bounds requests issued without their own timeout.
	DefaultTimeout = config.DefaultTimeout
)

// ===== Wire Types =====

// Envelope is the decoded form of a bridge frame.
type Envelope = envelope.Envelope

// Call is the future of a correlated request.
type Call = protocol.Call

// MarshalData encodes v as an envelope payload. json.RawMessage passes
// through unchanged and nil yields nil.
func MarshalData(v any) (json.RawMessage, error) {
	return envelope.MarshalData(v)
}

// MustData is like MarshalData but panics on failure.
func MustData(v any) json.RawMessage {
	return envelope.MustData(v)
}

// ===== Transport =====

// MessageEvent is one inbound frame.
type MessageEvent = config.MessageEvent

// Peer is the remote side frames are posted to.
type Peer = config.Peer

// Endpoint is the local side frames arrive at.
type Endpoint = config.Endpoint

// ===== Handlers =====

// Handler serves remote invocations of one method. Use Sync, Async or Typed.
type Handler = handler.Handler

// Sync handles an invocation inline. Its result is only sent back under
// ReplyAlways.
type Sync = handler.Sync

// Async handles an invocation on its own goroutine. Its result becomes the
// reply when the invocation carried a callbackId; an error suppresses it.
type Async = handler.Async

// Registry maps method names to handlers.
type Registry = handler.Registry

// Typed builds an Async handler that validates data against the JSON Schema
// inferred from In and decodes it before calling fn.
func Typed[In, Out any](fn func(ctx context.Context, in In) (Out, error)) (Async, error) {
	return handler.Typed(fn)
}

// MustTyped is like Typed but panics if no schema can be inferred for In.
func MustTyped[In, Out any](fn func(ctx context.Context, in In) (Out, error)) Async {
	return handler.MustTyped(fn)
}
