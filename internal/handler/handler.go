// Package handler provides the typed handler variants that serve remote
// method invocations.
//
// Handlers are chosen explicitly at registration time instead of probing the
// returned value at runtime:
//
//   - Sync runs inline on the dispatching goroutine. Its return value is only
//     sent back when the bridge is configured to always reply.
//   - Async runs on its own goroutine and its result becomes the reply whenever
//     the invocation carried a callbackId.
package handler

import (
	"context"
	"maps"

	"github.com/wagiedev/postbridge-go/internal/envelope"
)

// Handler is implemented by Sync and Async.
type Handler interface {
	handler() // marker method
}

// Compile-time verification that both variants implement Handler.
var (
	_ Handler = Sync(nil)
	_ Handler = Async(nil)
)

// Sync handles an invocation synchronously.
type Sync func(ctx context.Context, env *envelope.Envelope) any

func (Sync) handler() {}

// Async handles an invocation asynchronously. A nil error makes the returned
// value the reply payload; an error suppresses the reply.
type Async func(ctx context.Context, env *envelope.Envelope) (any, error)

func (Async) handler() {}

// Registry maps method names to handlers.
type Registry map[string]Handler

// Lookup returns the handler registered for method.
// The empty method name never matches.
func (r Registry) Lookup(method string) (Handler, bool) {
	if method == "" {
		return nil, false
	}

	h, ok := r[method]
	if !ok || h == nil {
		return nil, false
	}

	return h, true
}

// Clone returns a shallow copy so later changes by the owner are not observed.
func (r Registry) Clone() Registry {
	if r == nil {
		return Registry{}
	}

	return maps.Clone(r)
}

// Methods returns the registered method names in no particular order.
func (r Registry) Methods() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}

	return names
}
