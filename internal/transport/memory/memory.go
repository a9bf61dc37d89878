// Package memory provides in-process windows that exchange string frames with
// browser-like postMessage semantics.
//
// Frames are delivered asynchronously through a per-window inbox and handed
// to the window's listeners one at a time, in arrival order. A frame posted
// with a target origin other than "*" is silently dropped unless it matches
// the receiving window's origin.
package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/wagiedev/postbridge-go/internal/config"
	"github.com/wagiedev/postbridge-go/internal/errors"
	"github.com/wagiedev/postbridge-go/internal/transport"
)

// inboxSize is the number of frames a window buffers before senders block.
const inboxSize = 64

// Hub connects windows living in the same process.
type Hub struct {
	log *slog.Logger

	mu      sync.RWMutex
	windows map[string]*Window
}

// NewHub creates an empty hub.
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Hub{
		log:     log.With("component", "memory"),
		windows: make(map[string]*Window, 4),
	}
}

// Open creates a window with the given origin, such as "https://app.example".
func (h *Hub) Open(origin string) *Window {
	w := &Window{
		hub:    h,
		id:     ulid.Make().String(),
		origin: origin,
		inbox:  make(chan config.MessageEvent, inboxSize),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	h.windows[w.id] = w
	h.mu.Unlock()

	w.wg.Go(w.deliver)

	h.log.Debug("Window opened", "window_id", w.id, "origin", origin)

	return w
}

// Window looks up an open window by id.
func (h *Hub) Window(id string) (*Window, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	w, ok := h.windows[id]

	return w, ok
}

// Len returns the number of open windows.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.windows)
}

// Window is one side of an in-process channel.
type Window struct {
	hub    *Hub
	id     string
	origin string

	listeners transport.Listeners
	inbox     chan config.MessageEvent

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// Compile-time verification that Window implements config.Endpoint.
var _ config.Endpoint = (*Window)(nil)

// ID returns the window's unique id.
func (w *Window) ID() string { return w.id }

// Origin returns the window's origin.
func (w *Window) Origin() string { return w.origin }

// Subscribe registers a listener for frames posted to this window.
func (w *Window) Subscribe(listener func(config.MessageEvent)) func() {
	return w.listeners.Add(listener)
}

// IsSelf reports whether target posts back into this window.
func (w *Window) IsSelf(target config.Peer) bool {
	if target == nil {
		return true
	}

	r, ok := target.(*ref)

	return ok && r.to == w
}

// To returns a peer that posts frames from w to target.
func (w *Window) To(target *Window) config.Peer {
	return &ref{from: w, to: target}
}

// Self returns a peer that posts frames from w back to w.
func (w *Window) Self() config.Peer {
	return w.To(w)
}

// Close removes the window from the hub and stops delivery. Frames still in
// the inbox are discarded. It's safe to call Close multiple times.
func (w *Window) Close() error {
	w.closeOnce.Do(func() {
		w.hub.mu.Lock()
		delete(w.hub.windows, w.id)
		w.hub.mu.Unlock()

		close(w.done)
		w.wg.Wait()

		w.hub.log.Debug("Window closed", "window_id", w.id)
	})

	return nil
}

// deliver hands queued frames to the listeners one at a time.
func (w *Window) deliver() {
	for {
		select {
		case evt := <-w.inbox:
			w.listeners.Notify(evt)
		case <-w.done:
			return
		}
	}
}

// enqueue queues evt for delivery to w.
func (w *Window) enqueue(ctx context.Context, evt config.MessageEvent) error {
	select {
	case <-w.done:
		return errors.ErrTransportClosed
	default:
	}

	select {
	case w.inbox <- evt:
		return nil
	case <-w.done:
		return errors.ErrTransportClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ref is a handle from one window to another.
type ref struct {
	from *Window
	to   *Window
}

// PostMessage queues message for the target window. A targetOrigin that is
// neither "*" nor the target's origin drops the frame without an error.
func (r *ref) PostMessage(ctx context.Context, message, targetOrigin string) error {
	if targetOrigin != config.DefaultTargetOrigin && targetOrigin != r.to.origin {
		r.from.hub.log.Debug("Dropping frame for mismatched origin",
			"target_origin", targetOrigin,
			"window_origin", r.to.origin,
		)

		return nil
	}

	return r.to.enqueue(ctx, config.MessageEvent{
		Data:   message,
		Origin: r.from.origin,
		Source: r.to.To(r.from),
	})
}
