// Package transport holds pieces shared by the channel adapters.
//
// Each adapter in a subpackage implements config.Endpoint for its local side
// and config.Peer for the remote side:
//
//   - memory: in-process windows with browser-like postMessage semantics
//   - websocket: WebSocket text messages
//   - redis: Redis pub/sub channels
//   - pipe: newline-framed text over a reader/writer pair or a child process
package transport

import (
	"maps"
	"slices"
	"sync"

	"github.com/wagiedev/postbridge-go/internal/config"
)

// MaxFrameSize bounds a single inbound frame on stream-based adapters.
const MaxFrameSize = 1024 * 1024 // 1MB

// Listeners is a set of inbound listeners. The zero value is ready to use.
type Listeners struct {
	mu     sync.Mutex
	nextID uint64
	set    map[uint64]func(config.MessageEvent)
}

// Add registers fn and returns a function that removes it again.
// The returned function may be called more than once.
func (l *Listeners) Add(fn func(config.MessageEvent)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.set == nil {
		l.set = make(map[uint64]func(config.MessageEvent), 1)
	}

	id := l.nextID
	l.nextID++
	l.set[id] = fn

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()

		delete(l.set, id)
	}
}

// Notify calls every listener registered at the time of the call, in
// registration order.
func (l *Listeners) Notify(evt config.MessageEvent) {
	l.mu.Lock()

	snapshot := make([]func(config.MessageEvent), 0, len(l.set))
	for _, id := range slices.Sorted(maps.Keys(l.set)) {
		snapshot = append(snapshot, l.set[id])
	}

	l.mu.Unlock()

	for _, fn := range snapshot {
		fn(evt)
	}
}

// Len returns the number of registered listeners.
func (l *Listeners) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.set)
}
