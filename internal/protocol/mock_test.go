package protocol

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/postbridge-go/internal/config"
	"github.com/wagiedev/postbridge-go/internal/handler"
)

// mockPeer records every posted frame.
type mockPeer struct {
	mu      sync.Mutex
	frames  []string
	origins []string
	err     error
}

func (m *mockPeer) PostMessage(_ context.Context, message, targetOrigin string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}

	m.frames = append(m.frames, message)
	m.origins = append(m.origins, targetOrigin)

	return nil
}

func (m *mockPeer) getFrames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]string, len(m.frames))
	copy(result, m.frames)

	return result
}

func (m *mockPeer) waitFrames(t *testing.T, n int) []string {
	t.Helper()

	require.Eventually(t, func() bool {
		return len(m.getFrames()) >= n
	}, time.Second, 5*time.Millisecond)

	return m.getFrames()
}

// mockEndpoint is the local side; only nil targets and self are loopback.
type mockEndpoint struct {
	self config.Peer
}

func (m *mockEndpoint) Subscribe(func(config.MessageEvent)) func() { return func() {} }

func (m *mockEndpoint) IsSelf(target config.Peer) bool {
	return target == nil || target == m.self
}

// mockRecorder counts metric observations.
type mockRecorder struct {
	mu       sync.Mutex
	received map[string]int
	sent     map[string]int
	outcomes map[string]int
	failed   map[string]int
	started  int
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{
		received: map[string]int{},
		sent:     map[string]int{},
		outcomes: map[string]int{},
		failed:   map[string]int{},
	}
}

func (m *mockRecorder) FrameReceived(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.received[kind]++
}

func (m *mockRecorder) FrameSent(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sent[kind]++
}

func (m *mockRecorder) CallStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.started++
}

func (m *mockRecorder) CallFinished(outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.outcomes[outcome]++
}

func (m *mockRecorder) HandlerFailed(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failed[method]++
}

func (m *mockRecorder) count(table map[string]int, key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return table[key]
}

// newTestEngine returns an engine posting to a fresh mockPeer.
func newTestEngine(t *testing.T, opts *config.Options) (*Engine, *mockPeer) {
	t.Helper()

	if opts == nil {
		opts = &config.Options{}
	}

	peer := &mockPeer{}
	opts.Target = peer

	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Handlers == nil {
		opts.Handlers = handler.Registry{}
	}

	engine := NewEngine(&mockEndpoint{}, opts)
	t.Cleanup(engine.Stop)

	return engine, peer
}

func frame(data string) config.MessageEvent {
	return config.MessageEvent{Data: data, Origin: "https://remote.example"}
}
