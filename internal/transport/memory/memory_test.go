package memory

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/postbridge-go/internal/config"
	"github.com/wagiedev/postbridge-go/internal/errors"
)

type collector struct {
	mu     sync.Mutex
	events []config.MessageEvent
}

func (c *collector) add(evt config.MessageEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.events = append(c.events, evt)
}

func (c *collector) get() []config.MessageEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]config.MessageEvent(nil), c.events...)
}

func TestWindow_PostMessage(t *testing.T) {
	hub := NewHub(slog.Default())
	parent := hub.Open("https://parent.example")
	child := hub.Open("https://child.example")

	defer parent.Close()
	defer child.Close()

	var got collector

	child.Subscribe(got.add)

	ctx := context.Background()
	require.NoError(t, parent.To(child).PostMessage(ctx, "hello", "*"))
	require.NoError(t, parent.To(child).PostMessage(ctx, "exact", "https://child.example"))
	require.NoError(t, parent.To(child).PostMessage(ctx, "dropped", "https://other.example"))

	require.Eventually(t, func() bool { return len(got.get()) == 2 }, time.Second, 5*time.Millisecond)

	events := got.get()
	require.Equal(t, "hello", events[0].Data)
	require.Equal(t, "exact", events[1].Data)
	require.Equal(t, "https://parent.example", events[0].Origin)

	// Source posts back to the sender.
	var back collector

	parent.Subscribe(back.add)
	require.NoError(t, events[0].Source.PostMessage(ctx, "reply", "*"))
	require.Eventually(t, func() bool { return len(back.get()) == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, "https://child.example", back.get()[0].Origin)
}

func TestWindow_OrderPreserved(t *testing.T) {
	hub := NewHub(nil)
	a := hub.Open("https://a.example")
	b := hub.Open("https://b.example")

	defer a.Close()
	defer b.Close()

	var got collector

	b.Subscribe(got.add)

	peer := a.To(b)
	for i := range 200 {
		require.NoError(t, peer.PostMessage(context.Background(), string(rune('A'+i%26)), "*"))
	}

	require.Eventually(t, func() bool { return len(got.get()) == 200 }, time.Second, 5*time.Millisecond)

	for i, evt := range got.get() {
		require.Equal(t, string(rune('A'+i%26)), evt.Data)
	}
}

func TestWindow_IsSelf(t *testing.T) {
	hub := NewHub(nil)
	a := hub.Open("https://a.example")
	b := hub.Open("https://b.example")

	require.True(t, a.IsSelf(nil))
	require.True(t, a.IsSelf(a.Self()))
	require.True(t, a.IsSelf(b.To(a)))
	require.False(t, a.IsSelf(a.To(b)))
}

func TestWindow_Close(t *testing.T) {
	hub := NewHub(nil)
	a := hub.Open("https://a.example")
	b := hub.Open("https://b.example")

	_, ok := hub.Window(b.ID())
	require.True(t, ok)
	require.Equal(t, 2, hub.Len())

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, ok = hub.Window(b.ID())
	require.False(t, ok)
	require.Equal(t, 1, hub.Len())

	err := a.To(b).PostMessage(context.Background(), "late", "*")
	require.ErrorIs(t, err, errors.ErrTransportClosed)
}

func TestWindow_Unsubscribe(t *testing.T) {
	hub := NewHub(nil)
	a := hub.Open("https://a.example")
	b := hub.Open("https://b.example")

	defer a.Close()
	defer b.Close()

	var first, second collector

	unsubscribe := b.Subscribe(first.add)
	b.Subscribe(second.add)
	unsubscribe()

	require.NoError(t, a.To(b).PostMessage(context.Background(), "x", "*"))
	require.Eventually(t, func() bool { return len(second.get()) == 1 }, time.Second, 5*time.Millisecond)
	require.Empty(t, first.get())
}
