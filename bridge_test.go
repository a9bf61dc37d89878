package postbridge

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pair wires two bridges through an in-process hub. The child serves handlers.
func pair(t *testing.T, handlers Registry, childOpts ...Option) (parent, child Bridge) {
	t.Helper()

	hub := NewMemoryHub(nil)
	pw := hub.Open("https://parent.example")
	cw := hub.Open("https://child.example")

	t.Cleanup(func() {
		_ = pw.Close()
		_ = cw.Close()
	})

	opts := append([]Option{WithTarget(cw.To(pw)), WithHandlers(handlers)}, childOpts...)

	child = New(cw, opts...)
	parent = New(pw, WithTarget(pw.To(cw)))

	ctx := context.Background()
	require.NoError(t, child.Start(ctx))
	require.NoError(t, parent.Start(ctx))

	t.Cleanup(func() {
		_ = parent.Close()
		_ = child.Close()
	})

	return parent, child
}

func TestBridge_PingPong(t *testing.T) {
	parent, _ := pair(t, Registry{
		"ping": Async(func(context.Context, *Envelope) (any, error) { return "pong", nil }),
	})
	ctx := context.Background()

	call, err := parent.AsyncGetData(ctx, Envelope{Method: "ping"}, 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, "yzCallbackId:1", call.ID())

	var reply string

	require.NoError(t, call.Decode(ctx, &reply))
	require.Equal(t, "pong", reply)
	require.False(t, parent.Pending(call.ID()))
}

func TestBridge_Timeout(t *testing.T) {
	parent, _ := pair(t, Registry{})

	start := time.Now()
	_, err := parent.Request(context.Background(), Envelope{Method: "nobody"}, 50*time.Millisecond)
	require.ErrorIs(t, err, ErrRequestTimeout)
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	require.Zero(t, parent.PendingCount())
}

func TestBridge_Echo(t *testing.T) {
	parent, _ := pair(t, Registry{
		"echo": Async(func(_ context.Context, env *Envelope) (any, error) { return env.Data, nil }),
	})

	data, err := parent.Request(context.Background(), Envelope{Method: "echo", Data: MustData(42)}, time.Second)
	require.NoError(t, err)
	require.JSONEq(t, `42`, string(data))
}

func TestBridge_SyncHandlerPolicies(t *testing.T) {
	add := Sync(func(_ context.Context, env *Envelope) any {
		var nums []int
		_ = env.DecodeData(&nums)

		return nums[0] + nums[1]
	})

	t.Run("awaitable", func(t *testing.T) {
		parent, _ := pair(t, Registry{"add": add})

		_, err := parent.Request(context.Background(), Envelope{Method: "add", Data: MustData([]int{1, 2})}, 50*time.Millisecond)
		require.ErrorIs(t, err, ErrRequestTimeout)
	})

	t.Run("always", func(t *testing.T) {
		parent, _ := pair(t, Registry{"add": add}, WithReplyPolicy(ReplyAlways))

		data, err := parent.Request(context.Background(), Envelope{Method: "add", Data: MustData([]int{1, 2})}, time.Second)
		require.NoError(t, err)
		require.JSONEq(t, `3`, string(data))
	})
}

func TestBridge_TypedHandler(t *testing.T) {
	type greetIn struct {
		Name string `json:"name"`
	}

	type greetOut struct {
		Greeting string `json:"greeting"`
	}

	greet := MustTyped(func(_ context.Context, in greetIn) (greetOut, error) {
		return greetOut{Greeting: "hello " + in.Name}, nil
	})

	parent, _ := pair(t, Registry{"greet": greet})
	ctx := context.Background()

	call, err := parent.AsyncGetData(ctx, Envelope{Method: "greet", Data: MustData(greetIn{Name: "ada"})}, time.Second)
	require.NoError(t, err)

	var out greetOut

	require.NoError(t, call.Decode(ctx, &out))
	require.Equal(t, "hello ada", out.Greeting)

	// Invalid input fails validation, so no reply is sent.
	_, err = parent.Request(ctx, Envelope{Method: "greet", Data: json.RawMessage(`{"name":7}`)}, 50*time.Millisecond)
	require.ErrorIs(t, err, ErrRequestTimeout)
}

func TestBridge_BidirectionalCalls(t *testing.T) {
	hub := NewMemoryHub(nil)
	aw := hub.Open("https://a.example")
	bw := hub.Open("https://b.example")

	defer aw.Close()
	defer bw.Close()

	whoami := func(name string) Registry {
		return Registry{
			"whoami": Async(func(context.Context, *Envelope) (any, error) { return name, nil }),
		}
	}

	a := New(aw, WithTarget(aw.To(bw)), WithHandlers(whoami("a")))
	b := New(bw, WithTarget(bw.To(aw)), WithHandlers(whoami("b")))

	ctx := context.Background()
	require.NoError(t, a.Start(ctx))
	require.NoError(t, b.Start(ctx))

	defer a.Close()
	defer b.Close()

	var wg sync.WaitGroup

	for range 20 {
		wg.Go(func() {
			data, err := a.Request(ctx, Envelope{Method: "whoami"}, time.Second)
			if assert.NoError(t, err) {
				assert.JSONEq(t, `"b"`, string(data))
			}
		})
		wg.Go(func() {
			data, err := b.Request(ctx, Envelope{Method: "whoami"}, time.Second)
			if assert.NoError(t, err) {
				assert.JSONEq(t, `"a"`, string(data))
			}
		})
	}

	wg.Wait()
}

func TestBridge_TargetOriginMismatch(t *testing.T) {
	hub := NewMemoryHub(nil)
	pw := hub.Open("https://parent.example")
	cw := hub.Open("https://child.example")

	defer pw.Close()
	defer cw.Close()

	child := New(cw, WithTarget(cw.To(pw)), WithHandlers(Registry{
		"ping": Async(func(context.Context, *Envelope) (any, error) { return "pong", nil }),
	}))
	require.NoError(t, child.Start(context.Background()))

	defer child.Close()

	err := WithBridge(context.Background(), pw, func(b Bridge) error {
		_, err := b.Request(context.Background(), Envelope{Method: "ping"}, 50*time.Millisecond)

		return err
	}, WithTarget(pw.To(cw)), WithTargetOrigin("https://elsewhere.example"))

	require.ErrorIs(t, err, ErrRequestTimeout)
}

func TestBridge_LoopbackIsNoop(t *testing.T) {
	hub := NewMemoryHub(nil)
	w := hub.Open("https://self.example")

	defer w.Close()

	b := New(w)
	require.NoError(t, b.Start(context.Background()))

	defer b.Close()

	require.NoError(t, b.SendMessage(context.Background(), &Envelope{Method: "x"}))
	require.NoError(t, b.AsyncSetData(context.Background(), "id", "data"))
}

func TestBridge_CloseRejectsPending(t *testing.T) {
	parent, _ := pair(t, Registry{})

	call, err := parent.AsyncGetData(context.Background(), Envelope{Method: "never"}, time.Minute)
	require.NoError(t, err)

	require.NoError(t, parent.Close())

	_, err = call.Result()
	require.ErrorIs(t, err, ErrBridgeStopped)

	require.ErrorIs(t, parent.Start(context.Background()), ErrBridgeClosed)
}

func TestBridge_SetMessagePrefix(t *testing.T) {
	parent, child := pair(t, Registry{
		"ping": Async(func(context.Context, *Envelope) (any, error) { return "pong", nil }),
	})

	require.NoError(t, parent.SetMessagePrefix("app:"))
	require.Equal(t, "app:", parent.MessagePrefix())

	// The child still speaks the default prefix and ignores "app:" frames.
	_, err := parent.Request(context.Background(), Envelope{Method: "ping"}, 50*time.Millisecond)
	require.ErrorIs(t, err, ErrRequestTimeout)

	require.NoError(t, child.SetMessagePrefix("app:"))

	data, err := parent.Request(context.Background(), Envelope{Method: "ping"}, time.Second)
	require.NoError(t, err)
	require.JSONEq(t, `"pong"`, string(data))
}
