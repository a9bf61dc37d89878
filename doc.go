// Package postbridge provides request/response messaging over one-way string
// channels.
//
// Many channels only move strings in one direction at a time: a browser
// window's postMessage, a WebSocket, a pub/sub topic, a process's stdin and
// stdout. They have no notion of a reply. A Bridge layers three things on top:
//
//   - fire-and-forget sends (SendMessage)
//   - correlated requests that return a future with a timeout (AsyncGetData,
//     Request)
//   - a dispatch table that lets the remote side invoke local handlers, with
//     asynchronous handlers replying automatically (WithHandlers)
//
// Frames on the wire are "<prefix><JSON>" with the optional keys method,
// callbackId and data. Frames without the prefix are ignored, so a bridge can
// share its channel with other traffic.
//
// # Basic Usage
//
//	hub := postbridge.NewMemoryHub(nil)
//	parent := hub.Open("https://parent.example")
//	child := hub.Open("https://child.example")
//
//	server := postbridge.New(child,
//	    postbridge.WithTarget(child.To(parent)),
//	    postbridge.WithHandlers(postbridge.Registry{
//	        "ping": postbridge.Async(func(ctx context.Context, env *postbridge.Envelope) (any, error) {
//	            return "pong", nil
//	        }),
//	    }),
//	)
//	if err := server.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer server.Close()
//
//	err := postbridge.WithBridge(ctx, parent, func(b postbridge.Bridge) error {
//	    data, err := b.Request(ctx, postbridge.Envelope{Method: "ping"}, time.Second)
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(string(data)) // "pong"
//	    return nil
//	}, postbridge.WithTarget(parent.To(child)))
//
// # Handlers
//
// Handlers are registered once, when the bridge is created. Sync handlers run
// inline and never reply unless WithReplyPolicy(ReplyAlways) is set. Async
// handlers run on their own goroutine; when the invocation carried a
// callbackId their result is sent back as the reply, and an error suppresses
// the reply. Typed builds an Async handler that validates data against a JSON
// Schema inferred from its input type.
//
// # Logging
//
// For detailed operation tracking, use WithLogger:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
//	b := postbridge.New(endpoint, postbridge.WithLogger(logger))
//
// # Error Handling
//
// Timeouts are reported as *TimeoutError and match ErrRequestTimeout:
//
//	data, err := b.Request(ctx, postbridge.Envelope{Method: "slow"}, 50*time.Millisecond)
//	if errors.Is(err, postbridge.ErrRequestTimeout) {
//	    // no reply in time
//	}
//
// Pending calls are rejected with ErrBridgeStopped when the bridge is closed.
// Malformed inbound frames are logged and dropped; dispatch continues.
package postbridge
