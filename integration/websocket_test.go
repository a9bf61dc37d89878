//go:build integration

package integration

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/postbridge-go"
)

// TestWebSocket_RealListener runs both sides over a real TCP listener,
// each side serving a method the other calls.
func TestWebSocket_RealListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := &http.Server{
		ReadHeaderTimeout: 5 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			conn, err := postbridge.AcceptWebSocket(nil, w, r, nil)
			if err != nil {
				return
			}

			b := postbridge.New(conn,
				postbridge.WithTarget(conn),
				postbridge.WithHandlers(postbridge.Registry{
					"whoami": postbridge.Async(func(context.Context, *postbridge.Envelope) (any, error) {
						return "server", nil
					}),
				}),
			)
			if err := b.Start(r.Context()); err != nil {
				return
			}
			defer b.Close()

			go func() {
				data, err := b.Request(r.Context(), postbridge.Envelope{Method: "whoami"}, 5*time.Second)
				if err == nil {
					_ = b.SendMessage(r.Context(), &postbridge.Envelope{Method: "heard", Data: data})
				}
			}()

			_ = conn.Run(r.Context())
		}),
	}

	go func() { _ = srv.Serve(ln) }()

	t.Cleanup(func() { _ = srv.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := postbridge.DialWebSocket(ctx, nil, "ws://"+ln.Addr().String()+"/")
	require.NoError(t, err)

	defer conn.Close()

	heard := make(chan string, 1)

	client := postbridge.New(conn,
		postbridge.WithTarget(conn),
		postbridge.WithHandlers(postbridge.Registry{
			"whoami": postbridge.Async(func(context.Context, *postbridge.Envelope) (any, error) {
				return "client", nil
			}),
			"heard": postbridge.Sync(func(_ context.Context, env *postbridge.Envelope) any {
				heard <- string(env.Data)

				return nil
			}),
		}),
	)
	require.NoError(t, client.Start(ctx))

	defer client.Close()

	go func() { _ = conn.Run(ctx) }()

	data, err := client.Request(ctx, postbridge.Envelope{Method: "whoami"}, 5*time.Second)
	require.NoError(t, err)
	require.JSONEq(t, `"server"`, string(data))

	select {
	case got := <-heard:
		require.JSONEq(t, `"client"`, got)
	case <-ctx.Done():
		t.Fatal("server never reported the client's answer")
	}
}
