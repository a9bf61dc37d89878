package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/wagiedev/postbridge-go/internal/envelope"
	"github.com/wagiedev/postbridge-go/internal/handler"
)

// Handlers returns the methods every served bridge answers:
//
//   - ping replies "pong".
//   - echo replies with the request data.
//   - time replies with the current time in RFC 3339.
//   - log writes the data to log and never replies.
//
// now defaults to time.Now.
func Handlers(log *slog.Logger, now func() time.Time) handler.Registry {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	if now == nil {
		now = time.Now
	}

	return handler.Registry{
		"ping": handler.Async(func(context.Context, *envelope.Envelope) (any, error) {
			return "pong", nil
		}),
		"echo": handler.Async(func(_ context.Context, env *envelope.Envelope) (any, error) {
			if env.Data == nil {
				return nil, nil
			}

			return env.Data, nil
		}),
		"time": handler.Async(func(context.Context, *envelope.Envelope) (any, error) {
			return now().UTC().Format(time.RFC3339), nil
		}),
		"log": handler.Sync(func(_ context.Context, env *envelope.Envelope) any {
			log.Info("Remote log", "data", string(env.Data))

			return nil
		}),
	}
}
