package postbridge

import (
	"context"
	"fmt"
)

// WithBridge manages bridge lifecycle with automatic cleanup.
//
// This helper creates a bridge on endpoint, starts it with the provided
// options, executes the callback function, and closes the bridge when done.
// Pending calls still open when fn returns are rejected with ErrBridgeStopped.
//
// Example usage:
//
//	err := postbridge.WithBridge(ctx, endpoint, func(b postbridge.Bridge) error {
//	    data, err := b.Request(ctx, postbridge.Envelope{Method: "ping"}, 0)
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(string(data))
//	    return nil
//	},
//	    postbridge.WithTarget(peer),
//	    postbridge.WithLogger(log),
//	)
func WithBridge(ctx context.Context, endpoint Endpoint, fn func(Bridge) error, opts ...Option) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	options := applyOptions(opts)

	log := options.Logger
	if log == nil {
		log = NopLogger()
	}

	b := newBridgeImpl(endpoint, options)
	if err := b.Start(ctx); err != nil {
		return fmt.Errorf("failed to start bridge: %w", err)
	}

	defer func() {
		if closeErr := b.Close(); closeErr != nil {
			log.Warn("failed to close bridge", "error", closeErr)
		}
	}()

	return fn(b)
}
