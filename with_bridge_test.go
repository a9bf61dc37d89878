package postbridge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWithBridge_ReturnsCallbackError(t *testing.T) {
	hub := NewMemoryHub(nil)
	w := hub.Open("https://self.example")

	defer w.Close()

	sentinel := errors.New("callback failed")

	var seen Bridge

	err := WithBridge(context.Background(), w, func(b Bridge) error {
		seen = b

		return sentinel
	})
	require.ErrorIs(t, err, sentinel)

	// The bridge is closed once the callback returns.
	require.ErrorIs(t, seen.SendMessage(context.Background(), &Envelope{Method: "x"}), ErrBridgeClosed)
}

func TestWithBridge_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false

	err := WithBridge(ctx, NewMemoryHub(nil).Open("https://x.example"), func(Bridge) error {
		called = true

		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, called)
}
