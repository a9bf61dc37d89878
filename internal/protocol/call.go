package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Call is the future of a correlated request.
//
// A Call completes exactly once, with the reply payload or with an error: a
// *errors.TimeoutError, errors.ErrBridgeStopped, or the context error of an
// abandoned Request.
type Call struct {
	id      string
	method  string
	timeout time.Duration
	started time.Time

	// timer is guarded by Engine.pendingMu.
	timer *time.Timer

	done chan struct{}
	data json.RawMessage
	err  error
}

func newCall(id, method string, timeout time.Duration) *Call {
	return &Call{
		id:      id,
		method:  method,
		timeout: timeout,
		started: time.Now(),
		done:    make(chan struct{}),
	}
}

// ID returns the callback id carried by the request.
func (c *Call) ID() string { return c.id }

// Method returns the method named by the request, if any.
func (c *Call) Method() string { return c.method }

// Timeout returns the duration after which the call fails.
func (c *Call) Timeout() time.Duration { return c.timeout }

// Done returns a channel that is closed when the call completes.
func (c *Call) Done() <-chan struct{} { return c.done }

// Result blocks until the call completes and returns its outcome.
func (c *Call) Result() (json.RawMessage, error) {
	<-c.done

	return c.data, c.err
}

// Wait blocks until the call completes or ctx ends. An ended context leaves
// the call pending; it still completes on reply or timeout.
func (c *Call) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-c.done:
		return c.data, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Decode waits like Wait and unmarshals the reply payload into v.
func (c *Call) Decode(ctx context.Context, v any) error {
	data, err := c.Wait(ctx)
	if err != nil {
		return err
	}

	if len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode reply to %s: %w", c.id, err)
	}

	return nil
}

// finish records the outcome. Only the party that removed the call from the
// pending table may call it.
func (c *Call) finish(data json.RawMessage, err error) {
	c.data = data
	c.err = err
	close(c.done)
}
