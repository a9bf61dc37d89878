// Package pipe carries bridge frames as newline-delimited text over a
// reader/writer pair, such as the stdin and stdout of a child process.
package pipe

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/wagiedev/postbridge-go/internal/config"
	"github.com/wagiedev/postbridge-go/internal/errors"
	"github.com/wagiedev/postbridge-go/internal/transport"
)

// Conn reads frames from r and writes frames to w, one per line.
type Conn struct {
	log       *slog.Logger
	r         io.Reader
	w         io.WriteCloser
	origin    string
	listeners transport.Listeners

	writerOnce sync.Once
	writes     chan *write
	stop       chan struct{}

	mu     sync.Mutex // Protects closed
	closed bool
}

// write is one queued frame. done is buffered so the writer never blocks on
// a poster that stopped waiting.
type write struct {
	ctx  context.Context
	data []byte
	done chan error
}

// Compile-time verification that Conn implements the transport interfaces.
var (
	_ config.Endpoint = (*Conn)(nil)
	_ config.Peer     = (*Conn)(nil)
)

// New creates a connection. origin labels inbound events.
func New(log *slog.Logger, r io.Reader, w io.WriteCloser, origin string) *Conn {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Conn{
		log:    log.With("component", "pipe", "origin", origin),
		r:      r,
		w:      w,
		origin: origin,
		writes: make(chan *write),
		stop:   make(chan struct{}),
	}
}

// Subscribe registers a listener for inbound frames.
func (c *Conn) Subscribe(listener func(config.MessageEvent)) func() {
	return c.listeners.Add(listener)
}

// IsSelf reports whether target is the local endpoint. Only nil is.
func (c *Conn) IsSelf(target config.Peer) bool {
	return target == nil
}

// PostMessage writes message followed by a newline.
//
// Frames are written whole and in order by a single writer goroutine. When
// ctx ends before the frame is picked up it is dropped; when ctx ends during
// the write PostMessage returns ctx.Err() and the write completes in the
// background. Either way the connection stays usable for later posts.
func (c *Conn) PostMessage(ctx context.Context, message, _ string) error {
	if strings.ContainsAny(message, "\r\n") {
		return fmt.Errorf("frame contains a line break")
	}

	if len(message) >= transport.MaxFrameSize {
		return errors.ErrFrameTooLarge
	}

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()

	if closed {
		return errors.ErrTransportClosed
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	c.writerOnce.Do(func() { go c.writeLoop() })

	data := make([]byte, 0, len(message)+1)
	data = append(data, message...)
	data = append(data, '\n')

	req := &write{ctx: ctx, data: data, done: make(chan error, 1)}

	select {
	case c.writes <- req:
	case <-c.stop:
		return errors.ErrTransportClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.done:
		if err != nil {
			if stderrors.Is(err, io.ErrClosedPipe) {
				return fmt.Errorf("%w: %w", errors.ErrTransportClosed, err)
			}

			return fmt.Errorf("write frame: %w", err)
		}

		return nil

	case <-ctx.Done():
		c.log.Debug("Context ended during write, frame completes in background")

		return ctx.Err()
	}
}

// writeLoop serializes frame writes until Close.
func (c *Conn) writeLoop() {
	for {
		select {
		case req := <-c.writes:
			if err := req.ctx.Err(); err != nil {
				req.done <- err

				continue
			}

			_, err := c.w.Write(req.data)
			req.done <- err

		case <-c.stop:
			return
		}
	}
}

// Run reads lines until EOF and hands each one to the listeners. EOF returns
// nil; a line longer than transport.MaxFrameSize returns
// errors.ErrFrameTooLarge.
func (c *Conn) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(c.r)
	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, transport.MaxFrameSize)

	frames := 0

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		frames++

		c.listeners.Notify(config.MessageEvent{
			Data:   strings.TrimSuffix(scanner.Text(), "\r"),
			Origin: c.origin,
			Source: c,
		})
	}

	if err := scanner.Err(); err != nil {
		if stderrors.Is(err, bufio.ErrTooLong) {
			return fmt.Errorf("%w: %w", errors.ErrFrameTooLarge, err)
		}

		return fmt.Errorf("read frames: %w", err)
	}

	c.log.Debug("Reader reached EOF", "frames", frames)

	return nil
}

// Close closes the writer. It's safe to call Close multiple times.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	close(c.stop)

	return c.w.Close()
}
