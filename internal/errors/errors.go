package errors

import (
	"errors"
	"fmt"
	"time"
)

// BridgeError is the base interface for all bridge errors.
type BridgeError interface {
	error
	IsBridgeError() bool
}

// Compile-time verification that all error types implement BridgeError.
var (
	_ BridgeError = (*FrameDecodeError)(nil)
	_ BridgeError = (*TimeoutError)(nil)
	_ BridgeError = (*HandlerError)(nil)
	_ BridgeError = (*ProcessError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrBridgeNotStarted indicates an operation was attempted before Start.
	ErrBridgeNotStarted = errors.New("bridge not started")

	// ErrBridgeAlreadyStarted indicates Start was called twice.
	ErrBridgeAlreadyStarted = errors.New("bridge already started")

	// ErrBridgeClosed indicates the bridge has been closed and cannot be reused.
	ErrBridgeClosed = errors.New("bridge closed: bridges are single-use, create a new one with New()")

	// ErrBridgeStopped indicates a pending call was abandoned because the bridge stopped.
	ErrBridgeStopped = errors.New("bridge stopped")

	// ErrRequestTimeout indicates a correlated request received no reply in time.
	ErrRequestTimeout = errors.New("request timeout")

	// ErrTransportClosed indicates the transport has been closed.
	ErrTransportClosed = errors.New("transport closed")

	// ErrFrameTooLarge indicates a frame exceeds the transport's size limit.
	ErrFrameTooLarge = errors.New("frame too large")
)

// FrameDecodeError indicates a frame carried the bridge prefix but its payload
// could not be parsed as an envelope. The raw payload is preserved.
type FrameDecodeError struct {
	RawData string
	Err     error
}

func (e *FrameDecodeError) Error() string {
	return fmt.Sprintf("failed to decode frame: %v", e.Err)
}

func (e *FrameDecodeError) Unwrap() error {
	return e.Err
}

// IsBridgeError implements BridgeError.
func (e *FrameDecodeError) IsBridgeError() bool { return true }

// TimeoutError indicates a correlated request expired before a reply arrived.
type TimeoutError struct {
	CallbackID string
	Method     string
	Timeout    time.Duration
}

func (e *TimeoutError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("request %s (%s) timed out after %s", e.CallbackID, e.Method, e.Timeout)
	}

	return fmt.Sprintf("request %s timed out after %s", e.CallbackID, e.Timeout)
}

// Is reports ErrRequestTimeout as a match so callers can test with errors.Is.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrRequestTimeout
}

// IsBridgeError implements BridgeError.
func (e *TimeoutError) IsBridgeError() bool { return true }

// HandlerError indicates a locally registered handler failed or panicked while
// serving a remote invocation.
type HandlerError struct {
	Method string
	Err    error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %q failed: %v", e.Method, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// IsBridgeError implements BridgeError.
func (e *HandlerError) IsBridgeError() bool { return true }

// ProcessError indicates a child process serving as the remote peer exited
// with an error.
type ProcessError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("process exited with code %d: %v\nstderr: %s", e.ExitCode, e.Err, e.Stderr)
	}

	return fmt.Sprintf("process exited with code %d: %v", e.ExitCode, e.Err)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// IsBridgeError implements BridgeError.
func (e *ProcessError) IsBridgeError() bool { return true }
