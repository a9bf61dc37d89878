package postbridge

import "github.com/wagiedev/postbridge-go/internal/errors"

// Re-export error types from internal package

// FrameDecodeError indicates a prefixed frame could not be parsed.
type FrameDecodeError = errors.FrameDecodeError

// TimeoutError indicates a request received no reply in time.
// It matches ErrRequestTimeout with errors.Is.
type TimeoutError = errors.TimeoutError

// HandlerError indicates a local handler failed or panicked.
type HandlerError = errors.HandlerError

// ProcessError indicates a child process peer exited with an error.
type ProcessError = errors.ProcessError

// BridgeError is the base interface for all bridge errors.
type BridgeError = errors.BridgeError

// Re-export sentinel errors from internal package.
var (
	// ErrBridgeNotStarted indicates an operation was attempted before Start.
	ErrBridgeNotStarted = errors.ErrBridgeNotStarted

	// ErrBridgeAlreadyStarted indicates Start was called twice.
	ErrBridgeAlreadyStarted = errors.ErrBridgeAlreadyStarted

	// ErrBridgeClosed indicates the bridge has been closed and cannot be reused.
	ErrBridgeClosed = errors.ErrBridgeClosed

	// ErrBridgeStopped indicates a pending call was rejected by Close.
	ErrBridgeStopped = errors.ErrBridgeStopped

	// ErrRequestTimeout indicates a request timed out.
	ErrRequestTimeout = errors.ErrRequestTimeout

	// ErrTransportClosed indicates the channel has been closed.
	ErrTransportClosed = errors.ErrTransportClosed

	// ErrFrameTooLarge indicates a frame exceeds the channel's size limit.
	ErrFrameTooLarge = errors.ErrFrameTooLarge
)
