// Package errors defines error types for the bridge.
//
// This package provides sentinel errors for lifecycle conditions and
// structured error types for the failures the bridge manufactures or
// observes: malformed frames, request timeouts and handler failures. All
// error types support unwrapping and can be checked with errors.Is,
// errors.As and errors.AsType.
package errors
