// Package envelope defines the bridge wire unit and its prefixed text codec.
package envelope

import (
	"encoding/json"
	"fmt"
)

// Envelope is the structured unit carried inside one wire frame.
//
// Wire format (after the prefix):
//
//	{
//	  "method": "ping",
//	  "callbackId": "yzCallbackId:1",
//	  "data": {...}
//	}
//
// Every key is optional. A frame with neither method nor callbackId is a plain
// notification and is not routed anywhere.
type Envelope struct {
	// Method names a remote operation. Empty means this is a data or reply frame.
	Method string `json:"method,omitempty"`

	// CallbackID correlates a request with its reply.
	CallbackID string `json:"callbackId,omitempty"`

	// Data is the payload, opaque to the bridge.
	Data json.RawMessage `json:"data,omitempty"`
}

// HasMethod reports whether the envelope names a remote operation.
func (e *Envelope) HasMethod() bool { return e.Method != "" }

// HasCallback reports whether the envelope expects, carries or correlates to a reply.
func (e *Envelope) HasCallback() bool { return e.CallbackID != "" }

// IsNotification reports whether the envelope has neither method nor callbackId.
func (e *Envelope) IsNotification() bool {
	return !e.HasMethod() && !e.HasCallback()
}

// DecodeData unmarshals the payload into v.
// An absent payload leaves v untouched.
func (e *Envelope) DecodeData(v any) error {
	if len(e.Data) == 0 {
		return nil
	}

	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}

	return nil
}

// WithCallback returns a copy of the envelope carrying the given callbackId.
func (e Envelope) WithCallback(callbackID string) *Envelope {
	e.CallbackID = callbackID

	return &e
}

// MarshalData converts a handler or caller value into a raw payload.
//
// A json.RawMessage or []byte holding JSON is passed through unchanged and nil
// yields an absent payload.
func MarshalData(v any) (json.RawMessage, error) {
	switch data := v.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return data, nil
	default:
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal data: %w", err)
		}

		return raw, nil
	}
}

// MustData is MarshalData for values known to be encodable, such as literals in tests
// and built-in handlers. It panics on failure.
func MustData(v any) json.RawMessage {
	raw, err := MarshalData(v)
	if err != nil {
		panic(err)
	}

	return raw
}
