// Package config provides configuration types for the bridge.
package config

import "context"

// MessageEvent is one inbound raw frame with its originating metadata.
type MessageEvent struct {
	// Data is the raw text frame.
	Data string

	// Origin identifies where the frame came from, in the transport's terms
	// (a window origin, a websocket peer origin, a pub/sub channel name).
	Origin string

	// Source is the peer that posted the frame, when the transport knows it.
	// Replies can be posted back through it. It is nil for transports without
	// a sender address, such as pub/sub.
	Source Peer
}

// Peer is a destination that accepts text frames.
//
// PostMessage is a best-effort one-way send. The targetOrigin restricts
// delivery the way the browser's postMessage does: "*" delivers anywhere,
// anything else must match the destination's origin or the frame is dropped.
type Peer interface {
	PostMessage(ctx context.Context, message string, targetOrigin string) error
}

// Endpoint is the local side of a message channel.
//
// Implement this to connect the bridge to a new kind of channel. The bundled
// implementations live under internal/transport.
type Endpoint interface {
	// Subscribe registers a listener for every inbound frame and returns a
	// function that removes it. Implementations must deliver frames to a
	// given listener one at a time.
	Subscribe(listener func(MessageEvent)) (unsubscribe func())

	// IsSelf reports whether posting to target would deliver back to this
	// endpoint. A nil target always addresses the local endpoint.
	IsSelf(target Peer) bool
}
