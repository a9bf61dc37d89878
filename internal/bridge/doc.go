// Package bridge implements the lifecycle of a bridge bound to one endpoint.
//
// A Bridge owns a protocol engine and the single inbound listener that feeds
// it. It attaches the listener on Start, re-attaches it when the message
// prefix changes so no frame is dispatched twice, and detaches it on Close.
// It is also the boundary where malformed frames are logged and dropped while
// dispatch continues.
package bridge
