// Package server exposes bridges over HTTP.
//
// Every WebSocket connection accepted on the bridge path gets its own bridge
// serving the built-in handlers returned by Handlers. The router also serves
// /healthz and /metrics.
package server
