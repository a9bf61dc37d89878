// Package mcpgate exposes a bridge peer as Model Context Protocol tools.
//
// The gateway registers two tools on an MCP server: bridge_call issues a
// correlated request and returns the reply, bridge_send posts a
// fire-and-forget message. Run serves them over stdio so an MCP client can
// drive the remote side of a bridge.
package mcpgate
