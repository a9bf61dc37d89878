package mcpgate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagiedev/postbridge-go/internal/envelope"
)

const (
	// ToolCall names the request/response tool.
	ToolCall = "bridge_call"

	// ToolSend names the fire-and-forget tool.
	ToolSend = "bridge_send"
)

// Caller is the part of a bridge the gateway drives.
type Caller interface {
	Request(ctx context.Context, env envelope.Envelope, timeout time.Duration) (json.RawMessage, error)
	SendMessage(ctx context.Context, env *envelope.Envelope) error
}

// CallInput is the argument object of bridge_call.
type CallInput struct {
	Method    string `json:"method" jsonschema:"method to invoke on the remote peer"`
	Data      any    `json:"data,omitempty" jsonschema:"JSON payload passed to the method"`
	TimeoutMS int    `json:"timeout_ms,omitempty" jsonschema:"reply timeout in milliseconds; 0 uses the bridge default"`
}

// SendInput is the argument object of bridge_send.
type SendInput struct {
	Method string `json:"method" jsonschema:"method to invoke on the remote peer"`
	Data   any    `json:"data,omitempty" jsonschema:"JSON payload passed to the method"`
}

// Gateway forwards tool calls to a bridge.
type Gateway struct {
	log    *slog.Logger
	caller Caller
}

// New creates a gateway forwarding to caller.
func New(log *slog.Logger, caller Caller) *Gateway {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Gateway{
		log:    log.With("component", "mcpgate"),
		caller: caller,
	}
}

// NewServer creates an MCP server with the gateway tools registered.
func (g *Gateway) NewServer(name, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, &mcp.ServerOptions{
		Logger: g.log,
	})
	g.Register(server)

	return server
}

// Register adds the gateway tools to server.
func (g *Gateway) Register(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolCall,
		Description: "Invoke a method on the remote bridge peer and return its reply as JSON.",
	}, g.call)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolSend,
		Description: "Post a message to the remote bridge peer without waiting for a reply.",
	}, g.send)
}

// Run serves the gateway over stdin and stdout until ctx ends or the client
// disconnects.
func (g *Gateway) Run(ctx context.Context, name, version string) error {
	return g.NewServer(name, version).Run(ctx, &mcp.StdioTransport{})
}

func (g *Gateway) call(ctx context.Context, _ *mcp.CallToolRequest, in CallInput) (*mcp.CallToolResult, any, error) {
	if in.Method == "" {
		return ErrorResult("method is required"), nil, nil
	}

	data, err := envelope.MarshalData(in.Data)
	if err != nil {
		return ErrorResult(err.Error()), nil, nil
	}

	timeout := time.Duration(max(in.TimeoutMS, 0)) * time.Millisecond

	g.log.Debug("Forwarding call", "method", in.Method, "timeout", timeout)

	reply, err := g.caller.Request(ctx, envelope.Envelope{Method: in.Method, Data: data}, timeout)
	if err != nil {
		return ErrorResult(fmt.Sprintf("call %s: %v", in.Method, err)), nil, nil
	}

	if reply == nil {
		reply = json.RawMessage("null")
	}

	return TextResult(string(reply)), nil, nil
}

func (g *Gateway) send(ctx context.Context, _ *mcp.CallToolRequest, in SendInput) (*mcp.CallToolResult, any, error) {
	if in.Method == "" {
		return ErrorResult("method is required"), nil, nil
	}

	data, err := envelope.MarshalData(in.Data)
	if err != nil {
		return ErrorResult(err.Error()), nil, nil
	}

	if err := g.caller.SendMessage(ctx, &envelope.Envelope{Method: in.Method, Data: data}); err != nil {
		return ErrorResult(fmt.Sprintf("send %s: %v", in.Method, err)), nil, nil
	}

	return TextResult("sent"), nil, nil
}

// TextResult creates a CallToolResult with text content.
func TextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// ErrorResult creates a CallToolResult indicating an error.
func ErrorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: message},
		},
		IsError: true,
	}
}

// InputSchema returns the inferred schema of a tool's argument object.
func InputSchema(tool string) (*jsonschema.Schema, error) {
	switch tool {
	case ToolCall:
		return jsonschema.For[CallInput](nil)
	case ToolSend:
		return jsonschema.For[SendInput](nil)
	default:
		return nil, fmt.Errorf("unknown tool %q", tool)
	}
}
