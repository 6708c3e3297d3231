package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	defaultClientName    = "weather-chat"
	defaultClientVersion = "1.0.0"
	defaultClientTimeout = 30 * time.Second
)

// ErrClientClosed is returned by calls on a client whose connection has ended.
var ErrClientClosed = errors.New("mcp client closed")

// Client is the consumer side of an MCP session, independent of transport.
type Client interface {
	Connect(ctx context.Context) error
	Close() error
	ServerInfo() ServerInfo
	ListTools(ctx context.Context) ([]ToolDefinition, error)
	CallTool(ctx context.Context, name string, arguments any) (CallToolResult, error)
	ListPrompts(ctx context.Context) ([]Prompt, error)
	GetPrompt(ctx context.Context, name string, arguments map[string]any) (*GetPromptResult, error)
}

// ConnectionState represents the state of a client connection.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// reply is the client-side view of a response, keeping the result raw so it
// can be decoded into the method's result type.
type reply struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

func (r *reply) decode(out any) error {
	if r.Error != nil {
		return r.Error
	}
	if out == nil || len(r.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Result, out); err != nil {
		return fmt.Errorf("failed to parse result: %w", err)
	}
	return nil
}

// caller is the transport-specific part of a client.
type caller interface {
	call(ctx context.Context, method string, params any, out any) error
	notify(ctx context.Context, method string, params any) error
}

func encodeParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	b, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}
	return b, nil
}

func initialize(ctx context.Context, c caller, name, version string) (InitializeResult, error) {
	params := InitializeParams{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo: ClientInfo{
			Name:    name,
			Version: version,
		},
	}

	var result InitializeResult
	if err := c.call(ctx, "initialize", params, &result); err != nil {
		return InitializeResult{}, fmt.Errorf("initialization failed: %w", err)
	}
	if err := c.notify(ctx, "notifications/initialized", nil); err != nil {
		return InitializeResult{}, fmt.Errorf("failed to send initialized notification: %w", err)
	}
	return result, nil
}

// listTools follows nextCursor until every page has been read.
func listTools(ctx context.Context, c caller) ([]ToolDefinition, error) {
	var tools []ToolDefinition
	cursor := ""
	for {
		var page ListToolsResult
		if err := c.call(ctx, "tools/list", ListParams{Cursor: cursor}, &page); err != nil {
			return nil, err
		}
		tools = append(tools, page.Tools...)
		if page.NextCursor == "" || page.NextCursor == cursor {
			return tools, nil
		}
		cursor = page.NextCursor
	}
}

func listPrompts(ctx context.Context, c caller) ([]Prompt, error) {
	var prompts []Prompt
	cursor := ""
	for {
		var page ListPromptsResult
		if err := c.call(ctx, "prompts/list", ListParams{Cursor: cursor}, &page); err != nil {
			return nil, err
		}
		prompts = append(prompts, page.Prompts...)
		if page.NextCursor == "" || page.NextCursor == cursor {
			return prompts, nil
		}
		cursor = page.NextCursor
	}
}

func callTool(ctx context.Context, c caller, name string, arguments any) (CallToolResult, error) {
	args, err := encodeParams(arguments)
	if err != nil {
		return CallToolResult{}, err
	}

	var result CallToolResult
	if err := c.call(ctx, "tools/call", CallToolParams{Name: name, Arguments: args}, &result); err != nil {
		return CallToolResult{}, err
	}
	return result, nil
}

func getPrompt(ctx context.Context, c caller, name string, arguments map[string]any) (*GetPromptResult, error) {
	var result GetPromptResult
	if err := c.call(ctx, "prompts/get", GetPromptParams{Name: name, Arguments: arguments}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
