package mcp

import (
	"context"
	"encoding/json"

	"github.com/shaharia-lab/weather-mcp/observability"
)

// ServerInfo identifies the server in the initialize handshake.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ClientInfo identifies the client in the initialize handshake.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type InitializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	ClientInfo      ClientInfo     `json:"clientInfo"`
	Capabilities    map[string]any `json:"capabilities"`
}

type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      ServerInfo     `json:"serverInfo"`
}

// ListParams carries the optional pagination cursor of list methods.
type ListParams struct {
	Cursor string `json:"cursor,omitempty"`
}

// --- Tools ---

// Parameter types supported in tool declarations.
const (
	ParamString  = "string"
	ParamInteger = "integer"
	ParamNumber  = "number"
	ParamBoolean = "boolean"
)

// ToolParameter declares one named argument of a tool. The advertised input
// schema is generated from these declarations.
type ToolParameter struct {
	Name        string
	Type        string
	Description string
	Required    bool
	Default     any
	Minimum     *int
	Maximum     *int
}

// ToolRequest is what a tool handler receives: normalized arguments and the
// side-channel logger for this invocation.
type ToolRequest struct {
	Name      string
	Arguments Arguments
	Logger    observability.Logger
}

// ToolHandler computes a tool result. The returned value is JSON encoded into a
// text content block.
type ToolHandler func(ctx context.Context, req ToolRequest) (any, error)

// Tool is a statically declared, callable operation.
type Tool struct {
	Name        string
	Description string
	Parameters  []ToolParameter
	Handler     ToolHandler
}

// ToolDefinition is the wire form of a tool in tools/list.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

type ListToolsResult struct {
	Tools      []ToolDefinition `json:"tools"`
	NextCursor string           `json:"nextCursor,omitempty"`
}

type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

type ToolResultContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type CallToolResult struct {
	Content []ToolResultContent `json:"content"`
	IsError bool                `json:"isError,omitempty"`
}

// --- Prompts ---

type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

// Message roles produced by prompt rendering.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

type PromptMessage struct {
	Role    string        `json:"role"`
	Content PromptContent `json:"content"`
}

// PromptContent is a text content block. Only "text" is supported.
type PromptContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Prompt is a named template; message text holds {{argument}} placeholders.
type Prompt struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
	Messages    []PromptMessage  `json:"-"`
}

type ListPromptsResult struct {
	Prompts    []Prompt `json:"prompts"`
	NextCursor string   `json:"nextCursor,omitempty"`
}

type GetPromptParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

type GetPromptResult struct {
	Description string          `json:"description,omitempty"`
	Messages    []PromptMessage `json:"messages"`
}
