package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shaharia-lab/weather-mcp/mcp"
	"github.com/shaharia-lab/weather-mcp/observability"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
)

// ToolsProvider exposes the tools of a connected MCP server to the model.
type ToolsProvider struct {
	client mcp.Client
}

func NewToolsProvider(client mcp.Client) *ToolsProvider {
	return &ToolsProvider{client: client}
}

// ListTools returns the server's tools, or none without a client.
func (p *ToolsProvider) ListTools(ctx context.Context) ([]mcp.ToolDefinition, error) {
	if p == nil || p.client == nil {
		return []mcp.ToolDefinition{}, nil
	}
	return p.client.ListTools(ctx)
}

// ExecuteTool calls name with the model-supplied JSON arguments. Empty or
// malformed arguments are sent as an empty object and left for the server to
// reject.
func (p *ToolsProvider) ExecuteTool(ctx context.Context, name, arguments string) (result mcp.CallToolResult, err error) {
	ctx, span := observability.StartSpan(ctx, "ToolsProvider.ExecuteTool")
	span.SetAttributes(
		attribute.String("tool_name", name),
		attribute.String("arguments", arguments),
	)
	defer func() { observability.EndSpan(span, err) }()

	if p == nil || p.client == nil {
		err = fmt.Errorf("no tools available")
		return mcp.CallToolResult{}, err
	}

	args := json.RawMessage("{}")
	if strings.TrimSpace(arguments) != "" && gjson.Valid(arguments) {
		args = json.RawMessage(arguments)
	}

	startTime := time.Now()
	result, err = p.client.CallTool(ctx, name, args)
	span.SetAttributes(attribute.Float64("execution_time_ms", float64(time.Since(startTime).Milliseconds())))
	if err != nil {
		return mcp.CallToolResult{}, err
	}

	span.SetAttributes(
		attribute.Bool("is_error", result.IsError),
		attribute.Int("content_length", len(result.Content)),
	)
	return result, nil
}

// resultText flattens the text blocks of a tool result.
func resultText(result mcp.CallToolResult) string {
	parts := make([]string, 0, len(result.Content))
	for _, c := range result.Content {
		if c.Type == "text" {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}
