package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

// testTools returns a small registry: an echo tool, a bounded counter, a
// failing tool and a panicking tool.
func testTools(t *testing.T) *ToolManager {
	t.Helper()

	tm, err := NewToolManager(
		Tool{
			Name:        "echo",
			Description: "Echo the message back",
			Parameters: []ToolParameter{
				{Name: "message", Type: ParamString, Description: "Text to echo", Required: true},
			},
			Handler: func(ctx context.Context, req ToolRequest) (any, error) {
				return map[string]string{"message": req.Arguments.String("message")}, nil
			},
		},
		Tool{
			Name:        "count",
			Description: "Return the requested count",
			Parameters: []ToolParameter{
				{Name: "n", Type: ParamInteger, Default: 3, Minimum: intPtr(1), Maximum: intPtr(7)},
			},
			Handler: func(ctx context.Context, req ToolRequest) (any, error) {
				return map[string]int{"n": req.Arguments.Int("n")}, nil
			},
		},
		Tool{
			Name:        "fail",
			Description: "Always fails",
			Handler: func(ctx context.Context, req ToolRequest) (any, error) {
				return nil, errors.New("backend unavailable")
			},
		},
		Tool{
			Name:        "explode",
			Description: "Always panics",
			Handler: func(ctx context.Context, req ToolRequest) (any, error) {
				panic("boom")
			},
		},
	)
	require.NoError(t, err)
	return tm
}

func testPrompts(t *testing.T) *PromptManager {
	t.Helper()

	pm, err := NewPromptManager(
		Prompt{
			Name:        "greet",
			Description: "Greet someone",
			Arguments: []PromptArgument{
				{Name: "name", Description: "Who to greet", Required: true},
			},
			Messages: []PromptMessage{
				{Role: RoleUser, Content: PromptContent{Type: "text", Text: "Say hello to {{name}}."}},
			},
		},
		Prompt{
			Name:        "compare",
			Description: "Compare two things",
			Arguments: []PromptArgument{
				{Name: "a", Required: true},
				{Name: "b", Required: true},
			},
			Messages: []PromptMessage{
				{Role: RoleUser, Content: PromptContent{Type: "text", Text: "Compare {{a}} with {{b}}. {{a}} first."}},
			},
		},
	)
	require.NoError(t, err)
	return pm
}

func testBaseServer(t *testing.T, opts ...ServerConfigOption) *BaseServer {
	t.Helper()

	all := append([]ServerConfigOption{
		UseTools(testTools(t)),
		UsePrompts(testPrompts(t)),
	}, opts...)

	s, err := NewBaseServer(all...)
	require.NoError(t, err)
	return s
}
