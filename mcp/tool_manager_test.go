package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestNewToolManager(t *testing.T) {
	tm, err := NewToolManager()
	require.NoError(t, err)
	assert.Empty(t, tm.ListTools("", 0).Tools)

	tm = testTools(t)
	assert.Len(t, tm.tools, 4)
}

func TestRegisterTool_Validation(t *testing.T) {
	noop := func(ctx context.Context, req ToolRequest) (any, error) { return nil, nil }

	tests := []struct {
		name    string
		tool    Tool
		wantErr string
	}{
		{
			name:    "empty name",
			tool:    Tool{Description: "d", Handler: noop},
			wantErr: "tool name cannot be empty",
		},
		{
			name:    "missing description",
			tool:    Tool{Name: "x", Handler: noop},
			wantErr: "description cannot be empty",
		},
		{
			name:    "nil handler",
			tool:    Tool{Name: "x", Description: "d"},
			wantErr: "handler cannot be nil",
		},
		{
			name: "unsupported type",
			tool: Tool{Name: "x", Description: "d", Handler: noop,
				Parameters: []ToolParameter{{Name: "p", Type: "array"}}},
			wantErr: "unsupported type",
		},
		{
			name: "duplicate parameter",
			tool: Tool{Name: "x", Description: "d", Handler: noop,
				Parameters: []ToolParameter{{Name: "p", Type: ParamString}, {Name: "p", Type: ParamString}}},
			wantErr: "duplicate parameter",
		},
		{
			name: "required with default",
			tool: Tool{Name: "x", Description: "d", Handler: noop,
				Parameters: []ToolParameter{{Name: "p", Type: ParamString, Required: true, Default: "v"}}},
			wantErr: "cannot have a default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm, err := NewToolManager()
			require.NoError(t, err)

			err = tm.RegisterTool(tt.tool)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("duplicate name", func(t *testing.T) {
		tm := testTools(t)
		err := tm.RegisterTool(Tool{Name: "echo", Description: "again", Handler: noop})
		assert.ErrorIs(t, err, ErrDuplicateName)
	})
}

func TestBuildInputSchema(t *testing.T) {
	schema, err := BuildInputSchema([]ToolParameter{
		{Name: "location", Type: ParamString, Description: "City name", Required: true},
		{Name: "days", Type: ParamInteger, Default: 3, Minimum: intPtr(1), Maximum: intPtr(7)},
	})
	require.NoError(t, err)

	doc := string(schema)
	assert.Equal(t, "object", gjson.Get(doc, "type").String())
	assert.Equal(t, "string", gjson.Get(doc, "properties.location.type").String())
	assert.Equal(t, "City name", gjson.Get(doc, "properties.location.description").String())
	assert.Equal(t, int64(3), gjson.Get(doc, "properties.days.default").Int())
	assert.Equal(t, int64(1), gjson.Get(doc, "properties.days.minimum").Int())
	assert.Equal(t, int64(7), gjson.Get(doc, "properties.days.maximum").Int())
	assert.Equal(t, `["location"]`, gjson.Get(doc, "required").Raw)
}

func TestBuildInputSchema_NoRequired(t *testing.T) {
	schema, err := BuildInputSchema([]ToolParameter{{Name: "timezone", Type: ParamString, Default: "local"}})
	require.NoError(t, err)
	assert.False(t, gjson.GetBytes(schema, "required").Exists())
}

func TestListTools(t *testing.T) {
	tm := testTools(t)

	t.Run("registration order", func(t *testing.T) {
		result := tm.ListTools("", 0)
		names := make([]string, 0, len(result.Tools))
		for _, tool := range result.Tools {
			names = append(names, tool.Name)
		}
		assert.Equal(t, []string{"echo", "count", "fail", "explode"}, names)
		assert.Empty(t, result.NextCursor)
	})

	t.Run("pagination", func(t *testing.T) {
		first := tm.ListTools("", 3)
		require.Len(t, first.Tools, 3)
		assert.Equal(t, "fail", first.NextCursor)

		second := tm.ListTools(first.NextCursor, 3)
		require.Len(t, second.Tools, 1)
		assert.Equal(t, "explode", second.Tools[0].Name)
		assert.Empty(t, second.NextCursor)
	})

	t.Run("unknown cursor starts over", func(t *testing.T) {
		result := tm.ListTools("missing", 0)
		assert.Len(t, result.Tools, 4)
	})
}

func TestGetTool(t *testing.T) {
	tm := testTools(t)

	def, err := tm.GetTool("echo")
	require.NoError(t, err)
	assert.Equal(t, "Echo the message back", def.Description)

	_, err = tm.GetTool("nope")
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func invokeTool(t *testing.T, tm *ToolManager, name, args string) (CallToolResult, error) {
	t.Helper()
	var raw json.RawMessage
	if args != "" {
		raw = json.RawMessage(args)
	}
	return tm.CallTool(context.Background(), CallToolParams{Name: name, Arguments: raw}, nil)
}

func TestCallTool(t *testing.T) {
	tm := testTools(t)

	tests := []struct {
		name     string
		tool     string
		args     string
		wantPath string
		want     string
		wantErr  error
	}{
		{name: "echo", tool: "echo", args: `{"message":"hi"}`, wantPath: "message", want: "hi"},
		{name: "default applied", tool: "count", args: `{}`, wantPath: "n", want: "3"},
		{name: "absent arguments", tool: "count", args: "", wantPath: "n", want: "3"},
		{name: "null arguments", tool: "count", args: "null", wantPath: "n", want: "3"},
		{name: "null value uses default", tool: "count", args: `{"n":null}`, wantPath: "n", want: "3"},
		{name: "clamped low", tool: "count", args: `{"n":0}`, wantPath: "n", want: "1"},
		{name: "clamped high", tool: "count", args: `{"n":10}`, wantPath: "n", want: "7"},
		{name: "numeric string", tool: "count", args: `{"n":"5"}`, wantPath: "n", want: "5"},
		{name: "integral float", tool: "count", args: `{"n":4.0}`, wantPath: "n", want: "4"},
		{name: "huge float saturates high", tool: "count", args: `{"n":1e20}`, wantPath: "n", want: "7"},
		{name: "huge negative saturates low", tool: "count", args: `{"n":-1e20}`, wantPath: "n", want: "1"},
		{name: "overflowing string saturates", tool: "count", args: `{"n":"99999999999999999999"}`, wantPath: "n", want: "7"},
		{name: "integral float string", tool: "count", args: `{"n":"7.0"}`, wantPath: "n", want: "7"},
		{name: "extra arguments ignored", tool: "echo", args: `{"message":"x","other":1}`, wantPath: "message", want: "x"},
		{name: "unknown tool", tool: "nope", args: `{}`, wantErr: ErrToolNotFound},
		{name: "missing required", tool: "echo", args: `{}`, wantErr: ErrInvalidArguments},
		{name: "wrong type", tool: "echo", args: `{"message":42}`, wantErr: ErrInvalidArguments},
		{name: "fractional integer", tool: "count", args: `{"n":2.5}`, wantErr: ErrInvalidArguments},
		{name: "non-numeric string", tool: "count", args: `{"n":"many"}`, wantErr: ErrInvalidArguments},
		{name: "arguments not an object", tool: "echo", args: `[1,2]`, wantErr: ErrInvalidArguments},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := invokeTool(t, tm, tt.tool, tt.args)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Len(t, result.Content, 1)
			assert.Equal(t, "text", result.Content[0].Type)
			assert.Equal(t, tt.want, gjson.Get(result.Content[0].Text, tt.wantPath).String())
		})
	}
}

func TestCallTool_ArgumentErrorNamesField(t *testing.T) {
	tm := testTools(t)

	_, err := invokeTool(t, tm, "echo", `{"message":true}`)
	var argErr *ArgumentError
	require.True(t, errors.As(err, &argErr))
	assert.Equal(t, "message", argErr.Argument)

	_, err = invokeTool(t, tm, "echo", `{}`)
	require.True(t, errors.As(err, &argErr))
	assert.Equal(t, "message", argErr.Argument)
}

func TestCallTool_HandlerError(t *testing.T) {
	tm := testTools(t)

	_, err := invokeTool(t, tm, "fail", `{}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend unavailable")
	assert.NotErrorIs(t, err, ErrInvalidArguments)
}

func TestCallTool_IndentedJSON(t *testing.T) {
	tm := testTools(t)

	result, err := invokeTool(t, tm, "echo", `{"message":"hi"}`)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"message\": \"hi\"\n}", result.Content[0].Text)
}
