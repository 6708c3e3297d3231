package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shaharia-lab/weather-mcp/observability"
	"github.com/xeipuuv/gojsonschema"
)

const defaultPageSize = 50

type registeredTool struct {
	tool       Tool
	definition ToolDefinition
	schema     *gojsonschema.Schema
}

// ToolManager handles tool-related operations. It is filled at startup and
// read-only afterwards, so lookups need no locking.
type ToolManager struct {
	names []string
	tools map[string]registeredTool
}

// NewToolManager creates a new ToolManager with the given tools, in order.
func NewToolManager(tools ...Tool) (*ToolManager, error) {
	tm := &ToolManager{
		tools: make(map[string]registeredTool),
	}
	for _, tool := range tools {
		if err := tm.RegisterTool(tool); err != nil {
			return nil, err
		}
	}
	return tm, nil
}

// RegisterTool validates a tool declaration, compiles its input schema and
// appends it to the registry.
func (tm *ToolManager) RegisterTool(tool Tool) error {
	if err := validateTool(tool); err != nil {
		return err
	}
	if _, exists := tm.tools[tool.Name]; exists {
		return fmt.Errorf("tool %q: %w", tool.Name, ErrDuplicateName)
	}

	schemaJSON, err := BuildInputSchema(tool.Parameters)
	if err != nil {
		return fmt.Errorf("tool %q: %w", tool.Name, err)
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	if err != nil {
		return fmt.Errorf("tool %q: invalid input schema: %w", tool.Name, err)
	}

	tm.names = append(tm.names, tool.Name)
	tm.tools[tool.Name] = registeredTool{
		tool: tool,
		definition: ToolDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schemaJSON,
		},
		schema: schema,
	}
	return nil
}

func validateTool(tool Tool) error {
	if tool.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if tool.Description == "" {
		return fmt.Errorf("tool %q: description cannot be empty", tool.Name)
	}
	if tool.Handler == nil {
		return fmt.Errorf("tool %q: handler cannot be nil", tool.Name)
	}

	seen := make(map[string]bool, len(tool.Parameters))
	for _, p := range tool.Parameters {
		if p.Name == "" {
			return fmt.Errorf("tool %q: parameter name cannot be empty", tool.Name)
		}
		if seen[p.Name] {
			return fmt.Errorf("tool %q: duplicate parameter %q", tool.Name, p.Name)
		}
		seen[p.Name] = true

		switch p.Type {
		case ParamString, ParamInteger, ParamNumber, ParamBoolean:
		default:
			return fmt.Errorf("tool %q: parameter %q has unsupported type %q", tool.Name, p.Name, p.Type)
		}
		if p.Required && p.Default != nil {
			return fmt.Errorf("tool %q: required parameter %q cannot have a default", tool.Name, p.Name)
		}
	}
	return nil
}

// BuildInputSchema renders the JSON Schema object advertised for a parameter
// table. Required names keep declaration order.
func BuildInputSchema(params []ToolParameter) (json.RawMessage, error) {
	properties := make(map[string]any, len(params))
	required := make([]string, 0)

	for _, p := range params {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		if p.Minimum != nil {
			prop["minimum"] = *p.Minimum
		}
		if p.Maximum != nil {
			prop["maximum"] = *p.Maximum
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return json.Marshal(schema)
}

// ListTools returns tools in registration order, with optional pagination.
// The cursor is the name of the last tool of the previous page.
func (tm *ToolManager) ListTools(cursor string, limit int) ListToolsResult {
	start, end, next := page(tm.names, cursor, limit)

	tools := make([]ToolDefinition, 0, end-start)
	for _, name := range tm.names[start:end] {
		tools = append(tools, tm.tools[name].definition)
	}
	return ListToolsResult{Tools: tools, NextCursor: next}
}

// GetTool retrieves a tool definition by its name.
func (tm *ToolManager) GetTool(name string) (ToolDefinition, error) {
	rt, exists := tm.tools[name]
	if !exists {
		return ToolDefinition{}, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return rt.definition, nil
}

// CallTool normalizes and validates the arguments, invokes the handler and
// wraps its JSON-encoded result as a text content block.
func (tm *ToolManager) CallTool(ctx context.Context, params CallToolParams, logger observability.Logger) (CallToolResult, error) {
	rt, exists := tm.tools[params.Name]
	if !exists {
		return CallToolResult{}, fmt.Errorf("%w: %s", ErrToolNotFound, params.Name)
	}
	if logger == nil {
		logger = observability.NewNullLogger()
	}

	raw, err := decodeArguments(params.Arguments)
	if err != nil {
		return CallToolResult{}, err
	}

	args, err := normalizeArguments(rt.tool.Parameters, raw)
	if err != nil {
		return CallToolResult{}, err
	}

	result, err := rt.schema.Validate(gojsonschema.NewGoLoader(map[string]any(args)))
	if err != nil {
		return CallToolResult{}, fmt.Errorf("validate arguments: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		field := ""
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
			if field == "" && desc.Field() != "(root)" {
				field = desc.Field()
			}
		}
		return CallToolResult{}, &ArgumentError{Argument: field, Reason: strings.Join(msgs, "; ")}
	}

	value, err := rt.tool.Handler(ctx, ToolRequest{
		Name:      rt.tool.Name,
		Arguments: args,
		Logger:    logger.WithFields(map[string]interface{}{"tool": rt.tool.Name}),
	})
	if err != nil {
		return CallToolResult{}, fmt.Errorf("tool %s: %w", rt.tool.Name, err)
	}

	text, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return CallToolResult{}, fmt.Errorf("tool %s: encode result: %w", rt.tool.Name, err)
	}

	return CallToolResult{
		Content: []ToolResultContent{{Type: "text", Text: string(text)}},
	}, nil
}

// page computes the [start, end) window over names for a cursor and limit,
// plus the cursor of the following page.
func page(names []string, cursor string, limit int) (start, end int, next string) {
	if limit <= 0 {
		limit = defaultPageSize
	}

	if cursor != "" {
		for i, name := range names {
			if name == cursor {
				start = i + 1
				break
			}
		}
	}
	if start > len(names) {
		start = len(names)
	}

	end = start + limit
	if end > len(names) {
		end = len(names)
	}
	if end < len(names) {
		next = names[end-1]
	}
	return start, end, next
}
