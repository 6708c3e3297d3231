package mcp

import (
	"fmt"
	"strings"
)

// PromptManager handles prompt-related operations. Like ToolManager it is
// populated at startup and only read while serving.
type PromptManager struct {
	names   []string
	prompts map[string]Prompt
}

// NewPromptManager creates a new PromptManager instance with initial prompts
func NewPromptManager(prompts ...Prompt) (*PromptManager, error) {
	pm := &PromptManager{
		prompts: make(map[string]Prompt),
	}
	for _, prompt := range prompts {
		if err := pm.AddPrompt(prompt); err != nil {
			return nil, err
		}
	}
	return pm, nil
}

// validatePrompt validates a prompt's structure and content
func validatePrompt(prompt Prompt) error {
	if prompt.Name == "" {
		return fmt.Errorf("prompt name cannot be empty")
	}

	if len(prompt.Messages) == 0 {
		return fmt.Errorf("prompt must have at least one message")
	}

	for _, msg := range prompt.Messages {
		switch msg.Role {
		case RoleUser, RoleAssistant, RoleSystem:
		default:
			return fmt.Errorf("unsupported message role %q", msg.Role)
		}
		if msg.Content.Type != "text" {
			return fmt.Errorf("only text type is supported for prompt content")
		}
		if msg.Content.Text == "" {
			return fmt.Errorf("message content text cannot be empty")
		}
	}

	seen := make(map[string]bool, len(prompt.Arguments))
	for _, arg := range prompt.Arguments {
		if arg.Name == "" {
			return fmt.Errorf("argument name cannot be empty")
		}
		if seen[arg.Name] {
			return fmt.Errorf("duplicate argument %q", arg.Name)
		}
		seen[arg.Name] = true
	}

	return nil
}

// AddPrompt adds a new prompt to the manager
func (pm *PromptManager) AddPrompt(prompt Prompt) error {
	if err := validatePrompt(prompt); err != nil {
		return fmt.Errorf("invalid prompt: %w", err)
	}

	if _, exists := pm.prompts[prompt.Name]; exists {
		return fmt.Errorf("prompt %q: %w", prompt.Name, ErrDuplicateName)
	}

	pm.names = append(pm.names, prompt.Name)
	pm.prompts[prompt.Name] = prompt
	return nil
}

// ListPrompts returns prompt descriptors in registration order.
func (pm *PromptManager) ListPrompts(cursor string, limit int) ListPromptsResult {
	start, end, next := page(pm.names, cursor, limit)

	prompts := make([]Prompt, 0, end-start)
	for _, name := range pm.names[start:end] {
		p := pm.prompts[name]
		prompts = append(prompts, Prompt{
			Name:        p.Name,
			Description: p.Description,
			Arguments:   p.Arguments,
		})
	}
	return ListPromptsResult{Prompts: prompts, NextCursor: next}
}

// GetPrompt renders the named prompt with the given arguments.
func (pm *PromptManager) GetPrompt(params GetPromptParams) (*GetPromptResult, error) {
	prompt, exists := pm.prompts[params.Name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrPromptNotFound, params.Name)
	}

	values := make(map[string]string, len(prompt.Arguments))
	for _, arg := range prompt.Arguments {
		v, ok := params.Arguments[arg.Name]
		if !ok {
			if arg.Required {
				return nil, argumentError(arg.Name, "missing required argument")
			}
			values[arg.Name] = ""
			continue
		}
		values[arg.Name] = stringify(v)
	}

	return &GetPromptResult{
		Description: prompt.Description,
		Messages:    renderMessages(prompt, values),
	}, nil
}

// renderMessages substitutes every declared argument into fresh copies of the
// prompt messages; the registered template is never modified.
func renderMessages(prompt Prompt, values map[string]string) []PromptMessage {
	pairs := make([]string, 0, 2*len(prompt.Arguments))
	for _, arg := range prompt.Arguments {
		pairs = append(pairs, placeholder(arg.Name), values[arg.Name])
	}
	replacer := strings.NewReplacer(pairs...)

	messages := make([]PromptMessage, len(prompt.Messages))
	for i, msg := range prompt.Messages {
		messages[i] = PromptMessage{
			Role: msg.Role,
			Content: PromptContent{
				Type: msg.Content.Type,
				Text: replacer.Replace(msg.Content.Text),
			},
		}
	}
	return messages
}

func placeholder(argName string) string {
	return "{{" + argName + "}}"
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

// BindPromptArguments maps positional values onto declared arguments in
// order. Missing trailing values bind to "" and extra values are dropped.
func BindPromptArguments(declared []PromptArgument, values []string) map[string]any {
	bound := make(map[string]any, len(declared))
	for i, arg := range declared {
		if i < len(values) {
			bound[arg.Name] = values[i]
		} else {
			bound[arg.Name] = ""
		}
	}
	return bound
}
