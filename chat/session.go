package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/shaharia-lab/weather-mcp/mcp"
	"github.com/shaharia-lab/weather-mcp/observability"
)

// Provider produces the assistant's answer to a conversation.
type Provider interface {
	GetResponse(ctx context.Context, messages []Message, config RequestConfig) (Response, error)
}

// StreamingProvider is a Provider that can deliver the answer token by token.
type StreamingProvider interface {
	Provider
	GetStreamingResponse(ctx context.Context, messages []Message, config RequestConfig, onToken func(string)) (Response, error)
}

// SessionConfig holds the collaborators of a Session.
type SessionConfig struct {
	Provider     Provider
	Client       mcp.Client
	SystemPrompt string
	Options      []RequestOption
	// OnToken, when set and Provider streams, receives the answer as it is
	// generated.
	OnToken func(string)
	Logger  observability.Logger
}

// Session is one conversation. Its history always starts with the system
// message and grows by a user and an assistant turn per answered input.
type Session struct {
	provider Provider
	client   mcp.Client
	config   RequestConfig
	history  []Message
	prompts  []mcp.Prompt
	onToken  func(string)
	logger   observability.Logger
}

func NewSession(config SessionConfig) *Session {
	if config.Logger == nil {
		config.Logger = observability.NewNullLogger()
	}
	opts := config.Options
	if config.Client != nil {
		opts = append([]RequestOption{WithToolsProvider(NewToolsProvider(config.Client))}, opts...)
	}
	return &Session{
		provider: config.Provider,
		client:   config.Client,
		config:   NewRequestConfig(opts...),
		history:  []Message{{Role: RoleSystem, Text: config.SystemPrompt}},
		onToken:  config.OnToken,
		logger:   config.Logger,
	}
}

// History returns a copy of the conversation so far.
func (s *Session) History() []Message {
	return append([]Message(nil), s.history...)
}

// Handle processes one line of input and returns the text to show. It
// returns ErrQuit when the user leaves. A failed model call leaves the
// history unchanged.
func (s *Session) Handle(ctx context.Context, line string) (string, error) {
	cmd := ParseCommand(line)
	switch cmd.Kind {
	case CommandEmpty:
		return "", nil
	case CommandQuit:
		return "", ErrQuit
	case CommandListPrompts:
		return s.describePrompts(ctx)
	case CommandListTools:
		return s.describeTools(ctx)
	case CommandPrompt:
		text, found, err := s.renderPrompt(ctx, cmd)
		if err != nil || !found {
			return text, err
		}
		return s.ask(ctx, text)
	default:
		return s.ask(ctx, cmd.Text)
	}
}

func (s *Session) ask(ctx context.Context, text string) (string, error) {
	s.history = append(s.history, Message{Role: RoleUser, Text: text})

	var (
		resp Response
		err  error
	)
	if sp, ok := s.provider.(StreamingProvider); ok && s.onToken != nil {
		resp, err = sp.GetStreamingResponse(ctx, s.History(), s.config, s.onToken)
	} else {
		resp, err = s.provider.GetResponse(ctx, s.History(), s.config)
	}
	if err != nil {
		s.history = s.history[:len(s.history)-1]
		return "", err
	}

	s.logger.WithFields(map[string]interface{}{
		"input_tokens":  resp.TotalInputToken,
		"output_tokens": resp.TotalOutputToken,
	}).Debugf("Completion took %.2fs", resp.CompletionTime)

	s.history = append(s.history, Message{Role: RoleAssistant, Text: resp.Text})
	return resp.Text, nil
}

func (s *Session) listPrompts(ctx context.Context) ([]mcp.Prompt, error) {
	if s.client == nil {
		return nil, nil
	}
	if s.prompts == nil {
		prompts, err := s.client.ListPrompts(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list prompts: %w", err)
		}
		s.prompts = prompts
	}
	return s.prompts, nil
}

func (s *Session) describePrompts(ctx context.Context) (string, error) {
	prompts, err := s.listPrompts(ctx)
	if err != nil {
		return "", err
	}
	if len(prompts) == 0 {
		return "No prompts available.", nil
	}

	var b strings.Builder
	b.WriteString("Available prompts:")
	for _, p := range prompts {
		names := make([]string, 0, len(p.Arguments))
		for _, arg := range p.Arguments {
			names = append(names, arg.Name)
		}
		fmt.Fprintf(&b, "\n  /%s %s", p.Name, strings.Join(names, " | "))
		if p.Description != "" {
			fmt.Fprintf(&b, "\n      %s", p.Description)
		}
	}
	return b.String(), nil
}

func (s *Session) describeTools(ctx context.Context) (string, error) {
	tools, err := s.config.toolsProvider.ListTools(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list tools: %w", err)
	}
	if len(tools) == 0 {
		return "No tools available.", nil
	}

	var b strings.Builder
	b.WriteString("Available tools:")
	for _, t := range tools {
		fmt.Fprintf(&b, "\n  %s: %s", t.Name, t.Description)
	}
	return b.String(), nil
}

// renderPrompt fetches the named prompt with positional arguments bound to
// its declared arguments. found is false for an unknown name, with text
// explaining why.
func (s *Session) renderPrompt(ctx context.Context, cmd Command) (text string, found bool, err error) {
	prompts, err := s.listPrompts(ctx)
	if err != nil {
		return "", false, err
	}

	var prompt *mcp.Prompt
	for i := range prompts {
		if prompts[i].Name == cmd.Name {
			prompt = &prompts[i]
			break
		}
	}
	if prompt == nil {
		return fmt.Sprintf("Unknown prompt %q. Type /prompts to see the available ones.", cmd.Name), false, nil
	}

	result, err := s.client.GetPrompt(ctx, prompt.Name, mcp.BindPromptArguments(prompt.Arguments, cmd.Args))
	if err != nil {
		return "", false, fmt.Errorf("failed to get prompt %s: %w", prompt.Name, err)
	}

	parts := make([]string, 0, len(result.Messages))
	for _, m := range result.Messages {
		parts = append(parts, m.Content.Text)
	}
	s.logger.WithFields(map[string]interface{}{"prompt": prompt.Name}).Debug("Rendered prompt")
	return strings.Join(parts, "\n\n"), true, nil
}
