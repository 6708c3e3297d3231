package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/shaharia-lab/weather-mcp/observability"
	"go.opentelemetry.io/otel/attribute"
)

// OpenAIProvider answers conversations with an OpenAI-compatible chat
// completion API, resolving tool calls in between.
type OpenAIProvider struct {
	client OpenAIClientProvider
	model  openai.ChatModel
	logger observability.Logger
}

// OpenAIProviderConfig holds configuration for OpenAIProvider.
type OpenAIProviderConfig struct {
	Client OpenAIClientProvider
	// Model is the model name, or the deployment name on Azure.
	Model  string
	Logger observability.Logger
}

// NewOpenAIProvider creates a provider. A missing logger discards output.
func NewOpenAIProvider(config OpenAIProviderConfig) *OpenAIProvider {
	if config.Logger == nil {
		config.Logger = observability.NewNullLogger()
	}
	return &OpenAIProvider{
		client: config.Client,
		model:  openai.ChatModel(config.Model),
		logger: config.Logger,
	}
}

func (p *OpenAIProvider) convertToOpenAIMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	openAIMessages := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleAssistant:
			openAIMessages = append(openAIMessages, openai.AssistantMessage(msg.Text))
		case RoleSystem:
			openAIMessages = append(openAIMessages, openai.SystemMessage(msg.Text))
		default:
			openAIMessages = append(openAIMessages, openai.UserMessage(msg.Text))
		}
	}
	return openAIMessages
}

func (p *OpenAIProvider) createCompletionParams(messages []openai.ChatCompletionMessageParamUnion, config RequestConfig) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:    openai.F(messages),
		Model:       openai.F(p.model),
		MaxTokens:   openai.Int(config.maxToken),
		Temperature: openai.Float(config.temperature),
	}
	if config.topP > 0 {
		params.TopP = openai.Float(config.topP)
	}
	return params
}

func (p *OpenAIProvider) toolParams(ctx context.Context, tools *ToolsProvider) ([]openai.ChatCompletionToolParam, error) {
	definitions, err := tools.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	params := make([]openai.ChatCompletionToolParam, 0, len(definitions))
	for _, tool := range definitions {
		schema := make(map[string]interface{})
		if err := json.Unmarshal(tool.InputSchema, &schema); err != nil {
			return nil, fmt.Errorf("failed to parse schema of tool %s: %w", tool.Name, err)
		}
		params = append(params, openai.ChatCompletionToolParam{
			Type: openai.F(openai.ChatCompletionToolTypeFunction),
			Function: openai.F(openai.FunctionDefinitionParam{
				Name:        openai.String(tool.Name),
				Description: openai.String(tool.Description),
				Parameters:  openai.F(openai.FunctionParameters(schema)),
			}),
		})
	}
	return params, nil
}

// GetResponse sends the conversation and returns the assistant's answer.
// When the model requests tools, each call is executed through the config's
// ToolsProvider and the results are sent back, for at most maxToolRounds
// rounds. Tool failures are reported to the model as text.
func (p *OpenAIProvider) GetResponse(ctx context.Context, messages []Message, config RequestConfig) (Response, error) {
	return p.respond(ctx, "OpenAIProvider.GetResponse", messages, config, p.client.CreateCompletion)
}

// GetStreamingResponse behaves like GetResponse but streams every round.
// onToken receives content deltas as they arrive; tool calls are collected
// from the stream and run once their round is complete.
func (p *OpenAIProvider) GetStreamingResponse(ctx context.Context, messages []Message, config RequestConfig, onToken func(string)) (Response, error) {
	complete := func(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
		return p.completeStreaming(ctx, params, onToken)
	}
	return p.respond(ctx, "OpenAIProvider.GetStreamingResponse", messages, config, complete)
}

type completeFunc func(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)

func (p *OpenAIProvider) respond(ctx context.Context, spanName string, messages []Message, config RequestConfig, complete completeFunc) (resp Response, err error) {
	ctx, span := observability.StartSpan(ctx, spanName)
	span.SetAttributes(
		attribute.String("model", string(p.model)),
		attribute.Int("message_count", len(messages)),
	)
	defer func() { observability.EndSpan(span, err) }()

	startTime := time.Now()
	params := p.createCompletionParams(p.convertToOpenAIMessages(messages), config)

	if config.toolsProvider != nil {
		tools, toolErr := p.toolParams(ctx, config.toolsProvider)
		if toolErr != nil {
			err = toolErr
			return Response{}, err
		}
		if len(tools) > 0 {
			params.Tools = openai.F(tools)
		}
	}

	for round := 0; ; round++ {
		completion, callErr := complete(ctx, params)
		if callErr != nil {
			err = fmt.Errorf("chat completion failed: %w", callErr)
			return Response{}, err
		}

		resp.TotalInputToken += int(completion.Usage.PromptTokens)
		resp.TotalOutputToken += int(completion.Usage.CompletionTokens)

		if len(completion.Choices) == 0 {
			err = &Error{Code: 400, Message: "no choices in response"}
			return Response{}, err
		}

		message := completion.Choices[0].Message
		if len(message.ToolCalls) == 0 || config.toolsProvider == nil {
			resp.Text = message.Content
			resp.CompletionTime = time.Since(startTime).Seconds()
			span.SetAttributes(
				attribute.Int("tool_rounds", round),
				attribute.Int("input_tokens", resp.TotalInputToken),
				attribute.Int("output_tokens", resp.TotalOutputToken),
			)
			return resp, nil
		}

		if round >= maxToolRounds {
			err = ErrTooManyToolRounds
			return Response{}, err
		}

		params.Messages.Value = append(params.Messages.Value, message)
		for _, toolCall := range message.ToolCalls {
			text := p.runTool(ctx, config.toolsProvider, toolCall.Function.Name, toolCall.Function.Arguments)
			params.Messages.Value = append(params.Messages.Value, openai.ToolMessage(toolCall.ID, text))
		}
	}
}

// completeStreaming runs one streamed round and folds its chunks into a
// complete ChatCompletion. Usage is only reported when requested through
// stream options.
func (p *OpenAIProvider) completeStreaming(ctx context.Context, params openai.ChatCompletionNewParams, onToken func(string)) (*openai.ChatCompletion, error) {
	params.StreamOptions = openai.F(openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: openai.F(true),
	})

	stream := p.client.CreateStreamingCompletion(ctx, params)
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		if !acc.AddChunk(chunk) {
			return nil, &Error{Code: 500, Message: "stream mixed chunks of different completions"}
		}
		if onToken != nil && len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			onToken(chunk.Choices[0].Delta.Content)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, err
	}

	if len(acc.Choices) > 0 && acc.Choices[0].Message.Role == "" {
		acc.Choices[0].Message.Role = openai.ChatCompletionMessageRoleAssistant
	}
	return &acc.ChatCompletion, nil
}

func (p *OpenAIProvider) runTool(ctx context.Context, tools *ToolsProvider, name, arguments string) string {
	logger := p.logger.WithFields(map[string]interface{}{"tool": name})
	logger.Debugf("Executing tool with arguments %s", arguments)

	result, err := tools.ExecuteTool(ctx, name, arguments)
	if err != nil {
		logger.WithErr(err).Warn("Tool call failed")
		return fmt.Sprintf("Error: %v", err)
	}

	text := resultText(result)
	if result.IsError {
		logger.Warnf("Tool reported an error: %s", text)
		return "Error: " + text
	}
	if text == "" {
		return "(no output)"
	}
	return text
}
