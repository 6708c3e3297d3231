package chat

import (
	"context"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
)

// OpenAIClientProvider is the part of the OpenAI API the provider needs.
type OpenAIClientProvider interface {
	CreateCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
	CreateStreamingCompletion(ctx context.Context, params openai.ChatCompletionNewParams) *ssestream.Stream[openai.ChatCompletionChunk]
}

// OpenAIClient implements OpenAIClientProvider with the official SDK.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient creates a client for api.openai.com or any compatible base
// URL passed through opts.
func NewOpenAIClient(apiKey string, opts ...option.RequestOption) *OpenAIClient {
	opts = append(opts, option.WithAPIKey(apiKey))
	return &OpenAIClient{
		client: openai.NewClient(opts...),
	}
}

// NewAzureOpenAIClient targets the Azure OpenAI v1 endpoint, which needs no
// api-version query parameter:
//
//	client := chat.NewAzureOpenAIClient("https://my-resource.openai.azure.com", key)
//
// The deployment name is passed as the model.
func NewAzureOpenAIClient(endpoint, apiKey string, opts ...option.RequestOption) *OpenAIClient {
	base := strings.TrimRight(endpoint, "/") + "/openai/v1/"
	opts = append([]option.RequestOption{
		option.WithBaseURL(base),
		option.WithHeader("api-key", apiKey),
	}, opts...)
	return NewOpenAIClient(apiKey, opts...)
}

func (c *OpenAIClient) CreateCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}

func (c *OpenAIClient) CreateStreamingCompletion(ctx context.Context, params openai.ChatCompletionNewParams) *ssestream.Stream[openai.ChatCompletionChunk] {
	return c.client.Chat.Completions.NewStreaming(ctx, params)
}
