// Package chat is an interactive assistant that talks to an Azure OpenAI
// deployment and answers tool calls through an MCP server.
package chat

import (
	"errors"
	"fmt"
)

// Message roles understood by the provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const (
	defaultMaxToken    int64   = 500
	defaultTemperature float64 = 0.7

	// maxToolRounds bounds how many times one turn may go back to the model
	// with tool results.
	maxToolRounds = 5
)

// ErrQuit is returned by Session.Handle when the user asked to leave.
var ErrQuit = errors.New("quit")

// ErrTooManyToolRounds is returned when the model keeps requesting tools
// after maxToolRounds rounds.
var ErrTooManyToolRounds = errors.New("model requested too many tool rounds")

// Message is one conversation turn.
type Message struct {
	Role string
	Text string
}

// Response is the final assistant answer of one turn. Token counts add up
// every completion made while resolving tool calls.
type Response struct {
	Text             string
	TotalInputToken  int
	TotalOutputToken int
	CompletionTime   float64
}

// Error is a malformed or empty completion.
type Error struct {
	Code    int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("chat error %d: %s", e.Code, e.Message)
}

// RequestConfig holds per-request generation settings.
type RequestConfig struct {
	maxToken      int64
	temperature   float64
	topP          float64
	toolsProvider *ToolsProvider
}

// RequestOption mutates a RequestConfig.
type RequestOption func(*RequestConfig)

// NewRequestConfig returns the defaults (500 tokens, temperature 0.7, no
// top_p, no tools) with opts applied.
func NewRequestConfig(opts ...RequestOption) RequestConfig {
	cfg := RequestConfig{
		maxToken:    defaultMaxToken,
		temperature: defaultTemperature,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func WithMaxToken(maxToken int64) RequestOption {
	return func(c *RequestConfig) {
		c.maxToken = maxToken
	}
}

func WithTemperature(temperature float64) RequestOption {
	return func(c *RequestConfig) {
		c.temperature = temperature
	}
}

// WithTopP sets nucleus sampling. Zero leaves it unset.
func WithTopP(topP float64) RequestOption {
	return func(c *RequestConfig) {
		c.topP = topP
	}
}

// WithToolsProvider advertises the provider's tools to the model.
func WithToolsProvider(p *ToolsProvider) RequestOption {
	return func(c *RequestConfig) {
		c.toolsProvider = p
	}
}
