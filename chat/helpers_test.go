package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/openai/openai-go/option"
	"github.com/shaharia-lab/weather-mcp/mcp"
)

// MockRoundTripper serves canned completion bodies in order and keeps every
// request body for inspection. Bodies starting with "data:" are served as
// server-sent events.
type MockRoundTripper struct {
	mu        sync.Mutex
	responses []string
	requests  []string
	urls      []string
	headers   []http.Header
}

func (m *MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	body, _ := io.ReadAll(req.Body)
	m.requests = append(m.requests, string(body))
	m.urls = append(m.urls, req.URL.String())
	m.headers = append(m.headers, req.Header.Clone())

	if len(m.responses) == 0 {
		return nil, fmt.Errorf("no more mock responses")
	}
	next := m.responses[0]
	m.responses = m.responses[1:]

	resp := &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(next)),
		Header:     make(http.Header),
		Request:    req,
	}
	if strings.HasPrefix(next, "data:") {
		resp.Header.Set("Content-Type", "text/event-stream")
	} else {
		resp.Header.Set("Content-Type", "application/json")
	}
	return resp, nil
}

func newMockClient(transport http.RoundTripper) *OpenAIClient {
	return NewOpenAIClient("test-key",
		option.WithHTTPClient(&http.Client{Transport: transport}),
		option.WithBaseURL("http://llm.test/v1/"),
		option.WithMaxRetries(0),
	)
}

func textCompletion(text string, in, out int) string {
	content, _ := json.Marshal(text)
	return fmt.Sprintf(`{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"created": 1,
		"model": "gpt-4o-mini",
		"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": %s}}],
		"usage": {"prompt_tokens": %d, "completion_tokens": %d, "total_tokens": %d}
	}`, content, in, out, in+out)
}

func toolCallCompletion(id, name, arguments string) string {
	args, _ := json.Marshal(arguments)
	return fmt.Sprintf(`{
		"id": "chatcmpl-2",
		"object": "chat.completion",
		"created": 1,
		"model": "gpt-4o-mini",
		"choices": [{
			"index": 0,
			"finish_reason": "tool_calls",
			"message": {
				"role": "assistant",
				"content": null,
				"tool_calls": [{"id": %q, "type": "function", "function": {"name": %q, "arguments": %s}}]
			}
		}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
	}`, id, name, args)
}

// eventStream frames chunks as a completion stream ending in [DONE].
func eventStream(chunks ...string) string {
	var b strings.Builder
	for _, c := range chunks {
		b.WriteString("data: " + c + "\n\n")
	}
	b.WriteString("data: [DONE]\n\n")
	return b.String()
}

func streamChunk(id, choice string) string {
	return fmt.Sprintf(`{"id":%q,"object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[%s]}`, id, choice)
}

func contentChunk(id, content string) string {
	text, _ := json.Marshal(content)
	return streamChunk(id, fmt.Sprintf(`{"index":0,"delta":{"role":"assistant","content":%s},"finish_reason":null}`, text))
}

func usageChunk(id string, in, out int) string {
	return fmt.Sprintf(`{"id":%q,"object":"chat.completion.chunk","created":1,"model":"gpt-4o-mini","choices":[],"usage":{"prompt_tokens":%d,"completion_tokens":%d,"total_tokens":%d}}`,
		id, in, out, in+out)
}

// textStream streams parts as content deltas followed by a usage chunk.
func textStream(in, out int, parts ...string) string {
	chunks := make([]string, 0, len(parts)+2)
	for _, part := range parts {
		chunks = append(chunks, contentChunk("chatcmpl-s1", part))
	}
	chunks = append(chunks,
		streamChunk("chatcmpl-s1", `{"index":0,"delta":{},"finish_reason":"stop"}`),
		usageChunk("chatcmpl-s1", in, out))
	return eventStream(chunks...)
}

// toolCallStream streams one tool call with its arguments split in two.
func toolCallStream(id, name, arguments string) string {
	half := len(arguments) / 2
	first, _ := json.Marshal(arguments[:half])
	second, _ := json.Marshal(arguments[half:])
	return eventStream(
		streamChunk("chatcmpl-s2", fmt.Sprintf(`{"index":0,"delta":{"role":"assistant","tool_calls":[{"index":0,"id":%q,"type":"function","function":{"name":%q,"arguments":%s}}]},"finish_reason":null}`, id, name, first)),
		streamChunk("chatcmpl-s2", fmt.Sprintf(`{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":%s}}]},"finish_reason":null}`, second)),
		streamChunk("chatcmpl-s2", `{"index":0,"delta":{},"finish_reason":"tool_calls"}`),
		usageChunk("chatcmpl-s2", 10, 5),
	)
}

// fakeClient is an in-memory mcp.Client.
type fakeClient struct {
	tools        []mcp.ToolDefinition
	prompts      []mcp.Prompt
	toolResult   func(name string, args json.RawMessage) (mcp.CallToolResult, error)
	calls        []string
	promptCalls  []map[string]any
	listPromptsN int
}

func (f *fakeClient) Connect(context.Context) error { return nil }
func (f *fakeClient) Close() error                  { return nil }
func (f *fakeClient) ServerInfo() mcp.ServerInfo    { return mcp.ServerInfo{Name: "fake"} }

func (f *fakeClient) ListTools(context.Context) ([]mcp.ToolDefinition, error) {
	return f.tools, nil
}

func (f *fakeClient) CallTool(_ context.Context, name string, arguments any) (mcp.CallToolResult, error) {
	raw, _ := arguments.(json.RawMessage)
	f.calls = append(f.calls, name+" "+string(raw))
	if f.toolResult == nil {
		return mcp.CallToolResult{Content: []mcp.ToolResultContent{{Type: "text", Text: "ok"}}}, nil
	}
	return f.toolResult(name, raw)
}

func (f *fakeClient) ListPrompts(context.Context) ([]mcp.Prompt, error) {
	f.listPromptsN++
	return f.prompts, nil
}

func (f *fakeClient) GetPrompt(_ context.Context, name string, arguments map[string]any) (*mcp.GetPromptResult, error) {
	f.promptCalls = append(f.promptCalls, arguments)
	text := name
	for _, arg := range []string{"location1", "location2", "location"} {
		if v, ok := arguments[arg]; ok {
			text += fmt.Sprintf(" %s=%v", arg, v)
		}
	}
	return &mcp.GetPromptResult{Messages: []mcp.PromptMessage{
		{Role: mcp.RoleUser, Content: mcp.PromptContent{Type: "text", Text: text}},
	}}, nil
}

var weatherTool = mcp.ToolDefinition{
	Name:        "get_current_weather",
	Description: "Get the current weather for a location",
	InputSchema: json.RawMessage(`{"type":"object","properties":{"location":{"type":"string"}},"required":["location"]}`),
}
