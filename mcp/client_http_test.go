package mcp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestHTTPClient_RoundTrip(t *testing.T) {
	s, ts := newTestHTTPServer(t)
	ctx := context.Background()

	client := NewHTTPClient(HTTPClientConfig{URL: ts.URL + "/mcp"})
	require.NoError(t, client.Connect(ctx))
	assert.NotEmpty(t, client.SessionID())
	assert.Equal(t, "weather-server", client.ServerInfo().Name)
	assert.Equal(t, 1, s.SessionCount())

	tools, err := client.ListTools(ctx)
	require.NoError(t, err)
	assert.Len(t, tools, 4)

	result, err := client.CallTool(ctx, "count", map[string]any{"n": 0})
	require.NoError(t, err)
	assert.Equal(t, int64(1), gjson.Get(result.Content[0].Text, "n").Int())

	prompts, err := client.ListPrompts(ctx)
	require.NoError(t, err)
	assert.Len(t, prompts, 2)

	rendered, err := client.GetPrompt(ctx, "compare", map[string]any{"a": "x", "b": "y"})
	require.NoError(t, err)
	assert.Equal(t, "Compare x with y. x first.", rendered.Messages[0].Content.Text)

	require.NoError(t, client.Close())
	assert.Equal(t, 0, s.SessionCount())
	assert.Empty(t, client.SessionID())
}

func TestHTTPClient_ServerError(t *testing.T) {
	_, ts := newTestHTTPServer(t)
	ctx := context.Background()

	client := NewHTTPClient(HTTPClientConfig{URL: ts.URL + "/mcp"})
	require.NoError(t, client.Connect(ctx))
	defer client.Close()

	_, err := client.GetPrompt(ctx, "nope", nil)
	var rpcErr *Error
	require.True(t, errors.As(err, &rpcErr), "got %v", err)
	assert.Equal(t, ErrorCodeInvalidParams, rpcErr.Code)
}

func TestHTTPClient_EventStreamReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(": keep-alive\n\nevent: message\ndata: {\"jsonrpc\":\"2.0\",\"id\":1,\"result\":{}}\n\n"))
	}))
	defer srv.Close()

	client := NewHTTPClient(HTTPClientConfig{URL: srv.URL})
	err := client.call(context.Background(), "ping", nil, nil)
	assert.NoError(t, err)
}

func TestHTTPClient_UnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "session not found", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewHTTPClient(HTTPClientConfig{URL: srv.URL})
	err := client.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestHTTPClient_CustomHeaders(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{}}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(HTTPClientConfig{URL: srv.URL, Headers: map[string]string{"Authorization": "Bearer t"}})
	require.NoError(t, client.call(context.Background(), "ping", nil, nil))
	assert.Equal(t, "Bearer t", got)
}
