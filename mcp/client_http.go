package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shaharia-lab/weather-mcp/observability"
)

type HTTPClientConfig struct {
	// URL is the MCP endpoint, e.g. http://localhost:8000/mcp.
	URL           string
	HTTPClient    *http.Client
	ClientName    string
	ClientVersion string
	Logger        observability.Logger
	Headers       map[string]string
}

// HTTPClient talks to a Streamable HTTP MCP server. It remembers the session
// id issued by initialize and accepts both JSON and event-stream replies.
type HTTPClient struct {
	config HTTPClientConfig
	logger observability.Logger

	mu            sync.RWMutex
	state         ConnectionState
	sessionID     string
	serverInfo    ServerInfo
	nextRequestID int64
}

func NewHTTPClient(config HTTPClientConfig) *HTTPClient {
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: defaultClientTimeout}
	}
	if config.ClientName == "" {
		config.ClientName = defaultClientName
	}
	if config.ClientVersion == "" {
		config.ClientVersion = defaultClientVersion
	}
	if config.Logger == nil {
		config.Logger = observability.NewNullLogger()
	}

	return &HTTPClient{
		config: config,
		logger: config.Logger.WithFields(map[string]interface{}{"transport": "http", "url": config.URL}),
		state:  Disconnected,
	}
}

func (c *HTTPClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Disconnected {
		c.mu.Unlock()
		return fmt.Errorf("client is already connected or connecting")
	}
	c.state = Connecting
	c.mu.Unlock()

	result, err := initialize(ctx, c, c.config.ClientName, c.config.ClientVersion)
	if err != nil {
		c.mu.Lock()
		c.state = Disconnected
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.state = Connected
	c.serverInfo = result.ServerInfo
	c.mu.Unlock()

	c.logger.WithFields(map[string]interface{}{
		"server":  result.ServerInfo.Name,
		"session": c.SessionID(),
	}).Info("Connected to MCP server")
	return nil
}

// SessionID returns the session id issued by the server, if any.
func (c *HTTPClient) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

func (c *HTTPClient) ServerInfo() ServerInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverInfo
}

func (c *HTTPClient) call(ctx context.Context, method string, params any, out any) error {
	rawParams, err := encodeParams(params)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.nextRequestID++
	id := strconv.FormatInt(c.nextRequestID, 10)
	c.mu.Unlock()

	body, err := json.Marshal(Request{
		JSONRPC: JSONRPCVersion,
		ID:      json.RawMessage(id),
		Method:  method,
		Params:  rawParams,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.post(ctx, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	payload, err := readPayload(resp)
	if err != nil {
		return err
	}

	var r reply
	if err := json.Unmarshal(payload, &r); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if string(r.ID) != id {
		return fmt.Errorf("response id %s does not match request id %s", r.ID, id)
	}
	return r.decode(out)
}

func (c *HTTPClient) notify(ctx context.Context, method string, params any) error {
	rawParams, err := encodeParams(params)
	if err != nil {
		return err
	}
	body, err := json.Marshal(Notification{JSONRPC: JSONRPCVersion, Method: method, Params: rawParams})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	resp, err := c.post(ctx, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusAccepted && resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	return nil
}

func (c *HTTPClient) post(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")
	c.applyHeaders(req)

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if sid := resp.Header.Get(SessionHeader); sid != "" {
		c.mu.Lock()
		c.sessionID = sid
		c.mu.Unlock()
	}
	return resp, nil
}

func (c *HTTPClient) applyHeaders(req *http.Request) {
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}
	if sid := c.SessionID(); sid != "" {
		req.Header.Set(SessionHeader, sid)
	}
}

func (c *HTTPClient) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	return listTools(ctx, c)
}

func (c *HTTPClient) CallTool(ctx context.Context, name string, arguments any) (CallToolResult, error) {
	return callTool(ctx, c, name, arguments)
}

func (c *HTTPClient) ListPrompts(ctx context.Context) ([]Prompt, error) {
	return listPrompts(ctx, c)
}

func (c *HTTPClient) GetPrompt(ctx context.Context, name string, arguments map[string]any) (*GetPromptResult, error) {
	return getPrompt(ctx, c, name, arguments)
}

// Close terminates the server-side session, if one was issued.
func (c *HTTPClient) Close() error {
	sid := c.SessionID()

	c.mu.Lock()
	c.state = Disconnected
	c.sessionID = ""
	c.mu.Unlock()

	if sid == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.config.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set(SessionHeader, sid)

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to terminate session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return statusError(resp)
	}
	return nil
}

// readPayload extracts the JSON-RPC message from a JSON body or from the
// first message event of an event stream.
func readPayload(resp *http.Response) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "text/event-stream" {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response: %w", err)
		}
		return body, nil
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	event := "message"
	var data []string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if len(data) > 0 && event == "message" {
				return []byte(strings.Join(data, "\n")), nil
			}
			event, data = "message", nil
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event stream: %w", err)
	}
	if len(data) > 0 && event == "message" {
		return []byte(strings.Join(data, "\n")), nil
	}
	return nil, fmt.Errorf("event stream ended without a message")
}

func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
