package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/shaharia-lab/weather-mcp/observability"
)

type StdIOClientConfig struct {
	ClientName    string
	ClientVersion string
	Logger        observability.Logger
	Reader        io.Reader
	Writer        io.Writer
	// Timeout bounds each request. Zero means 30 seconds.
	Timeout time.Duration
}

// StdIOClient talks to an MCP server over newline-delimited JSON, typically
// the stdin/stdout pipes of a child process.
type StdIOClient struct {
	config StdIOClientConfig
	logger observability.Logger

	mu               sync.RWMutex
	state            ConnectionState
	serverInfo       ServerInfo
	responseHandlers map[string]chan *reply
	nextRequestID    int64

	writeMu   sync.Mutex
	stopChan  chan struct{}
	closeOnce sync.Once
}

func NewStdIOClient(config StdIOClientConfig) *StdIOClient {
	if config.ClientName == "" {
		config.ClientName = defaultClientName
	}
	if config.ClientVersion == "" {
		config.ClientVersion = defaultClientVersion
	}
	if config.Logger == nil {
		config.Logger = observability.NewNullLogger()
	}
	if config.Timeout == 0 {
		config.Timeout = defaultClientTimeout
	}

	return &StdIOClient{
		config:           config,
		logger:           config.Logger.WithFields(map[string]interface{}{"transport": "stdio"}),
		state:            Disconnected,
		responseHandlers: make(map[string]chan *reply),
		stopChan:         make(chan struct{}),
	}
}

// Connect starts the reader and performs the initialize handshake.
func (c *StdIOClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Disconnected {
		c.mu.Unlock()
		return fmt.Errorf("client is already connected or connecting")
	}
	c.state = Connecting
	c.mu.Unlock()

	go c.processIncomingMessages()

	result, err := initialize(ctx, c, c.config.ClientName, c.config.ClientVersion)
	if err != nil {
		c.setState(Disconnected)
		return err
	}

	c.mu.Lock()
	c.state = Connected
	c.serverInfo = result.ServerInfo
	c.mu.Unlock()

	c.logger.WithFields(map[string]interface{}{
		"server":          result.ServerInfo.Name,
		"protocolVersion": result.ProtocolVersion,
	}).Info("Connected to MCP server")
	return nil
}

func (c *StdIOClient) setState(state ConnectionState) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

// State returns the current connection state.
func (c *StdIOClient) State() ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *StdIOClient) ServerInfo() ServerInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverInfo
}

func (c *StdIOClient) processIncomingMessages() {
	defer c.shutdown()

	scanner := bufio.NewScanner(c.config.Reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var resp reply
		if err := json.Unmarshal(line, &resp); err != nil {
			c.logger.WithErr(err).Warn("Failed to parse response")
			continue
		}
		if len(resp.ID) == 0 {
			c.logger.Debug("Ignoring message without id")
			continue
		}

		key := string(resp.ID)
		c.mu.RLock()
		ch, exists := c.responseHandlers[key]
		c.mu.RUnlock()

		if !exists {
			c.logger.WithFields(map[string]interface{}{"id": key}).Warn("No handler found for response")
			continue
		}
		select {
		case ch <- &resp:
		default:
			c.logger.WithFields(map[string]interface{}{"id": key}).Warn("Handler channel full")
		}
	}

	if err := scanner.Err(); err != nil {
		c.logger.WithErr(err).Error("Scanner error")
	}
}

func (c *StdIOClient) call(ctx context.Context, method string, params any, out any) error {
	select {
	case <-c.stopChan:
		return ErrClientClosed
	default:
	}

	c.mu.Lock()
	c.nextRequestID++
	id := strconv.FormatInt(c.nextRequestID, 10)
	responseChan := make(chan *reply, 1)
	c.responseHandlers[id] = responseChan
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.responseHandlers, id)
		c.mu.Unlock()
	}()

	rawParams, err := encodeParams(params)
	if err != nil {
		return err
	}

	request := Request{
		JSONRPC: JSONRPCVersion,
		ID:      json.RawMessage(id),
		Method:  method,
		Params:  rawParams,
	}
	if err := c.sendMessage(&request); err != nil {
		return err
	}

	timer := time.NewTimer(c.config.Timeout)
	defer timer.Stop()

	select {
	case resp := <-responseChan:
		return resp.decode(out)
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopChan:
		return ErrClientClosed
	case <-timer.C:
		return fmt.Errorf("%s request timeout", method)
	}
}

func (c *StdIOClient) notify(_ context.Context, method string, params any) error {
	rawParams, err := encodeParams(params)
	if err != nil {
		return err
	}
	return c.sendMessage(&Notification{JSONRPC: JSONRPCVersion, Method: method, Params: rawParams})
}

func (c *StdIOClient) sendMessage(message any) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	data = append(data, '\n')

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.config.Writer.Write(data); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

func (c *StdIOClient) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	return listTools(ctx, c)
}

func (c *StdIOClient) CallTool(ctx context.Context, name string, arguments any) (CallToolResult, error) {
	return callTool(ctx, c, name, arguments)
}

func (c *StdIOClient) ListPrompts(ctx context.Context) ([]Prompt, error) {
	return listPrompts(ctx, c)
}

func (c *StdIOClient) GetPrompt(ctx context.Context, name string, arguments map[string]any) (*GetPromptResult, error) {
	return getPrompt(ctx, c, name, arguments)
}

// Close stops the client. A Writer that is also an io.Closer is closed, which
// signals EOF to a child server process.
func (c *StdIOClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if closer, ok := c.config.Writer.(io.Closer); ok {
			err = closer.Close()
		}
	})
	c.shutdown()
	return err
}

func (c *StdIOClient) shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.stopChan:
	default:
		close(c.stopChan)
	}
	c.state = Disconnected
}
