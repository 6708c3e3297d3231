package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync/atomic"

	"github.com/shaharia-lab/weather-mcp/observability"
	"go.opentelemetry.io/otel/attribute"
)

const (
	ProtocolVersion   = "2024-11-05"
	defaultServerName = "weather-server"
	serverVersion     = "1.0.0"
)

// ServerConfig holds all configuration for BaseServer
type ServerConfig struct {
	logger          observability.Logger
	protocolVersion string
	serverName      string
	serverVersion   string
	strictInit      bool
	toolManager     *ToolManager
	promptManager   *PromptManager
}

// ServerConfigOption is a function that modifies ServerConfig
type ServerConfigOption func(*ServerConfig)

// UseLogger sets a custom logger
func UseLogger(logger observability.Logger) ServerConfigOption {
	return func(c *ServerConfig) {
		c.logger = logger
	}
}

// UseServerInfo sets server name and version
func UseServerInfo(name, version string) ServerConfigOption {
	return func(c *ServerConfig) {
		c.serverName = name
		c.serverVersion = version
	}
}

// UseProtocolVersion overrides the protocol version announced by initialize.
func UseProtocolVersion(version string) ServerConfigOption {
	return func(c *ServerConfig) {
		c.protocolVersion = version
	}
}

// UseStrictInitialization rejects requests that arrive before initialize.
func UseStrictInitialization(strict bool) ServerConfigOption {
	return func(c *ServerConfig) {
		c.strictInit = strict
	}
}

// UseTools sets the tool registry
func UseTools(toolManager *ToolManager) ServerConfigOption {
	return func(c *ServerConfig) {
		c.toolManager = toolManager
	}
}

// UsePrompts sets the prompt registry
func UsePrompts(promptManager *PromptManager) ServerConfigOption {
	return func(c *ServerConfig) {
		c.promptManager = promptManager
	}
}

// Session is the per-connection protocol state.
type Session struct {
	ID          string
	initialized atomic.Bool
}

// Initialized reports whether initialize has been answered on this session.
func (s *Session) Initialized() bool {
	return s.initialized.Load()
}

// BaseServer is the transport-agnostic MCP protocol handler. Its registries
// are read-only after construction, so HandleMessage is safe for concurrent use.
type BaseServer struct {
	protocolVersion string
	logger          observability.Logger
	ServerInfo      ServerInfo
	capabilities    map[string]any
	strictInit      bool
	toolManager     *ToolManager
	promptManager   *PromptManager
}

// NewBaseServer creates a new BaseServer instance with the given options
func NewBaseServer(opts ...ServerConfigOption) (*BaseServer, error) {
	cfg, err := defaultConfig()
	if err != nil {
		return nil, err
	}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.toolManager == nil || cfg.promptManager == nil {
		return nil, fmt.Errorf("tool and prompt registries cannot be nil")
	}

	return &BaseServer{
		protocolVersion: cfg.protocolVersion,
		logger:          cfg.logger,
		ServerInfo: ServerInfo{
			Name:    cfg.serverName,
			Version: cfg.serverVersion,
		},
		capabilities: map[string]any{
			"tools":   map[string]any{},
			"prompts": map[string]any{},
		},
		strictInit:    cfg.strictInit,
		toolManager:   cfg.toolManager,
		promptManager: cfg.promptManager,
	}, nil
}

func defaultConfig() (*ServerConfig, error) {
	tm, err := NewToolManager()
	if err != nil {
		return nil, err
	}
	pm, err := NewPromptManager()
	if err != nil {
		return nil, err
	}

	return &ServerConfig{
		logger:          observability.NewNullLogger(),
		protocolVersion: ProtocolVersion,
		serverName:      defaultServerName,
		serverVersion:   serverVersion,
		toolManager:     tm,
		promptManager:   pm,
	}, nil
}

// NewSession creates protocol state for one connection.
func (s *BaseServer) NewSession(id string) *Session {
	return &Session{ID: id}
}

// HandleMessage processes one raw JSON-RPC message (or batch) and returns the
// encoded reply. ok is false when nothing must be written back, which is the
// case for notifications.
func (s *BaseServer) HandleMessage(ctx context.Context, session *Session, raw []byte) (reply []byte, ok bool) {
	trimmed := bytes.TrimSpace(raw)

	if len(trimmed) > 0 && trimmed[0] == '[' {
		return s.handleBatch(ctx, session, trimmed)
	}

	resp := s.handleSingle(ctx, session, trimmed)
	if resp == nil {
		return nil, false
	}
	return s.encode(resp), true
}

func (s *BaseServer) handleBatch(ctx context.Context, session *Session, raw []byte) ([]byte, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		s.logger.WithErr(err).Warn("Failed to parse batch")
		return s.encode(newErrorResponse(nil, ErrorCodeParseError, "Parse error", nil)), true
	}
	if len(items) == 0 {
		return s.encode(newErrorResponse(nil, ErrorCodeInvalidRequest, "Invalid Request", nil)), true
	}

	responses := make([]*Response, 0, len(items))
	for _, item := range items {
		if resp := s.handleSingle(ctx, session, item); resp != nil {
			responses = append(responses, resp)
		}
	}
	if len(responses) == 0 {
		return nil, false
	}

	out, err := json.Marshal(responses)
	if err != nil {
		s.logger.WithErr(err).Error("Failed to marshal batch response")
		return s.encode(newErrorResponse(nil, ErrorCodeInternal, "Internal error", nil)), true
	}
	return out, true
}

// handleSingle returns nil for notifications.
func (s *BaseServer) handleSingle(ctx context.Context, session *Session, raw []byte) *Response {
	if !json.Valid(raw) {
		s.logger.Warn("Received malformed JSON")
		return newErrorResponse(nil, ErrorCodeParseError, "Parse error", nil)
	}

	var request Request
	if err := json.Unmarshal(raw, &request); err != nil {
		s.logger.WithErr(err).Warn("Received invalid request")
		var id json.RawMessage
		if request.idPresent && request.validID() {
			id = request.ID
		}
		return newErrorResponse(id, ErrorCodeInvalidRequest, "Invalid Request", nil)
	}

	if request.JSONRPC != JSONRPCVersion || request.Method == "" || !request.validID() {
		if request.IsNotification() && request.Method != "" {
			return nil
		}
		id := request.ID
		if !request.validID() {
			id = nil
		}
		return newErrorResponse(id, ErrorCodeInvalidRequest, "Invalid Request", nil)
	}

	if request.IsNotification() {
		s.handleNotification(ctx, session, &request)
		return nil
	}

	return s.handleRequest(ctx, session, &request)
}

// handleRequest dispatches by method. Any failure, including a panic in a tool
// handler, is turned into a JSON-RPC error response.
func (s *BaseServer) handleRequest(ctx context.Context, session *Session, request *Request) (resp *Response) {
	ctx, span := observability.StartSpan(ctx, "BaseServer.handleRequest")
	span.SetAttributes(
		attribute.String("rpc.method", request.Method),
		attribute.String("rpc.id", string(request.ID)),
	)

	logger := s.logger.WithFields(map[string]interface{}{
		"method": request.Method,
		"id":     string(request.ID),
	})

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			logger.WithErr(err).Errorf("Recovered from panic in handler\n%s", debug.Stack())
			resp = newErrorResponse(request.ID, ErrorCodeInternal, "Internal error", nil)
		}
		observability.EndSpan(span, err)
	}()

	logger.Debug("Received request")

	if s.strictInit && request.Method != "initialize" && request.Method != "ping" && !session.Initialized() {
		logger.Warn("Received request before 'initialize'")
		return newErrorResponse(request.ID, ErrorCodeNotInitialized, "Server not initialized", nil)
	}

	var result any
	switch request.Method {
	case "initialize":
		result = s.handleInitialize(session, request, logger)
	case "ping":
		result = struct{}{}
	case "tools/list":
		result, err = s.handleToolsList(request)
	case "tools/call":
		result, err = s.handleToolsCall(ctx, request, logger)
	case "prompts/list":
		result, err = s.handlePromptsList(request)
	case "prompts/get":
		result, err = s.handlePromptGet(request)
	default:
		logger.Warn("Method not found")
		return newErrorResponse(request.ID, ErrorCodeMethodNotFound, "Method not found",
			map[string]string{"method": request.Method})
	}

	if err != nil {
		logger.WithErr(err).Warn("Request failed")
		return errorResponseFor(request.ID, err)
	}
	return newResultResponse(request.ID, result)
}

// handleInitialize answers identically regardless of the params content.
func (s *BaseServer) handleInitialize(session *Session, request *Request, logger observability.Logger) InitializeResult {
	var params InitializeParams
	if len(request.Params) > 0 {
		if err := json.Unmarshal(request.Params, &params); err != nil {
			logger.WithErr(err).Debug("Ignoring unparsable initialize params")
		}
	}

	logger.WithFields(map[string]interface{}{
		"client":          params.ClientInfo.Name,
		"clientVersion":   params.ClientInfo.Version,
		"protocolVersion": params.ProtocolVersion,
	}).Info("Client initializing")

	session.initialized.Store(true)

	return InitializeResult{
		ProtocolVersion: s.protocolVersion,
		Capabilities:    s.capabilities,
		ServerInfo:      s.ServerInfo,
	}
}

func (s *BaseServer) handleToolsList(request *Request) (ListToolsResult, error) {
	var params ListParams
	if err := unmarshalParams(request.Params, &params); err != nil {
		return ListToolsResult{}, err
	}
	return s.toolManager.ListTools(params.Cursor, 0), nil
}

func (s *BaseServer) handleToolsCall(ctx context.Context, request *Request, logger observability.Logger) (CallToolResult, error) {
	var params CallToolParams
	if err := unmarshalParams(request.Params, &params); err != nil {
		return CallToolResult{}, err
	}
	if params.Name == "" {
		return CallToolResult{}, &paramsError{reason: "missing tool name"}
	}

	ctx, span := observability.StartSpan(ctx, "ToolManager.CallTool")
	span.SetAttributes(attribute.String("tool_name", params.Name))

	result, err := s.toolManager.CallTool(ctx, params, logger)
	observability.EndSpan(span, err)
	if err != nil {
		return CallToolResult{}, &toolCallError{name: params.Name, err: err}
	}
	return result, nil
}

func (s *BaseServer) handlePromptsList(request *Request) (ListPromptsResult, error) {
	var params ListParams
	if err := unmarshalParams(request.Params, &params); err != nil {
		return ListPromptsResult{}, err
	}
	return s.promptManager.ListPrompts(params.Cursor, 0), nil
}

func (s *BaseServer) handlePromptGet(request *Request) (*GetPromptResult, error) {
	var params GetPromptParams
	if err := unmarshalParams(request.Params, &params); err != nil {
		return nil, err
	}

	result, err := s.promptManager.GetPrompt(params)
	if err != nil {
		return nil, &promptGetError{name: params.Name, err: err}
	}
	return result, nil
}

// handleNotification handles incoming notifications. They never get a reply.
func (s *BaseServer) handleNotification(_ context.Context, session *Session, notification *Request) {
	logger := s.logger.WithFields(map[string]interface{}{"method": notification.Method})

	switch notification.Method {
	case "notifications/initialized":
		logger.Debug("Client initialized")
	case "notifications/cancelled":
		var cancelParams struct {
			RequestID json.RawMessage `json:"requestId"`
			Reason    string          `json:"reason"`
		}
		if err := json.Unmarshal(notification.Params, &cancelParams); err == nil {
			// Requests complete synchronously, there is nothing left to cancel.
			logger.WithFields(map[string]interface{}{
				"requestId": string(cancelParams.RequestID),
				"reason":    cancelParams.Reason,
			}).Debug("Cancellation requested")
		}
	default:
		logger.Debug("Unhandled notification")
	}
}

func (s *BaseServer) encode(resp *Response) []byte {
	out, err := json.Marshal(resp)
	if err != nil {
		s.logger.WithErr(err).Error("Failed to marshal response")
		out, _ = json.Marshal(newErrorResponse(resp.ID, ErrorCodeInternal, "Internal error: failed to marshal response", nil))
	}
	return out
}

func unmarshalParams(raw json.RawMessage, v any) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return &paramsError{reason: err.Error()}
	}
	return nil
}

type paramsError struct {
	reason string
}

func (e *paramsError) Error() string { return "invalid params: " + e.reason }

type toolCallError struct {
	name string
	err  error
}

func (e *toolCallError) Error() string { return e.err.Error() }
func (e *toolCallError) Unwrap() error { return e.err }

type promptGetError struct {
	name string
	err  error
}

func (e *promptGetError) Error() string { return e.err.Error() }
func (e *promptGetError) Unwrap() error { return e.err }

// errorResponseFor maps handler errors onto JSON-RPC error objects.
func errorResponseFor(id json.RawMessage, err error) *Response {
	var (
		pe      *paramsError
		tool    *toolCallError
		promptE *promptGetError
		argE    *ArgumentError
	)

	data := map[string]string{}
	if errors.As(err, &tool) {
		data["tool"] = tool.name
	}
	if errors.As(err, &promptE) {
		data["prompt"] = promptE.name
	}
	if errors.As(err, &argE) && argE.Argument != "" {
		data["argument"] = argE.Argument
	}

	switch {
	case errors.As(err, &pe):
		return newErrorResponse(id, ErrorCodeInvalidParams, "Invalid params", map[string]string{"reason": pe.reason})
	case errors.Is(err, ErrToolNotFound):
		return newErrorResponse(id, ErrorCodeInvalidParams, "Unknown tool: "+data["tool"], data)
	case errors.Is(err, ErrPromptNotFound):
		return newErrorResponse(id, ErrorCodeInvalidParams, "Unknown prompt: "+data["prompt"], data)
	case errors.Is(err, ErrInvalidArguments):
		return newErrorResponse(id, ErrorCodeInvalidParams, err.Error(), data)
	default:
		return newErrorResponse(id, ErrorCodeInternal, "Internal error: "+err.Error(), data)
	}
}
