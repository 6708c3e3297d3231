package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaharia-lab/weather-mcp/observability"
)

const (
	// SessionHeader carries the session id issued by initialize.
	SessionHeader = "Mcp-Session-Id"

	defaultHTTPAddress  = ":8000"
	defaultEndpointPath = "/mcp"
	maxRequestBodyBytes = 1 << 20
)

// HTTPServerOption configures a StreamableHTTPServer.
type HTTPServerOption func(*StreamableHTTPServer)

// UseAddress sets the listen address.
func UseAddress(address string) HTTPServerOption {
	return func(s *StreamableHTTPServer) {
		s.address = address
	}
}

// UseEndpointPath sets the path of the single MCP endpoint.
func UseEndpointPath(path string) HTTPServerOption {
	return func(s *StreamableHTTPServer) {
		if path != "" {
			s.path = path
		}
	}
}

// UseAllowedOrigins restricts the CORS allow-list. An empty list allows any origin.
func UseAllowedOrigins(origins ...string) HTTPServerOption {
	return func(s *StreamableHTTPServer) {
		s.allowedOrigins = origins
	}
}

// StreamableHTTPServer serves MCP over a single HTTP endpoint. Each POST
// carries one message or batch and gets its reply in the response body.
type StreamableHTTPServer struct {
	*BaseServer
	address        string
	path           string
	allowedOrigins []string

	sessionsMu sync.RWMutex
	sessions   map[string]*Session
}

// NewStreamableHTTPServer creates a new StreamableHTTPServer.
func NewStreamableHTTPServer(baseServer *BaseServer, opts ...HTTPServerOption) *StreamableHTTPServer {
	s := &StreamableHTTPServer{
		BaseServer: baseServer,
		address:    defaultHTTPAddress,
		path:       defaultEndpointPath,
		sessions:   make(map[string]*Session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP handler with CORS applied.
func (s *StreamableHTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.path, s.handleEndpoint)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return s.cors(mux)
}

func (s *StreamableHTTPServer) cors(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowed := s.allowOrigin(origin); allowed != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
		}
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Accept, "+SessionHeader)
		w.Header().Set("Access-Control-Expose-Headers", SessionHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}

func (s *StreamableHTTPServer) allowOrigin(origin string) string {
	if len(s.allowedOrigins) == 0 {
		return "*"
	}
	for _, o := range s.allowedOrigins {
		if o == "*" || o == origin {
			return origin
		}
	}
	return ""
}

func (s *StreamableHTTPServer) handleEndpoint(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handlePost(w, r)
	case http.MethodDelete:
		s.handleDelete(w, r)
	default:
		w.Header().Set("Allow", "POST, DELETE, OPTIONS")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *StreamableHTTPServer) handlePost(w http.ResponseWriter, r *http.Request) {
	logger := s.logger.WithFields(map[string]interface{}{"remote": r.RemoteAddr})

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodyBytes+1))
	if err != nil {
		logger.WithErr(err).Error("Failed to read request body")
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	if len(body) > maxRequestBodyBytes {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	session, isNew, found := s.resolveSession(r, body)
	if !found {
		logger.Warn("Unknown session id")
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	reply, ok := s.HandleMessage(r.Context(), session, body)
	if isNew {
		if session.Initialized() {
			s.sessionsMu.Lock()
			s.sessions[session.ID] = session
			s.sessionsMu.Unlock()
			w.Header().Set(SessionHeader, session.ID)
			logger.WithFields(map[string]interface{}{"session": session.ID}).Info("Session created")
		}
	}

	if !ok {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if wantsEventStream(r.Header.Get("Accept")) {
		writeEvent(w, reply)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(reply)
}

// resolveSession finds the session named by the request header. Without a
// header a throwaway session is used, and it is promoted to a stored one when
// the body initializes it. found is false for unknown ids.
func (s *StreamableHTTPServer) resolveSession(r *http.Request, body []byte) (session *Session, isNew, found bool) {
	id := strings.TrimSpace(r.Header.Get(SessionHeader))
	if id == "" {
		return s.NewSession(uuid.NewString()), containsInitialize(body), true
	}

	s.sessionsMu.RLock()
	session, found = s.sessions[id]
	s.sessionsMu.RUnlock()
	return session, false, found
}

func (s *StreamableHTTPServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.Header.Get(SessionHeader))
	if id == "" {
		http.Error(w, "missing "+SessionHeader, http.StatusBadRequest)
		return
	}

	s.sessionsMu.Lock()
	_, found := s.sessions[id]
	delete(s.sessions, id)
	s.sessionsMu.Unlock()

	if !found {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	s.logger.WithFields(map[string]interface{}{"session": id}).Info("Session terminated")
	w.WriteHeader(http.StatusNoContent)
}

// SessionCount returns the number of live sessions.
func (s *StreamableHTTPServer) SessionCount() int {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	return len(s.sessions)
}

// Run starts listening and blocks until ctx is cancelled or the listener fails.
func (s *StreamableHTTPServer) Run(ctx context.Context) (err error) {
	ctx, span := observability.StartSpan(ctx, "StreamableHTTPServer.Run")
	defer func() {
		observability.EndSpan(span, err)
	}()

	server := &http.Server{
		BaseContext: func(listener net.Listener) context.Context {
			return ctx
		},
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Infof("Starting HTTP server on %s%s", s.address, s.path)

	errChan := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Warn("Context cancelled, shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err = server.Shutdown(shutdownCtx); err != nil {
			s.logger.WithErr(err).Error("Error during server shutdown")
			return fmt.Errorf("error during server shutdown: %w", err)
		}

		s.logger.Info("Server gracefully shut down")
		return nil
	case err = <-errChan:
		s.logger.WithErr(err).Error("HTTP server failed")
		return fmt.Errorf("server error: %w", err)
	}
}

// wantsEventStream reports whether text/event-stream is preferred over JSON.
func wantsEventStream(accept string) bool {
	stream, jsonQ := -1.0, -1.0
	for _, part := range strings.Split(accept, ",") {
		mediaType, q := parseAcceptPart(part)
		switch mediaType {
		case "text/event-stream":
			stream = q
		case "application/json", "*/*", "application/*":
			if q > jsonQ {
				jsonQ = q
			}
		}
	}
	return stream > 0 && stream > jsonQ
}

func parseAcceptPart(part string) (string, float64) {
	fields := strings.Split(part, ";")
	mediaType := strings.ToLower(strings.TrimSpace(fields[0]))
	q := 1.0
	for _, f := range fields[1:] {
		f = strings.TrimSpace(f)
		if strings.HasPrefix(f, "q=") {
			q = parseQuality(f[2:])
		}
	}
	return mediaType, q
}

// parseQuality reads a q-value clamped to [0,1]. A malformed value counts as 0.
func parseQuality(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	switch {
	case err != nil, math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func writeEvent(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// containsInitialize reports whether a message or batch holds an initialize request.
func containsInitialize(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	var envelopes []struct {
		Method string `json:"method"`
	}
	if len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &envelopes); err != nil {
			return false
		}
	} else {
		var one struct {
			Method string `json:"method"`
		}
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return false
		}
		envelopes = append(envelopes, one)
	}
	for _, p := range envelopes {
		if p.Method == "initialize" {
			return true
		}
	}
	return false
}
