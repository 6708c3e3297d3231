package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noEnvFile points at a file that must not exist so the working directory's
// .env never leaks into a test.
func noEnvFile(t *testing.T) Options {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.env")
	require.NoError(t, os.WriteFile(path, nil, 0o600))
	return Options{EnvFile: path}
}

func TestLoadServer_Defaults(t *testing.T) {
	cfg, err := LoadServer(noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "weather-server", cfg.Name)
	assert.Equal(t, "1.0.0", cfg.Version)
	assert.Equal(t, TransportStdio, cfg.Transport)
	assert.False(t, cfg.StrictInit)
	assert.Equal(t, ":8000", cfg.HTTP.Addr)
	assert.Equal(t, "/mcp", cfg.HTTP.Path)
	assert.Empty(t, cfg.HTTP.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadServer_Env(t *testing.T) {
	t.Setenv("WEATHER_MCP_TRANSPORT", "http")
	t.Setenv("WEATHER_MCP_HTTP_ADDR", "127.0.0.1:9999")
	t.Setenv("WEATHER_MCP_HTTP_ALLOWED_ORIGINS", "http://a.example,http://b.example")
	t.Setenv("WEATHER_MCP_STRICT_INIT", "true")
	t.Setenv("WEATHER_MCP_LOG_FORMAT", "json")

	cfg, err := LoadServer(noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, TransportHTTP, cfg.Transport)
	assert.Equal(t, "127.0.0.1:9999", cfg.HTTP.Addr)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.HTTP.AllowedOrigins)
	assert.True(t, cfg.StrictInit)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadServer_Flags(t *testing.T) {
	t.Setenv("WEATHER_MCP_TRANSPORT", "stdio")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("transport", TransportStdio, "")
	flags.String("http-addr", ":8000", "")
	flags.String("log-level", "info", "")
	require.NoError(t, flags.Parse([]string{"--transport=http", "--http-addr=:7000", "--log-level=debug"}))

	opts := noEnvFile(t)
	opts.Flags = flags
	cfg, err := LoadServer(opts)
	require.NoError(t, err)

	assert.Equal(t, TransportHTTP, cfg.Transport, "flags win over env")
	assert.Equal(t, ":7000", cfg.HTTP.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadServer_UnchangedFlagKeepsEnv(t *testing.T) {
	t.Setenv("WEATHER_MCP_HTTP_PATH", "/rpc")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("http-path", "/mcp", "")
	require.NoError(t, flags.Parse(nil))

	opts := noEnvFile(t)
	opts.Flags = flags
	cfg, err := LoadServer(opts)
	require.NoError(t, err)
	assert.Equal(t, "/rpc", cfg.HTTP.Path)
}

func TestLoadServer_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weather.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transport: http\nhttp:\n  addr: \":8123\"\n  path: /weather\nlog:\n  level: warn\n"), 0o600))

	opts := noEnvFile(t)
	opts.ConfigFile = path
	cfg, err := LoadServer(opts)
	require.NoError(t, err)

	assert.Equal(t, TransportHTTP, cfg.Transport)
	assert.Equal(t, ":8123", cfg.HTTP.Addr)
	assert.Equal(t, "/weather", cfg.HTTP.Path)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadServer_MissingConfigFile(t *testing.T) {
	opts := noEnvFile(t)
	opts.ConfigFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := LoadServer(opts)
	assert.Error(t, err)
}

func TestServer_Validate(t *testing.T) {
	valid := Server{Transport: TransportHTTP, HTTP: HTTPConfig{Addr: ":1", Path: "/mcp"}, Log: LogConfig{Level: "info", Format: "text"}}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Server)
	}{
		{name: "bad transport", mutate: func(s *Server) { s.Transport = "websocket" }},
		{name: "empty addr", mutate: func(s *Server) { s.HTTP.Addr = "" }},
		{name: "relative path", mutate: func(s *Server) { s.HTTP.Path = "mcp" }},
		{name: "bad log format", mutate: func(s *Server) { s.Log.Format = "xml" }},
		{name: "bad log level", mutate: func(s *Server) { s.Log.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid
			tt.mutate(&s)
			assert.Error(t, s.Validate())
		})
	}
}

func setAzureEnv(t *testing.T) {
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://example.openai.azure.com")
	t.Setenv("AZURE_OPENAI_API_KEY", "secret")
	t.Setenv("AZURE_OPENAI_DEPLOYMENT_NAME", "gpt-4o-mini")
}

func TestLoadChat(t *testing.T) {
	setAzureEnv(t)

	cfg, err := LoadChat(noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "https://example.openai.azure.com", cfg.AzureOpenAI.Endpoint)
	assert.Equal(t, "secret", cfg.AzureOpenAI.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.AzureOpenAI.DeploymentName)
	assert.Equal(t, int64(500), cfg.MaxTokens)
	assert.InDelta(t, 0.7, cfg.Temperature, 1e-9)
	assert.Equal(t, "You are a helpful AI assistant.", cfg.SystemPrompt)
	assert.Empty(t, cfg.ServerURL)
	assert.False(t, cfg.Stream)
}

func TestLoadChat_StreamFlag(t *testing.T) {
	setAzureEnv(t)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Bool("stream", false, "")
	require.NoError(t, flags.Parse([]string{"--stream"}))

	opts := noEnvFile(t)
	opts.Flags = flags
	cfg, err := LoadChat(opts)
	require.NoError(t, err)
	assert.True(t, cfg.Stream)
}

func TestLoadChat_PrefixedEnv(t *testing.T) {
	setAzureEnv(t)
	t.Setenv("WEATHER_MCP_AZURE_OPENAI_DEPLOYMENT_NAME", "override")
	t.Setenv("WEATHER_MCP_SERVER_URL", "http://localhost:8000/mcp")

	cfg, err := LoadChat(noEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, "override", cfg.AzureOpenAI.DeploymentName)
	assert.Equal(t, "http://localhost:8000/mcp", cfg.ServerURL)
}

func TestLoadChat_MissingCredentials(t *testing.T) {
	t.Setenv("AZURE_OPENAI_ENDPOINT", "")
	t.Setenv("AZURE_OPENAI_API_KEY", "")
	t.Setenv("AZURE_OPENAI_DEPLOYMENT_NAME", "")

	_, err := LoadChat(noEnvFile(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AZURE_OPENAI_ENDPOINT")
	assert.Contains(t, err.Error(), "AZURE_OPENAI_API_KEY")
}

func TestLoadChat_EnvFile(t *testing.T) {
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://from-shell.example")

	path := filepath.Join(t.TempDir(), "chat.env")
	require.NoError(t, os.WriteFile(path, []byte(
		"AZURE_OPENAI_ENDPOINT=https://from-file.example\n"+
			"WEATHER_MCP_TEST_ONLY_API_KEY=from-file\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("WEATHER_MCP_TEST_ONLY_API_KEY") })

	t.Setenv("AZURE_OPENAI_API_KEY", "k")
	t.Setenv("AZURE_OPENAI_DEPLOYMENT_NAME", "d")

	cfg, err := LoadChat(Options{EnvFile: path})
	require.NoError(t, err)
	assert.Equal(t, "https://from-shell.example", cfg.AzureOpenAI.Endpoint, "existing env is not overridden")
	assert.Equal(t, "from-file", os.Getenv("WEATHER_MCP_TEST_ONLY_API_KEY"))
}

func TestLoadChat_MissingExplicitEnvFile(t *testing.T) {
	setAzureEnv(t)
	_, err := LoadChat(Options{EnvFile: filepath.Join(t.TempDir(), "nope.env")})
	assert.Error(t, err)
}
