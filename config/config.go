// Package config loads server and chat settings from defaults, an optional
// config file, a .env file, environment variables and command-line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable derived from a key,
// e.g. WEATHER_MCP_HTTP_ADDR for http.addr.
const EnvPrefix = "WEATHER_MCP"

const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type HTTPConfig struct {
	Addr           string   `mapstructure:"addr"`
	Path           string   `mapstructure:"path"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Server holds the settings of the weather-mcp command.
type Server struct {
	Name       string     `mapstructure:"name"`
	Version    string     `mapstructure:"version"`
	Transport  string     `mapstructure:"transport"`
	StrictInit bool       `mapstructure:"strict_init"`
	HTTP       HTTPConfig `mapstructure:"http"`
	Log        LogConfig  `mapstructure:"log"`
}

type AzureOpenAI struct {
	Endpoint       string `mapstructure:"endpoint"`
	APIKey         string `mapstructure:"api_key"`
	DeploymentName string `mapstructure:"deployment_name"`
}

// Chat holds the settings of the weather-chat command.
type Chat struct {
	AzureOpenAI   AzureOpenAI `mapstructure:"azure_openai"`
	ServerCommand string      `mapstructure:"server_command"`
	ServerArgs    []string    `mapstructure:"server_args"`
	ServerURL     string      `mapstructure:"server_url"`
	SystemPrompt  string      `mapstructure:"system_prompt"`
	MaxTokens     int64       `mapstructure:"max_tokens"`
	Temperature   float64     `mapstructure:"temperature"`
	Stream        bool        `mapstructure:"stream"`
	Log           LogConfig   `mapstructure:"log"`
}

// Options selects the sources Load reads besides defaults and environment.
type Options struct {
	// ConfigFile is an optional YAML, TOML or JSON file. A missing explicit
	// file is an error.
	ConfigFile string
	// EnvFile is loaded into the environment before binding. Empty means
	// ".env", which may be absent.
	EnvFile string
	// Flags are bound by name: a flag "http-addr" overrides key "http.addr".
	Flags *pflag.FlagSet
}

func setServerDefaults(v *viper.Viper) {
	v.SetDefault("name", "weather-server")
	v.SetDefault("version", "1.0.0")
	v.SetDefault("transport", TransportStdio)
	v.SetDefault("strict_init", false)
	v.SetDefault("http.addr", ":8000")
	v.SetDefault("http.path", "/mcp")
	v.SetDefault("http.allowed_origins", []string{})
	setLogDefaults(v)
}

func setChatDefaults(v *viper.Viper) {
	v.SetDefault("azure_openai.endpoint", "")
	v.SetDefault("azure_openai.api_key", "")
	v.SetDefault("azure_openai.deployment_name", "")
	v.SetDefault("server_command", "weather-mcp")
	v.SetDefault("server_args", []string{})
	v.SetDefault("server_url", "")
	v.SetDefault("system_prompt", "You are a helpful AI assistant.")
	v.SetDefault("max_tokens", 500)
	v.SetDefault("temperature", 0.7)
	v.SetDefault("stream", false)
	setLogDefaults(v)
}

func setLogDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

func bindChatEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"azure_openai.endpoint":        {"AZURE_OPENAI_ENDPOINT"},
		"azure_openai.api_key":         {"AZURE_OPENAI_API_KEY"},
		"azure_openai.deployment_name": {"AZURE_OPENAI_DEPLOYMENT_NAME", "AZURE_OPENAI_DEPLOYMENT"},
	}
	for key, names := range bindings {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		args := append([]string{key, prefixed}, names...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

func newViper(opts Options) (*viper.Viper, error) {
	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigFile, err)
		}
	}
	return v, nil
}

func loadEnvFile(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// bindFlags binds every key that has a flag of the same name, with dots and
// underscores spelled as dashes.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	for _, key := range v.AllKeys() {
		name := strings.NewReplacer(".", "-", "_", "-").Replace(key)
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}
	return nil
}

// LoadServer resolves the server settings.
func LoadServer(opts Options) (*Server, error) {
	v, err := newViper(opts)
	if err != nil {
		return nil, err
	}
	setServerDefaults(v)
	if err := bindFlags(v, opts.Flags); err != nil {
		return nil, err
	}

	cfg := &Server{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadChat resolves the chat settings.
func LoadChat(opts Options) (*Chat, error) {
	v, err := newViper(opts)
	if err != nil {
		return nil, err
	}
	setChatDefaults(v)
	if err := bindChatEnv(v); err != nil {
		return nil, err
	}
	if err := bindFlags(v, opts.Flags); err != nil {
		return nil, err
	}

	cfg := &Chat{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Server) Validate() error {
	switch c.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("unsupported transport %q (want %s or %s)", c.Transport, TransportStdio, TransportHTTP)
	}
	if c.Transport == TransportHTTP {
		if c.HTTP.Addr == "" {
			return errors.New("http.addr is required for the http transport")
		}
		if !strings.HasPrefix(c.HTTP.Path, "/") {
			return fmt.Errorf("http.path must start with '/', got %q", c.HTTP.Path)
		}
	}
	return c.Log.Validate()
}

func (c *Chat) Validate() error {
	var missing []string
	if c.AzureOpenAI.Endpoint == "" {
		missing = append(missing, "AZURE_OPENAI_ENDPOINT")
	}
	if c.AzureOpenAI.APIKey == "" {
		missing = append(missing, "AZURE_OPENAI_API_KEY")
	}
	if c.AzureOpenAI.DeploymentName == "" {
		missing = append(missing, "AZURE_OPENAI_DEPLOYMENT_NAME")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("max_tokens must be positive, got %d", c.MaxTokens)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be within [0, 2], got %g", c.Temperature)
	}
	return c.Log.Validate()
}

func (c LogConfig) Validate() error {
	switch c.Format {
	case "text", "json", "zap":
	default:
		return fmt.Errorf("unsupported log format %q", c.Format)
	}
	switch strings.ToLower(c.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unsupported log level %q", c.Level)
	}
	return nil
}
