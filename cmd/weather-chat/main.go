// Command weather-chat is an interactive Azure OpenAI chat that answers
// weather questions through the weather MCP server. By default it spawns
// weather-mcp as a child process speaking stdio; --server-url connects to a
// running Streamable HTTP server instead.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/shaharia-lab/weather-mcp/chat"
	"github.com/shaharia-lab/weather-mcp/config"
	"github.com/shaharia-lab/weather-mcp/mcp"
	"github.com/shaharia-lab/weather-mcp/observability"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile, envFile string

	cmd := &cobra.Command{
		Use:          "weather-chat",
		Short:        "Chat with Azure OpenAI using the weather MCP tools",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadChat(config.Options{
				ConfigFile: configFile,
				EnvFile:    envFile,
				Flags:      cmd.Flags(),
			})
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, os.Stdin, os.Stdout)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "config file (yaml, toml or json)")
	flags.StringVar(&envFile, "env-file", "", "env file to load (default .env if present)")
	flags.String("azure-openai-deployment-name", "", "Azure OpenAI deployment (overrides AZURE_OPENAI_DEPLOYMENT_NAME)")
	flags.String("server-command", "weather-mcp", "MCP server executable spawned over stdio")
	flags.StringSlice("server-args", nil, "arguments for the server executable")
	flags.String("server-url", "", "Streamable HTTP endpoint of a running server, e.g. http://localhost:8000/mcp")
	flags.String("system-prompt", "You are a helpful AI assistant.", "system message opening the conversation")
	flags.Int64("max-tokens", 500, "maximum tokens per completion")
	flags.Float64("temperature", 0.7, "sampling temperature")
	flags.Bool("stream", false, "print the answer as it is generated")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.String("log-format", "text", "log format: text, json or zap")
	return cmd
}

func run(ctx context.Context, cfg *config.Chat, in io.Reader, out io.Writer) error {
	logger, err := observability.NewLogger(cfg.Log.Format, cfg.Log.Level, os.Stderr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, cleanup, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	provider := chat.NewOpenAIProvider(chat.OpenAIProviderConfig{
		Client: chat.NewAzureOpenAIClient(cfg.AzureOpenAI.Endpoint, cfg.AzureOpenAI.APIKey),
		Model:  cfg.AzureOpenAI.DeploymentName,
		Logger: logger,
	})
	// streamed is set once the current answer started printing.
	var streamed bool
	var onToken func(string)
	if cfg.Stream {
		onToken = func(token string) {
			if !streamed {
				fmt.Fprint(out, "AI: ")
				streamed = true
			}
			fmt.Fprint(out, token)
		}
	}

	session := chat.NewSession(chat.SessionConfig{
		Provider:     provider,
		Client:       client,
		SystemPrompt: cfg.SystemPrompt,
		Options: []chat.RequestOption{
			chat.WithMaxToken(cfg.MaxTokens),
			chat.WithTemperature(cfg.Temperature),
		},
		OnToken: onToken,
		Logger:  logger,
	})

	info := client.ServerInfo()
	fmt.Fprintf(out, "AI Chat (Azure OpenAI v1 endpoint) connected to %s %s\n", info.Name, info.Version)
	fmt.Fprintln(out, "Type /prompts or /tools to explore, 'quit' to exit.")
	fmt.Fprintln(out)

	lines := readLines(in)
	for {
		fmt.Fprint(out, "You: ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return nil
			}
			line = l
		}

		streamed = false
		reply, err := session.Handle(ctx, line)
		if streamed {
			fmt.Fprintln(out)
		}
		switch {
		case errors.Is(err, chat.ErrQuit):
			fmt.Fprintln(out, "Goodbye!")
			return nil
		case err != nil:
			logger.WithErr(err).Error("Request failed")
			fmt.Fprintf(out, "Error: %v\n\n", err)
		case streamed:
			fmt.Fprintln(out)
		case reply != "":
			if kind := chat.ParseCommand(line).Kind; kind == chat.CommandMessage || kind == chat.CommandPrompt {
				fmt.Fprint(out, "AI: ")
			}
			fmt.Fprintf(out, "%s\n\n", reply)
		}
	}
}

// readLines delivers input lines until EOF. The goroutine may outlive run
// while blocked on a terminal read.
func readLines(in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()
	return lines
}

// connect returns a connected MCP client and the function that releases it.
func connect(ctx context.Context, cfg *config.Chat, logger observability.Logger) (mcp.Client, func(), error) {
	if cfg.ServerURL != "" {
		client := mcp.NewHTTPClient(mcp.HTTPClientConfig{URL: cfg.ServerURL, Logger: logger})
		if err := client.Connect(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to connect to %s: %w", cfg.ServerURL, err)
		}
		return client, func() { _ = client.Close() }, nil
	}

	proc := exec.CommandContext(ctx, cfg.ServerCommand, cfg.ServerArgs...)
	if strings.EqualFold(cfg.Log.Level, "debug") {
		proc.Stderr = os.Stderr
	}
	stdin, err := proc.StdinPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open server stdin: %w", err)
	}
	stdout, err := proc.StdoutPipe()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open server stdout: %w", err)
	}
	if err := proc.Start(); err != nil {
		return nil, nil, fmt.Errorf("failed to start %s: %w", cfg.ServerCommand, err)
	}

	client := mcp.NewStdIOClient(mcp.StdIOClientConfig{Reader: stdout, Writer: stdin, Logger: logger})
	cleanup := func() {
		_ = client.Close()
		if err := proc.Wait(); err != nil {
			logger.WithErr(err).Debug("Server process exited")
		}
	}
	if err := client.Connect(ctx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to initialize %s: %w", cfg.ServerCommand, err)
	}
	return client, cleanup, nil
}
