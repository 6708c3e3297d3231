// Command weather-mcp serves fake weather and datetime tools over MCP, on
// stdio by default or over Streamable HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaharia-lab/weather-mcp/config"
	"github.com/shaharia-lab/weather-mcp/mcp"
	"github.com/shaharia-lab/weather-mcp/observability"
	"github.com/shaharia-lab/weather-mcp/weather"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile, envFile string

	cmd := &cobra.Command{
		Use:          "weather-mcp",
		Short:        "MCP server with fake weather tools and prompts",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadServer(config.Options{
				ConfigFile: configFile,
				EnvFile:    envFile,
				Flags:      cmd.Flags(),
			})
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configFile, "config", "", "config file (yaml, toml or json)")
	flags.StringVar(&envFile, "env-file", "", "env file to load (default .env if present)")
	flags.String("transport", config.TransportStdio, "transport: stdio or http")
	flags.String("http-addr", ":8000", "listen address for the http transport")
	flags.String("http-path", "/mcp", "endpoint path for the http transport")
	flags.StringSlice("http-allowed-origins", nil, "allowed CORS origins (default any)")
	flags.Bool("strict-init", false, "reject requests before initialize")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.String("log-format", "text", "log format: text, json or zap")
	return cmd
}

func run(ctx context.Context, cfg *config.Server) error {
	logger, err := observability.NewLogger(cfg.Log.Format, cfg.Log.Level, os.Stderr)
	if err != nil {
		return err
	}

	base, err := weather.NewBaseServer(weather.NewGenerator(),
		mcp.UseLogger(logger),
		mcp.UseServerInfo(cfg.Name, cfg.Version),
		mcp.UseStrictInitialization(cfg.StrictInit),
	)
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	switch cfg.Transport {
	case config.TransportHTTP:
		server := mcp.NewStreamableHTTPServer(base,
			mcp.UseAddress(cfg.HTTP.Addr),
			mcp.UseEndpointPath(cfg.HTTP.Path),
			mcp.UseAllowedOrigins(cfg.HTTP.AllowedOrigins...),
		)
		g.Go(func() error { return server.Run(ctx) })
	default:
		server := mcp.NewStdIOServer(base, os.Stdin, os.Stdout)
		g.Go(func() error { return server.Run(ctx) })
	}

	logger.WithFields(map[string]interface{}{"transport": cfg.Transport}).Info("Weather MCP server started")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithErr(err).Error("Server stopped")
		return err
	}
	logger.Info("Server stopped")
	return nil
}
