package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/AltairaLabs/agent-router/internal/coordinator"
	"github.com/AltairaLabs/agent-router/internal/coordinator/config"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		transport string
		httpAddr  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the routing tools over MCP",
		Long: `Serve route.message, route.decide, session.history and task.get_result over
MCP. The stdio transport reads JSON-RPC from stdin; the http transport serves
SSE under /mcp.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load(os.Stderr)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("transport") {
				cfg.Server.Transport = transport
			}
			if cmd.Flags().Changed("http-addr") {
				cfg.Server.HTTPAddr = httpAddr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			a, err := newApp(cfg, logger, nil)
			if err != nil {
				return err
			}
			defer func() {
				if err := a.Close(); err != nil {
					logger.Warn("Shutdown cleanup failed", "error", err)
				}
			}()

			mcpServer := a.newMCPServer()

			logger.Info("Starting agent router",
				"version", version,
				"transport", cfg.Server.Transport,
				"history_window", cfg.Session.HistoryWindow,
				"max_attempts", cfg.Retry.MaxAttempts,
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, mcpServer, cfg)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", config.TransportStdio, "MCP transport: stdio or http")
	cmd.Flags().StringVar(&httpAddr, "http-addr", ":8080", "Listen address for the http transport")

	return cmd
}

func serve(ctx context.Context, ms *coordinator.MCPServer, cfg *config.Config) error {
	if cfg.Server.Transport == config.TransportHTTP {
		return ms.ServeHTTP(ctx, cfg.Server.HTTPAddr, cfg.Server.BaseURL)
	}
	return ms.ServeStdio(ctx)
}
