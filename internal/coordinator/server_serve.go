package coordinator

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/AltairaLabs/agent-router/internal/coordinator/config"
)

// This file contains server startup methods that are untestable in unit tests
// as they start blocking servers. These should be tested via integration tests.

// ServeStdio serves MCP over stdin/stdout until ctx is canceled or stdin closes
func (ms *MCPServer) ServeStdio(ctx context.Context) error {
	ms.logger.Info("Starting MCP server with stdio transport")
	return server.NewStdioServer(ms.server).Listen(ctx, os.Stdin, os.Stdout)
}

// ServeHTTP serves MCP over HTTP/SSE on addr until ctx is canceled, then shuts down
// within config.DefaultShutdownTimeout. An empty baseURL is derived from addr.
func (ms *MCPServer) ServeHTTP(ctx context.Context, addr, baseURL string) error {
	if baseURL == "" {
		baseURL = "http://" + addr
	}
	sseServer := server.NewSSEServer(ms.server,
		server.WithBaseURL(baseURL),
		server.WithStaticBasePath("/mcp"),
	)

	ms.logger.Info("Starting MCP server with HTTP/SSE transport",
		"address", addr,
		"base_path", "/mcp",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- sseServer.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.DefaultShutdownTimeout)
	defer cancel()

	ms.logger.Info("Shutting down HTTP/SSE transport", slog.Duration("timeout", config.DefaultShutdownTimeout))
	if err := sseServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
