package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"

	"google.golang.org/grpc"

	"github.com/AltairaLabs/agent-router/internal/agents"
)

const (
	defaultGRPCPort = "50051"
)

var (
	version = flag.Bool("version", false, "Print version and exit")
	debug   = flag.Bool("debug", false, "Enable debug logging")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Println("Agent Router development agent v0.1.0")
		os.Exit(0)
	}

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	grpcPort := getEnv("GRPC_PORT", defaultGRPCPort)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, ":"+grpcPort, logger); err != nil {
		logger.Error("Agent server failed", "error", err)
		os.Exit(1)
	}
}

// run serves every agent of the closed set on addr until ctx is canceled
func run(ctx context.Context, addr string, logger *slog.Logger) error {
	listenConfig := net.ListenConfig{}
	lis, err := listenConfig.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return serve(ctx, lis, logger)
}

func serve(ctx context.Context, lis net.Listener, logger *slog.Logger) error {
	grpcServer := grpc.NewServer()
	agents.RegisterAgentServiceServer(grpcServer, agents.NewTemplateServer(logger))

	go func() {
		<-ctx.Done()
		logger.Info("Shutting down agent server")
		grpcServer.GracefulStop()
	}()

	logger.Info("Agent server listening",
		"address", lis.Addr().String(),
		"agents", len(agents.All()),
	)
	return grpcServer.Serve(lis)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
