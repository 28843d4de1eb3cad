package main

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/AltairaLabs/agent-router/internal/agents"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("AGENT_TEST_PORT", "6000")

	if got := getEnv("AGENT_TEST_PORT", defaultGRPCPort); got != "6000" {
		t.Errorf("Expected 6000, got %s", got)
	}
	if got := getEnv("AGENT_TEST_UNSET", defaultGRPCPort); got != defaultGRPCPort {
		t.Errorf("Expected default %s, got %s", defaultGRPCPort, got)
	}
}

func TestServe_AnswersAgents(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, lis, logger) }()

	registry, err := agents.NewRegistry(nil, agents.Endpoint{Address: lis.Addr().String(), Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	invoker := agents.NewGRPCInvoker(registry, logger)
	defer invoker.Close()

	callCtx, callCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer callCancel()
	resp, err := invoker.Invoke(callCtx, agents.Copywriter, agents.Request{
		Agent:     agents.Copywriter,
		SessionID: "s1",
		Message:   "lanzamiento de verano",
	})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if resp.Text() != "Wrote a post for: lanzamiento de verano" {
		t.Errorf("Unexpected reply %q", resp.Text())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
