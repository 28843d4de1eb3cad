package cache

import (
	"context"

	"github.com/AltairaLabs/agent-router/internal/orchestrator"
)

// CacheInterface defines the contract for orchestration result caching
// This interface allows for different cache implementations and easier testing
type CacheInterface interface {
	Store(ctx context.Context, taskID string, result *orchestrator.Result) error
	Get(ctx context.Context, taskID string) (*orchestrator.Result, error)
	Delete(ctx context.Context, taskID string)
	Clear()
	Close()
}
