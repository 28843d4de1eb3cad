package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/AltairaLabs/agent-router/internal/orchestrator"
)

const (
	// ErrEmptyTaskID is returned when a task ID is empty
	ErrEmptyTaskID = "taskID cannot be empty"

	defaultNumCounters = 1e5
	defaultMaxCost     = 64 << 20 // bytes of encoded results
	defaultBufferItems = 64
	defaultTTL         = 15 * time.Minute
)

var (
	// ErrNotFound is returned for missing or expired results
	ErrNotFound = errors.New("result not found")
	// ErrClosed is returned after Close
	ErrClosed = errors.New("cache closed")
)

// Config sizes a ResultCache. Zero fields use defaults.
type Config struct {
	TTL     time.Duration
	MaxCost int64
}

// ResultCache caches finished orchestration results by task ID with TTL expiry
// and cost-bounded admission. Cached results are shared; callers must not mutate them.
type ResultCache struct {
	cache  *ristretto.Cache
	ttl    time.Duration
	mu     sync.RWMutex
	closed bool
}

// NewResultCache creates a result cache
func NewResultCache(cfg Config) (*ResultCache, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	if cfg.MaxCost <= 0 {
		cfg.MaxCost = defaultMaxCost
	}

	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: defaultNumCounters,
		MaxCost:     cfg.MaxCost,
		BufferItems: defaultBufferItems,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create result cache: %w", err)
	}

	return &ResultCache{cache: c, ttl: cfg.TTL}, nil
}

// Store caches a result. The write is visible to Get once Store returns.
func (rc *ResultCache) Store(ctx context.Context, taskID string, result *orchestrator.Result) error {
	if taskID == "" {
		return fmt.Errorf(ErrEmptyTaskID)
	}
	if result == nil {
		return fmt.Errorf("result cannot be nil")
	}

	rc.mu.RLock()
	defer rc.mu.RUnlock()
	if rc.closed {
		return ErrClosed
	}

	if !rc.cache.SetWithTTL(taskID, result, cost(result), rc.ttl) {
		return fmt.Errorf("result for task %s was not admitted", taskID)
	}
	rc.cache.Wait()
	return nil
}

// Get returns a cached result by task ID
func (rc *ResultCache) Get(ctx context.Context, taskID string) (*orchestrator.Result, error) {
	if taskID == "" {
		return nil, fmt.Errorf(ErrEmptyTaskID)
	}

	rc.mu.RLock()
	defer rc.mu.RUnlock()
	if rc.closed {
		return nil, ErrClosed
	}

	value, found := rc.cache.Get(taskID)
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, taskID)
	}
	result, ok := value.(*orchestrator.Result)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, taskID)
	}
	return result, nil
}

// Delete removes a cached result by task ID
func (rc *ResultCache) Delete(ctx context.Context, taskID string) {
	if taskID == "" {
		return
	}

	rc.mu.RLock()
	defer rc.mu.RUnlock()
	if !rc.closed {
		rc.cache.Del(taskID)
	}
}

// Clear removes all cached results
func (rc *ResultCache) Clear() {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	if !rc.closed {
		rc.cache.Clear()
	}
}

// Close releases the cache. Further calls are no-ops or return ErrClosed.
func (rc *ResultCache) Close() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.closed {
		return
	}
	rc.closed = true
	rc.cache.Close()
}

// cost approximates the memory held by a result as its encoded size
func cost(result *orchestrator.Result) int64 {
	data, err := json.Marshal(result)
	if err != nil {
		return 1
	}
	return int64(len(data))
}
