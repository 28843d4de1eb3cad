package config

import "time"

// Default timing configurations used throughout the router
const (
	// DefaultCacheTTL is the default time-to-live for cached orchestration results
	DefaultCacheTTL = 15 * time.Minute

	// DefaultSessionTTL is how long an idle session is retained
	DefaultSessionTTL = 30 * time.Minute

	// DefaultAgentTimeout bounds a single agent call
	DefaultAgentTimeout = 30 * time.Second

	// DefaultRetryBaseDelay is the wait before the first retry of an agent call
	DefaultRetryBaseDelay = 500 * time.Millisecond

	// DefaultRetryMaxDelay caps the wait between retries
	DefaultRetryMaxDelay = 5 * time.Second

	// DefaultOrchestrationTimeout bounds the whole dispatch phase; zero disables it
	DefaultOrchestrationTimeout time.Duration = 0

	// DefaultShutdownTimeout bounds graceful shutdown of the HTTP transport
	DefaultShutdownTimeout = 10 * time.Second
)

// Default sizes
const (
	// DefaultMaxSessions bounds the number of live sessions
	DefaultMaxSessions = 10000

	// DefaultMaxHistory bounds the retained conversation entries per session
	DefaultMaxHistory = 200

	// DefaultHistoryWindow is how many recent entries routing looks at
	DefaultHistoryWindow = 10

	// DefaultRetryMaxAttempts is the attempt budget of one agent call
	DefaultRetryMaxAttempts = 3

	// DefaultCacheMaxCost bounds the encoded size of cached results in bytes
	DefaultCacheMaxCost = 64 << 20
)
