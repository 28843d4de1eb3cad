// Package session holds per-conversation state: context, history, active agents and tasks.
package session

import (
	"context"
	"errors"
)

var (
	// ErrSessionIDEmpty is returned for blank session ids
	ErrSessionIDEmpty = errors.New("session ID cannot be empty")
	// ErrSessionNotFound is returned when the session does not exist or has expired
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExists is returned when creating a session twice
	ErrSessionExists = errors.New("session already exists")
	// ErrTaskNotFound is returned for unknown task ids
	ErrTaskNotFound = errors.New("task not found")
	// ErrInvalidTransition is returned when a task update breaks the status lifecycle
	ErrInvalidTransition = errors.New("invalid task status transition")
)

// Store is the session state backend. All mutations of one session are serialized;
// different sessions never contend on a shared lock.
type Store interface {
	// CreateSession creates a session with an initial context
	CreateSession(ctx context.Context, sessionID string, initial Context) (*Session, error)

	// GetSession returns a snapshot of the session
	GetSession(ctx context.Context, sessionID string) (*Session, error)

	// GetOrCreateSession returns the session, creating it when missing.
	// The boolean reports whether it was created.
	GetOrCreateSession(ctx context.Context, sessionID string) (*Session, bool, error)

	// UpdateContext merges partial into the session context
	UpdateContext(ctx context.Context, sessionID string, partial Context) error

	// AddConversationEntry appends an entry, assigning ID and timestamp when missing
	AddConversationEntry(ctx context.Context, sessionID string, entry ConversationEntry) (ConversationEntry, error)

	// GetConversationHistory returns the most recent limit entries in insertion order.
	// limit <= 0 returns the whole retained history.
	GetConversationHistory(ctx context.Context, sessionID string, limit int) ([]ConversationEntry, error)

	// AddTask records a task, assigning ID and timestamps when missing
	AddTask(ctx context.Context, sessionID string, task Task) (Task, error)

	// UpdateTask applies a partial update to a task
	UpdateTask(ctx context.Context, sessionID, taskID string, update TaskUpdate) (Task, error)

	// GetTask returns one task of the session
	GetTask(ctx context.Context, sessionID, taskID string) (Task, error)

	// AddActiveAgent marks an agent as executing for the session
	AddActiveAgent(ctx context.Context, sessionID, agent string) error

	// RemoveActiveAgent releases one mark placed by AddActiveAgent
	RemoveActiveAgent(ctx context.Context, sessionID, agent string) error

	// Len returns the number of live sessions
	Len() int
}
