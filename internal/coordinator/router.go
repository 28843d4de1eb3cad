// Package coordinator exposes the router over MCP: it turns an inbound message
// into a routing decision, dispatches it and serves results and history.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"

	"github.com/google/uuid"

	"github.com/AltairaLabs/agent-router/internal/coordinator/cache"
	"github.com/AltairaLabs/agent-router/internal/coordinator/config"
	"github.com/AltairaLabs/agent-router/internal/orchestrator"
	"github.com/AltairaLabs/agent-router/internal/routing"
	"github.com/AltairaLabs/agent-router/internal/session"
)

var (
	// ErrEmptyMessage is returned for blank inbound messages
	ErrEmptyMessage = errors.New("message cannot be empty")
	// ErrTaskResultNotFound is returned when no source knows the task
	ErrTaskResultNotFound = errors.New("task result not found")
	// ErrArchiveDisabled is returned by archive queries when no archive is configured
	ErrArchiveDisabled = errors.New("task archive is not configured")
)

// Result sources reported by TaskResult
const (
	SourceCache   = "cache"
	SourceArchive = "archive"
	SourceSession = "session"
)

// ResultArchive is the read side of the task archive
type ResultArchive interface {
	Get(ctx context.Context, taskID string) (*orchestrator.Result, error)
	ListBySession(ctx context.Context, sessionID string, limit int) ([]*orchestrator.Result, error)
	FailureCounts(ctx context.Context) (map[string]int, error)
}

// Inbound is one message addressed to the router. Context carries the resolved
// tenant and site context supplied by the caller; it is merged into the session.
type Inbound struct {
	SessionID string
	Message   string
	Context   session.Context
}

// TaskRecord is a task result together with where it was found. Result is set
// for cache and archive hits; Task for tasks only the session still remembers.
type TaskRecord struct {
	Source string               `json:"source"`
	Result *orchestrator.Result `json:"result,omitempty"`
	Task   *session.Task        `json:"task,omitempty"`
}

// RouterOption configures a Router
type RouterOption func(*Router)

// WithResultCache stores finished orchestrations in c
func WithResultCache(c cache.CacheInterface) RouterOption {
	return func(r *Router) { r.cache = c }
}

// WithResultArchive consults a when a result is no longer cached
func WithResultArchive(a ResultArchive) RouterOption {
	return func(r *Router) { r.archive = a }
}

// Router runs the message → decision → orchestration flow
type Router struct {
	store    session.Store
	decider  *routing.Decider
	executor *orchestrator.Executor
	cache    cache.CacheInterface
	archive  ResultArchive
	logger   *slog.Logger
}

// NewRouter creates a Router
func NewRouter(
	store session.Store,
	decider *routing.Decider,
	executor *orchestrator.Executor,
	logger *slog.Logger,
	opts ...RouterOption,
) *Router {
	r := &Router{
		store:    store,
		decider:  decider,
		executor: executor,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HandleMessage records the message in its session, decides which agents handle it
// and dispatches them. A blank session id starts a new session.
func (r *Router) HandleMessage(ctx context.Context, in Inbound) (*orchestrator.Result, error) {
	if strings.TrimSpace(in.Message) == "" {
		return nil, ErrEmptyMessage
	}
	if in.SessionID == "" {
		in.SessionID = uuid.NewString()
	}

	snapshot, created, err := r.store.GetOrCreateSession(ctx, in.SessionID)
	if err != nil {
		return nil, fmt.Errorf(config.ErrSessionError, err)
	}
	if created {
		r.logger.Info("Session created", "session_id", in.SessionID)
	}

	sctx := snapshot.Context
	if len(in.Context) > 0 {
		if err := r.store.UpdateContext(ctx, in.SessionID, in.Context); err != nil {
			return nil, fmt.Errorf(config.ErrSessionError, err)
		}
		sctx = mergeContext(sctx, in.Context)
	}

	history, err := r.store.GetConversationHistory(ctx, in.SessionID, r.decider.HistoryWindow())
	if err != nil {
		return nil, fmt.Errorf(config.ErrSessionError, err)
	}

	if _, err := r.store.AddConversationEntry(ctx, in.SessionID, session.ConversationEntry{
		Type:    session.EntryUserMessage,
		Content: in.Message,
	}); err != nil {
		return nil, fmt.Errorf(config.ErrSessionError, err)
	}

	decision := r.decider.Decide(in.Message, sctx, history)
	r.logger.Debug("Routing decision",
		"session_id", in.SessionID,
		"primary", decision.Primary,
		"supporting", decision.Supporting,
		"confidence", decision.Confidence,
		"priority", decision.Priority,
	)

	result, err := r.executor.Execute(ctx, orchestrator.Request{
		SessionID: in.SessionID,
		Message:   in.Message,
		Decision:  decision,
	})
	if err != nil {
		return nil, fmt.Errorf(config.ErrOrchestrationFailed, err)
	}

	if r.cache != nil {
		if err := r.cache.Store(ctx, result.TaskID, result); err != nil {
			r.logger.Warn("Failed to cache orchestration result",
				"session_id", result.SessionID,
				"task_id", result.TaskID,
				"error", err,
			)
		}
	}

	return result, nil
}

// Decide returns the decision HandleMessage would make without recording or
// dispatching anything. Unknown sessions are treated as empty.
func (r *Router) Decide(ctx context.Context, in Inbound) (routing.Decision, error) {
	if strings.TrimSpace(in.Message) == "" {
		return routing.Decision{}, ErrEmptyMessage
	}

	var (
		sctx    session.Context
		history []session.ConversationEntry
	)
	if in.SessionID != "" {
		snapshot, err := r.store.GetSession(ctx, in.SessionID)
		switch {
		case err == nil:
			sctx = snapshot.Context
			history, err = r.store.GetConversationHistory(ctx, in.SessionID, r.decider.HistoryWindow())
			if err != nil {
				return routing.Decision{}, fmt.Errorf(config.ErrSessionError, err)
			}
		case errors.Is(err, session.ErrSessionNotFound):
		default:
			return routing.Decision{}, fmt.Errorf(config.ErrSessionError, err)
		}
	}

	return r.decider.Decide(in.Message, mergeContext(sctx, in.Context), history), nil
}

// History returns the last limit conversation entries of a session
func (r *Router) History(ctx context.Context, sessionID string, limit int) ([]session.ConversationEntry, error) {
	history, err := r.store.GetConversationHistory(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf(config.ErrSessionError, err)
	}
	return history, nil
}

// TaskResult looks a task up in the result cache, then the archive, then the
// session's task list when sessionID is given.
func (r *Router) TaskResult(ctx context.Context, sessionID, taskID string) (*TaskRecord, error) {
	if r.cache != nil {
		if result, err := r.cache.Get(ctx, taskID); err == nil {
			return &TaskRecord{Source: SourceCache, Result: result}, nil
		}
	}

	if r.archive != nil {
		result, err := r.archive.Get(ctx, taskID)
		if err == nil {
			return &TaskRecord{Source: SourceArchive, Result: result}, nil
		}
		r.logger.Debug("Archive lookup missed", "task_id", taskID, "error", err)
	}

	if sessionID != "" {
		task, err := r.store.GetTask(ctx, sessionID, taskID)
		if err == nil {
			return &TaskRecord{Source: SourceSession, Task: &task}, nil
		}
		if !errors.Is(err, session.ErrTaskNotFound) && !errors.Is(err, session.ErrSessionNotFound) {
			return nil, fmt.Errorf(config.ErrSessionError, err)
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrTaskResultNotFound, taskID)
}

// ArchivedTasks returns the newest archived results of a session. Unlike the
// session itself, the archive outlives session expiry.
func (r *Router) ArchivedTasks(ctx context.Context, sessionID string, limit int) ([]*orchestrator.Result, error) {
	if r.archive == nil {
		return nil, ErrArchiveDisabled
	}
	results, err := r.archive.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing archived tasks: %w", err)
	}
	return results, nil
}

// AgentFailures returns the archived count of rejected outcomes per agent
func (r *Router) AgentFailures(ctx context.Context) (map[string]int, error) {
	if r.archive == nil {
		return nil, ErrArchiveDisabled
	}
	counts, err := r.archive.FailureCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting agent failures: %w", err)
	}
	return counts, nil
}

func mergeContext(base, partial session.Context) session.Context {
	out := make(session.Context, len(base)+len(partial))
	maps.Copy(out, base)
	maps.Copy(out, partial)
	return out
}
