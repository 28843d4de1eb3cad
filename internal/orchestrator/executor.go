// Package orchestrator dispatches a routing decision to its agents concurrently,
// isolates per-agent failures, and records the settled result in the session.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AltairaLabs/agent-router/internal/agents"
	"github.com/AltairaLabs/agent-router/internal/events"
	"github.com/AltairaLabs/agent-router/internal/retry"
	"github.com/AltairaLabs/agent-router/internal/session"
)

// Archiver persists finished orchestrations
type Archiver interface {
	Archive(ctx context.Context, result *Result) error
}

// Option configures an Executor
type Option func(*Executor)

// WithArchiver records every finished orchestration
func WithArchiver(a Archiver) Option {
	return func(e *Executor) { e.archiver = a }
}

// WithDeadline bounds the whole dispatch phase. Zero means no overall deadline;
// each call is still bounded by its agent's timeout.
func WithDeadline(d time.Duration) Option {
	return func(e *Executor) { e.deadline = d }
}

// Executor runs orchestrations
type Executor struct {
	store    session.Store
	invoker  agents.Invoker
	registry *agents.Registry
	emitter  events.Emitter
	policy   retry.Policy
	archiver Archiver
	deadline time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// New creates an Executor
func New(
	store session.Store,
	invoker agents.Invoker,
	registry *agents.Registry,
	policy retry.Policy,
	emitter events.Emitter,
	logger *slog.Logger,
	opts ...Option,
) *Executor {
	if emitter == nil {
		emitter = events.Nop{}
	}
	e := &Executor{
		store:    store,
		invoker:  invoker,
		registry: registry,
		emitter:  emitter,
		policy:   policy,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute dispatches req.Decision to every selected agent and waits for all of them
// to settle. Per-agent failures are reported as rejected outcomes; only session-level
// failures are returned as errors. Cancelling ctx does not abandon dispatched agents.
func (e *Executor) Execute(ctx context.Context, req Request) (*Result, error) {
	ctx = context.WithoutCancel(ctx)
	started := e.now()

	snapshot, err := e.store.GetSession(ctx, req.SessionID)
	if err != nil {
		return nil, e.abort(req.SessionID, "", err)
	}

	selected := req.Decision.Agents()

	task, err := e.store.AddTask(ctx, req.SessionID, session.Task{
		Type:          string(req.Decision.TaskType),
		Status:        session.TaskInProgress,
		AssignedAgent: string(req.Decision.Primary),
		Input: map[string]any{
			"message":  req.Message,
			"agents":   namesToStrings(selected),
			"priority": string(req.Decision.Priority),
		},
	})
	if err != nil {
		return nil, e.abort(req.SessionID, "", err)
	}

	if err := e.markActive(ctx, req.SessionID, selected); err != nil {
		return nil, e.abort(req.SessionID, task.ID, err)
	}

	e.logger.Info("Dispatching orchestration",
		"session_id", req.SessionID,
		"task_id", task.ID,
		"primary", req.Decision.Primary,
		"supporting", req.Decision.Supporting,
	)
	e.emitter.EmitToSession(req.SessionID, events.DecisionMade, map[string]any{
		"task_id":  task.ID,
		"decision": req.Decision,
	})

	outcomes := e.dispatch(ctx, req, snapshot.Context, task.ID, selected)

	result := &Result{
		SessionID:  req.SessionID,
		TaskID:     task.ID,
		Status:     session.TaskCompleted,
		Decision:   req.Decision,
		Outcomes:   outcomes,
		StartedAt:  started,
		FinishedAt: e.now(),
	}
	if result.Failed() > 0 {
		result.Status = session.TaskFailed
	}

	e.finish(ctx, result, selected)
	return result, nil
}

// dispatch fans out one call per agent and waits for all of them. The group is
// not derived from a cancelling context so one failure never stops the others.
func (e *Executor) dispatch(
	ctx context.Context,
	req Request,
	sctx session.Context,
	taskID string,
	selected []agents.Name,
) []Outcome {
	if e.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.deadline)
		defer cancel()
	}

	entities := make(map[string]any, len(req.Decision.Analysis.Entities))
	for k, v := range req.Decision.Analysis.Entities {
		entities[k] = v
	}

	outcomes := make([]Outcome, len(selected))
	var g errgroup.Group
	for i, name := range selected {
		role := RoleSupporting
		if i == 0 {
			role = RolePrimary
		}
		call := agents.Request{
			Agent:     name,
			SessionID: req.SessionID,
			TaskID:    taskID,
			Message:   req.Message,
			Intent:    string(req.Decision.TaskType),
			Role:      role,
			Context:   sctx,
			Entities:  entities,
		}
		g.Go(func() error {
			outcomes[i] = e.call(ctx, call)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

// call invokes one agent under the retry policy and always returns a settled outcome
func (e *Executor) call(ctx context.Context, req agents.Request) Outcome {
	start := e.now()
	log := e.logger.With(
		"session_id", req.SessionID,
		"task_id", req.TaskID,
		"agent", req.Agent,
	)

	e.emitter.EmitToSession(req.SessionID, events.AgentStarted, map[string]any{
		"task_id": req.TaskID,
		"agent":   req.Agent,
		"role":    req.Role,
	})
	e.emitter.EmitAgentUpdate(events.AgentUpdate{
		SessionID: req.SessionID,
		TaskID:    req.TaskID,
		Agent:     string(req.Agent),
		Status:    "started",
	})

	outcome := Outcome{Agent: req.Agent, Role: req.Role}

	handle, err := e.registry.Lookup(req.Agent)
	if err != nil {
		return e.reject(log, req, outcome, start, 0, err)
	}

	retrier := retry.New(e.policy,
		retry.WithClassifier(agents.IsTransient),
		retry.WithHook(func(attempt int, delay time.Duration, err error) {
			log.Warn("Agent call failed, retrying",
				"attempt", attempt,
				"delay_ms", delay.Milliseconds(),
				"error", err,
			)
		}),
	)

	res := retry.Do(ctx, retrier, func(ctx context.Context, attempt int) (agents.Response, error) {
		callCtx, cancel := context.WithTimeout(ctx, handle.Timeout)
		defer cancel()
		return e.invoker.Invoke(callCtx, req.Agent, req)
	})
	if res.Err != nil {
		return e.reject(log, req, outcome, start, res.Attempts, res.Err)
	}

	outcome.Status = Fulfilled
	outcome.Result = res.Value
	outcome.Attempts = res.Attempts
	outcome.DurationMS = e.now().Sub(start).Milliseconds()

	log.Info("Agent call completed",
		"attempt", res.Attempts,
		"duration_ms", outcome.DurationMS,
	)
	e.emitter.EmitToSession(req.SessionID, events.AgentCompleted, map[string]any{
		"task_id":  req.TaskID,
		"agent":    req.Agent,
		"role":     req.Role,
		"attempts": res.Attempts,
		"result":   res.Value,
	})
	e.emitter.EmitAgentUpdate(events.AgentUpdate{
		SessionID: req.SessionID,
		TaskID:    req.TaskID,
		Agent:     string(req.Agent),
		Status:    "completed",
		Attempt:   res.Attempts,
	})
	return outcome
}

func (e *Executor) reject(
	log *slog.Logger,
	req agents.Request,
	outcome Outcome,
	start time.Time,
	attempts int,
	err error,
) Outcome {
	outcome.Status = Rejected
	outcome.Error = agents.ErrorMessage(err)
	outcome.Attempts = attempts
	outcome.DurationMS = e.now().Sub(start).Milliseconds()

	log.Error("Agent call failed",
		"attempt", attempts,
		"transient", agents.IsTransient(err),
		"error", err,
	)
	e.emitter.EmitToSession(req.SessionID, events.AgentError, map[string]any{
		"task_id":  req.TaskID,
		"agent":    req.Agent,
		"role":     req.Role,
		"attempts": attempts,
		"error":    outcome.Error,
	})
	e.emitter.EmitAgentUpdate(events.AgentUpdate{
		SessionID: req.SessionID,
		TaskID:    req.TaskID,
		Agent:     string(req.Agent),
		Status:    "failed",
		Attempt:   attempts,
		Error:     outcome.Error,
	})
	return outcome
}

// finish records the settled result: task status, active agents, history entry,
// completion event, archive
func (e *Executor) finish(ctx context.Context, result *Result, selected []agents.Name) {
	log := e.logger.With("session_id", result.SessionID, "task_id", result.TaskID)

	if _, err := e.store.UpdateTask(ctx, result.SessionID, result.TaskID, session.TaskUpdate{
		Status: result.Status,
		Result: result.Outcomes,
	}); err != nil {
		log.Error("Failed to update task", "error", err)
	}

	e.release(ctx, result.SessionID, selected)

	if entry, ok := summaryEntry(result); ok {
		if _, err := e.store.AddConversationEntry(ctx, result.SessionID, entry); err != nil {
			log.Error("Failed to record agent response", "error", err)
		}
	}

	event := events.OrchestrationCompleted
	if result.Status == session.TaskFailed {
		event = events.OrchestrationFailed
	}
	e.emitter.EmitToSession(result.SessionID, event, map[string]any{
		"task_id":   result.TaskID,
		"status":    result.Status,
		"succeeded": result.Succeeded(),
		"failed":    result.Failed(),
		"outcomes":  result.Outcomes,
	})

	log.Info("Orchestration finished",
		"status", result.Status,
		"succeeded", result.Succeeded(),
		"failed", result.Failed(),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
	)

	if e.archiver != nil {
		if err := e.archiver.Archive(ctx, result); err != nil {
			log.Warn("Failed to archive orchestration", "error", err)
		}
	}
}

func (e *Executor) markActive(ctx context.Context, sessionID string, selected []agents.Name) error {
	for i, name := range selected {
		if err := e.store.AddActiveAgent(ctx, sessionID, string(name)); err != nil {
			e.release(ctx, sessionID, selected[:i])
			return err
		}
	}
	return nil
}

func (e *Executor) release(ctx context.Context, sessionID string, names []agents.Name) {
	for _, name := range names {
		if err := e.store.RemoveActiveAgent(ctx, sessionID, string(name)); err != nil {
			e.logger.Error("Failed to release active agent",
				"session_id", sessionID,
				"agent", name,
				"error", err,
			)
		}
	}
}

func (e *Executor) abort(sessionID, taskID string, err error) error {
	e.logger.Error("Orchestration aborted",
		"session_id", sessionID,
		"task_id", taskID,
		"error", err,
	)
	e.emitter.EmitToSession(sessionID, events.OrchestrationFailed, map[string]any{
		"task_id": taskID,
		"error":   err.Error(),
	})
	return fmt.Errorf("orchestration for session %s: %w", sessionID, err)
}

// summaryEntry builds the agent_response entry for a result with at least one success.
// The entry is attributed to the primary when it succeeded, else to the first success.
func summaryEntry(result *Result) (session.ConversationEntry, bool) {
	var author agents.Name
	var texts []string
	perAgent := make(map[string]any)

	for _, o := range result.Outcomes {
		if o.Status != Fulfilled {
			continue
		}
		if author == "" {
			author = o.Agent
		}
		if text := o.Result.Text(); text != "" {
			texts = append(texts, text)
		}
		perAgent[string(o.Agent)] = map[string]any(o.Result)
	}
	if author == "" {
		return session.ConversationEntry{}, false
	}

	return session.ConversationEntry{
		Type:    session.EntryAgentResponse,
		Agent:   string(author),
		Content: strings.Join(texts, "\n\n"),
		Metadata: map[string]any{
			"task_id":   result.TaskID,
			"task_type": string(result.Decision.TaskType),
			"status":    string(result.Status),
			"results":   perAgent,
			"failed":    result.Failed(),
		},
	}, true
}

func namesToStrings(names []agents.Name) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return out
}
