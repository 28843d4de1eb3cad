package orchestrator

import (
	"time"

	"github.com/AltairaLabs/agent-router/internal/agents"
	"github.com/AltairaLabs/agent-router/internal/routing"
	"github.com/AltairaLabs/agent-router/internal/session"
)

// OutcomeStatus is the settled state of one agent call
type OutcomeStatus string

// Outcome statuses
const (
	Fulfilled OutcomeStatus = "fulfilled"
	Rejected  OutcomeStatus = "rejected"
)

// Agent roles within one orchestration
const (
	RolePrimary    = "primary"
	RoleSupporting = "supporting"
)

// Outcome is the settled result of dispatching one agent
type Outcome struct {
	Agent      agents.Name     `json:"agent"`
	Role       string          `json:"role"`
	Status     OutcomeStatus   `json:"status"`
	Result     agents.Response `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	Attempts   int             `json:"attempts"`
	DurationMS int64           `json:"duration_ms"`
}

// Request is one orchestration call
type Request struct {
	SessionID string
	Message   string
	Decision  routing.Decision
}

// Result is the return value of one orchestration. Outcomes follow the
// decision's agent order, primary first.
type Result struct {
	SessionID  string             `json:"session_id"`
	TaskID     string             `json:"task_id"`
	Status     session.TaskStatus `json:"status"`
	Decision   routing.Decision   `json:"decision"`
	Outcomes   []Outcome          `json:"outcomes"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
}

// Succeeded returns the number of fulfilled outcomes
func (r *Result) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == Fulfilled {
			n++
		}
	}
	return n
}

// Failed returns the number of rejected outcomes
func (r *Result) Failed() int {
	return len(r.Outcomes) - r.Succeeded()
}
