package session

import (
	"maps"
	"slices"
	"time"
)

// EntryType classifies a conversation entry
type EntryType string

const (
	// EntryUserMessage is an inbound message from the user
	EntryUserMessage EntryType = "user_message"
	// EntryAgentResponse is a result produced by one or more agents
	EntryAgentResponse EntryType = "agent_response"
	// EntrySystemEvent is a bookkeeping event
	EntrySystemEvent EntryType = "system_event"
)

// TaskStatus represents the lifecycle state of a task
type TaskStatus string

const (
	// TaskPending indicates the task was recorded but not started
	TaskPending TaskStatus = "pending"
	// TaskInProgress indicates agents are being dispatched
	TaskInProgress TaskStatus = "in_progress"
	// TaskCompleted indicates every agent call succeeded
	TaskCompleted TaskStatus = "completed"
	// TaskFailed indicates at least one agent call failed
	TaskFailed TaskStatus = "failed"
)

// Terminal reports whether no further transition is allowed
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// canTransition enforces pending → in_progress → {completed|failed}
func (s TaskStatus) canTransition(to TaskStatus) bool {
	switch s {
	case TaskPending:
		return to == TaskInProgress || to.Terminal()
	case TaskInProgress:
		return to.Terminal()
	default:
		return false
	}
}

// Context is the free-form key/value state of a session
type Context map[string]any

// Well-known context keys
const (
	KeyObjective       = "objective"
	KeyTenantID        = "tenant_id"
	KeySiteType        = "site_type"
	KeyProducts        = "products"
	KeyServices        = "services"
	KeyTargetChannels  = "target_channels"
	KeyCampaignType    = "campaign_type"
	KeyWebsiteAnalysis = "website_analysis"
)

// ConversationEntry is one append-only history record
type ConversationEntry struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	Type      EntryType      `json:"type"`
	Content   string         `json:"content"`
	Agent     string         `json:"agent,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Task records one orchestration call
type Task struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	Status        TaskStatus     `json:"status"`
	AssignedAgent string         `json:"assigned_agent"`
	Input         map[string]any `json:"input,omitempty"`
	Result        any            `json:"result,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// TaskUpdate is a partial task mutation; zero fields are left unchanged
type TaskUpdate struct {
	Status TaskStatus
	Result any
}

// Session is a point-in-time snapshot of one conversation
type Session struct {
	ID           string              `json:"id"`
	Context      Context             `json:"context"`
	History      []ConversationEntry `json:"history"`
	ActiveAgents []string            `json:"active_agents"`
	Tasks        []Task              `json:"tasks"`
	CreatedAt    time.Time           `json:"created_at"`
	LastActive   time.Time           `json:"last_active"`
}

func (c Context) clone() Context {
	if c == nil {
		return Context{}
	}
	return maps.Clone(c)
}

func (e ConversationEntry) clone() ConversationEntry {
	e.Metadata = maps.Clone(e.Metadata)
	return e
}

func (t Task) clone() Task {
	t.Input = maps.Clone(t.Input)
	return t
}

func cloneHistory(in []ConversationEntry) []ConversationEntry {
	out := make([]ConversationEntry, len(in))
	for i, e := range in {
		out[i] = e.clone()
	}
	return out
}

func cloneTasks(in []Task) []Task {
	out := make([]Task, len(in))
	for i, t := range in {
		out[i] = t.clone()
	}
	return out
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k, n := range m {
		if n > 0 {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys
}
