// Package events delivers fire-and-forget orchestration progress notifications
// to per-session listeners and to a broadcast audience.
package events

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// Event names a progress notification
type Event string

// Progress events emitted during one orchestration
const (
	DecisionMade           Event = "decision_made"
	AgentStarted           Event = "agent_started"
	AgentCompleted         Event = "agent_completed"
	AgentError             Event = "agent_error"
	OrchestrationCompleted Event = "orchestration_completed"
	OrchestrationFailed    Event = "orchestration_failed"
	AgentUpdated           Event = "agent_update"
)

// MethodPrefix is prepended to the event name to form the notification method
const MethodPrefix = "notifications/agent_router/"

// ErrDropped is returned by a sender that discarded a notification
var ErrDropped = errors.New("notification dropped")

// Sender delivers one notification to a listener
type Sender interface {
	SendNotification(method string, params map[string]any) error
}

// Emitter is the publish side used by the orchestration executor
type Emitter interface {
	EmitToSession(sessionID string, event Event, payload any)
	EmitAgentUpdate(update AgentUpdate)
}

// AgentUpdate is a broadcast status change of one agent call
type AgentUpdate struct {
	SessionID string    `json:"session_id"`
	TaskID    string    `json:"task_id"`
	Agent     string    `json:"agent"`
	Status    string    `json:"status"`
	Attempt   int       `json:"attempt,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub routes notifications to listeners registered per session and to broadcast listeners.
// Delivery failures are logged and never returned to the publisher.
type Hub struct {
	mu        sync.RWMutex
	sessions  map[string]map[string]Sender // session id -> listener id -> sender
	broadcast map[string]Sender
	logger    *slog.Logger
	now       func() time.Time
}

// NewHub creates an empty hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		sessions:  make(map[string]map[string]Sender),
		broadcast: make(map[string]Sender),
		logger:    logger,
		now:       time.Now,
	}
}

// Subscribe registers a listener for one session. Re-subscribing the same
// listener id replaces its sender.
func (h *Hub) Subscribe(sessionID, listenerID string, sender Sender) {
	h.mu.Lock()
	defer h.mu.Unlock()

	listeners, ok := h.sessions[sessionID]
	if !ok {
		listeners = make(map[string]Sender)
		h.sessions[sessionID] = listeners
	}
	listeners[listenerID] = sender

	h.logger.Debug("Listener subscribed to session",
		"session_id", sessionID,
		"listener_id", listenerID,
	)
}

// Unsubscribe removes a session listener
func (h *Hub) Unsubscribe(sessionID, listenerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	listeners := h.sessions[sessionID]
	delete(listeners, listenerID)
	if len(listeners) == 0 {
		delete(h.sessions, sessionID)
	}
}

// UnsubscribeListener removes a listener from every session and from the broadcast audience
func (h *Hub) UnsubscribeListener(listenerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sessionID, listeners := range h.sessions {
		delete(listeners, listenerID)
		if len(listeners) == 0 {
			delete(h.sessions, sessionID)
		}
	}
	delete(h.broadcast, listenerID)
}

// SubscribeAll registers a listener for agent updates of every session
func (h *Hub) SubscribeAll(listenerID string, sender Sender) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcast[listenerID] = sender
}

// listenerCount returns the number of listeners registered for a session
func (h *Hub) listenerCount(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

// EmitToSession sends event to every listener of sessionID
func (h *Hub) EmitToSession(sessionID string, event Event, payload any) {
	h.mu.RLock()
	targets := make(map[string]Sender, len(h.sessions[sessionID]))
	for id, s := range h.sessions[sessionID] {
		targets[id] = s
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		h.logger.Debug("No listeners for session event", "session_id", sessionID, "event", event)
		return
	}

	params := map[string]any{
		"session_id": sessionID,
		"event":      string(event),
		"timestamp":  h.now().UTC().Format(time.RFC3339Nano),
		"payload":    toJSONValue(payload),
	}
	h.deliver(targets, MethodPrefix+string(event), params, "session_id", sessionID)
}

// EmitAgentUpdate sends update to every broadcast listener
func (h *Hub) EmitAgentUpdate(update AgentUpdate) {
	if update.Timestamp.IsZero() {
		update.Timestamp = h.now()
	}

	h.mu.RLock()
	targets := make(map[string]Sender, len(h.broadcast))
	for id, s := range h.broadcast {
		targets[id] = s
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	params, _ := toJSONValue(update).(map[string]any)
	h.deliver(targets, MethodPrefix+string(AgentUpdated), params, "agent", update.Agent)
}

func (h *Hub) deliver(targets map[string]Sender, method string, params map[string]any, key, value string) {
	for id, sender := range targets {
		if err := sender.SendNotification(method, params); err != nil {
			h.logger.Warn("Failed to deliver notification",
				"method", method,
				"listener_id", id,
				key, value,
				"error", err,
			)
		}
	}
}

// toJSONValue converts payload into plain JSON values so every sender sees the
// same shape regardless of the Go type published
func toJSONValue(payload any) any {
	if payload == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return map[string]any{"error": err.Error()}
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{"error": err.Error()}
	}
	return out
}

// Nop discards every event
type Nop struct{}

// EmitToSession implements Emitter
func (Nop) EmitToSession(string, Event, any) {}

// EmitAgentUpdate implements Emitter
func (Nop) EmitAgentUpdate(AgentUpdate) {}
