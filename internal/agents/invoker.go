package agents

import "context"

// Request is the payload sent to an agent
type Request struct {
	Agent     Name           `json:"agent"`
	SessionID string         `json:"session_id"`
	TaskID    string         `json:"task_id"`
	Message   string         `json:"message"`
	Intent    string         `json:"intent,omitempty"`
	Role      string         `json:"role"` // "primary" or "supporting"
	Context   map[string]any `json:"context,omitempty"`
	Entities  map[string]any `json:"entities,omitempty"`
}

// Response is the decoded agent result
type Response map[string]any

// Text returns the "text" field of the response, if any
func (r Response) Text() string {
	if s, ok := r["text"].(string); ok {
		return s
	}
	return ""
}

// Invoker performs one remote call to a named agent
type Invoker interface {
	Invoke(ctx context.Context, name Name, req Request) (Response, error)
}

// InvokerFunc adapts a function to Invoker
type InvokerFunc func(ctx context.Context, name Name, req Request) (Response, error)

// Invoke calls f
func (f InvokerFunc) Invoke(ctx context.Context, name Name, req Request) (Response, error) {
	return f(ctx, name, req)
}
