package config

// Messages returned by the MCP tools
const (
	// ErrSessionError is the format string for session errors
	ErrSessionError = "session error: %w"
	// ErrOrchestrationFailed is the format string for aborted orchestrations
	ErrOrchestrationFailed = "orchestration failed: %w"
	// ErrTaskResultNotFound is the format string for unknown task results
	ErrTaskResultNotFound = "no result for task %s"
	// MsgTaskFinished is the format string summarizing an orchestration
	MsgTaskFinished = "Task %s %s: %d succeeded, %d failed"
)
