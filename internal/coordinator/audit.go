package coordinator

import (
	"context"
	"log/slog"
	"time"
)

// AuditLogger handles audit logging for MCP tool calls
type AuditLogger struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger,
		now:    time.Now,
	}
}

// LogToolCall logs a tool invocation with all relevant context
func (al *AuditLogger) LogToolCall(ctx context.Context, entry *AuditEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = al.now()
	}
	al.logger.InfoContext(ctx, "route_call",
		"session_id", entry.SessionID,
		"client_id", entry.ClientID,
		"tool_name", entry.ToolName,
		"arguments", entry.Arguments,
		"timestamp", entry.Timestamp,
	)
}

// LogToolResult logs a tool execution result, or its error when ErrorMsg is set
func (al *AuditLogger) LogToolResult(ctx context.Context, entry *AuditEntry) {
	if entry.ErrorMsg != "" {
		al.logger.ErrorContext(ctx, "route_error",
			"session_id", entry.SessionID,
			"tool_name", entry.ToolName,
			"task_id", entry.TaskID,
			"error", entry.ErrorMsg,
		)
		return
	}

	al.logger.InfoContext(ctx, "route_result",
		"session_id", entry.SessionID,
		"tool_name", entry.ToolName,
		"task_id", entry.TaskID,
		"status", entry.Status,
		"succeeded", entry.Succeeded,
		"failed", entry.Failed,
		"duration_ms", entry.DurationMS,
	)
}
