package coordinator

import (
	"time"
)

// AuditEntry represents a logged tool invocation for provenance tracking
type AuditEntry struct {
	Timestamp  time.Time
	SessionID  string
	ClientID   string
	ToolName   string
	Arguments  map[string]interface{}
	TaskID     string
	Status     string
	Succeeded  int
	Failed     int
	DurationMS int64
	ErrorMsg   string
}
