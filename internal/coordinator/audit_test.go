package coordinator

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestAuditLogger(t *testing.T) {
	tests := []struct {
		name     string
		log      func(al *AuditLogger)
		contains []string
	}{
		{
			name: "call",
			log: func(al *AuditLogger) {
				al.LogToolCall(context.Background(), &AuditEntry{SessionID: "s1", ToolName: "route.message"})
			},
			contains: []string{"msg=route_call", "session_id=s1", "tool_name=route.message"},
		},
		{
			name: "result",
			log: func(al *AuditLogger) {
				al.LogToolResult(context.Background(), &AuditEntry{
					SessionID: "s1", ToolName: "route.message", TaskID: "t1", Status: "failed", Succeeded: 2, Failed: 1,
				})
			},
			contains: []string{"msg=route_result", "task_id=t1", "status=failed", "succeeded=2", "failed=1"},
		},
		{
			name: "error",
			log: func(al *AuditLogger) {
				al.LogToolResult(context.Background(), &AuditEntry{SessionID: "s1", ToolName: "route.message", ErrorMsg: "boom"})
			},
			contains: []string{"level=ERROR", "msg=route_error", "error=boom"},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var buf bytes.Buffer
			test.log(NewAuditLogger(slog.New(slog.NewTextHandler(&buf, nil))))

			out := buf.String()
			for _, want := range test.contains {
				if !strings.Contains(out, want) {
					t.Errorf("Expected %q in %q", want, out)
				}
			}
		})
	}
}
