package config

import (
	"errors"
	"fmt"
	"testing"
)

func TestMessageConstants(t *testing.T) {
	tests := []struct {
		name     string
		constant string
		expected string
	}{
		{"ErrSessionError", ErrSessionError, "session error: %w"},
		{"ErrOrchestrationFailed", ErrOrchestrationFailed, "orchestration failed: %w"},
		{"ErrTaskResultNotFound", ErrTaskResultNotFound, "no result for task %s"},
		{"MsgTaskFinished", MsgTaskFinished, "Task %s %s: %d succeeded, %d failed"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if test.constant != test.expected {
				t.Errorf("Expected %s, got %s", test.expected, test.constant)
			}
		})
	}
}

func TestMsgTaskFinished(t *testing.T) {
	got := fmt.Sprintf(MsgTaskFinished, "t1", "failed", 2, 1)
	if got != "Task t1 failed: 2 succeeded, 1 failed" {
		t.Errorf("Unexpected summary %q", got)
	}
}

func TestErrorFormatsWrap(t *testing.T) {
	cause := errors.New("session not found")
	for _, format := range []string{ErrSessionError, ErrOrchestrationFailed} {
		if err := fmt.Errorf(format, cause); !errors.Is(err, cause) {
			t.Errorf("Expected %q to keep the cause, got %v", format, err)
		}
	}
}
