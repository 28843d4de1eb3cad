package config

import "testing"

func TestAllTools(t *testing.T) {
	tools := AllTools()
	expectedCount := 6
	if len(tools) != expectedCount {
		t.Errorf("Expected %d tools, got %d", expectedCount, len(tools))
	}

	expectedTools := map[string]bool{
		ToolRouteMessage:   true,
		ToolRouteDecide:    true,
		ToolSessionHistory: true,
		ToolGetTaskResult:  true,
		ToolSessionTasks:   true,
		ToolAgentFailures:  true,
	}

	for _, tool := range tools {
		if !expectedTools[tool] {
			t.Errorf("Unexpected tool: %s", tool)
		}
		delete(expectedTools, tool)
	}

	if len(expectedTools) > 0 {
		t.Errorf("Missing tools: %v", expectedTools)
	}
}

func TestToolConstants(t *testing.T) {
	tests := []struct {
		name     string
		constant string
		expected string
	}{
		{"RouteMessage", ToolRouteMessage, "route.message"},
		{"RouteDecide", ToolRouteDecide, "route.decide"},
		{"SessionHistory", ToolSessionHistory, "session.history"},
		{"GetTaskResult", ToolGetTaskResult, "task.get_result"},
		{"SessionTasks", ToolSessionTasks, "session.tasks"},
		{"AgentFailures", ToolAgentFailures, "agent.failures"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if test.constant != test.expected {
				t.Errorf("Expected %s, got %s", test.expected, test.constant)
			}
		})
	}
}
