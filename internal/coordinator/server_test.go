package coordinator

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/AltairaLabs/agent-router/internal/agents"
	"github.com/AltairaLabs/agent-router/internal/coordinator/config"
	"github.com/AltairaLabs/agent-router/internal/events"
	"github.com/AltairaLabs/agent-router/internal/orchestrator"
	"github.com/AltairaLabs/agent-router/internal/session"
)

func newTestServer(t *testing.T) (*MCPServer, *routerFixture) {
	t.Helper()
	f := newRouterFixture(t)
	logger := discardLogger()
	cfg := Config{
		Name:    "TestServer",
		Version: "1.0.0",
	}
	return NewMCPServer(cfg, f.router, f.hub, NewAuditLogger(logger), logger), f
}

func toolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText returns the text of content item i
func resultText(t *testing.T, result *mcp.CallToolResult, i int) string {
	t.Helper()
	if result == nil {
		t.Fatal("Expected non-nil result")
	}
	if len(result.Content) <= i {
		t.Fatalf("Expected at least %d content items, got %d", i+1, len(result.Content))
	}
	text, ok := mcp.AsTextContent(result.Content[i])
	if !ok {
		t.Fatalf("Content item %d is not text", i)
	}
	return text.Text
}

func TestNewMCPServer(t *testing.T) {
	ms, _ := newTestServer(t)

	if ms.server == nil {
		t.Fatal("Expected underlying mcp-go server")
	}
	if ms.Clients() == nil {
		t.Fatal("Expected client session manager")
	}
}

func TestHandleRouteMessage(t *testing.T) {
	ms, f := newTestServer(t)

	result, err := ms.handleRouteMessage(context.Background(), toolRequest(config.ToolRouteMessage, map[string]interface{}{
		"message":    campaignMessage,
		"session_id": "s1",
	}))
	if err != nil {
		t.Fatalf("handleRouteMessage returned error: %v", err)
	}
	if result.IsError {
		t.Fatalf("Unexpected tool error: %s", resultText(t, result, 0))
	}

	summary := resultText(t, result, 0)
	if !strings.Contains(summary, "completed: 3 succeeded, 0 failed") {
		t.Errorf("Unexpected summary %q", summary)
	}

	var payload struct {
		TaskID   string `json:"task_id"`
		Decision struct {
			Primary string `json:"primary_agent"`
		} `json:"decision"`
		Outcomes []map[string]interface{} `json:"outcomes"`
	}
	if err := json.Unmarshal([]byte(resultText(t, result, 1)), &payload); err != nil {
		t.Fatalf("Result is not JSON: %v", err)
	}
	if payload.Decision.Primary != "scheduler" || len(payload.Outcomes) != 3 {
		t.Errorf("Unexpected payload: %+v", payload)
	}

	if _, err := f.store.GetTask(context.Background(), "s1", payload.TaskID); err != nil {
		t.Errorf("Task should be recorded in the session: %v", err)
	}
}

func TestHandleRouteMessage_Context(t *testing.T) {
	ms, f := newTestServer(t)

	result, _ := ms.handleRouteMessage(context.Background(), toolRequest(config.ToolRouteMessage, map[string]interface{}{
		"message":    "hola",
		"session_id": "s1",
		"context": map[string]interface{}{
			"tenant_id": "t-1",
			"site_type": "restaurant",
		},
	}))
	if result.IsError {
		t.Fatalf("Unexpected tool error: %s", resultText(t, result, 0))
	}

	snapshot, err := f.store.GetSession(context.Background(), "s1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if snapshot.Context[session.KeySiteType] != "restaurant" {
		t.Errorf("Context argument not merged: %v", snapshot.Context)
	}
}

func TestHandleRouteMessage_MissingMessage(t *testing.T) {
	ms, _ := newTestServer(t)

	result, err := ms.handleRouteMessage(context.Background(), toolRequest(config.ToolRouteMessage, map[string]interface{}{}))
	if err != nil {
		t.Fatalf("Handler should not return Go errors: %v", err)
	}
	if !result.IsError {
		t.Error("Expected tool error for missing message")
	}
}

func TestHandleRouteDecide(t *testing.T) {
	ms, f := newTestServer(t)

	result, err := ms.handleRouteDecide(context.Background(), toolRequest(config.ToolRouteDecide, map[string]interface{}{
		"message": campaignMessage,
	}))
	if err != nil || result.IsError {
		t.Fatalf("handleRouteDecide failed: %v", err)
	}

	var decision map[string]interface{}
	if err := json.Unmarshal([]byte(resultText(t, result, 1)), &decision); err != nil {
		t.Fatalf("Decision is not JSON: %v", err)
	}
	if decision["primary_agent"] != "scheduler" {
		t.Errorf("Expected scheduler, got %v", decision["primary_agent"])
	}
	if f.store.Len() != 0 {
		t.Error("route.decide must not create sessions")
	}
}

func TestHandleSessionHistory(t *testing.T) {
	ms, _ := newTestServer(t)
	ctx := context.Background()

	for _, msg := range []string{"hola", "gracias"} {
		if _, err := ms.router.HandleMessage(ctx, Inbound{SessionID: "s1", Message: msg}); err != nil {
			t.Fatalf("HandleMessage failed: %v", err)
		}
	}

	tests := []struct {
		name    string
		args    map[string]interface{}
		want    int
		wantErr bool
	}{
		{"default limit", map[string]interface{}{"session_id": "s1"}, 4, false},
		{"explicit limit", map[string]interface{}{"session_id": "s1", "limit": float64(1)}, 1, false},
		{"negative limit", map[string]interface{}{"session_id": "s1", "limit": float64(-1)}, 0, true},
		{"unknown session", map[string]interface{}{"session_id": "nope"}, 0, true},
		{"missing session", map[string]interface{}{}, 0, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result, err := ms.handleSessionHistory(ctx, toolRequest(config.ToolSessionHistory, test.args))
			if err != nil {
				t.Fatalf("Handler returned Go error: %v", err)
			}
			if result.IsError != test.wantErr {
				t.Fatalf("IsError = %v, want %v", result.IsError, test.wantErr)
			}
			if test.wantErr {
				return
			}
			var entries []session.ConversationEntry
			if err := json.Unmarshal([]byte(resultText(t, result, 1)), &entries); err != nil {
				t.Fatalf("History is not JSON: %v", err)
			}
			if len(entries) != test.want {
				t.Errorf("Expected %d entries, got %d", test.want, len(entries))
			}
		})
	}
}

func TestHandleGetTaskResult(t *testing.T) {
	ms, _ := newTestServer(t)
	ctx := context.Background()

	routed, err := ms.router.HandleMessage(ctx, Inbound{SessionID: "s1", Message: campaignMessage})
	if err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}

	result, err := ms.handleGetTaskResult(ctx, toolRequest(config.ToolGetTaskResult, map[string]interface{}{
		"task_id": routed.TaskID,
	}))
	if err != nil || result.IsError {
		t.Fatalf("handleGetTaskResult failed: %v", err)
	}
	if got := resultText(t, result, 0); got != "source: cache" {
		t.Errorf("Expected cache source, got %q", got)
	}

	result, _ = ms.handleGetTaskResult(ctx, toolRequest(config.ToolGetTaskResult, map[string]interface{}{
		"task_id": "missing",
	}))
	if !result.IsError {
		t.Fatal("Expected tool error for unknown task")
	}
	if got := resultText(t, result, 0); got != "no result for task missing" {
		t.Errorf("Unexpected error text %q", got)
	}
}

func TestHandleArchiveTools(t *testing.T) {
	logger := discardLogger()
	router := newArchivedRouter(t, agents.TrendResearcher)
	ms := NewMCPServer(Config{Name: "TestServer", Version: "1.0.0"}, router, events.NewHub(logger), NewAuditLogger(logger), logger)
	ctx := context.Background()

	for _, msg := range []string{"hola", campaignMessage} {
		if _, err := router.HandleMessage(ctx, Inbound{SessionID: "s1", Message: msg}); err != nil {
			t.Fatalf("HandleMessage failed: %v", err)
		}
	}

	result, err := ms.handleSessionTasks(ctx, toolRequest(config.ToolSessionTasks, map[string]interface{}{
		"session_id": "s1",
	}))
	if err != nil || result.IsError {
		t.Fatalf("handleSessionTasks failed: %v", err)
	}
	var tasks []orchestrator.Result
	if err := json.Unmarshal([]byte(resultText(t, result, 1)), &tasks); err != nil {
		t.Fatalf("Task list is not JSON: %v", err)
	}
	if len(tasks) != 2 {
		t.Errorf("Expected 2 archived tasks, got %d", len(tasks))
	}

	result, _ = ms.handleSessionTasks(ctx, toolRequest(config.ToolSessionTasks, map[string]interface{}{
		"session_id": "s1",
		"limit":      float64(-1),
	}))
	if !result.IsError {
		t.Error("Expected tool error for negative limit")
	}

	result, err = ms.handleAgentFailures(ctx, toolRequest(config.ToolAgentFailures, nil))
	if err != nil || result.IsError {
		t.Fatalf("handleAgentFailures failed: %v", err)
	}
	if got := resultText(t, result, 0); got != "1 failed calls across 1 agents" {
		t.Errorf("Unexpected summary %q", got)
	}
}

func TestHandleArchiveTools_Disabled(t *testing.T) {
	ms, _ := newTestServer(t)

	result, _ := ms.handleAgentFailures(context.Background(), toolRequest(config.ToolAgentFailures, nil))
	if !result.IsError {
		t.Fatal("Expected tool error without an archive")
	}
	if got := resultText(t, result, 0); got != ErrArchiveDisabled.Error() {
		t.Errorf("Unexpected error text %q", got)
	}
}
