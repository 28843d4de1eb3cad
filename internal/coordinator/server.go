package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/AltairaLabs/agent-router/internal/coordinator/config"
	"github.com/AltairaLabs/agent-router/internal/events"
	"github.com/AltairaLabs/agent-router/internal/orchestrator"
	"github.com/AltairaLabs/agent-router/internal/session"
)

const defaultHistoryLimit = 10

// Config holds configuration for the MCP server
type Config struct {
	Name    string
	Version string
}

// MCPServer wraps the mcp-go server with the routing tools
type MCPServer struct {
	server      *server.MCPServer
	router      *Router
	clients     *ClientSessionManager
	auditLogger *AuditLogger
	logger      *slog.Logger
}

// NewMCPServer creates and configures a new MCP server. Progress events published
// on hub are delivered to the MCP clients bound to each conversation session.
func NewMCPServer(cfg Config, router *Router, hub *events.Hub, audit *AuditLogger, logger *slog.Logger) *MCPServer {
	ms := &MCPServer{
		router:      router,
		auditLogger: audit,
		logger:      logger,
	}

	hooks := &server.Hooks{}
	hooks.AddOnUnregisterSession(func(_ context.Context, cs server.ClientSession) {
		ms.clients.Release(cs.SessionID())
		logger.Debug("MCP client disconnected", "client_id", cs.SessionID())
	})

	ms.server = server.NewMCPServer(
		cfg.Name,
		cfg.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithHooks(hooks),
	)
	ms.clients = NewClientSessionManager(hub, ms.server)

	ms.registerTools()
	return ms
}

// registerTools registers all MCP tools with handlers
func (ms *MCPServer) registerTools() {
	routeMessageTool := mcp.NewTool(config.ToolRouteMessage,
		mcp.WithDescription("Route a message to the best agents, dispatch them and return every outcome"),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("The user message to route"),
		),
		mcp.WithString("session_id",
			mcp.Description("Conversation session id; defaults to the MCP client session"),
		),
		mcp.WithObject("context",
			mcp.Description("Resolved tenant/site context merged into the session (tenant_id, site_type, products, services, ...)"),
		),
	)
	ms.server.AddTool(routeMessageTool, ms.handleRouteMessage)

	routeDecideTool := mcp.NewTool(config.ToolRouteDecide,
		mcp.WithDescription("Return the routing decision for a message without dispatching any agent"),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("The user message to route"),
		),
		mcp.WithString("session_id",
			mcp.Description("Conversation session whose context and history are considered"),
		),
		mcp.WithObject("context",
			mcp.Description("Additional context considered for this decision only"),
		),
	)
	ms.server.AddTool(routeDecideTool, ms.handleRouteDecide)

	historyTool := mcp.NewTool(config.ToolSessionHistory,
		mcp.WithDescription("Return the most recent conversation entries of a session"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Conversation session id"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Number of entries to return (default 10, 0 for all retained entries)"),
		),
	)
	ms.server.AddTool(historyTool, ms.handleSessionHistory)

	taskResultTool := mcp.NewTool(config.ToolGetTaskResult,
		mcp.WithDescription("Return the result of a finished orchestration task"),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task id returned by route.message"),
		),
		mcp.WithString("session_id",
			mcp.Description("Session owning the task, used when the result is no longer cached"),
		),
	)
	ms.server.AddTool(taskResultTool, ms.handleGetTaskResult)

	sessionTasksTool := mcp.NewTool(config.ToolSessionTasks,
		mcp.WithDescription("List the archived orchestration results of a session, newest first"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Conversation session id; expired sessions are still listed"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Number of results to return (default 10, 0 for all)"),
		),
	)
	ms.server.AddTool(sessionTasksTool, ms.handleSessionTasks)

	agentFailuresTool := mcp.NewTool(config.ToolAgentFailures,
		mcp.WithDescription("Report how many archived agent calls each agent has failed"),
	)
	ms.server.AddTool(agentFailuresTool, ms.handleAgentFailures)
}

// handleRouteMessage implements the route.message tool
func (ms *MCPServer) handleRouteMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message, err := request.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	clientID := ms.clientID(ctx)
	sessionID := request.GetString("session_id", clientID)
	ms.clients.Bind(clientID, sessionID)

	entry := &AuditEntry{
		SessionID: sessionID,
		ClientID:  clientID,
		ToolName:  config.ToolRouteMessage,
		Arguments: request.GetArguments(),
	}
	ms.auditLogger.LogToolCall(ctx, entry)

	result, err := ms.router.HandleMessage(ctx, Inbound{
		SessionID: sessionID,
		Message:   message,
		Context:   contextArgument(request),
	})
	if err != nil {
		ms.auditLogger.LogToolResult(ctx, &AuditEntry{
			SessionID: sessionID,
			ToolName:  config.ToolRouteMessage,
			ErrorMsg:  err.Error(),
		})
		return mcp.NewToolResultError(err.Error()), nil
	}

	ms.auditLogger.LogToolResult(ctx, &AuditEntry{
		SessionID:  result.SessionID,
		ToolName:   config.ToolRouteMessage,
		TaskID:     result.TaskID,
		Status:     string(result.Status),
		Succeeded:  result.Succeeded(),
		Failed:     result.Failed(),
		DurationMS: result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
	})

	summary := fmt.Sprintf(config.MsgTaskFinished, result.TaskID, result.Status, result.Succeeded(), result.Failed())
	return jsonResult(summary, result)
}

// handleRouteDecide implements the route.decide tool
func (ms *MCPServer) handleRouteDecide(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message, err := request.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	sessionID := request.GetString("session_id", "")
	ms.auditLogger.LogToolCall(ctx, &AuditEntry{
		SessionID: sessionID,
		ClientID:  ms.clientID(ctx),
		ToolName:  config.ToolRouteDecide,
		Arguments: request.GetArguments(),
	})

	decision, err := ms.router.Decide(ctx, Inbound{
		SessionID: sessionID,
		Message:   message,
		Context:   contextArgument(request),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	summary := fmt.Sprintf("%s → %s (confidence %.2f, priority %s)",
		decision.TaskType, decision.Primary, decision.Confidence, decision.Priority)
	return jsonResult(summary, decision)
}

// handleSessionHistory implements the session.history tool
func (ms *MCPServer) handleSessionHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := request.GetInt("limit", defaultHistoryLimit)
	if limit < 0 {
		return mcp.NewToolResultError("limit must not be negative"), nil
	}

	history, err := ms.router.History(ctx, sessionID, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if history == nil {
		history = []session.ConversationEntry{}
	}

	return jsonResult(fmt.Sprintf("%d entries", len(history)), history)
}

// handleGetTaskResult implements the task.get_result tool
func (ms *MCPServer) handleGetTaskResult(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	taskID, err := request.RequireString("task_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	record, err := ms.router.TaskResult(ctx, request.GetString("session_id", ""), taskID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf(config.ErrTaskResultNotFound, taskID)), nil
	}

	return jsonResult("source: "+record.Source, record)
}

// handleSessionTasks implements the session.tasks tool
func (ms *MCPServer) handleSessionTasks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := request.GetInt("limit", defaultHistoryLimit)
	if limit < 0 {
		return mcp.NewToolResultError("limit must not be negative"), nil
	}

	results, err := ms.router.ArchivedTasks(ctx, sessionID, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if results == nil {
		results = []*orchestrator.Result{}
	}

	return jsonResult(fmt.Sprintf("%d archived tasks", len(results)), results)
}

// handleAgentFailures implements the agent.failures tool
func (ms *MCPServer) handleAgentFailures(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	counts, err := ms.router.AgentFailures(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	return jsonResult(fmt.Sprintf("%d failed calls across %d agents", total, len(counts)), counts)
}

// clientID returns the MCP client session id, or "" outside a client session
func (ms *MCPServer) clientID(ctx context.Context) string {
	cs := server.ClientSessionFromContext(ctx)
	if cs == nil {
		return ""
	}
	return cs.SessionID()
}

// Clients returns the client/session binding manager
func (ms *MCPServer) Clients() *ClientSessionManager {
	return ms.clients
}

func contextArgument(request mcp.CallToolRequest) session.Context {
	raw, ok := request.GetArguments()["context"].(map[string]any)
	if !ok || len(raw) == 0 {
		return nil
	}
	return session.Context(raw)
}

// jsonResult returns a one-line summary followed by the JSON encoding of v
func jsonResult(summary string, v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(summary),
			mcp.NewTextContent(string(data)),
		},
	}, nil
}
