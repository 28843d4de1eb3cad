package config

// Tool defines the available tools in the router
const (
	// ToolRouteMessage routes a message and dispatches it to the selected agents
	ToolRouteMessage = "route.message"
	// ToolRouteDecide returns the routing decision without dispatching
	ToolRouteDecide = "route.decide"
	// ToolSessionHistory returns recent conversation entries of a session
	ToolSessionHistory = "session.history"
	// ToolGetTaskResult is the task result retrieval tool name
	ToolGetTaskResult = "task.get_result"
	// ToolSessionTasks lists the archived tasks of a session
	ToolSessionTasks = "session.tasks"
	// ToolAgentFailures reports archived failure counts per agent
	ToolAgentFailures = "agent.failures"
)

// AllTools returns a slice of all available tool names
func AllTools() []string {
	return []string{
		ToolRouteMessage,
		ToolRouteDecide,
		ToolSessionHistory,
		ToolGetTaskResult,
		ToolSessionTasks,
		ToolAgentFailures,
	}
}
