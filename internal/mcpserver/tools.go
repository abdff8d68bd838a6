package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the guardlens MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolListPages = mcp.NewTool("list_pages",
	mcp.WithDescription(
		"List the SecureAI dashboard pages (dashboard, agents, detection, analytics, privacy, models), "+
			"their panels, and whether each page is currently mounted and producing simulated telemetry."),
)

var ToolGetPage = mcp.NewTool("get_page",
	mcp.WithDescription(
		"Get the current snapshot of every panel on a mounted page. "+
			"Fails if the page is not mounted; use mount_page first."),
	mcp.WithString("slug",
		mcp.Required(),
		mcp.Description("Page slug, e.g. 'agents' or 'detection'")),
)

var ToolMountPage = mcp.NewTool("mount_page",
	mcp.WithDescription(
		"Mount a page so its panels start ticking. Each panel updates on its own schedule "+
			"and streams changes to websocket subscribers."),
	mcp.WithString("slug",
		mcp.Required(),
		mcp.Description("Page slug to mount")),
)

var ToolUnmountPage = mcp.NewTool("unmount_page",
	mcp.WithDescription(
		"Unmount a page. All of its simulations stop and its state is discarded; "+
			"mounting again starts from fresh values."),
	mcp.WithString("slug",
		mcp.Required(),
		mcp.Description("Page slug to unmount")),
)

var ToolGetPanel = mcp.NewTool("get_panel",
	mcp.WithDescription("Get the current snapshot of a single panel on a mounted page."),
	mcp.WithString("slug",
		mcp.Required(),
		mcp.Description("Page slug")),
	mcp.WithString("panel",
		mcp.Required(),
		mcp.Description("Panel ID, e.g. 'typing-dynamics', 'anomaly-threshold', 'reporting'")),
)

var ToolControlPanel = mcp.NewTool("control_panel",
	mcp.WithDescription(
		"Interact with a panel the way a user would in the dashboard. Supported actions: "+
			"set_threshold (name, value), set_adaptive (enabled), set_sensitivity (value) on anomaly-threshold; "+
			"toggle_control (name) on privacy-dashboard; set_enabled (enabled) on federated-learning; "+
			"generate (name = report id) and set_period (name) on reporting; set_time_range (name) on fraud-analytics."),
	mcp.WithString("slug",
		mcp.Required(),
		mcp.Description("Page slug")),
	mcp.WithString("panel",
		mcp.Required(),
		mcp.Description("Panel ID")),
	mcp.WithString("action",
		mcp.Required(),
		mcp.Description("Control action"),
		mcp.Enum("set_threshold", "set_adaptive", "set_sensitivity", "toggle_control",
			"set_enabled", "generate", "set_period", "set_time_range")),
	mcp.WithString("name",
		mcp.Description("Target name: threshold, privacy control, report id, period or time range")),
	mcp.WithNumber("value",
		mcp.Description("Numeric value for set_threshold and set_sensitivity")),
	mcp.WithBoolean("enabled",
		mcp.Description("Flag for set_adaptive and set_enabled")),
)

var ToolGetMonitoring = mcp.NewTool("get_monitoring",
	mcp.WithDescription(
		"Get the real-time monitor on the main dashboard: whether monitoring is on, "+
			"its status, elapsed duration, threat level and anomaly count."),
)

var ToolMonitoringAction = mcp.NewTool("monitoring_action",
	mcp.WithDescription(
		"Control the main dashboard's monitoring session. start begins scanning, pause holds the clock, "+
			"stop completes the session and records it, reset returns to standby."),
	mcp.WithString("action",
		mcp.Required(),
		mcp.Description("Monitoring action"),
		mcp.Enum("start", "pause", "stop", "reset")),
)

var ToolListSessions = mcp.NewTool("list_sessions",
	mcp.WithDescription("List recorded monitoring sessions, newest first."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of sessions to return (default 20)")),
	mcp.WithString("cursor",
		mcp.Description("Cursor from a previous call to fetch the next page")),
)

var ToolGetSession = mcp.NewTool("get_session",
	mcp.WithDescription("Get one recorded monitoring session by ID."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Session ID, e.g. 'ses_...'")),
)
