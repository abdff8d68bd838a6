package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/mbd888/guardlens/internal/apiclient"
)

// Version is reported to MCP clients.
const Version = "2.0.0"

// NewMCPServer creates a configured MCP server with all guardlens tools registered.
func NewMCPServer(client *apiclient.Client) *server.MCPServer {
	s := server.NewMCPServer("guardlens", Version)
	h := NewHandlers(client)

	s.AddTool(ToolListPages, h.HandleListPages)
	s.AddTool(ToolGetPage, h.HandleGetPage)
	s.AddTool(ToolMountPage, h.HandleMountPage)
	s.AddTool(ToolUnmountPage, h.HandleUnmountPage)
	s.AddTool(ToolGetPanel, h.HandleGetPanel)
	s.AddTool(ToolControlPanel, h.HandleControlPanel)
	s.AddTool(ToolGetMonitoring, h.HandleGetMonitoring)
	s.AddTool(ToolMonitoringAction, h.HandleMonitoringAction)
	s.AddTool(ToolListSessions, h.HandleListSessions)
	s.AddTool(ToolGetSession, h.HandleGetSession)

	return s
}
