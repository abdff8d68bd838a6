package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mbd888/guardlens/internal/apiclient"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *apiclient.Client
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *apiclient.Client) *Handlers {
	return &Handlers{client: client}
}

// HandleListPages lists the page catalog.
func (h *Handlers) HandleListPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.ListPages(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list pages: %v", err)), nil
	}

	text, err := formatPageList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse pages: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleGetPage returns every panel snapshot of a mounted page.
func (h *Handlers) HandleGetPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug := req.GetString("slug", "")
	if slug == "" {
		return mcp.NewToolResultError("slug is required"), nil
	}

	raw, err := h.client.GetPage(ctx, slug)
	if apiclient.IsStatus(err, http.StatusConflict) {
		return mcp.NewToolResultError(fmt.Sprintf("Page %q is not mounted. Call mount_page first.", slug)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get page: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// HandleMountPage mounts a page.
func (h *Handlers) HandleMountPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug := req.GetString("slug", "")
	if slug == "" {
		return mcp.NewToolResultError("slug is required"), nil
	}

	raw, err := h.client.Mount(ctx, slug)
	if apiclient.IsStatus(err, http.StatusConflict) {
		return mcp.NewToolResultText(fmt.Sprintf("Page %q is already mounted.", slug)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to mount page: %v", err)), nil
	}

	text, err := formatMounted(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse page: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleUnmountPage unmounts a page.
func (h *Handlers) HandleUnmountPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug := req.GetString("slug", "")
	if slug == "" {
		return mcp.NewToolResultError("slug is required"), nil
	}

	if _, err := h.client.Unmount(ctx, slug); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to unmount page: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Page %q unmounted. Its simulations have stopped.", slug)), nil
}

// HandleGetPanel returns a single panel snapshot.
func (h *Handlers) HandleGetPanel(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug := req.GetString("slug", "")
	panel := req.GetString("panel", "")
	if slug == "" || panel == "" {
		return mcp.NewToolResultError("slug and panel are required"), nil
	}

	raw, err := h.client.GetPanel(ctx, slug, panel)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get panel: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// HandleControlPanel forwards a control action to a panel.
func (h *Handlers) HandleControlPanel(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug := req.GetString("slug", "")
	panel := req.GetString("panel", "")
	action := req.GetString("action", "")
	if slug == "" || panel == "" || action == "" {
		return mcp.NewToolResultError("slug, panel and action are required"), nil
	}

	body := apiclient.ControlRequest{
		Action: action,
		Name:   req.GetString("name", ""),
	}
	args := req.GetArguments()
	if _, ok := args["value"]; ok {
		v := req.GetFloat("value", 0)
		body.Value = &v
	}
	if _, ok := args["enabled"]; ok {
		b := req.GetBool("enabled", false)
		body.Enabled = &b
	}

	raw, err := h.client.Control(ctx, slug, panel, body)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Control %s failed: %v", action, err)), nil
	}
	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// HandleGetMonitoring summarizes the dashboard monitor.
func (h *Handlers) HandleGetMonitoring(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.Monitoring(ctx)
	if apiclient.IsStatus(err, http.StatusConflict) {
		return mcp.NewToolResultError("The dashboard page is not mounted. Call mount_page with slug 'dashboard' first."), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get monitoring state: %v", err)), nil
	}

	text, err := formatMonitoring(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse monitoring state: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleMonitoringAction runs start, pause, stop or reset.
func (h *Handlers) HandleMonitoringAction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	action := req.GetString("action", "")
	switch action {
	case "start", "pause", "stop", "reset":
	default:
		return mcp.NewToolResultError("action must be one of start, pause, stop, reset"), nil
	}

	raw, err := h.client.Monitor(ctx, action)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Monitoring %s failed: %v", action, err)), nil
	}

	text, err := formatMonitoring(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse monitoring state: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleListSessions lists recorded monitoring sessions.
func (h *Handlers) HandleListSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := int(req.GetFloat("limit", 0))
	cursor := req.GetString("cursor", "")

	raw, err := h.client.ListSessions(ctx, limit, cursor)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list sessions: %v", err)), nil
	}

	text, err := formatSessionList(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse sessions: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

// HandleGetSession returns one recorded session.
func (h *Handlers) HandleGetSession(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}

	raw, err := h.client.GetSession(ctx, id)
	if apiclient.IsStatus(err, http.StatusNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("Session %s not found.", id)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get session: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// --- Formatting helpers ---

func formatPageList(raw json.RawMessage) (string, error) {
	var resp struct {
		Pages []map[string]any `json:"pages"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	if len(resp.Pages) == 0 {
		return "No pages found.", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d page(s):\n\n", len(resp.Pages)))
	for i, p := range resp.Pages {
		state := "unmounted"
		if mounted, _ := p["mounted"].(bool); mounted {
			state = "mounted"
		}
		sb.WriteString(fmt.Sprintf("%d. %s (%s) [%s]\n", i+1, getString(p, "title"), getString(p, "slug"), state))
		if panels, ok := p["panels"].([]any); ok && len(panels) > 0 {
			names := make([]string, 0, len(panels))
			for _, v := range panels {
				if s, ok := v.(string); ok {
					names = append(names, s)
				}
			}
			sb.WriteString(fmt.Sprintf("   Panels: %s\n", strings.Join(names, ", ")))
		}
	}
	return sb.String(), nil
}

func formatMounted(raw json.RawMessage) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Mounted %s (%s).\n", getString(m, "title"), getString(m, "slug")))
	if panels, ok := m["panels"].(map[string]any); ok {
		sb.WriteString(fmt.Sprintf("  Panels running: %d\n", len(panels)))
	}
	return sb.String(), nil
}

func formatMonitoring(raw json.RawMessage) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("Real-time Monitoring:\n")
	sb.WriteString(fmt.Sprintf("  Status: %s\n", getString(m, "status")))
	if on, ok := m["monitoring"].(bool); ok {
		sb.WriteString(fmt.Sprintf("  Monitoring: %t\n", on))
	}
	if v := getString(m, "durationLabel"); v != "" {
		sb.WriteString(fmt.Sprintf("  Duration: %s\n", v))
	} else if v, ok := getFloat(m, "duration"); ok {
		sb.WriteString(fmt.Sprintf("  Duration: %.0fs\n", v))
	}
	if v, ok := getFloat(m, "threatLevel"); ok {
		sb.WriteString(fmt.Sprintf("  Threat Level: %.1f%%\n", v))
	}
	if v, ok := getFloat(m, "anomalies"); ok {
		sb.WriteString(fmt.Sprintf("  Anomalies: %.0f\n", v))
	}
	if v := getString(m, "sessionId"); v != "" {
		sb.WriteString(fmt.Sprintf("  Session: %s\n", v))
	}
	return sb.String(), nil
}

func formatSessionList(raw json.RawMessage) (string, error) {
	var resp struct {
		Sessions   []map[string]any `json:"sessions"`
		NextCursor string           `json:"nextCursor"`
		HasMore    bool             `json:"hasMore"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", err
	}
	if len(resp.Sessions) == 0 {
		return "No monitoring sessions recorded.", nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d session(s):\n\n", len(resp.Sessions)))
	for i, s := range resp.Sessions {
		sb.WriteString(fmt.Sprintf("%d. %s  %s  %ss  anomalies=%s  peak threat=%s%%\n",
			i+1, getString(s, "id"), getString(s, "outcome"), getString(s, "durationSeconds"),
			getString(s, "anomalies"), getString(s, "peakThreat")))
	}
	if resp.HasMore {
		sb.WriteString(fmt.Sprintf("\nMore sessions available. Next cursor: %s\n", resp.NextCursor))
	}
	return sb.String(), nil
}

func formatJSON(raw json.RawMessage) string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return string(raw)
	}
	return pretty.String()
}

// getString extracts a string value from a map, trying multiple key names.
func getString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
			if f, ok := v.(float64); ok {
				return fmt.Sprintf("%g", f)
			}
		}
	}
	return ""
}

// getFloat extracts a float64 value from a map, trying multiple key names.
func getFloat(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if f, ok := v.(float64); ok {
				return f, true
			}
		}
	}
	return 0, false
}
