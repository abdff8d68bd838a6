package board

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/guardlens/internal/logging"
	"github.com/mbd888/guardlens/internal/panels"
	"github.com/mbd888/guardlens/internal/validation"
)

// Handler provides HTTP endpoints for the board.
type Handler struct {
	board *Board
}

// NewHandler creates a new board handler.
func NewHandler(b *Board) *Handler {
	return &Handler{board: b}
}

// RegisterRoutes sets up the /v1 page, panel and monitoring routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	slugs := validation.SlugParamMiddleware("slug", "panel")

	r.GET("/pages", h.ListPages)
	r.GET("/pages/:slug", slugs, h.GetPage)
	r.POST("/pages/:slug/mount", slugs, h.MountPage)
	r.POST("/pages/:slug/unmount", slugs, h.UnmountPage)
	r.GET("/pages/:slug/panels/:panel", slugs, h.GetPanel)
	r.POST("/pages/:slug/panels/:panel/controls", slugs, h.ControlPanel)

	r.GET("/monitoring", h.GetMonitoring)
	r.POST("/monitoring/:action", h.MonitoringAction)
}

// errorStatus maps board and panel errors to an HTTP status and code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrPageNotFound):
		return http.StatusNotFound, "page_not_found"
	case errors.Is(err, ErrPanelNotFound):
		return http.StatusNotFound, "panel_not_found"
	case errors.Is(err, ErrNotMounted):
		return http.StatusConflict, "not_mounted"
	case errors.Is(err, ErrAlreadyMounted):
		return http.StatusConflict, "already_mounted"
	case errors.Is(err, ErrUnsupportedAction):
		return http.StatusBadRequest, "unsupported_action"
	case errors.Is(err, panels.ErrUnknownControl):
		return http.StatusBadRequest, "unknown_control"
	case errors.Is(err, panels.ErrUnknownReport):
		return http.StatusNotFound, "unknown_report"
	case errors.Is(err, panels.ErrInvalidValue):
		return http.StatusBadRequest, "invalid_value"
	case errors.Is(err, panels.ErrBusy):
		return http.StatusConflict, "busy"
	}
	return http.StatusInternalServerError, "internal_error"
}

func writeError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logging.L(c.Request.Context()).Error("board request failed", "error", err)
		msg = "An unexpected error occurred"
	}
	c.JSON(status, gin.H{"error": code, "message": msg})
}

// ListPages handles GET /v1/pages
func (h *Handler) ListPages(c *gin.Context) {
	pages := h.board.Pages()
	c.JSON(http.StatusOK, gin.H{"pages": pages, "count": len(pages)})
}

// GetPage handles GET /v1/pages/:slug
func (h *Handler) GetPage(c *gin.Context) {
	snap, err := h.board.Snapshot(c.Param("slug"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// MountPage handles POST /v1/pages/:slug/mount
func (h *Handler) MountPage(c *gin.Context) {
	slug := c.Param("slug")
	if err := h.board.Mount(c.Request.Context(), slug); err != nil {
		writeError(c, err)
		return
	}
	snap, err := h.board.Snapshot(slug)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, snap)
}

// UnmountPage handles POST /v1/pages/:slug/unmount
func (h *Handler) UnmountPage(c *gin.Context) {
	slug := c.Param("slug")
	if err := h.board.Unmount(c.Request.Context(), slug); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slug": slug, "mounted": false})
}

// GetPanel handles GET /v1/pages/:slug/panels/:panel
func (h *Handler) GetPanel(c *gin.Context) {
	snap, err := h.board.PanelSnapshot(c.Param("slug"), c.Param("panel"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"panel": c.Param("panel"), "snapshot": snap})
}

// ControlPanel handles POST /v1/pages/:slug/panels/:panel/controls
func (h *Handler) ControlPanel(c *gin.Context) {
	var req ControlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body: action is required",
		})
		return
	}
	req.Name = validation.SanitizeString(req.Name, validation.MaxStringLength)

	if errs := validation.Validate(
		validation.Required("action", req.Action),
		validation.MaxLength("action", req.Action, 64),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": errs.Error(),
			"details": errs,
		})
		return
	}

	snap, err := h.board.Control(c.Request.Context(), c.Param("slug"), c.Param("panel"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"panel": c.Param("panel"), "action": req.Action, "snapshot": snap})
}

// GetMonitoring handles GET /v1/monitoring
func (h *Handler) GetMonitoring(c *gin.Context) {
	s, err := h.board.Monitoring()
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.View())
}

// MonitoringAction handles POST /v1/monitoring/:action
func (h *Handler) MonitoringAction(c *gin.Context) {
	action := c.Param("action")
	if errs := validation.Validate(
		validation.OneOf("action", action, ActionStart, ActionPause, ActionStop, ActionReset),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"message": errs.Error(),
			"details": errs,
		})
		return
	}

	st, err := h.board.Monitor(c.Request.Context(), action)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// PageHandler serves a page path such as "/agents". Visiting a page mounts
// it when needed, then returns its snapshot.
func (h *Handler) PageHandler(slug string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.board.Ensure(c.Request.Context(), slug); err != nil {
			writeError(c, err)
			return
		}
		snap, err := h.board.Snapshot(slug)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, snap)
	}
}
