package sessions

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/guardlens/internal/logging"
	"github.com/mbd888/guardlens/internal/pagination"
)

// Handler provides HTTP endpoints for monitoring session history.
type Handler struct {
	store Store
}

// NewHandler creates a new session history handler.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes sets up session history routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/sessions", h.ListSessions)
	r.GET("/sessions/:id", h.GetSession)
}

// ListSessions handles GET /v1/sessions?limit=&cursor=
func (h *Handler) ListSessions(c *gin.Context) {
	limit := pagination.ParseLimit(c.Query("limit"))
	cursor := c.Query("cursor")
	if _, err := pagination.Decode(cursor); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_cursor", "message": "cursor is malformed"})
		return
	}

	items, err := h.store.List(c.Request.Context(), limit+1, WithCursor(cursor))
	if errors.Is(err, ErrUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "unavailable", "message": "Session history is temporarily unavailable"})
		return
	}
	if err != nil {
		logging.L(c.Request.Context()).Error("failed to list sessions", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Failed to list sessions"})
		return
	}
	items, next, more := pagination.ComputePage(items, limit, PageKey)

	c.JSON(http.StatusOK, gin.H{
		"sessions":   items,
		"count":      len(items),
		"nextCursor": next,
		"hasMore":    more,
	})
}

// GetSession handles GET /v1/sessions/:id
func (h *Handler) GetSession(c *gin.Context) {
	s, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "Session not found"})
			return
		}
		if errors.Is(err, ErrUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "unavailable", "message": "Session history is temporarily unavailable"})
			return
		}
		logging.L(c.Request.Context()).Error("failed to get session", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Failed to load session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": s})
}
