package applications

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/volunteerhub/backend/internal/middleware"
	"github.com/volunteerhub/backend/pkg/response"
)

// StatusRequest is the body for PUT /applications/:id.
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// Handler exposes the application lifecycle over HTTP.
type Handler struct {
	manager *Manager
	logger  *zap.Logger
}

// NewHandler creates an applications handler.
func NewHandler(manager *Manager, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{manager: manager, logger: logger}
}

func parseID(c *gin.Context, param, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		response.BadRequest(c, "invalid "+what+" id")
		return uuid.Nil, false
	}
	return id, true
}

// Apply handles POST /applications/:opportunityId.
func (h *Handler) Apply(c *gin.Context) {
	oppID, ok := parseID(c, "opportunityId", "opportunity")
	if !ok {
		return
	}
	app, err := h.manager.Create(c.Request.Context(), middleware.PrincipalFrom(c), oppID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, app)
}

// List handles GET /applications.
func (h *Handler) List(c *gin.Context) {
	list, err := h.manager.List(c.Request.Context(), middleware.PrincipalFrom(c))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// Get handles GET /applications/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c, "id", "application")
	if !ok {
		return
	}
	app, err := h.manager.Get(c.Request.Context(), middleware.PrincipalFrom(c), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, app)
}

// ListForOpportunity handles GET /opportunities/:id/applications.
func (h *Handler) ListForOpportunity(c *gin.Context) {
	id, ok := parseID(c, "id", "opportunity")
	if !ok {
		return
	}
	list, err := h.manager.ListForOpportunity(c.Request.Context(), middleware.PrincipalFrom(c), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// SetStatus handles PUT /applications/:id (approve or reject).
func (h *Handler) SetStatus(c *gin.Context) {
	id, ok := parseID(c, "id", "application")
	if !ok {
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "status is required")
		return
	}
	app, err := h.manager.SetStatus(c.Request.Context(), middleware.PrincipalFrom(c), id, req.Status)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, app)
}

// Cancel handles PUT /applications/:id/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	id, ok := parseID(c, "id", "application")
	if !ok {
		return
	}
	app, err := h.manager.Cancel(c.Request.Context(), middleware.PrincipalFrom(c), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, app)
}

// Notifications handles GET /applications/notifications.
func (h *Handler) Notifications(c *gin.Context) {
	list, err := h.manager.Unread(c.Request.Context(), middleware.PrincipalFrom(c))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// MarkRead handles PUT /applications/:id/notifications/read.
func (h *Handler) MarkRead(c *gin.Context) {
	id, ok := parseID(c, "id", "application")
	if !ok {
		return
	}
	n, err := h.manager.MarkRead(c.Request.Context(), middleware.PrincipalFrom(c), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"updated_count": n})
}

// MarkAllRead handles PUT /applications/notifications/read and PUT /admin/notifications/read.
func (h *Handler) MarkAllRead(c *gin.Context) {
	n, err := h.manager.MarkAllRead(c.Request.Context(), middleware.PrincipalFrom(c))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"updated_count": n})
}

// Stats handles GET /admin/stats.
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.manager.Stats(c.Request.Context(), middleware.PrincipalFrom(c))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, stats)
}

// Leaderboard handles GET /admin/leaderboard?limit=10.
func (h *Handler) Leaderboard(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	list, err := h.manager.Leaderboard(c.Request.Context(), middleware.PrincipalFrom(c), limit)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}
