package messages

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/volunteerhub/backend/internal/middleware"
	"github.com/volunteerhub/backend/internal/models"
	"github.com/volunteerhub/backend/internal/realtime"
	"github.com/volunteerhub/backend/pkg/apperror"
	"github.com/volunteerhub/backend/pkg/response"
)

// MaxContentLength bounds a message body in characters.
const MaxContentLength = 5000

// SendRequest is the body for POST /messages/send.
type SendRequest struct {
	ReceiverID   string               `json:"receiver_id" binding:"required"`
	Content      string               `json:"content" binding:"required"`
	EventContext *models.EventContext `json:"event_context"`
}

// ApplicationLister returns the applications visible to a principal.
type ApplicationLister interface {
	List(ctx context.Context, p models.Principal) ([]models.Application, error)
}

// Pusher delivers realtime events to a user.
type Pusher interface {
	PublishToUser(userID uuid.UUID, event string, payload interface{}) error
}

// Handler handles direct messaging endpoints.
type Handler struct {
	repo   *Repository
	apps   ApplicationLister
	pusher Pusher
	logger *zap.Logger
}

// NewHandler creates a messages handler. pusher may be nil.
func NewHandler(repo *Repository, apps ApplicationLister, pusher Pusher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, apps: apps, pusher: pusher, logger: logger}
}

// NewMessage validates a send request from sender.
func NewMessage(sender uuid.UUID, req SendRequest) (*models.Message, error) {
	receiver, err := uuid.Parse(req.ReceiverID)
	if err != nil {
		return nil, apperror.InvalidInput("invalid receiver_id")
	}
	if receiver == sender {
		return nil, apperror.InvalidInput("cannot message yourself")
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, apperror.InvalidInput("content is required")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, apperror.InvalidInput("content is too long")
	}
	m := &models.Message{SenderID: sender, ReceiverID: receiver, Content: content}
	if req.EventContext != nil && req.EventContext.OpportunityID != uuid.Nil {
		ec := *req.EventContext
		m.EventContext = &ec
	}
	return m, nil
}

// Send handles POST /messages/send.
func (h *Handler) Send(c *gin.Context) {
	var req SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	p := middleware.PrincipalFrom(c)
	m, err := NewMessage(p.ID, req)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	if err := h.repo.Create(c.Request.Context(), m); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	if h.pusher != nil {
		if err := h.pusher.PublishToUser(m.ReceiverID, realtime.EventNewMessage, m); err != nil {
			h.logger.Warn("push new message failed", zap.Error(err), zap.String("message_id", m.ID.String()))
		}
	}
	response.Created(c, m)
}

// Conversations handles GET /messages/conversations.
func (h *Handler) Conversations(c *gin.Context) {
	ctx := c.Request.Context()
	p := middleware.PrincipalFrom(c)
	msgs, err := h.repo.ListForUser(ctx, p.ID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	users, err := h.repo.Participants(ctx, Counterparts(p.ID, msgs))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	var apps []models.Application
	if p.Role == models.RoleOrg && h.apps != nil {
		if apps, err = h.apps.List(ctx, p); err != nil {
			response.Error(c, h.logger, err)
			return
		}
	}
	response.OK(c, BuildConversations(p.ID, msgs, users, apps))
}

// Thread handles GET /messages/:userId.
func (h *Handler) Thread(c *gin.Context) {
	other, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	list, err := h.repo.Thread(c.Request.Context(), middleware.PrincipalFrom(c).ID, other)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// MarkRead handles PUT /messages/read/:userId.
func (h *Handler) MarkRead(c *gin.Context) {
	sender, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	n, err := h.repo.MarkRead(c.Request.Context(), sender, middleware.PrincipalFrom(c).ID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, gin.H{"updated_count": n})
}
