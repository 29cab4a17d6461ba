package opportunities

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/volunteerhub/backend/internal/middleware"
	"github.com/volunteerhub/backend/internal/models"
	"github.com/volunteerhub/backend/pkg/apperror"
	"github.com/volunteerhub/backend/pkg/response"
	"github.com/volunteerhub/backend/pkg/storage"
)

// CreateRequest is the body for POST /opportunities.
type CreateRequest struct {
	Title       string   `json:"title" binding:"required"`
	Description string   `json:"description" binding:"required"`
	Deadline    string   `json:"deadline" binding:"required"`
	Category    string   `json:"category"`
	Location    string   `json:"location"`
	Skills      []string `json:"skills"`
	ImageURL    string   `json:"image_url"`
}

// UpdateRequest is the body for PUT /opportunities/:id.
type UpdateRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Deadline    *string  `json:"deadline"`
	Category    *string  `json:"category"`
	Location    *string  `json:"location"`
	Skills      []string `json:"skills"`
	ImageURL    *string  `json:"image_url"`
}

// MediaCleaner removes uploaded images that are no longer referenced.
type MediaCleaner interface {
	Discard(ctx context.Context, url string)
}

// Handler handles opportunity HTTP endpoints.
type Handler struct {
	repo   *Repository
	media  MediaCleaner
	logger *zap.Logger
}

// NewHandler creates an opportunity handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// SetMediaCleaner enables removal of replaced or orphaned opportunity images.
func (h *Handler) SetMediaCleaner(m MediaCleaner) {
	h.media = m
}

func (h *Handler) discard(ctx context.Context, url string) {
	if h.media != nil && url != "" {
		h.media.Discard(ctx, url)
	}
}

// ParseDeadline accepts RFC3339 timestamps or plain dates (YYYY-MM-DD).
func ParseDeadline(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, apperror.InvalidInput("deadline must be an RFC3339 timestamp or YYYY-MM-DD date")
}

// Create handles POST /opportunities (org only).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	deadline, err := ParseDeadline(req.Deadline)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	p := middleware.PrincipalFrom(c)
	o := &models.Opportunity{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Deadline:    deadline,
		Category:    req.Category,
		Location:    req.Location,
		Skills:      req.Skills,
		ImageURL:    req.ImageURL,
		CreatedBy:   p.ID,
	}
	if err := h.repo.Create(c.Request.Context(), o); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.Created(c, o)
}

// GetByID handles GET /opportunities/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid opportunity id")
		return
	}
	o, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, o)
}

// List handles GET /opportunities?q=&category=&location=&skill=. ?mine=1 limits to the caller's own.
func (h *Handler) List(c *gin.Context) {
	f := models.OpportunityFilter{
		Query:    c.Query("q"),
		Category: c.Query("category"),
		Location: c.Query("location"),
		Skill:    c.Query("skill"),
	}
	if c.Query("mine") == "1" {
		if p := middleware.PrincipalFrom(c); !p.IsZero() {
			f.CreatedBy = &p.ID
		}
	}
	list, err := h.repo.List(c.Request.Context(), f)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}

// Update handles PUT /opportunities/:id (owner only).
func (h *Handler) Update(c *gin.Context) {
	current, ok := h.owned(c)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request")
		return
	}
	u := Update{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Location:    req.Location,
		Skills:      req.Skills,
		ImageURL:    req.ImageURL,
	}
	if req.Deadline != nil {
		t, err := ParseDeadline(*req.Deadline)
		if err != nil {
			response.Error(c, h.logger, err)
			return
		}
		u.Deadline = &t
	}
	o, err := h.repo.Update(c.Request.Context(), current.ID, u)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	h.discard(c.Request.Context(), storage.ReplacedURL(current.ImageURL, req.ImageURL))
	response.OK(c, o)
}

// Delete handles DELETE /opportunities/:id (owner only).
func (h *Handler) Delete(c *gin.Context) {
	current, ok := h.owned(c)
	if !ok {
		return
	}
	if err := h.repo.Delete(c.Request.Context(), current.ID); err != nil {
		response.Error(c, h.logger, err)
		return
	}
	h.discard(c.Request.Context(), current.ImageURL)
	response.NoContent(c)
}

// owned loads the opportunity in :id and checks the caller created it.
func (h *Handler) owned(c *gin.Context) (*models.Opportunity, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid opportunity id")
		return nil, false
	}
	o, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		response.Error(c, h.logger, err)
		return nil, false
	}
	if o.CreatedBy != middleware.PrincipalFrom(c).ID {
		response.Error(c, h.logger, apperror.Forbidden("only the creator can modify this opportunity"))
		return nil, false
	}
	return o, true
}
