package auth

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/volunteerhub/backend/internal/middleware"
	"github.com/volunteerhub/backend/internal/models"
	"github.com/volunteerhub/backend/pkg/apperror"
	"github.com/volunteerhub/backend/pkg/response"
	"github.com/volunteerhub/backend/pkg/storage"
	"github.com/volunteerhub/backend/pkg/utils"
)

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role"` // optional, defaults to volunteer
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// ProfileRequest is the body for PUT /users/profile.
type ProfileRequest struct {
	Name       *string  `json:"name"`
	Email      *string  `json:"email" binding:"omitempty,email"`
	Bio        *string  `json:"bio"`
	Skills     []string `json:"skills"`
	Experience *string  `json:"experience"`
	Location   *string  `json:"location"`
	Phone      *string  `json:"phone"`
	Avatar     *string  `json:"avatar"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// MediaCleaner removes uploaded images that are no longer referenced.
type MediaCleaner interface {
	Discard(ctx context.Context, url string)
}

// Handler handles auth and user profile HTTP endpoints.
type Handler struct {
	repo             *Repository
	jwt              *JWTService
	allowAdminSignup bool
	media            MediaCleaner
	logger           *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(repo *Repository, jwt *JWTService, allowAdminSignup bool, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, jwt: jwt, allowAdminSignup: allowAdminSignup, logger: logger}
}

// SetMediaCleaner enables removal of replaced avatars.
func (h *Handler) SetMediaCleaner(m MediaCleaner) {
	h.media = m
}

// ParseRole resolves a requested signup role.
func ParseRole(raw string, allowAdmin bool) (models.Role, error) {
	switch role := models.Role(strings.ToLower(strings.TrimSpace(raw))); role {
	case "":
		return models.RoleVolunteer, nil
	case models.RoleVolunteer, models.RoleOrg:
		return role, nil
	case models.RoleAdmin:
		if allowAdmin {
			return role, nil
		}
		return "", apperror.Unauthorized("admin accounts cannot be self-registered")
	}
	return "", apperror.InvalidInput("role must be volunteer or org")
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	role, err := ParseRole(req.Role, h.allowAdminSignup)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}
	user, err := h.repo.Create(c.Request.Context(), strings.TrimSpace(req.Name), strings.TrimSpace(req.Email), hash, role)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}

	token, err := h.jwt.Generate(user.ID, user.Role)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.Created(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if apperror.Is(err, apperror.KindNotFound) {
			response.Unauthorized(c, "invalid email or password")
			return
		}
		response.Error(c, h.logger, err)
		return
	}
	if !utils.CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	token, err := h.jwt.Generate(user.ID, user.Role)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.OK(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// Me handles GET /users/me.
func (h *Handler) Me(c *gin.Context) {
	p := middleware.PrincipalFrom(c)
	user, err := h.repo.GetByID(c.Request.Context(), p.ID)
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, user.ToPublic())
}

// UpdateProfile handles PUT /users/profile.
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		req.Name = nil
	}
	if req.Email != nil && strings.TrimSpace(*req.Email) == "" {
		req.Email = nil
	}
	p := middleware.PrincipalFrom(c)
	var oldAvatar string
	if req.Avatar != nil && h.media != nil {
		current, err := h.repo.GetByID(c.Request.Context(), p.ID)
		if err != nil {
			response.Error(c, h.logger, err)
			return
		}
		oldAvatar = current.Avatar
	}
	user, err := h.repo.UpdateProfile(c.Request.Context(), p.ID, ProfileUpdate{
		Name:       req.Name,
		Email:      req.Email,
		Bio:        req.Bio,
		Skills:     req.Skills,
		Experience: req.Experience,
		Location:   req.Location,
		Phone:      req.Phone,
		Avatar:     req.Avatar,
	})
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	if old := storage.ReplacedURL(oldAvatar, req.Avatar); old != "" {
		h.media.Discard(c.Request.Context(), old)
	}
	response.OK(c, user.ToPublic())
}

// List handles GET /users (admin only).
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, list)
}
