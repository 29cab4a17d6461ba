package emaillogs

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/volunteerhub/backend/pkg/response"
)

// Handler handles email log HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates an email logs handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// ListRecent handles GET /admin/emails?limit=50. Call behind RequireRole(admin).
func (h *Handler) ListRecent(c *gin.Context) {
	logs, err := h.repo.ListRecent(c.Request.Context(), parseLimit(c.Query("limit")))
	if err != nil {
		response.Error(c, h.logger, err)
		return
	}
	response.OK(c, logs)
}

const (
	defaultLimit = 50
	maxLimit     = 500
)

func parseLimit(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultLimit
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}
