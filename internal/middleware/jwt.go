package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/volunteerhub/backend/internal/models"
	"github.com/volunteerhub/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for user role in gin context.
	ContextUserRole = "user_role"
)

// Verifier resolves a bearer credential to a principal.
type Verifier interface {
	Verify(token string) (models.Principal, error)
}

// JWT returns a middleware that validates the bearer token and sets the principal in context.
func JWT(verifier Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		p, err := verifier.Verify(parts[1])
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, p.ID)
		c.Set(ContextUserRole, string(p.Role))
		c.Next()
	}
}

// PrincipalFrom returns the principal set by JWT, or a zero principal.
func PrincipalFrom(c *gin.Context) models.Principal {
	idVal, ok := c.Get(ContextUserID)
	if !ok {
		return models.Principal{}
	}
	id, _ := idVal.(uuid.UUID)
	role, _ := c.Get(ContextUserRole)
	roleStr, _ := role.(string)
	return models.Principal{ID: id, Role: models.Role(roleStr)}
}

// OptionalJWT sets the principal when a valid bearer token is present and
// lets anonymous requests through untouched.
func OptionalJWT(verifier Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if ok && token != "" {
			if p, err := verifier.Verify(token); err == nil {
				c.Set(ContextUserID, p.ID)
				c.Set(ContextUserRole, string(p.Role))
			}
		}
		c.Next()
	}
}
