package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/volunteerhub/backend/pkg/apperror"
)

func TestError_MapsKinds(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"conflict", apperror.Conflict("already applied"), http.StatusConflict, "conflict", "already applied"},
		{"invalid state", apperror.InvalidState("application is not pending"), http.StatusConflict, "invalid_state", "application is not pending"},
		{"forbidden", apperror.Forbidden("not your opportunity"), http.StatusForbidden, "forbidden", "not your opportunity"},
		{"not found", apperror.NotFound("application not found"), http.StatusNotFound, "not_found", "application not found"},
		{"invalid input", apperror.InvalidInput("invalid status"), http.StatusBadRequest, "invalid_input", "invalid status"},
		{"unauthenticated", apperror.Unauthenticated("missing token"), http.StatusUnauthorized, "unauthenticated", "missing token"},
		{"unclassified", errors.New("dial tcp: refused"), http.StatusInternalServerError, "internal", "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			Error(c, zap.NewNop(), tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			var body Body
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantMsg, body.Error)
		})
	}
}
