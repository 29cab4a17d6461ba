package applications

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volunteerhub/backend/internal/middleware"
	"github.com/volunteerhub/backend/internal/models"
	"github.com/volunteerhub/backend/pkg/response"
)

func newRouter(h *Handler, p models.Principal) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if !p.IsZero() {
			c.Set(middleware.ContextUserID, p.ID)
			c.Set(middleware.ContextUserRole, string(p.Role))
		}
		c.Next()
	})
	r.POST("/applications/:opportunityId", h.Apply)
	r.PUT("/applications/:id", h.SetStatus)
	r.PUT("/applications/:id/cancel", h.Cancel)
	return r
}

func do(r http.Handler, method, path, body string) (*httptest.ResponseRecorder, response.Body) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var out response.Body
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestHandler_ApplyAndDecide(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.mgr, nil)

	w, body := do(newRouter(h, f.volunteer), http.MethodPost, "/applications/"+f.opp.ID.String(), "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, body.Success)
	data := body.Data.(map[string]interface{})
	assert.Equal(t, "pending", data["status"])
	id := data["id"].(string)

	w, body = do(newRouter(h, f.volunteer), http.MethodPost, "/applications/"+f.opp.ID.String(), "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "conflict", body.Code)

	w, _ = do(newRouter(h, f.rivalOrg), http.MethodPut, "/applications/"+id, `{"status":"approved"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = do(newRouter(h, f.org), http.MethodPut, "/applications/"+id, `{"status":"cancelled"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = do(newRouter(h, f.org), http.MethodPut, "/applications/"+id, `{"status":"approved"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "approved", body.Data.(map[string]interface{})["status"])

	w, body = do(newRouter(h, f.volunteer), http.MethodPut, "/applications/"+id+"/cancel", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid_state", body.Code)
}

func TestHandler_BadIDAndAnonymous(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.mgr, nil)

	w, _ := do(newRouter(h, f.volunteer), http.MethodPost, "/applications/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(newRouter(h, models.Principal{}), http.MethodPost, "/applications/"+f.opp.ID.String(), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
