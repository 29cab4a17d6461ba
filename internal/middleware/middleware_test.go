package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/volunteerhub/backend/internal/models"
)

type stubVerifier struct {
	principal models.Principal
	err       error
}

func (s stubVerifier) Verify(string) (models.Principal, error) { return s.principal, s.err }

func setupRedis(t *testing.T) *redis.Client {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		p := PrincipalFrom(c)
		c.JSON(http.StatusOK, gin.H{"id": p.ID, "role": p.Role})
	})
	r.GET("/", handlers...)
	return r
}

func do(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWT(t *testing.T) {
	p := models.Principal{ID: uuid.New(), Role: models.RoleVolunteer}

	tests := []struct {
		name     string
		verifier Verifier
		header   string
		want     int
	}{
		{"missing header", stubVerifier{principal: p}, "", http.StatusUnauthorized},
		{"wrong scheme", stubVerifier{principal: p}, "Basic abc", http.StatusUnauthorized},
		{"invalid token", stubVerifier{err: errors.New("bad")}, "Bearer abc", http.StatusUnauthorized},
		{"valid token", stubVerifier{principal: p}, "Bearer abc", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(newRouter(JWT(tt.verifier)), tt.header)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestOptionalJWT(t *testing.T) {
	p := models.Principal{ID: uuid.New(), Role: models.RoleOrg}

	w := do(newRouter(OptionalJWT(stubVerifier{principal: p})), "Bearer abc")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), p.ID.String())

	w = do(newRouter(OptionalJWT(stubVerifier{err: errors.New("bad")})), "Bearer abc")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), uuid.Nil.String())

	assert.Equal(t, http.StatusOK, do(newRouter(OptionalJWT(stubVerifier{principal: p})), "").Code)
}

func TestRequireRole(t *testing.T) {
	org := stubVerifier{principal: models.Principal{ID: uuid.New(), Role: models.RoleOrg}}
	vol := stubVerifier{principal: models.Principal{ID: uuid.New(), Role: models.RoleVolunteer}}

	assert.Equal(t, http.StatusOK, do(newRouter(JWT(org), RequireRole(models.RoleOrg)), "Bearer t").Code)
	assert.Equal(t, http.StatusForbidden, do(newRouter(JWT(vol), RequireRole(models.RoleOrg)), "Bearer t").Code)
	assert.Equal(t, http.StatusUnauthorized, do(newRouter(RequireRole(models.RoleOrg)), "").Code)
}

func TestRedisLimiter(t *testing.T) {
	l := NewRedisLimiter(setupRedis(t))

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("apply:u1", 3, time.Minute), "request %d", i+1)
	}
	assert.False(t, l.Allow("apply:u1", 3, time.Minute))
	assert.True(t, l.Allow("apply:u2", 3, time.Minute))
}

func TestMemoryLimiter(t *testing.T) {
	l := NewMemoryLimiter()

	assert.True(t, l.Allow("k", 2, time.Hour))
	assert.True(t, l.Allow("k", 2, time.Hour))
	assert.False(t, l.Allow("k", 2, time.Hour))
	assert.True(t, l.Allow("other", 2, time.Hour))
}

func TestRateLimit_RejectsOverLimit(t *testing.T) {
	verifier := stubVerifier{principal: models.Principal{ID: uuid.New(), Role: models.RoleVolunteer}}
	r := newRouter(JWT(verifier), RateLimit(NewMemoryLimiter(), "apply", 1, time.Hour))

	assert.Equal(t, http.StatusOK, do(r, "Bearer t").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, "Bearer t").Code)
}
