package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/confero-api/internal/models"
	"github.com/noah-isme/confero-api/internal/service"
)

func newAuthService() *service.AuthService {
	return service.NewAuthService(nil, nil, zap.NewNop(), service.AuthConfig{
		AccessTokenSecret: "test-secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "confero-test",
	})
}

func setupRouter(roles ...models.Role) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected",
		func(c *gin.Context) {
			c.Set(ContextUserKey, &models.JWTClaims{UserID: "u1", Roles: roles})
			c.Next()
		},
		RequireRoles(models.RoleAdmin),
		func(c *gin.Context) { c.Status(http.StatusOK) },
	)
	return r
}

func TestRequireRolesAllowsMatchingRole(t *testing.T) {
	r := setupRouter(models.RoleUser, models.RoleAdmin)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRolesRejectsMissingRole(t *testing.T) {
	r := setupRouter(models.RoleUser, models.RoleReviewer)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireRolesRejectsAnonymous(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", RequireRoles(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestJWTMiddlewareRejectsBadHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", JWT(newAuthService()), func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, header := range []string{"", "Token abc", "Bearer not-a-jwt"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/protected", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusUnauthorized, w.Code, "header %q", header)
	}
}
