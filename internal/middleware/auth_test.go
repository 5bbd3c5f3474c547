package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse-reports/internal/services"
)

func setupAuthRouter(t *testing.T, jwtService *services.JWTService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/protected", AuthRequired(jwtService), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"userId": c.GetString(ContextUserID),
			"token":  c.GetString(ContextAuthToken),
		})
	})
	return router
}

func TestAuthRequiredAcceptsValidToken(t *testing.T) {
	jwtService := services.NewJWTService("test-secret")
	router := setupAuthRouter(t, jwtService)

	token, err := jwtService.GenerateToken("u1", "u1@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"userId":"u1"`)
	assert.Contains(t, w.Body.String(), token)
}

func TestAuthRequiredRejectsMissingHeader(t *testing.T) {
	router := setupAuthRouter(t, services.NewJWTService("test-secret"))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRequiredRejectsMalformedHeader(t *testing.T) {
	router := setupAuthRouter(t, services.NewJWTService("test-secret"))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Token abcdef")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRequiredRejectsWrongSecret(t *testing.T) {
	router := setupAuthRouter(t, services.NewJWTService("test-secret"))

	otherService := services.NewJWTService("other-secret")
	token, err := otherService.GenerateToken("u1", "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
