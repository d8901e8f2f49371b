package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ecos/internal/identity"
	"ecos/internal/pkg/jwt"
	"ecos/internal/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

func newProvider(secret string) (*identity.LocalProvider, *jwt.Service) {
	svc := jwt.New(secret, time.Hour, "ecos-test")
	return identity.NewLocalProvider(nil, svc), svc
}

func serve(router *gin.Engine, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestJWTAuth_ValidToken(t *testing.T) {
	provider, svc := newProvider("test-secret-123")
	userID := uuid.New()
	token, err := svc.GenerateToken(userID, "owner@example.com", true, identity.RoleUser)
	require.NoError(t, err)

	router := gin.New()
	router.Use(JWTAuth(provider))
	router.GET("/protected", func(c *gin.Context) {
		actor := Actor(c)
		c.JSON(http.StatusOK, gin.H{"user_id": actor.ID, "role": actor.Role, "email": actor.Email})
	})

	w := serve(router, "Bearer "+token)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), userID.String())
	assert.Contains(t, w.Body.String(), identity.RoleUser)
	assert.Contains(t, w.Body.String(), "owner@example.com")
}

func TestJWTAuth_InvalidToken(t *testing.T) {
	provider, _ := newProvider("secret")
	_, other := newProvider("wrong-secret")
	forged, err := other.GenerateToken(uuid.New(), "x@example.com", true, identity.RoleModerator)
	require.NoError(t, err)

	router := gin.New()
	router.Use(JWTAuth(provider))
	router.GET("/protected", func(c *gin.Context) {
		t.Fatal("handler should not be reached")
	})

	for _, header := range []string{"Bearer invalid-jwt-here", "Bearer " + forged} {
		w := serve(router, header)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
	}
}

func TestJWTAuth_MissingOrMalformedHeader(t *testing.T) {
	provider, _ := newProvider("secret")

	router := gin.New()
	router.Use(JWTAuth(provider))
	router.GET("/protected", func(c *gin.Context) {
		t.Fatal("Should not reach here")
	})

	for _, header := range []string{"", "Basic dGVzdA==", "Bearer "} {
		w := serve(router, header)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "header %q", header)
	}
}

func TestModeratorOnly(t *testing.T) {
	provider, svc := newProvider("secret")
	user, _ := svc.GenerateToken(uuid.New(), "u@example.com", true, identity.RoleUser)
	mod, _ := svc.GenerateToken(uuid.New(), "m@example.com", true, identity.RoleModerator)

	router := gin.New()
	router.Use(JWTAuth(provider), ModeratorOnly())
	router.GET("/protected", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := serve(router, "Bearer "+user)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "FORBIDDEN")

	w = serve(router, "Bearer "+mod)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRequireRole_WithoutAuth(t *testing.T) {
	router := gin.New()
	router.Use(RequireRole(identity.RoleModerator))
	router.GET("/protected", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusUnauthorized, serve(router, "").Code)
}

func TestRequireVerifiedEmail(t *testing.T) {
	provider, svc := newProvider("secret")
	unverified, _ := svc.GenerateToken(uuid.New(), "u@example.com", false, identity.RoleUser)

	router := gin.New()
	router.Use(JWTAuth(provider), RequireVerifiedEmail())
	router.GET("/protected", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusForbidden, serve(router, "Bearer "+unverified).Code)
}

func TestRequestLogger_RecoversPanic(t *testing.T) {
	router := gin.New()
	router.Use(RequestID(), RequestLogger(logger.Nop()))
	router.GET("/protected", func(c *gin.Context) { panic("boom") })

	w := serve(router, "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_SERVER_ERROR")
	assert.NotContains(t, w.Body.String(), "boom")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequestID_KeepsCallerValue(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/protected", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("request_id")) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	router.ServeHTTP(w, req)

	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestCORS(t *testing.T) {
	router := gin.New()
	router.Use(CORS([]string{"https://ecos.example"}))
	router.GET("/protected", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/protected", nil)
	req.Header.Set("Origin", "https://ecos.example")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://ecos.example", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Origin", "https://evil.example")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
