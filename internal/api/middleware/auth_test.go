package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Davzs/adezz/internal/api/middleware"
	"github.com/Davzs/adezz/internal/auth"
	"github.com/Davzs/adezz/internal/utils"
)

const testSecret = "test-secret"

func token(t *testing.T, userID utils.SixID, admin bool, ttl time.Duration) string {
	tok, err := auth.GenerateJWT(userID, admin, testSecret, ttl)
	require.NoError(t, err)
	return tok
}

func whoAmI(c *gin.Context) {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		c.String(http.StatusOK, "anonymous")
		return
	}
	c.String(http.StatusOK, id.UserID.String())
}

func serve(r *gin.Engine, method, path, authz string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/me", middleware.AuthMiddleware(testSecret), whoAmI)

	userID := utils.NewSixID()

	w := serve(r, http.MethodGet, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Authorization header required")

	w = serve(r, http.MethodGet, "/me", "Token abc")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, http.MethodGet, "/me", "Bearer "+token(t, userID, false, -time.Minute))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(r, http.MethodGet, "/me", "Bearer "+token(t, userID, false, time.Hour))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID.String(), w.Body.String())
}

func TestOptionalAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/listing", middleware.OptionalAuthMiddleware(testSecret), whoAmI)

	w := serve(r, http.MethodGet, "/listing", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anonymous", w.Body.String())

	userID := utils.NewSixID()
	w = serve(r, http.MethodGet, "/listing", "bearer "+token(t, userID, false, time.Hour))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID.String(), w.Body.String())

	w = serve(r, http.MethodGet, "/listing", "Bearer not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", middleware.AuthMiddleware(testSecret), middleware.AdminMiddleware(), whoAmI)

	w := serve(r, http.MethodGet, "/admin", "Bearer "+token(t, utils.NewSixID(), false, time.Hour))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = serve(r, http.MethodGet, "/admin", "Bearer "+token(t, utils.NewSixID(), true, time.Hour))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.CORSMiddleware("https://market.example.com"))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	w := serve(r, http.MethodOptions, "/ping", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://market.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	w = serve(r, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}

func TestRequestIDAndAccessLog(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestIDMiddleware(), middleware.AccessLogMiddleware(zaptest.NewLogger(t)), middleware.RecoveryMiddleware(zaptest.NewLogger(t)))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-123")
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-123", w.Header().Get(middleware.RequestIDHeader))

	w = serve(r, http.MethodGet, "/ping", "")
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	w = serve(r, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
