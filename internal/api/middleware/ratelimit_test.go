package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/Davzs/adezz/internal/api/middleware"
)

func setupRateLimitedEngine(t *testing.T, bucket, refill int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	rl := middleware.NewRateLimiterMiddleware("test", bucket, refill, zaptest.NewLogger(t))
	t.Cleanup(rl.Stop)

	r := gin.New()
	r.Use(rl.Limit())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func doFrom(r *gin.Engine, ip string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
	req.RemoteAddr = ip + ":12345"
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimit_AllowsBurstThenRejects(t *testing.T) {
	r := setupRateLimitedEngine(t, 3, 1)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doFrom(r, "10.0.0.1").Code, "request %d", i)
	}
	w := doFrom(r, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "Rate limit exceeded")
}

func TestRateLimit_ClientsAreIndependent(t *testing.T) {
	r := setupRateLimitedEngine(t, 1, 1)

	assert.Equal(t, http.StatusOK, doFrom(r, "10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, doFrom(r, "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, doFrom(r, "10.0.0.2").Code)
}

func TestRateLimit_StopIsIdempotent(t *testing.T) {
	rl := middleware.NewRateLimiterMiddleware("test", 1, 1, zaptest.NewLogger(t))
	rl.Stop()
	assert.NotPanics(t, rl.Stop)
}
