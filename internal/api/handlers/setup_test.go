package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/Davzs/adezz/internal/api/middleware"
	"github.com/Davzs/adezz/internal/auth"
	"github.com/Davzs/adezz/internal/utils"
)

// newEngine returns a test engine that authenticates every request as userID,
// or none when userID is zero.
func newEngine(userID utils.SixID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if !userID.IsZero() {
		r.Use(func(c *gin.Context) {
			c.Set(middleware.ContextKeyIdentity, auth.Identity{UserID: userID})
			c.Set(middleware.ContextKeyUserID, userID.String())
			c.Next()
		})
	}
	return r
}

func doRequest(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewReader(raw)
	}
	req, _ := http.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	decodeBody(t, w, &body)
	return body
}
