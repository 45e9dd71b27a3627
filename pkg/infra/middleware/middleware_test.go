package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/ai-router/pkg/id"
	infralog "github.com/kart-io/ai-router/pkg/infra/logger"
	"github.com/kart-io/ai-router/pkg/infra/middleware"
	"github.com/kart-io/ai-router/pkg/utils/errors"
	"github.com/kart-io/ai-router/pkg/utils/json"
)

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	e := gin.New()
	e.Use(handlers...)
	return e
}

func TestRequestID(t *testing.T) {
	e := newEngine(middleware.RequestID(nil))
	var fromCtx string
	var logFields []any
	e.GET("/x", func(c *gin.Context) {
		fromCtx = id.RequestIDFrom(c.Request.Context())
		logFields = infralog.Fields(c.Request.Context())
		c.String(http.StatusOK, c.GetString(middleware.ContextKeyRequestID))
	})

	t.Run("生成", func(t *testing.T) {
		w := httptest.NewRecorder()
		e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		rid := w.Header().Get(middleware.HeaderXRequestID)
		assert.True(t, id.Valid(rid))
		assert.Equal(t, rid, w.Body.String())
		assert.Equal(t, rid, fromCtx)
		assert.Equal(t, []any{"request_id", rid}, logFields)
	})

	t.Run("沿用客户端 ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set(middleware.HeaderXRequestID, "abc-123")
		w := httptest.NewRecorder()
		e.ServeHTTP(w, req)
		assert.Equal(t, "abc-123", w.Header().Get(middleware.HeaderXRequestID))
	})

	t.Run("过长的 ID 被替换", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.Header.Set(middleware.HeaderXRequestID, strings.Repeat("a", 100))
		w := httptest.NewRecorder()
		e.ServeHTTP(w, req)
		assert.True(t, id.Valid(w.Header().Get(middleware.HeaderXRequestID)))
	})
}

func TestRecovery(t *testing.T) {
	e := newEngine(middleware.RequestID(nil), middleware.Recovery(), middleware.Logger())
	e.GET("/panic", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(errors.ErrInternal.Code), body["code"])
	assert.NotEmpty(t, body["request_id"])
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestBodyLimit(t *testing.T) {
	e := newEngine(middleware.BodyLimit(8, "/upload"))
	e.POST("/json", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	e.POST("/upload", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/json", strings.NewReader("0123456789")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/json", strings.NewReader("{}")))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("0123456789")))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestTracing(t *testing.T) {
	e := newEngine(middleware.RequestID(nil), middleware.Tracing("/healthz"))
	e.GET("/v1/status", func(c *gin.Context) { c.Status(http.StatusOK) })
	e.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/v1/status", "/healthz"} {
		w := httptest.NewRecorder()
		e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
