package handler_test

import (
	"bytes"
	"context"
	stderrors "errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/ai-router/internal/pkg/dbtest"
	"github.com/kart-io/ai-router/internal/rag/biz"
	"github.com/kart-io/ai-router/internal/rag/handler"
	"github.com/kart-io/ai-router/internal/rag/router"
	"github.com/kart-io/ai-router/internal/rag/store"
	"github.com/kart-io/ai-router/pkg/authz"
	"github.com/kart-io/ai-router/pkg/llm"
	"github.com/kart-io/ai-router/pkg/llm/resilience"
	"github.com/kart-io/ai-router/pkg/utils/errors"
	"github.com/kart-io/ai-router/pkg/utils/json"
)

type staticResponder struct{ answer string }

func (r staticResponder) Chat(context.Context, []llm.Message, string) (string, error) {
	return r.answer, nil
}

type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func (e envelope) field(key string) any {
	m, _ := e.Data.(map[string]any)
	return m[key]
}

func setup(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := biz.NewRAGService(store.NewFactory(dbtest.New(t)), staticResponder{answer: "use the manual"}, nil, nil)
	enf, err := authz.NewEnforcer([]int64{1})
	require.NoError(t, err)

	engine := gin.New()
	router.Register(engine, handler.NewRAGHandler(svc, biz.NewAdminCommands(svc, enf), 1))
	return engine
}

func do(t *testing.T, engine *gin.Engine, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func upload(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	return uploadAs(t, filename, content, "1")
}

func uploadAs(t *testing.T, filename, content, uploadedBy string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("uploaded_by", uploadedBy))
	require.NoError(t, mw.WriteField("source_url", "https://wiki.example/manual"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/rag/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonReq(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestRAGHandler_UploadQueryAndManage(t *testing.T) {
	engine := setup(t)

	w, env := do(t, engine, upload(t, "manual.txt", "Printer jam: open the cover and remove paper."))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), env.field("document_id"))
	assert.Equal(t, float64(1), env.field("chunk_count"))
	assert.Equal(t, false, env.field("is_duplicate"))

	w, env = do(t, engine, jsonReq(http.MethodPost, "/v1/rag/query", `{"user_id": 5, "question": "printer jam"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, env.field("found"))
	assert.Equal(t, "use the manual", env.field("answer"))

	w, env = do(t, engine, httptest.NewRequest(http.MethodGet, "/v1/rag/documents?status=active&limit=5", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, env.Data, 1)

	w, _ = do(t, engine, jsonReq(http.MethodPut, "/v1/rag/documents/1/status", `{"status": "archived", "updated_by": 1}`))
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = do(t, engine, jsonReq(http.MethodPost, "/v1/rag/query", `{"user_id": 5, "question": "printer jam"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, env.field("found"))

	w, env = do(t, engine, jsonReq(http.MethodPost, "/v1/rag/admin", `{"user_id": 1, "command": "#rag stats"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, env.field("reply"), "archived: 1")

	w, _ = do(t, engine, httptest.NewRequest(http.MethodDelete, "/v1/rag/documents/1?hard=true&updated_by=1", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = do(t, engine, httptest.NewRequest(http.MethodGet, "/v1/rag/documents/1", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, errors.ErrRAGDocumentNotFound.Code, env.Code)
}

func TestRAGHandler_Errors(t *testing.T) {
	engine := setup(t)

	tests := []struct {
		name   string
		req    *http.Request
		status int
		code   int
	}{
		{"不支持的格式", upload(t, "virus.exe", "MZ"), http.StatusBadRequest, errors.ErrRAGUnsupportedFormat.Code},
		{"文件过大", upload(t, "big.txt", strings.Repeat("a", 1024*1024+1)), http.StatusRequestEntityTooLarge, errors.ErrRAGFileTooLarge.Code},
		{"非法 ID", httptest.NewRequest(http.MethodGet, "/v1/rag/documents/abc", nil), http.StatusBadRequest, errors.ErrInvalidParam.Code},
		{"非法状态", jsonReq(http.MethodPut, "/v1/rag/documents/1/status", `{"status": "gone"}`), http.StatusBadRequest, errors.ErrValidationFailed.Code},
		{"文档不存在", jsonReq(http.MethodPut, "/v1/rag/documents/9/status", `{"status": "archived", "updated_by": 1}`), http.StatusNotFound, errors.ErrRAGDocumentNotFound.Code},
		{"缺少问题", jsonReq(http.MethodPost, "/v1/rag/query", `{"user_id": 1}`), http.StatusBadRequest, errors.ErrValidationFailed.Code},
		{"非管理员上传", uploadAs(t, "manual.txt", "text", "99"), http.StatusForbidden, errors.ErrRAGNotAdmin.Code},
		{"匿名上传", uploadAs(t, "manual.txt", "text", ""), http.StatusForbidden, errors.ErrRAGNotAdmin.Code},
		{"非管理员改状态", jsonReq(http.MethodPut, "/v1/rag/documents/1/status", `{"status": "archived", "updated_by": 99}`), http.StatusForbidden, errors.ErrRAGNotAdmin.Code},
		{"非管理员物理删除", httptest.NewRequest(http.MethodDelete, "/v1/rag/documents/1?hard=true&updated_by=99", nil), http.StatusForbidden, errors.ErrRAGNotAdmin.Code},
		{"非管理员", jsonReq(http.MethodPost, "/v1/rag/admin", `{"user_id": 2, "command": "#rag list"}`), http.StatusForbidden, errors.ErrRAGNotAdmin.Code},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := do(t, engine, tt.req)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, env.Code)
		})
	}
}

func TestRAGHandler_NonAdminCannotPurge(t *testing.T) {
	engine := setup(t)

	w, _ := do(t, engine, upload(t, "manual.txt", "Printer jam: open the cover and remove paper."))
	require.Equal(t, http.StatusOK, w.Code)

	w, env := do(t, engine, httptest.NewRequest(http.MethodDelete, "/v1/rag/documents/1?hard=true&updated_by=99", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, errors.ErrRAGNotAdmin.Code, env.Code)

	w, env = do(t, engine, httptest.NewRequest(http.MethodGet, "/v1/rag/documents/1", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "active", env.field("status"))
}

type failingResponder struct{ calls int }

func (r *failingResponder) Chat(context.Context, []llm.Message, string) (string, error) {
	r.calls++
	return "", stderrors.New("bad gateway")
}

func TestRAGHandler_QueryRespectsCircuitBreaker(t *testing.T) {
	gin.SetMode(gin.TestMode)

	upstream := &failingResponder{}
	cb := resilience.NewCircuitBreaker(&resilience.Config{FailureThreshold: 2, RecoveryTimeout: time.Minute})
	svc := biz.NewRAGService(store.NewFactory(dbtest.New(t)), resilience.NewGuardedResponder(upstream, cb), nil, nil)
	enf, err := authz.NewEnforcer([]int64{1})
	require.NoError(t, err)
	engine := gin.New()
	router.Register(engine, handler.NewRAGHandler(svc, biz.NewAdminCommands(svc, enf), 1))

	w, _ := do(t, engine, upload(t, "manual.txt", "Printer jam: open the cover and remove paper."))
	require.Equal(t, http.StatusOK, w.Code)

	query := `{"user_id": 5, "question": "printer jam"}`
	for i := 0; i < 2; i++ {
		w, env := do(t, engine, jsonReq(http.MethodPost, "/v1/rag/query", query))
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, errors.ErrProviderFailure.Code, env.Code)
	}
	assert.Equal(t, resilience.StateOpen, cb.State())

	for i := 0; i < 3; i++ {
		w, env := do(t, engine, jsonReq(http.MethodPost, "/v1/rag/query", query))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, errors.ErrCircuitOpen.Code, env.Code)
	}
	assert.Equal(t, 2, upstream.calls)
	assert.Equal(t, 2, cb.StatusInfo().FailureCount)
}
