// Package handler provides HTTP handlers for the knowledge base.
package handler

import (
	"context"
	stderrors "errors"
	"io"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/ai-router/internal/pkg/httputils"
	"github.com/kart-io/ai-router/internal/rag/biz"
	"github.com/kart-io/ai-router/pkg/llm/resilience"
	"github.com/kart-io/ai-router/pkg/utils/errors"
)

const (
	defaultListLimit = 20
	queryTimeout     = 60 * time.Second
)

// RAGHandler handles knowledge base HTTP requests.
type RAGHandler struct {
	service     biz.Service
	admin       *biz.AdminCommands
	maxUploadMB int
}

// NewRAGHandler creates a new RAGHandler.
func NewRAGHandler(service biz.Service, admin *biz.AdminCommands, maxUploadMB int) *RAGHandler {
	return &RAGHandler{
		service:     service,
		admin:       admin,
		maxUploadMB: maxUploadMB,
	}
}

// Upload 接收 multipart 文件并入库。
func (h *RAGHandler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		httputils.WriteResponse(c, errors.ErrBadRequest.WithMessage("multipart field 'file' is required"), nil)
		return
	}
	uploadedBy, err := parseOptionalInt(c.PostForm("uploaded_by"))
	if err != nil {
		httputils.WriteResponse(c, errors.ErrInvalidParam.WithMessage("uploaded_by must be an integer"), nil)
		return
	}
	if !h.authorize(c, uploadedBy) {
		return
	}
	// 大小在读取前拒绝
	if h.maxUploadMB > 0 && fh.Size > int64(h.maxUploadMB)*1024*1024 {
		httputils.WriteResponse(c, errors.ErrRAGFileTooLarge, nil)
		return
	}

	f, err := fh.Open()
	if err != nil {
		httputils.WriteResponse(c, errors.ErrBadRequest.WithCause(err), nil)
		return
	}
	defer func() { _ = f.Close() }()
	payload, err := io.ReadAll(f)
	if err != nil {
		httputils.WriteResponse(c, errors.ErrBadRequest.WithCause(err), nil)
		return
	}

	result, err := h.service.Ingest(c.Request.Context(), &biz.IngestRequest{
		Filename:   fh.Filename,
		Payload:    payload,
		UploadedBy: uploadedBy,
		SourceType: biz.SourceTypeAPI,
		SourceURL:  c.PostForm("source_url"),
	})
	if err != nil {
		logger.Warnw("rag upload failed", "filename", fh.Filename, "error", err.Error())
	}
	httputils.WriteResponse(c, err, result)
}

// List 列出文档。
func (h *RAGHandler) List(c *gin.Context) {
	limit := defaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httputils.WriteResponse(c, errors.ErrInvalidParam.WithMessage("limit must be an integer"), nil)
			return
		}
		limit = n
	}
	docs, err := h.service.List(c.Request.Context(), c.Query("status"), limit)
	httputils.WriteResponse(c, err, docs)
}

// Get 获取文档详情。
func (h *RAGHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	doc, err := h.service.Get(c.Request.Context(), id)
	httputils.WriteResponse(c, err, doc)
}

// SetStatusRequest 修改文档状态请求。
type SetStatusRequest struct {
	Status    string `json:"status" binding:"required,oneof=active archived deleted"`
	UpdatedBy int64  `json:"updated_by"`
}

// SetStatus 修改文档状态。
func (h *RAGHandler) SetStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, errors.ErrValidationFailed.WithMessage(err.Error()), nil)
		return
	}
	if !h.authorize(c, req.UpdatedBy) {
		return
	}
	changed, err := h.service.SetStatus(c.Request.Context(), id, req.Status, req.UpdatedBy)
	if err == nil && !changed {
		err = errors.ErrRAGDocumentNotFound
	}
	httputils.WriteResponse(c, err, gin.H{"id": id, "status": req.Status})
}

// Delete 软删除或物理删除文档。
func (h *RAGHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	hard, _ := strconv.ParseBool(c.DefaultQuery("hard", "false"))
	updatedBy, err := parseOptionalInt(c.Query("updated_by"))
	if err != nil {
		httputils.WriteResponse(c, errors.ErrInvalidParam.WithMessage("updated_by must be an integer"), nil)
		return
	}
	if !h.authorize(c, updatedBy) {
		return
	}
	deleted, err := h.service.Delete(c.Request.Context(), id, updatedBy, hard)
	if err == nil && !deleted {
		err = errors.ErrRAGDocumentNotFound
	}
	httputils.WriteResponse(c, err, gin.H{"id": id, "hard": hard})
}

// QueryRequest 知识库问答请求。
type QueryRequest struct {
	UserID   int64  `json:"user_id"`
	Question string `json:"question" binding:"required"`
}

// QueryResponse 知识库问答响应，Found 为 false 时没有相关内容。
type QueryResponse struct {
	Answer string `json:"answer,omitempty"`
	Found  bool   `json:"found"`
}

// Query 基于知识库回答问题。
func (h *RAGHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, errors.ErrValidationFailed.WithMessage(err.Error()), nil)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	answer, found, err := h.service.Answer(ctx, req.Question, req.UserID)
	if err != nil {
		if stderrors.Is(err, resilience.ErrCircuitOpen) {
			httputils.WriteResponse(c, errors.ErrCircuitOpen, nil)
			return
		}
		if ctx.Err() == context.DeadlineExceeded {
			httputils.WriteResponse(c, errors.ErrProviderTimeout, nil)
			return
		}
		httputils.WriteResponse(c, errors.ErrProviderFailure.WithCause(err), nil)
		return
	}
	httputils.WriteResponse(c, nil, QueryResponse{Answer: answer, Found: found})
}

// AdminRequest 管理命令请求。
type AdminRequest struct {
	UserID  int64  `json:"user_id" binding:"required"`
	Command string `json:"command" binding:"required"`
}

// Admin 执行 #rag 管理命令。
func (h *RAGHandler) Admin(c *gin.Context) {
	var req AdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, errors.ErrValidationFailed.WithMessage(err.Error()), nil)
		return
	}
	reply, err := h.admin.Execute(c.Request.Context(), req.UserID, req.Command)
	httputils.WriteResponse(c, err, gin.H{"reply": reply})
}

// Stats returns knowledge base statistics.
func (h *RAGHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	httputils.WriteResponse(c, err, stats)
}

// authorize 文档写操作需要知识库管理权限。
func (h *RAGHandler) authorize(c *gin.Context, userID int64) bool {
	if err := h.admin.Authorize(userID); err != nil {
		httputils.WriteResponse(c, err, nil)
		return false
	}
	return true
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		httputils.WriteResponse(c, errors.ErrInvalidParam.WithMessage("invalid document id"), nil)
		return 0, false
	}
	return id, true
}

func parseOptionalInt(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
