// Package handler AI 路由的 HTTP 接口。
package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/ai-router/internal/airouter/biz"
	"github.com/kart-io/ai-router/internal/pkg/httputils"
	"github.com/kart-io/ai-router/pkg/authz"
	"github.com/kart-io/ai-router/pkg/utils/errors"
)

const (
	routeTimeout  = 120 * time.Second
	healthTimeout = 5 * time.Second
)

// ModuleToggler 运行时切换模块开关。
type ModuleToggler interface {
	SetEnabled(module string, enabled bool)
}

// RouterHandler 处理路由相关请求。
type RouterHandler struct {
	router     *biz.Router
	modules    ModuleToggler
	authorizer authz.Authorizer
}

// NewRouterHandler creates a new RouterHandler.
func NewRouterHandler(router *biz.Router, modules ModuleToggler, authorizer authz.Authorizer) *RouterHandler {
	return &RouterHandler{
		router:     router,
		modules:    modules,
		authorizer: authorizer,
	}
}

// RouteRequest 路由请求。
type RouteRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Text   string `json:"text" binding:"required"`
}

// RouteResponse 路由结果，Reply 为空表示不需要回复。
type RouteResponse struct {
	Status biz.Status `json:"status"`
	Reply  *string    `json:"reply"`
}

// Route 处理一条用户消息。路由状态通过响应体返回，HTTP 状态码始终为 200。
func (h *RouterHandler) Route(c *gin.Context) {
	var req RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, errors.ErrValidationFailed.WithMessage(err.Error()), nil)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), routeTimeout)
	defer cancel()

	reply, status := h.router.Route(ctx, req.Text, req.UserID)
	httputils.WriteResponse(c, nil, RouteResponse{Status: status, Reply: reply})
}

// ClearContext 清除用户的对话上下文。
func (h *RouterHandler) ClearContext(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		httputils.WriteResponse(c, errors.ErrInvalidParam.WithMessage("invalid user id"), nil)
		return
	}
	h.router.ClearContext(userID)
	httputils.WriteResponse(c, nil, gin.H{"user_id": userID})
}

// Status 返回路由运行状态。
func (h *RouterHandler) Status(c *gin.Context) {
	httputils.WriteResponse(c, nil, h.router.Status())
}

// SetModuleRequest 切换模块开关请求。
type SetModuleRequest struct {
	UserID  int64 `json:"user_id" binding:"required"`
	Enabled *bool `json:"enabled" binding:"required"`
}

// SetModule 切换模块开关，需要路由管理权限。
func (h *RouterHandler) SetModule(c *gin.Context) {
	var req SetModuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, errors.ErrValidationFailed.WithMessage(err.Error()), nil)
		return
	}

	allowed, err := h.authorizer.Authorize(req.UserID, authz.ResourceRouter, authz.ActionManage)
	if err != nil {
		httputils.WriteResponse(c, errors.ErrInternal.WithCause(err), nil)
		return
	}
	if !allowed {
		httputils.WriteResponse(c, errors.ErrForbidden, nil)
		return
	}

	module := c.Param("module")
	h.modules.SetEnabled(module, *req.Enabled)
	logger.Infow("module toggled", "module", module, "enabled", *req.Enabled, "user_id", req.UserID)
	httputils.WriteResponse(c, nil, gin.H{"module": module, "enabled": *req.Enabled})
}

// Healthz 进程存活检查。
func (h *RouterHandler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ProviderHealth 检查模型供应商是否可达。
func (h *RouterHandler) ProviderHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if err := h.router.HealthCheck(ctx); err != nil {
		logger.Warnw("provider health check failed", "error", err.Error())
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
