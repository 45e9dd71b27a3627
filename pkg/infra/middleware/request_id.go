// Package middleware 提供 HTTP 服务共用的 gin 中间件。
package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/ai-router/pkg/id"
	infralog "github.com/kart-io/ai-router/pkg/infra/logger"
)

const (
	// HeaderXRequestID 请求 ID 头。
	HeaderXRequestID = "X-Request-ID"
	// ContextKeyRequestID gin 上下文中请求 ID 的键。
	ContextKeyRequestID = "request_id"
)

// maxRequestIDLen 客户端传入的请求 ID 超过该长度时重新生成。
const maxRequestIDLen = 64

// RequestID 为每个请求分配 ID，客户端已携带时沿用。
// ID 写入响应头、gin 上下文和请求 context。
func RequestID(gen *id.Generator) gin.HandlerFunc {
	if gen == nil {
		gen = id.NewGenerator()
	}
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderXRequestID)
		if requestID == "" || len(requestID) > maxRequestIDLen {
			requestID = gen.New()
		}
		c.Header(HeaderXRequestID, requestID)
		c.Set(ContextKeyRequestID, requestID)
		ctx := id.WithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(infralog.WithRequestID(ctx, requestID))
		c.Next()
	}
}
