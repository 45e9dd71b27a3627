// Package httputils 提供 gin 处理器共用的响应辅助函数。
package httputils

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/ai-router/pkg/infra/middleware"
	"github.com/kart-io/ai-router/pkg/utils/response"
)

// WriteResponse 输出统一格式的响应，err 非空时忽略 data。
func WriteResponse(c *gin.Context, err error, data any) {
	var resp *response.Response
	if err != nil {
		resp = response.FromError(err)
	} else {
		resp = response.Success(data)
	}
	if id := c.GetString(middleware.ContextKeyRequestID); id != "" {
		resp.WithRequestID(id)
	}
	c.JSON(resp.HTTPStatus(), resp)
}

// Abort 输出错误响应并终止后续处理器。
func Abort(c *gin.Context, err error) {
	WriteResponse(c, err, nil)
	c.Abort()
}
