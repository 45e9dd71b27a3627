package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/ai-router/pkg/utils/errors"
	"github.com/kart-io/ai-router/pkg/utils/response"
)

// Recovery 捕获 panic 并返回统一格式的 500 响应。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorw("panic recovered",
					"path", c.Request.URL.Path,
					"request_id", c.GetString(ContextKeyRequestID),
					"panic", fmt.Sprint(r),
					"stack", string(debug.Stack()),
				)
				resp := response.Err(errors.ErrInternal)
				if rid := c.GetString(ContextKeyRequestID); rid != "" {
					resp.WithRequestID(rid)
				}
				c.AbortWithStatusJSON(resp.HTTPStatus(), resp)
			}
		}()
		c.Next()
	}
}
