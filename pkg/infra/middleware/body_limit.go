package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/ai-router/pkg/utils/errors"
	"github.com/kart-io/ai-router/pkg/utils/response"
)

// DefaultMaxBodySize JSON 接口默认的请求体上限。
const DefaultMaxBodySize = 1 << 20

// BodyLimit 限制请求体大小，skipPrefixes 下的路径（例如文件上传）不受限制。
func BodyLimit(maxSize int64, skipPrefixes ...string) gin.HandlerFunc {
	if maxSize <= 0 {
		maxSize = DefaultMaxBodySize
	}
	return func(c *gin.Context) {
		for _, p := range skipPrefixes {
			if strings.HasPrefix(c.Request.URL.Path, p) {
				c.Next()
				return
			}
		}

		if c.Request.ContentLength > maxSize {
			logger.Warnw("request body too large",
				"path", c.Request.URL.Path,
				"content_length", c.Request.ContentLength,
				"max_size", maxSize,
			)
			resp := response.Err(errors.ErrRequestTooLarge)
			c.AbortWithStatusJSON(resp.HTTPStatus(), resp)
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}
