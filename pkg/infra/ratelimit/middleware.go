package ratelimit

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/ai-router/pkg/utils/errors"
	"github.com/kart-io/ai-router/pkg/utils/response"
)

// KeyFunc extracts the rate limit key from a request.
type KeyFunc func(c *gin.Context) string

// ClientIPKey keys requests by client IP.
func ClientIPKey(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// Middleware applies Check and Record to every request. Requests with an
// empty key are not limited. A limiter backend error lets the request through.
func Middleware(limiter Limiter, keyFunc KeyFunc) gin.HandlerFunc {
	if keyFunc == nil {
		keyFunc = ClientIPKey
	}

	return func(c *gin.Context) {
		key := keyFunc(c)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		decision, err := limiter.Check(ctx, key)
		if err != nil {
			logger.Errorw("rate limiter check failed", "key", key, "error", err.Error())
			c.Next()
			return
		}

		if !decision.Allowed {
			logger.Warnw("rate limit exceeded",
				"key", key,
				"path", c.FullPath(),
				"retry_after", decision.RetryAfter,
			)
			c.Header("Retry-After", strconv.Itoa(decision.RetryAfter))
			resp := response.Err(errors.ErrRateLimitExceeded)
			c.AbortWithStatusJSON(resp.HTTPStatus(), resp)
			return
		}

		if err := limiter.Record(ctx, key); err != nil {
			logger.Errorw("rate limiter record failed", "key", key, "error", err.Error())
		}
		c.Next()
	}
}
