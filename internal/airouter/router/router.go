// Package router 注册 AI 路由的 HTTP 路由。
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/ai-router/internal/airouter/handler"
)

// Register 注册路由接口和健康检查。
func Register(engine *gin.Engine, h *handler.RouterHandler, middlewares ...gin.HandlerFunc) {
	engine.GET("/healthz", h.Healthz)
	engine.GET("/healthz/provider", h.ProviderHealth)

	v1 := engine.Group("/v1", middlewares...)
	{
		v1.POST("/route", h.Route)
		v1.DELETE("/context/:user_id", h.ClearContext)
		v1.GET("/status", h.Status)
		v1.PUT("/modules/:module", h.SetModule)
	}
}
