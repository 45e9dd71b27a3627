// Package router registers knowledge base routes.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/ai-router/internal/rag/handler"
)

// Register registers the knowledge base routes under /v1/rag.
func Register(engine *gin.Engine, h *handler.RAGHandler, middlewares ...gin.HandlerFunc) {
	rag := engine.Group("/v1/rag", middlewares...)
	{
		docs := rag.Group("/documents")
		{
			docs.POST("", h.Upload)
			docs.GET("", h.List)
			docs.GET("/:id", h.Get)
			docs.PUT("/:id/status", h.SetStatus)
			docs.DELETE("/:id", h.Delete)
		}

		rag.POST("/query", h.Query)
		rag.POST("/admin", h.Admin)
		rag.GET("/stats", h.Stats)
	}

	logger.Info("RAG HTTP routes registered")
}
