package router

import (
	"github.com/gin-gonic/gin"

	"testsmith.app/testsmith/internal/http/handler"
)

// RunRouter sets up generation run routes.
// - creation requires the admin API key
// - reads and the SSE output stream are open
func RunRouter(rg *gin.RouterGroup, h *handler.RunHandler, output *handler.RunOutputHandler) {
	rg.POST("", h.RequireAdminAPIKey(), h.Create)
	rg.GET("", h.List)
	rg.GET("/:id", h.GetByID)
	rg.GET("/:id/stream", output.Stream)
}
