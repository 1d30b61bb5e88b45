package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/skaldhq/skald/internal/middleware"
)

type RouterDeps struct {
	Knowledge *KnowledgeHandler
	// WriteWindow rate limits the endpoints that trigger embedding calls;
	// zero disables the limiter.
	WriteWindow time.Duration
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.GET("/knowledge", deps.Knowledge.List)
	api.GET("/knowledge/:id", deps.Knowledge.Get)
	api.DELETE("/knowledge/:id", deps.Knowledge.Delete)

	write := api.Group("")
	if deps.WriteWindow > 0 {
		write.Use(middleware.RateLimit(deps.WriteWindow))
	}
	write.POST("/knowledge", deps.Knowledge.Add)
	write.POST("/knowledge/search", deps.Knowledge.Search)
}
