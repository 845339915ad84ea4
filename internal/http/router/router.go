package router

import (
	"github.com/gin-gonic/gin"

	"nfc.app/facilitator/internal/http/handler"
	"nfc.app/facilitator/internal/http/middleware"
	"nfc.app/facilitator/internal/service"
)

type RouterConfig struct {
	TraceHeaderName string
}

func SetupRoutes(router *gin.Engine, services *service.Services, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	v1.Use(middleware.RequireSession(services.Sessions()))
	{
		CommunityRouter(
			v1.Group("/communities/:id"),
			handler.NewMessageHandler(services.Messages(), cfg.TraceHeaderName),
			handler.NewStatsHandler(services.Stats()),
		)
	}
}
