package router

import (
	"github.com/gin-gonic/gin"

	"nfc.app/facilitator/internal/http/handler"
)

func CommunityRouter(rg *gin.RouterGroup, messages *handler.MessageHandler, stats *handler.StatsHandler) {
	rg.POST("/messages", messages.Post)
	rg.GET("/facilitator/stats", stats.Get)
}
