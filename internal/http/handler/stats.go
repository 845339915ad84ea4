package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"nfc.app/facilitator/internal/http/dto"
	"nfc.app/facilitator/internal/service"
)

type StatsHandler struct {
	stats service.StatsService
}

func NewStatsHandler(stats service.StatsService) *StatsHandler {
	return &StatsHandler{stats: stats}
}

func (h *StatsHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	stats, err := h.stats.Get(ctx, c.Param("id"))
	if err != nil {
		slog.ErrorContext(ctx, "failed to compute facilitator stats", "error", err, "community_id", c.Param("id"))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get stats"})
		return
	}

	c.JSON(http.StatusOK, dto.ToStatsResponse(stats))
}
