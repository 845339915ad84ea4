package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"nfc.app/facilitator/common/logger"
	"nfc.app/facilitator/internal/http/dto"
	"nfc.app/facilitator/internal/http/middleware"
	"nfc.app/facilitator/internal/queue"
	"nfc.app/facilitator/internal/service"
)

type MessageHandler struct {
	messages    service.MessageService
	traceHeader string
}

func NewMessageHandler(messages service.MessageService, traceHeader string) *MessageHandler {
	return &MessageHandler{
		messages:    messages,
		traceHeader: traceHeader,
	}
}

// Post ingests a message from the authenticated user into a community.
func (h *MessageHandler) Post(c *gin.Context) {
	communityID := c.Param("id")
	ctx := logger.WithLogFields(c.Request.Context(), logger.LogFields{
		CommunityID: logger.Ptr(communityID),
		Component:   "facilitator.http.message",
	})

	userID := middleware.GetUserID(ctx)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req dto.PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if h.traceHeader != "" {
		ctx = queue.WithTraceID(ctx, c.GetHeader(h.traceHeader))
	}

	result, err := h.messages.Post(ctx, communityID, userID, req.Content)
	if err != nil {
		if errors.Is(err, service.ErrInvalidMessage) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.ErrorContext(ctx, "failed to post message", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to post message"})
		return
	}

	c.JSON(http.StatusCreated, dto.ToPostMessageResponse(result))
}
