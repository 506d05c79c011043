package handler

import (
	"github.com/fachebot/talk-digest-bot/internal/api/dto"
	"github.com/fachebot/talk-digest-bot/internal/api/response"
	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	checker ConnectionChecker
}

func NewHealthHandler(checker ConnectionChecker) *HealthHandler {
	return &HealthHandler{checker: checker}
}

// Health 进程存活即返回 ok，同时报告 Telegram 连接状态
func (h *HealthHandler) Health(c *gin.Context) {
	connected := h.checker != nil && h.checker.IsConnected()
	response.Success(c, dto.HealthResponse{
		Status:            "ok",
		TelegramConnected: connected,
	})
}
