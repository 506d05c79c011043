package handler

import (
	"github.com/fachebot/talk-digest-bot/internal/api/dto"
	"github.com/fachebot/talk-digest-bot/internal/api/response"
	"github.com/fachebot/talk-digest-bot/internal/config"
	"github.com/fachebot/talk-digest-bot/internal/logger"
	"github.com/gin-gonic/gin"
)

type DigestHandler struct {
	builder DigestBuilder
}

func NewDigestHandler(builder DigestBuilder) *DigestHandler {
	return &DigestHandler{builder: builder}
}

// GetDigest 生成最近 since_hours 小时的未读摘要
func (h *DigestHandler) GetDigest(c *gin.Context) {
	var req dto.DigestQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, err)
		return
	}

	sinceHours := config.DefaultSinceHours
	if req.SinceHours != nil {
		sinceHours = *req.SinceHours
	}

	result, err := h.builder.Build(c.Request.Context(), sinceHours)
	if err != nil {
		response.Error(c, err)
		return
	}

	logger.Infof("[API] 摘要生成完成 trace=%s since_hours=%d summaries=%d errors=%d",
		c.GetString(logger.TraceIDKey), sinceHours, len(result.Summaries), len(result.Errors))
	response.Success(c, result)
}
