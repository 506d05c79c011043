package response

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/fachebot/talk-digest-bot/internal/api/dto"
	"github.com/fachebot/talk-digest-bot/internal/digest"
	"github.com/fachebot/talk-digest-bot/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Success 成功时直接返回数据
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Fail 失败返回封装
func Fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, dto.ErrorResponse{Error: message})
}

// Error 按错误类型映射 HTTP 状态码
func Error(c *gin.Context, err error) {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		Fail(c, http.StatusBadRequest, "参数错误: "+ve[0].Field()+" 校验失败，规则 "+ve[0].Tag())
		return
	}

	var numErr *strconv.NumError
	if errors.As(err, &numErr) {
		Fail(c, http.StatusBadRequest, "参数错误: 需要整数")
		return
	}

	switch {
	case errors.Is(err, digest.ErrSourceUnavailable):
		Fail(c, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, digest.ErrListing):
		logger.Errorf("[API] %v", err)
		Fail(c, http.StatusBadGateway, err.Error())
	default:
		logger.Errorf("[API] 未知错误: %v", err)
		Fail(c, http.StatusInternalServerError, err.Error())
	}
}
