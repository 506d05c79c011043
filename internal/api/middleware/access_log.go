package middleware

import (
	"fmt"
	"time"

	"github.com/fachebot/talk-digest-bot/internal/logger"
	"github.com/gin-gonic/gin"
)

// Setup 注册访问日志和 panic 恢复
func Setup(r *gin.Engine) {
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		Output:    logger.Writer(),
		SkipPaths: []string{"/api/health"},
		Formatter: func(p gin.LogFormatterParams) string {
			var traceID string
			if p.Keys != nil {
				if id, ok := p.Keys[logger.TraceIDKey].(string); ok {
					traceID = id
				}
			}

			return fmt.Sprintf("[API] %s %s %d %v trace=%s\n",
				p.Method,
				p.Path,
				p.StatusCode,
				p.Latency.Round(time.Millisecond),
				traceID,
			)
		},
	}))

	r.Use(gin.RecoveryWithWriter(logger.Writer()))
}
