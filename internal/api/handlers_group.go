package api

import "github.com/fachebot/talk-digest-bot/internal/api/handler"

// HandlersGroup 封装了所有已初始化的 Handler 实例
type HandlersGroup struct {
	DigestHandler *handler.DigestHandler
	HealthHandler *handler.HealthHandler
}

func NewHandlersGroup(builder handler.DigestBuilder, checker handler.ConnectionChecker) *HandlersGroup {
	return &HandlersGroup{
		DigestHandler: handler.NewDigestHandler(builder),
		HealthHandler: handler.NewHealthHandler(checker),
	}
}
