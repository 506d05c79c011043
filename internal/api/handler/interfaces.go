package handler

import (
	"context"

	"github.com/fachebot/talk-digest-bot/internal/digest"
)

// DigestBuilder 生成未读摘要
type DigestBuilder interface {
	Build(ctx context.Context, sinceHours int) (*digest.Result, error)
}

// ConnectionChecker 报告 Telegram 会话是否可用
type ConnectionChecker interface {
	IsConnected() bool
}
