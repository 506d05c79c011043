package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fachebot/talk-digest-bot/internal/config"
	"github.com/fachebot/talk-digest-bot/internal/digest"
	"github.com/fachebot/talk-digest-bot/internal/logger"
	"github.com/robfig/cron/v3"
)

type digestBuilder interface {
	Build(ctx context.Context, sinceHours int) (*digest.Result, error)
}

type notifier interface {
	Notify(ctx context.Context, content string) error
}

type Scheduler struct {
	cron     *cron.Cron
	builder  digestBuilder
	notifier notifier
	config   *config.Schedule
	ctx      context.Context
	cancel   context.CancelFunc
	mu       sync.Mutex
}

// locUTC UTC 标准时间（UTC）
var locUTC = time.UTC

func NewScheduler(builder digestBuilder, notifier notifier, cfg *config.Schedule) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithLocation(locUTC)),
		builder:  builder,
		notifier: notifier,
		config:   cfg,
	}
}

// Start 启动调度器
func (s *Scheduler) Start() error {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	_, err := s.cron.AddFunc(s.config.Cron, s.runDigest)
	if err != nil {
		return fmt.Errorf("注册定时摘要任务失败: %w", err)
	}

	s.cron.Start()
	logger.Infof("[Scheduler] 调度器已启动，定时摘要任务: %s (UTC)", s.config.Cron)
	return nil
}

// Stop 停止调度器，等待正在执行的任务结束
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Infof("[Scheduler] 调度器已停止")
}

// runDigest 执行定时摘要任务（cron 触发）
func (s *Scheduler) runDigest() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		logger.Infof("[Scheduler] 任务已取消，退出")
		return
	default:
	}

	if err := s.RunOnce(ctx); err != nil {
		logger.Errorf("[Scheduler] 定时摘要执行失败: %v", err)
	}
}

// RunOnce 生成一次摘要并发送，没有未读内容时不发送
func (s *Scheduler) RunOnce(ctx context.Context) error {
	sinceHours := s.config.SinceHours
	if sinceHours <= 0 {
		sinceHours = config.DefaultSinceHours
	}

	logger.Infof("[Scheduler] 开始生成摘要，时间窗口: %d 小时", sinceHours)
	result, err := s.builder.Build(ctx, sinceHours)
	if err != nil {
		return fmt.Errorf("生成摘要失败: %w", err)
	}

	content := digest.FormatForDisplay(result, sinceHours)
	if content == "" {
		logger.Infof("[Scheduler] 没有未读消息，跳过发送")
		return nil
	}

	if err := s.notifier.Notify(ctx, content); err != nil {
		return fmt.Errorf("发送摘要失败: %w", err)
	}

	logger.Infof("[Scheduler] 定时摘要完成: %d 条总结, %d 个错误", len(result.Summaries), len(result.Errors))
	return nil
}
