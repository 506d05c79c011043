//go:build linux
// +build linux

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fachebot/talk-digest-bot/internal/api"
	"github.com/fachebot/talk-digest-bot/internal/config"
	"github.com/fachebot/talk-digest-bot/internal/logger"
	"github.com/fachebot/talk-digest-bot/internal/notify"
	"github.com/fachebot/talk-digest-bot/internal/scheduler"
	"github.com/fachebot/talk-digest-bot/internal/svc"
	"github.com/fachebot/talk-digest-bot/internal/teleapp"

	"github.com/gin-gonic/gin"
	"github.com/zelenin/go-tdlib/client"
	"golang.org/x/sync/errgroup"
)

var (
	configFile = flag.String("f", "etc/config.yaml", "the config file")
	checkOnly  = flag.Bool("check", false, "login, print the unread overview and exit")
)

func main() {
	flag.Parse()

	// 读取配置，CONFIG_YAML 环境变量优先
	c, err := config.Load(*configFile)
	if err != nil {
		logger.Fatalf("读取配置文件失败, %s", err)
	}

	// 创建数据目录
	if err := os.MkdirAll(c.TelegramApp.DataDir, 0755); err != nil {
		logger.Fatalf("创建数据目录失败, %s", err)
	}

	// 创建服务上下文
	svcCtx := svc.NewServiceContext(c)

	// 运行Telegram App
	options := make([]client.Option, 0)
	if c.Sock5Proxy.Enable {
		options = append(options, client.WithProxy(&client.AddProxyRequest{
			Server: c.Sock5Proxy.Host,
			Port:   c.Sock5Proxy.Port,
			Enable: c.Sock5Proxy.Enable,
			Type:   &client.ProxyTypeSocks5{},
		}))
	}

	app := teleapp.NewApp(c.TelegramApp.ApiId, c.TelegramApp.ApiHash, c.TelegramApp.DataDir)
	user, err := app.Login(options...)
	if err != nil {
		logger.Fatalf("[TeleApp] 用户登录失败, %s", err)
	}
	logger.Infof("[TeleApp] 用户 <%s %s>(%d) 登录成功", user.FirstName, user.LastName, user.Id)

	svcCtx.UseAccountIdentifiers(teleapp.Identifiers(app.Me()))
	source := teleapp.NewSource(app, c.Digest.TopicLimit)

	if *checkOnly {
		err := source.PrintUnreadSummary(context.Background(), os.Stdout)
		if closeErr := app.Close(); closeErr != nil {
			logger.Warnf("[TeleApp] 关闭失败, %v", closeErr)
		}
		if err != nil {
			logger.Fatalf("[TeleApp] 获取未读概览失败, %s", err)
		}
		return
	}

	assembler := svcCtx.NewAssembler(source)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	// 定时摘要
	if c.Schedule.Enable {
		notifier := notify.NewNotifier(app.Client(), c.Schedule.NotifyUserIds, user.Id)
		schedulerInstance := scheduler.NewScheduler(assembler, notifier, &c.Schedule)
		if err := schedulerInstance.Start(); err != nil {
			logger.Fatalf("[Scheduler] 启动调度器失败: %s", err)
		}
		g.Go(func() error {
			<-ctx.Done()
			schedulerInstance.Stop()
			return nil
		})
	}

	// HTTP 服务器
	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:    c.Server.Addr,
		Handler: api.SetupRouter(api.NewHandlersGroup(assembler, app)),
	}
	g.Go(func() error {
		logger.Infof("[API] HTTP 服务已启动: %s", c.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// 优雅退出
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig := <-quit:
			logger.Infof("收到信号 %s, 正在关闭服务...", sig)
			cancel()
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("[API] HTTP 服务关闭失败, %v", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("服务异常退出, %v", err)
	}

	if err := app.Close(); err != nil {
		logger.Infof("[TeleApp] 关闭失败, %v", err)
	}
	logger.Infof("服务已停止")
}
