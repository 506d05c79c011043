package svc

import (
	"crypto/tls"
	"fmt"
	"net/http"

	"github.com/fachebot/talk-digest-bot/internal/config"
	"github.com/fachebot/talk-digest-bot/internal/digest"
	"github.com/fachebot/talk-digest-bot/internal/llm"
	"github.com/fachebot/talk-digest-bot/internal/logger"

	"golang.org/x/net/proxy"
)

type ServiceContext struct {
	Config         *config.Config
	TransportProxy *http.Transport
	LLMClient      *llm.Client
	Resolver       *digest.Resolver
}

func NewServiceContext(c *config.Config) *ServiceContext {
	// 创建SOCKS5代理
	var transportProxy *http.Transport
	if c.Sock5Proxy.Enable {
		socks5Proxy := fmt.Sprintf("%s:%d", c.Sock5Proxy.Host, c.Sock5Proxy.Port)
		dialer, err := proxy.SOCKS5("tcp", socks5Proxy, nil, proxy.Direct)
		if err != nil {
			logger.Fatalf("创建SOCKS5代理失败, %v", err)
		}

		transportProxy = &http.Transport{
			Dial:            dialer.Dial,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &ServiceContext{
		Config:         c,
		TransportProxy: transportProxy,
		LLMClient:      llm.NewClient(&c.LLM, transportProxy, c.Digest.MyIdentifiers),
		Resolver:       digest.NewResolver(&c.Digest),
	}
}

// NewAssembler 基于给定的会话来源创建摘要组装器
func (svcCtx *ServiceContext) NewAssembler(source digest.ConversationSource) *digest.Assembler {
	return digest.NewAssembler(source, svcCtx.LLMClient, svcCtx.Resolver, digest.Options{
		ShowDMCounts: svcCtx.Config.Digest.DMCountsVisible(),
		MessageLimit: svcCtx.Config.Digest.MessageLimit,
	})
}

// UseAccountIdentifiers 未配置 MyIdentifiers 时使用登录账号的名字
func (svcCtx *ServiceContext) UseAccountIdentifiers(identifiers []string) {
	if len(svcCtx.Config.Digest.MyIdentifiers) > 0 || len(identifiers) == 0 {
		return
	}
	svcCtx.Config.Digest.MyIdentifiers = identifiers
	svcCtx.LLMClient.SetIdentifiers(identifiers)
}
