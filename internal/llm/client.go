package llm

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fachebot/talk-digest-bot/internal/config"
	"github.com/fachebot/talk-digest-bot/internal/digest"
	"github.com/fachebot/talk-digest-bot/internal/logger"
	"github.com/sashabaranov/go-openai"
)

// openAIClientInterface 定义 OpenAI 客户端接口，便于测试
type openAIClientInterface interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

const defaultIdentity = "me"

type Client struct {
	config         *config.LLM
	openaiClient   openAIClientInterface
	maxInputTokens int
	identifiers    []string
}

// NewClient 创建 LLM 客户端，transport 为 nil 时使用默认 HTTP 传输
func NewClient(cfg *config.LLM, transport *http.Transport, identifiers []string) *Client {
	openaiConfig := openai.DefaultConfig(cfg.APIKey)
	openaiConfig.BaseURL = cfg.BaseURL
	if transport != nil {
		openaiConfig.HTTPClient = &http.Client{Transport: transport}
	}

	maxInputTokens := cfg.MaxTokens - 2000 // 预留 2000 tokens 给 system prompt 和输出
	if maxInputTokens <= 0 {
		maxInputTokens = cfg.MaxTokens
	}

	return &Client{
		config:         cfg,
		openaiClient:   openai.NewClientWithConfig(openaiConfig),
		maxInputTokens: maxInputTokens,
		identifiers:    identifiers,
	}
}

// SetIdentifiers 设置用于识别“指向自己”的名字，需在处理请求前调用
func (c *Client) SetIdentifiers(identifiers []string) {
	c.identifiers = identifiers
}

// estimateTokens 估算文本的 token 数量
func estimateTokens(text string) int {
	// 简单估算：中文约 1.5 token/字，英文约 1.3 token/词
	chineseChars := 0
	for _, r := range text {
		if r >= 0x4e00 && r <= 0x9fff {
			chineseChars++
		}
	}
	englishWords := len(strings.Fields(text))

	tokens := int(float64(chineseChars)*1.5 + float64(englishWords)*1.3)
	if tokens < len(text)/4 {
		// 如果估算值太小，使用字符数的 1/4 作为下限
		tokens = len(text) / 4
	}
	return tokens
}

// formatMessageLine 格式化单条消息，无文本且无媒体时返回空
func formatMessageLine(m digest.Message) string {
	date := m.Date.UTC().Format("2006-01-02T15:04")
	sender := m.Sender
	if sender == "" {
		sender = "Unknown"
	}

	if m.Text != "" {
		replyNote := ""
		if m.ReplyToID != 0 {
			replyNote = " [replying to earlier message]"
		}
		return fmt.Sprintf("[%s] %s%s: %s", date, sender, replyNote, m.Text)
	}
	if m.HasMedia {
		return fmt.Sprintf("[%s] %s: [media/image]", date, sender)
	}
	return ""
}

// messagesToPromptText 将消息数组转为 prompt 文本，每行一条
func messagesToPromptText(msgs []digest.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if line := formatMessageLine(m); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// fitToBudget 超出 token 预算时从最早的消息开始丢弃
func fitToBudget(msgs []digest.Message, maxTokens int) []digest.Message {
	tokens := make([]int, len(msgs))
	total := 0
	for i, m := range msgs {
		tokens[i] = estimateTokens(formatMessageLine(m))
		total += tokens[i]
	}

	start := 0
	for total > maxTokens && start < len(msgs)-1 {
		total -= tokens[start]
		start++
	}
	return msgs[start:]
}

func (c *Client) promptData(label, messagesText string) promptData {
	identifiers := c.identifiers
	if len(identifiers) == 0 {
		identifiers = []string{defaultIdentity}
	}
	return promptData{
		Label:       label,
		Messages:    messagesText,
		MyName:      identifiers[0],
		Identifiers: strings.Join(identifiers, ", "),
	}
}

// Summarize 按风格总结消息窗口
// skip 风格返回 ok=false；空消息直接返回占位文本，不调用模型；未知风格使用 logistics 模板
func (c *Client) Summarize(ctx context.Context, messages []digest.Message, label string, style digest.Style) (string, bool, error) {
	if style == digest.StyleSkip {
		return "", false, nil
	}

	entry := lookupStyle(style)
	if len(messages) == 0 {
		return entry.placeholder, true, nil
	}

	window := fitToBudget(messages, c.maxInputTokens)
	if len(window) < len(messages) {
		logger.Infof("[LLM] %s 消息过长，丢弃最早的 %d 条", label, len(messages)-len(window))
	}

	var prompt bytes.Buffer
	if err := entry.prompt.Execute(&prompt, c.promptData(label, messagesToPromptText(window))); err != nil {
		return "", false, fmt.Errorf("渲染 prompt 失败: %w", err)
	}

	logger.Debugf("[LLM] 生成总结: %s (%s, %d 条消息)", label, style, len(window))
	text, err := c.complete(ctx, prompt.String(), entry.maxTokens)
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}

// complete 执行一次对话补全请求
func (c *Client) complete(ctx context.Context, userPrompt string, maxTokens int) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	system := systemPrompt
	if c.config.Language != "" {
		system += fmt.Sprintf(" Write the summary in %s.", c.config.Language)
	}

	req := openai.ChatCompletionRequest{
		Model: c.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: 0.3,
		MaxTokens:   maxTokens,
	}

	resp, err := c.openaiClient.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("调用 LLM API 失败: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM API 返回空结果")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
