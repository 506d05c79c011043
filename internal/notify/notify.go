package notify

import (
	"context"
	"fmt"

	"github.com/fachebot/talk-digest-bot/internal/digest"
	"github.com/fachebot/talk-digest-bot/internal/logger"
	"github.com/zelenin/go-tdlib/client"
)

type Notifier struct {
	tdClient  *client.Client
	userIds   []int64
	selfId    int64
	maxLength int
}

// NewNotifier 创建通知器；userIds 为空时摘要发送到 selfId 对应的收藏夹
func NewNotifier(tdClient *client.Client, userIds []int64, selfId int64) *Notifier {
	return &Notifier{
		tdClient:  tdClient,
		userIds:   userIds,
		selfId:    selfId,
		maxLength: digest.MaxMessageLength,
	}
}

// Notify 私信发送摘要，过长时拆分为多条
func (n *Notifier) Notify(ctx context.Context, content string) error {
	if content == "" {
		return nil
	}

	recipients := n.userIds
	if len(recipients) == 0 {
		recipients = []int64{n.selfId}
	}

	messages := digest.SplitMessage(content, n.maxLength)

	var firstErr error
	for _, chatID := range recipients {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := n.send(chatID, messages); err != nil {
			logger.Errorf("[Notify] %v", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		logger.Infof("[Notify] 已发送摘要给 %d, 共 %d 条", chatID, len(messages))
	}
	return firstErr
}

func (n *Notifier) send(chatID int64, messages []string) error {
	// 私聊需要先在本地创建会话
	if _, err := n.tdClient.CreatePrivateChat(&client.CreatePrivateChatRequest{UserId: chatID, Force: false}); err != nil {
		logger.Debugf("[Notify] 创建私聊会话失败, id: %d, %v", chatID, err)
	}

	for _, msg := range messages {
		_, err := n.tdClient.SendMessage(&client.SendMessageRequest{
			ChatId: chatID,
			InputMessageContent: &client.InputMessageText{
				Text: n.parseHTMLText(msg),
			},
		})
		if err != nil {
			return fmt.Errorf("发送摘要给用户 %d 失败: %w", chatID, err)
		}
	}
	return nil
}

// parseHTMLText 使用 TDLib 的 HTML 解析能力，将 HTML 文本转换为带实体的 FormattedText
func (n *Notifier) parseHTMLText(text string) *client.FormattedText {
	if text == "" {
		return &client.FormattedText{Text: text}
	}

	formatted, err := client.ParseTextEntities(&client.ParseTextEntitiesRequest{
		Text:      text,
		ParseMode: &client.TextParseModeHTML{},
	})
	if err != nil {
		logger.Warnf("[Notify] 解析 HTML 文本失败，回退为纯文本发送: %v", err)
		return &client.FormattedText{Text: text}
	}
	return formatted
}
