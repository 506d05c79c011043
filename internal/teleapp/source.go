package teleapp

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fachebot/talk-digest-bot/internal/digest"
	"github.com/fachebot/talk-digest-bot/internal/logger"

	"github.com/zelenin/go-tdlib/client"
)

const (
	chatListLimit = 500
	historyBatch  = 100 // TDLib 单次最多返回 100 条
)

// Source 基于 TDLib 会话的未读数据来源
type Source struct {
	app        *TeleApp
	topicLimit int
}

func NewSource(app *TeleApp, topicLimit int) *Source {
	if topicLimit <= 0 {
		topicLimit = 100
	}
	return &Source{app: app, topicLimit: topicLimit}
}

func (s *Source) client() (*client.Client, error) {
	if s.app == nil || !s.app.IsConnected() {
		return nil, digest.ErrSourceUnavailable
	}
	return s.app.Client(), nil
}

// ListUnread 列出主列表中有未读消息的会话
func (s *Source) ListUnread(ctx context.Context) ([]digest.Conversation, error) {
	td, err := s.client()
	if err != nil {
		return nil, err
	}

	// 主列表可能尚未完全加载到本地，已全部加载时 TDLib 返回 404
	_, err = td.LoadChats(&client.LoadChatsRequest{ChatList: &client.ChatListMain{}, Limit: chatListLimit})
	if err != nil {
		logger.Debugf("[TeleApp] 加载聊天列表: %v", err)
	}

	chats, err := td.GetChats(&client.GetChatsRequest{ChatList: &client.ChatListMain{}, Limit: chatListLimit})
	if err != nil {
		return nil, fmt.Errorf("获取聊天列表失败: %w", err)
	}

	conversations := make([]digest.Conversation, 0)
	for _, chatId := range chats.ChatIds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		chat, err := td.GetChat(&client.GetChatRequest{ChatId: chatId})
		if err != nil {
			logger.Warnf("[TeleApp] 获取聊天信息失败, id: %d, %v", chatId, err)
			continue
		}

		s.app.chatsMu.Lock()
		s.app.chatsCache[chatId] = chat
		s.app.chatsMu.Unlock()

		if chat.UnreadCount == 0 {
			continue
		}

		kind, err := s.chatKind(td, chat)
		if err != nil {
			logger.Warnf("[TeleApp] 无法识别会话类型: %s[%d], %v", chat.Title, chat.Id, err)
			continue
		}

		name := chat.Title
		if name == "" {
			name = "Unknown"
		}

		conversations = append(conversations, digest.Conversation{
			ID:          chat.Id,
			Name:        name,
			Kind:        kind,
			UnreadCount: int(chat.UnreadCount),
			Archived:    isArchived(chat),
		})
	}
	return conversations, nil
}

func (s *Source) chatKind(td *client.Client, chat *client.Chat) (digest.ConversationKind, error) {
	switch chatType := chat.Type.(type) {
	case *client.ChatTypePrivate, *client.ChatTypeSecret:
		return digest.KindDirect, nil
	case *client.ChatTypeBasicGroup:
		return digest.KindGroup, nil
	case *client.ChatTypeSupergroup:
		supergroup, err := td.GetSupergroup(&client.GetSupergroupRequest{SupergroupId: chatType.SupergroupId})
		if err != nil {
			return 0, err
		}
		if supergroup.IsForum {
			return digest.KindForum, nil
		}
		return digest.KindGroup, nil
	default:
		return 0, fmt.Errorf("未知的聊天类型: %s", chat.Type.ChatTypeType())
	}
}

func isArchived(chat *client.Chat) bool {
	for _, position := range chat.Positions {
		if position.List != nil && position.List.ChatListType() == client.TypeChatListArchive {
			return true
		}
	}
	return false
}

// ListTopics 列出论坛的话题，最多 topicLimit 个
func (s *Source) ListTopics(ctx context.Context, forum digest.Conversation) ([]digest.Topic, error) {
	td, err := s.client()
	if err != nil {
		return nil, err
	}

	result, err := td.GetForumTopics(&client.GetForumTopicsRequest{
		ChatId: forum.ID,
		Limit:  int32(s.topicLimit),
	})
	if err != nil {
		return nil, err
	}

	topics := make([]digest.Topic, 0, len(result.Topics))
	for _, topic := range result.Topics {
		if topic.Info == nil {
			continue
		}
		topics = append(topics, digest.Topic{
			ID:          topic.Info.MessageThreadId,
			Title:       topic.Info.Name,
			UnreadCount: int(topic.UnreadCount),
		})
	}
	return topics, nil
}

// FetchTopicMessages 拉取话题内窗口期的消息
func (s *Source) FetchTopicMessages(ctx context.Context, forum digest.Conversation, topic digest.Topic, window digest.Window) ([]digest.Message, error) {
	td, err := s.client()
	if err != nil {
		return nil, err
	}

	return s.collect(ctx, window, func(fromMessageId int64, limit int32) (*client.Messages, error) {
		return td.GetMessageThreadHistory(&client.GetMessageThreadHistoryRequest{
			ChatId:        forum.ID,
			MessageId:     topic.ID,
			FromMessageId: fromMessageId,
			Offset:        0,
			Limit:         limit,
		})
	})
}

// FetchChatMessages 拉取普通会话窗口期的消息
func (s *Source) FetchChatMessages(ctx context.Context, chat digest.Conversation, window digest.Window) ([]digest.Message, error) {
	td, err := s.client()
	if err != nil {
		return nil, err
	}

	return s.collect(ctx, window, func(fromMessageId int64, limit int32) (*client.Messages, error) {
		return td.GetChatHistory(&client.GetChatHistoryRequest{
			ChatId:        chat.ID,
			FromMessageId: fromMessageId,
			Offset:        0,
			Limit:         limit,
			OnlyLocal:     false,
		})
	})
}

type historyPage func(fromMessageId int64, limit int32) (*client.Messages, error)

// collect 从最新消息向前翻页，直到达到条数上限或早于截止时间，结果按时间正序返回
func (s *Source) collect(ctx context.Context, window digest.Window, page historyPage) ([]digest.Message, error) {
	cutoff := time.Now().Add(-window.Since)
	messages := make([]digest.Message, 0)

	var fromMessageId int64
	for window.Limit <= 0 || len(messages) < window.Limit {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batch := int32(historyBatch)
		if window.Limit > 0 && window.Limit-len(messages) < historyBatch {
			batch = int32(window.Limit - len(messages))
		}

		// FromMessageId 本身也会被返回，需多取一条
		if fromMessageId != 0 && batch < historyBatch {
			batch++
		}

		result, err := page(fromMessageId, batch)
		if err != nil {
			return nil, err
		}

		added, stop := 0, false
		for _, msg := range result.Messages {
			if msg == nil || msg.Id == fromMessageId {
				continue
			}
			date := time.Unix(int64(msg.Date), 0)
			if date.Before(cutoff) {
				stop = true
				break
			}

			messages = append(messages, s.convertMessage(msg))
			added++
			if window.Limit > 0 && len(messages) >= window.Limit {
				stop = true
				break
			}
		}

		if stop || added == 0 {
			break
		}
		fromMessageId = result.Messages[len(result.Messages)-1].Id
	}

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Date.Before(messages[j].Date)
	})
	return messages, nil
}

func (s *Source) convertMessage(msg *client.Message) digest.Message {
	text, hasMedia := messageText(msg.Content)
	m := digest.Message{
		ID:       msg.Id,
		Date:     time.Unix(int64(msg.Date), 0).UTC(),
		Sender:   s.senderName(msg.SenderId),
		Text:     text,
		HasMedia: hasMedia,
	}
	if reply, ok := msg.ReplyTo.(*client.MessageReplyToMessage); ok {
		m.ReplyToID = reply.MessageId
	}
	return m
}

// senderName 用户取名字或用户名，频道或群组身份取其标题
func (s *Source) senderName(sender client.MessageSender) string {
	switch sender := sender.(type) {
	case *client.MessageSenderUser:
		user, err := s.app.getUser(sender.UserId)
		if err != nil {
			logger.Debugf("[TeleApp] 获取用户信息失败, id: %d, %v", sender.UserId, err)
			return "Unknown"
		}
		if user.FirstName != "" {
			return user.FirstName
		}
		if user.Usernames != nil && len(user.Usernames.ActiveUsernames) > 0 {
			return user.Usernames.ActiveUsernames[0]
		}
	case *client.MessageSenderChat:
		chat, err := s.app.getChat(sender.ChatId)
		if err != nil {
			logger.Debugf("[TeleApp] 获取聊天信息失败, id: %d, %v", sender.ChatId, err)
			return "Unknown"
		}
		if chat.Title != "" {
			return chat.Title
		}
	}
	return "Unknown"
}

// messageText 提取文本或媒体说明文字，第二个返回值表示消息是否带媒体
func messageText(content client.MessageContent) (string, bool) {
	formatted := func(text *client.FormattedText) string {
		if text == nil {
			return ""
		}
		return text.Text
	}

	switch c := content.(type) {
	case *client.MessageText:
		return formatted(c.Text), false
	case *client.MessagePhoto:
		return formatted(c.Caption), true
	case *client.MessageVideo:
		return formatted(c.Caption), true
	case *client.MessageAnimation:
		return formatted(c.Caption), true
	case *client.MessageDocument:
		return formatted(c.Caption), true
	case *client.MessageAudio:
		return formatted(c.Caption), true
	case *client.MessageVoiceNote:
		return formatted(c.Caption), true
	case *client.MessageSticker, *client.MessageVideoNote:
		return "", true
	default:
		return "", false
	}
}
