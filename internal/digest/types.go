package digest

import (
	"context"
	"time"
)

// AllTopics 普通群组总结记录的话题占位
const AllTopics = "(all)"

// ConversationKind 会话类型
type ConversationKind int

const (
	KindDirect ConversationKind = iota + 1
	KindGroup
	KindForum
)

func (k ConversationKind) String() string {
	switch k {
	case KindDirect:
		return "direct"
	case KindGroup:
		return "group"
	case KindForum:
		return "forum"
	default:
		return "unknown"
	}
}

// Conversation 带未读数的会话
type Conversation struct {
	ID          int64
	Name        string
	Kind        ConversationKind
	UnreadCount int
	Archived    bool
}

// Topic 论坛中的话题，ID 仅在所属论坛内唯一
type Topic struct {
	ID          int64
	Title       string
	UnreadCount int
}

// Message 待总结的消息
type Message struct {
	ID        int64
	Date      time.Time
	Sender    string
	Text      string
	HasMedia  bool
	ReplyToID int64 // 0 表示非回复
}

// Window 消息窗口：最多 Limit 条、且不早于 Since 之前
type Window struct {
	Limit int
	Since time.Duration
}

// ConversationSource 会话数据来源
type ConversationSource interface {
	// ListUnread 列出有未读消息且未归档的会话
	ListUnread(ctx context.Context) ([]Conversation, error)
	// ListTopics 列出论坛的话题及各自未读数
	ListTopics(ctx context.Context, forum Conversation) ([]Topic, error)
	FetchTopicMessages(ctx context.Context, forum Conversation, topic Topic, window Window) ([]Message, error)
	FetchChatMessages(ctx context.Context, chat Conversation, window Window) ([]Message, error)
}

// SummaryGenerator 根据风格生成总结；ok 为 false 表示该风格不产出内容
type SummaryGenerator interface {
	Summarize(ctx context.Context, messages []Message, label string, style Style) (text string, ok bool, err error)
}

type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type ForumCount struct {
	Name       string      `json:"name"`
	TotalCount int         `json:"total_count"`
	Topics     []NameCount `json:"topics"`
}

type MessageCounts struct {
	DMs    []NameCount  `json:"dms"`
	Groups []NameCount  `json:"groups"`
	Forums []ForumCount `json:"forums"`
}

// Summary 单条总结记录
type Summary struct {
	Group        string `json:"group"`
	Topic        string `json:"topic"`
	Type         string `json:"type"`
	MessageCount int    `json:"message_count"`
	Summary      string `json:"summary"`
}

// Result 一次摘要请求的结果
type Result struct {
	MessageCounts MessageCounts `json:"message_counts"`
	Summaries     []Summary     `json:"summaries"`
	Errors        []string      `json:"errors"`
}

func newResult() *Result {
	return &Result{
		MessageCounts: MessageCounts{
			DMs:    []NameCount{},
			Groups: []NameCount{},
			Forums: []ForumCount{},
		},
		Summaries: []Summary{},
		Errors:    []string{},
	}
}
