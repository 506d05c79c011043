package digest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fachebot/talk-digest-bot/internal/logger"
)

var (
	// ErrSourceUnavailable 会话来源尚未连接
	ErrSourceUnavailable = errors.New("telegram client not connected")
	// ErrListing 获取会话列表失败，整个请求失败
	ErrListing = errors.New("failed to list conversations")
)

type Options struct {
	ShowDMCounts bool
	MessageLimit int
}

// Assembler 汇总未读数并为符合规则的会话生成总结
type Assembler struct {
	source    ConversationSource
	generator SummaryGenerator
	resolver  *Resolver
	options   Options
	mu        sync.Mutex
}

func NewAssembler(source ConversationSource, generator SummaryGenerator, resolver *Resolver, options Options) *Assembler {
	return &Assembler{
		source:    source,
		generator: generator,
		resolver:  resolver,
		options:   options,
	}
}

// Build 生成最近 sinceHours 小时的摘要。除会话列表失败外，单个会话的失败只记录在 Errors 中
func (a *Assembler) Build(ctx context.Context, sinceHours int) (*Result, error) {
	if a.source == nil {
		return nil, ErrSourceUnavailable
	}

	// 同一时间只处理一个摘要请求
	a.mu.Lock()
	defer a.mu.Unlock()

	window := Window{
		Limit: a.options.MessageLimit,
		Since: time.Duration(sinceHours) * time.Hour,
	}

	conversations, err := a.source.ListUnread(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrListing, err)
	}

	var dms, groups, forums []Conversation
	for _, conv := range conversations {
		if conv.Archived || conv.UnreadCount <= 0 {
			continue
		}
		switch conv.Kind {
		case KindDirect:
			dms = append(dms, conv)
		case KindGroup:
			if !a.resolver.IsExcluded(conv.Name) {
				groups = append(groups, conv)
			}
		case KindForum:
			if !a.resolver.IsExcluded(conv.Name) {
				forums = append(forums, conv)
			}
		default:
			logger.Warnf("[Digest] 未知会话类型: %s[%d] kind=%d", conv.Name, conv.ID, conv.Kind)
		}
	}
	logger.Infof("[Digest] 开始生成摘要，最近 %d 小时: %d 个私聊, %d 个群组, %d 个论坛", sinceHours, len(dms), len(groups), len(forums))

	result := newResult()
	if a.options.ShowDMCounts {
		for _, dm := range dms {
			result.MessageCounts.DMs = append(result.MessageCounts.DMs, NameCount{Name: dm.Name, Count: dm.UnreadCount})
		}
	}
	for _, g := range groups {
		result.MessageCounts.Groups = append(result.MessageCounts.Groups, NameCount{Name: g.Name, Count: g.UnreadCount})
	}

	for _, forum := range forums {
		result.MessageCounts.Forums = append(result.MessageCounts.Forums, a.processForum(ctx, forum, window, result))
	}

	for _, group := range groups {
		a.processGroup(ctx, group, window, result)
	}

	logger.Infof("[Digest] 摘要生成完成: %d 条总结, %d 个错误", len(result.Summaries), len(result.Errors))
	return result, nil
}

func (a *Assembler) processForum(ctx context.Context, forum Conversation, window Window, result *Result) ForumCount {
	counts := ForumCount{
		Name:       forum.Name,
		TotalCount: forum.UnreadCount,
		Topics:     []NameCount{},
	}

	topics, err := a.source.ListTopics(ctx, forum)
	if err != nil {
		logger.Warnf("[Digest] 获取论坛话题失败, %s[%d]: %v", forum.Name, forum.ID, err)
		result.Errors = append(result.Errors, fmt.Sprintf("Error listing topics for %s: %v", forum.Name, err))
		return counts
	}

	configured := a.resolver.IsConfigured(forum.Name)
	for _, topic := range topics {
		counts.Topics = append(counts.Topics, NameCount{Name: topic.Title, Count: topic.UnreadCount})

		if !configured {
			continue
		}
		policy := a.resolver.ResolveTopicPolicy(forum.Name, topic.Title)
		if !policy.Eligible(topic.UnreadCount) {
			continue
		}

		summary, err := a.summarizeTopic(ctx, forum, topic, policy.Style, window)
		if err != nil {
			logger.Warnf("[Digest] 总结话题失败, %s/%s: %v", forum.Name, topic.Title, err)
			result.Errors = append(result.Errors, fmt.Sprintf("Error summarising %s/%s: %v", forum.Name, topic.Title, err))
			continue
		}
		if summary != nil {
			result.Summaries = append(result.Summaries, *summary)
		}
	}
	return counts
}

func (a *Assembler) summarizeTopic(ctx context.Context, forum Conversation, topic Topic, style Style, window Window) (*Summary, error) {
	messages, err := a.source.FetchTopicMessages(ctx, forum, topic, window)
	if err != nil {
		return nil, err
	}
	return a.summarize(ctx, messages, forum.Name, topic.Title, topic.Title, style)
}

func (a *Assembler) processGroup(ctx context.Context, group Conversation, window Window, result *Result) {
	policy := a.resolver.ResolveGroupPolicy(group.Name)
	if !policy.Eligible(group.UnreadCount) {
		return
	}

	summary, err := a.summarizeGroup(ctx, group, policy.Style, window)
	if err != nil {
		logger.Warnf("[Digest] 总结群组失败, %s: %v", group.Name, err)
		result.Errors = append(result.Errors, fmt.Sprintf("Error summarising %s: %v", group.Name, err))
		return
	}
	if summary != nil {
		result.Summaries = append(result.Summaries, *summary)
	}
}

func (a *Assembler) summarizeGroup(ctx context.Context, group Conversation, style Style, window Window) (*Summary, error) {
	messages, err := a.source.FetchChatMessages(ctx, group, window)
	if err != nil {
		return nil, err
	}
	return a.summarize(ctx, messages, group.Name, AllTopics, group.Name, style)
}

// summarize 空窗口或空内容不产生记录
func (a *Assembler) summarize(ctx context.Context, messages []Message, group, topic, label string, style Style) (*Summary, error) {
	if len(messages) == 0 {
		logger.Debugf("[Digest] %s/%s 窗口内无消息，跳过", group, topic)
		return nil, nil
	}

	text, ok, err := a.generator.Summarize(ctx, messages, label, style)
	if err != nil {
		return nil, err
	}
	if !ok || text == "" {
		return nil, nil
	}

	logger.Debugf("[Digest] 完成总结 %s/%s (%s, %d 条消息)", group, topic, style, len(messages))
	return &Summary{
		Group:        group,
		Topic:        topic,
		Type:         string(style),
		MessageCount: len(messages),
		Summary:      text,
	}, nil
}
