package digest

import (
	"strings"

	"github.com/fachebot/talk-digest-bot/internal/config"
)

// Style 总结风格。未登记的风格原样保留，由生成器回退到 logistics
type Style string

const (
	StyleTechnical Style = "technical"
	StyleMemes     Style = "memes"
	StyleLogistics Style = "logistics"
	StyleInvites   Style = "invites"
	StyleSkip      Style = "skip"
)

// Policy 解析后的总结规则
type Policy struct {
	Style     Style
	Threshold int
}

// Eligible 判断未读数是否触发总结
func (p *Policy) Eligible(unread int) bool {
	return p != nil && p.Style != StyleSkip && unread >= p.Threshold
}

type forumEntry struct {
	topics      map[string]Policy
	defaultType Style
	hasDefault  bool
}

// Resolver 基于配置的只读查找表，启动时构建一次
type Resolver struct {
	forums     map[string][]forumEntry
	groups     map[string]Policy
	configured map[string]struct{}
	excluded   map[string]struct{}
}

func normalize(name string) string {
	return strings.ToLower(name)
}

func styleOf(tag string) Style {
	if tag == "" {
		return StyleSkip
	}
	return Style(tag)
}

func thresholdOf(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

func NewResolver(cfg *config.Digest) *Resolver {
	r := &Resolver{
		forums:     make(map[string][]forumEntry),
		groups:     make(map[string]Policy),
		configured: make(map[string]struct{}),
		excluded:   make(map[string]struct{}),
	}

	for _, name := range cfg.ExcludedGroups {
		r.excluded[normalize(name)] = struct{}{}
	}

	for _, g := range cfg.Groups {
		key := normalize(g.Name)
		r.configured[key] = struct{}{}

		// 同名配置按出现顺序，先匹配者优先
		if g.Type != "" {
			if _, ok := r.groups[key]; !ok {
				r.groups[key] = Policy{Style: styleOf(g.Type), Threshold: thresholdOf(g.Threshold)}
			}
			continue
		}

		entry := forumEntry{
			topics:      make(map[string]Policy, len(g.Topics)),
			defaultType: styleOf(g.DefaultType),
			hasDefault:  g.DefaultType != "",
		}
		for _, t := range g.Topics {
			tk := normalize(t.Name)
			if _, ok := entry.topics[tk]; ok {
				continue
			}
			entry.topics[tk] = Policy{Style: styleOf(t.Type), Threshold: thresholdOf(t.Threshold)}
		}
		r.forums[key] = append(r.forums[key], entry)
	}
	return r
}

// ResolveTopicPolicy 查找论坛话题的规则：精确话题 > 论坛默认风格（阈值 1）> nil
func (r *Resolver) ResolveTopicPolicy(conversation, topic string) *Policy {
	tk := normalize(topic)
	for _, entry := range r.forums[normalize(conversation)] {
		if p, ok := entry.topics[tk]; ok {
			return &p
		}
		if entry.hasDefault {
			return &Policy{Style: entry.defaultType, Threshold: 1}
		}
	}
	return nil
}

// ResolveGroupPolicy 查找直接配置了 Type 的普通群组规则
func (r *Resolver) ResolveGroupPolicy(conversation string) *Policy {
	p, ok := r.groups[normalize(conversation)]
	if !ok {
		return nil
	}
	return &p
}

func (r *Resolver) IsExcluded(conversation string) bool {
	_, ok := r.excluded[normalize(conversation)]
	return ok
}

func (r *Resolver) IsConfigured(conversation string) bool {
	_, ok := r.configured[normalize(conversation)]
	return ok
}
