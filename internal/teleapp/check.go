package teleapp

import (
	"context"
	"fmt"
	"io"

	"github.com/fachebot/talk-digest-bot/internal/digest"
)

// PrintUnreadSummary 打印未读会话概览，用于首次登录后确认会话可用
func (s *Source) PrintUnreadSummary(ctx context.Context, w io.Writer) error {
	conversations, err := s.ListUnread(ctx)
	if err != nil {
		return err
	}

	var dms, groups, forums []digest.Conversation
	for _, conv := range conversations {
		if conv.Archived {
			continue
		}
		switch conv.Kind {
		case digest.KindDirect:
			dms = append(dms, conv)
		case digest.KindGroup:
			groups = append(groups, conv)
		case digest.KindForum:
			forums = append(forums, conv)
		}
	}

	fmt.Fprintln(w, "=== DMs ===")
	for _, dm := range dms {
		fmt.Fprintf(w, "  %s: %d messages\n", dm.Name, dm.UnreadCount)
	}

	fmt.Fprintln(w, "=== Groups ===")
	for _, group := range groups {
		fmt.Fprintf(w, "  %s: %d messages\n", group.Name, group.UnreadCount)
	}

	fmt.Fprintln(w, "=== Forums (with topics) ===")
	for _, forum := range forums {
		fmt.Fprintf(w, "  %s: %d messages\n", forum.Name, forum.UnreadCount)
		topics, err := s.ListTopics(ctx, forum)
		if err != nil {
			fmt.Fprintf(w, "    (failed to list topics: %v)\n", err)
			continue
		}
		for _, topic := range topics {
			if topic.UnreadCount > 0 {
				fmt.Fprintf(w, "    └─ %s: %d unread\n", topic.Title, topic.UnreadCount)
			}
		}
	}

	fmt.Fprintf(w, "Found: %d DMs, %d groups, %d forums with topics\n", len(dms), len(groups), len(forums))
	return nil
}
