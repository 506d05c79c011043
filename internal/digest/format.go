package digest

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// escapeHTML 对文本进行 HTML 转义，防止注入及破坏标签
// 转义：& < > "
func escapeHTML(text string) string {
	result := strings.ReplaceAll(text, "&", "&amp;")
	result = strings.ReplaceAll(result, "<", "&lt;")
	result = strings.ReplaceAll(result, ">", "&gt;")
	result = strings.ReplaceAll(result, "\"", "&quot;")
	return result
}

// FormatForDisplay 将摘要格式化为 Telegram HTML 文本
// 使用 Telegram HTML 语法：<b>粗体</b>、<i>斜体</i>
func FormatForDisplay(result *Result, sinceHours int) string {
	if result == nil {
		return ""
	}

	counts := result.MessageCounts
	if len(counts.DMs) == 0 && len(counts.Groups) == 0 && len(counts.Forums) == 0 &&
		len(result.Summaries) == 0 && len(result.Errors) == 0 {
		return ""
	}

	var sb strings.Builder

	// 头部
	sb.WriteString("📬 <b>Unread digest</b>\n")
	sb.WriteString(fmt.Sprintf("🕒 last %d hours\n", sinceHours))

	if len(counts.DMs) > 0 {
		sb.WriteString("\n<b>Direct messages</b>\n")
		for _, dm := range counts.DMs {
			sb.WriteString(fmt.Sprintf("- %s: %d\n", escapeHTML(dm.Name), dm.Count))
		}
	}

	if len(counts.Groups) > 0 {
		sb.WriteString("\n<b>Groups</b>\n")
		for _, g := range counts.Groups {
			sb.WriteString(fmt.Sprintf("- %s: %d\n", escapeHTML(g.Name), g.Count))
		}
	}

	if len(counts.Forums) > 0 {
		sb.WriteString("\n<b>Forums</b>\n")
		for _, f := range counts.Forums {
			sb.WriteString(fmt.Sprintf("- %s: %d\n", escapeHTML(f.Name), f.TotalCount))
			for _, t := range f.Topics {
				if t.Count == 0 {
					continue
				}
				sb.WriteString(fmt.Sprintf("  · %s: %d\n", escapeHTML(t.Name), t.Count))
			}
		}
	}

	// 总结内容（模型输出需 HTML 转义）
	for _, s := range result.Summaries {
		title := s.Group
		if s.Topic != AllTopics {
			title = s.Group + " / " + s.Topic
		}
		sb.WriteString(fmt.Sprintf("\n\n<b>%s</b> <i>(%s, %d messages)</i>\n", escapeHTML(title), escapeHTML(s.Type), s.MessageCount))
		sb.WriteString(escapeHTML(strings.TrimSpace(s.Summary)))
		sb.WriteString("\n")
	}

	if len(result.Errors) > 0 {
		sb.WriteString("\n\n⚠️ <b>Errors</b>\n")
		for _, e := range result.Errors {
			sb.WriteString("- " + escapeHTML(e) + "\n")
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

// MaxMessageLength Telegram 单条消息的最大字符数
const MaxMessageLength = 4096

// SplitMessage 将过长的文本按段落拆分为多条，单个段落过长时按行、再按字符拆分
func SplitMessage(content string, maxLength int) []string {
	if maxLength <= 0 {
		maxLength = MaxMessageLength
	}
	if utf8.RuneCountInString(content) <= maxLength {
		return []string{content}
	}

	messages := make([]string, 0)
	current := ""
	flush := func() {
		if current != "" {
			messages = append(messages, current)
			current = ""
		}
	}
	appendPart := func(part, sep string) bool {
		candidate := part
		if current != "" {
			candidate = current + sep + part
		}
		if utf8.RuneCountInString(candidate) > maxLength {
			return false
		}
		current = candidate
		return true
	}

	for _, para := range strings.Split(content, "\n\n") {
		if strings.TrimSpace(para) == "" {
			continue
		}
		if appendPart(para, "\n\n") {
			continue
		}
		flush()
		if appendPart(para, "\n\n") {
			continue
		}

		// 单个段落超长
		for _, line := range strings.Split(para, "\n") {
			if appendPart(line, "\n") {
				continue
			}
			flush()
			for _, chunk := range splitRunes(line, maxLength) {
				if !appendPart(chunk, "") {
					flush()
					current = chunk
				}
			}
		}
	}
	flush()

	return messages
}

func splitRunes(text string, size int) []string {
	runes := []rune(text)
	chunks := make([]string, 0, len(runes)/size+1)
	for len(runes) > size {
		chunks = append(chunks, string(runes[:size]))
		runes = runes[size:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}
