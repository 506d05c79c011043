package digest

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeHTML(t *testing.T) {
	assert.Equal(t, "a &amp; b &lt;c&gt; &quot;d&quot;", escapeHTML(`a & b <c> "d"`))
}

func TestFormatForDisplay(t *testing.T) {
	tests := []struct {
		name   string
		result *Result
		want   string
	}{
		{
			name:   "nil result 返回空字符串",
			result: nil,
			want:   "",
		},
		{
			name:   "空结果返回空字符串",
			result: newResult(),
			want:   "",
		},
		{
			name: "仅有未读数",
			result: &Result{
				MessageCounts: MessageCounts{
					DMs:    []NameCount{{"Alice", 2}},
					Groups: []NameCount{{"Friends", 7}},
					Forums: []ForumCount{{Name: "Team", TotalCount: 15, Topics: []NameCount{{"Eng", 5}, {"Idle", 0}}}},
				},
			},
			want: "📬 <b>Unread digest</b>\n🕒 last 24 hours\n" +
				"\n<b>Direct messages</b>\n- Alice: 2\n" +
				"\n<b>Groups</b>\n- Friends: 7\n" +
				"\n<b>Forums</b>\n- Team: 15\n  · Eng: 5",
		},
		{
			name: "总结与错误",
			result: &Result{
				Summaries: []Summary{
					{Group: "Team", Topic: "Eng", Type: "technical", MessageCount: 5, Summary: "## Main <Topic>\n"},
					{Group: "Friends", Topic: AllTopics, Type: "logistics", MessageCount: 7, Summary: "todo"},
				},
				Errors: []string{"Error summarising Team/Ops: boom"},
			},
			want: "📬 <b>Unread digest</b>\n🕒 last 24 hours\n" +
				"\n\n<b>Team / Eng</b> <i>(technical, 5 messages)</i>\n## Main &lt;Topic&gt;\n" +
				"\n\n<b>Friends</b> <i>(logistics, 7 messages)</i>\ntodo\n" +
				"\n\n⚠️ <b>Errors</b>\n- Error summarising Team/Ops: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatForDisplay(tt.result, 24))
		})
	}
}

func TestSplitMessage(t *testing.T) {
	t.Run("短消息不拆分", func(t *testing.T) {
		assert.Equal(t, []string{"hello"}, SplitMessage("hello", 100))
	})

	t.Run("按段落拆分", func(t *testing.T) {
		content := strings.Repeat("a", 40) + "\n\n" + strings.Repeat("b", 40) + "\n\n" + strings.Repeat("c", 40)
		parts := SplitMessage(content, 90)
		require.Len(t, parts, 2)
		assert.Equal(t, strings.Repeat("a", 40)+"\n\n"+strings.Repeat("b", 40), parts[0])
		assert.Equal(t, strings.Repeat("c", 40), parts[1])
	})

	t.Run("超长段落按行拆分", func(t *testing.T) {
		content := strings.Repeat("x", 30) + "\n" + strings.Repeat("y", 30) + "\n" + strings.Repeat("z", 30)
		parts := SplitMessage(content, 65)
		require.Len(t, parts, 2)
		assert.Equal(t, strings.Repeat("x", 30)+"\n"+strings.Repeat("y", 30), parts[0])
		assert.Equal(t, strings.Repeat("z", 30), parts[1])
	})

	t.Run("超长单行按字符拆分", func(t *testing.T) {
		parts := SplitMessage(strings.Repeat("摘", 25), 10)
		require.Len(t, parts, 3)
		assert.Equal(t, strings.Repeat("摘", 10), parts[0])
		assert.Equal(t, strings.Repeat("摘", 5), parts[2])
	})

	t.Run("每段都不超过上限", func(t *testing.T) {
		var sb strings.Builder
		for i := 0; i < 200; i++ {
			sb.WriteString("<b>Team / Eng</b> <i>(technical, 5 messages)</i>\nsome summary line\n\n")
		}
		for _, part := range SplitMessage(sb.String(), MaxMessageLength) {
			assert.LessOrEqual(t, utf8.RuneCountInString(part), MaxMessageLength)
		}
	})
}
