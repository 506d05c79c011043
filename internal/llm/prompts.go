package llm

import (
	"strings"
	"text/template"

	"github.com/fachebot/talk-digest-bot/internal/digest"
)

// promptData 模板参数
type promptData struct {
	Label       string
	Messages    string
	MyName      string
	Identifiers string
}

// styleEntry 一种总结风格的模板、空窗口占位文本和输出上限
type styleEntry struct {
	prompt      *template.Template
	placeholder string
	maxTokens   int
}

var styles = map[digest.Style]styleEntry{}

// fallbackStyle 未登记的风格统一使用 logistics 模板
const fallbackStyle = digest.StyleLogistics

func register(style digest.Style, placeholder string, maxTokens int, text string) {
	styles[style] = styleEntry{
		prompt:      template.Must(template.New(string(style)).Parse(strings.TrimSpace(text))),
		placeholder: placeholder,
		maxTokens:   maxTokens,
	}
}

func lookupStyle(style digest.Style) styleEntry {
	if entry, ok := styles[style]; ok {
		return entry
	}
	return styles[fallbackStyle]
}

func init() {
	register(digest.StyleTechnical, "No messages to summarise.", 1000, technicalPrompt)
	register(digest.StyleMemes, "No memes to report.", 800, memesPrompt)
	register(digest.StyleLogistics, "No messages to summarise.", 800, logisticsPrompt)
	register(digest.StyleInvites, "No invites to report.", 500, invitesPrompt)
}

const systemPrompt = `You are an assistant that writes concise digests of Telegram conversations for a busy reader. Follow the requested output format exactly and do not invent content that is not in the messages.`

const technicalPrompt = `
Summarise this Telegram discussion from the "{{.Label}}" topic.

MESSAGES:
{{.Messages}}

Extract and format as follows:

## Main Topic(s)
[What was being discussed - 1-2 sentences]

## Key Arguments
**Pro/supporting points:**
- [bullet points]

**Con/opposing points:**
- [bullet points]

## Links & Papers
[List top 1-2 most interesting/relevant links or papers mentioned. If many were shared, prioritise the most discussed ones. If none, write "None mentioned."]

## Context Notes
[If the conversation references previous discussions or assumes context from earlier, note this briefly. If standalone, write "Self-contained discussion."]

Be concise but preserve technical nuance. Use bullet points.
`

const memesPrompt = `
Summarise the memes shared in this Telegram channel "{{.Label}}".

MESSAGES:
{{.Messages}}

Format as follows:

## Top 3 Memes
For each meme, provide:
1. **[Brief description]** - [Why it's funny/relevant]
   - AI Safety Context: [If this relates to recent AI safety news/events, explain. If not, write "General humour"]

2. ...

3. ...

If fewer than 3 memes were shared, just describe what was shared.
If messages describe images you can't see, do your best to infer from context and reactions.
`

const logisticsPrompt = `
Summarise this Telegram coordination/logistics discussion from "{{.Label}}".

MESSAGES:
{{.Messages}}

Extract and format as follows:

## To-Dos & Action Items
[List any tasks or action items mentioned, noting who they're assigned to if specified]
- [ ] [Task] - assigned to: [person or "unassigned"]

## Calls for Help
[Any requests for volunteers, assistance, or input]

## Specifically for {{.MyName}}
[Anything directly addressed to or mentioning any of: {{.Identifiers}}. If nothing, write "Nothing specific."]

## Quick Summary
[1-2 sentence overview of what was discussed]

Be concise. Focus on actionable items.
`

const invitesPrompt = `
Extract event invites from this Telegram channel "{{.Label}}".

MESSAGES:
{{.Messages}}

For each INVITE (ignore replies/discussion), provide a one-liner:
**[Event name]** - [Date/time] @ [Location] - invited by [Person]

If any detail is missing, write "TBD" for that field.
Only list actual invites, not discussion about them.
If no invites found, write "No new invites."

Keep it concise - one line per invite.
`
