package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fachebot/talk-digest-bot/internal/config"
	"github.com/fachebot/talk-digest-bot/internal/digest"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockOpenAIClient 模拟 OpenAI 客户端
type mockOpenAIClient struct {
	mock.Mock
}

func (m *mockOpenAIClient) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(openai.ChatCompletionResponse), args.Error(1)
}

// newTestClient 创建用于测试的客户端，注入 mock
func newTestClient(cfg *config.LLM, mockClient openAIClientInterface) *Client {
	return newTestClientWithMaxTokens(cfg, mockClient, 0)
}

// newTestClientWithMaxTokens 可指定 maxInputTokens，0 表示使用 cfg.MaxTokens-2000
func newTestClientWithMaxTokens(cfg *config.LLM, mockClient openAIClientInterface, maxInputTokens int) *Client {
	if maxInputTokens <= 0 {
		maxInputTokens = cfg.MaxTokens - 2000
		if maxInputTokens <= 0 {
			maxInputTokens = 6000
		}
	}
	return &Client{
		config:         cfg,
		openaiClient:   mockClient,
		maxInputTokens: maxInputTokens,
		identifiers:    []string{"Marta", "marta_tg"},
	}
}

func textResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: content}},
		},
	}
}

var baseTime = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func sampleMessages() []digest.Message {
	return []digest.Message{
		{ID: 1, Date: baseTime, Sender: "Alice", Text: "Has anyone read the new paper on constitutional AI?"},
		{ID: 2, Date: baseTime.Add(5 * time.Minute), Sender: "Bob", Text: "Yes, promising but I doubt it scales", ReplyToID: 1},
		{ID: 3, Date: baseTime.Add(10 * time.Minute), Sender: "Carol", HasMedia: true},
	}
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantMin int
		wantMax int
	}{
		{"空文本", "", 0, 0},
		{"纯中文", "这是一段中文测试文本", 8, 50},
		{"纯英文", "This is a test message", 4, 30},
		{"中英混合", "Hello 世界 test 测试", 4, 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := estimateTokens(tt.text)
			assert.GreaterOrEqual(t, got, tt.wantMin)
			assert.LessOrEqual(t, got, tt.wantMax)
		})
	}
}

func TestFormatMessageLine(t *testing.T) {
	tests := []struct {
		name string
		msg  digest.Message
		want string
	}{
		{"普通文本", digest.Message{Date: baseTime, Sender: "Alice", Text: "hi"}, "[2024-01-15T10:00] Alice: hi"},
		{"回复消息", digest.Message{Date: baseTime, Sender: "Bob", Text: "yes", ReplyToID: 7}, "[2024-01-15T10:00] Bob [replying to earlier message]: yes"},
		{"仅媒体", digest.Message{Date: baseTime, Sender: "Carol", HasMedia: true}, "[2024-01-15T10:00] Carol: [media/image]"},
		{"媒体带文字", digest.Message{Date: baseTime, Sender: "Carol", Text: "look", HasMedia: true}, "[2024-01-15T10:00] Carol: look"},
		{"无发送者", digest.Message{Date: baseTime, Text: "hello"}, "[2024-01-15T10:00] Unknown: hello"},
		{"空消息", digest.Message{Date: baseTime, Sender: "Dan"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatMessageLine(tt.msg))
		})
	}
}

func TestMessagesToPromptText(t *testing.T) {
	msgs := append(sampleMessages(), digest.Message{Date: baseTime, Sender: "Dan"})
	got := messagesToPromptText(msgs)
	lines := strings.Split(got, "\n")
	assert.Len(t, lines, 3, "空消息应被跳过")
	assert.Contains(t, got, "Bob [replying to earlier message]: Yes")
	assert.Contains(t, got, "Carol: [media/image]")
}

func TestMessagesToPromptText_Empty(t *testing.T) {
	assert.Empty(t, messagesToPromptText(nil))
}

func TestFitToBudget(t *testing.T) {
	var msgs []digest.Message
	for i := 0; i < 20; i++ {
		msgs = append(msgs, digest.Message{ID: int64(i), Date: baseTime, Sender: "User", Text: "this is a fairly long test message body"})
	}

	t.Run("预算充足不裁剪", func(t *testing.T) {
		assert.Len(t, fitToBudget(msgs, 100000), 20)
	})

	t.Run("超出预算丢弃最早消息", func(t *testing.T) {
		got := fitToBudget(msgs, 50)
		require.NotEmpty(t, got)
		assert.Less(t, len(got), 20)
		assert.Equal(t, int64(19), got[len(got)-1].ID, "最新消息应保留")
	})

	t.Run("至少保留一条", func(t *testing.T) {
		assert.Len(t, fitToBudget(msgs, 1), 1)
	})

	t.Run("空输入", func(t *testing.T) {
		assert.Empty(t, fitToBudget(nil, 10))
	})
}

func TestSummarize_SkipStyle(t *testing.T) {
	mockAPI := new(mockOpenAIClient)
	client := newTestClient(&config.LLM{Model: "test", MaxTokens: 10000}, mockAPI)

	text, ok, err := client.Summarize(context.Background(), sampleMessages(), "Eng", digest.StyleSkip)
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, text)
	mockAPI.AssertNotCalled(t, "CreateChatCompletion", mock.Anything, mock.Anything)
}

func TestSummarize_EmptyMessagesPlaceholder(t *testing.T) {
	tests := []struct {
		style digest.Style
		want  string
	}{
		{digest.StyleTechnical, "No messages to summarise."},
		{digest.StyleMemes, "No memes to report."},
		{digest.StyleLogistics, "No messages to summarise."},
		{digest.StyleInvites, "No invites to report."},
		{digest.Style("bogus-style"), "No messages to summarise."},
	}
	for _, tt := range tests {
		t.Run(string(tt.style), func(t *testing.T) {
			mockAPI := new(mockOpenAIClient)
			client := newTestClient(&config.LLM{Model: "test", MaxTokens: 10000}, mockAPI)

			text, ok, err := client.Summarize(context.Background(), nil, "label", tt.style)
			assert.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, tt.want, text)
			mockAPI.AssertNotCalled(t, "CreateChatCompletion", mock.Anything, mock.Anything)
		})
	}
}

func TestSummarize_StyleDispatch(t *testing.T) {
	tests := []struct {
		style     digest.Style
		marker    string
		maxTokens int
	}{
		{digest.StyleTechnical, "## Key Arguments", 1000},
		{digest.StyleMemes, "## Top 3 Memes", 800},
		{digest.StyleLogistics, "## To-Dos & Action Items", 800},
		{digest.StyleInvites, "Extract event invites", 500},
		{digest.Style("bogus-style"), "## To-Dos & Action Items", 800},
	}
	for _, tt := range tests {
		t.Run(string(tt.style), func(t *testing.T) {
			mockAPI := new(mockOpenAIClient)
			mockAPI.On("CreateChatCompletion", mock.Anything, mock.MatchedBy(func(req openai.ChatCompletionRequest) bool {
				return req.MaxTokens == tt.maxTokens &&
					req.Model == "test" &&
					strings.Contains(req.Messages[1].Content, tt.marker) &&
					strings.Contains(req.Messages[1].Content, `"Eng"`)
			})).Return(textResponse("  summary text \n"), nil).Once()

			client := newTestClient(&config.LLM{Model: "test", MaxTokens: 10000}, mockAPI)
			text, ok, err := client.Summarize(context.Background(), sampleMessages(), "Eng", tt.style)
			require.NoError(t, err)
			mockAPI.AssertExpectations(t)
			assert.True(t, ok)
			assert.Equal(t, "summary text", text)
		})
	}
}

func TestSummarize_LogisticsUsesIdentifiers(t *testing.T) {
	mockAPI := new(mockOpenAIClient)
	mockAPI.On("CreateChatCompletion", mock.Anything, mock.MatchedBy(func(req openai.ChatCompletionRequest) bool {
		content := req.Messages[1].Content
		return strings.Contains(content, "## Specifically for Marta") &&
			strings.Contains(content, "any of: Marta, marta_tg")
	})).Return(textResponse("ok"), nil).Once()

	client := newTestClient(&config.LLM{Model: "test", MaxTokens: 10000}, mockAPI)
	_, _, err := client.Summarize(context.Background(), sampleMessages(), "Ops", digest.StyleLogistics)
	require.NoError(t, err)
	mockAPI.AssertExpectations(t)
}

func TestSummarize_DefaultIdentity(t *testing.T) {
	mockAPI := new(mockOpenAIClient)
	mockAPI.On("CreateChatCompletion", mock.Anything, mock.MatchedBy(func(req openai.ChatCompletionRequest) bool {
		return strings.Contains(req.Messages[1].Content, "## Specifically for me")
	})).Return(textResponse("ok"), nil).Once()

	client := newTestClient(&config.LLM{Model: "test", MaxTokens: 10000}, mockAPI)
	client.SetIdentifiers(nil)
	_, _, err := client.Summarize(context.Background(), sampleMessages(), "Ops", digest.StyleLogistics)
	require.NoError(t, err)
	mockAPI.AssertExpectations(t)
}

func TestSummarize_LanguageInstruction(t *testing.T) {
	mockAPI := new(mockOpenAIClient)
	mockAPI.On("CreateChatCompletion", mock.Anything, mock.MatchedBy(func(req openai.ChatCompletionRequest) bool {
		return req.Messages[0].Role == openai.ChatMessageRoleSystem &&
			strings.HasSuffix(req.Messages[0].Content, "Write the summary in Chinese.")
	})).Return(textResponse("好的"), nil).Once()

	client := newTestClient(&config.LLM{Model: "test", MaxTokens: 10000, Language: "Chinese"}, mockAPI)
	text, ok, err := client.Summarize(context.Background(), sampleMessages(), "Eng", digest.StyleTechnical)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "好的", text)
	mockAPI.AssertExpectations(t)
}

func TestSummarize_TrimsLongWindow(t *testing.T) {
	var msgs []digest.Message
	for i := 0; i < 30; i++ {
		msgs = append(msgs, digest.Message{ID: int64(i), Date: baseTime, Sender: "User", Text: "first-" + strings.Repeat("word ", 10)})
	}
	msgs[29].Text = "the newest message"

	mockAPI := new(mockOpenAIClient)
	mockAPI.On("CreateChatCompletion", mock.Anything, mock.MatchedBy(func(req openai.ChatCompletionRequest) bool {
		content := req.Messages[1].Content
		return strings.Contains(content, "the newest message") &&
			strings.Count(content, "first-") < 29
	})).Return(textResponse("ok"), nil).Once()

	client := newTestClientWithMaxTokens(&config.LLM{Model: "test", MaxTokens: 10000}, mockAPI, 60)
	_, ok, err := client.Summarize(context.Background(), msgs, "Eng", digest.StyleTechnical)
	require.NoError(t, err)
	assert.True(t, ok)
	mockAPI.AssertExpectations(t)
}

func TestSummarize_APIError(t *testing.T) {
	mockAPI := new(mockOpenAIClient)
	mockAPI.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(openai.ChatCompletionResponse{}, errors.New("api error"))

	client := newTestClient(&config.LLM{Model: "test", MaxTokens: 10000}, mockAPI)
	_, ok, err := client.Summarize(context.Background(), sampleMessages(), "Eng", digest.StyleTechnical)
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), "调用 LLM API 失败")
}

func TestSummarize_EmptyResponse(t *testing.T) {
	mockAPI := new(mockOpenAIClient)
	mockAPI.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(openai.ChatCompletionResponse{Choices: nil}, nil)

	client := newTestClient(&config.LLM{Model: "test", MaxTokens: 10000}, mockAPI)
	_, _, err := client.Summarize(context.Background(), sampleMessages(), "Eng", digest.StyleTechnical)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "返回空结果")
}

func TestNewClient_MaxInputTokens(t *testing.T) {
	c := NewClient(&config.LLM{APIKey: "k", BaseURL: "http://localhost", Model: "m", MaxTokens: 16000}, nil, nil)
	assert.Equal(t, 14000, c.maxInputTokens)

	c = NewClient(&config.LLM{APIKey: "k", BaseURL: "http://localhost", Model: "m", MaxTokens: 1500}, nil, nil)
	assert.Equal(t, 1500, c.maxInputTokens)
}
