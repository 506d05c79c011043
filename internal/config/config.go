package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvConfigYAML 云端部署时以环境变量提供完整配置
const EnvConfigYAML = "CONFIG_YAML"

const (
	DefaultMessageLimit = 100
	DefaultTopicLimit   = 100
	DefaultSinceHours   = 24
	MaxSinceHours       = 720
	DefaultServerAddr   = ":8000"
)

type Sock5Proxy struct {
	Host   string `yaml:"Host"`
	Port   int32  `yaml:"Port"`
	Enable bool   `yaml:"Enable"`
}

type TelegramApp struct {
	ApiId   int32  `yaml:"ApiId"`
	ApiHash string `yaml:"ApiHash"`
	DataDir string `yaml:"DataDir"` // TDLib 数据目录，默认 data
}

type LLM struct {
	BaseURL   string `yaml:"BaseURL"` // 兼容 OpenAI API 的端点
	APIKey    string `yaml:"APIKey"`
	Model     string `yaml:"Model"`     // 如 gpt-4o, deepseek-chat, qwen-plus
	MaxTokens int    `yaml:"MaxTokens"` // 模型上下文窗口大小
	Language  string `yaml:"Language"`  // 输出语言，留空则由模型决定
}

// Topic 论坛话题的总结规则
type Topic struct {
	Name      string `yaml:"Name"`
	Type      string `yaml:"Type"`
	Threshold int    `yaml:"Threshold"`
}

// Group 会话配置：Topics/DefaultType 用于论坛，Type/Threshold 用于普通群组
type Group struct {
	Name        string  `yaml:"Name"`
	Topics      []Topic `yaml:"Topics"`
	DefaultType string  `yaml:"DefaultType"`
	Type        string  `yaml:"Type"`
	Threshold   int     `yaml:"Threshold"`
}

type Digest struct {
	ShowDMCounts   *bool    `yaml:"ShowDMCounts"`   // 是否展示私聊未读数，默认 true
	MyIdentifiers  []string `yaml:"MyIdentifiers"`  // 用于识别指向自己的消息，留空则使用登录账号
	ExcludedGroups []string `yaml:"ExcludedGroups"` // 完全隐藏的会话
	MessageLimit   int      `yaml:"MessageLimit"`   // 每个窗口最多拉取的消息数
	TopicLimit     int      `yaml:"TopicLimit"`     // 每个论坛最多拉取的话题数
	Groups         []Group  `yaml:"Groups"`
}

// DMCountsVisible 返回是否展示私聊未读数
func (d *Digest) DMCountsVisible() bool {
	return d.ShowDMCounts == nil || *d.ShowDMCounts
}

type Server struct {
	Addr string `yaml:"Addr"`
}

type Schedule struct {
	Enable        bool    `yaml:"Enable"`
	Cron          string  `yaml:"Cron"`          // cron 表达式 (UTC)，如 "0 8 * * *"
	SinceHours    int     `yaml:"SinceHours"`    // 每次摘要覆盖的小时数
	NotifyUserIds []int64 `yaml:"NotifyUserIds"` // 接收摘要的用户，留空则发送到收藏夹
}

type Config struct {
	Sock5Proxy  Sock5Proxy  `yaml:"Sock5Proxy"`
	TelegramApp TelegramApp `yaml:"TelegramApp"`
	LLM         LLM         `yaml:"LLM"`
	Digest      Digest      `yaml:"Digest"`
	Server      Server      `yaml:"Server"`
	Schedule    Schedule    `yaml:"Schedule"`
}

// Load 优先读取 CONFIG_YAML 环境变量，否则读取配置文件
func Load(filename string) (*Config, error) {
	if content := os.Getenv(EnvConfigYAML); strings.TrimSpace(content) != "" {
		return LoadFromBytes([]byte(content))
	}
	return LoadFromFile(filename)
}

func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return LoadFromBytes(data)
}

func LoadFromBytes(data []byte) (*Config, error) {
	var c Config
	err := yaml.Unmarshal(data, &c)
	if err != nil {
		return nil, err
	}

	c.applyDefaults()

	// 验证配置
	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.TelegramApp.DataDir == "" {
		c.TelegramApp.DataDir = "data"
	}
	if c.Digest.MessageLimit <= 0 {
		c.Digest.MessageLimit = DefaultMessageLimit
	}
	if c.Digest.TopicLimit <= 0 {
		c.Digest.TopicLimit = DefaultTopicLimit
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Schedule.SinceHours <= 0 {
		c.Schedule.SinceHours = DefaultSinceHours
	}
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	// 验证 TelegramApp
	if c.TelegramApp.ApiId == 0 {
		return fmt.Errorf("TelegramApp.ApiId 不能为空")
	}
	if c.TelegramApp.ApiHash == "" {
		return fmt.Errorf("TelegramApp.ApiHash 不能为空")
	}

	// 验证 LLM
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM.APIKey 不能为空")
	}
	if c.LLM.BaseURL == "" {
		return fmt.Errorf("LLM.BaseURL 不能为空")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("LLM.Model 不能为空")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("LLM.MaxTokens 必须大于 0")
	}

	// 验证 Digest
	for i, g := range c.Digest.Groups {
		if strings.TrimSpace(g.Name) == "" {
			return fmt.Errorf("Digest.Groups[%d].Name 不能为空", i)
		}
		if g.Type != "" && (len(g.Topics) > 0 || g.DefaultType != "") {
			return fmt.Errorf("Digest.Groups[%d] (%s) 不能同时配置 Type 和 Topics/DefaultType", i, g.Name)
		}
		for j, t := range g.Topics {
			if strings.TrimSpace(t.Name) == "" {
				return fmt.Errorf("Digest.Groups[%d].Topics[%d].Name 不能为空", i, j)
			}
		}
	}

	// 验证 Schedule
	if c.Schedule.Enable && c.Schedule.Cron == "" {
		return fmt.Errorf("Schedule.Cron 不能为空（当 Schedule.Enable 为 true 时）")
	}
	if c.Schedule.SinceHours > MaxSinceHours {
		return fmt.Errorf("Schedule.SinceHours 不能大于 %d", MaxSinceHours)
	}

	return nil
}
