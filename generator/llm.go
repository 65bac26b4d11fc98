package generator

import "context"

// Message 是发送给模型的一条消息。
type Message struct {
	Role    string // system | user | assistant
	Content string
}

// LLMClient 抽象大模型客户端，便于替换/Mock。
type LLMClient interface {
	Complete(ctx context.Context, msgs []Message) (string, error)
}

// LLMSettings 提供给具体实现的基础配置。
type LLMSettings struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int
}
