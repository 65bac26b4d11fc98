package generator

import (
	"context"
	"errors"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAILLM implements LLMClient using the official openai-go SDK (chat
// completions). DeepSeek and other OpenAI-compatible gateways work through
// the same client with a custom base URL.
type OpenAILLM struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Opts        []option.RequestOption
}

func NewOpenAILLMFromConfig(cfg *LLMSettings) (*OpenAILLM, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("openai api key missing; provide llm.api_key")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAILLM{
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Opts:        opts,
	}, nil
}

func (o *OpenAILLM) Complete(ctx context.Context, msgs []Message) (string, error) {
	client := openai.NewClient(o.Opts...)

	var params []openai.ChatCompletionMessageParamUnion
	for _, m := range msgs {
		switch m.Role {
		case "system":
			params = append(params, openai.SystemMessage(m.Content))
		case "assistant":
			params = append(params, openai.ChatCompletionMessageParamOfAssistant(m.Content))
		default:
			params = append(params, openai.UserMessage(m.Content))
		}
	}

	req := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.Model),
		Messages: params,
	}
	if o.Temperature > 0 {
		req.Temperature = openai.Float(o.Temperature)
	}
	if o.MaxTokens > 0 {
		req.MaxTokens = openai.Int(int64(o.MaxTokens))
	}

	resp, err := client.Chat.Completions.New(ctx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}
