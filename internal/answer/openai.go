package answer

import (
	"context"
	"errors"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures the hosted chat model.
type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// OpenAICompleter calls an OpenAI-compatible chat completion endpoint.
type OpenAICompleter struct {
	client      *goopenai.Client
	model       string
	temperature float32
}

// NewOpenAICompleter creates a chat client.
func NewOpenAICompleter(cfg OpenAIConfig) (*OpenAICompleter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing OpenAI API key")
	}
	if cfg.Model == "" {
		cfg.Model = goopenai.GPT3Dot5Turbo
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	apiCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	apiCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &OpenAICompleter{
		client:      goopenai.NewClientWithConfig(apiCfg),
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

// Complete sends one system and one user message and returns the reply.
func (c *OpenAICompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: system},
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: c.temperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion response")
	}
	return resp.Choices[0].Message.Content, nil
}
