package translator

import (
	"context"
	"errors"
	"fmt"

	"agent-radar/internal/domain"
	openai "agent-radar/internal/infra/openai"
)

type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI переводит через OpenAI-совместимый Chat Completions API.
type OpenAI struct {
	client chatClient
	model  string
}

var _ domain.TextTranslator = (*OpenAI)(nil)

// NewOpenAI создаёт переводчик на базе чат-модели.
func NewOpenAI(client chatClient, model string) *OpenAI {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAI{client: client, model: model}
}

// Translate переводит текст на упрощённый китайский.
func (o *OpenAI) Translate(ctx context.Context, text string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: 0.1,
		MaxTokens:   600,
		Messages: []openai.ChatMessage{
			{
				Role:    openai.RoleSystem,
				Content: "你是技术翻译。把用户给出的文本翻译成简体中文，保留专有名词、代码和链接，只输出译文。",
			},
			{
				Role:    openai.RoleUser,
				Content: clipRunes(text, sourceTextMaxRunes),
			},
		},
	}
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai translate: %w", err)
	}
	content := resp.Content()
	if content == "" {
		return "", errors.New("openai translate: пустой ответ")
	}
	return content, nil
}
