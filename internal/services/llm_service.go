package services

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"pulse-reports/internal/config"
)

// LLMService wraps the OpenAI chat completion API behind the text
// completion interface agents use
type LLMService struct {
	client      *openai.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewLLMService creates an OpenAI-backed LLM service
func NewLLMService(cfg config.OpenAIConfig) *LLMService {
	return &LLMService{
		client:      openai.NewClient(cfg.APIKey),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

// Complete sends a prompt and returns the raw response text. JSON response
// mode is requested so the model returns a bare JSON object.
func (s *LLMService) Complete(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: float32(s.temperature),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}
	if s.maxTokens > 0 {
		req.MaxTokens = s.maxTokens
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
