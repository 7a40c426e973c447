package service

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const aiSystemPrompt = "당신은 가족 일정/연락처 비서 봇입니다. 한국어로 간결하고 친절하게 답하세요."

// AIService answers free-form chat messages. Disabled when no API key
// is configured.
type AIService struct {
	client *openai.Client
	model  string
}

func NewAIService(apiKey, model string) *AIService {
	s := &AIService{model: model}
	if apiKey != "" {
		s.client = openai.NewClient(apiKey)
	}
	return s
}

func (s *AIService) IsConfigured() bool {
	return s.client != nil
}

// Ask sends one user message and returns the model's reply.
func (s *AIService) Ask(ctx context.Context, message string) (string, error) {
	if !s.IsConfigured() {
		return "", fmt.Errorf("AI not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: aiSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}
	return resp.Choices[0].Message.Content, nil
}
