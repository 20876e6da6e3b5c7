// Package generator is the boundary to the external text generator. The
// engine never depends on which concrete provider implements it.
package generator

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Generator turns an assembled prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt, systemInstruction string) (string, error)
}

// OpenAI is a Generator backed by a chat-completion API.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates an OpenAI-compatible generator. baseURL may be empty for
// the default endpoint or point at any compatible local server.
func NewOpenAI(apiKey, baseURL, model string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model}
}

// Generate sends the prompt as a single-turn chat completion.
func (g *OpenAI) Generate(ctx context.Context, prompt, systemInstruction string) (string, error) {
	messages := []openai.ChatCompletionMessage{}
	if systemInstruction != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: systemInstruction,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    g.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("generator: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("generator: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

// Static returns a fixed response and records the last inputs; used in tests
// and when no provider is configured.
type Static struct {
	Response   string
	LastPrompt string
	LastSystem string
}

// Generate returns the static response regardless of input.
func (s *Static) Generate(_ context.Context, prompt, systemInstruction string) (string, error) {
	s.LastPrompt = prompt
	s.LastSystem = systemInstruction
	return s.Response, nil
}

var (
	_ Generator = (*OpenAI)(nil)
	_ Generator = (*Static)(nil)
)
