// ABOUTME: OpenAI backend for chat completions
// ABOUTME: Uses gpt-4o-mini unless OPENAI_MODEL overrides it
package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// DefaultChatModel is the default model for chat completions
const DefaultChatModel = "gpt-4o-mini"

// OpenAIClient completes prompts through the OpenAI chat API
type OpenAIClient struct {
	client    *openai.Client
	chatModel string
}

// NewOpenAIClient creates a new OpenAI backend
func NewOpenAIClient(apiKey, model string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if model == "" {
		model = DefaultChatModel
	}
	return &OpenAIClient{client: openai.NewClient(apiKey), chatModel: model}, nil
}

func (c *OpenAIClient) Name() string { return "openai" }

// Complete sends a system + user exchange and returns the first choice
func (c *OpenAIClient) Complete(ctx context.Context, system, user string) (string, error) {
	var messages []openai.ChatCompletionMessage
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: user,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.chatModel,
		Messages:    messages,
		Temperature: 0.7,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
