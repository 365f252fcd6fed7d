package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"nimbus/internal/llm"

	openai "github.com/sashabaranov/go-openai"
)

const providerName = "openai"

type Client struct {
	client *openai.Client
	model  string
}

// NewClient creates a client for any OpenAI-compatible chat endpoint.
// If baseURL is empty the default OpenAI API endpoint is used.
func NewClient(apiKey, model string, baseURL ...string) *Client {
	config := openai.DefaultConfig(apiKey)
	if len(baseURL) > 0 && baseURL[0] != "" {
		config.BaseURL = strings.TrimRight(baseURL[0], "/")
	}

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

func (c *Client) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    c.convertMessages(req.Messages),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, classifyError(err)
	}

	return c.convertResponse(resp)
}

func (c *Client) Provider() string {
	return providerName
}

func (c *Client) Model() string {
	return c.model
}

func (c *Client) convertMessages(msgs []llm.Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, len(msgs))
	for i, msg := range msgs {
		result[i] = openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}
	return result
}

func (c *Client) convertResponse(resp openai.ChatCompletionResponse) (*llm.ChatResponse, error) {
	if len(resp.Choices) == 0 {
		return nil, llm.ErrEmptyResponse
	}
	choice := resp.Choices[0]

	role := llm.Role(choice.Message.Role)
	if role == "" {
		role = llm.RoleAssistant
	}

	return &llm.ChatResponse{
		Message:    llm.NewMessage(role, choice.Message.Content),
		StopReason: llm.StopReason(choice.FinishReason),
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// classifyError maps HTTP 429 responses to *llm.RateLimitError.
func classifyError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return &llm.RateLimitError{
			Provider:   providerName,
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Cause:      err,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return &llm.RateLimitError{
			Provider:   providerName,
			StatusCode: reqErr.HTTPStatusCode,
			Message:    reqErr.HTTPStatus,
			Cause:      err,
		}
	}

	return fmt.Errorf("chat completion failed: %w", err)
}
