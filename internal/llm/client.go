package llm

import "context"

// Client is a chat-completion backend. Implementations must report HTTP 429
// responses as *RateLimitError so the retry policy can recognise them.
type Client interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	Provider() string
	Model() string
}

type ChatRequest struct {
	Messages    []Message
	Temperature float32
	MaxTokens   int
}

type ChatResponse struct {
	Message    Message
	StopReason StopReason
	Usage      Usage
}
