// Package llmtest provides chat-client doubles for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"nimbus/internal/llm"
)

// ErrScriptExhausted is returned once every scripted reply has been consumed.
var ErrScriptExhausted = errors.New("scripted client: no more responses available")

// Reply is one scripted completion: either content or an error.
type Reply struct {
	Content string
	Err     error
}

// ScriptedClient returns a pre-defined sequence of replies and records every
// request it receives.
type ScriptedClient struct {
	mu       sync.Mutex
	replies  []Reply
	Requests []*llm.ChatRequest
}

// NewScriptedClient queues content replies in order.
func NewScriptedClient(contents ...string) *ScriptedClient {
	c := &ScriptedClient{}
	for _, content := range contents {
		c.replies = append(c.replies, Reply{Content: content})
	}
	return c
}

// AddReply appends a reply to the queue.
func (c *ScriptedClient) AddReply(r Reply) *ScriptedClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies = append(c.replies, r)
	return c
}

func (c *ScriptedClient) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Snapshot the transcript; the caller keeps appending to its slice.
	snapshot := &llm.ChatRequest{
		Messages:    append([]llm.Message(nil), req.Messages...),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	c.Requests = append(c.Requests, snapshot)

	if len(c.replies) == 0 {
		return nil, ErrScriptExhausted
	}
	reply := c.replies[0]
	c.replies = c.replies[1:]

	if reply.Err != nil {
		return nil, reply.Err
	}
	return &llm.ChatResponse{
		Message:    llm.NewMessage(llm.RoleAssistant, reply.Content),
		StopReason: llm.StopReasonStop,
	}, nil
}

// Calls reports how many requests were received.
func (c *ScriptedClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Requests)
}

func (c *ScriptedClient) Provider() string {
	return "scripted"
}

func (c *ScriptedClient) Model() string {
	return "scripted-model"
}
