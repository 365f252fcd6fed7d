package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"nimbus/internal/llm"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-key", "gemini-2.0-flash", srv.URL+"/v1/")
}

func TestChatSendsTranscriptAndReturnsContent(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header: %q", auth)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("invalid request body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "{\"current_step\": {\"step\": \"plan\", \"thought\": \"t\"}}"}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 8, "total_tokens": 20}
		}`)
	})

	resp, err := client.Chat(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{
			llm.NewMessage(llm.RoleSystem, "system prompt"),
			llm.NewMessage(llm.RoleUser, "What's the weather in Paris?"),
		},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if got.Model != "gemini-2.0-flash" {
		t.Errorf("expected model gemini-2.0-flash, got %q", got.Model)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Content != "What's the weather in Paris?" {
		t.Errorf("unexpected messages sent: %+v", got.Messages)
	}
	if resp.Message.Role != llm.RoleAssistant {
		t.Errorf("expected assistant role, got %q", resp.Message.Role)
	}
	if resp.Message.Content != `{"current_step": {"step": "plan", "thought": "t"}}` {
		t.Errorf("unexpected content: %q", resp.Message.Content)
	}
	if resp.Usage.TotalTokens != 20 {
		t.Errorf("expected 20 total tokens, got %d", resp.Usage.TotalTokens)
	}
}

func TestChatRateLimitIsClassified(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error": {"message": "Resource has been exhausted", "type": "rate_limit_error", "code": 429}}`)
	})

	_, err := client.Chat(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{llm.NewMessage(llm.RoleUser, "hi")},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !llm.IsRateLimit(err) {
		t.Fatalf("expected rate limit error, got %v", err)
	}

	var rl *llm.RateLimitError
	if !errors.As(err, &rl) {
		t.Fatal("expected *llm.RateLimitError")
	}
	if rl.StatusCode != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", rl.StatusCode)
	}
}

func TestChatServerErrorIsNotRateLimit(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error": {"message": "invalid model", "type": "invalid_request_error"}}`)
	})

	_, err := client.Chat(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{llm.NewMessage(llm.RoleUser, "hi")},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if llm.IsRateLimit(err) {
		t.Errorf("400 should not be classified as rate limit: %v", err)
	}
}

func TestChatEmptyChoices(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id": "x", "object": "chat.completion", "choices": []}`)
	})

	_, err := client.Chat(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{llm.NewMessage(llm.RoleUser, "hi")},
	})
	if !errors.Is(err, llm.ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestClientMetadata(t *testing.T) {
	c := NewClient("k", "gpt-4o-mini")
	if c.Provider() != "openai" {
		t.Errorf("unexpected provider %q", c.Provider())
	}
	if c.Model() != "gpt-4o-mini" {
		t.Errorf("unexpected model %q", c.Model())
	}
}
