package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGeminiChat(t *testing.T) {
	var gotPath, gotKey string
	var gotReq geminiGenerateRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		resp := `{
			"candidates": [{"content": {"parts": [{"text": "looks "}, {"text": "fine"}], "role": "model"}, "finishReason": "STOP"}],
			"usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 3}
		}`
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(resp))
	}))
	defer server.Close()

	p := NewGeminiProvider(Config{Endpoint: server.URL, APIKey: "test-key", Model: "gemini-1.5-flash"})

	resp, err := p.Chat(context.Background(), &ChatRequest{
		SystemPrompt: "be terse",
		Messages: []Message{
			{Role: "user", Content: "hi"},
			{Role: "assistant", Content: "hello"},
			{Role: "user", Content: "review this"},
		},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	if resp.Content != "looks fine" {
		t.Errorf("content = %q, want 'looks fine'", resp.Content)
	}
	if resp.PromptTokens != 12 || resp.CompletionTokens != 3 {
		t.Errorf("token counts = %d/%d", resp.PromptTokens, resp.CompletionTokens)
	}
	if gotPath != "/models/gemini-1.5-flash:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("api key header = %q", gotKey)
	}
	if gotReq.SystemInstruction == nil || gotReq.SystemInstruction.Parts[0].Text != "be terse" {
		t.Error("system instruction not forwarded")
	}
	// Assistant role must be translated to "model" on the wire.
	if len(gotReq.Contents) != 3 || gotReq.Contents[1].Role != "model" {
		t.Errorf("contents roles wrong: %+v", gotReq.Contents)
	}
}

func TestGeminiChatWithoutKeyIsUnavailable(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	p := NewGeminiProvider(Config{Endpoint: "http://127.0.0.1:0"})

	if p.Available() {
		t.Error("provider without key should not report available")
	}

	_, err := p.Chat(context.Background(), &ChatRequest{Messages: []Message{{Role: "user", Content: "x"}}})
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestGeminiChatHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "quota exceeded"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := NewGeminiProvider(Config{Endpoint: server.URL, APIKey: "k"})
	_, err := p.Chat(context.Background(), &ChatRequest{Messages: []Message{{Role: "user", Content: "x"}}})
	if err == nil {
		t.Fatal("expected error on 429")
	}
}
