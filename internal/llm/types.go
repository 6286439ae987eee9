// Package llm provides the two InsightLens backends: a hosted Gemini API
// provider and an on-device model served by Ollama. Both are reached through
// the same chat types so the orchestrator never branches on backend shape.
package llm

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrUnavailable means the backend cannot serve requests at all: the local
// model server is not running, or the remote API has no key configured.
var ErrUnavailable = errors.New("model backend unavailable")

// MaxErrorBodySize bounds how much of an error response body is read back.
const MaxErrorBodySize = 1 * 1024 * 1024

// readLimitedBody reads up to maxBytes from r for error reporting.
func readLimitedBody(r io.Reader, maxBytes int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxBytes))
}

// Message is one conversation message sent to a backend.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// ChatRequest is a single completion request.
type ChatRequest struct {
	Model        string    `json:"model,omitempty"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	Messages     []Message `json:"messages"`
	MaxTokens    int       `json:"max_tokens,omitempty"`
	Temperature  float64   `json:"temperature,omitempty"`
}

// ChatResponse is what a backend answered.
type ChatResponse struct {
	Content          string        `json:"content"`
	Model            string        `json:"model"`
	PromptTokens     int           `json:"prompt_tokens,omitempty"`
	CompletionTokens int           `json:"completion_tokens,omitempty"`
	Duration         time.Duration `json:"duration"`
	FinishReason     string        `json:"finish_reason,omitempty"`
}

// Provider is a stateless chat backend.
type Provider interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	Name() string
	Available() bool
}

// Config holds connection settings for one backend.
type Config struct {
	Endpoint    string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// withDefaults fills zero fields from def.
func (c *Config) withDefaults(def Config) {
	if c.Endpoint == "" {
		c.Endpoint = def.Endpoint
	}
	if c.Model == "" {
		c.Model = def.Model
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = def.MaxTokens
	}
	if c.Temperature == 0 {
		c.Temperature = def.Temperature
	}
	if c.Timeout == 0 {
		c.Timeout = def.Timeout
	}
}
