package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Availability is the on-device model's readiness state, mirroring the
// browser Prompt API's availability() values.
type Availability string

const (
	Available   Availability = "available"
	Unavailable Availability = "unavailable"
)

// SessionOptions configures session creation against the local model.
type SessionOptions struct {
	SystemPrompt    string
	ExpectedInputs  []string // content types, informational ("text")
	ExpectedOutputs []string
}

// LocalModel is the on-device provider: it reports availability and mints
// stateful sessions. The Go stand-in for the extension's built-in Gemini
// Nano is an Ollama server on localhost.
type LocalModel interface {
	Availability(ctx context.Context) Availability
	CreateSession(ctx context.Context, opts SessionOptions) (*Session, error)
}

// OllamaModel serves sessions from a local Ollama instance.
type OllamaModel struct {
	config Config
	client *http.Client
}

// DefaultOllamaConfig returns the stock local-model settings.
func DefaultOllamaConfig() Config {
	return Config{
		Endpoint:    "http://127.0.0.1:11434",
		Model:       "llama3",
		MaxTokens:   4096,
		Temperature: 0.7,
		Timeout:     2 * time.Minute,
	}
}

// NewOllamaModel creates a local model backed by Ollama.
func NewOllamaModel(cfg Config) *OllamaModel {
	cfg.withDefaults(DefaultOllamaConfig())
	return &OllamaModel{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Availability probes the Ollama tags endpoint. An endpoint with zero
// installed models is reported unavailable, it cannot answer anything.
func (m *OllamaModel) Availability(ctx context.Context) Availability {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, m.config.Endpoint+"/api/tags", nil)
	if err != nil {
		return Unavailable
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return Unavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Unavailable
	}

	var result struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Unavailable
	}
	if len(result.Models) == 0 {
		return Unavailable
	}
	return Available
}

// CreateSession checks availability and returns a fresh session seeded with
// the system prompt. The session keeps its own transcript; each Prompt call
// replays it so the model retains conversational context.
func (m *OllamaModel) CreateSession(ctx context.Context, opts SessionOptions) (*Session, error) {
	if m.Availability(ctx) != Available {
		return nil, fmt.Errorf("%w: on-device model not installed (is Ollama running with a pulled model?)", ErrUnavailable)
	}
	return NewSession(opts.SystemPrompt, m.chat), nil
}

// chat posts a full transcript to Ollama and returns the reply text.
func (m *OllamaModel) chat(ctx context.Context, system string, history []Message) (string, error) {
	ollamaReq := ollamaChatRequest{
		Model:  m.config.Model,
		Stream: false,
	}
	if system != "" {
		ollamaReq.Messages = append(ollamaReq.Messages, ollamaMessage{Role: "system", Content: system})
	}
	for _, msg := range history {
		ollamaReq.Messages = append(ollamaReq.Messages, ollamaMessage{Role: msg.Role, Content: msg.Content})
	}
	ollamaReq.Options.Temperature = m.config.Temperature
	ollamaReq.Options.NumPredict = m.config.MaxTokens

	body, err := json.Marshal(ollamaReq)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, m.config.Endpoint+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := readLimitedBody(resp.Body, MaxErrorBodySize)
		return "", fmt.Errorf("Ollama error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var ollamaResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return ollamaResp.Message.Content, nil
}

// Ollama wire types.
type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  struct {
		Temperature float64 `json:"temperature,omitempty"`
		NumPredict  int     `json:"num_predict,omitempty"`
	} `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}
