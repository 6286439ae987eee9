// Package relay carries hosted-API requests between the orchestrator and the
// background context that actually talks to Gemini, reproducing the
// extension's sendMessage/onMessage contract as an explicit async
// request/response channel. The wire shape is fixed: the orchestrator sends a
// fetchGeminiResponse action and gets back {success, data|error}, with the
// channel held open until the asynchronous API call completes.
package relay

import (
	"context"
	"fmt"

	"github.com/normanking/insightlens/internal/llm"
)

// ActionFetchGemini is the only action the relay understands today.
const ActionFetchGemini = "fetchGeminiResponse"

// Request is the orchestrator-to-background message.
type Request struct {
	Action         string `json:"action"`
	Type           string `json:"type"` // operation kind: review, security, ...
	Text           string `json:"text"` // raw payload
	Context        string `json:"context,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	Prompt         string `json:"prompt"` // fully composed prompt
}

// Response is the background-to-orchestrator answer. Success=false carries a
// user-presentable error instead of data.
type Response struct {
	Success bool   `json:"success"`
	Data    string `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Relay delivers one request and waits for its response. Implementations
// must keep the exchange open until the asynchronous backend call settles.
type Relay interface {
	Call(ctx context.Context, req *Request) (*Response, error)
}

// Local is the in-process relay: no transport, the provider is invoked
// directly. This is the default when no background relay process is running.
type Local struct {
	provider llm.Provider
}

// NewLocal wraps provider as an in-process relay.
func NewLocal(provider llm.Provider) *Local {
	return &Local{provider: provider}
}

// Call executes the request against the wrapped provider. Backend failures
// come back as Success=false responses, not transport errors, so callers see
// one uniform failure shape regardless of where the relay runs.
func (l *Local) Call(ctx context.Context, req *Request) (*Response, error) {
	if req.Action != ActionFetchGemini {
		return nil, fmt.Errorf("unknown relay action %q", req.Action)
	}

	resp, err := l.provider.Chat(ctx, &llm.ChatRequest{
		Messages: []llm.Message{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		return &Response{Success: false, Error: err.Error()}, nil
	}
	return &Response{Success: true, Data: resp.Content}, nil
}
