package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/normanking/insightlens/internal/llm"
	"github.com/normanking/insightlens/internal/logging"
)

// GlobalSessionKey names the one shared session used by conversationless
// requests.
const GlobalSessionKey = "global"

// AssistantSystemPrompt seeds every session, same persona as the extension.
const AssistantSystemPrompt = "You are an AI coding assistant who answers code-related questions clearly and concisely. " +
	"Explain reasoning and give short examples when useful."

// SessionManager owns the long-lived model sessions: one global, plus one
// per conversation on demand. Creation is lazy and single-flight, so
// concurrent first callers share one creation attempt instead of racing. A
// failed attempt is never cached; the next call starts over.
type SessionManager struct {
	model llm.LocalModel
	log   *logging.Logger

	group singleflight.Group

	mu       sync.Mutex
	sessions map[string]*llm.Session
}

// NewSessionManager creates a manager for the given local model.
func NewSessionManager(model llm.LocalModel, log *logging.Logger) *SessionManager {
	return &SessionManager{
		model:    model,
		log:      log.WithComponent("sessions"),
		sessions: make(map[string]*llm.Session),
	}
}

// GetOrCreateGlobal returns the shared session, creating it on first use.
func (m *SessionManager) GetOrCreateGlobal(ctx context.Context) (*llm.Session, error) {
	return m.getOrCreate(ctx, GlobalSessionKey, AssistantSystemPrompt)
}

// GetOrCreateForConversation returns the session scoped to a conversation
// id, falling back to the global session if the scoped creation fails.
func (m *SessionManager) GetOrCreateForConversation(ctx context.Context, conversationID, systemPrompt string) (*llm.Session, error) {
	if conversationID == "" {
		return m.GetOrCreateGlobal(ctx)
	}
	if systemPrompt == "" {
		systemPrompt = AssistantSystemPrompt
	}

	sess, err := m.getOrCreate(ctx, conversationID, systemPrompt)
	if err == nil {
		return sess, nil
	}

	m.log.Warn("per-conversation session for %q failed (%v), falling back to global", conversationID, err)
	return m.GetOrCreateGlobal(ctx)
}

func (m *SessionManager) getOrCreate(ctx context.Context, key, systemPrompt string) (*llm.Session, error) {
	m.mu.Lock()
	if sess, ok := m.sessions[key]; ok {
		m.mu.Unlock()
		return sess, nil
	}
	m.mu.Unlock()

	// singleflight collapses concurrent creators of the same key and does
	// not memoize errors, which is exactly the retry-from-scratch contract.
	v, err, _ := m.group.Do(key, func() (any, error) {
		sess, err := m.model.CreateSession(ctx, llm.SessionOptions{
			SystemPrompt:    systemPrompt,
			ExpectedInputs:  []string{"text"},
			ExpectedOutputs: []string{"text"},
		})
		if err != nil {
			if errors.Is(err, llm.ErrUnavailable) {
				return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
			}
			return nil, fmt.Errorf("%w: %v", ErrSessionCreation, err)
		}

		m.mu.Lock()
		m.sessions[key] = sess
		m.mu.Unlock()
		m.log.Info("created model session %q", key)
		return sess, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*llm.Session), nil
}

// SessionCount reports how many live sessions exist, for diagnostics.
func (m *SessionManager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
