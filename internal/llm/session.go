package llm

import (
	"context"
	"sync"
)

// ChatFunc executes one turn against a backend given the session's system
// prompt and accumulated transcript.
type ChatFunc func(ctx context.Context, system string, history []Message) (string, error)

// Session is a stateful handle to a conversational model. It accumulates the
// transcript across Prompt calls so the model keeps multi-turn context.
// Prompts are serialized: at most one is in flight at a time and a second
// caller waits its turn. Two queue lanes can alias the same session when a
// per-conversation lane falls back to the global one, so the wait happens
// here rather than at the lane level.
type Session struct {
	turnMu sync.Mutex // serializes prompts across aliased callers

	mu      sync.Mutex // guards history
	system  string
	history []Message
	chat    ChatFunc
}

// NewSession creates a session with the given system prompt and transport.
// Tests inject a scripted ChatFunc here.
func NewSession(systemPrompt string, chat ChatFunc) *Session {
	return &Session{system: systemPrompt, chat: chat}
}

// Prompt sends text as the next user turn and returns the model's reply.
// The user and assistant turns are appended to the transcript only on
// success, so a failed call leaves the session state untouched.
func (s *Session) Prompt(ctx context.Context, text string) (string, error) {
	s.turnMu.Lock()
	defer s.turnMu.Unlock()

	// The caller may have given up while waiting for its turn.
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	transcript := make([]Message, len(s.history), len(s.history)+1)
	copy(transcript, s.history)
	s.mu.Unlock()
	transcript = append(transcript, Message{Role: "user", Content: text})

	reply, err := s.chat(ctx, s.system, transcript)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.history = append(s.history,
		Message{Role: "user", Content: text},
		Message{Role: "assistant", Content: reply},
	)
	s.mu.Unlock()
	return reply, nil
}

// Len reports the number of transcript messages retained so far.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}
