package orchestrator

import (
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"
)

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one immutable entry in a conversation transcript.
type Turn struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"ts"` // unix millis, strictly increasing per conversation
}

// DefaultRecentTurns is how much history feeds into a composed prompt.
const DefaultRecentTurns = 8

// ConversationStore keeps per-conversation transcripts in memory for the
// lifetime of the process. Appends are strictly ordered; turns are never
// mutated or reordered. Unknown conversation ids behave like empty ones, so
// none of the append or read operations can fail.
type ConversationStore struct {
	mu     sync.Mutex
	turns  map[string][]Turn
	lastTS map[string]int64
}

// NewConversationStore creates an empty store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		turns:  make(map[string][]Turn),
		lastTS: make(map[string]int64),
	}
}

// Start ensures a conversation exists and returns its id. An empty id gets a
// generated one. An optional system prompt seeds the transcript, but only on
// first creation: Start on an existing conversation is a no-op.
func (s *ConversationStore) Start(conversationID, systemPrompt string) string {
	if conversationID == "" {
		conversationID = newID()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.turns[conversationID]; ok {
		return conversationID
	}

	initial := []Turn{}
	if systemPrompt != "" {
		initial = append(initial, Turn{
			ID:        newID(),
			Role:      RoleSystem,
			Content:   systemPrompt,
			Timestamp: s.nextTimestamp(conversationID),
		})
	}
	s.turns[conversationID] = initial
	return conversationID
}

// AppendUser records a user turn. A missing conversation is auto-created.
func (s *ConversationStore) AppendUser(conversationID, content string) Turn {
	return s.append(conversationID, RoleUser, content)
}

// AppendAssistant records an assistant turn. A missing conversation is
// auto-created.
func (s *ConversationStore) AppendAssistant(conversationID, content string) Turn {
	return s.append(conversationID, RoleAssistant, content)
}

func (s *ConversationStore) append(conversationID string, role Role, content string) Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	turn := Turn{
		ID:        newID(),
		Role:      role,
		Content:   content,
		Timestamp: s.nextTimestamp(conversationID),
	}
	s.turns[conversationID] = append(s.turns[conversationID], turn)
	return turn
}

// Recent returns the last maxTurns turns in chronological order. maxTurns <=
// 0 falls back to DefaultRecentTurns.
func (s *ConversationStore) Recent(conversationID string, maxTurns int) []Turn {
	if maxTurns <= 0 {
		maxTurns = DefaultRecentTurns
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	hist := s.turns[conversationID]
	if len(hist) > maxTurns {
		hist = hist[len(hist)-maxTurns:]
	}
	out := make([]Turn, len(hist))
	copy(out, hist)
	return out
}

// Clear deletes the conversation entirely.
func (s *ConversationStore) Clear(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.turns, conversationID)
	delete(s.lastTS, conversationID)
}

// nextTimestamp returns a strictly increasing millisecond timestamp for the
// conversation, bumping past the clock when appends land inside one tick.
// Callers must hold s.mu.
func (s *ConversationStore) nextTimestamp(conversationID string) int64 {
	ts := time.Now().UnixMilli()
	if last := s.lastTS[conversationID]; ts <= last {
		ts = last + 1
	}
	s.lastTS[conversationID] = ts
	return ts
}

// newID builds a timestamp-plus-random id. Uniqueness is best-effort, the
// same scheme the extension used, not cryptographic.
func newID() string {
	return fmt.Sprintf("%s-%s",
		strconv.FormatInt(time.Now().UnixMilli(), 36),
		strconv.FormatInt(rand.Int63n(1<<48), 36),
	)
}
