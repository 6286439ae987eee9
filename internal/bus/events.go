// Package bus is the in-process event channel between the request
// orchestrator and any presentation surface (CLI toasts, tests, a future
// desktop shell). Delivery is best-effort: publishing with no listener is
// not an error, and slow subscribers drop events rather than block the
// orchestrator.
package bus

import (
	"time"

	"github.com/google/uuid"
)

// EventType classifies events flowing through the bus.
type EventType string

const (
	// EventNotification is a user-facing toast ("Code review completed!").
	EventNotification EventType = "notification"

	// EventLLMRequest fires when a prompt is handed to a backend.
	EventLLMRequest EventType = "llm_request"

	// EventLLMResponse fires when a backend answered.
	EventLLMResponse EventType = "llm_response"

	// EventLLMError fires when a backend call failed.
	EventLLMError EventType = "llm_error"
)

// Notification sounds, matching the extension's three-tone scheme.
const (
	SoundStart   = "start"
	SoundSuccess = "success"
	SoundError   = "error"
)

// Event is a single occurrence published on the bus.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`

	// CorrelationID ties the event to one orchestrated request.
	CorrelationID string `json:"correlation_id,omitempty"`

	// Operation and Backend describe what was being asked of which backend.
	Operation string `json:"operation,omitempty"`
	Backend   string `json:"backend,omitempty"`

	// Message and Sound carry notification payloads.
	Message string `json:"message,omitempty"`
	Sound   string `json:"sound,omitempty"`

	// DurationMs is set on llm_response events.
	DurationMs int64 `json:"duration_ms,omitempty"`

	// Error is set on llm_error events.
	Error string `json:"error,omitempty"`
}

// NewEvent creates an event of the given type with id and timestamp set.
func NewEvent(t EventType) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Type:      t,
	}
}
