package event

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// EventType labels the generation events pushed to SSE clients.
type EventType string

const (
	// EventTextDelta carries one incremental text fragment.
	EventTextDelta EventType = "text_delta"
	// EventPartial carries the current schema-pruned partial value.
	EventPartial EventType = "partial"
	// EventToolCall announces a dispatched tool invocation.
	EventToolCall EventType = "tool_call"
	// EventToolResult carries a finished tool invocation's output.
	EventToolResult EventType = "tool_result"
	// EventCompletion carries the terminal result of a run.
	EventCompletion EventType = "completion"
	// EventError reports a failed run.
	EventError EventType = "error"
)

// Event is one frame pushed to subscribers.
type Event struct {
	ID             string    `json:"id"`
	Type           EventType `json:"type"`
	Timestamp      time.Time `json:"timestamp"`
	ConversationID string    `json:"conversation_id,omitempty"`
	Data           any       `json:"data,omitempty"`
}

// NewEvent builds an event with a fresh id and timestamp.
func NewEvent(typ EventType, conversationID string, data any) Event {
	return normalizeEvent(Event{Type: typ, ConversationID: conversationID, Data: data})
}

// Validate checks the minimal frame constraints.
func (e Event) Validate() error {
	if e.Type == "" {
		return errors.New("event: type is empty")
	}
	return nil
}

func normalizeEvent(e Event) Event {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	return e
}
