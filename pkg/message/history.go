package message

import "sync"

// History owns a conversation transcript. It is logically single-writer: one
// generation loop drives it at a time, and AppendTurn commits a model turn
// together with its tool outputs so a cancelled or failed turn never leaves a
// partial suffix behind.
type History struct {
	mu   sync.RWMutex
	msgs []Message
}

// NewHistory creates a history seeded with the given messages.
func NewHistory(msgs ...Message) *History {
	return &History{msgs: append([]Message(nil), msgs...)}
}

// Append adds a single message.
func (h *History) Append(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, msg)
}

// AppendTurn adds a whole turn atomically: callers pass the assistant
// message plus any tool outputs it produced, and readers observe either none
// or all of them.
func (h *History) AppendTurn(msgs ...Message) {
	if len(msgs) == 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, msgs...)
}

// Snapshot returns a copy of the transcript.
func (h *History) Snapshot() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Message(nil), h.msgs...)
}

// Len returns the number of messages.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.msgs)
}

// Last returns the most recent message, if any.
func (h *History) Last() (Message, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.msgs) == 0 {
		return Message{}, false
	}
	return h.msgs[len(h.msgs)-1], true
}
