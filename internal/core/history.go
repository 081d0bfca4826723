package core

import "sync"

// History is the append-only log replayed to new joiners.
// Growth is unbounded.
type History struct {
	mu       sync.Mutex
	messages []Message
	seq      int64
}

// NewHistory returns an empty log.
func NewHistory() *History {
	return &History{}
}

// Append stores msg with the next sequence number and returns the stored copy.
func (h *History) Append(msg Message) Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	msg.Seq = h.seq
	h.messages = append(h.messages, msg)
	return msg
}

// Snapshot returns the log in append order.
func (h *History) Snapshot() []Message {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Len returns the number of stored messages.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages)
}
