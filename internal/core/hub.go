package core

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vovakirdan/wirerelay/internal/store"
)

// Hub owns the registry and history and fans messages out to clients.
//
// seq orders Join against Publish: a joiner's replay snapshot and its
// registration happen atomically with respect to any append+broadcast, so a
// message is seen either in the replay or live, never both and never neither.
// No network or store I/O happens under seq; delivery is a non-blocking
// enqueue onto each client's outbound queue.
//
// uploads serialises file uploads among themselves so the store write order
// matches the order of file messages in history. It is always taken before
// seq, never after.
type Hub struct {
	seq      sync.Mutex
	uploads  sync.Mutex
	registry *Registry
	history  *History
	files    store.FileStore
	log      *zerolog.Logger
	now      func() time.Time
}

// Stats is a point-in-time summary for the admin surface.
type Stats struct {
	Clients int `json:"clients"`
	History int `json:"history"`
	Files   int `json:"files"`
}

// NewHub creates a hub backed by files.
func NewHub(files store.FileStore, logger *zerolog.Logger) *Hub {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		registry: NewRegistry(),
		history:  NewHistory(),
		files:    files,
		log:      logger,
		now:      time.Now,
	}
}

// Join registers c and returns the history it must be sent before any live
// event. Events published after Join are queued on c.
func (h *Hub) Join(c *Client) []Message {
	h.seq.Lock()
	defer h.seq.Unlock()

	replay := h.history.Snapshot()
	h.registry.Register(c)

	h.log.Info().
		Str("client_id", c.ID).
		Str("user", c.Name).
		Str("remote", c.RemoteAddr).
		Int("replay", len(replay)).
		Msg("client joined")
	return replay
}

// Leave deregisters and closes c. Calling it again is a no-op.
func (h *Hub) Leave(c *Client) {
	if h.registry.Deregister(c) {
		h.log.Info().Str("client_id", c.ID).Str("user", c.Name).Msg("client left")
	}
	c.Close()
}

// Publish attributes msg to sender, appends it to history and broadcasts it
// to every other client as one unit.
func (h *Hub) Publish(sender *Client, msg Message) (Message, error) {
	h.seq.Lock()
	defer h.seq.Unlock()
	return h.publishLocked(sender, msg)
}

func (h *Hub) publishLocked(sender *Client, msg Message) (Message, error) {
	if msg.Kind != KindChat && msg.Kind != KindFile {
		return Message{}, ErrNotBroadcastable
	}
	if sender == nil || sender.Name == "" {
		return Message{}, ErrEmptySender
	}
	msg.From = sender.Name
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = h.now()
	}

	stored := h.history.Append(msg)
	delivered := h.Broadcast(&Event{Kind: EventMessage, Message: stored}, sender)

	h.log.Debug().
		Int64("seq", stored.Seq).
		Str("kind", stored.Kind.String()).
		Str("user", stored.From).
		Int("recipients", delivered).
		Msg("message published")
	return stored, nil
}

// Broadcast queues ev for every registered client except exclude and
// returns how many accepted it. Queuing never blocks; a client that has
// already closed is skipped and left to its own Leave.
func (h *Hub) Broadcast(ev *Event, exclude *Client) int {
	delivered := 0
	for _, c := range h.registry.Snapshot() {
		if c == exclude {
			continue
		}
		if c.Deliver(ev) {
			delivered++
		}
	}
	return delivered
}

// Reply queues ev for c alone. It reports false if c is already closed.
func (h *Hub) Reply(c *Client, ev *Event) bool {
	return c.Deliver(ev)
}

// Evict removes a client whose network write has failed.
func (h *Hub) Evict(c *Client) {
	if h.registry.Deregister(c) {
		h.log.Warn().Str("client_id", c.ID).Str("user", c.Name).Msg("evicting client after failed write")
	}
	c.Close()
}

// Shutdown closes every registered client.
func (h *Hub) Shutdown() {
	for _, c := range h.registry.Snapshot() {
		h.Leave(c)
	}
}

// Stats reports registry, history and file store sizes.
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	st := Stats{
		Clients: h.registry.Len(),
		History: h.history.Len(),
	}
	names, err := h.files.List(ctx)
	if err != nil {
		return st, err
	}
	st.Files = len(names)
	return st, nil
}

// Clients returns the number of registered clients.
func (h *Hub) Clients() int {
	return h.registry.Len()
}
