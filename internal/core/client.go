package core

import "sync"

// Client is an authenticated connection as seen by the core layer.
// The transport drains the outbound queue and writes it to the wire.
//
// The queue is unbounded: a peer that reads slowly falls behind but is never
// dropped for it. Only a failed write (including a write timeout) or a
// disconnect removes a client.
type Client struct {
	ID         string
	Name       string
	RemoteAddr string

	mu      sync.Mutex
	pending []*Event
	ready   chan struct{}

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient constructs a client with an empty outbound queue.
func NewClient(id, name, remoteAddr string) *Client {
	if name == "" {
		name = id
	}
	return &Client{
		ID:         id,
		Name:       name,
		RemoteAddr: remoteAddr,
		ready:      make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

// Deliver appends ev to the outbound queue without blocking. It reports
// false only when the client has been closed.
func (c *Client) Deliver(ev *Event) bool {
	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		return false
	default:
	}
	c.pending = append(c.pending, ev)
	c.mu.Unlock()

	select {
	case c.ready <- struct{}{}:
	default:
	}
	return true
}

// Ready receives a signal after Deliver queues an event. Signals coalesce,
// so the writer must Drain until empty after each one.
func (c *Client) Ready() <-chan struct{} {
	return c.ready
}

// Drain removes and returns every queued event in delivery order.
func (c *Client) Drain() []*Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	evs := c.pending
	c.pending = nil
	return evs
}

// Pending returns the number of queued events.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Done is closed once the client has been closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close marks the client dead and discards its queue. Safe to call more
// than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.pending = nil
		close(c.done)
		c.mu.Unlock()
	})
}
