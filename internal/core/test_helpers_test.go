package core

import (
	"testing"
	"time"

	"github.com/vovakirdan/wirerelay/internal/store/memory"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	return NewHub(memory.New(), nil)
}

// popEvent takes the oldest queued event, or nil when the queue is empty.
func popEvent(c *Client) *Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.pending) == 0 {
		return nil
	}
	ev := c.pending[0]
	c.pending = c.pending[1:]
	return ev
}

func mustEvent(t *testing.T, c *Client, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ev := popEvent(c)
		if ev == nil {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if ev.Kind == kind {
			return ev
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func assertNoEvent(t *testing.T, c *Client) {
	t.Helper()

	if ev := popEvent(c); ev != nil {
		t.Fatalf("unexpected event: %+v", ev)
	}
}
