package core

import (
	"fmt"
	"sync"
	"testing"
)

func TestRegistryAllowsDuplicateUsernames(t *testing.T) {
	r := NewRegistry()
	a := NewClient("1", "alice", "")
	b := NewClient("2", "alice", "")

	r.Register(a)
	r.Register(b)
	if r.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", r.Len())
	}

	if !r.Deregister(a) {
		t.Fatal("expected first deregister to succeed")
	}
	if r.Deregister(a) {
		t.Fatal("expected second deregister to report absence")
	}

	snap := r.Snapshot()
	if len(snap) != 1 || snap[0] != b {
		t.Fatalf("unexpected snapshot: %v", snap)
	}
}

func TestRegistrySnapshotIsDetached(t *testing.T) {
	r := NewRegistry()
	a := NewClient("1", "alice", "")
	r.Register(a)

	snap := r.Snapshot()
	r.Deregister(a)
	if len(snap) != 1 {
		t.Fatalf("snapshot changed after deregister: %v", snap)
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := NewClient(fmt.Sprint(i), "u", "")
			r.Register(c)
			_ = r.Snapshot()
			if i%2 == 0 {
				r.Deregister(c)
			}
		}(i)
	}
	wg.Wait()

	if r.Len() != 25 {
		t.Fatalf("expected 25 clients, got %d", r.Len())
	}
}

func TestHistoryAppendAssignsSequence(t *testing.T) {
	h := NewHistory()
	first := h.Append(Message{Kind: KindChat, From: "a", Content: "1"})
	second := h.Append(Message{Kind: KindChat, From: "a", Content: "2"})

	if first.Seq != 1 || second.Seq != 2 {
		t.Fatalf("unexpected sequence numbers %d, %d", first.Seq, second.Seq)
	}

	snap := h.Snapshot()
	snap[0].Content = "mutated"
	if h.Snapshot()[0].Content != "1" {
		t.Fatal("snapshot mutation leaked into history")
	}
}

func TestClientDeliverAfterClose(t *testing.T) {
	c := NewClient("1", "alice", "")
	for range 3 {
		if !c.Deliver(&Event{}) {
			t.Fatal("deliver to a live client must succeed")
		}
	}
	select {
	case <-c.Ready():
	default:
		t.Fatal("expected a ready signal after deliver")
	}
	if got := len(c.Drain()); got != 3 {
		t.Fatalf("drained %d events, want 3", got)
	}

	c.Deliver(&Event{})
	c.Close()
	c.Close()
	if c.Deliver(&Event{}) {
		t.Fatal("expected deliver to fail after close")
	}
	if c.Pending() != 0 {
		t.Fatal("close must discard the queue")
	}
}
