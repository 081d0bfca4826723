package session

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/wirerelay/internal/core"
	"github.com/vovakirdan/wirerelay/internal/proto"
	"github.com/vovakirdan/wirerelay/internal/store/memory"
)

type inbound struct {
	rec proto.Record
	err error
}

// fakeConn is an in-memory Conn: tests push inbound records and read what
// the server wrote from out.
type fakeConn struct {
	in     chan inbound
	out    chan proto.Record
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan inbound, 16),
		out:    make(chan proto.Record, 64),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadRecord(context.Context) (proto.Record, error) {
	select {
	case item := <-c.in:
		return item.rec, item.err
	case <-c.closed:
		return proto.Record{}, net.ErrClosed
	}
}

func (c *fakeConn) WriteRecord(_ context.Context, rec proto.Record) error {
	select {
	case <-c.closed:
		return net.ErrClosed
	default:
	}
	select {
	case c.out <- rec:
		return nil
	case <-c.closed:
		return net.ErrClosed
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) RemoteAddr() string { return "fake" }

func (c *fakeConn) send(rec proto.Record) { c.in <- inbound{rec: rec} }

func (c *fakeConn) hangUp() { c.in <- inbound{err: io.EOF} }

type testServer struct {
	hub     *core.Hub
	handler *Handler
	wg      sync.WaitGroup
}

func newTestServer(t *testing.T, cfg Config) *testServer {
	t.Helper()

	hub := core.NewHub(memory.New(), nil)
	srv := &testServer{hub: hub, handler: NewHandler(hub, cfg, nil)}
	t.Cleanup(func() {
		hub.Shutdown()
		srv.wg.Wait()
	})
	return srv
}

// serve starts a session and returns its connection plus a channel closed
// when Serve returns.
func (s *testServer) serve() (*fakeConn, <-chan struct{}) {
	conn := newFakeConn()
	done := make(chan struct{})
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(done)
		s.handler.Serve(context.Background(), conn)
	}()
	return conn, done
}

// join authenticates a new session as username and waits for registration.
func (s *testServer) join(t *testing.T, username string) *fakeConn {
	t.Helper()

	before := s.hub.Clients()
	conn, _ := s.serve()
	conn.send(proto.Auth(username, ""))
	waitFor(t, func() bool { return s.hub.Clients() == before+1 })
	return conn
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func mustRecord(t *testing.T, conn *fakeConn, typ string) proto.Record {
	t.Helper()

	select {
	case rec := <-conn.out:
		if rec.Type != typ {
			t.Fatalf("expected %s record, got %+v", typ, rec)
		}
		return rec
	case <-time.After(2 * time.Second):
		t.Fatalf("expected %s record not received", typ)
	}
	return proto.Record{}
}

func assertNoRecord(t *testing.T, conn *fakeConn) {
	t.Helper()

	select {
	case rec := <-conn.out:
		t.Fatalf("unexpected record: %+v", rec)
	case <-time.After(50 * time.Millisecond):
	}
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end")
	}
}
