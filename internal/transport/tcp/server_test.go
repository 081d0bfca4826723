package tcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/vovakirdan/wirerelay/internal/client"
	"github.com/vovakirdan/wirerelay/internal/core"
	"github.com/vovakirdan/wirerelay/internal/proto"
	"github.com/vovakirdan/wirerelay/internal/session"
	"github.com/vovakirdan/wirerelay/internal/store/memory"
)

type testServer struct {
	addr string
	hub  *core.Hub
}

func startTestServer(t *testing.T, cfg Config) *testServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	hub := core.NewHub(memory.New(), nil)
	handler := session.NewHandler(hub, session.Config{}, nil)
	srv := NewServer(handler, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("serve: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
		hub.Shutdown()
	})

	return &testServer{addr: ln.Addr().String(), hub: hub}
}

func (s *testServer) dial(t *testing.T, username string) *client.Client {
	t.Helper()

	before := s.hub.Clients()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	c, err := client.Dial(ctx, s.addr, username, "")
	if err != nil {
		t.Fatalf("dial %s: %v", username, err)
	}
	t.Cleanup(func() { _ = c.Close() })

	s.waitForClients(t, before+1)
	return c
}

func (s *testServer) waitForClients(t *testing.T, n int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.hub.Clients() == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("clients = %d, want %d", s.hub.Clients(), n)
}

func mustReceive(t *testing.T, c *client.Client, typ string) proto.Record {
	t.Helper()

	_ = c.SetDeadline(time.Now().Add(2 * time.Second))
	rec, err := c.Receive()
	if err != nil {
		t.Fatalf("receive %s: %v", typ, err)
	}
	if rec.Type != typ {
		t.Fatalf("expected %s record, got %+v", typ, rec)
	}
	return rec
}

func assertSilent(t *testing.T, c *client.Client) {
	t.Helper()

	_ = c.SetDeadline(time.Now().Add(100 * time.Millisecond))
	rec, err := c.Receive()
	if err == nil {
		t.Fatalf("unexpected record: %+v", rec)
	}
	var ne net.Error
	if !errors.As(err, &ne) || !ne.Timeout() {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestChatScenario(t *testing.T) {
	srv := startTestServer(t, Config{})
	alice := srv.dial(t, "alice")
	bob := srv.dial(t, "bob")

	if err := alice.SendChat("hi"); err != nil {
		t.Fatalf("send: %v", err)
	}

	rec := mustReceive(t, bob, proto.TypeMsg)
	if rec.Username != "alice" || rec.Content != "hi" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	assertSilent(t, alice)
}

func TestFileScenario(t *testing.T) {
	srv := startTestServer(t, Config{})
	alice := srv.dial(t, "alice")
	bob := srv.dial(t, "bob")

	if err := alice.SendFile("a.txt", []byte{0x68, 0x69}); err != nil {
		t.Fatalf("send file: %v", err)
	}
	rec := mustReceive(t, bob, proto.TypeFile)
	if rec.Username != "alice" || rec.Filename != "a.txt" || rec.Content != "aGk=" {
		t.Fatalf("unexpected broadcast: %+v", rec)
	}

	if err := bob.RequestDownload("a.txt"); err != nil {
		t.Fatalf("request download: %v", err)
	}
	rec = mustReceive(t, bob, proto.TypeFileDownload)
	if rec.Username != proto.ServerUsername || rec.Content != "aGk=" {
		t.Fatalf("unexpected download: %+v", rec)
	}
	assertSilent(t, alice)
}

func TestUploadTwiceDownloadsLatest(t *testing.T) {
	srv := startTestServer(t, Config{})
	alice := srv.dial(t, "alice")

	first := []byte("first version")
	second := bytes.Repeat([]byte{0x00, 0xff, '\n'}, 100)
	for _, data := range [][]byte{first, second} {
		if err := alice.SendFile("f.bin", data); err != nil {
			t.Fatalf("send file: %v", err)
		}
	}
	if err := alice.RequestDownload("f.bin"); err != nil {
		t.Fatalf("request download: %v", err)
	}

	rec := mustReceive(t, alice, proto.TypeFileDownload)
	got, err := proto.DecodeContent(rec.Content)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(got, second) {
		t.Fatalf("downloaded %q, want second upload", got)
	}
}

func TestDownloadUnknownFile(t *testing.T) {
	srv := startTestServer(t, Config{})
	alice := srv.dial(t, "alice")

	if err := alice.RequestDownload("nope.txt"); err != nil {
		t.Fatalf("request download: %v", err)
	}
	if rec := mustReceive(t, alice, proto.TypeError); rec.Code != core.ErrCodeNotFound {
		t.Fatalf("unexpected record: %+v", rec)
	}
	assertSilent(t, alice)
}

func TestLateJoinersGetReplayOnly(t *testing.T) {
	const n = 5
	srv := startTestServer(t, Config{})

	clients := make([]*client.Client, 0, n)
	for i := range n {
		c := srv.dial(t, fmt.Sprintf("user%d", i))
		clients = append(clients, c)
		if err := c.SendChat(fmt.Sprintf("m%d", i)); err != nil {
			t.Fatalf("send: %v", err)
		}
		// Settle history so the next joiner's replay boundary is fixed.
		waitForHistory(t, srv.hub, i+1)
	}

	for i, c := range clients {
		// Client i sees m0..m(i-1) by replay and m(i+1)..m(n-1) live, each once
		// and in order. Its own message is never echoed.
		for j := range n {
			if j == i {
				continue
			}
			rec := mustReceive(t, c, proto.TypeMsg)
			if want := fmt.Sprintf("m%d", j); rec.Content != want {
				t.Fatalf("client %d: got %q, want %q", i, rec.Content, want)
			}
		}
		assertSilent(t, c)
	}
}

func waitForHistory(t *testing.T, hub *core.Hub, n int) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		stats, err := hub.Stats(context.Background())
		if err != nil {
			t.Fatalf("stats: %v", err)
		}
		if stats.History == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("history did not reach %d", n)
}

func TestDisconnectedClientIsDeregistered(t *testing.T) {
	srv := startTestServer(t, Config{})
	alice := srv.dial(t, "alice")
	bob := srv.dial(t, "bob")
	carol := srv.dial(t, "carol")

	_ = bob.Close()
	srv.waitForClients(t, 2)

	if err := alice.SendChat("still there?"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if rec := mustReceive(t, carol, proto.TypeMsg); rec.Content != "still there?" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestPartialFramesAreReassembled(t *testing.T) {
	srv := startTestServer(t, Config{})
	bob := srv.dial(t, "bob")

	nc, err := net.Dial("tcp", srv.addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer nc.Close()

	stream := `{"type":"auth","username":"raw"}` + "\n" + `{"type":"msg","content":"pieced together"}` + "\n"
	for i := 0; i < len(stream); i += 7 {
		end := min(i+7, len(stream))
		if _, err := nc.Write([]byte(stream[i:end])); err != nil {
			t.Fatalf("write: %v", err)
		}
		time.Sleep(time.Millisecond)
	}

	rec := mustReceive(t, bob, proto.TypeMsg)
	if rec.Username != "raw" || rec.Content != "pieced together" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestOversizedFrameClosesConnection(t *testing.T) {
	srv := startTestServer(t, Config{MaxFrameBytes: 128})
	alice := srv.dial(t, "alice")

	if err := alice.SendChat(strings.Repeat("a", 256)); err != nil {
		t.Fatalf("send: %v", err)
	}
	srv.waitForClients(t, 0)
}

func TestSlowReaderReceivesEveryMessage(t *testing.T) {
	srv := startTestServer(t, Config{})
	alice := srv.dial(t, "alice")
	bob := srv.dial(t, "bob")

	// Enough data to fill the socket buffers while bob is not reading.
	const n = 500
	payload := strings.Repeat("x", 16<<10)
	for i := range n {
		if err := alice.SendChat(fmt.Sprintf("%d:%s", i, payload)); err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
	}
	waitForHistory(t, srv.hub, n)
	time.Sleep(200 * time.Millisecond)

	if got := srv.hub.Clients(); got != 2 {
		t.Fatalf("clients = %d while bob lags, want 2", got)
	}

	for i := range n {
		rec := mustReceive(t, bob, proto.TypeMsg)
		if want := fmt.Sprintf("%d:", i); !strings.HasPrefix(rec.Content, want) {
			t.Fatalf("record %d starts with %q", i, rec.Content[:min(len(rec.Content), 8)])
		}
	}
}

func TestJoinDuringHeavyTrafficSeesEachMessageOnce(t *testing.T) {
	srv := startTestServer(t, Config{})
	alice := srv.dial(t, "alice")

	const n = 2000
	sent := make(chan error, 1)
	go func() {
		for i := range n {
			if err := alice.SendChat(fmt.Sprintf("m%d", i)); err != nil {
				sent <- err
				return
			}
		}
		sent <- nil
	}()

	waitForHistoryAtLeast(t, srv.hub, n/4)
	carol := srv.dial(t, "carol")
	if err := <-sent; err != nil {
		t.Fatalf("send: %v", err)
	}

	for i := range n {
		rec := mustReceive(t, carol, proto.TypeMsg)
		if want := fmt.Sprintf("m%d", i); rec.Content != want {
			t.Fatalf("record %d = %q, want %q", i, rec.Content, want)
		}
	}
	assertSilent(t, carol)
}

func waitForHistoryAtLeast(t *testing.T, hub *core.Hub, n int) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		stats, err := hub.Stats(context.Background())
		if err != nil {
			t.Fatalf("stats: %v", err)
		}
		if stats.History >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("history did not reach %d", n)
}

func TestOversizedAuthFrameIsRejected(t *testing.T) {
	srv := startTestServer(t, Config{MaxFrameBytes: 64})

	nc, err := net.Dial("tcp", srv.addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	c := client.New(nc, 0)
	defer c.Close()

	if err := c.Auth(strings.Repeat("a", 200), ""); err != nil {
		t.Fatalf("send auth: %v", err)
	}
	if rec := mustReceive(t, c, proto.TypeError); rec.Code != core.ErrCodeAuthRejected {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if got := srv.hub.Clients(); got != 0 {
		t.Fatalf("clients = %d, want 0", got)
	}
}

func TestAuthRejectedClosesConnection(t *testing.T) {
	srv := startTestServer(t, Config{})

	nc, err := net.Dial("tcp", srv.addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	c := client.New(nc, 0)
	defer c.Close()

	if err := c.SendChat("no auth"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if rec := mustReceive(t, c, proto.TypeError); rec.Code != core.ErrCodeAuthRejected {
		t.Fatalf("unexpected record: %+v", rec)
	}

	_ = c.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := c.Receive(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF after rejection, got %v", err)
	}
	if got := srv.hub.Clients(); got != 0 {
		t.Fatalf("clients = %d, want 0", got)
	}
}

func TestShutdownClosesOpenConnections(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	hub := core.NewHub(memory.New(), nil)
	srv := NewServer(session.NewHandler(hub, session.Config{}, nil), Config{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	c, err := client.Dial(context.Background(), ln.Addr().String(), "alice", "")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}

	_ = c.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := c.Receive(); err == nil {
		t.Fatal("expected connection to be closed")
	}
	if hub.Clients() != 0 {
		t.Fatalf("clients = %d after shutdown", hub.Clients())
	}
}
