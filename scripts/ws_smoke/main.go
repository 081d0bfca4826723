package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirerelay/internal/proto"
)

type smokeOptions struct {
	addr    string
	text    string
	timeout time.Duration
}

func main() {
	if err := newSmokeCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ws_smoke: %v\n", err)
		os.Exit(1)
	}
}

func newSmokeCmd() *cobra.Command {
	var opts smokeOptions

	cmd := &cobra.Command{
		Use:           "ws_smoke",
		Short:         "Relay a chat message and a file between two WebSocket clients",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(*cobra.Command, []string) error {
			return run(opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "ws://localhost:8080/ws", "WebSocket address")
	cmd.Flags().StringVar(&opts.text, "text", "hello from smoke test", "message text to send")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 5*time.Second, "total timeout for the run")
	return cmd
}

func run(opts smokeOptions) error {
	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	listener, err := dial(ctx, opts.addr, "smoke-listener")
	if err != nil {
		return err
	}
	defer listener.Close(websocket.StatusNormalClosure, "bye")

	speaker, err := dial(ctx, opts.addr, "smoke-speaker")
	if err != nil {
		return err
	}
	defer speaker.Close(websocket.StatusNormalClosure, "bye")

	// The listener may first see replayed history; skip to our records.
	if err := wsjson.Write(ctx, speaker, proto.Chat("", opts.text)); err != nil {
		return fmt.Errorf("send msg: %w", err)
	}
	if _, err := awaitRecord(ctx, listener, func(rec proto.Record) bool {
		return rec.Type == proto.TypeMsg && rec.Username == "smoke-speaker" && rec.Content == opts.text
	}); err != nil {
		return err
	}
	fmt.Printf("msg relayed: %q\n", opts.text)

	payload := []byte("smoke " + time.Now().UTC().Format(time.RFC3339Nano))
	if err := wsjson.Write(ctx, speaker, proto.File("", "smoke.txt", payload)); err != nil {
		return fmt.Errorf("send file: %w", err)
	}
	if _, err := awaitRecord(ctx, listener, func(rec proto.Record) bool {
		return rec.Type == proto.TypeFile && rec.Filename == "smoke.txt" && rec.Content == proto.EncodeContent(payload)
	}); err != nil {
		return err
	}
	fmt.Println("file relayed: smoke.txt")

	if err := wsjson.Write(ctx, listener, proto.DownloadRequest("smoke.txt")); err != nil {
		return fmt.Errorf("send download_request: %w", err)
	}
	rec, err := awaitRecord(ctx, listener, func(rec proto.Record) bool {
		return rec.Type == proto.TypeFileDownload || rec.Type == proto.TypeError
	})
	if err != nil {
		return err
	}
	if rec.Type == proto.TypeError {
		return fmt.Errorf("download failed: %s: %s", rec.Code, rec.Message)
	}
	if rec.Content != proto.EncodeContent(payload) {
		return fmt.Errorf("download content mismatch")
	}
	fmt.Println("download ok: smoke.txt")
	return nil
}

func dial(ctx context.Context, addr, username string) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	if err := wsjson.Write(ctx, conn, proto.Auth(username, os.Getenv("WIRERELAY_KEY"))); err != nil {
		conn.CloseNow()
		return nil, fmt.Errorf("auth %s: %w", username, err)
	}
	return conn, nil
}

func awaitRecord(ctx context.Context, conn *websocket.Conn, match func(proto.Record) bool) (proto.Record, error) {
	for {
		var rec proto.Record
		if err := wsjson.Read(ctx, conn, &rec); err != nil {
			return proto.Record{}, fmt.Errorf("read: %w", err)
		}
		if rec.Type == proto.TypeError && rec.Code == "auth_rejected" {
			return rec, fmt.Errorf("auth rejected: %s", rec.Message)
		}
		if match(rec) {
			return rec, nil
		}
	}
}
