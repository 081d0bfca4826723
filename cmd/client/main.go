package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirerelay/internal/client"
	"github.com/vovakirdan/wirerelay/internal/log"
	"github.com/vovakirdan/wirerelay/internal/proto"
	"github.com/vovakirdan/wirerelay/internal/store"
)

// recvPrefix marks files written by this client so they never clobber the
// user's own files of the same name.
const recvPrefix = "recv_"

type options struct {
	addr     string
	user     string
	key      string
	recvDir  string
	logLevel string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "wirerelay-client: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:           "wirerelay-client",
		Short:         "Interactive client for a wirerelay server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.addr, "addr", "localhost:5000", "server address")
	flags.StringVar(&opts.user, "user", "", "username")
	flags.StringVar(&opts.key, "key", "", "access key, when the server requires one")
	flags.StringVar(&opts.recvDir, "recv-dir", ".", "directory for received files")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func run(parent context.Context, opts options, in io.Reader, out io.Writer) error {
	logger := log.New(opts.logLevel)

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := client.Dial(ctx, opts.addr, opts.user, opts.key)
	if err != nil {
		return err
	}
	defer c.Close()

	fmt.Fprintf(out, "Connected to %s as %s\n", opts.addr, opts.user)
	fmt.Fprintln(out, "Type messages and press Enter. /file <path> uploads, /download <name> fetches. Ctrl+C to exit.")

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		readLoop(c, out, opts.recvDir, logger)
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-readDone:
			fmt.Fprintln(out, "Disconnected.")
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := handleLine(c, line); err != nil {
				var cmdErr *commandError
				if errors.As(err, &cmdErr) {
					fmt.Fprintln(out, cmdErr.Error())
					continue
				}
				return err
			}
		}
	}
}

// sender is the subset of client.Client the REPL drives.
type sender interface {
	SendChat(content string) error
	SendFile(name string, data []byte) error
	RequestDownload(name string) error
}

// commandError is a user mistake at the prompt; the REPL keeps going.
type commandError struct {
	msg string
}

func (e *commandError) Error() string { return e.msg }

func handleLine(s sender, line string) error {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		return nil
	case trimmed == "/file" || strings.HasPrefix(trimmed, "/file "):
		path := strings.TrimSpace(strings.TrimPrefix(trimmed, "/file"))
		if path == "" {
			return &commandError{msg: "usage: /file <path>"}
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return &commandError{msg: fmt.Sprintf("cannot read %s: %v", path, err)}
		}
		return s.SendFile(filepath.Base(path), data)
	case trimmed == "/download" || strings.HasPrefix(trimmed, "/download "):
		name := strings.TrimSpace(strings.TrimPrefix(trimmed, "/download"))
		if name == "" {
			return &commandError{msg: "usage: /download <name>"}
		}
		return s.RequestDownload(name)
	default:
		return s.SendChat(line)
	}
}

func readLoop(c *client.Client, out io.Writer, recvDir string, logger *zerolog.Logger) {
	for {
		rec, err := c.Receive()
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				logger.Warn().Err(err).Msg("read failed")
			}
			return
		}
		if err := handleRecord(out, recvDir, rec); err != nil {
			logger.Warn().Err(err).Str("type", rec.Type).Str("filename", rec.Filename).Msg("failed to handle record")
		}
	}
}

func handleRecord(out io.Writer, recvDir string, rec proto.Record) error {
	switch rec.Type {
	case proto.TypeMsg:
		fmt.Fprintf(out, "%s: %s\n", rec.Username, rec.Content)
		return nil
	case proto.TypeFile, proto.TypeFileDownload:
		path, err := saveFile(recvDir, rec)
		if err != nil {
			return err
		}
		if rec.Type == proto.TypeFile {
			fmt.Fprintf(out, "%s sent %s (saved to %s)\n", rec.Username, rec.Filename, path)
		} else {
			fmt.Fprintf(out, "downloaded %s (saved to %s)\n", rec.Filename, path)
		}
		return nil
	case proto.TypeError:
		fmt.Fprintf(out, "error [%s]: %s\n", rec.Code, rec.Message)
		return nil
	default:
		fmt.Fprintf(out, "unexpected %q record\n", rec.Type)
		return nil
	}
}

func saveFile(dir string, rec proto.Record) (string, error) {
	name, err := store.SanitizeFilename(rec.Filename)
	if err != nil {
		return "", err
	}
	data, err := proto.DecodeContent(rec.Content)
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", name, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	path := filepath.Join(dir, recvPrefix+name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
