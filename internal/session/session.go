package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/vovakirdan/wirerelay/internal/auth"
	"github.com/vovakirdan/wirerelay/internal/core"
	"github.com/vovakirdan/wirerelay/internal/proto"
	"github.com/vovakirdan/wirerelay/internal/utils"
)

// MaxUsernameRunes bounds the username accepted on auth.
const MaxUsernameRunes = 32

// ErrAuthRejected is returned when the first record is not a valid auth.
var ErrAuthRejected = errors.New("auth rejected")

// Config tunes per-connection behaviour.
type Config struct {
	// RateLimitPerMinute caps inbound records per connection; 0 disables it.
	RateLimitPerMinute int
	// Gate checks the optional access key. Nil admits everyone.
	Gate *auth.Gate
}

// Handler runs the connection state machine against a shared hub.
type Handler struct {
	hub *core.Hub
	cfg Config
	log *zerolog.Logger
}

// NewHandler builds a handler for connections relayed through hub.
func NewHandler(hub *core.Hub, cfg Config, logger *zerolog.Logger) *Handler {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Handler{hub: hub, cfg: cfg, log: logger}
}

// Serve owns conn until it closes: authenticate, replay history, then relay.
// The client is always deregistered and conn always closed on return.
func (h *Handler) Serve(ctx context.Context, conn Conn) {
	defer conn.Close()

	logger := h.log.With().Str("remote", conn.RemoteAddr()).Logger()

	username, err := h.authenticate(ctx, conn)
	if err != nil {
		logger.Info().Err(err).Msg("connection closed before auth")
		return
	}

	client := core.NewClient(utils.NewID(), username, conn.RemoteAddr())
	logger = logger.With().Str("client_id", client.ID).Str("user", username).Logger()

	replay := h.hub.Join(client)
	defer h.hub.Leave(client)

	for _, msg := range replay {
		if err := conn.WriteRecord(ctx, recordFromMessage(msg)); err != nil {
			logger.Warn().Err(err).Msg("history replay failed")
			return
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writeDone := make(chan error, 1)
	go func() {
		writeDone <- h.writeLoop(ctx, conn, client)
	}()

	err = h.readLoop(ctx, conn, client, &logger)
	cancel()
	_ = conn.Close()
	writeErr := <-writeDone

	switch {
	case !isClosedErr(writeErr):
		logger.Warn().Err(writeErr).Msg("write failed, connection closed")
	case isClosedErr(err):
		logger.Info().Msg("client disconnected")
	default:
		logger.Warn().Err(err).Msg("read failed, connection closed")
	}
}

// isClosedErr reports errors that mean the peer went away normally or the
// connection was closed locally.
func isClosedErr(err error) bool {
	return err == nil ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, context.Canceled)
}

func (h *Handler) authenticate(ctx context.Context, conn Conn) (string, error) {
	rec, err := conn.ReadRecord(ctx)
	if err != nil {
		var synErr *proto.SyntaxError
		switch {
		case errors.As(err, &synErr):
			return "", h.reject(ctx, conn, "first record is not valid JSON")
		case errors.Is(err, proto.ErrFrameTooLarge):
			return "", h.reject(ctx, conn, "first record exceeds the maximum frame size")
		case errors.Is(err, io.ErrUnexpectedEOF):
			// The peer may only have half-closed; the reply is best effort.
			return "", h.reject(ctx, conn, "first record is truncated")
		}
		return "", err
	}

	if rec.Type != proto.TypeAuth {
		return "", h.reject(ctx, conn, "first record must be auth")
	}
	username := strings.TrimSpace(rec.Username)
	if username == "" {
		return "", h.reject(ctx, conn, "username is required")
	}
	if utf8.RuneCountInString(username) > MaxUsernameRunes {
		return "", h.reject(ctx, conn, fmt.Sprintf("username longer than %d characters", MaxUsernameRunes))
	}
	if username == core.ServerName {
		return "", h.reject(ctx, conn, "username is reserved")
	}
	if err := h.cfg.Gate.Check(rec.Key); err != nil {
		return "", h.reject(ctx, conn, err.Error())
	}
	return username, nil
}

func (h *Handler) reject(ctx context.Context, conn Conn, reason string) error {
	if err := conn.WriteRecord(ctx, proto.Error(core.ErrCodeAuthRejected, reason)); err != nil {
		return fmt.Errorf("%w: %s (reply failed: %v)", ErrAuthRejected, reason, err)
	}
	return fmt.Errorf("%w: %s", ErrAuthRejected, reason)
}

func (h *Handler) readLoop(ctx context.Context, conn Conn, client *core.Client, logger *zerolog.Logger) error {
	limiter := newRateLimiter(h.cfg.RateLimitPerMinute)

	for {
		rec, err := conn.ReadRecord(ctx)
		if err != nil {
			var synErr *proto.SyntaxError
			if errors.As(err, &synErr) {
				logger.Warn().Err(err).Msg("malformed record")
				h.replyError(client, core.NewError(core.ErrCodeBadRequest, "malformed record"))
				continue
			}
			return err
		}

		if !limiter.allow() {
			logger.Warn().Str("type", rec.Type).Msg("rate limited")
			h.replyError(client, core.NewError(core.ErrCodeRateLimited, "too many messages, slow down"))
			continue
		}

		if err := h.dispatch(ctx, client, rec); err != nil {
			var coreErr *core.CoreError
			if !errors.As(err, &coreErr) {
				logger.Error().Err(err).Str("type", rec.Type).Msg("failed to handle record")
				coreErr = core.NewError(core.ErrCodeInternal, "internal error")
			} else {
				logger.Warn().Str("type", rec.Type).Str("code", coreErr.Code).Msg(coreErr.Message)
			}
			h.replyError(client, coreErr)
		}
	}
}

func (h *Handler) dispatch(ctx context.Context, client *core.Client, rec proto.Record) error {
	switch rec.Type {
	case proto.TypeMsg:
		if rec.Content == "" {
			return core.NewError(core.ErrCodeBadRequest, "content is required")
		}
		_, err := h.hub.Publish(client, core.Message{Kind: core.KindChat, Content: rec.Content})
		return err

	case proto.TypeFile:
		if rec.Filename == "" {
			return core.NewError(core.ErrCodeBadRequest, "filename is required")
		}
		data, err := proto.DecodeContent(rec.Content)
		if err != nil {
			return core.NewError(core.ErrCodeBadRequest, "content is not valid base64")
		}
		_, err = h.hub.Upload(ctx, client, rec.Filename, data)
		return err

	case proto.TypeDownloadRequest:
		if rec.Filename == "" {
			return core.NewError(core.ErrCodeBadRequest, "filename is required")
		}
		msg, err := h.hub.Download(ctx, rec.Filename)
		if err != nil {
			return err
		}
		h.hub.Reply(client, &core.Event{Kind: core.EventFileDownload, Message: msg})
		return nil

	case proto.TypeAuth:
		return core.NewError(core.ErrCodeAlreadyAuthenticated, "already authenticated")

	case "":
		return core.NewError(core.ErrCodeBadRequest, "type is required")

	default:
		return core.NewError(core.ErrCodeUnknownType, fmt.Sprintf("unknown message type %q", rec.Type))
	}
}

func (h *Handler) replyError(client *core.Client, err *core.CoreError) {
	h.hub.Reply(client, core.ErrorEvent(err))
}

func (h *Handler) writeLoop(ctx context.Context, conn Conn, client *core.Client) error {
	for {
		for _, ev := range client.Drain() {
			if err := conn.WriteRecord(ctx, recordFromEvent(ev)); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				// A failed write proves the peer dead: drop it from fan-out and
				// unblock the reader.
				h.hub.Evict(client)
				_ = conn.Close()
				return err
			}
		}

		select {
		case <-client.Ready():
		case <-client.Done():
			_ = conn.Close()
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}
