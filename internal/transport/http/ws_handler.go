package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirerelay/internal/proto"
	"github.com/vovakirdan/wirerelay/internal/session"
)

// WSHandler upgrades HTTP connections and runs the relay session over them.
// Each text message carries exactly one record.
type WSHandler struct {
	handler      *session.Handler
	maxFrame     int
	writeTimeout time.Duration
	log          *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler. maxFrame <= 0 selects the
// protocol default; writeTimeout 0 disables the per-write deadline.
func NewWSHandler(handler *session.Handler, maxFrame int, writeTimeout time.Duration, logger *zerolog.Logger) stdhttp.Handler {
	if maxFrame <= 0 {
		maxFrame = proto.DefaultMaxFrameBytes
	}
	return &WSHandler{handler: handler, maxFrame: maxFrame, writeTimeout: writeTimeout, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	conn.SetReadLimit(int64(h.maxFrame))

	h.handler.Serve(r.Context(), &wsConn{conn: conn, remote: r.RemoteAddr, writeTimeout: h.writeTimeout})
}

// wsConn adapts a WebSocket connection to session.Conn.
type wsConn struct {
	conn         *websocket.Conn
	remote       string
	writeTimeout time.Duration
	closeOnce    sync.Once
}

func (c *wsConn) ReadRecord(ctx context.Context) (proto.Record, error) {
	typ, data, err := c.conn.Read(ctx)
	if err != nil {
		switch websocket.CloseStatus(err) {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			return proto.Record{}, io.EOF
		}
		return proto.Record{}, err
	}
	if typ != websocket.MessageText {
		return proto.Record{}, &proto.SyntaxError{Err: errors.New("binary message")}
	}
	return proto.Unmarshal(bytes.TrimSpace(data))
}

func (c *wsConn) WriteRecord(ctx context.Context, rec proto.Record) error {
	data, err := proto.Marshal(rec)
	if err != nil {
		return err
	}
	if c.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.writeTimeout)
		defer cancel()
	}
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.CloseNow()
	})
	return err
}

func (c *wsConn) RemoteAddr() string {
	return c.remote
}
