package tcp

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/vovakirdan/wirerelay/internal/proto"
)

// Conn adapts a stream connection to session.Conn using newline framing.
type Conn struct {
	nc           net.Conn
	dec          *proto.Decoder
	enc          *proto.Encoder
	readTimeout  time.Duration
	writeTimeout time.Duration
	closeOnce    sync.Once
	closeErr     error
}

// NewConn wraps nc. Zero timeouts disable deadlines.
func NewConn(nc net.Conn, maxFrame int, readTimeout, writeTimeout time.Duration) *Conn {
	return &Conn{
		nc:           nc,
		dec:          proto.NewDecoder(nc, maxFrame),
		enc:          proto.NewEncoder(nc),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

// ReadRecord blocks until a full frame arrives. Cancellation is delivered by
// Close, which the session does when its context ends.
func (c *Conn) ReadRecord(_ context.Context) (proto.Record, error) {
	if c.readTimeout > 0 {
		if err := c.nc.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return proto.Record{}, err
		}
	}
	return c.dec.Decode()
}

// WriteRecord writes one frame, honouring the write timeout and the ctx
// deadline, whichever is earlier.
func (c *Conn) WriteRecord(ctx context.Context, rec proto.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var deadline time.Time
	if c.writeTimeout > 0 {
		deadline = time.Now().Add(c.writeTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if err := c.nc.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.enc.Encode(rec)
}

// Close closes the underlying connection once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.nc.Close()
	})
	return c.closeErr
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string {
	return c.nc.RemoteAddr().String()
}
