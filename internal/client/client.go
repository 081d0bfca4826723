// Package client is a line-protocol client for the relay, used by the
// command-line collaborator and by integration tests.
package client

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/vovakirdan/wirerelay/internal/proto"
)

// Client is one authenticated connection to a relay server.
// Send methods are safe for concurrent use; Receive must be called from a
// single goroutine.
type Client struct {
	nc        net.Conn
	dec       *proto.Decoder
	enc       *proto.Encoder
	closeOnce sync.Once
}

// Dial connects to addr and sends the auth record.
func Dial(ctx context.Context, addr, username, key string) (*Client, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}

	c := New(nc, 0)
	if err := c.Auth(username, key); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// New wraps an established connection without authenticating.
// maxFrame <= 0 selects the protocol default.
func New(nc net.Conn, maxFrame int) *Client {
	return &Client{
		nc:  nc,
		dec: proto.NewDecoder(nc, maxFrame),
		enc: proto.NewEncoder(nc),
	}
}

// Auth sends the auth record. It must be the first record on the connection.
func (c *Client) Auth(username, key string) error {
	return c.send(proto.Auth(username, key))
}

// SendChat sends a chat message.
func (c *Client) SendChat(content string) error {
	return c.send(proto.Chat("", content))
}

// SendFile uploads data under name.
func (c *Client) SendFile(name string, data []byte) error {
	return c.send(proto.File("", name, data))
}

// RequestDownload asks the server for a stored file.
func (c *Client) RequestDownload(name string) error {
	return c.send(proto.DownloadRequest(name))
}

// Send writes an arbitrary record.
func (c *Client) Send(rec proto.Record) error {
	return c.send(rec)
}

// Receive blocks for the next record from the server.
func (c *Client) Receive() (proto.Record, error) {
	return c.dec.Decode()
}

// SetDeadline sets the read and write deadline of the connection.
func (c *Client) SetDeadline(t time.Time) error {
	return c.nc.SetDeadline(t)
}

// Close closes the connection.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.nc.Close()
	})
	return err
}

func (c *Client) send(rec proto.Record) error {
	if err := c.enc.Encode(rec); err != nil {
		return fmt.Errorf("send %s: %w", rec.Type, err)
	}
	return nil
}
