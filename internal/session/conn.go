package session

import (
	"context"

	"github.com/vovakirdan/wirerelay/internal/proto"
)

// Conn abstracts a bidirectional record stream so the same session logic
// serves raw TCP and WebSocket clients.
type Conn interface {
	// ReadRecord blocks for the next record. Malformed records yield a
	// *proto.SyntaxError and leave the stream usable; any other error is fatal.
	ReadRecord(ctx context.Context) (proto.Record, error)

	// WriteRecord sends one record.
	WriteRecord(ctx context.Context, rec proto.Record) error

	// Close closes the connection. Must be safe to call more than once and
	// concurrently with ReadRecord.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}
