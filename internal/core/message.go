package core

import "time"

// ServerName attributes messages generated by the server itself.
const ServerName = "server"

// Kind distinguishes the message variants carried through the hub.
type Kind int

const (
	// KindChat is a text message from a client.
	KindChat Kind = iota
	// KindFile announces an uploaded file and carries its bytes.
	KindFile
	// KindFileDownload answers a download request. Never stored in history.
	KindFileDownload
)

func (k Kind) String() string {
	switch k {
	case KindChat:
		return "chat"
	case KindFile:
		return "file"
	case KindFileDownload:
		return "file_download"
	default:
		return "unknown"
	}
}

// Message is the domain model for relayed content.
// Once appended to History it must not be modified, including Data.
type Message struct {
	Seq       int64
	Kind      Kind
	From      string
	Content   string
	Filename  string
	Data      []byte
	CreatedAt time.Time
}
