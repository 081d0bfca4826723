package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventMessage delivers a chat or file message published by another client.
	EventMessage EventKind = iota
	// EventFileDownload delivers a requested file to the requester only.
	EventFileDownload
	// EventError notifies a single client about a rejected request.
	EventError
)

// Event is queued on a client's outbound channel.
type Event struct {
	Kind    EventKind
	Message Message
	Error   *CoreError
}

// ErrorEvent wraps a domain error for delivery to one client.
func ErrorEvent(err *CoreError) *Event {
	return &Event{Kind: EventError, Error: err}
}
