package core

import "errors"

var (
	ErrBackpressure = errors.New("backpressure")
	ErrOutboxClosed = errors.New("outbox closed")
)

// Frame is one encoded outbound event.
type Frame []byte

// Outbox is the broker's handle for pushing frames to one connection.
// Owned by the adapter. TrySend must never block; Close must be safe to call
// more than once and from any goroutine.
type Outbox interface {
	TrySend(Frame) error
	Close()
}
