// Package transport moves whole protocol messages between a host and a
// viewer. Every implementation preserves message boundaries and ordering.
package transport

import "errors"

// ErrClosed is returned by operations on a closed connection.
var ErrClosed = errors.New("transport: connection closed")

// Conn is a bidirectional, ordered, message-oriented connection.
// ReadMessage must be called from a single goroutine. WriteMessage and
// Close are safe for concurrent use.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}
