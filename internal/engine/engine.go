// ABOUTME: Client interface over one opaque engine handle and its factory type.
// ABOUTME: The session core only ever talks to the engine through these calls.

package engine

import (
	"errors"
	"time"
)

var (
	// ErrDestroyed is returned by calls on a client after Destroy.
	ErrDestroyed = errors.New("engine client destroyed")

	// ErrDisconnected is returned when a remote engine went away.
	ErrDisconnected = errors.New("engine disconnected")
)

// Client is one engine session handle.
type Client interface {
	// Send submits a request without waiting for its answer.
	Send(request []byte) error

	// Receive blocks for up to timeout for the next event. It returns
	// (nil, nil) when nothing arrived in time.
	Receive(timeout time.Duration) ([]byte, error)

	// Execute runs a request synchronously. Only stateless requests are
	// accepted by the engine on this path.
	Execute(request []byte) ([]byte, error)

	// Destroy releases the handle. Further calls return ErrDestroyed.
	Destroy() error
}

// Factory creates a fresh client. The session calls it on every start.
type Factory func() (Client, error)
