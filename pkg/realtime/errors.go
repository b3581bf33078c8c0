package realtime

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreachable: the health probe failed before any transport was
	// attempted.
	ErrUnreachable = errors.New("server unreachable")

	// ErrUnauthenticated: no credential could be resolved for the
	// handshake.
	ErrUnauthenticated = errors.New("no auth credential available")

	// ErrConnectionExhausted: the reconnect budget ran out. Terminal;
	// no further automatic action is taken.
	ErrConnectionExhausted = errors.New("connection attempts exhausted")

	// ErrNotConnected: the operation needs a live connection.
	ErrNotConnected = errors.New("not connected")

	// ErrAckTimeout: the server did not acknowledge within the window.
	ErrAckTimeout = errors.New("acknowledgment timed out")

	// ErrQueueFull: the pending-handler queue rejected a new entry.
	ErrQueueFull = errors.New("pending handler queue full")
)

// TransportError wraps a failure of one specific transport so the
// failover loop can report which channel gave up.
type TransportError struct {
	Transport string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Transport, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
