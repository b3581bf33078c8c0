// Package realtime is the client-side counterpart of the server hub:
// a connection manager that survives drops through exponential backoff
// and transport failover, an event router with typed handler sets, and
// a room registry that re-joins ride rooms after a reconnect.
package realtime

import (
	"context"

	ws "ridebid/pkg/websocket"
)

// Conn is one live channel to the server. Receive's channel is closed
// when the connection drops, after which Err reports the cause.
type Conn interface {
	Send(ctx context.Context, event ws.Event) error
	Receive() <-chan ws.Event
	Close() error
	Err() error
}

// Transport dials a Conn over one particular channel kind. Transports
// are tried in priority order; a dial failure moves to the next one
// without consuming a reconnect attempt.
type Transport interface {
	Name() string
	Dial(ctx context.Context, url, credential string) (Conn, error)
}
