package realtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	ws "ridebid/pkg/websocket"

	"github.com/gorilla/websocket"
)

// WebSocketTransport is the primary transport: a persistent gorilla
// connection carrying JSON event envelopes both ways.
type WebSocketTransport struct {
	HandshakeTimeout time.Duration
}

func NewWebSocketTransport() *WebSocketTransport {
	return &WebSocketTransport{HandshakeTimeout: 10 * time.Second}
}

func (t *WebSocketTransport) Name() string { return "websocket" }

func (t *WebSocketTransport) Dial(ctx context.Context, url, credential string) (Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: t.HandshakeTimeout}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+credential)

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, &TransportError{Transport: t.Name(), Err: err}
	}

	c := &wsConn{
		conn:    conn,
		receive: make(chan ws.Event, 32),
	}
	go c.readLoop()

	return c, nil
}

type wsConn struct {
	conn    *websocket.Conn
	receive chan ws.Event

	writeMu sync.Mutex

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
}

func (c *wsConn) readLoop() {
	defer close(c.receive)
	for {
		var event ws.Event
		if err := c.conn.ReadJSON(&event); err != nil {
			c.setErr(err)
			return
		}
		if !event.Kind.Valid() {
			continue
		}
		c.receive <- event
	}
}

func (c *wsConn) Send(ctx context.Context, event ws.Event) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(10 * time.Second)
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteJSON(event)
}

func (c *wsConn) Receive() <-chan ws.Event {
	return c.receive
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

func (c *wsConn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *wsConn) setErr(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = err
	}
}
