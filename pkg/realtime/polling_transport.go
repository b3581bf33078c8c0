package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	ws "ridebid/pkg/websocket"
)

// PollingTransport is the fallback channel: events are fetched with
// long-poll GETs and sent with POSTs. Slower than the websocket but
// it traverses proxies that strip Upgrade headers.
type PollingTransport struct {
	Client       *http.Client
	PollInterval time.Duration
	PollTimeout  time.Duration
}

func NewPollingTransport() *PollingTransport {
	return &PollingTransport{
		Client:       &http.Client{Timeout: 35 * time.Second},
		PollInterval: time.Second,
		PollTimeout:  30 * time.Second,
	}
}

func (t *PollingTransport) Name() string { return "polling" }

func (t *PollingTransport) Dial(ctx context.Context, url, credential string) (Conn, error) {
	c := &pollConn{
		transport:  t,
		url:        url,
		credential: credential,
		receive:    make(chan ws.Event, 32),
		done:       make(chan struct{}),
	}

	// One probing poll up front so a dead endpoint fails the dial
	// instead of the first receive.
	events, err := c.poll(ctx)
	if err != nil {
		return nil, &TransportError{Transport: t.Name(), Err: err}
	}

	go c.pollLoop(events)
	return c, nil
}

type pollConn struct {
	transport  *PollingTransport
	url        string
	credential string
	receive    chan ws.Event
	done       chan struct{}

	errMu sync.Mutex
	err   error

	closeOnce sync.Once
}

func (c *pollConn) pollLoop(initial []ws.Event) {
	defer close(c.receive)

	for _, event := range initial {
		c.receive <- event
	}

	for {
		select {
		case <-c.done:
			return
		default:
		}

		ctx, cancel := context.WithTimeout(context.Background(), c.transport.PollTimeout+5*time.Second)
		events, err := c.poll(ctx)
		cancel()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.setErr(err)
			}
			return
		}

		for _, event := range events {
			select {
			case c.receive <- event:
			case <-c.done:
				return
			}
		}

		if len(events) == 0 {
			select {
			case <-time.After(c.transport.PollInterval):
			case <-c.done:
				return
			}
		}
	}
}

func (c *pollConn) poll(ctx context.Context) ([]ws.Event, error) {
	pollURL := fmt.Sprintf("%s/poll?timeout=%d", c.url, int(c.transport.PollTimeout.Seconds()))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pollURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.credential)

	resp, err := c.transport.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll returned status %d", resp.StatusCode)
	}

	var events []ws.Event
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *pollConn) Send(ctx context.Context, event ws.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/emit", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.credential)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.transport.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("emit returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *pollConn) Receive() <-chan ws.Event {
	return c.receive
}

func (c *pollConn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func (c *pollConn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *pollConn) setErr(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = err
	}
}
