package realtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	ws "ridebid/pkg/websocket"
)

// fakeConn is an in-memory Conn. Join requests are acknowledged
// automatically so room tests can run without a server.
type fakeConn struct {
	mu      sync.Mutex
	sent    []ws.Event
	receive chan ws.Event
	err     error
	closed  bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{receive: make(chan ws.Event, 32)}
}

func (c *fakeConn) Send(_ context.Context, event ws.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("send on closed conn")
	}
	c.sent = append(c.sent, event)

	if event.Kind == ws.EventJoinRoom {
		c.receive <- ws.MustEvent(ws.EventRoomJoined, event.RoomID, ws.RoomPayload{RoomID: event.RoomID})
	}
	return nil
}

func (c *fakeConn) Receive() <-chan ws.Event { return c.receive }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.receive)
	}
	return nil
}

// drop simulates an unexpected remote disconnect.
func (c *fakeConn) drop(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.err = err
		close(c.receive)
	}
}

func (c *fakeConn) deliver(event ws.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.receive <- event
	}
}

func (c *fakeConn) sentKinds() []ws.EventKind {
	c.mu.Lock()
	defer c.mu.Unlock()
	kinds := make([]ws.EventKind, len(c.sent))
	for i, event := range c.sent {
		kinds[i] = event.Kind
	}
	return kinds
}

func (c *fakeConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// fakeTransport scripts dial outcomes: the first failures dials fail,
// the rest hand out fresh fakeConns.
type fakeTransport struct {
	name     string
	failures int32
	dials    int32

	mu    sync.Mutex
	conns []*fakeConn
}

func (t *fakeTransport) Name() string { return t.name }

func (t *fakeTransport) Dial(_ context.Context, _, _ string) (Conn, error) {
	n := atomic.AddInt32(&t.dials, 1)
	if n <= atomic.LoadInt32(&t.failures) {
		return nil, &TransportError{Transport: t.name, Err: errors.New("dial refused")}
	}
	conn := newFakeConn()
	t.mu.Lock()
	t.conns = append(t.conns, conn)
	t.mu.Unlock()
	return conn, nil
}

func (t *fakeTransport) lastConn() *fakeConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.conns) == 0 {
		return nil
	}
	return t.conns[len(t.conns)-1]
}

func staticCredential(token string) func(context.Context) (string, error) {
	return func(context.Context) (string, error) { return token, nil }
}

func testConfig(transports ...Transport) Config {
	return Config{
		URL:               "ws://example.invalid/ws",
		Credential:        staticCredential("token"),
		Transports:        transports,
		BaseTimeout:       50 * time.Millisecond,
		BackoffBase:       time.Millisecond,
		BackoffCap:        5 * time.Millisecond,
		MaxAttempts:       3,
		HeartbeatInterval: time.Hour,
		ProbeInterval:     time.Hour,
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestConnectIsNoOpWhenConnected(t *testing.T) {
	transport := &fakeTransport{name: "fake"}
	m := NewManager(testConfig(transport))
	defer m.Close()

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	if got := atomic.LoadInt32(&transport.dials); got != 1 {
		t.Errorf("dials = %d, want 1", got)
	}
	if m.Status() != StatusConnected {
		t.Errorf("status = %s, want connected", m.Status())
	}
}

func TestConnectSingleFlight(t *testing.T) {
	release := make(chan struct{})
	var dials int32
	transport := transportFunc{name: "slow", dial: func(ctx context.Context) (Conn, error) {
		atomic.AddInt32(&dials, 1)
		<-release
		return newFakeConn(), nil
	}}

	m := NewManager(testConfig(transport))
	defer m.Close()

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.Connect(context.Background())
		}(i)
	}

	waitFor(t, "first dial to start", func() bool { return atomic.LoadInt32(&dials) == 1 })
	close(release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("caller %d: %v", i, err)
		}
	}
	if got := atomic.LoadInt32(&dials); got != 1 {
		t.Errorf("dials = %d, want 1 (single flight)", got)
	}
}

type transportFunc struct {
	name string
	dial func(ctx context.Context) (Conn, error)
}

func (t transportFunc) Name() string { return t.name }
func (t transportFunc) Dial(ctx context.Context, _, _ string) (Conn, error) {
	return t.dial(ctx)
}

func TestTransportFailover(t *testing.T) {
	first := &fakeTransport{name: "websocket", failures: 1000}
	second := &fakeTransport{name: "sse", failures: 1000}
	third := &fakeTransport{name: "polling"}

	m := NewManager(testConfig(first, second, third))
	defer m.Close()

	start := time.Now()
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*testConfig().BaseTimeout {
		t.Errorf("failover took %v, want under 3x base timeout", elapsed)
	}

	if m.ActiveTransport() != "polling" {
		t.Errorf("active transport = %q, want polling", m.ActiveTransport())
	}
	if atomic.LoadInt32(&first.dials) != 1 || atomic.LoadInt32(&second.dials) != 1 {
		t.Error("earlier transports should be tried exactly once per attempt")
	}
}

func TestConnectUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	transport := &fakeTransport{name: "fake"}
	cfg := testConfig(transport)
	cfg.HealthURL = server.URL
	m := NewManager(cfg)
	defer m.Close()

	err := m.Connect(context.Background())
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("err = %v, want ErrUnreachable", err)
	}
	if atomic.LoadInt32(&transport.dials) != 0 {
		t.Error("no transport should be dialed when the probe fails")
	}
}

func TestConnectUnauthenticated(t *testing.T) {
	transport := &fakeTransport{name: "fake"}
	cfg := testConfig(transport)
	cfg.Credential = staticCredential("")
	m := NewManager(cfg)
	defer m.Close()

	if err := m.Connect(context.Background()); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("err = %v, want ErrUnauthenticated", err)
	}
}

func TestReconnectExhaustionSurfacesTerminalErrorOnce(t *testing.T) {
	transport := &fakeTransport{name: "fake"}
	m := NewManager(testConfig(transport))
	defer m.Close()

	var exhausted int32
	m.OnStatusChange(func(_ Status, err error) {
		if errors.Is(err, ErrConnectionExhausted) {
			atomic.AddInt32(&exhausted, 1)
		}
	})

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	// Every later dial fails, so the drop burns through the budget.
	atomic.StoreInt32(&transport.failures, 1<<30)
	transport.lastConn().drop(errors.New("connection reset"))

	waitFor(t, "terminal error", func() bool { return atomic.LoadInt32(&exhausted) > 0 })
	time.Sleep(20 * time.Millisecond)

	if got := atomic.LoadInt32(&exhausted); got != 1 {
		t.Errorf("terminal error observed %d times, want exactly 1", got)
	}

	// Exhaustion is terminal: new work is refused.
	if err := m.Connect(context.Background()); !errors.Is(err, ErrConnectionExhausted) {
		t.Errorf("Connect after exhaustion = %v, want ErrConnectionExhausted", err)
	}
	err := m.RegisterHandler(ws.EventNewBid, Handler{Name: "late", Fn: func(ws.Event) {}})
	if !errors.Is(err, ErrConnectionExhausted) {
		t.Errorf("RegisterHandler after exhaustion = %v, want ErrConnectionExhausted", err)
	}
}

func TestReconnectAfterDrop(t *testing.T) {
	transport := &fakeTransport{name: "fake"}
	m := NewManager(testConfig(transport))
	defer m.Close()

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	transport.lastConn().drop(errors.New("connection reset"))

	waitFor(t, "reconnect", func() bool {
		return m.Status() == StatusConnected && atomic.LoadInt32(&transport.dials) >= 2
	})
}

func TestPendingHandlersFlushInOrderExactlyOnce(t *testing.T) {
	transport := &fakeTransport{name: "fake", failures: 1}
	m := NewManager(testConfig(transport))
	defer m.Close()

	var mu sync.Mutex
	var order []string
	record := func(name string) Handler {
		return Handler{Name: name, Fn: func(ws.Event) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}}
	}

	// Registered while disconnected: queued, and the same name is
	// never double-queued.
	if err := m.RegisterHandler(ws.EventNewBid, record("first")); err != nil {
		t.Fatalf("RegisterHandler: %v", err)
	}
	if err := m.RegisterHandler(ws.EventNewBid, record("first")); err != nil {
		t.Fatalf("duplicate RegisterHandler: %v", err)
	}
	if err := m.RegisterHandler(ws.EventNewBid, record("second")); err != nil {
		t.Fatalf("RegisterHandler: %v", err)
	}

	// Registration also kicks off a connect; either that attempt or
	// this one lands after the scripted dial failure.
	waitFor(t, "connect", func() bool {
		return m.Connect(context.Background()) == nil
	})
	waitFor(t, "queue flush", func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.queue.len() == 0
	})

	event := ws.MustEvent(ws.EventNewBid, "", ws.BidPayload{BidID: "b", Amount: 5})
	transport.lastConn().deliver(event)

	waitFor(t, "handlers to fire", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	})

	mu.Lock()
	defer mu.Unlock()
	if order[0] != "first" || order[1] != "second" {
		t.Errorf("order = %v, want [first second]", order)
	}
}

func TestRegisterHandlerWhileConnectedAttachesImmediately(t *testing.T) {
	transport := &fakeTransport{name: "fake"}
	m := NewManager(testConfig(transport))
	defer m.Close()

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}

	fired := make(chan struct{}, 1)
	if err := m.RegisterHandler(ws.EventRideStatusUpdate, Handler{Name: "status", Fn: func(ws.Event) {
		fired <- struct{}{}
	}}); err != nil {
		t.Fatalf("RegisterHandler: %v", err)
	}

	transport.lastConn().deliver(ws.MustEvent(ws.EventRideStatusUpdate, "", ws.RideStatusPayload{Status: "matched"}))
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("handler did not fire")
	}
}

func TestExplicitCloseDoesNotReconnect(t *testing.T) {
	transport := &fakeTransport{name: "fake"}
	m := NewManager(testConfig(transport))

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	if got := atomic.LoadInt32(&transport.dials); got != 1 {
		t.Errorf("dials = %d after explicit close, want 1", got)
	}
	if m.Status() != StatusDisconnected {
		t.Errorf("status = %s, want disconnected", m.Status())
	}
}

func TestBackoffDelay(t *testing.T) {
	base := time.Second
	cap := 60 * time.Second

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{6, 32 * time.Second},
		{7, 60 * time.Second},
		{50, 60 * time.Second},
	}
	for _, tc := range cases {
		if got := backoffDelay(base, tc.attempt, cap); got != tc.want {
			t.Errorf("backoffDelay(attempt=%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestSendWhileDisconnected(t *testing.T) {
	m := NewManager(testConfig(&fakeTransport{name: "fake", failures: 1 << 30}))
	defer m.Close()

	err := m.Send(context.Background(), ws.MustEvent(ws.EventPing, "", nil))
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}

func TestDialTimeoutGrowsWithAttemptCapped(t *testing.T) {
	// Indirect check through the multiplier logic: the dial context
	// deadline must stay within 3x base regardless of attempt count.
	transport := transportFunc{name: "deadline", dial: func(ctx context.Context) (Conn, error) {
		deadline, ok := ctx.Deadline()
		if !ok {
			return nil, errors.New("no deadline")
		}
		if remaining := time.Until(deadline); remaining > 3*testConfig().BaseTimeout+20*time.Millisecond {
			return nil, fmt.Errorf("deadline too generous: %v", remaining)
		}
		return newFakeConn(), nil
	}}

	m := NewManager(testConfig(transport))
	defer m.Close()

	m.mu.Lock()
	m.attempt = 10
	m.mu.Unlock()

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
}
