package realtime

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"ridebid/pkg/logger"
	ws "ridebid/pkg/websocket"
)

type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
)

// Observer is notified on every status change. The terminal
// ErrConnectionExhausted is delivered here exactly once.
type Observer func(status Status, err error)

type Config struct {
	// URL is the realtime endpoint handed to each transport.
	URL string

	// HealthURL is probed before dialing; empty skips the probe.
	HealthURL string

	// Credential resolves the bearer token for the handshake.
	Credential func(ctx context.Context) (string, error)

	// Transports in priority order. A dial failure falls through to
	// the next without consuming a reconnect attempt.
	Transports []Transport

	BaseTimeout       time.Duration // per-transport dial timeout base
	BackoffBase       time.Duration
	BackoffCap        time.Duration
	MaxAttempts       int
	HeartbeatInterval time.Duration
	ProbeInterval     time.Duration
	QueueLimit        int

	HTTPClient *http.Client
	Logger     *logger.Logger
}

func (c *Config) withDefaults() {
	if c.BaseTimeout <= 0 {
		c.BaseTimeout = 5 * time.Second
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = 60 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 15 * time.Second
	}
	if c.ProbeInterval <= 0 {
		c.ProbeInterval = 10 * time.Second
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 5 * time.Second}
	}
	if c.Logger == nil {
		c.Logger = logger.Discard()
	}
}

type connectAttempt struct {
	done chan struct{}
	err  error
}

type waiterKey struct {
	kind ws.EventKind
	room string
}

// Manager owns the client's single logical session: connect,
// reconnect with bounded backoff, transport failover, heartbeat
// liveness, and the pending-handler queue. One Manager per client
// process; all state is local to it.
type Manager struct {
	cfg    Config
	router *Router

	mu           sync.Mutex
	status       Status
	conn         Conn
	transport    string
	attempt      int
	exhausted    bool
	closed       bool
	reconnecting bool
	inFlight     *connectAttempt
	connEpoch    int
	lastLiveness time.Time
	queue        *handlerQueue
	waiters      map[waiterKey]chan ws.Event
	observers    []Observer
	onConnected  []func()
}

func NewManager(cfg Config) *Manager {
	cfg.withDefaults()
	return &Manager{
		cfg:     cfg,
		router:  NewRouter(),
		status:  StatusDisconnected,
		queue:   newHandlerQueue(cfg.QueueLimit),
		waiters: make(map[waiterKey]chan ws.Event),
	}
}

func (m *Manager) Router() *Router {
	return m.router
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// ActiveTransport names the channel currently carrying the session.
func (m *Manager) ActiveTransport() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transport
}

func (m *Manager) OnStatusChange(observer Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, observer)
}

// OnConnected registers a hook run after every successful connect,
// including reconnects. The room registry uses it to re-join.
func (m *Manager) OnConnected(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnected = append(m.onConnected, fn)
}

// Connect establishes the session. Single-flight: a call made while
// an attempt is in flight waits for that attempt's outcome instead of
// dialing a second time. Already connected is a no-op.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrNotConnected
	}
	if m.exhausted {
		m.mu.Unlock()
		return ErrConnectionExhausted
	}
	if m.status == StatusConnected {
		m.mu.Unlock()
		return nil
	}
	if m.inFlight != nil {
		attempt := m.inFlight
		m.mu.Unlock()
		select {
		case <-attempt.done:
			return attempt.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	attempt := &connectAttempt{done: make(chan struct{})}
	m.inFlight = attempt
	m.status = StatusConnecting
	m.mu.Unlock()
	m.notify(StatusConnecting, nil)

	err := m.dial(ctx)

	m.mu.Lock()
	m.inFlight = nil
	if err != nil && m.status == StatusConnecting {
		m.status = StatusDisconnected
	}
	m.mu.Unlock()

	attempt.err = err
	close(attempt.done)

	if err != nil {
		m.notify(StatusDisconnected, err)
	}
	return err
}

// dial runs one full connection sequence: probe, credential, then the
// transport priority list.
func (m *Manager) dial(ctx context.Context) error {
	if err := m.probeHealth(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	credential, err := m.cfg.Credential(ctx)
	if err != nil || credential == "" {
		return ErrUnauthenticated
	}

	m.mu.Lock()
	attempt := m.attempt
	m.mu.Unlock()

	// The dial window grows with the reconnect attempt, capped at 3x
	// base, so a struggling network gets more room without stalling
	// the first attempt.
	multiplier := attempt
	if multiplier < 1 {
		multiplier = 1
	}
	if multiplier > 3 {
		multiplier = 3
	}
	timeout := m.cfg.BaseTimeout * time.Duration(multiplier)

	var lastErr error = ErrUnreachable
	for _, transport := range m.cfg.Transports {
		dialCtx, cancel := context.WithTimeout(ctx, timeout)
		conn, dialErr := transport.Dial(dialCtx, m.cfg.URL, credential)
		cancel()
		if dialErr != nil {
			m.cfg.Logger.WithError(dialErr).WithField("transport", transport.Name()).Debug("Transport dial failed, trying next")
			lastErr = dialErr
			continue
		}

		m.adopt(conn, transport.Name())
		return nil
	}

	return lastErr
}

func (m *Manager) adopt(conn Conn, transportName string) {
	m.mu.Lock()
	m.conn = conn
	m.transport = transportName
	m.status = StatusConnected
	m.attempt = 0
	m.connEpoch++
	epoch := m.connEpoch
	m.lastLiveness = time.Now()
	pending := m.queue.drain()
	hooks := make([]func(), len(m.onConnected))
	copy(hooks, m.onConnected)
	m.mu.Unlock()

	// Handlers registered while disconnected attach now, each exactly
	// once, in registration order.
	for _, entry := range pending {
		if entry.catchAll {
			m.router.AttachCatchAll(entry.handler)
		} else {
			m.router.Attach(entry.kind, entry.handler)
		}
	}

	go m.readLoop(conn, epoch)
	go m.heartbeatLoop(conn, epoch)

	m.cfg.Logger.WithField("transport", transportName).Info("Realtime connected")
	m.notify(StatusConnected, nil)
	for _, hook := range hooks {
		hook()
	}
}

// RegisterHandler attaches a handler for an event kind. While
// disconnected the registration is queued and a connect attempt is
// kicked off; the queue is bounded and rejects new entries when full.
func (m *Manager) RegisterHandler(kind ws.EventKind, handler Handler) error {
	m.mu.Lock()
	if m.exhausted {
		m.mu.Unlock()
		return ErrConnectionExhausted
	}
	if m.status == StatusConnected {
		m.mu.Unlock()
		m.router.Attach(kind, handler)
		return nil
	}

	err := m.queue.add(pendingRegistration{kind: kind, handler: handler})
	m.mu.Unlock()
	if err != nil {
		return err
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.BaseTimeout*4)
		defer cancel()
		_ = m.Connect(ctx)
	}()
	return nil
}

// RegisterCatchAll is RegisterHandler for the catch-all set.
func (m *Manager) RegisterCatchAll(handler Handler) error {
	m.mu.Lock()
	if m.exhausted {
		m.mu.Unlock()
		return ErrConnectionExhausted
	}
	if m.status == StatusConnected {
		m.mu.Unlock()
		m.router.AttachCatchAll(handler)
		return nil
	}

	err := m.queue.add(pendingRegistration{catchAll: true, handler: handler})
	m.mu.Unlock()
	if err != nil {
		return err
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.BaseTimeout*4)
		defer cancel()
		_ = m.Connect(ctx)
	}()
	return nil
}

// Send emits one event over the live connection.
func (m *Manager) Send(ctx context.Context, event ws.Event) error {
	m.mu.Lock()
	conn := m.conn
	connected := m.status == StatusConnected
	m.mu.Unlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}
	return conn.Send(ctx, event)
}

// armWaiter registers interest in the next event of the given kind for
// the given room. The returned channel receives at most one event; the
// disarm func must be called when the caller is done waiting. Arming
// happens synchronously so a caller can arm before sending the request
// that provokes the event.
func (m *Manager) armWaiter(kind ws.EventKind, roomID string) (<-chan ws.Event, func()) {
	key := waiterKey{kind: kind, room: roomID}
	ch := make(chan ws.Event, 1)

	m.mu.Lock()
	m.waiters[key] = ch
	m.mu.Unlock()

	disarm := func() {
		m.mu.Lock()
		if m.waiters[key] == ch {
			delete(m.waiters, key)
		}
		m.mu.Unlock()
	}
	return ch, disarm
}

func (m *Manager) readLoop(conn Conn, epoch int) {
	for event := range conn.Receive() {
		m.mu.Lock()
		if epoch == m.connEpoch {
			m.lastLiveness = time.Now()
		}
		if ch, ok := m.waiters[waiterKey{kind: event.Kind, room: event.RoomID}]; ok {
			select {
			case ch <- event:
			default:
			}
		}
		m.mu.Unlock()

		m.router.Dispatch(event)
	}

	m.handleDrop(epoch, conn.Err())
}

// heartbeatLoop emits pings and watches for silent half-open
// connections: no inbound traffic for twice the heartbeat interval
// forces a reconnect even though the transport has not reported a
// drop.
func (m *Manager) heartbeatLoop(conn Conn, epoch int) {
	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for range ticker.C {
		m.mu.Lock()
		stale := epoch != m.connEpoch || m.status != StatusConnected
		silent := time.Since(m.lastLiveness) > 2*m.cfg.HeartbeatInterval
		m.mu.Unlock()

		if stale {
			return
		}
		if silent {
			m.cfg.Logger.Warn("Connection silent past staleness window, forcing reconnect")
			conn.Close()
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.BaseTimeout)
		err := conn.Send(ctx, ws.MustEvent(ws.EventPing, "", nil))
		cancel()
		if err != nil {
			conn.Close()
			return
		}
	}
}

// handleDrop runs when a connection's receive channel closes. An
// explicit Close is final; anything else starts the reconnect cycle.
func (m *Manager) handleDrop(epoch int, cause error) {
	m.mu.Lock()
	if m.closed || epoch != m.connEpoch {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	m.transport = ""
	m.status = StatusDisconnected
	alreadyReconnecting := m.reconnecting
	m.reconnecting = true
	m.mu.Unlock()

	m.cfg.Logger.WithError(cause).Warn("Realtime connection dropped")
	m.notify(StatusDisconnected, cause)

	if !alreadyReconnecting {
		go m.reconnectLoop()
	}
}

// reconnectLoop retries with exponential backoff up to MaxAttempts.
// An independent health probe can reset the attempt counter and force
// an immediate retry once the server is reachable again. Exhausting
// the budget is terminal: the pending queue is discarded and
// ErrConnectionExhausted is surfaced once.
func (m *Manager) reconnectLoop() {
	defer func() {
		m.mu.Lock()
		m.reconnecting = false
		m.mu.Unlock()
	}()

	probeDone := make(chan struct{})
	defer close(probeDone)
	retryNow := make(chan struct{}, 1)
	go m.healthProbeLoop(probeDone, retryNow)

	for {
		m.mu.Lock()
		if m.closed || m.status == StatusConnected {
			m.mu.Unlock()
			return
		}
		m.attempt++
		attempt := m.attempt
		if attempt > m.cfg.MaxAttempts {
			m.exhausted = true
			m.queue.discard()
			m.mu.Unlock()
			m.cfg.Logger.Error("Reconnect budget exhausted, giving up")
			m.notify(StatusDisconnected, ErrConnectionExhausted)
			return
		}
		m.mu.Unlock()

		select {
		case <-time.After(backoffDelay(m.cfg.BackoffBase, attempt, m.cfg.BackoffCap)):
		case <-retryNow:
			m.mu.Lock()
			m.attempt = 0
			m.mu.Unlock()
		}

		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.BaseTimeout*4)
		err := m.Connect(ctx)
		cancel()
		if err == nil {
			return
		}
		m.cfg.Logger.WithError(err).WithField("attempt", attempt).Debug("Reconnect attempt failed")
	}
}

func (m *Manager) healthProbeLoop(done <-chan struct{}, retryNow chan<- struct{}) {
	if m.cfg.HealthURL == "" {
		return
	}

	ticker := time.NewTicker(m.cfg.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			err := m.probeHealth(ctx)
			cancel()
			if err == nil {
				select {
				case retryNow <- struct{}{}:
				default:
				}
			}
		}
	}
}

func (m *Manager) probeHealth(ctx context.Context) error {
	if m.cfg.HealthURL == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.cfg.HealthURL, nil)
	if err != nil {
		return err
	}

	resp, err := m.cfg.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("health probe returned status %d", resp.StatusCode)
	}
	return nil
}

// Close ends the session for good. No reconnection is attempted after
// an explicit close.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	conn := m.conn
	m.conn = nil
	m.status = StatusDisconnected
	m.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

func (m *Manager) notify(status Status, err error) {
	m.mu.Lock()
	observers := make([]Observer, len(m.observers))
	copy(observers, m.observers)
	m.mu.Unlock()

	for _, observer := range observers {
		observer(status, err)
	}
}

// backoffDelay is min(base * 2^(attempt-1), cap), jitter-free.
func backoffDelay(base time.Duration, attempt int, cap time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= cap {
			return cap
		}
	}
	if delay > cap {
		return cap
	}
	return delay
}
