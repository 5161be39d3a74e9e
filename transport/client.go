// Package transport owns exactly one outbound bidirectional binary
// connection at a time: a five-state connection state machine, exponential
// backoff reconnection, a liveness timer, and a latent-send queue that lets
// callers enqueue sends before the connection is up. Grounded on the
// teacher's Transport (atomic counters for connection-health bookkeeping, a
// callback-setter API, a dedicated liveness goroutine, reconnect-with-
// backoff), generalized from the teacher's QUIC/WebTransport session onto
// gorilla/websocket to match this protocol's RFC 6455 close codes.
package transport

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"voicecore/netstatus"
	"voicecore/voicecfg"
)

// Client is the Transport Client (C1).
type Client struct {
	cfg     voicecfg.Config
	monitor *netstatus.Monitor

	mu       sync.Mutex
	conn     *websocket.Conn
	url      string
	state    State
	attempts int

	torndown atomic.Bool

	readCancel context.CancelFunc
	liveCancel context.CancelFunc
	wg         sync.WaitGroup

	cbMu    sync.RWMutex
	onState func(State)
	onData  func([]byte)

	waitersMu sync.Mutex
	waiters   []*sendWaiter

	bytesSent     atomic.Uint64
	bytesReceived atomic.Uint64
	lastPing      atomic.Int64 // unix nano
	lastPong      atomic.Int64 // unix nano
	smoothedRTT   atomic.Int64 // nanoseconds
}

type sendWaiter struct {
	data     []byte
	resultCh chan error
	timer    *time.Timer
	settled  atomic.Bool
}

// New returns a disconnected Client bound to monitor for online/offline
// gating of reconnect attempts.
func New(cfg voicecfg.Config, monitor *netstatus.Monitor) *Client {
	return &Client{cfg: cfg, monitor: monitor, state: StateDisconnected}
}

// SetOnState installs the callback invoked (synchronously, from whichever
// goroutine caused the transition) whenever the connection state changes.
func (c *Client) SetOnState(fn func(State)) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.onState = fn
}

// SetOnData installs the callback invoked for every inbound binary frame.
// The byte slice is only valid for the duration of the callback; a handler
// that retains it must copy.
func (c *Client) SetOnData(fn func([]byte)) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	c.onData = fn
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// URL returns the remembered dial URL, or "" if none.
func (c *Client) URL() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.url
}

// Connect dials url and transitions disconnected -> connecting -> connected
// (or -> error on failure). Fails fast with ErrNetworkUnavailable if the
// network monitor reports offline.
func (c *Client) Connect(ctx context.Context, rawURL string) error {
	if !c.monitor.Online() {
		return ErrNetworkUnavailable
	}
	normalized, err := NormalizeURL(rawURL)
	if err != nil {
		return err
	}

	c.torndown.Store(false)
	c.mu.Lock()
	c.url = normalized
	c.attempts = 0
	c.mu.Unlock()
	c.setState(StateConnecting)

	return c.dial(ctx, normalized)
}

func (c *Client) dial(ctx context.Context, url string) error {
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectionTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, url, nil)
	if err != nil {
		c.setState(StateError)
		c.rejectWaiters(fmt.Errorf("%w: %v", ErrConnectionTimeout, err))
		return fmt.Errorf("transport: dial %s: %w", url, err)
	}

	readCtx, readCancel := context.WithCancel(context.Background())
	liveCtx, liveCancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.conn = conn
	c.attempts = 0
	c.readCancel = readCancel
	c.liveCancel = liveCancel
	c.mu.Unlock()

	c.setState(StateConnected)
	c.resolveWaiters()

	conn.SetPongHandler(func(string) error {
		c.lastPong.Store(time.Now().UnixNano())
		sent := c.lastPing.Load()
		if sent != 0 {
			c.smoothedRTT.Store(time.Now().UnixNano() - sent)
		}
		return nil
	})

	c.wg.Add(2)
	go c.readLoop(readCtx, conn)
	go c.livenessLoop(liveCtx, conn)

	return nil
}

// Disconnect closes the current connection. If clear is true, the
// remembered URL is forgotten and no further reconnection is scheduled
// until Connect is called again explicitly.
func (c *Client) Disconnect(clear bool) {
	if clear {
		c.torndown.Store(true)
	}

	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	if c.readCancel != nil {
		c.readCancel()
		c.readCancel = nil
	}
	if c.liveCancel != nil {
		c.liveCancel()
		c.liveCancel = nil
	}
	if clear {
		c.url = ""
	}
	c.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(CloseNormal, ""), deadline)
		_ = conn.Close()
	}

	c.setState(StateDisconnected)
	c.rejectWaiters(ErrNotConnected)
}

// Send writes data as a single binary frame. If the client is not currently
// connected, Send registers a connection waiter: it attempts to (re)connect
// if a URL is remembered and the network is online, then blocks until the
// connection resolves or the waiter's timeout elapses.
func (c *Client) Send(ctx context.Context, data []byte) error {
	c.mu.Lock()
	state := c.state
	conn := c.conn
	url := c.url
	c.mu.Unlock()

	if state == StateConnected && conn != nil {
		if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
			return fmt.Errorf("%w: %v", ErrSendFailed, err)
		}
		c.bytesSent.Add(uint64(len(data)))
		return nil
	}

	if c.torndown.Load() || url == "" {
		return ErrNotConnected
	}

	if state == StateDisconnected && c.monitor.Online() {
		go func() { _ = c.dial(context.Background(), url) }()
	}

	w := &sendWaiter{data: data, resultCh: make(chan error, 1)}
	w.timer = time.AfterFunc(c.cfg.ConnectionWaiterTimeout, func() {
		c.settleWaiter(w, ErrNotConnected)
	})
	c.waitersMu.Lock()
	c.waiters = append(c.waiters, w)
	c.waitersMu.Unlock()

	select {
	case err := <-w.resultCh:
		return err
	case <-ctx.Done():
		c.settleWaiter(w, ctx.Err())
		return ctx.Err()
	}
}

func (c *Client) settleWaiter(w *sendWaiter, err error) {
	if !w.settled.CompareAndSwap(false, true) {
		return
	}
	w.timer.Stop()
	if err == nil {
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn == nil {
			w.resultCh <- ErrNotConnected
			return
		}
		if werr := conn.WriteMessage(websocket.BinaryMessage, w.data); werr != nil {
			w.resultCh <- fmt.Errorf("%w: %v", ErrSendFailed, werr)
			return
		}
		c.bytesSent.Add(uint64(len(w.data)))
		w.resultCh <- nil
		return
	}
	w.resultCh <- err
}

// resolveWaiters settles every pending waiter, in insertion order, against
// the now-connected connection.
func (c *Client) resolveWaiters() {
	c.waitersMu.Lock()
	ws := c.waiters
	c.waiters = nil
	c.waitersMu.Unlock()

	for _, w := range ws {
		c.settleWaiter(w, nil)
	}
}

// rejectWaiters settles every pending waiter with err.
func (c *Client) rejectWaiters(err error) {
	c.waitersMu.Lock()
	ws := c.waiters
	c.waiters = nil
	c.waitersMu.Unlock()

	for _, w := range ws {
		c.settleWaiter(w, err)
	}
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()

	if !changed {
		return
	}
	c.cbMu.RLock()
	cb := c.onState
	c.cbMu.RUnlock()
	if cb != nil {
		cb(s)
	}
}

func (c *Client) emitData(data []byte) {
	c.cbMu.RLock()
	cb := c.onData
	c.cbMu.RUnlock()
	if cb != nil {
		cb(data)
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer c.wg.Done()
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			c.handleReadLoopClose()
			return
		}
		switch msgType {
		case websocket.BinaryMessage:
			c.bytesReceived.Add(uint64(len(data)))
			c.emitData(data)
		case websocket.TextMessage:
			log.Printf("[transport] dropping unexpected text frame (%d bytes)", len(data))
		}
	}
}

func (c *Client) livenessLoop(ctx context.Context, conn *websocket.Conn) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.LivenessInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.lastPing.Store(time.Now().UnixNano())
			deadline := time.Now().Add(c.cfg.LivenessInterval)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.handleLivenessFailure()
				return
			}
		}
	}
}

// handleReadLoopClose handles a genuine stream close observed by readLoop.
// The state machine has no disconnected hop for this path: it goes
// connected -> reconnecting directly, exactly like any other unexpected
// close that isn't the liveness timer's (see handleLivenessFailure, which
// is the one path spec'd to pass through disconnected).
func (c *Client) handleReadLoopClose() {
	c.mu.Lock()
	c.conn = nil
	attempts := c.attempts
	url := c.url
	c.mu.Unlock()

	log.Printf("[transport] connection lost (close code %d)", CloseAbnormal)

	if c.torndown.Load() || url == "" || !c.monitor.Online() {
		c.setState(StateDisconnected)
		c.rejectWaiters(ErrNotConnected)
		return
	}

	if attempts >= c.cfg.MaxReconnectAttempts {
		c.setState(StateError)
		c.rejectWaiters(ErrReconnectExhausted)
		return
	}

	c.mu.Lock()
	c.attempts++
	attempts = c.attempts
	c.mu.Unlock()

	delay := c.reconnectDelay(attempts)
	c.setState(StateReconnecting)
	c.scheduleReconnect(delay, attempts)
}

// handleLivenessFailure transitions connected -> disconnected with an
// abnormal close code, the liveness-timer-specific hop the state machine
// sanctions, then schedules a reconnect if conditions allow.
func (c *Client) handleLivenessFailure() {
	c.mu.Lock()
	c.conn = nil
	attempts := c.attempts
	url := c.url
	c.mu.Unlock()

	c.setState(StateDisconnected)
	log.Printf("[transport] connection lost (close code %d)", CloseAbnormal)

	if c.torndown.Load() || url == "" || !c.monitor.Online() {
		c.rejectWaiters(ErrNotConnected)
		return
	}

	if attempts >= c.cfg.MaxReconnectAttempts {
		c.setState(StateError)
		c.rejectWaiters(ErrReconnectExhausted)
		return
	}

	c.mu.Lock()
	c.attempts++
	attempts = c.attempts
	c.mu.Unlock()

	delay := c.reconnectDelay(attempts)
	c.setState(StateReconnecting)
	c.scheduleReconnect(delay, attempts)
}

// scheduleReconnect waits delay, then dials url again if conditions still
// allow it. Shared tail of both close-handling paths above.
func (c *Client) scheduleReconnect(delay time.Duration, attempts int) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		<-timer.C

		if c.torndown.Load() || !c.monitor.Online() {
			return
		}
		c.mu.Lock()
		u := c.url
		c.mu.Unlock()
		if u == "" {
			return
		}
		c.setState(StateConnecting)
		if err := c.dial(context.Background(), u); err != nil {
			log.Printf("[transport] reconnect attempt %d failed: %v", attempts, err)
		}
	}()
}

func (c *Client) reconnectDelay(attempt int) time.Duration {
	delays := c.cfg.ReconnectDelays
	if len(delays) == 0 {
		return 10 * time.Second
	}
	idx := attempt - 1
	if idx >= len(delays) {
		idx = len(delays) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return delays[idx]
}

// Attempts returns the current reconnect attempt counter, for tests and
// diagnostics.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}
