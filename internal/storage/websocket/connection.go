package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"
)

// SecretHeader carries the viewer secret on the upgrade request.
const SecretHeader = "X-Duelsync-Secret"

const (
	sendQueueSize = 10_000
	ackTimeout    = 10 * time.Second
)

// policy holds the connection timings. Zero fields take the defaults below.
type policy struct {
	maxReconnect int
	backoff      time.Duration
	maxBackoff   time.Duration
	writeWait    time.Duration
	pingPeriod   time.Duration
}

func (p policy) withDefaults() policy {
	if p.maxReconnect <= 0 {
		p.maxReconnect = 10
	}
	if p.backoff <= 0 {
		p.backoff = time.Second
	}
	if p.maxBackoff <= 0 {
		p.maxBackoff = 30 * time.Second
	}
	if p.writeWait <= 0 {
		p.writeWait = 10 * time.Second
	}
	if p.pingPeriod <= 0 {
		p.pingPeriod = 20 * time.Second
	}
	return p
}

// connection owns one viewer socket. A single writer goroutine drains the
// queue; a reader routes acks to whoever waits on them.
type connection struct {
	url    string
	secret string
	policy policy
	logger *slog.Logger

	queue chan []byte
	done  chan struct{}

	mu      sync.Mutex // guards conn, closed, replay and waiters
	conn    *ws.Conn
	closed  bool
	replay  []byte // re-sent first after a reconnect
	waiters map[string]chan struct{}

	dropped atomic.Uint64
}

func newConnection(url, secret string, p policy, logger *slog.Logger) *connection {
	return &connection{
		url:     url,
		secret:  secret,
		policy:  p.withDefaults(),
		logger:  logger,
		queue:   make(chan []byte, sendQueueSize),
		done:    make(chan struct{}),
		waiters: make(map[string]chan struct{}),
	}
}

func (c *connection) open() error {
	conn, err := c.dial()
	if err != nil {
		return err
	}
	c.attach(conn)
	return nil
}

func (c *connection) dial() (*ws.Conn, error) {
	dialer := ws.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.policy.writeWait,
	}
	header := http.Header{}
	if c.secret != "" {
		header.Set(SecretHeader, c.secret)
	}
	conn, _, err := dialer.Dial(c.url, header)
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", c.url, err)
	}
	return conn, nil
}

// attach installs conn and starts its loops. Each conn gets its own pair; both
// stop when conn fails or the connection is closed.
func (c *connection) attach(conn *ws.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * c.policy.pingPeriod))
	})
	_ = conn.SetReadDeadline(time.Now().Add(2 * c.policy.pingPeriod))

	stop := make(chan struct{})
	go c.writeLoop(conn, stop)
	go c.readLoop(conn, stop)
}

func (c *connection) write(conn *ws.Conn, kind int, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(c.policy.writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(kind, data)
}

func (c *connection) writeLoop(conn *ws.Conn, stop <-chan struct{}) {
	ping := time.NewTicker(c.policy.pingPeriod)
	defer ping.Stop()

	for {
		var err error
		select {
		case <-c.done:
			return
		case <-stop:
			return
		case <-ping.C:
			err = conn.WriteControl(ws.PingMessage, nil, time.Now().Add(c.policy.writeWait))
		case data := <-c.queue:
			err = c.write(conn, ws.TextMessage, data)
		}
		if err != nil {
			c.logger.Warn("Viewer write failed", "error", err)
			c.lost(conn)
			return
		}
	}
}

func (c *connection) readLoop(conn *ws.Conn, stop chan struct{}) {
	defer close(stop)
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Warn("Viewer read failed", "error", err)
				c.lost(conn)
			}
			return
		}

		var ack AckMessage
		if err := json.Unmarshal(message, &ack); err != nil || ack.Type != "ack" {
			c.logger.Debug("Ignoring viewer message", "raw", string(message))
			continue
		}
		c.acked(ack.For)
	}
}

func (c *connection) acked(msgType string) {
	c.mu.Lock()
	ch, ok := c.waiters[msgType]
	delete(c.waiters, msgType)
	c.mu.Unlock()
	if ok {
		close(ch)
	}
}

// lost drops conn and starts reconnecting, once per failed conn.
func (c *connection) lost(conn *ws.Conn) {
	c.mu.Lock()
	if c.closed || c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.mu.Unlock()

	_ = conn.Close()
	go c.reconnect()
}

// reconnect re-dials with exponential backoff and replays the session start.
func (c *connection) reconnect() {
	backoff := c.policy.backoff
	for attempt := 1; attempt <= c.policy.maxReconnect; attempt++ {
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		conn, err := c.dial()
		if err != nil {
			c.logger.Warn("Viewer reconnect failed", "attempt", attempt, "error", err)
			backoff = min(backoff*2, c.policy.maxBackoff)
			continue
		}

		c.mu.Lock()
		replay := c.replay
		c.mu.Unlock()
		if replay != nil {
			if err := c.write(conn, ws.TextMessage, replay); err != nil {
				c.logger.Warn("Failed to replay session start", "error", err)
				_ = conn.Close()
				continue
			}
		}

		c.logger.Info("Viewer reconnected", "attempt", attempt)
		c.attach(conn)
		return
	}
	c.logger.Error("Giving up on viewer", "attempts", c.policy.maxReconnect)
}

// send queues data without blocking and reports whether it was accepted.
func (c *connection) send(data []byte) bool {
	select {
	case c.queue <- data:
		return true
	default:
		if n := c.dropped.Add(1); n == 1 || n%1000 == 0 {
			c.logger.Warn("Viewer send queue full, dropping records", "dropped", n)
		}
		return false
	}
}

func (c *connection) setReplay(data []byte) {
	c.mu.Lock()
	c.replay = data
	c.mu.Unlock()
}

// sendAndWait queues data and blocks until the viewer acks msgType.
func (c *connection) sendAndWait(data []byte, msgType string, timeout time.Duration) error {
	ch := make(chan struct{})
	c.mu.Lock()
	c.waiters[msgType] = ch
	c.mu.Unlock()

	if !c.send(data) {
		c.forget(msgType, ch)
		return fmt.Errorf("send queue full, %q not sent", msgType)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
		return nil
	case <-timer.C:
		c.forget(msgType, ch)
		return fmt.Errorf("timeout waiting for ack of %q", msgType)
	case <-c.done:
		return fmt.Errorf("connection closed while waiting for ack of %q", msgType)
	}
}

func (c *connection) forget(msgType string, ch chan struct{}) {
	c.mu.Lock()
	if c.waiters[msgType] == ch {
		delete(c.waiters, msgType)
	}
	c.mu.Unlock()
}

// close sends a close frame and stops every goroutine.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	// WriteControl may run alongside the write loop's last message
	_ = conn.WriteControl(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""), time.Now().Add(c.policy.writeWait))
	return conn.Close()
}
