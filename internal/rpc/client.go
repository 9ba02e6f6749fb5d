package rpc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/riftduel/duelsync/pkg/core"
	"github.com/riftduel/duelsync/pkg/wire"
)

const (
	defaultDialTimeout  = 2 * time.Second
	defaultMaxReconnect = 10
	defaultBackoff      = time.Second
	defaultMaxBackoff   = 30 * time.Second
)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// WithReconnect sets the reconnect policy. maxAttempts <= 0 disables reconnecting.
func WithReconnect(maxAttempts int, initial, max time.Duration) ClientOption {
	return func(c *Client) {
		c.maxReconnect = maxAttempts
		c.backoff = initial
		c.maxBackoff = max
	}
}

// WithDialTimeout bounds each dial attempt.
func WithDialTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.dialTimeout = d
	}
}

// Client issues calls over one TCP connection. Calls may be issued concurrently; responses are
// matched by message id, and a response whose caller already gave up is discarded.
type Client struct {
	addr         string
	logger       *slog.Logger
	dialTimeout  time.Duration
	maxReconnect int
	backoff      time.Duration
	maxBackoff   time.Duration

	mu     sync.Mutex // guards conn, bw, enc and closed
	conn   net.Conn
	bw     *bufio.Writer
	enc    *msgpack.Encoder
	closed bool

	nextID       atomic.Uint32
	reconnecting atomic.Bool

	pendMu  sync.Mutex
	pending map[uint32]chan wire.Frame

	late atomic.Uint64
	done chan struct{}
}

// Dial connects to addr.
func Dial(ctx context.Context, addr string, opts ...ClientOption) (*Client, error) {
	c := &Client{
		addr:         addr,
		logger:       slog.Default(),
		dialTimeout:  defaultDialTimeout,
		maxReconnect: defaultMaxReconnect,
		backoff:      defaultBackoff,
		maxBackoff:   defaultMaxBackoff,
		pending:      make(map[uint32]chan wire.Frame),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	conn, err := c.dialOnce(ctx)
	if err != nil {
		return nil, err
	}
	c.attach(conn)
	return c, nil
}

func (c *Client) dialOnce(ctx context.Context) (net.Conn, error) {
	d := net.Dialer{Timeout: c.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.addr, err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}
	return conn, nil
}

func (c *Client) attach(conn net.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.bw = bufio.NewWriter(conn)
	c.enc = msgpack.NewEncoder(c.bw)
	c.mu.Unlock()

	go c.readLoop(conn)
}

// Connected reports whether a connection is currently live.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// LateResponses counts responses that arrived after their caller timed out.
func (c *Client) LateResponses() uint64 {
	return c.late.Load()
}

// Call sends method(params...) and waits for the result or for ctx to end.
// A ctx deadline surfaces as core.ErrConnectionTimeout.
func (c *Client) Call(ctx context.Context, method string, params ...any) (msgpack.RawMessage, error) {
	id := c.nextID.Add(1)
	ch := make(chan wire.Frame, 1)

	c.pendMu.Lock()
	c.pending[id] = ch
	c.pendMu.Unlock()
	defer c.forget(id)

	if err := c.write(ctx, id, method, params); err != nil {
		return nil, err
	}

	select {
	case f := <-ch:
		if f.Error != nil {
			return nil, fmt.Errorf("%s: %w", method, f.Error)
		}
		return f.Result, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s msgid %d: %w", method, id, core.ErrConnectionTimeout)
		}
		return nil, ctx.Err()
	case <-c.done:
		return nil, fmt.Errorf("%s: %w", method, core.ErrNotConnected)
	}
}

func (c *Client) write(ctx context.Context, id uint32, method string, params []any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.conn == nil {
		if !c.closed {
			go c.reconnect()
		}
		return fmt.Errorf("%s: %w", method, core.ErrNotConnected)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
	} else {
		_ = c.conn.SetWriteDeadline(time.Time{})
	}

	if err := wire.WriteRequest(c.enc, id, method, params...); err != nil {
		return c.writeFailed(method, err)
	}
	if err := c.bw.Flush(); err != nil {
		return c.writeFailed(method, err)
	}
	return nil
}

// writeFailed drops the broken connection. Caller holds c.mu.
func (c *Client) writeFailed(method string, err error) error {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		err = fmt.Errorf("%v: %w", err, core.ErrConnectionTimeout)
	}
	c.logger.Debug("RPC write failed", "method", method, "error", err)
	_ = c.conn.Close()
	c.conn = nil
	go c.reconnect()
	return fmt.Errorf("%s: %w", method, err)
}

func (c *Client) forget(id uint32) {
	c.pendMu.Lock()
	delete(c.pending, id)
	c.pendMu.Unlock()
}

func (c *Client) readLoop(conn net.Conn) {
	dec := msgpack.NewDecoder(bufio.NewReader(conn))
	for {
		f, err := wire.ReadFrame(dec)
		if err != nil {
			select {
			case <-c.done:
				return
			default:
			}
			c.logger.Warn("RPC read error", "error", err)
			c.mu.Lock()
			if c.conn == conn {
				_ = conn.Close()
				c.conn = nil
			}
			c.mu.Unlock()
			go c.reconnect()
			return
		}
		if f.Type != wire.TypeResponse {
			continue
		}

		c.pendMu.Lock()
		ch, ok := c.pending[f.MsgID]
		delete(c.pending, f.MsgID)
		c.pendMu.Unlock()

		if !ok {
			c.late.Add(1)
			c.logger.Debug("Discarding late response", "msgid", f.MsgID)
			continue
		}
		ch <- f
	}
}

// reconnect re-dials with exponential backoff. Only one reconnect runs at a time.
func (c *Client) reconnect() {
	if c.maxReconnect <= 0 || !c.reconnecting.CompareAndSwap(false, true) {
		return
	}
	defer c.reconnecting.Store(false)

	backoff := c.backoff
	for attempt := 1; attempt <= c.maxReconnect; attempt++ {
		c.logger.Info("Reconnecting to replication server", "attempt", attempt, "backoff", backoff)
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		conn, err := c.dialOnce(context.Background())
		if err != nil {
			c.logger.Warn("Reconnect dial failed", "attempt", attempt, "error", err)
			backoff *= 2
			if backoff > c.maxBackoff {
				backoff = c.maxBackoff
			}
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			_ = conn.Close()
			return
		}
		c.mu.Unlock()

		c.attach(conn)
		c.logger.Info("Reconnected to replication server", "attempt", attempt)
		return
	}

	c.logger.Error("Reconnect failed after max attempts", "maxAttempts", c.maxReconnect)
}

// Close shuts the connection; pending and future calls fail with ErrNotConnected.
func (c *Client) Close() error {
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

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// Push sends the local state for id.
func (c *Client) Push(ctx context.Context, id core.ParticipantID, state core.PlayerState) error {
	_, err := c.Call(ctx, wire.MethodPush, uint8(id), wire.FromCore(state))
	return err
}

// Pull fetches the peer of id.
func (c *Client) Pull(ctx context.Context, id core.ParticipantID) (core.PlayerState, error) {
	raw, err := c.Call(ctx, wire.MethodPull, uint8(id))
	if err != nil {
		return core.PlayerState{}, err
	}
	return wire.DecodeState(raw)
}

// Trigger applies event to id's own record on the server.
func (c *Client) Trigger(ctx context.Context, id core.ParticipantID, event core.Event) error {
	_, err := c.Call(ctx, wire.MethodTrigger, uint8(id), string(event))
	return err
}
