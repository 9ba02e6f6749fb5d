package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/riftduel/duelsync/pkg/wire"
)

// Call is one decoded request routed by method name.
type Call struct {
	Method   string
	MsgID    uint32
	Params   []msgpack.RawMessage
	Remote   string
	Received time.Time
}

// HandlerFunc processes a call and returns a result to encode in the response.
type HandlerFunc func(context.Context, Call) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	minParams int
	maxParams int
	logged    bool
}

// Params rejects calls whose parameter count is outside [min, max] before the handler runs.
func Params(min, max int) Option {
	return func(c *config) {
		c.minParams = min
		c.maxParams = max
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

// Dispatcher routes calls to registered handlers. Dispatch is safe for concurrent use.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	logger   Logger

	// OTEL metrics
	processed metric.Int64Counter
	failed    metric.Int64Counter
	duration  metric.Float64Histogram
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		logger:   logger,
	}

	m := meter()

	var err error

	d.processed, err = m.Int64Counter(
		"rpc.calls.processed",
		metric.WithDescription("Total calls processed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating processed counter: %w", err)
	}

	d.failed, err = m.Int64Counter(
		"rpc.calls.failed",
		metric.WithDescription("Total calls that returned an error"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}

	d.duration, err = m.Float64Histogram(
		"rpc.call.duration",
		metric.WithDescription("Handler latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given method with optional configuration.
func (d *Dispatcher) Register(method string, h HandlerFunc, opts ...Option) {
	cfg := &config{minParams: -1}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := d.withMetrics(method, h)

	if cfg.minParams >= 0 {
		handler = withParams(method, cfg.minParams, cfg.maxParams, handler)
	}

	if cfg.logged {
		handler = d.withLogging(method, handler)
	}

	d.mu.Lock()
	d.handlers[method] = handler
	d.mu.Unlock()
}

// Dispatch routes a call to its registered handler.
func (d *Dispatcher) Dispatch(ctx context.Context, c Call) (any, error) {
	d.mu.RLock()
	h, ok := d.handlers[c.Method]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%q: %w", c.Method, wire.ErrUnknownMethod)
	}
	return h(ctx, c)
}

// HasHandler returns true if a handler is registered for the method.
func (d *Dispatcher) HasHandler(method string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.handlers[method]
	return ok
}

func withParams(method string, min, max int, h HandlerFunc) HandlerFunc {
	return func(ctx context.Context, c Call) (any, error) {
		if n := len(c.Params); n < min || n > max {
			return nil, fmt.Errorf("%s takes %d..%d params, got %d: %w", method, min, max, n, wire.ErrBadRequest)
		}
		return h(ctx, c)
	}
}

func (d *Dispatcher) withMetrics(method string, h HandlerFunc) HandlerFunc {
	methodAttr := metric.WithAttributes(attribute.String("method", method))

	return func(ctx context.Context, c Call) (any, error) {
		start := time.Now()
		result, err := h(ctx, c)

		d.duration.Record(ctx, float64(time.Since(start).Microseconds())/1000, methodAttr)
		d.processed.Add(ctx, 1, methodAttr)
		if err != nil {
			d.failed.Add(ctx, 1, methodAttr)
		}
		return result, err
	}
}

func (d *Dispatcher) withLogging(method string, h HandlerFunc) HandlerFunc {
	return func(ctx context.Context, c Call) (any, error) {
		start := time.Now()
		d.logger.Debug("handling call", "method", method, "msgid", c.MsgID, "params", len(c.Params))

		result, err := h(ctx, c)

		if err != nil {
			d.logger.Error("call failed", "method", method, "msgid", c.MsgID, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("call complete", "method", method, "msgid", c.MsgID, "duration", time.Since(start))
		}

		return result, err
	}
}
