package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/riftduel/duelsync/internal/model"
	"github.com/riftduel/duelsync/pkg/core"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
	// MaxReconnect and the backoff bounds control re-dialing a lost viewer. Zero uses defaults.
	MaxReconnect int
	Backoff      time.Duration
	MaxBackoff   time.Duration
	PingPeriod   time.Duration
}

// Backend streams session records over WebSocket to a live viewer.
// Start and end wait for an ack; records are fire-and-forget.
type Backend struct {
	conn *connection
	cfg  Config
}

// New creates a new WebSocket storage backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	p := policy{
		maxReconnect: cfg.MaxReconnect,
		backoff:      cfg.Backoff,
		maxBackoff:   cfg.MaxBackoff,
		pingPeriod:   cfg.PingPeriod,
	}
	return &Backend{
		conn: newConnection(cfg.URL, cfg.Secret, p, logger.With("component", "websocket")),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.open()
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// Dropped returns how many records were discarded because the send channel was full.
func (b *Backend) Dropped() uint64 {
	return b.conn.dropped.Load()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	env := Envelope{Type: msgType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
		}
		env.Payload = raw
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// StartSession announces the session and waits for the viewer's ack.
func (b *Backend) StartSession(s *core.Session) error {
	data, err := marshalEnvelope(TypeStartSession, StartSessionPayload{
		SessionID: s.ID.String(),
		Name:      s.Name,
		StartedAt: s.StartedAt,
	})
	if err != nil {
		return err
	}

	b.conn.setReplay(data)
	return b.conn.sendAndWait(data, TypeStartSession, ackTimeout)
}

// EndSession sends end_session and waits for the viewer's ack.
func (b *Backend) EndSession() error {
	data, err := marshalEnvelope(TypeEndSession, nil)
	if err != nil {
		return err
	}
	err = b.conn.sendAndWait(data, TypeEndSession, ackTimeout)

	// nothing to replay once the session is over, acked or not
	b.conn.setReplay(nil)
	return err
}

// RecordBatch sends one message per record. Marshal failures are joined and returned;
// the remaining records are still sent.
func (b *Backend) RecordBatch(records []core.Record) error {
	var errs []error
	for _, r := range records {
		msgType := TypeState
		if r.Kind == core.RecordEvent {
			msgType = TypeEvent
		}
		data, err := marshalEnvelope(msgType, RecordPayload{
			Participant: uint8(r.Participant),
			Event:       string(r.Event),
			State:       model.NewStateJSON(r.State),
			Time:        r.Time,
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		b.conn.send(data)
	}
	return errors.Join(errs...)
}
