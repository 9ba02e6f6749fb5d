package websocket

import (
	"encoding/json"
	"time"

	"github.com/riftduel/duelsync/internal/model"
)

// Message types carried in Envelope.Type.
const (
	TypeStartSession = "start_session"
	TypeEndSession   = "end_session"
	TypeState        = "state"
	TypeEvent        = "event"
)

// Envelope wraps every message sent to the viewer.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// AckMessage is the viewer's acknowledgement of a start or end message.
type AckMessage struct {
	Type string `json:"type"`
	For  string `json:"for"`
}

// StartSessionPayload announces a new session.
type StartSessionPayload struct {
	SessionID string    `json:"sessionId"`
	Name      string    `json:"name"`
	StartedAt time.Time `json:"startedAt"`
}

// RecordPayload is one state sample or event.
type RecordPayload struct {
	Participant uint8           `json:"participant"`
	Event       string          `json:"event,omitempty"`
	State       model.StateJSON `json:"state"`
	Time        time.Time       `json:"time"`
}
