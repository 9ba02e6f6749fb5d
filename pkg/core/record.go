package core

import (
	"time"

	"github.com/google/uuid"
)

// RecordKind distinguishes what a session record captured.
type RecordKind string

const (
	RecordState RecordKind = "state"
	RecordEvent RecordKind = "event"
)

// Session identifies one recorded run of the replication server.
type Session struct {
	ID        uuid.UUID
	Name      string
	StartedAt time.Time
	EndedAt   time.Time
}

// Record is one accepted write, as seen by the session recorder.
// State is the slot's full record after the write; Event is set only for RecordEvent.
type Record struct {
	Kind        RecordKind
	Participant ParticipantID
	Event       Event
	State       PlayerState
	Time        time.Time
}
