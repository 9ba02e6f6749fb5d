package core

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// ParticipantID names one side of a session. Only 1 and 2 are valid.
type ParticipantID uint8

const (
	ParticipantOne ParticipantID = 1
	ParticipantTwo ParticipantID = 2
)

// Participants lists every valid identifier in slot order.
var Participants = [...]ParticipantID{ParticipantOne, ParticipantTwo}

// Valid reports whether id is one of the two supported participants.
func (id ParticipantID) Valid() bool {
	return id == ParticipantOne || id == ParticipantTwo
}

// Validate returns ErrInvalidParticipant for ids outside {1, 2}.
func (id ParticipantID) Validate() error {
	if !id.Valid() {
		return fmt.Errorf("participant %d: %w", id, ErrInvalidParticipant)
	}
	return nil
}

// Slot returns the zero-based table index for a valid id.
func (id ParticipantID) Slot() int {
	return int(id) - 1
}

// PeerOf returns the other participant: 1 -> 2, 2 -> 1.
func PeerOf(id ParticipantID) (ParticipantID, error) {
	switch id {
	case ParticipantOne:
		return ParticipantTwo, nil
	case ParticipantTwo:
		return ParticipantOne, nil
	default:
		return 0, fmt.Errorf("peer of %d: %w", id, ErrInvalidParticipant)
	}
}

// PlayerState is the authoritative snapshot of one participant's pose and action flags.
// The zero value is the state served for a slot that has never been written.
type PlayerState struct {
	Firing         bool
	Dead           bool
	PickedUpWeapon bool
	FireJustEnded  bool

	Hand Pose
	Head Pose

	ViewDir  mgl32.Vec3
	ShootDir mgl32.Vec3
}

// Event is a discrete single-flag change applied by trigger.
type Event string

const (
	EventFire    Event = "fire"
	EventFireEnd Event = "fireEnd"
	EventPickup  Event = "pickup"
	EventDeath   Event = "death"
)

// Apply sets the flag named by e on s.
func (e Event) Apply(s *PlayerState) error {
	switch e {
	case EventFire:
		s.Firing = true
		s.FireJustEnded = false
	case EventFireEnd:
		s.Firing = false
		s.FireJustEnded = true
	case EventPickup:
		s.PickedUpWeapon = true
	case EventDeath:
		s.Dead = true
	default:
		return fmt.Errorf("event %q: %w", string(e), ErrUnknownEvent)
	}
	return nil
}
