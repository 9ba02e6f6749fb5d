package core

import "errors"

var (
	// ErrInvalidParticipant is returned for any id outside {1, 2}. The store is never mutated.
	ErrInvalidParticipant = errors.New("invalid participant")

	// ErrConnectionTimeout means a call did not complete within its deadline.
	// Clients treat it as "peer state stale".
	ErrConnectionTimeout = errors.New("connection timeout")

	// ErrBufferUnderrun is returned when a replay buffer is read before any push.
	ErrBufferUnderrun = errors.New("buffer underrun")

	// ErrSerializationMismatch is returned when a wire payload is missing an expected field.
	ErrSerializationMismatch = errors.New("serialization mismatch")

	// ErrUnknownEvent is returned by trigger for an event name it does not know.
	ErrUnknownEvent = errors.New("unknown event")

	// ErrNotConnected is returned by clients with no live connection.
	ErrNotConnected = errors.New("not connected")
)
