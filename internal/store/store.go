// Package store holds the authoritative latest state of both participants.
// Latency in these calls is critical: every client frame reads and writes here.
package store

import (
	"fmt"
	"sync"
	"time"

	"github.com/riftduel/duelsync/pkg/core"
)

// slot is one participant's record. Each slot has its own lock so that a writer on one side
// never blocks a reader of the other.
type slot struct {
	mu        sync.RWMutex
	state     core.PlayerState
	writes    uint64
	lastWrite time.Time
}

// ReplicationStore is the two-slot state table. Callers always receive copies.
type ReplicationStore struct {
	slots [len(core.Participants)]slot
	now   func() time.Time
}

// New returns a store whose slots hold the zero state.
func New() *ReplicationStore {
	return &ReplicationStore{now: time.Now}
}

func (s *ReplicationStore) slot(id core.ParticipantID) (*slot, error) {
	if err := id.Validate(); err != nil {
		return nil, err
	}
	return &s.slots[id.Slot()], nil
}

// Write replaces id's record. Last write wins.
func (s *ReplicationStore) Write(id core.ParticipantID, state core.PlayerState) error {
	sl, err := s.slot(id)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}
	now := s.now()
	sl.mu.Lock()
	sl.state = state
	sl.writes++
	sl.lastWrite = now
	sl.mu.Unlock()
	return nil
}

// Read returns a copy of id's record; the zero state if it was never written.
func (s *ReplicationStore) Read(id core.ParticipantID) (core.PlayerState, error) {
	sl, err := s.slot(id)
	if err != nil {
		return core.PlayerState{}, fmt.Errorf("read: %w", err)
	}
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	return sl.state, nil
}

// Update applies fn to id's record under the slot's write lock and returns the result.
// If fn fails the record is left unchanged.
func (s *ReplicationStore) Update(id core.ParticipantID, fn func(*core.PlayerState) error) (core.PlayerState, error) {
	sl, err := s.slot(id)
	if err != nil {
		return core.PlayerState{}, fmt.Errorf("update: %w", err)
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()

	next := sl.state
	if err := fn(&next); err != nil {
		return sl.state, err
	}
	sl.state = next
	sl.writes++
	sl.lastWrite = s.now()
	return next, nil
}

// SlotStats describes one slot's write activity.
type SlotStats struct {
	Participant core.ParticipantID `json:"participant"`
	Writes      uint64             `json:"writes"`
	LastWrite   time.Time          `json:"lastWrite"`
}

// Stats returns write counters for both slots in participant order.
func (s *ReplicationStore) Stats() []SlotStats {
	out := make([]SlotStats, 0, len(core.Participants))
	for _, id := range core.Participants {
		sl := &s.slots[id.Slot()]
		sl.mu.RLock()
		out = append(out, SlotStats{Participant: id, Writes: sl.writes, LastWrite: sl.lastWrite})
		sl.mu.RUnlock()
	}
	return out
}

// Reset clears both slots back to the zero state.
func (s *ReplicationStore) Reset() {
	for i := range s.slots {
		sl := &s.slots[i]
		sl.mu.Lock()
		sl.state = core.PlayerState{}
		sl.writes = 0
		sl.lastWrite = time.Time{}
		sl.mu.Unlock()
	}
}
