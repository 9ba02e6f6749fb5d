// internal/storage/memory/memory.go
package memory

import (
	"errors"
	"sync"

	"github.com/riftduel/duelsync/internal/config"
	"github.com/riftduel/duelsync/pkg/core"
)

// ErrNoSession is returned when records arrive before StartSession.
var ErrNoSession = errors.New("no session started")

// Backend keeps a session's records in memory and exports them to JSON on EndSession
type Backend struct {
	cfg     config.MemoryConfig
	session *core.Session

	states map[core.ParticipantID][]core.Record
	events []core.Record

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:    cfg,
		states: make(map[core.ParticipantID][]core.Record),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session, discarding anything held from the previous one
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.session = s
	b.states = make(map[core.ParticipantID][]core.Record)
	b.events = nil
	return nil
}

// EndSession finalizes and exports the session data
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	return b.exportJSON()
}

// RecordBatch appends state samples per participant and events in arrival order
func (b *Backend) RecordBatch(records []core.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}

	for _, r := range records {
		switch r.Kind {
		case core.RecordState:
			b.states[r.Participant] = append(b.states[r.Participant], r)
		case core.RecordEvent:
			b.events = append(b.events, r)
		}
	}
	return nil
}

// States returns a copy of the state samples held for id
func (b *Backend) States(id core.ParticipantID) []core.Record {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.Record, len(b.states[id]))
	copy(out, b.states[id])
	return out
}

// Events returns a copy of the events held for the session
func (b *Backend) Events() []core.Record {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.Record, len(b.events))
	copy(out, b.events)
	return out
}

// ExportedFilePath returns the path of the last export, empty before EndSession
func (b *Backend) ExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
