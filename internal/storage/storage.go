// internal/storage/storage.go
package storage

import (
	"github.com/riftduel/duelsync/internal/model"
	"github.com/riftduel/duelsync/pkg/core"
)

// Backend is the interface all recorder storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(s *core.Session) error
	EndSession() error

	// RecordBatch persists accepted writes in arrival order
	RecordBatch(records []core.Record) error
}

// Exporter is an optional interface for backends that produce a file per session.
type Exporter interface {
	ExportedFilePath() string
}

// PerformanceRecorder is an optional interface for backends that keep recorder
// pipeline snapshots next to the session data.
type PerformanceRecorder interface {
	RecordPerformance(p model.RecorderPerformance) error
}
