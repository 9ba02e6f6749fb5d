// Package gormstorage implements the storage.Backend interface on top of GORM.
// It serves both Postgres and the in-memory SQLite database.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/riftduel/duelsync/internal/database"
	"github.com/riftduel/duelsync/internal/model"
	"github.com/riftduel/duelsync/pkg/core"
)

// ErrNoSession is returned when records arrive before StartSession.
var ErrNoSession = errors.New("no session started")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB       *gorm.DB
	Logger   *slog.Logger
	DBLogger zerolog.Logger
}

// Backend implements storage.Backend with batched inserts.
type Backend struct {
	deps      Dependencies
	sessionID atomic.Uint64
	now       func() time.Time
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Backend{
		deps: deps,
		now:  time.Now,
	}
}

// DB exposes the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// SessionRowID returns the database id of the running session, 0 when none.
func (b *Backend) SessionRowID() uint {
	return uint(b.sessionID.Load())
}

// Init runs schema migration.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return fmt.Errorf("gorm backend: no database")
	}
	if err := database.Migrate(b.deps.DB, b.deps.DBLogger); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (b *Backend) Close() error {
	if b.deps.DB == nil {
		return nil
	}
	sqlDB, err := b.deps.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// StartSession inserts the session row and remembers its id for later records.
func (b *Backend) StartSession(s *core.Session) error {
	row := model.DuelSession{
		SessionID: s.ID.String(),
		Name:      s.Name,
		StartedAt: s.StartedAt,
	}
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert new session: %w", err)
	}
	b.sessionID.Store(uint64(row.ID))
	b.deps.Logger.Info("Session started", "sessionId", row.SessionID, "rowId", row.ID)
	return nil
}

// EndSession stamps the end time on the running session.
func (b *Backend) EndSession() error {
	id := b.SessionRowID()
	if id == 0 {
		return ErrNoSession
	}
	err := b.deps.DB.Model(&model.DuelSession{}).
		Where("id = ?", id).
		Update("ended_at", b.now()).Error
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	b.sessionID.Store(0)
	return nil
}

// RecordBatch converts records into rows and inserts them in one transaction.
func (b *Backend) RecordBatch(records []core.Record) error {
	id := b.SessionRowID()
	if id == 0 {
		return ErrNoSession
	}

	var states []model.StateSample
	var events []model.EventRecord
	for _, r := range records {
		switch r.Kind {
		case core.RecordState:
			row, err := model.NewStateSample(id, r)
			if err != nil {
				b.deps.Logger.Warn("Skipping unconvertible state", "participant", r.Participant, "error", err)
				continue
			}
			states = append(states, row)
		case core.RecordEvent:
			row, err := model.NewEventRecord(id, r)
			if err != nil {
				b.deps.Logger.Warn("Skipping unconvertible event", "participant", r.Participant, "error", err)
				continue
			}
			events = append(events, row)
		}
	}

	return b.deps.DB.Transaction(func(tx *gorm.DB) error {
		if len(states) > 0 {
			if err := tx.CreateInBatches(&states, 2000).Error; err != nil {
				return fmt.Errorf("error inserting state samples: %w", err)
			}
		}
		if len(events) > 0 {
			if err := tx.CreateInBatches(&events, 2000).Error; err != nil {
				return fmt.Errorf("error inserting events: %w", err)
			}
		}
		return nil
	})
}

// RecordPerformance stores a recorder pipeline snapshot for the running session.
func (b *Backend) RecordPerformance(p model.RecorderPerformance) error {
	p.SessionID = b.SessionRowID()
	if err := b.deps.DB.Create(&p).Error; err != nil {
		return fmt.Errorf("error inserting performance: %w", err)
	}
	return nil
}
