// Package sqlitestorage implements the storage.Backend interface using an in-memory
// SQLite database with periodic disk dumps via VACUUM INTO.
// It wraps the GORM backend; the SQLite-specific parts are the in-memory database
// and the dump schedule.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/riftduel/duelsync/internal/config"
	"github.com/riftduel/duelsync/internal/database"
	gormstorage "github.com/riftduel/duelsync/internal/storage/gorm"
	"github.com/riftduel/duelsync/pkg/core"
)

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	cfg      config.SQLiteConfig
	log      *slog.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu       sync.Mutex
	dumpPath string
}

// New creates a new SQLite storage backend backed by the shared in-memory database.
func New(cfg config.SQLiteConfig, logger *slog.Logger, dbLogger zerolog.Logger) (*Backend, error) {
	db, err := database.OpenSQLite("", dbLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}

	return &Backend{
		Backend:  gormstorage.New(gormstorage.Dependencies{DB: db, Logger: logger, DBLogger: dbLogger}),
		cfg:      cfg,
		log:      logger,
		stopChan: make(chan struct{}),
	}, nil
}

// Init migrates the schema, creates the output directory and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}
	if b.cfg.OutputDir != "" {
		if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	if b.cfg.DumpInterval > 0 {
		b.wg.Add(1)
		go b.dumpLoop()
	}
	return nil
}

// Close stops the dump goroutine, writes a last snapshot and closes the database.
func (b *Backend) Close() error {
	b.stopOnce.Do(func() { close(b.stopChan) })
	b.wg.Wait()
	if err := b.Dump(); err != nil {
		b.log.Error("Final dump failed", "error", err)
	}
	return b.Backend.Close()
}

// StartSession records the session and picks the snapshot file for it.
func (b *Backend) StartSession(s *core.Session) error {
	if err := b.Backend.StartSession(s); err != nil {
		return err
	}
	b.mu.Lock()
	b.dumpPath = database.DumpFileName(b.cfg.OutputDir, s.Name, s.StartedAt)
	b.mu.Unlock()
	return nil
}

// EndSession stamps the session end and writes its snapshot.
func (b *Backend) EndSession() error {
	if err := b.Backend.EndSession(); err != nil {
		return err
	}
	return b.Dump()
}

// DumpPath returns the snapshot file of the current or last session.
func (b *Backend) DumpPath() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dumpPath
}

// ExportedFilePath is the snapshot file, so the sqlite backend also satisfies storage.Exporter.
func (b *Backend) ExportedFilePath() string {
	return b.DumpPath()
}

// Dump writes a point-in-time snapshot to disk. It is a no-op before the first session.
func (b *Backend) Dump() error {
	path := b.DumpPath()
	if path == "" {
		return nil
	}
	return database.DumpMemoryDBToDisk(b.DB(), path)
}

func (b *Backend) dumpLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			start := time.Now()
			if err := b.Dump(); err != nil {
				b.log.Error("Error dumping to disk", "error", err)
			} else {
				b.log.Debug("Dumped to disk", "duration", time.Since(start))
			}
		}
	}
}
