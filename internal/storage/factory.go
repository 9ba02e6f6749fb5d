// internal/storage/factory.go
package storage

import (
	"fmt"
	"log/slog"

	"github.com/rs/zerolog"

	"github.com/riftduel/duelsync/internal/config"
	"github.com/riftduel/duelsync/internal/database"
	gormstorage "github.com/riftduel/duelsync/internal/storage/gorm"
	"github.com/riftduel/duelsync/internal/storage/memory"
	sqlitestorage "github.com/riftduel/duelsync/internal/storage/sqlite"
	"github.com/riftduel/duelsync/internal/storage/websocket"
)

// Dependencies carries the loggers handed to backends.
// Database connections log through zerolog; everything else through slog.
type Dependencies struct {
	Logger   *slog.Logger
	DBLogger zerolog.Logger
}

// NewBackend creates a storage backend based on configuration
func NewBackend(cfg config.RecorderConfig, deps Dependencies) (Backend, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Type {
	case "memory":
		return memory.New(cfg.Memory), nil
	case "sqlite":
		return sqlitestorage.New(cfg.SQLite, logger, deps.DBLogger)
	case "postgres":
		db, err := database.OpenPostgres(cfg.Postgres, deps.DBLogger)
		if err != nil {
			return nil, fmt.Errorf("postgres backend: %w", err)
		}
		return gormstorage.New(gormstorage.Dependencies{DB: db, Logger: logger, DBLogger: deps.DBLogger}), nil
	case "websocket":
		return websocket.New(websocket.Config{URL: cfg.WebSocket.URL, Secret: cfg.WebSocket.Secret}, logger), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
