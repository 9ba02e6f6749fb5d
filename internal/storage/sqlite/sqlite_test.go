package sqlitestorage

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftduel/duelsync/internal/config"
	"github.com/riftduel/duelsync/internal/database"
	"github.com/riftduel/duelsync/internal/model"
	"github.com/riftduel/duelsync/pkg/core"
)

func TestBackend_DumpsOnEndSession(t *testing.T) {
	dir := t.TempDir()
	b, err := New(config.SQLiteConfig{OutputDir: dir}, slog.Default(), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, b.Init())
	assert.Empty(t, b.DumpPath())
	require.NoError(t, b.Dump())

	start := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, b.StartSession(&core.Session{ID: uuid.New(), Name: "dump test", StartedAt: start}))
	assert.Equal(t, filepath.Join(dir, "dump_test_20260701_120000.db"), b.DumpPath())

	require.NoError(t, b.RecordBatch([]core.Record{
		{Kind: core.RecordState, Participant: core.ParticipantOne, Time: start},
	}))
	require.NoError(t, b.EndSession())

	_, err = os.Stat(b.ExportedFilePath())
	require.NoError(t, err)

	snapshot, err := database.OpenSQLite(b.DumpPath(), zerolog.Nop())
	require.NoError(t, err)
	var n int64
	require.NoError(t, snapshot.Model(&model.StateSample{}).Count(&n).Error)
	assert.GreaterOrEqual(t, n, int64(1))

	require.NoError(t, b.Close())
}
