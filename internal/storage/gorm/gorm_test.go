package gormstorage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftduel/duelsync/internal/database"
	"github.com/riftduel/duelsync/internal/model"
	"github.com/riftduel/duelsync/pkg/core"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)

	b := New(Dependencies{DB: db, DBLogger: zerolog.Nop()})
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestInit_NoDB(t *testing.T) {
	b := New(Dependencies{})
	assert.Error(t, b.Init())
	assert.NoError(t, b.Close())
}

func TestRecordBeforeStart(t *testing.T) {
	b := newTestBackend(t)

	assert.ErrorIs(t, b.RecordBatch([]core.Record{{Kind: core.RecordState, Participant: 1}}), ErrNoSession)
	assert.ErrorIs(t, b.EndSession(), ErrNoSession)
}

func TestSessionLifecycle(t *testing.T) {
	b := newTestBackend(t)
	ended := time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return ended }

	session := &core.Session{ID: uuid.New(), Name: "duel", StartedAt: ended.Add(-time.Minute)}
	require.NoError(t, b.StartSession(session))
	rowID := b.SessionRowID()
	require.NotZero(t, rowID)

	state := core.PlayerState{Firing: true, Head: core.Pose{Pos: mgl32.Vec3{1, 2, 3}, Rot: mgl32.QuatIdent()}}
	records := []core.Record{
		{Kind: core.RecordState, Participant: core.ParticipantOne, State: state, Time: ended},
		{Kind: core.RecordState, Participant: core.ParticipantTwo, State: core.PlayerState{}, Time: ended},
		{Kind: core.RecordEvent, Participant: core.ParticipantOne, Event: core.EventFire, State: state, Time: ended},
	}
	require.NoError(t, b.RecordBatch(records))
	require.NoError(t, b.RecordBatch(nil))

	var samples []model.StateSample
	require.NoError(t, b.DB().Order("id").Find(&samples).Error)
	require.Len(t, samples, 2)
	assert.Equal(t, rowID, samples[0].SessionID)
	assert.Equal(t, uint8(1), samples[0].Participant)
	assert.True(t, samples[0].Firing)
	assert.Equal(t, float32(3), samples[0].HeadZ)

	var events []model.EventRecord
	require.NoError(t, b.DB().Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, "fire", events[0].Event)

	require.NoError(t, b.RecordPerformance(model.RecorderPerformance{Time: ended, QueueLength: 4}))
	var perf model.RecorderPerformance
	require.NoError(t, b.DB().First(&perf).Error)
	assert.Equal(t, rowID, perf.SessionID)
	assert.Equal(t, 4, perf.QueueLength)

	require.NoError(t, b.EndSession())
	assert.Zero(t, b.SessionRowID())

	var row model.DuelSession
	require.NoError(t, b.DB().First(&row, rowID).Error)
	assert.Equal(t, session.ID.String(), row.SessionID)
	assert.False(t, row.EndedAt.IsZero())
}
