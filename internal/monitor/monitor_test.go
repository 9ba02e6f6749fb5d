package monitor

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftduel/duelsync/internal/model"
	"github.com/riftduel/duelsync/internal/session"
	"github.com/riftduel/duelsync/internal/store"
	"github.com/riftduel/duelsync/internal/worker"
	"github.com/riftduel/duelsync/pkg/core"
)

type fakeReplication struct{}

func (fakeReplication) Stats() []store.SlotStats {
	return []store.SlotStats{
		{Participant: core.ParticipantOne, Writes: 10},
		{Participant: core.ParticipantTwo, Writes: 7},
	}
}

func (fakeReplication) RecorderDrops() uint64 { return 2 }

type fakeRecorder struct{}

func (fakeRecorder) Stats() worker.Stats {
	return worker.Stats{Pending: 1, Queued: 3, Written: 40, Dropped: 1, LastWriteDuration: 1500 * time.Microsecond}
}

type perfSink struct {
	mu   sync.Mutex
	rows []model.RecorderPerformance
}

func (p *perfSink) RecordPerformance(r model.RecorderPerformance) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rows = append(p.rows, r)
	return nil
}

func (p *perfSink) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.rows)
}

func TestGetStatus(t *testing.T) {
	sess := session.NewContext()
	sess.Begin("status")

	s := NewService(Dependencies{Replication: fakeReplication{}, Recorder: fakeRecorder{}, Session: sess})
	st := s.GetStatus()

	assert.Equal(t, "status", st.Session)
	assert.Equal(t, sess.Get().ID.String(), st.SessionID)
	require.Len(t, st.Slots, 2)
	assert.Equal(t, uint64(10), st.Slots[0].Writes)
	assert.Equal(t, uint64(2), st.RecorderDrops)
	require.NotNil(t, st.Recorder)
	assert.Equal(t, uint64(40), st.Recorder.Written)
}

func TestWriteStatus(t *testing.T) {
	s := NewService(Dependencies{Replication: fakeReplication{}})

	var buf bytes.Buffer
	_, err := s.WriteStatus(&buf)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Contains(t, decoded, "slots")
	assert.NotContains(t, decoded, "recorder")
}

func TestStartStop(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "status.txt")
	sess := session.NewContext()
	sess.Begin("running")
	perf := &perfSink{}

	s := NewService(Dependencies{
		Replication: fakeReplication{},
		Recorder:    fakeRecorder{},
		Performance: perf,
		Session:     sess,
		File:        file,
		Interval:    5 * time.Millisecond,
	})

	require.NoError(t, s.Start())
	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())

	require.Eventually(t, func() bool { return perf.count() > 0 }, time.Second, 5*time.Millisecond)
	s.Stop()
	assert.False(t, s.IsRunning())
	s.Stop()

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"session": "running"`)

	perf.mu.Lock()
	row := perf.rows[0]
	perf.mu.Unlock()
	assert.Equal(t, 4, row.QueueLength)
	assert.Equal(t, uint64(3), row.Dropped)
	assert.InDelta(t, 1.5, row.LastWriteDurationMs, 0.001)
}

func TestNoPerformanceWhenIdle(t *testing.T) {
	perf := &perfSink{}
	s := NewService(Dependencies{
		Replication: fakeReplication{},
		Recorder:    fakeRecorder{},
		Performance: perf,
		Session:     session.NewContext(),
	})

	s.tick(s.deps.Logger)
	assert.Zero(t, perf.count())
}
