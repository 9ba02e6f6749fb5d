package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftduel/duelsync/internal/channel"
	"github.com/riftduel/duelsync/pkg/core"
)

type fakeBackend struct {
	mu      sync.Mutex
	batches [][]core.Record
	err     error
}

func (f *fakeBackend) Init() error                      { return nil }
func (f *fakeBackend) Close() error                     { return nil }
func (f *fakeBackend) StartSession(*core.Session) error { return nil }
func (f *fakeBackend) EndSession() error                { return nil }

func (f *fakeBackend) RecordBatch(records []core.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.batches = append(f.batches, records)
	return nil
}

func (f *fakeBackend) all() []core.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.Record
	for _, b := range f.batches {
		out = append(out, b...)
	}
	return out
}

func (f *fakeBackend) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func rec(id core.ParticipantID) core.Record {
	return core.Record{Kind: core.RecordState, Participant: id}
}

func TestRun_FlushesOnBatchSize(t *testing.T) {
	ch := channel.New[core.Record](16)
	backend := &fakeBackend{}
	m := NewManager(Config{BatchSize: 3, FlushInterval: time.Hour}, ch, backend, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	for i := 0; i < 3; i++ {
		ch.Send(rec(core.ParticipantOne))
	}

	require.Eventually(t, func() bool { return backend.batchCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, backend.all(), 3)

	cancel()
	require.NoError(t, <-done)
}

func TestRun_FlushesOnInterval(t *testing.T) {
	ch := channel.New[core.Record](16)
	backend := &fakeBackend{}
	m := NewManager(Config{BatchSize: 100, FlushInterval: 10 * time.Millisecond}, ch, backend, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	ch.Send(rec(core.ParticipantTwo))
	require.Eventually(t, func() bool { return len(backend.all()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestRun_FinalFlushOnClose(t *testing.T) {
	ch := channel.New[core.Record](16)
	backend := &fakeBackend{}
	m := NewManager(Config{BatchSize: 100, FlushInterval: time.Hour}, ch, backend, nil)

	ch.Send(rec(core.ParticipantOne))
	ch.Send(rec(core.ParticipantTwo))
	ch.Close()

	require.NoError(t, m.Run(context.Background()))
	got := backend.all()
	require.Len(t, got, 2)
	assert.Equal(t, core.ParticipantOne, got[0].Participant)
	assert.Equal(t, core.ParticipantTwo, got[1].Participant)
	assert.Equal(t, uint64(2), m.Stats().Written)
}

func TestRun_FinalFlushOnCancel(t *testing.T) {
	ch := channel.New[core.Record](16)
	backend := &fakeBackend{}
	m := NewManager(Config{BatchSize: 100, FlushInterval: time.Hour}, ch, backend, nil)

	for i := 0; i < 5; i++ {
		ch.Send(rec(core.ParticipantOne))
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, m.Run(ctx))
	assert.Len(t, backend.all(), 5)
	assert.Zero(t, m.Stats().Pending)
}

func TestFlush_Failure(t *testing.T) {
	ch := channel.New[core.Record](4)
	backend := &fakeBackend{err: errors.New("disk full")}
	m := NewManager(Config{BatchSize: 10}, ch, backend, nil)

	m.enqueue(rec(core.ParticipantOne))
	m.enqueue(rec(core.ParticipantOne))

	assert.Error(t, m.Flush())
	stats := m.Stats()
	assert.Equal(t, uint64(2), stats.Failed)
	assert.Zero(t, stats.Queued)
	assert.NoError(t, m.Flush())
}

func TestQueueLimit(t *testing.T) {
	ch := channel.New[core.Record](4)
	m := NewManager(Config{BatchSize: 10, QueueLimit: 2}, ch, &fakeBackend{}, nil)

	for i := 0; i < 5; i++ {
		m.enqueue(rec(core.ParticipantOne))
	}
	stats := m.Stats()
	assert.Equal(t, 2, stats.Queued)
	assert.Equal(t, uint64(3), stats.Dropped)
}

func TestDefaults(t *testing.T) {
	m := NewManager(Config{}, channel.New[core.Record](1), &fakeBackend{}, nil)
	assert.Equal(t, 500, m.cfg.BatchSize)
	assert.Equal(t, time.Second, m.cfg.FlushInterval)
	assert.Equal(t, 5000, m.cfg.QueueLimit)
	assert.Zero(t, m.GetLastWriteDuration())
}
