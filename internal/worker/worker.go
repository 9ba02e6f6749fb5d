package worker

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/riftduel/duelsync/internal/channel"
	"github.com/riftduel/duelsync/internal/queue"
	"github.com/riftduel/duelsync/internal/storage"
	"github.com/riftduel/duelsync/pkg/core"
)

// Config controls batching.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
	// QueueLimit caps records waiting for the backend; 0 means 10 batches
	QueueLimit int
}

// Stats is a snapshot of the recorder pipeline.
type Stats struct {
	Pending           int           `json:"pending"` // still in the channel
	Queued            int           `json:"queued"`  // drained from the channel, not yet written
	Written           uint64        `json:"written"`
	Failed            uint64        `json:"failed"`
	Dropped           uint64        `json:"dropped"`
	LastWriteDuration time.Duration `json:"lastWriteDuration"`
}

// Manager drains recorded writes into batches and hands them to the storage backend.
type Manager struct {
	cfg     Config
	source  channel.Receiver[core.Record]
	backend storage.Backend
	queue   *queue.Queue[core.Record]
	logger  *slog.Logger

	lastWrite atomic.Int64
	written   atomic.Uint64
	failed    atomic.Uint64
}

// NewManager creates a new worker manager
func NewManager(cfg Config, source channel.Receiver[core.Record], backend storage.Backend, logger *slog.Logger) *Manager {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if cfg.QueueLimit <= 0 {
		cfg.QueueLimit = cfg.BatchSize * 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:     cfg,
		source:  source,
		backend: backend,
		queue:   queue.New[core.Record](cfg.QueueLimit),
		logger:  logger.With("component", "recorder"),
	}
}

// Run drains the source until ctx is cancelled or the source is closed.
// Whatever is still buffered at that point is flushed before returning.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.drainPending()
			m.Flush()
			return nil
		case rec, ok := <-m.source.Receive():
			if !ok {
				m.Flush()
				return nil
			}
			m.enqueue(rec)
			if m.queue.Len() >= m.cfg.BatchSize {
				m.Flush()
			}
		case <-ticker.C:
			m.Flush()
		}
	}
}

func (m *Manager) enqueue(rec core.Record) {
	if dropped := m.queue.Push(rec); dropped > 0 {
		m.logger.Warn("Recorder queue full, dropping record", "participant", rec.Participant, "kind", rec.Kind)
	}
}

// drainPending moves everything already in the channel into the queue without blocking.
func (m *Manager) drainPending() {
	for {
		select {
		case rec, ok := <-m.source.Receive():
			if !ok {
				return
			}
			m.enqueue(rec)
		default:
			return
		}
	}
}

// Flush writes the queued records as one batch. Failed batches are logged and discarded.
func (m *Manager) Flush() error {
	batch := m.queue.Drain()
	if len(batch) == 0 {
		return nil
	}

	start := time.Now()
	err := m.backend.RecordBatch(batch)
	m.lastWrite.Store(int64(time.Since(start)))

	if err != nil {
		m.failed.Add(uint64(len(batch)))
		m.logger.Error("Failed to write batch", "size", len(batch), "error", err)
		return err
	}
	m.written.Add(uint64(len(batch)))
	m.logger.Debug("Wrote batch", "size", len(batch), "duration", time.Duration(m.lastWrite.Load()))
	return nil
}

// GetLastWriteDuration returns the duration of the last backend write.
func (m *Manager) GetLastWriteDuration() time.Duration {
	return time.Duration(m.lastWrite.Load())
}

// Stats returns a snapshot of the pipeline counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Pending:           m.source.Len(),
		Queued:            m.queue.Len(),
		Written:           m.written.Load(),
		Failed:            m.failed.Load(),
		Dropped:           m.queue.Dropped(),
		LastWriteDuration: m.GetLastWriteDuration(),
	}
}
