package monitor

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/riftduel/duelsync/internal/model"
	"github.com/riftduel/duelsync/internal/session"
	"github.com/riftduel/duelsync/internal/storage"
	"github.com/riftduel/duelsync/internal/store"
	"github.com/riftduel/duelsync/internal/worker"
)

// ReplicationStats is satisfied by service.Service
type ReplicationStats interface {
	Stats() []store.SlotStats
	RecorderDrops() uint64
}

// RecorderStats is satisfied by worker.Manager
type RecorderStats interface {
	Stats() worker.Stats
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Logger      *slog.Logger
	Replication ReplicationStats
	Recorder    RecorderStats               // optional
	Performance storage.PerformanceRecorder // optional
	Session     *session.Context
	File        string
	Interval    time.Duration
}

// Status is what the monitor writes to the status file each tick
type Status struct {
	Time          time.Time         `json:"time"`
	Session       string            `json:"session"`
	SessionID     string            `json:"sessionId"`
	Uptime        string            `json:"uptime"`
	Slots         []store.SlotStats `json:"slots"`
	RecorderDrops uint64            `json:"recorderDrops"`
	Recorder      *worker.Stats     `json:"recorder,omitempty"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = 5 * time.Second
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus collects the current status
func (s *Service) GetStatus() Status {
	st := Status{
		Time:          time.Now(),
		Slots:         s.deps.Replication.Stats(),
		RecorderDrops: s.deps.Replication.RecorderDrops(),
	}
	if s.deps.Session != nil {
		sess := s.deps.Session.Get()
		st.Session = sess.Name
		st.SessionID = sess.ID.String()
		st.Uptime = s.deps.Session.Uptime().Round(time.Second).String()
	}
	if s.deps.Recorder != nil {
		rs := s.deps.Recorder.Stats()
		st.Recorder = &rs
	}
	return st
}

// WriteStatus writes the current status as indented JSON
func (s *Service) WriteStatus(w io.Writer) (Status, error) {
	st := s.GetStatus()
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return st, enc.Encode(st)
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
			close(done)
		}()

		logger := s.deps.Logger
		logger.Debug("Starting status monitor goroutine", "file", s.deps.File, "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.tick(logger)
			}
		}
	}()

	return nil
}

func (s *Service) tick(logger *slog.Logger) {
	var st Status
	if s.deps.File != "" {
		f, err := os.Create(s.deps.File)
		if err != nil {
			logger.Error("Error creating status file", "error", err)
			st = s.GetStatus()
		} else {
			st, err = s.WriteStatus(f)
			if err != nil {
				logger.Error("Error writing status file", "error", err)
			}
			f.Close()
		}
	} else {
		st = s.GetStatus()
	}

	if s.deps.Performance == nil || st.Recorder == nil {
		return
	}
	if s.deps.Session != nil && !s.deps.Session.Active() {
		return
	}
	perf := model.RecorderPerformance{
		Time:                st.Time,
		QueueLength:         st.Recorder.Queued + st.Recorder.Pending,
		Dropped:             st.Recorder.Dropped + st.RecorderDrops,
		LastWriteDurationMs: float32(st.Recorder.LastWriteDuration.Microseconds()) / 1000,
	}
	if err := s.deps.Performance.RecordPerformance(perf); err != nil {
		logger.Error("Error writing performance snapshot", "error", err)
	}
}

// Stop stops the status monitor and waits for the goroutine to exit
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
