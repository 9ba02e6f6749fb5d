// Package service implements the replication operations on top of the store.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/riftduel/duelsync/internal/channel"
	"github.com/riftduel/duelsync/internal/store"
	"github.com/riftduel/duelsync/pkg/core"
)

// Service exposes push, pull and trigger. It keeps no state between calls; the store owns it all.
type Service struct {
	store    *store.ReplicationStore
	recorder channel.Sender[core.Record]
	logger   *slog.Logger
	now      func() time.Time
	dropped  atomic.Uint64
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder offers every accepted write to rec without blocking.
func WithRecorder(rec channel.Sender[core.Record]) Option {
	return func(s *Service) {
		s.recorder = rec
	}
}

// WithLogger sets the logger used for dropped records and rejected calls.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// New creates a service over st.
func New(st *store.ReplicationStore, opts ...Option) *Service {
	s := &Service{
		store:  st,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Push replaces id's record with state.
func (s *Service) Push(ctx context.Context, id core.ParticipantID, state core.PlayerState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.store.Write(id, state); err != nil {
		return fmt.Errorf("push: %w", err)
	}
	s.record(core.Record{Kind: core.RecordState, Participant: id, State: state})
	return nil
}

// Pull returns the state of id's peer, never id's own record.
func (s *Service) Pull(ctx context.Context, id core.ParticipantID) (core.PlayerState, error) {
	if err := ctx.Err(); err != nil {
		return core.PlayerState{}, err
	}
	peer, err := core.PeerOf(id)
	if err != nil {
		return core.PlayerState{}, fmt.Errorf("pull: %w", err)
	}
	state, err := s.store.Read(peer)
	if err != nil {
		return core.PlayerState{}, fmt.Errorf("pull: %w", err)
	}
	return state, nil
}

// Trigger applies a single-flag event to id's own record. The peer observes it on its next pull.
func (s *Service) Trigger(ctx context.Context, id core.ParticipantID, event core.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	state, err := s.store.Update(id, event.Apply)
	if err != nil {
		return fmt.Errorf("trigger: %w", err)
	}
	s.record(core.Record{Kind: core.RecordEvent, Participant: id, Event: event, State: state})
	return nil
}

// Stats reports store write counters.
func (s *Service) Stats() []store.SlotStats {
	return s.store.Stats()
}

// RecorderDrops returns how many records the recorder channel refused.
func (s *Service) RecorderDrops() uint64 {
	return s.dropped.Load()
}

func (s *Service) record(r core.Record) {
	if s.recorder == nil {
		return
	}
	r.Time = s.now()
	if !s.recorder.TrySend(r) {
		s.dropped.Add(1)
		s.logger.Debug("recorder full, dropping record",
			"participant", r.Participant,
			"kind", r.Kind)
	}
}
