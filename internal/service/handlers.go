package service

import (
	"context"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/riftduel/duelsync/internal/dispatcher"
	"github.com/riftduel/duelsync/pkg/core"
	"github.com/riftduel/duelsync/pkg/wire"
)

// RegisterHandlers binds the wire methods to the service.
func (s *Service) RegisterHandlers(d *dispatcher.Dispatcher) {
	d.Register(wire.MethodPush, s.handlePush, dispatcher.Params(2, 2), dispatcher.Logged())
	d.Register(wire.MethodPull, s.handlePull, dispatcher.Params(1, 1), dispatcher.Logged())
	d.Register(wire.MethodTrigger, s.handleTrigger, dispatcher.Params(1, 2), dispatcher.Logged())
}

func (s *Service) handlePush(ctx context.Context, c dispatcher.Call) (any, error) {
	id, err := wire.DecodeParticipant(c.Params[0])
	if err != nil {
		return nil, err
	}
	state, err := wire.DecodeState(c.Params[1])
	if err != nil {
		return nil, err
	}
	return nil, s.Push(ctx, id, state)
}

func (s *Service) handlePull(ctx context.Context, c dispatcher.Call) (any, error) {
	id, err := wire.DecodeParticipant(c.Params[0])
	if err != nil {
		return nil, err
	}
	state, err := s.Pull(ctx, id)
	if err != nil {
		return nil, err
	}
	return wire.FromCore(state), nil
}

func (s *Service) handleTrigger(ctx context.Context, c dispatcher.Call) (any, error) {
	id, err := wire.DecodeParticipant(c.Params[0])
	if err != nil {
		return nil, err
	}
	event := core.EventFire
	if len(c.Params) > 1 {
		var name string
		if err := msgpack.Unmarshal(c.Params[1], &name); err != nil {
			return nil, fmt.Errorf("trigger event: %v: %w", err, wire.ErrBadRequest)
		}
		event = core.Event(name)
	}
	return nil, s.Trigger(ctx, id, event)
}
