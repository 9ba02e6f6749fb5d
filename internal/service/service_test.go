package service

import (
	"context"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftduel/duelsync/internal/channel"
	"github.com/riftduel/duelsync/internal/store"
	"github.com/riftduel/duelsync/pkg/core"
)

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	return New(store.New(), opts...)
}

func TestPushPullScenario(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	a := core.PlayerState{Hand: core.Pose{Pos: mgl32.Vec3{1, 0, 0}, Rot: mgl32.QuatIdent()}}
	b := core.PlayerState{Firing: true, Hand: core.Pose{Pos: mgl32.Vec3{0, 0, 5}, Rot: mgl32.QuatIdent()}}

	require.NoError(t, s.Push(ctx, core.ParticipantOne, a))
	require.NoError(t, s.Push(ctx, core.ParticipantTwo, b))

	got, err := s.Pull(ctx, core.ParticipantOne)
	require.NoError(t, err)
	assert.Equal(t, b, got)

	got, err = s.Pull(ctx, core.ParticipantTwo)
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestPull_NeverOwnSlot(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	require.NoError(t, s.Push(ctx, core.ParticipantOne, core.PlayerState{Dead: true}))

	got, err := s.Pull(ctx, core.ParticipantOne)
	require.NoError(t, err)
	assert.Equal(t, core.PlayerState{}, got, "peer slot was never written")
}

func TestInvalidParticipant_StoreUntouched(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	assert.ErrorIs(t, s.Push(ctx, 3, core.PlayerState{Dead: true}), core.ErrInvalidParticipant)
	assert.ErrorIs(t, s.Trigger(ctx, 0, core.EventDeath), core.ErrInvalidParticipant)
	_, err := s.Pull(ctx, 7)
	assert.ErrorIs(t, err, core.ErrInvalidParticipant)

	for _, id := range core.Participants {
		peer, err := core.PeerOf(id)
		require.NoError(t, err)
		got, err := s.Pull(ctx, peer)
		require.NoError(t, err)
		assert.Equal(t, core.PlayerState{}, got)
	}
}

func TestTrigger(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		event core.Event
		check func(t *testing.T, s core.PlayerState)
	}{
		{core.EventFire, func(t *testing.T, s core.PlayerState) { assert.True(t, s.Firing) }},
		{core.EventFireEnd, func(t *testing.T, s core.PlayerState) {
			assert.False(t, s.Firing)
			assert.True(t, s.FireJustEnded)
		}},
		{core.EventPickup, func(t *testing.T, s core.PlayerState) { assert.True(t, s.PickedUpWeapon) }},
		{core.EventDeath, func(t *testing.T, s core.PlayerState) { assert.True(t, s.Dead) }},
	}

	for _, tt := range tests {
		t.Run(string(tt.event), func(t *testing.T) {
			s := newTestService(t)
			pose := core.Pose{Pos: mgl32.Vec3{4, 5, 6}, Rot: mgl32.QuatIdent()}
			require.NoError(t, s.Push(ctx, core.ParticipantOne, core.PlayerState{Head: pose}))

			require.NoError(t, s.Trigger(ctx, core.ParticipantOne, tt.event))

			// the peer sees the flag; the rest of the record is preserved
			got, err := s.Pull(ctx, core.ParticipantTwo)
			require.NoError(t, err)
			tt.check(t, got)
			assert.Equal(t, pose, got.Head)
		})
	}
}

func TestTrigger_UnknownEvent(t *testing.T) {
	s := newTestService(t)
	err := s.Trigger(context.Background(), core.ParticipantTwo, core.Event("dance"))
	assert.ErrorIs(t, err, core.ErrUnknownEvent)
	assert.Zero(t, s.Stats()[1].Writes)
}

func TestRecorder(t *testing.T) {
	ctx := context.Background()
	rec := channel.New[core.Record](1)
	s := newTestService(t, WithRecorder(rec))

	require.NoError(t, s.Push(ctx, core.ParticipantTwo, core.PlayerState{Firing: true}))
	// full: dropped without blocking or failing the call
	require.NoError(t, s.Trigger(ctx, core.ParticipantTwo, core.EventDeath))
	assert.Equal(t, uint64(1), s.RecorderDrops())

	r := <-rec.Receive()
	assert.Equal(t, core.RecordState, r.Kind)
	assert.Equal(t, core.ParticipantTwo, r.Participant)
	assert.True(t, r.State.Firing)
	assert.False(t, r.Time.IsZero())
	assert.Equal(t, 0, rec.Len())

	require.NoError(t, s.Trigger(ctx, core.ParticipantTwo, core.EventDeath))
	r = <-rec.Receive()
	assert.Equal(t, core.RecordEvent, r.Kind)
	assert.Equal(t, core.EventDeath, r.Event)
	assert.True(t, r.State.Dead)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := newTestService(t)

	assert.ErrorIs(t, s.Push(ctx, core.ParticipantOne, core.PlayerState{}), context.Canceled)
	assert.Zero(t, s.Stats()[0].Writes)
}
