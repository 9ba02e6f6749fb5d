package store

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftduel/duelsync/pkg/core"
)

func TestRead_ZeroBeforeWrite(t *testing.T) {
	s := New()
	for _, id := range core.Participants {
		got, err := s.Read(id)
		require.NoError(t, err)
		assert.Equal(t, core.PlayerState{}, got)
	}
}

func TestWrite_SlotIsolation(t *testing.T) {
	s := New()
	one := core.PlayerState{Firing: true, Hand: core.Pose{Pos: mgl32.Vec3{1, 2, 3}}}

	require.NoError(t, s.Write(core.ParticipantOne, one))

	got, err := s.Read(core.ParticipantOne)
	require.NoError(t, err)
	assert.Equal(t, one, got)

	other, err := s.Read(core.ParticipantTwo)
	require.NoError(t, err)
	assert.Equal(t, core.PlayerState{}, other)
}

func TestWrite_LastWriteWins(t *testing.T) {
	s := New()
	require.NoError(t, s.Write(core.ParticipantTwo, core.PlayerState{Firing: true}))
	require.NoError(t, s.Write(core.ParticipantTwo, core.PlayerState{Dead: true}))

	got, err := s.Read(core.ParticipantTwo)
	require.NoError(t, err)
	assert.Equal(t, core.PlayerState{Dead: true}, got)
}

func TestInvalidParticipant(t *testing.T) {
	s := New()
	for _, id := range []core.ParticipantID{0, 3, 255} {
		assert.ErrorIs(t, s.Write(id, core.PlayerState{Dead: true}), core.ErrInvalidParticipant)

		_, err := s.Read(id)
		assert.ErrorIs(t, err, core.ErrInvalidParticipant)

		_, err = s.Update(id, func(*core.PlayerState) error { return nil })
		assert.ErrorIs(t, err, core.ErrInvalidParticipant)
	}

	for _, st := range s.Stats() {
		assert.Zero(t, st.Writes)
	}
}

func TestUpdate(t *testing.T) {
	s := New()
	require.NoError(t, s.Write(core.ParticipantOne, core.PlayerState{PickedUpWeapon: true}))

	got, err := s.Update(core.ParticipantOne, core.EventFire.Apply)
	require.NoError(t, err)
	assert.True(t, got.Firing)
	assert.True(t, got.PickedUpWeapon)

	boom := errors.New("boom")
	_, err = s.Update(core.ParticipantOne, func(p *core.PlayerState) error {
		p.Dead = true
		return boom
	})
	assert.ErrorIs(t, err, boom)

	after, err := s.Read(core.ParticipantOne)
	require.NoError(t, err)
	assert.False(t, after.Dead)
}

func TestStats(t *testing.T) {
	s := New()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	require.NoError(t, s.Write(core.ParticipantOne, core.PlayerState{}))
	require.NoError(t, s.Write(core.ParticipantOne, core.PlayerState{}))

	stats := s.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, core.ParticipantOne, stats[0].Participant)
	assert.Equal(t, uint64(2), stats[0].Writes)
	assert.Equal(t, fixed, stats[0].LastWrite)
	assert.Equal(t, uint64(0), stats[1].Writes)

	s.Reset()
	assert.Zero(t, s.Stats()[0].Writes)
}

func TestConcurrent_NoTornReads(t *testing.T) {
	s := New()
	var wg sync.WaitGroup

	// every written state has Hand.Pos.X == Head.Pos.X; a torn read would break that
	for _, id := range core.Participants {
		wg.Add(1)
		go func(id core.ParticipantID) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				v := float32(i)
				_ = s.Write(id, core.PlayerState{
					Hand: core.Pose{Pos: mgl32.Vec3{v, 0, 0}},
					Head: core.Pose{Pos: mgl32.Vec3{v, 0, 0}},
				})
			}
		}(id)
	}

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				for _, id := range core.Participants {
					got, err := s.Read(id)
					if !assert.NoError(t, err) {
						return
					}
					assert.Equal(t, got.Hand.Pos.X(), got.Head.Pos.X())
				}
			}
		}()
	}

	wg.Wait()
}
