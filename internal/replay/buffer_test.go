package replay

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftduel/duelsync/internal/queue"
	"github.com/riftduel/duelsync/pkg/core"
)

func sample(frame uint64) core.PoseSample {
	return core.PoseSample{
		Frame: frame,
		Pose:  core.Pose{Pos: mgl32.Vec3{float32(frame), 0, 0}, Rot: mgl32.QuatIdent()},
	}
}

func TestNew_ZeroCapacity(t *testing.T) {
	_, err := New(0)
	assert.ErrorIs(t, err, queue.ErrZeroCapacity)
}

func TestBuffer_CapacityThreeScenario(t *testing.T) {
	b, err := New(3)
	require.NoError(t, err)

	// A, B, C, D -> A evicted
	for f := uint64(1); f <= 4; f++ {
		b.Push(sample(f))
	}
	assert.Equal(t, 3, b.Len())

	tests := []struct {
		offset int
		want   uint64
	}{
		{0, 4},
		{1, 3},
		{2, 2},
		{5, 2},
		{-1, 4},
	}
	for _, tt := range tests {
		got, err := b.Get(tt.offset)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got.Frame, "offset %d", tt.offset)
	}
}

func TestBuffer_EvictionAfterCapacityPlusK(t *testing.T) {
	const capacity = DefaultCapacity
	b, err := New(capacity)
	require.NoError(t, err)

	for _, k := range []int{1, 7, capacity} {
		t.Run("", func(t *testing.T) {
			b.Reset()
			total := capacity + k
			for f := 1; f <= total; f++ {
				b.Push(sample(uint64(f)))
			}

			assert.Equal(t, capacity, b.Len())
			oldest, err := b.Oldest()
			require.NoError(t, err)
			assert.Equal(t, uint64(k+1), oldest.Frame)

			newest, err := b.Newest()
			require.NoError(t, err)
			assert.Equal(t, uint64(total), newest.Frame)
		})
	}
}

func TestBuffer_Underrun(t *testing.T) {
	b, err := New(4)
	require.NoError(t, err)

	got, err := b.Get(0)
	assert.ErrorIs(t, err, core.ErrBufferUnderrun)
	assert.Equal(t, mgl32.QuatIdent(), got.Rot)

	_, err = b.Oldest()
	assert.ErrorIs(t, err, core.ErrBufferUnderrun)

	assert.Equal(t, core.IdentityPose(), b.Sample(10).Pose)
}

func TestBuffer_PartialHistory(t *testing.T) {
	b, err := New(30)
	require.NoError(t, err)
	b.Push(sample(1))
	b.Push(sample(2))

	// lag deeper than history degrades to the oldest sample
	assert.Equal(t, uint64(1), b.Sample(29).Frame)
	assert.Equal(t, uint64(2), b.Sample(0).Frame)
}
