// Package replay keeps a bounded history of a participant's own head poses and reads
// back deliberately delayed samples for frame-lag emulation.
package replay

import (
	"fmt"

	"github.com/riftduel/duelsync/internal/queue"
	"github.com/riftduel/duelsync/pkg/core"
)

// DefaultCapacity is the history depth used by the client.
const DefaultCapacity = 30

// Buffer is a fixed-capacity FIFO of pose samples. It is owned by one goroutine.
type Buffer struct {
	ring *queue.Ring[core.PoseSample]
}

// New creates a buffer holding at most capacity samples.
func New(capacity int) (*Buffer, error) {
	r, err := queue.NewRing[core.PoseSample](capacity)
	if err != nil {
		return nil, fmt.Errorf("replay buffer: %w", err)
	}
	return &Buffer{ring: r}, nil
}

// Push records s, evicting the oldest sample once the buffer is full.
func (b *Buffer) Push(s core.PoseSample) {
	b.ring.Push(s)
}

// Get returns the sample offset pushes behind the newest one.
// The offset is clamped to [0, Len()-1]; asking for more history than exists yields the oldest sample.
// An empty buffer returns the identity sentinel and ErrBufferUnderrun.
func (b *Buffer) Get(offsetFromNewest int) (core.PoseSample, error) {
	n := b.ring.Len()
	if n == 0 {
		return underrun(), core.ErrBufferUnderrun
	}
	if offsetFromNewest < 0 {
		offsetFromNewest = 0
	}
	if offsetFromNewest > n-1 {
		offsetFromNewest = n - 1
	}
	s, _ := b.ring.Back(offsetFromNewest)
	return s, nil
}

// Sample is Get for the render path: an underrun yields the identity sentinel.
func (b *Buffer) Sample(offsetFromNewest int) core.PoseSample {
	s, _ := b.Get(offsetFromNewest)
	return s
}

// Newest returns the most recent sample.
func (b *Buffer) Newest() (core.PoseSample, error) {
	return b.Get(0)
}

// Oldest returns the oldest retained sample.
func (b *Buffer) Oldest() (core.PoseSample, error) {
	if b.ring.Len() == 0 {
		return underrun(), core.ErrBufferUnderrun
	}
	s, _ := b.ring.At(0)
	return s, nil
}

func (b *Buffer) Len() int { return b.ring.Len() }
func (b *Buffer) Cap() int { return b.ring.Cap() }

// Reset drops all history.
func (b *Buffer) Reset() {
	b.ring.Reset()
}

func underrun() core.PoseSample {
	return core.PoseSample{Pose: core.IdentityPose()}
}
