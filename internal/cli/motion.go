package cli

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/riftduel/duelsync/internal/client"
	"github.com/riftduel/duelsync/internal/input"
	"github.com/riftduel/duelsync/pkg/core"
)

const (
	orbitRadius  = 1.5
	headHeight   = 1.7
	handReach    = 0.4
	burstPeriod  = 90
	burstLength  = 10
	orbitPerTick = 2 * math.Pi / 720
)

// orbit is a scripted participant standing in for tracked hardware. The head
// circles the arena centre while facing it; the two participants start half a
// turn apart so they always face each other.
type orbit struct {
	phase float64
}

func newOrbit(id core.ParticipantID) orbit {
	if id == core.ParticipantTwo {
		return orbit{phase: math.Pi}
	}
	return orbit{}
}

// At returns the input for frame n.
func (o orbit) At(n uint64) client.FrameInput {
	theta := o.phase + float64(n)*orbitPerTick
	pos := mgl32.Vec3{
		float32(orbitRadius * math.Cos(theta)),
		headHeight,
		float32(orbitRadius * math.Sin(theta)),
	}
	// -Z rotated by (pi/2 - theta) about Y points at the origin
	rot := mgl32.QuatRotate(float32(math.Pi/2-theta), mgl32.Vec3{0, 1, 0})
	head := core.Pose{Pos: pos, Rot: rot}
	hand := core.Pose{Pos: pos.Add(head.Forward().Mul(handReach)), Rot: rot}

	return client.FrameInput{
		Frame:   n,
		Head:    head,
		Hand:    hand,
		Buttons: input.Buttons{Fire: n%burstPeriod < burstLength},
		PickUp:  n >= 1,
	}
}
