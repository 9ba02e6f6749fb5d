package core

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Pose is a rigid transform: world position plus orientation.
type Pose struct {
	Pos mgl32.Vec3
	Rot mgl32.Quat
}

// IdentityPose is the origin with no rotation.
func IdentityPose() Pose {
	return Pose{Rot: mgl32.QuatIdent()}
}

// Mat4 returns the world matrix T*R for the pose.
// A zero quaternion (never written) is treated as identity.
func (p Pose) Mat4() mgl32.Mat4 {
	rot := p.Rot
	if rot.W == 0 && rot.V == (mgl32.Vec3{}) {
		rot = mgl32.QuatIdent()
	}
	return mgl32.Translate3D(p.Pos.X(), p.Pos.Y(), p.Pos.Z()).Mul4(rot.Normalize().Mat4())
}

// Forward returns the pose's -Z axis in world space.
func (p Pose) Forward() mgl32.Vec3 {
	rot := p.Rot
	if rot.W == 0 && rot.V == (mgl32.Vec3{}) {
		return mgl32.Vec3{0, 0, -1}
	}
	return rot.Normalize().Rotate(mgl32.Vec3{0, 0, -1})
}

// PoseSample is one recorded snapshot of a participant's head transform.
// Samples are immutable once pushed into a replay buffer.
type PoseSample struct {
	Frame uint64
	Pose
}
