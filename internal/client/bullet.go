package client

import "github.com/go-gl/mathgl/mgl32"

const (
	// BulletSpeed is the distance a bullet covers per frame.
	BulletSpeed = 0.05
	// BulletLifetime is how many frames a bullet stays live.
	BulletLifetime = 150
)

// Bullet is a simulated projectile. Each participant has at most one in flight.
type Bullet struct {
	Pos    mgl32.Vec3
	Dir    mgl32.Vec3
	Age    int
	Active bool
}

// SpawnBullet starts a bullet at origin heading along dir. A zero dir fires along -Z.
func SpawnBullet(origin, dir mgl32.Vec3) Bullet {
	if dir.Len() == 0 {
		dir = mgl32.Vec3{0, 0, -1}
	}
	return Bullet{Pos: origin, Dir: dir.Normalize(), Active: true}
}

// Advance moves the bullet one frame and retires it once its lifetime is spent.
func (b *Bullet) Advance() {
	if !b.Active {
		return
	}
	b.Pos = b.Pos.Add(b.Dir.Mul(BulletSpeed))
	b.Age++
	if b.Age >= BulletLifetime {
		b.Active = false
	}
}

// World returns the bullet's placement matrix.
func (b Bullet) World() mgl32.Mat4 {
	return mgl32.Translate3D(b.Pos.X(), b.Pos.Y(), b.Pos.Z())
}
