package collision

import "github.com/go-gl/mathgl/mgl32"

// Body is a template placed in the world plus the result of the last test it took part in.
type Body struct {
	Template  BoxTemplate
	World     mgl32.Mat4
	Colliding bool
}

// NewBody returns a body at the origin.
func NewBody(t BoxTemplate) *Body {
	return &Body{Template: t, World: mgl32.Ident4()}
}

// Bounds returns the body's current world-space box.
func (b *Body) Bounds() AABB {
	return b.Template.Bounds(b.World)
}

// Detector runs pairwise tests. It keeps no state between calls.
type Detector struct{}

// Test recomputes both boxes and sets both bodies' Colliding flags to the result.
func (Detector) Test(a, b *Body) bool {
	hit := Intersects(a.Bounds(), b.Bounds())
	a.Colliding = hit
	b.Colliding = hit
	return hit
}
