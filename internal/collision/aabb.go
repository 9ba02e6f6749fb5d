// Package collision tests bullets against participant bodies with world-space axis-aligned boxes.
package collision

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"
)

// ErrNoVertices is returned when a template is built from an empty mesh.
var ErrNoVertices = errors.New("template needs at least one vertex")

// AABB is an axis-aligned box in world space. Min <= Max on every axis.
type AABB struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// ComputeBounds transforms the eight template corners by world and returns their extent.
func ComputeBounds(corners [8]mgl32.Vec3, world mgl32.Mat4) AABB {
	first := world.Mul4x1(corners[0].Vec4(1)).Vec3()
	box := AABB{Min: first, Max: first}
	for _, c := range corners[1:] {
		p := world.Mul4x1(c.Vec4(1)).Vec3()
		for axis := 0; axis < 3; axis++ {
			if p[axis] < box.Min[axis] {
				box.Min[axis] = p[axis]
			}
			if p[axis] > box.Max[axis] {
				box.Max[axis] = p[axis]
			}
		}
	}
	return box
}

// Intersects reports whether a and b overlap. Intervals are closed, so touching faces collide.
func Intersects(a, b AABB) bool {
	for axis := 0; axis < 3; axis++ {
		if a.Max[axis] < b.Min[axis] || b.Max[axis] < a.Min[axis] {
			return false
		}
	}
	return true
}

// Center returns the midpoint of the box.
func (b AABB) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// BoxTemplate is the model-space bounding box of a mesh.
type BoxTemplate struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// TemplateFromMinMax builds a template from explicit extents.
func TemplateFromMinMax(min, max mgl32.Vec3) BoxTemplate {
	for axis := 0; axis < 3; axis++ {
		if min[axis] > max[axis] {
			min[axis], max[axis] = max[axis], min[axis]
		}
	}
	return BoxTemplate{Min: min, Max: max}
}

// TemplateFromVertices fits a template around mesh vertices, recentred on the bounding box centre.
// With normalize set, the box is also scaled uniformly so its largest dimension is 1.
func TemplateFromVertices(verts []mgl32.Vec3, normalize bool) (BoxTemplate, error) {
	if len(verts) == 0 {
		return BoxTemplate{}, ErrNoVertices
	}
	min, max := verts[0], verts[0]
	for _, v := range verts[1:] {
		for axis := 0; axis < 3; axis++ {
			if v[axis] < min[axis] {
				min[axis] = v[axis]
			}
			if v[axis] > max[axis] {
				max[axis] = v[axis]
			}
		}
	}

	center := min.Add(max).Mul(0.5)
	min, max = min.Sub(center), max.Sub(center)

	if normalize {
		size := max.Sub(min)
		largest := size.X()
		if size.Y() > largest {
			largest = size.Y()
		}
		if size.Z() > largest {
			largest = size.Z()
		}
		if largest > 0 {
			min, max = min.Mul(1/largest), max.Mul(1/largest)
		}
	}
	return BoxTemplate{Min: min, Max: max}, nil
}

// Corners returns the eight box corners in model space.
func (t BoxTemplate) Corners() [8]mgl32.Vec3 {
	var out [8]mgl32.Vec3
	for i := 0; i < 8; i++ {
		c := t.Min
		if i&1 != 0 {
			c[0] = t.Max[0]
		}
		if i&2 != 0 {
			c[1] = t.Max[1]
		}
		if i&4 != 0 {
			c[2] = t.Max[2]
		}
		out[i] = c
	}
	return out
}

// Bounds places the template in the world.
func (t BoxTemplate) Bounds(world mgl32.Mat4) AABB {
	return ComputeBounds(t.Corners(), world)
}
