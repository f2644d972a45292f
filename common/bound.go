package common

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// BoundingBox is an axis-aligned box in world or local space.
// An empty box has Min > Max on every axis and is reported invalid by Valid.
type BoundingBox struct {
	Min mgl32.Vec3
	Max mgl32.Vec3
}

// NewBoundingBox returns an empty (invalid) box ready to be expanded.
func NewBoundingBox() BoundingBox {
	inf := float32(math.Inf(1))
	return BoundingBox{
		Min: mgl32.Vec3{inf, inf, inf},
		Max: mgl32.Vec3{-inf, -inf, -inf},
	}
}

// BoundingBoxFromPoints returns the smallest box containing every point.
func BoundingBoxFromPoints(points ...mgl32.Vec3) BoundingBox {
	b := NewBoundingBox()
	for _, p := range points {
		b = b.ExpandBy(p)
	}
	return b
}

// Valid reports whether the box contains at least one point.
func (b BoundingBox) Valid() bool {
	return b.Min.X() <= b.Max.X() && b.Min.Y() <= b.Max.Y() && b.Min.Z() <= b.Max.Z()
}

// ExpandBy returns a copy of the box grown to include p.
func (b BoundingBox) ExpandBy(p mgl32.Vec3) BoundingBox {
	for i := 0; i < 3; i++ {
		b.Min[i] = min(b.Min[i], p[i])
		b.Max[i] = max(b.Max[i], p[i])
	}
	return b
}

// Union returns the smallest box containing both boxes. Invalid boxes are ignored.
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	if !o.Valid() {
		return b
	}
	if !b.Valid() {
		return o
	}
	return b.ExpandBy(o.Min).ExpandBy(o.Max)
}

// Center returns the midpoint of the box.
func (b BoundingBox) Center() mgl32.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Size returns the extent of the box on each axis.
func (b BoundingBox) Size() mgl32.Vec3 {
	return b.Max.Sub(b.Min)
}

// Radius returns half the length of the box diagonal.
func (b BoundingBox) Radius() float32 {
	if !b.Valid() {
		return 0
	}
	return b.Size().Len() * 0.5
}

// Volume returns the box volume, or 0 for an invalid box.
func (b BoundingBox) Volume() float32 {
	if !b.Valid() {
		return 0
	}
	s := b.Size()
	return s.X() * s.Y() * s.Z()
}

// Corners returns the eight corner points of the box.
// Bit 0 of the index selects max x, bit 1 max y, and bit 2 max z.
func (b BoundingBox) Corners() [8]mgl32.Vec3 {
	var out [8]mgl32.Vec3
	for i := range out {
		out[i] = mgl32.Vec3{
			pick(i&1 != 0, b.Max.X(), b.Min.X()),
			pick(i&2 != 0, b.Max.Y(), b.Min.Y()),
			pick(i&4 != 0, b.Max.Z(), b.Min.Z()),
		}
	}
	return out
}

// Contains reports whether p lies inside the box, allowing eps of slack on every side.
func (b BoundingBox) Contains(p mgl32.Vec3, eps float32) bool {
	for i := 0; i < 3; i++ {
		if p[i] < b.Min[i]-eps || p[i] > b.Max[i]+eps {
			return false
		}
	}
	return true
}

// Transform returns the axis-aligned box enclosing this box after transformation by m.
func (b BoundingBox) Transform(m mgl32.Mat4) BoundingBox {
	if !b.Valid() {
		return b
	}
	out := NewBoundingBox()
	for _, c := range b.Corners() {
		out = out.ExpandBy(TransformPoint(m, c))
	}
	return out
}

// Padded returns the box grown on every side by fraction times its radius.
func (b BoundingBox) Padded(fraction float32) BoundingBox {
	if !b.Valid() || fraction <= 0 {
		return b
	}
	pad := b.Radius() * fraction
	d := mgl32.Vec3{pad, pad, pad}
	return BoundingBox{Min: b.Min.Sub(d), Max: b.Max.Add(d)}
}

// ClampMinExtent grows any axis thinner than minExtent symmetrically around the center,
// so the box always has a positive volume. Far from the origin the minimum grows to
// MinResolvable of the center so the grown sides do not round back onto the center.
//
// Parameters:
//   - minExtent: the smallest allowed size on any axis
//
// Returns:
//   - BoundingBox: the clamped box
func (b BoundingBox) ClampMinExtent(minExtent float32) BoundingBox {
	if !b.Valid() {
		return b
	}
	c := b.Center()
	ext := max(minExtent, MinResolvable(MaxAbs(c)))
	for i := 0; i < 3; i++ {
		if b.Max[i]-b.Min[i] < ext {
			b.Min[i] = c[i] - ext*0.5
			b.Max[i] = c[i] + ext*0.5
		}
	}
	return b
}

func pick(cond bool, a, b float32) float32 {
	if cond {
		return a
	}
	return b
}
