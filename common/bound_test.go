package common

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundingBoxEmpty(t *testing.T) {
	b := NewBoundingBox()
	assert.False(t, b.Valid())
	assert.Zero(t, b.Radius())
	assert.Zero(t, b.Volume())

	b = b.ExpandBy(mgl32.Vec3{1, 2, 3})
	require.True(t, b.Valid())
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, b.Min)
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, b.Max)
	assert.Zero(t, b.Volume())
}

func TestBoundingBoxUnion(t *testing.T) {
	a := BoundingBoxFromPoints(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 1, 1})
	b := BoundingBoxFromPoints(mgl32.Vec3{-1, 0.5, 0}, mgl32.Vec3{0.5, 2, 0.5})

	u := a.Union(b)
	assert.Equal(t, mgl32.Vec3{-1, 0, 0}, u.Min)
	assert.Equal(t, mgl32.Vec3{1, 2, 1}, u.Max)

	assert.Equal(t, a, a.Union(NewBoundingBox()))
	assert.Equal(t, a, NewBoundingBox().Union(a))
}

func TestBoundingBoxCorners(t *testing.T) {
	b := BoundingBoxFromPoints(mgl32.Vec3{-1, -2, -3}, mgl32.Vec3{1, 2, 3})
	corners := b.Corners()

	assert.Equal(t, mgl32.Vec3{-1, -2, -3}, corners[0])
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, corners[7])
	for _, c := range corners {
		assert.True(t, b.Contains(c, 0))
	}
	assert.InDelta(t, 48, b.Volume(), 1e-5)
	assert.Equal(t, mgl32.Vec3{0, 0, 0}, b.Center())
}

func TestBoundingBoxTransform(t *testing.T) {
	b := BoundingBoxFromPoints(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{1, 1, 1})
	moved := b.Transform(mgl32.Translate3D(10, 0, 0))

	assert.InDelta(t, 10, moved.Min.X(), 1e-5)
	assert.InDelta(t, 11, moved.Max.X(), 1e-5)

	rotated := b.Transform(mgl32.HomogRotate3DZ(mgl32.DegToRad(45)))
	assert.Greater(t, rotated.Size().X(), float32(1))
}

func TestBoundingBoxPadded(t *testing.T) {
	b := BoundingBoxFromPoints(mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1})
	p := b.Padded(0.5)

	pad := b.Radius() * 0.5
	assert.InDelta(t, -1-pad, p.Min.X(), 1e-5)
	assert.InDelta(t, 1+pad, p.Max.Z(), 1e-5)
	assert.Equal(t, b, b.Padded(0))
}

func TestBoundingBoxClampMinExtent(t *testing.T) {
	flat := BoundingBoxFromPoints(mgl32.Vec3{-5, 2, -5}, mgl32.Vec3{5, 2, 5})
	require.Zero(t, flat.Volume())

	clamped := flat.ClampMinExtent(0.01)
	assert.Greater(t, clamped.Volume(), float32(0))
	assert.InDelta(t, 0.01, clamped.Size().Y(), 1e-6)
	assert.InDelta(t, 10, clamped.Size().X(), 1e-6)
	assert.InDelta(t, 2, clamped.Center().Y(), 1e-6)

	point := BoundingBoxFromPoints(mgl32.Vec3{3, 3, 3}).ClampMinExtent(1)
	assert.InDelta(t, 1, point.Volume(), 1e-5)
}
