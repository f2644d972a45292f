package common

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Plane represents a plane in 3D space using the equation: ax + by + cz + d = 0
// where (a, b, c) is the normal and d is the distance from origin.
type Plane struct {
	Normal   mgl32.Vec3
	Distance float32
}

// SignedDistance returns the signed distance of p from the plane. Positive values lie on the normal side.
func (p Plane) SignedDistance(pt mgl32.Vec3) float32 {
	return p.Normal.Dot(pt) + p.Distance
}

// Frustum represents the six planes of a view frustum for culling.
// Planes are oriented so that positive half-space is inside the frustum.
type Frustum struct {
	Planes [6]Plane // Left, Right, Bottom, Top, Near, Far
}

// FrustumPlane indices for clarity
const (
	FrustumLeft   = 0
	FrustumRight  = 1
	FrustumBottom = 2
	FrustumTop    = 3
	FrustumNear   = 4
	FrustumFar    = 5
)

// ExtractFrustumFromMatrix extracts frustum planes from a view-projection matrix.
// Uses the Gribb/Hartmann method for plane extraction, with the near plane taken from
// row 2 alone because WebGPU clip space has a [0, 1] depth range.
//
// Reference: https://www8.cs.umu.se/kurser/5DV051/HT12/lab/plane_extraction.pdf
//
// Parameters:
//   - viewProj: the combined projection * view matrix
//
// Returns:
//   - Frustum: the extracted frustum with normalized planes
func ExtractFrustumFromMatrix(viewProj mgl32.Mat4) Frustum {
	var f Frustum

	r0, r1, r2, r3 := viewProj.Row(0), viewProj.Row(1), viewProj.Row(2), viewProj.Row(3)

	f.Planes[FrustumLeft] = planeFromRow(r3.Add(r0))
	f.Planes[FrustumRight] = planeFromRow(r3.Sub(r0))
	f.Planes[FrustumBottom] = planeFromRow(r3.Add(r1))
	f.Planes[FrustumTop] = planeFromRow(r3.Sub(r1))
	f.Planes[FrustumNear] = planeFromRow(r2)
	f.Planes[FrustumFar] = planeFromRow(r3.Sub(r2))

	for i := range f.Planes {
		f.normalizePlane(i)
	}

	return f
}

// FrustumCorners returns the eight world-space corners of the volume described by viewProj.
// Corners are ordered like BoundingBox.Corners over NDC x, y in [-1, 1] and z in [0, 1].
// Returns false if the matrix is not invertible.
func FrustumCorners(viewProj mgl32.Mat4) ([8]mgl32.Vec3, bool) {
	var out [8]mgl32.Vec3
	if viewProj.Det() == 0 {
		return out, false
	}
	inv := viewProj.Inv()
	ndc := BoundingBox{Min: mgl32.Vec3{-1, -1, 0}, Max: mgl32.Vec3{1, 1, 1}}
	for i, c := range ndc.Corners() {
		out[i] = TransformPoint(inv, c)
	}
	return out, true
}

// ContainsPoint reports whether pt lies inside every plane, allowing eps of slack.
func (f Frustum) ContainsPoint(pt mgl32.Vec3, eps float32) bool {
	for _, p := range f.Planes {
		if p.SignedDistance(pt) < -eps {
			return false
		}
	}
	return true
}

// IntersectsBox reports whether any part of b may lie inside the frustum.
// Uses the positive-vertex test, which is conservative near frustum corners.
func (f Frustum) IntersectsBox(b BoundingBox) bool {
	if !b.Valid() {
		return false
	}
	for _, p := range f.Planes {
		pv := mgl32.Vec3{
			pick(p.Normal.X() >= 0, b.Max.X(), b.Min.X()),
			pick(p.Normal.Y() >= 0, b.Max.Y(), b.Min.Y()),
			pick(p.Normal.Z() >= 0, b.Max.Z(), b.Min.Z()),
		}
		if p.SignedDistance(pv) < 0 {
			return false
		}
	}
	return true
}

func planeFromRow(r mgl32.Vec4) Plane {
	return Plane{Normal: r.Vec3(), Distance: r.W()}
}

// normalizePlane normalizes a frustum plane so that the normal has unit length.
func (f *Frustum) normalizePlane(index int) {
	p := &f.Planes[index]
	length := p.Normal.Len()

	if length > 0 {
		invLen := 1.0 / length
		p.Normal = p.Normal.Mul(invLen)
		p.Distance *= invLen
	}
}
