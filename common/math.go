package common

import (
	"cmp"
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}

// PerspectiveZO creates a right-handed perspective projection matrix with a [0, 1] depth range,
// which is the clip-space convention WebGPU uses. mgl32.Perspective targets OpenGL's [-1, 1] range.
//
// Parameters:
//   - fovY: vertical field of view in radians
//   - aspect: aspect ratio (width / height)
//   - near: near clipping plane distance
//   - far: far clipping plane distance
//
// Returns:
//   - mgl32.Mat4: the projection matrix
func PerspectiveZO(fovY, aspect, near, far float32) mgl32.Mat4 {
	f := float32(1.0 / math.Tan(float64(fovY)/2.0))
	rangeInv := 1.0 / (near - far)

	return mgl32.Mat4{
		f / aspect, 0, 0, 0,
		0, f, 0, 0,
		0, 0, far * rangeInv, -1,
		0, 0, near * far * rangeInv, 0,
	}
}

// OrthoZO creates a right-handed orthographic projection matrix with a [0, 1] depth range.
// View-space z = -near maps to 0 and z = -far maps to 1.
//
// Parameters:
//   - left, right, bottom, top: the view volume extents on the x and y axes
//   - near, far: distances to the near and far planes along -z
//
// Returns:
//   - mgl32.Mat4: the projection matrix
func OrthoZO(left, right, bottom, top, near, far float32) mgl32.Mat4 {
	rml, tmb, fmn := right-left, top-bottom, far-near

	return mgl32.Mat4{
		2 / rml, 0, 0, 0,
		0, 2 / tmb, 0, 0,
		0, 0, -1 / fmn, 0,
		-(right + left) / rml, -(top + bottom) / tmb, -near / fmn, 1,
	}
}

// StableUp returns an up vector that is never parallel to dir. World +Y is used unless dir is
// almost vertical, in which case +X is used instead.
//
// Parameters:
//   - dir: a normalized direction vector
//
// Returns:
//   - mgl32.Vec3: an up vector suitable for mgl32.LookAtV
func StableUp(dir mgl32.Vec3) mgl32.Vec3 {
	if float32(math.Abs(float64(dir.Y()))) > 0.99 {
		return mgl32.Vec3{1, 0, 0}
	}
	return mgl32.Vec3{0, 1, 0}
}

// IsFinite reports whether every element of m is a finite number.
func IsFinite(m mgl32.Mat4) bool {
	for _, v := range m {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return false
		}
	}
	return true
}

// TransformPoint multiplies a point by m and performs the perspective divide.
func TransformPoint(m mgl32.Mat4, p mgl32.Vec3) mgl32.Vec3 {
	v := m.Mul4x1(p.Vec4(1))
	if v.W() == 0 {
		return v.Vec3()
	}
	return v.Vec3().Mul(1 / v.W())
}

// ComposeTRS builds a model matrix from a translation, rotation, and scale (T * R * S).
//
// Parameters:
//   - t: translation
//   - r: rotation quaternion
//   - s: per-axis scale
//
// Returns:
//   - mgl32.Mat4: the composed transform
func ComposeTRS(t mgl32.Vec3, r mgl32.Quat, s mgl32.Vec3) mgl32.Mat4 {
	return mgl32.Translate3D(t.X(), t.Y(), t.Z()).Mul4(r.Mat4()).Mul4(mgl32.Scale3D(s.X(), s.Y(), s.Z()))
}

// resolvableScale is 32 float32 epsilons. Lengths of this relative size survive the handful of
// rounded operations a model-view-projection chain applies to a point.
const resolvableScale = 32.0 / (1 << 23)

// MinResolvable returns the smallest length that float32 transforms still resolve for points at
// the given distance from the origin. Far from the origin a fixed world-space epsilon rounds away.
//
// Parameters:
//   - magnitude: the largest absolute coordinate involved
//
// Returns:
//   - float32: the resolvable length, 0 at the origin
func MinResolvable(magnitude float32) float32 {
	return float32(math.Abs(float64(magnitude))) * resolvableScale
}

// Ulp returns the spacing between x and the next float32 away from zero.
func Ulp(x float32) float32 {
	a := float32(math.Abs(float64(x)))
	return math.Nextafter32(a, math.MaxFloat32) - a
}

// MaxAbs returns the largest absolute component of v.
func MaxAbs(v mgl32.Vec3) float32 {
	return float32(max(math.Abs(float64(v.X())), math.Abs(float64(v.Y())), math.Abs(float64(v.Z()))))
}

// Clamp restricts v to the closed range [lo, hi].
func Clamp[T cmp.Ordered](v, lo, hi T) T {
	return max(lo, min(v, hi))
}
