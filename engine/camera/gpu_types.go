package camera

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// GPUCameraUniformSource is the canonical WGSL definition of the CameraUniform struct.
// Matches GPUCameraUniform layout exactly (224 bytes).
//
//go:embed assets/camera_uniform.wgsl
var GPUCameraUniformSource string

// GPUCameraUniform is the GPU-aligned representation of a pass camera.
// Every pass binds one of these at group 0.
type GPUCameraUniform struct {
	ViewProj   [16]float32 // offset   0
	View       [16]float32 // offset  64
	Projection [16]float32 // offset 128
	Position   [3]float32  // offset 192
	Near       float32     // offset 204
	Far        float32     // offset 208
	_pad       [3]float32  // offset 212: padding to 224 bytes
}

// NewGPUCameraUniform snapshots the matrices of a camera.
//
// Parameters:
//   - c: the camera to snapshot
//
// Returns:
//   - GPUCameraUniform: the uniform ready for Marshal
func NewGPUCameraUniform(c Camera) GPUCameraUniform {
	view := c.ViewMatrix()
	return GPUCameraUniform{
		ViewProj:   c.ViewProjectionMatrix(),
		View:       view,
		Projection: c.ProjectionMatrix(),
		Position:   eyeFromView(view),
		Near:       c.Near(),
		Far:        c.Far(),
	}
}

// Size returns the size of the GPUCameraUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (224)
func (g *GPUCameraUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUCameraUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: the serialized byte buffer
func (g *GPUCameraUniform) Marshal() []byte {
	buf := make([]byte, g.Size())
	putMat := func(off int, m [16]float32) {
		for i := range 16 {
			binary.LittleEndian.PutUint32(buf[off+i*4:], math.Float32bits(m[i]))
		}
	}
	putMat(0, g.ViewProj)
	putMat(64, g.View)
	putMat(128, g.Projection)
	for i := range 3 {
		binary.LittleEndian.PutUint32(buf[192+i*4:], math.Float32bits(g.Position[i]))
	}
	binary.LittleEndian.PutUint32(buf[204:], math.Float32bits(g.Near))
	binary.LittleEndian.PutUint32(buf[208:], math.Float32bits(g.Far))
	return buf
}

// eyeFromView recovers the world-space eye position from a view matrix.
func eyeFromView(view mgl32.Mat4) mgl32.Vec3 {
	return view.Inv().Col(3).Vec3()
}
