package light

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-pipeline/engine/shader"
)

// MaxExtraLights is the maximum number of additional lights marshaled into the extra light
// array per frame. Lights past the cap are dropped in registration order.
const MaxExtraLights = 64

// GPULightUniformSource is the canonical WGSL definition of the LightUniform struct.
// Matches GPULightUniform layout exactly (80 bytes, std430 aligned).
//
//go:embed assets/light.wgsl
var GPULightUniformSource string

func init() {
	shader.RegisterStruct(shader.AnnotationArgLight, GPULightUniformSource, "LightUniform")
}

// GPULightUniform is the GPU-aligned representation of a single light source. The main light
// fills every field; extra lights leave the shadow and count fields zero.
// Matches the WGSL LightUniform struct layout exactly (see GPULightUniformSource).
// Size: 80 bytes.
type GPULightUniform struct {
	Position     [3]float32 // offset  0: world-space position (point/spot)
	LightType    uint32     // offset 12: 0 = directional, 1 = point, 2 = spot
	Color        [3]float32 // offset 16: RGB color
	Intensity    float32    // offset 28: scalar multiplier
	Direction    [3]float32 // offset 32: normalized direction (directional/spot)
	LightRange   float32    // offset 44: attenuation cutoff distance
	Ambient      [3]float32 // offset 48: ambient term added to every lit fragment
	CascadeCount uint32     // offset 60: number of shadow cascades bound
	InnerCone    float32    // offset 64: cos(inner half-angle) for spot
	OuterCone    float32    // offset 68: cos(outer half-angle) for spot
	HasShadow    uint32     // offset 72: 1 = sample the shadow maps
	ExtraCount   uint32     // offset 76: number of valid entries in the extra light array
}

// NewGPULightUniform snapshots a light.
//
// Parameters:
//   - l: the light
//
// Returns:
//   - GPULightUniform: the uniform with the shadow and count fields zero
func NewGPULightUniform(l Light) GPULightUniform {
	return GPULightUniform{
		Position:   l.Position(),
		LightType:  uint32(l.Type()),
		Color:      l.Color(),
		Intensity:  l.Intensity(),
		Direction:  l.Direction(),
		LightRange: l.Range(),
		InnerCone:  l.InnerCone(),
		OuterCone:  l.OuterCone(),
	}
}

// Size returns the size of the GPULightUniform struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (80)
func (g *GPULightUniform) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPULightUniform struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 80-byte buffer ready for GPU upload
func (g *GPULightUniform) Marshal() []byte {
	buf := make([]byte, 80)
	putVec3 := func(off int, v [3]float32) {
		for i := range 3 {
			binary.LittleEndian.PutUint32(buf[off+i*4:], math.Float32bits(v[i]))
		}
	}
	putVec3(0, g.Position)
	binary.LittleEndian.PutUint32(buf[12:16], g.LightType)
	putVec3(16, g.Color)
	binary.LittleEndian.PutUint32(buf[28:32], math.Float32bits(g.Intensity))
	putVec3(32, g.Direction)
	binary.LittleEndian.PutUint32(buf[44:48], math.Float32bits(g.LightRange))
	putVec3(48, g.Ambient)
	binary.LittleEndian.PutUint32(buf[60:64], g.CascadeCount)
	binary.LittleEndian.PutUint32(buf[64:68], math.Float32bits(g.InnerCone))
	binary.LittleEndian.PutUint32(buf[68:72], math.Float32bits(g.OuterCone))
	binary.LittleEndian.PutUint32(buf[72:76], g.HasShadow)
	binary.LittleEndian.PutUint32(buf[76:80], g.ExtraCount)
	return buf
}
