package shadow

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-pipeline/engine/shader"
)

// GPUShadowDataSource is the canonical WGSL definition of the ShadowData struct.
// Matches GPUShadowData layout exactly (80 bytes, std430 aligned).
//
//go:embed assets/shadow_data.wgsl
var GPUShadowDataSource string

func init() {
	shader.RegisterStruct(shader.AnnotationArgShadowData, GPUShadowDataSource, "ShadowData")
}

// GPUShadowData is the GPU-aligned representation of one cascade.
// Matches the WGSL ShadowData struct layout exactly (see GPUShadowDataSource).
// Size: 80 bytes.
type GPUShadowData struct {
	LightViewProj [16]float32 // offset  0: light-space view-projection matrix (column-major)
	TexelSize     float32     // offset 64: 1 / shadow map resolution, in UV units
	Bias          float32     // offset 68: constant depth bias
	NormalBias    float32     // offset 72: world-space normal offset
	SplitFar      float32     // offset 76: far view depth of the cascade's slab
}

// Size returns the size of the GPUShadowData struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (80)
func (g *GPUShadowData) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUShadowData struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 80-byte buffer ready for GPU upload
func (g *GPUShadowData) Marshal() []byte {
	buf := make([]byte, 80)
	for i, v := range g.LightViewProj {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	binary.LittleEndian.PutUint32(buf[64:68], math.Float32bits(g.TexelSize))
	binary.LittleEndian.PutUint32(buf[68:72], math.Float32bits(g.Bias))
	binary.LittleEndian.PutUint32(buf[72:76], math.Float32bits(g.NormalBias))
	binary.LittleEndian.PutUint32(buf[76:80], math.Float32bits(g.SplitFar))
	return buf
}
