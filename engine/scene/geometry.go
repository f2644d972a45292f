package scene

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/texture"
	"github.com/go-gl/mathgl/mgl32"
)

// PrimitiveType selects how geometry indices are assembled into primitives.
type PrimitiveType int

const (
	// PrimitiveTriangles assembles every three indices into a triangle.
	PrimitiveTriangles PrimitiveType = iota

	// PrimitiveLines assembles every two indices into a line segment.
	PrimitiveLines
)

// Geometry is a drawable vertex set. Attribute slices are either empty or as long as Positions.
type Geometry struct {
	Name      string
	Primitive PrimitiveType

	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	TexCoords []mgl32.Vec2

	// Tangents hold the tangent direction in xyz and the bitangent handedness (+1 or -1) in w.
	Tangents []mgl32.Vec4

	Indices []uint32

	// Color is the base color used when no texture is bound.
	Color mgl32.Vec4

	// Texture is an optional texture sampled by forward passes, such as a shadow map on a HUD quad.
	Texture texture.Texture
}

// Bound returns the local-space bound of the vertex positions.
func (g *Geometry) Bound() common.BoundingBox {
	return common.BoundingBoxFromPoints(g.Positions...)
}

// IndexCount returns the number of indices drawn, falling back to the vertex count for non-indexed geometry.
func (g *Geometry) IndexCount() int {
	if len(g.Indices) > 0 {
		return len(g.Indices)
	}
	return len(g.Positions)
}

// HasTangentSpace reports whether normals and tangents are present for every vertex.
func (g *Geometry) HasTangentSpace() bool {
	n := len(g.Positions)
	return n > 0 && len(g.Normals) == n && len(g.Tangents) == n
}

// Validate checks attribute lengths and index ranges.
func (g *Geometry) Validate() error {
	n := len(g.Positions)
	if len(g.Normals) != 0 && len(g.Normals) != n {
		return fmt.Errorf("geometry %q: %d normals for %d positions", g.Name, len(g.Normals), n)
	}
	if len(g.TexCoords) != 0 && len(g.TexCoords) != n {
		return fmt.Errorf("geometry %q: %d texcoords for %d positions", g.Name, len(g.TexCoords), n)
	}
	if len(g.Tangents) != 0 && len(g.Tangents) != n {
		return fmt.Errorf("geometry %q: %d tangents for %d positions", g.Name, len(g.Tangents), n)
	}
	for i, idx := range g.Indices {
		if int(idx) >= n {
			return fmt.Errorf("geometry %q: index %d at %d out of range for %d positions", g.Name, idx, i, n)
		}
	}
	return nil
}

// NewBox builds a triangle box with per-face normals and texture coordinates.
//
// Parameters:
//   - name: the geometry name
//   - b: the box extents
//   - color: the base color
//
// Returns:
//   - *Geometry: the box geometry
func NewBox(name string, b common.BoundingBox, color mgl32.Vec4) *Geometry {
	g := &Geometry{Name: name, Primitive: PrimitiveTriangles, Color: color}

	faces := []struct {
		normal mgl32.Vec3
		corner [4]int
	}{
		{mgl32.Vec3{1, 0, 0}, [4]int{1, 3, 7, 5}},
		{mgl32.Vec3{-1, 0, 0}, [4]int{4, 6, 2, 0}},
		{mgl32.Vec3{0, 1, 0}, [4]int{2, 6, 7, 3}},
		{mgl32.Vec3{0, -1, 0}, [4]int{0, 1, 5, 4}},
		{mgl32.Vec3{0, 0, 1}, [4]int{4, 5, 7, 6}},
		{mgl32.Vec3{0, 0, -1}, [4]int{1, 0, 2, 3}},
	}
	uvs := [4]mgl32.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	corners := b.Corners()

	for _, f := range faces {
		base := uint32(len(g.Positions))
		for i, c := range f.corner {
			g.Positions = append(g.Positions, corners[c])
			g.Normals = append(g.Normals, f.normal)
			g.TexCoords = append(g.TexCoords, uvs[i])
		}
		g.Indices = append(g.Indices, base, base+1, base+2, base, base+2, base+3)
	}

	return g
}

// NewQuad builds a textured quad in the z = 0 plane facing +z.
//
// Parameters:
//   - name: the geometry name
//   - x, y: the lower-left corner
//   - w, h: the quad size
//   - tex: the texture to display, may be nil
//
// Returns:
//   - *Geometry: the quad geometry
func NewQuad(name string, x, y, w, h float32, tex texture.Texture) *Geometry {
	return &Geometry{
		Name:      name,
		Primitive: PrimitiveTriangles,
		Positions: []mgl32.Vec3{{x, y, 0}, {x + w, y, 0}, {x + w, y + h, 0}, {x, y + h, 0}},
		Normals:   []mgl32.Vec3{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}},
		TexCoords: []mgl32.Vec2{{0, 1}, {1, 1}, {1, 0}, {0, 0}},
		Indices:   []uint32{0, 1, 2, 0, 2, 3},
		Color:     mgl32.Vec4{1, 1, 1, 1},
		Texture:   tex,
	}
}

// NewLines builds line geometry from point pairs.
//
// Parameters:
//   - name: the geometry name
//   - segments: consecutive pairs of points, each pair one segment
//   - color: the line color
//
// Returns:
//   - *Geometry: the line geometry
func NewLines(name string, segments []mgl32.Vec3, color mgl32.Vec4) *Geometry {
	g := &Geometry{
		Name:      name,
		Primitive: PrimitiveLines,
		Positions: make([]mgl32.Vec3, 0, len(segments)),
		Indices:   make([]uint32, 0, len(segments)),
		Color:     color,
	}
	for i := 0; i+1 < len(segments); i += 2 {
		base := uint32(len(g.Positions))
		g.Positions = append(g.Positions, segments[i], segments[i+1])
		g.Indices = append(g.Indices, base, base+1)
	}
	return g
}
