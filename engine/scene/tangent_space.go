package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// TangentSpaceVisitor generates per-vertex tangents for triangle geometry that has normals and
// texture coordinates. Normal-mapped passes require tangents on every geometry they draw.
type TangentSpaceVisitor struct {
	// Force regenerates tangents even on geometry that already has them.
	Force bool

	generated int
	skipped   int
	seen      map[*Geometry]struct{}
}

// NewTangentSpaceVisitor creates a tangent generation visitor.
func NewTangentSpaceVisitor() *TangentSpaceVisitor {
	return &TangentSpaceVisitor{seen: make(map[*Geometry]struct{})}
}

func (v *TangentSpaceVisitor) Apply(n Node, _ mgl32.Mat4) bool {
	for _, g := range n.Geometries() {
		if _, ok := v.seen[g]; ok {
			continue
		}
		v.seen[g] = struct{}{}

		if g.Primitive != PrimitiveTriangles || len(g.Normals) != len(g.Positions) || len(g.TexCoords) != len(g.Positions) {
			v.skipped++
			continue
		}
		if len(g.Tangents) == len(g.Positions) && !v.Force {
			continue
		}
		ComputeTangents(g)
		v.generated++
	}
	return true
}

// Generated returns how many geometries received new tangents.
func (v *TangentSpaceVisitor) Generated() int {
	return v.generated
}

// Skipped returns how many geometries lacked the normals or texture coordinates needed for tangents.
func (v *TangentSpaceVisitor) Skipped() int {
	return v.skipped
}

// ComputeTangents generates per-vertex tangents for triangle geometry with normals and texture
// coordinates. Triangles with a degenerate UV area are skipped. Each tangent is orthogonalized
// against the vertex normal and the bitangent handedness is stored in w.
//
// Parameters:
//   - g: the geometry to update in place
func ComputeTangents(g *Geometry) {
	n := len(g.Positions)
	tan := make([]mgl32.Vec3, n)
	bitan := make([]mgl32.Vec3, n)

	accum := func(i0, i1, i2 uint32) {
		p0, p1, p2 := g.Positions[i0], g.Positions[i1], g.Positions[i2]
		uv0, uv1, uv2 := g.TexCoords[i0], g.TexCoords[i1], g.TexCoords[i2]

		e1 := p1.Sub(p0)
		e2 := p2.Sub(p0)
		du1, dv1 := uv1.X()-uv0.X(), uv1.Y()-uv0.Y()
		du2, dv2 := uv2.X()-uv0.X(), uv2.Y()-uv0.Y()

		denom := du1*dv2 - du2*dv1
		if denom == 0 {
			return
		}
		r := 1.0 / denom

		t := e1.Mul(dv2 * r).Sub(e2.Mul(dv1 * r))
		b := e2.Mul(du1 * r).Sub(e1.Mul(du2 * r))

		for _, i := range [3]uint32{i0, i1, i2} {
			tan[i] = tan[i].Add(t)
			bitan[i] = bitan[i].Add(b)
		}
	}

	if len(g.Indices) > 0 {
		for i := 0; i+2 < len(g.Indices); i += 3 {
			accum(g.Indices[i], g.Indices[i+1], g.Indices[i+2])
		}
	} else {
		for i := 0; i+2 < n; i += 3 {
			accum(uint32(i), uint32(i+1), uint32(i+2))
		}
	}

	g.Tangents = make([]mgl32.Vec4, n)
	for i := 0; i < n; i++ {
		nrm := g.Normals[i]

		// Gram-Schmidt: T = normalize(T - N*(N.T))
		t := tan[i].Sub(nrm.Mul(nrm.Dot(tan[i])))
		if t.Dot(t) < 1e-8 {
			if math.Abs(float64(nrm.X())) < 0.9 {
				t = mgl32.Vec3{1, 0, 0}.Sub(nrm.Mul(nrm.X()))
			} else {
				t = mgl32.Vec3{0, 1, 0}.Sub(nrm.Mul(nrm.Y()))
			}
		}
		t = t.Normalize()

		w := float32(1)
		if nrm.Cross(t).Dot(bitan[i]) < 0 {
			w = -1
		}
		g.Tangents[i] = t.Vec4(w)
	}
}
