package scene

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	deferredMask = common.DefaultMaskConfig().DeferredScene
	casterMask   = common.DefaultMaskConfig().ShadowCaster
	forwardMask  = common.DefaultMaskConfig().ForwardScene
)

func unitBox(name string) *Geometry {
	return NewBox(name, common.BoundingBoxFromPoints(mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1}), mgl32.Vec4{1, 1, 1, 1})
}

func TestAddChildReparents(t *testing.T) {
	a := NewNode("a")
	b := NewNode("b")
	c := NewNode("c")

	a.AddChild(c)
	require.Equal(t, a, c.Parent())

	b.AddChild(c)
	assert.Equal(t, b, c.Parent())
	assert.Empty(t, a.Children())
	assert.Len(t, b.Children(), 1)

	assert.True(t, b.RemoveChild(c))
	assert.Nil(t, c.Parent())
	assert.False(t, b.RemoveChild(c))

	a.AddChild(a)
	assert.Empty(t, a.Children())
}

func TestWorldMatrix(t *testing.T) {
	child := NewNode("child", WithMatrix(mgl32.Translate3D(0, 2, 0)))
	root := NewNode("root", WithMatrix(mgl32.Translate3D(1, 0, 0)), WithChildren(child))

	p := common.TransformPoint(child.WorldMatrix(), mgl32.Vec3{})
	assert.True(t, p.ApproxEqual(mgl32.Vec3{1, 2, 0}))

	child.SetAbsolute(true)
	p = common.TransformPoint(child.WorldMatrix(), mgl32.Vec3{})
	assert.True(t, p.ApproxEqual(mgl32.Vec3{0, 2, 0}))
	assert.Equal(t, root, child.Parent())
}

func TestBoundRespectsTransforms(t *testing.T) {
	leaf := NewNode("leaf", WithGeometry(unitBox("box")), WithMatrix(mgl32.Translate3D(5, 0, 0)))
	root := NewNode("root", WithChildren(leaf))

	b := root.Bound()
	require.True(t, b.Valid())
	assert.InDelta(t, 4, b.Min.X(), 1e-5)
	assert.InDelta(t, 6, b.Max.X(), 1e-5)
	assert.Equal(t, b, leaf.Bound())
}

func TestComputeBoundsVisitorMask(t *testing.T) {
	casters := NewNode("casters", WithMask(deferredMask|casterMask), WithGeometry(unitBox("c")))
	overlay := NewNode("overlay", WithMask(forwardMask), WithMatrix(mgl32.Translate3D(100, 0, 0)), WithGeometry(unitBox("o")))
	root := NewNode("root", WithChildren(casters, overlay))

	v := NewComputeBoundsVisitor(casterMask)
	root.Accept(v)
	assert.InDelta(t, 1, v.Bound().Max.X(), 1e-5)

	all := NewComputeBoundsVisitor(common.MaskAll)
	root.Accept(all)
	assert.InDelta(t, 101, all.Bound().Max.X(), 1e-5)

	none := NewComputeBoundsVisitor(0)
	root.Accept(none)
	assert.False(t, none.Bound().Valid())
}

func TestCullVisitor(t *testing.T) {
	near := NewNode("near", WithMask(deferredMask), WithGeometry(unitBox("near")))
	far := NewNode("far", WithMask(deferredMask), WithMatrix(mgl32.Translate3D(0, 0, -500)), WithGeometry(unitBox("far")))
	hud := NewNode("hud", WithMask(forwardMask), WithGeometry(unitBox("hud")))
	root := NewNode("root", WithChildren(near, far, hud))

	v := NewCullVisitor(deferredMask, nil)
	root.Accept(v)
	assert.Len(t, v.Items(), 2)

	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 10}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	proj := common.PerspectiveZO(mgl32.DegToRad(45), 1, 0.1, 100)
	f := common.ExtractFrustumFromMatrix(proj.Mul4(view))
	v = NewCullVisitor(deferredMask, &f)
	root.Accept(v)
	require.Len(t, v.Items(), 1)
	assert.Equal(t, "near", v.Items()[0].Geometry.Name)
}

func TestGeometryValidate(t *testing.T) {
	g := unitBox("box")
	assert.NoError(t, g.Validate())
	assert.Equal(t, 36, g.IndexCount())

	g.Indices = append(g.Indices, 99)
	assert.Error(t, g.Validate())

	lines := NewLines("lines", []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}, mgl32.Vec4{1, 0, 0, 1})
	assert.Equal(t, PrimitiveLines, lines.Primitive)
	assert.Len(t, lines.Positions, 2)
	assert.NoError(t, lines.Validate())
}

func TestTangentSpaceVisitor(t *testing.T) {
	box := unitBox("box")
	lines := NewLines("lines", []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}}, mgl32.Vec4{})
	root := NewNode("root", WithGeometry(box, lines), WithChildren(NewNode("shared", WithGeometry(box))))

	v := NewTangentSpaceVisitor()
	root.Accept(v)

	assert.Equal(t, 1, v.Generated())
	assert.Equal(t, 1, v.Skipped())
	require.True(t, box.HasTangentSpace())
	for i, tan := range box.Tangents {
		assert.InDelta(t, 0, tan.Vec3().Dot(box.Normals[i]), 1e-5)
		assert.InDelta(t, 1, tan.Vec3().Len(), 1e-5)
		assert.Contains(t, []float32{-1, 1}, tan.W())
	}
}

func TestQuad(t *testing.T) {
	q := NewQuad("hud0", 0, 0.21, 0.2, 0.2, nil)
	b := q.Bound()
	assert.InDelta(t, 0.21, b.Min.Y(), 1e-6)
	assert.InDelta(t, 0.41, b.Max.Y(), 1e-6)
	assert.NoError(t, q.Validate())
}
