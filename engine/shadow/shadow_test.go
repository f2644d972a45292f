package shadow

import (
	"fmt"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/camera"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedLight mgl32.Vec3

func (l fixedLight) Direction() mgl32.Vec3 { return mgl32.Vec3(l).Normalize() }

func newRegistered(t *testing.T, options ...ModuleBuilderOption) (Module, pipeline.Pipeline) {
	t.Helper()
	m, err := NewModule("Shadow", append([]ModuleBuilderOption{WithResolution(64)}, options...)...)
	require.NoError(t, err)
	p := pipeline.NewPipeline(renderer.NewRecordingDevice(64, 64))
	require.NoError(t, p.RegisterModule(m))
	return m, p
}

func TestCascadeCountRange(t *testing.T) {
	for _, n := range []int{0, 9, -1} {
		_, err := NewModule("Shadow", WithCascades(n))
		assert.ErrorIs(t, err, ErrCascadeCount, "n=%d", n)
	}

	for n := 1; n <= MaxCascades; n++ {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			m, p := newRegistered(t, WithCascades(n))
			assert.Equal(t, n, m.ShadowNumber())
			assert.Len(t, p.Passes(), n)
			for i := range n {
				tex, err := m.Texture(i)
				require.NoError(t, err)
				assert.True(t, tex.Descriptor().Format.IsDepth())
			}
			_, err := m.Texture(n)
			assert.ErrorIs(t, err, ErrIndexOutOfRange)
			var oor *IndexOutOfRangeError
			require.ErrorAs(t, err, &oor)
			assert.Equal(t, n, oor.Count)
			assert.Panics(t, func() { m.MustTexture(n) })
		})
	}
}

func TestTextureBeforeInitialize(t *testing.T) {
	m, err := NewModule("Shadow")
	require.NoError(t, err)
	_, err = m.Texture(0)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrIndexOutOfRange)
}

func TestCascadeCamerasArePreRenderDepthPasses(t *testing.T) {
	_, p := newRegistered(t, WithCascades(3))
	for i, cam := range p.Passes() {
		order, index := cam.RenderOrder()
		assert.Equal(t, camera.PreRender, order)
		assert.Equal(t, i, index)
		assert.Equal(t, camera.PassDepth, cam.Kind())
		assert.Equal(t, p.Masks().ShadowCaster, cam.CullMask())
		assert.NotNil(t, cam.DepthTarget())
	}
}

func insideClip(vp mgl32.Mat4, p mgl32.Vec3) bool {
	const eps = 1e-4
	c := vp.Mul4x1(p.Vec4(1))
	ndc := c.Vec3().Mul(1 / c.W())
	return ndc.X() >= -1-eps && ndc.X() <= 1+eps &&
		ndc.Y() >= -1-eps && ndc.Y() <= 1+eps &&
		ndc.Z() >= -eps && ndc.Z() <= 1+eps
}

func TestCascadesCoverBound(t *testing.T) {
	bounds := []common.BoundingBox{
		common.BoundingBoxFromPoints(mgl32.Vec3{-10, 0, -10}, mgl32.Vec3{10, 5, 10}),
		common.BoundingBoxFromPoints(mgl32.Vec3{100, -3, 40}, mgl32.Vec3{140, 30, 41}),
		common.BoundingBoxFromPoints(mgl32.Vec3{-1, -1, -200}, mgl32.Vec3{1, 1, -1}),
	}
	lights := []fixedLight{{0.02, 0.1, -1}, {0, -1, 0}, {1, -1, 0.5}}
	schemes := []SplitScheme{SplitPractical, SplitGeometric, SplitUniform}

	for _, n := range []int{1, 3, 8} {
		for bi, b := range bounds {
			for li, l := range lights {
				for _, scheme := range schemes {
					name := fmt.Sprintf("n=%d/bound=%d/light=%d/%s", n, bi, li, scheme)
					t.Run(name, func(t *testing.T) {
						m, _ := newRegistered(t, WithCascades(n), WithSplitScheme(scheme, DefaultSplitLambda))
						m.AddReferenceBound(b, true)
						m.SetLightSource(l)
						m.SetViewCamera(camera.NewCamera("Main", camera.WithView(
							mgl32.LookAtV(mgl32.Vec3{0, 20, 60}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0}))))
						require.NoError(t, m.PerFrameUpdate(pipeline.FrameInfo{Number: 1}))

						sources := m.Sources()
						require.Len(t, sources, n)
						for ci, c := range b.Corners() {
							covered := false
							for _, s := range sources {
								if insideClip(s.ViewProjection(), c) {
									covered = true
									break
								}
							}
							assert.True(t, covered, "corner %d %v not covered", ci, c)
						}
						for i := 1; i < n; i++ {
							assert.Greater(t, sources[i].SplitFar, sources[i-1].SplitFar)
						}
					})
				}
			}
		}
	}
}

func TestDegenerateBoundIsNotSingular(t *testing.T) {
	for _, b := range []common.BoundingBox{
		common.BoundingBoxFromPoints(mgl32.Vec3{3, 3, 3}),
		common.BoundingBoxFromPoints(mgl32.Vec3{0, 0, 0}, mgl32.Vec3{10, 0, 10}),
	} {
		m, _ := newRegistered(t, WithCascades(4))
		m.AddReferenceBound(b, true)
		m.SetLightSource(fixedLight{0, -1, 0})
		require.NoError(t, m.PerFrameUpdate(pipeline.FrameInfo{Number: 1}))

		for _, s := range m.Sources() {
			vp := s.ViewProjection()
			det := float64(vp.Det())
			assert.True(t, common.IsFinite(vp))
			assert.False(t, math.IsInf(det, 0) || math.IsNaN(det))
			assert.NotZero(t, det)
		}
	}
}

func TestDegenerateBoundFarFromOrigin(t *testing.T) {
	centers := []mgl32.Vec3{{1e5, 0, 0}, {1e6, 1e6, 1e6}, {6.4e6, 0, 0}}
	lights := []fixedLight{{0.02, 0.1, -1}, {0, -1, 0}}

	for _, c := range centers {
		for _, l := range lights {
			t.Run(fmt.Sprintf("%v/%v", c, mgl32.Vec3(l)), func(t *testing.T) {
				b := common.BoundingBoxFromPoints(c)
				m, _ := newRegistered(t, WithCascades(4))
				m.AddReferenceBound(b, true)
				m.SetLightSource(l)
				m.SetViewCamera(camera.NewCamera("Main", camera.WithView(
					mgl32.LookAtV(mgl32.Vec3{}, c, common.StableUp(c.Normalize())))))
				require.NoError(t, m.PerFrameUpdate(pipeline.FrameInfo{Number: 1}))

				sources := m.Sources()
				require.Len(t, sources, 4)
				for i, s := range sources {
					vp := s.ViewProjection()
					det := float64(vp.Det())
					require.True(t, common.IsFinite(vp), "cascade %d", i)
					assert.False(t, math.IsInf(det, 0) || math.IsNaN(det))
					assert.NotZero(t, det)
					assert.True(t, insideClip(vp, c), "cascade %d misses the bound", i)
					if i > 0 {
						assert.Greater(t, s.SplitFar, sources[i-1].SplitFar)
					}
				}
			})
		}
	}
}

func TestNoLightOrBoundIsNoop(t *testing.T) {
	m, _ := newRegistered(t)
	before := m.Sources()[0].Projection

	require.NoError(t, m.PerFrameUpdate(pipeline.FrameInfo{Number: 1}))
	m.SetLightSource(fixedLight{0, -1, 0})
	require.NoError(t, m.PerFrameUpdate(pipeline.FrameInfo{Number: 2}))
	assert.Equal(t, before, m.Sources()[0].Projection)
	assert.Empty(t, m.GPUData())

	m.SetLightSource(fixedLight{0, 0, 0})
	m.AddReferenceBound(common.BoundingBoxFromPoints(mgl32.Vec3{}, mgl32.Vec3{1, 1, 1}), true)
	assert.Error(t, m.PerFrameUpdate(pipeline.FrameInfo{Number: 3}))
}

func TestLightDirectionIsReadLive(t *testing.T) {
	m, _ := newRegistered(t)
	m.AddReferenceBound(common.BoundingBoxFromPoints(mgl32.Vec3{-5, -5, -5}, mgl32.Vec3{5, 5, 5}), true)
	light := &movingLight{dir: mgl32.Vec3{0, -1, 0}}
	m.SetLightSource(light)

	require.NoError(t, m.PerFrameUpdate(pipeline.FrameInfo{Number: 1}))
	first := m.Sources()[0].View
	light.dir = mgl32.Vec3{1, -1, 0}
	require.NoError(t, m.PerFrameUpdate(pipeline.FrameInfo{Number: 2}))
	assert.False(t, first.ApproxEqual(m.Sources()[0].View))
}

type movingLight struct{ dir mgl32.Vec3 }

func (l *movingLight) Direction() mgl32.Vec3 { return l.dir.Normalize() }

func TestReferenceBoundPadding(t *testing.T) {
	m, err := NewModule("Shadow")
	require.NoError(t, err)
	b := common.BoundingBoxFromPoints(mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1})

	m.AddReferenceBound(b, true)
	assert.Equal(t, b, m.ReferenceBound())

	m.ClearReferenceBound()
	assert.False(t, m.ReferenceBound().Valid())

	m.AddReferenceBound(b, false)
	pad := b.Radius() * DefaultPadding
	assert.InDelta(t, -1-pad, m.ReferenceBound().Min.X(), 1e-5)
	assert.InDelta(t, 1+pad, m.ReferenceBound().Max.Z(), 1e-5)

	m.AddReferenceBound(common.BoundingBoxFromPoints(mgl32.Vec3{5, 5, 5}), true)
	assert.Equal(t, float32(5), m.ReferenceBound().Max.X())
}

func TestFrustumGeode(t *testing.T) {
	m, _ := newRegistered(t, WithCascades(2))
	assert.Nil(t, m.FrustumGeode())

	m, p := newRegistered(t, WithCascades(2), WithDebugFrustum(true))
	geode := m.FrustumGeode()
	require.NotNil(t, geode)
	assert.Equal(t, p.Masks().ForwardScene, geode.Mask())

	m.AddReferenceBound(common.BoundingBoxFromPoints(mgl32.Vec3{-5, 0, -5}, mgl32.Vec3{5, 2, 5}), true)
	m.SetLightSource(fixedLight{0.2, -1, 0})
	require.NoError(t, m.PerFrameUpdate(pipeline.FrameInfo{Number: 1}))

	geoms := geode.Geometries()
	require.Len(t, geoms, 1)
	assert.Len(t, geoms[0].Positions, 2*12*2)
}

func TestGPUData(t *testing.T) {
	m, _ := newRegistered(t, WithCascades(3), WithBias(0.002, 2))
	m.AddReferenceBound(common.BoundingBoxFromPoints(mgl32.Vec3{-5, 0, -5}, mgl32.Vec3{5, 2, 5}), true)
	m.SetLightSource(fixedLight{0, -1, 0.3})
	require.NoError(t, m.PerFrameUpdate(pipeline.FrameInfo{Number: 1}))

	data := m.GPUData()
	require.Len(t, data, 3*80)
	var sd GPUShadowData
	assert.Equal(t, 80, sd.Size())
}

func TestFrom(t *testing.T) {
	_, p := newRegistered(t)
	m, err := From(p, "Shadow")
	require.NoError(t, err)
	assert.Equal(t, Kind, m.Kind())

	_, err = From(p, "Missing")
	assert.ErrorIs(t, err, pipeline.ErrModuleNotFound)
}

func TestSplitDistances(t *testing.T) {
	for _, scheme := range []SplitScheme{SplitPractical, SplitGeometric, SplitUniform} {
		for _, r := range [][2]float32{{1, 100}, {-50, 50}, {-10, -1}, {0, 0.01}} {
			d := splitDistances(r[0], r[1], 8, scheme, DefaultSplitLambda)
			require.Len(t, d, 9)
			assert.Equal(t, r[0], d[0])
			assert.Equal(t, r[1], d[8])
			for i := 1; i < len(d); i++ {
				assert.Greater(t, d[i], d[i-1], "%s %v", scheme, r)
			}
		}
	}

	u := splitDistances(0, 100, 4, SplitUniform, 0)
	assert.InDeltaSlice(t, []float32{0, 25, 50, 75, 100}, u, 1e-4)

	far := splitDistances(1732050, 1732052, 8, SplitPractical, DefaultSplitLambda)
	for i := 1; i < len(far); i++ {
		assert.Greater(t, far[i], far[i-1])
	}

	g := splitDistances(1, 16, 4, SplitGeometric, 0)
	assert.InDeltaSlice(t, []float32{1, 2, 4, 8, 16}, g, 1e-3)
}

func TestParseSplitScheme(t *testing.T) {
	s, ok := ParseSplitScheme("geometric")
	assert.True(t, ok)
	assert.Equal(t, SplitGeometric, s)
	_, ok = ParseSplitScheme("log")
	assert.False(t, ok)
}
