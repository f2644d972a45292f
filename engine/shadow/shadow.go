// Package shadow implements cascaded directional shadow maps as a pipeline module. The module
// splits a reference bound into depth slabs, fits one orthographic light camera to each slab and
// renders the shadow casters into one depth texture per cascade.
package shadow

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/camera"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/scene"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/texture"
	"github.com/go-gl/mathgl/mgl32"
)

// Kind is the module kind reported by shadow modules.
const Kind = "shadow"

// MaxCascades is the largest supported cascade count. It matches the number of shadow map slots
// scene passes bind.
const MaxCascades = 8

// DefaultResolution is the default width and height in texels of each cascade's depth texture.
const DefaultResolution = 2048

// DefaultBias is the constant depth bias applied to shadow comparisons to reduce shadow acne.
const DefaultBias float32 = 0.001

// DefaultNormalBiasScale is the multiplier applied to a cascade's world-space texel size to compute
// the normal-offset bias. Higher values reduce self-shadowing on concave geometry at the cost of
// slight shadow detachment from contact points. Typical values are 2.0 to 4.0.
const DefaultNormalBiasScale float32 = 3.0

// DefaultSplitLambda weights the geometric term of the practical split scheme.
const DefaultSplitLambda float32 = 0.75

// DefaultPadding is the fraction of a non-tight reference bound's radius added on every side.
const DefaultPadding float32 = 0.1

// DefaultMinExtent is the smallest extent a cascade may have on any axis, in world units.
const DefaultMinExtent float32 = 0.01

var (
	// ErrCascadeCount is returned by NewModule when the cascade count is outside [1, MaxCascades].
	ErrCascadeCount = errors.New("cascade count out of range")

	// ErrIndexOutOfRange is matched by errors.Is for IndexOutOfRangeError.
	ErrIndexOutOfRange = errors.New("shadow index out of range")
)

// IndexOutOfRangeError is returned by Texture for an index outside [0, ShadowNumber()).
type IndexOutOfRangeError struct {
	Index int
	Count int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("%s: %d not in [0, %d)", ErrIndexOutOfRange, e.Index, e.Count)
}

func (e *IndexOutOfRangeError) Unwrap() error {
	return ErrIndexOutOfRange
}

// LightSource is the light a shadow module follows. It is read every frame so a moving light
// moves its shadows.
type LightSource interface {
	// Direction returns the normalized direction the light travels.
	Direction() mgl32.Vec3
}

// Source is the state of one cascade after the most recent update.
type Source struct {
	Index      int
	View       mgl32.Mat4
	Projection mgl32.Mat4

	// SplitNear and SplitFar bound the slab of the view depth range this cascade covers.
	SplitNear, SplitFar float32

	Texture texture.Texture
	Camera  camera.Camera
}

// ViewProjection returns Projection * View.
func (s Source) ViewProjection() mgl32.Mat4 {
	return s.Projection.Mul4(s.View)
}

// Module is a cascaded shadow map module.
type Module interface {
	pipeline.Module

	// AddReferenceBound unions a world-space bound into the volume the cascades must cover.
	//
	// Parameters:
	//   - b: the bound
	//   - tight: false pads the bound by the padding fraction of its radius
	AddReferenceBound(b common.BoundingBox, tight bool)

	// ClearReferenceBound forgets every recorded bound.
	ClearReferenceBound()

	// ReferenceBound returns the recorded bound, invalid when none was added.
	ReferenceBound() common.BoundingBox

	// ShadowNumber returns the cascade count fixed at construction.
	ShadowNumber() int

	// Texture returns the depth texture of a cascade.
	//
	// Parameters:
	//   - i: the cascade index
	//
	// Returns:
	//   - texture.Texture: the depth texture
	//   - error: an *IndexOutOfRangeError, or an error if the module is not initialized
	Texture(i int) (texture.Texture, error)

	// MustTexture is Texture that panics on error.
	MustTexture(i int) texture.Texture

	// Textures returns every cascade texture in order.
	Textures() []texture.Texture

	// FrustumGeode returns the node holding the cascade outlines, or nil unless debug drawing is on.
	FrustumGeode() scene.Node

	// Sources returns a snapshot of every cascade.
	Sources() []Source

	// SetLightSource sets the light the cascades follow. nil disables updates.
	SetLightSource(ls LightSource)

	// LightSource returns the current light source, or nil.
	LightSource() LightSource

	// SetViewCamera sets the camera whose view direction the slabs are split along.
	// Without one, slabs are split along the light direction.
	SetViewCamera(cam camera.Camera)

	// GPUData returns the marshalled ShadowData of every cascade.
	GPUData() []byte

	// Resolution returns the width and height of each depth texture.
	Resolution() int
}

// module is the implementation of the Module interface.
type module struct {
	mu *sync.Mutex

	name            string
	cascadeCount    int
	resolution      int
	scheme          SplitScheme
	lambda          float32
	padding         float32
	minExtent       float32
	casterMask      common.NodeMask
	debug           bool
	bias            float32
	normalBiasScale float32

	bound    common.BoundingBox
	light    LightSource
	viewCam  camera.Camera
	textures []texture.Texture
	cameras  []camera.Camera
	cascades []cascade
	geode    scene.Node
}

var _ Module = &module{}

// NewModule creates a shadow module. Textures and cameras are created when the module is
// registered with a pipeline.
//
// Parameters:
//   - name: the registration name, usually "Shadow"
//   - options: functional options
//
// Returns:
//   - Module: the module
//   - error: ErrCascadeCount if the cascade count is outside [1, MaxCascades]
func NewModule(name string, options ...ModuleBuilderOption) (Module, error) {
	m := &module{
		mu:              &sync.Mutex{},
		name:            name,
		cascadeCount:    1,
		resolution:      DefaultResolution,
		scheme:          SplitPractical,
		lambda:          DefaultSplitLambda,
		padding:         DefaultPadding,
		minExtent:       DefaultMinExtent,
		bias:            DefaultBias,
		normalBiasScale: DefaultNormalBiasScale,
		bound:           common.NewBoundingBox(),
	}

	for _, option := range options {
		option(m)
	}

	if m.cascadeCount < 1 || m.cascadeCount > MaxCascades {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", ErrCascadeCount, m.cascadeCount, MaxCascades)
	}
	if m.resolution <= 0 {
		return nil, fmt.Errorf("shadow resolution must be positive, got %d", m.resolution)
	}
	if m.minExtent <= 0 {
		m.minExtent = DefaultMinExtent
	}
	return m, nil
}

// From returns the shadow module registered under name.
//
// Parameters:
//   - p: the pipeline
//   - name: the registration name
//
// Returns:
//   - Module: the module
//   - error: pipeline.ErrModuleNotFound or a *pipeline.KindMismatchError
func From(p pipeline.Pipeline, name string) (Module, error) {
	return pipeline.ModuleAs[Module](p, name)
}

func (m *module) Name() string {
	return m.name
}

func (m *module) Kind() string {
	return Kind
}

func (m *module) Initialize(p pipeline.Pipeline) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.textures) > 0 {
		return fmt.Errorf("shadow module %q is already initialized", m.name)
	}

	masks := p.Masks()
	if m.casterMask == 0 {
		m.casterMask = masks.ShadowCaster
	}

	dev := p.Device()
	textures := make([]texture.Texture, 0, m.cascadeCount)
	for i := range m.cascadeCount {
		t, err := dev.CreateTexture(texture.Descriptor{
			Label:  fmt.Sprintf("%s Cascade %d", m.name, i),
			Width:  uint32(m.resolution),
			Height: uint32(m.resolution),
			Format: texture.FormatDepth32Float,
			Usage:  texture.UsageRenderAttachment | texture.UsageTextureBinding,
		})
		if err != nil {
			for _, created := range textures {
				created.Release()
			}
			return fmt.Errorf("failed to create shadow map %d: %w", i, err)
		}
		textures = append(textures, t)
	}

	cameras := make([]camera.Camera, m.cascadeCount)
	for i, t := range textures {
		cameras[i] = camera.NewCamera(fmt.Sprintf("%s%d", m.name, i),
			camera.WithKind(camera.PassDepth),
			camera.WithRenderOrder(camera.PreRender, i),
			camera.WithReferenceFrame(camera.ReferenceAbsolute),
			camera.WithClear(camera.ClearDepth, mgl32.Vec4{}),
			camera.WithCullMask(m.casterMask),
			camera.WithTargets(nil, t),
		)
		p.AddPass(cameras[i])
	}
	m.textures, m.cameras = textures, cameras

	if m.debug {
		m.geode = scene.NewNode(m.name+" Frustum", scene.WithMask(masks.ForwardScene))
	}

	common.Logger().Debug("shadow module initialized",
		"name", m.name, "cascades", m.cascadeCount, "resolution", m.resolution, "scheme", m.scheme.String())
	return nil
}

func (m *module) PerFrameUpdate(frame pipeline.FrameInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.light == nil || !m.bound.Valid() || len(m.cameras) == 0 {
		return nil
	}
	dir := m.light.Direction()
	if l := float64(dir.Len()); !(l > 0) || math.IsInf(l, 0) {
		return fmt.Errorf("shadow module %q: light direction %v is not usable", m.name, dir)
	}
	dir = dir.Normalize()

	bound := m.bound.ClampMinExtent(m.minExtent)
	vf := viewFrame{forward: dir}
	if m.viewCam != nil {
		inv := m.viewCam.ViewMatrix().Inv()
		vf = viewFrame{eye: inv.Col(3).Vec3(), forward: inv.Col(2).Vec3().Mul(-1).Normalize()}
	}

	near, far := float32(0), float32(0)
	for i, c := range bound.Corners() {
		d := vf.depth(c)
		if i == 0 {
			near, far = d, d
			continue
		}
		near, far = min(near, d), max(far, d)
	}
	if ext := max(m.minExtent, common.MinResolvable(max(abs32(near), abs32(far)))); far-near < ext {
		far = near + ext
	}

	splits := splitDistances(near, far, m.cascadeCount, m.scheme, m.lambda)
	cascades, err := fitCascades(bound, dir, vf, splits, m.minExtent)
	if err != nil {
		return fmt.Errorf("shadow module %q: %w", m.name, err)
	}
	m.cascades = cascades
	for i, c := range m.cascades {
		m.cameras[i].SetViewMatrix(c.view)
		m.cameras[i].SetProjectionMatrix(c.projection)
	}

	if m.geode != nil {
		var segments []mgl32.Vec3
		for _, c := range m.cascades {
			segments = append(segments, frustumLines(c.projection.Mul4(c.view))...)
		}
		m.geode.SetGeometries(scene.NewLines(m.name+" Frustum Lines", segments, mgl32.Vec4{1, 1, 0, 1}))
	}
	return nil
}

func (m *module) AddReferenceBound(b common.BoundingBox, tight bool) {
	if !b.Valid() {
		return
	}
	if !tight {
		b = b.Padded(m.padding)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bound = m.bound.Union(b)
}

func (m *module) ClearReferenceBound() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bound = common.NewBoundingBox()
}

func (m *module) ReferenceBound() common.BoundingBox {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bound
}

func (m *module) ShadowNumber() int {
	return m.cascadeCount
}

func (m *module) Texture(i int) (texture.Texture, error) {
	if i < 0 || i >= m.cascadeCount {
		return nil, &IndexOutOfRangeError{Index: i, Count: m.cascadeCount}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.textures) == 0 {
		return nil, fmt.Errorf("shadow module %q is not registered with a pipeline", m.name)
	}
	return m.textures[i], nil
}

func (m *module) MustTexture(i int) texture.Texture {
	t, err := m.Texture(i)
	if err != nil {
		panic(err)
	}
	return t
}

func (m *module) Textures() []texture.Texture {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.textures)
}

func (m *module) FrustumGeode() scene.Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.geode
}

func (m *module) Sources() []Source {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Source, len(m.cameras))
	for i, cam := range m.cameras {
		out[i] = Source{
			Index:      i,
			View:       cam.ViewMatrix(),
			Projection: cam.ProjectionMatrix(),
			Texture:    m.textures[i],
			Camera:     cam,
		}
		if i < len(m.cascades) {
			out[i].SplitNear, out[i].SplitFar = m.cascades[i].splitNear, m.cascades[i].splitFar
		}
	}
	return out
}

func (m *module) SetLightSource(ls LightSource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.light = ls
}

func (m *module) LightSource() LightSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.light
}

func (m *module) SetViewCamera(cam camera.Camera) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.viewCam = cam
}

func (m *module) GPUData() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := make([]byte, 0, len(m.cascades)*80)
	for _, c := range m.cascades {
		texelWorld := c.width / float32(m.resolution)
		data := GPUShadowData{
			LightViewProj: c.projection.Mul4(c.view),
			TexelSize:     1 / float32(m.resolution),
			Bias:          m.bias,
			NormalBias:    texelWorld * m.normalBiasScale,
			SplitFar:      c.splitFar,
		}
		buf = append(buf, data.Marshal()...)
	}
	return buf
}

func (m *module) Resolution() int {
	return m.resolution
}
