package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/camera"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/scene"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/texture"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingModule appends its name to a shared log on every update.
type recordingModule struct {
	name    string
	kind    string
	log     *[]string
	mu      *sync.Mutex
	initErr error
	tickErr error
	onInit  func(p Pipeline)
}

func (m *recordingModule) Name() string { return m.name }
func (m *recordingModule) Kind() string { return m.kind }

func (m *recordingModule) Initialize(p Pipeline) error {
	if m.onInit != nil {
		m.onInit(p)
	}
	return m.initErr
}

func (m *recordingModule) PerFrameUpdate(frame FrameInfo) error {
	m.mu.Lock()
	*m.log = append(*m.log, m.name)
	m.mu.Unlock()
	return m.tickErr
}

// otherModule is a distinct module type for kind mismatch checks.
type otherModule struct{ recordingModule }

func newRecorder(name string, log *[]string, mu *sync.Mutex) *recordingModule {
	return &recordingModule{name: name, kind: "recording", log: log, mu: mu}
}

func TestModulesTickInRegistrationOrder(t *testing.T) {
	p := NewPipeline(renderer.NewRecordingDevice(64, 64))
	var log []string
	mu := &sync.Mutex{}

	for _, name := range []string{"A", "B", "C"} {
		require.NoError(t, p.RegisterModule(newRecorder(name, &log, mu)))
	}
	for i := range 100 {
		require.NoError(t, p.PerFrameTick(FrameInfo{Number: uint64(i + 1)}))
	}

	require.Len(t, log, 300)
	for i := 0; i < len(log); i += 3 {
		assert.Equal(t, []string{"A", "B", "C"}, log[i:i+3])
	}
}

func TestRegisterDuplicateKeepsOriginal(t *testing.T) {
	p := NewPipeline(renderer.NewRecordingDevice(64, 64))
	var log []string
	mu := &sync.Mutex{}
	m1 := newRecorder("Shadow", &log, mu)
	m2 := newRecorder("Shadow", &log, mu)

	require.NoError(t, p.RegisterModule(m1))
	err := p.RegisterModule(m2)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateName)
	var dup *DuplicateNameError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "Shadow", dup.Name)
	assert.Same(t, m1, p.Module("Shadow"))
	assert.Len(t, p.Modules(), 1)
}

func TestModuleLookup(t *testing.T) {
	p := NewPipeline(renderer.NewRecordingDevice(64, 64))
	var log []string
	mu := &sync.Mutex{}
	require.NoError(t, p.RegisterModule(newRecorder("Light", &log, mu)))

	assert.Nil(t, p.Module("NonExistent"))

	m, err := ModuleAs[*recordingModule](p, "Light")
	require.NoError(t, err)
	assert.Equal(t, "Light", m.Name())

	_, err = ModuleAs[*recordingModule](p, "NonExistent")
	assert.ErrorIs(t, err, ErrModuleNotFound)

	_, err = ModuleAs[*otherModule](p, "Light")
	assert.ErrorIs(t, err, ErrModuleKindMismatch)
	var mismatch *KindMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "recording", mismatch.Got)

	assert.True(t, p.UnregisterModule("Light"))
	assert.False(t, p.UnregisterModule("Light"))
	assert.Nil(t, p.Module("Light"))
}

func TestInitializeFailureUnregisters(t *testing.T) {
	p := NewPipeline(renderer.NewRecordingDevice(64, 64))
	var log []string
	mu := &sync.Mutex{}
	keep := camera.NewCamera("Keep")
	p.AddPass(keep)

	bad := newRecorder("Broken", &log, mu)
	bad.initErr = errors.New("no textures")
	bad.onInit = func(p Pipeline) {
		p.AddPass(camera.NewCamera("Orphan"))
	}

	err := p.RegisterModule(bad)
	require.Error(t, err)
	assert.Nil(t, p.Module("Broken"))
	assert.Equal(t, []camera.Camera{keep}, p.Passes())

	// the name is free again
	require.NoError(t, p.RegisterModule(newRecorder("Broken", &log, mu)))
}

func TestUnregisterRemovesOwnedPasses(t *testing.T) {
	p := NewPipeline(renderer.NewRecordingDevice(64, 64))
	var log []string
	mu := &sync.Mutex{}
	keep := camera.NewCamera("Keep")
	p.AddPass(keep)

	owner := newRecorder("Owner", &log, mu)
	owner.onInit = func(p Pipeline) {
		p.AddPass(camera.NewCamera("Owned0", camera.WithRenderOrder(camera.PreRender, 0)))
		p.AddPass(camera.NewCamera("Owned1", camera.WithRenderOrder(camera.PreRender, 1)))
	}
	require.NoError(t, p.RegisterModule(owner))
	require.Len(t, p.Passes(), 3)

	later := camera.NewCamera("Later")
	p.AddPass(later)

	require.True(t, p.UnregisterModule("Owner"))
	assert.Equal(t, []camera.Camera{keep, later}, p.Passes())

	// the name and a fresh set of passes can be registered again
	require.NoError(t, p.RegisterModule(owner))
	assert.Len(t, p.Passes(), 4)
}

func TestPerFrameTickJoinsErrors(t *testing.T) {
	p := NewPipeline(renderer.NewRecordingDevice(64, 64))
	var log []string
	mu := &sync.Mutex{}

	first := newRecorder("First", &log, mu)
	first.tickErr = errors.New("boom")
	require.NoError(t, p.RegisterModule(first))
	require.NoError(t, p.RegisterModule(newRecorder("Second", &log, mu)))

	err := p.PerFrameTick(FrameInfo{Number: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, first.tickErr)
	assert.Equal(t, []string{"First", "Second"}, log)
}

func TestPassesAreSorted(t *testing.T) {
	p := NewPipeline(renderer.NewRecordingDevice(64, 64))
	hud := camera.NewCamera("HUD", camera.WithRenderOrder(camera.PostRender, 10000))
	shadow1 := camera.NewCamera("Shadow1", camera.WithRenderOrder(camera.PreRender, 1))
	shadow0 := camera.NewCamera("Shadow0", camera.WithRenderOrder(camera.PreRender, 0))
	sceneA := camera.NewCamera("SceneA")
	sceneB := camera.NewCamera("SceneB")

	for _, c := range []camera.Camera{hud, shadow1, sceneA, shadow0, sceneB, sceneA} {
		p.AddPass(c)
	}

	assert.Equal(t, []camera.Camera{shadow0, shadow1, sceneA, sceneB, hud}, p.Passes())

	assert.True(t, p.RemovePass(sceneB))
	assert.False(t, p.RemovePass(sceneB))
	assert.Len(t, p.Passes(), 4)
}

func TestCreateRendererDelegatesForForeignCameras(t *testing.T) {
	var created []string
	factory := func(cam camera.Camera) renderer.GraphicsOperation {
		created = append(created, cam.Name())
		return renderer.NewDefaultRenderer(cam)
	}
	p := NewPipeline(renderer.NewRecordingDevice(64, 64), WithFallbackRenderer(factory))

	owned := camera.NewCamera("Owned")
	p.AddPass(owned)

	assert.Same(t, p.CreateRenderer(owned), p.CreateRenderer(owned))
	assert.Empty(t, created)

	foreign := camera.NewCamera("Foreign")
	op := p.CreateRenderer(foreign)
	assert.Equal(t, foreign, op.Camera())
	assert.Equal(t, []string{"Foreign"}, created)
}

func TestParseThreadingModel(t *testing.T) {
	m, err := ParseThreadingModel("cull-parallel")
	require.NoError(t, err)
	assert.Equal(t, CullParallel, m)
	assert.Equal(t, "cull-parallel", m.String())

	m, err = ParseThreadingModel("")
	require.NoError(t, err)
	assert.Equal(t, SingleThreaded, m)

	_, err = ParseThreadingModel("draw-parallel")
	assert.Error(t, err)
}

// shadowedFrame builds a depth pass writing a texture and two scene passes, one reading it.
func shadowedFrame(t *testing.T, dev renderer.RecordingDevice, p Pipeline) scene.Node {
	t.Helper()
	depth, err := dev.CreateTexture(texture.Descriptor{
		Label:  "shadow",
		Width:  16,
		Height: 16,
		Format: texture.FormatDepth32Float,
		Usage:  texture.UsageRenderAttachment | texture.UsageTextureBinding,
	})
	require.NoError(t, err)

	p.AddPass(camera.NewCamera("Shadow",
		camera.WithKind(camera.PassDepth),
		camera.WithRenderOrder(camera.PreRender, 0),
		camera.WithReferenceFrame(camera.ReferenceAbsolute),
		camera.WithProjection(common.OrthoZO(-20, 20, -20, 20, -50, 50)),
		camera.WithTargets(nil, depth),
	))
	// relative passes are offsets from the main camera
	p.AddPass(camera.NewCamera("Sky", camera.WithRenderOrder(camera.PreRender, 1), camera.WithProjection(mgl32.Ident4())))
	p.AddPass(camera.NewCamera("Scene", camera.WithReads(depth), camera.WithProjection(mgl32.Ident4())))

	b := common.BoundingBoxFromPoints(mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1})
	return scene.NewNode("root", scene.WithChildren(
		scene.NewNode("box",
			scene.WithMatrix(mgl32.Translate3D(0, 0, -10)),
			scene.WithGeometry(scene.NewBox("box", b, mgl32.Vec4{1, 1, 1, 1})),
		),
	))
}

func renderFrames(t *testing.T, model ThreadingModel) renderer.RecordingDevice {
	t.Helper()
	dev := renderer.NewRecordingDevice(64, 64)
	p := NewPipeline(dev, WithThreadingModel(model), WithCullWorkers(2))
	defer p.Close()
	root := shadowedFrame(t, dev, p)
	main := camera.NewCamera("Main")

	for range 3 {
		require.NoError(t, dev.BeginFrame())
		require.NoError(t, p.Render(root, main))
		require.NoError(t, dev.EndFrame())
		dev.Present()
	}
	return dev
}

func opsOf(cmds []renderer.Command) []string {
	out := make([]string, 0, len(cmds))
	for _, c := range cmds {
		if c.Op == renderer.OpPass {
			out = append(out, fmt.Sprintf("%s:%s", c.Op, c.Pass))
		} else {
			out = append(out, string(c.Op))
		}
	}
	return out
}

func TestRenderFencesBeforeDependentPasses(t *testing.T) {
	want := []string{"begin", "pass:Shadow", "pass:Sky", "fence", "pass:Scene", "end", "present"}

	for _, model := range []ThreadingModel{SingleThreaded, CullParallel} {
		t.Run(model.String(), func(t *testing.T) {
			dev := renderFrames(t, model)
			assert.Equal(t, 3, dev.Frames())
			for frame := 1; frame <= 3; frame++ {
				assert.Equal(t, want, opsOf(dev.FrameCommands(frame)))
			}
			for _, c := range dev.FrameCommands(1) {
				if c.Op == renderer.OpPass && c.Pass != "Sky" {
					assert.Equal(t, 1, c.Items, c.Pass)
				}
			}
		})
	}
}

func TestRenderOutsideFrameFails(t *testing.T) {
	dev := renderer.NewRecordingDevice(64, 64)
	p := NewPipeline(dev)
	p.AddPass(camera.NewCamera("Scene"))
	err := p.Render(nil, nil)
	assert.ErrorIs(t, err, renderer.ErrNoFrame)
}

func TestStagesWithoutDependenciesNeedNoFence(t *testing.T) {
	a := camera.NewCamera("A")
	b := camera.NewCamera("B")
	assert.Len(t, stages([]camera.Camera{a, b}), 1)
	assert.Empty(t, stages(nil))
}
