package renderer

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/camera"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/scene"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/texture"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boxAt(name string, z float32, mask common.NodeMask) scene.Node {
	b := common.BoundingBoxFromPoints(mgl32.Vec3{-1, -1, -1}, mgl32.Vec3{1, 1, 1})
	return scene.NewNode(name,
		scene.WithMask(mask),
		scene.WithMatrix(mgl32.Translate3D(0, 0, z)),
		scene.WithGeometry(scene.NewBox(name, b, mgl32.Vec4{1, 1, 1, 1})),
	)
}

func TestDefaultRendererCullsAgainstFrustum(t *testing.T) {
	root := scene.NewNode("root", scene.WithChildren(
		boxAt("front", -10, common.MaskAll),
		boxAt("behind", 10, common.MaskAll),
	))
	cam := camera.NewCamera("Main")

	pass := NewDefaultRenderer(cam).Cull(root, cam)

	require.Len(t, pass.Items, 1)
	assert.Equal(t, "front", pass.Items[0].Geometry.Name)
	assert.Equal(t, cam, pass.Camera)
}

func TestDefaultRendererHonorsCullMask(t *testing.T) {
	masks := common.DefaultMaskConfig()
	root := scene.NewNode("root", scene.WithChildren(
		boxAt("deferred", -10, masks.DeferredScene),
		boxAt("forward", -12, masks.ForwardScene),
	))
	cam := camera.NewCamera("Forward", camera.WithCullMask(masks.ForwardScene))

	pass := NewDefaultRenderer(cam).Cull(root, nil)

	require.Len(t, pass.Items, 1)
	assert.Equal(t, "forward", pass.Items[0].Geometry.Name)
}

func TestDefaultRendererUsesSubgraph(t *testing.T) {
	hud := boxAt("hud", -5, common.MaskAll)
	root := scene.NewNode("root", scene.WithChildren(boxAt("world", -10, common.MaskAll)))
	cam := camera.NewCamera("HUD",
		camera.WithSubgraph(hud),
		camera.WithReferenceFrame(camera.ReferenceAbsolute),
	)

	pass := NewDefaultRenderer(cam).Cull(root, nil)

	require.Len(t, pass.Items, 1)
	assert.Equal(t, "hud", pass.Items[0].Geometry.Name)
}

func TestFullscreenPassHasNoItems(t *testing.T) {
	root := scene.NewNode("root", scene.WithChildren(boxAt("world", -10, common.MaskAll)))
	cam := camera.NewCamera("Display", camera.WithKind(camera.PassFullscreen))

	pass := NewDefaultRenderer(cam).Cull(root, nil)
	assert.Empty(t, pass.Items)
}

func TestResolveMatrices(t *testing.T) {
	main := camera.NewCamera("Main", camera.WithView(mgl32.Translate3D(0, 0, -5)))

	t.Run("relative composes with main", func(t *testing.T) {
		offset := mgl32.Translate3D(1, 0, 0)
		cam := camera.NewCamera("Relative", camera.WithView(offset), camera.WithProjection(mgl32.Ident4()))
		view, proj := ResolveMatrices(cam, main)
		assert.True(t, view.ApproxEqual(offset.Mul4(main.ViewMatrix())))
		assert.True(t, proj.ApproxEqual(main.ProjectionMatrix()))
	})

	t.Run("absolute ignores main", func(t *testing.T) {
		ortho := common.OrthoZO(0, 1, 0, 1, -1, 1)
		cam := camera.NewCamera("HUD",
			camera.WithReferenceFrame(camera.ReferenceAbsolute),
			camera.WithProjection(ortho),
		)
		view, proj := ResolveMatrices(cam, main)
		assert.True(t, view.ApproxEqual(mgl32.Ident4()))
		assert.True(t, proj.ApproxEqual(ortho))
	})

	t.Run("main camera uses its own matrices", func(t *testing.T) {
		view, proj := ResolveMatrices(main, main)
		assert.True(t, view.ApproxEqual(main.ViewMatrix()))
		assert.True(t, proj.ApproxEqual(main.ProjectionMatrix()))
	})

	t.Run("nil main", func(t *testing.T) {
		cam := camera.NewCamera("Relative", camera.WithView(mgl32.Translate3D(1, 2, 3)))
		view, _ := ResolveMatrices(cam, nil)
		assert.True(t, view.ApproxEqual(mgl32.Translate3D(1, 2, 3)))
	})
}

func TestRecordingDeviceFrameProtocol(t *testing.T) {
	dev := NewRecordingDevice(640, 480)
	cam := camera.NewCamera("Main")

	assert.ErrorIs(t, dev.ExecutePass(Pass{Camera: cam}), ErrNoFrame)
	assert.ErrorIs(t, dev.Fence(), ErrNoFrame)
	assert.ErrorIs(t, dev.EndFrame(), ErrNoFrame)

	require.NoError(t, dev.BeginFrame())
	assert.ErrorIs(t, dev.BeginFrame(), ErrFrameInProgress)

	root := scene.NewNode("root", scene.WithChildren(boxAt("box", -10, common.MaskAll)))
	op := NewDefaultRenderer(cam)
	require.NoError(t, op.Draw(dev, op.Cull(root, cam)))
	require.NoError(t, dev.Fence())
	require.NoError(t, dev.EndFrame())
	dev.Present()

	cmds := dev.FrameCommands(1)
	ops := make([]CommandOp, len(cmds))
	for i, c := range cmds {
		ops[i] = c.Op
	}
	assert.Equal(t, []CommandOp{OpBeginFrame, OpPass, OpFence, OpEndFrame, OpPresent}, ops)
	assert.Equal(t, "Main", cmds[1].Pass)
	assert.Equal(t, 1, cmds[1].Items)
	assert.Equal(t, 1, dev.Frames())

	dev.Reset()
	assert.Empty(t, dev.Commands())
}

func TestRecordingDeviceTextures(t *testing.T) {
	dev := NewRecordingDevice(64, 64)

	_, err := dev.CreateTexture(texture.Descriptor{Label: "empty"})
	assert.Error(t, err)

	tex, err := dev.CreateTexture(texture.Descriptor{
		Label:  "albedo",
		Width:  2,
		Height: 2,
		Format: texture.FormatRGBA8Unorm,
		Usage:  texture.UsageTextureBinding | texture.UsageCopyDst,
	})
	require.NoError(t, err)
	assert.Nil(t, tex.Native())

	assert.Error(t, dev.WriteTexture(tex, make([]byte, 3)))
	require.NoError(t, dev.WriteTexture(tex, make([]byte, 16)))
	assert.Len(t, dev.Textures(), 1)

	dev.Release()
	assert.True(t, tex.Released())
	assert.Empty(t, dev.Textures())
}

func TestRecordingDeviceLogIsBounded(t *testing.T) {
	dev := NewRecordingDevice(1, 1).(*recordingDevice)
	dev.maxLog = 8
	for range 10 {
		require.NoError(t, dev.BeginFrame())
		require.NoError(t, dev.EndFrame())
	}
	assert.LessOrEqual(t, len(dev.Commands()), 8)
	assert.Equal(t, 10, dev.Frames())
	last := dev.Commands()[len(dev.Commands())-1]
	assert.Equal(t, OpEndFrame, last.Op)
	assert.Equal(t, 10, last.Frame)
}

func TestRecordingDeviceGlobalsAndSize(t *testing.T) {
	dev := NewRecordingDevice(100, 50)
	dev.SetSceneGlobals(SceneGlobals{Light: []byte{1, 2, 3}})
	assert.Equal(t, []byte{1, 2, 3}, dev.Globals().Light)

	dev.Resize(200, 100)
	w, h := dev.Size()
	assert.Equal(t, 200, w)
	assert.Equal(t, 100, h)
}

func TestMarshalDrawUniform(t *testing.T) {
	lines := scene.NewLines("edges", []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}}, mgl32.Vec4{1, 0, 0, 1})
	buf := make([]byte, drawUniformAlign)
	marshalDrawUniform(buf, scene.DrawItem{Geometry: lines, World: mgl32.Translate3D(4, 5, 6)})

	f := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:])) }
	assert.Equal(t, float32(4), f(48))
	assert.Equal(t, float32(6), f(56))
	assert.Equal(t, float32(1), f(64))
	assert.Equal(t, uint32(0), binary.LittleEndian.Uint32(buf[80:]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(buf[84:]))
}

func TestVariantFor(t *testing.T) {
	box := scene.NewBox("box", common.BoundingBoxFromPoints(mgl32.Vec3{}, mgl32.Vec3{1, 1, 1}), mgl32.Vec4{1, 1, 1, 1})
	lines := scene.NewLines("lines", []mgl32.Vec3{{0, 0, 0}, {1, 0, 0}}, mgl32.Vec4{1, 1, 1, 1})
	depth := texture.New(texture.Descriptor{Label: "shadow", Width: 1, Height: 1, Format: texture.FormatDepth32Float}, nil, nil)
	hud := scene.NewQuad("hud", 0, 0, 1, 1, depth)

	v, ok := variantFor(camera.PassDepth, box)
	assert.True(t, ok)
	assert.Equal(t, variantDepth, v)

	_, ok = variantFor(camera.PassDepth, lines)
	assert.False(t, ok)

	v, _ = variantFor(camera.PassScene, lines)
	assert.Equal(t, variantForwardLines, v)

	v, _ = variantFor(camera.PassScene, hud)
	assert.Equal(t, variantHUDDepth, v)

	v, _ = variantFor(camera.PassScene, box)
	assert.Equal(t, variantForward, v)

	assert.Equal(t, wgpu.PresentModeFifo, presentModeToWGPU(PresentModeVSync))
	assert.Equal(t, wgpu.PresentModeImmediate, presentModeToWGPU(PresentModeUncapped))
}
