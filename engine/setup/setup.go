// Package setup assembles the standard pass layout: cascaded shadow maps, an optional sky, the
// lit scene, forward overlays and the display composite.
package setup

import (
	"errors"
	"fmt"
	"os"

	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/camera"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/light"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/pipeline"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/renderer"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/scene"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/shadow"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/texture"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/viewer"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// ShadowModuleName is the name the standard shadow module is registered under.
	ShadowModuleName = "Shadow"

	// LightModuleName is the name the standard light module is registered under.
	LightModuleName = "Light"
)

// ErrShaderDir is returned when the shader directory does not exist or is not a directory.
var ErrShaderDir = errors.New("shader directory not found")

// Standard holds what SetupStandardPipeline created.
type Standard struct {
	Shadow shadow.Module
	Light  light.Module

	// Sky is nil when no usable skybox was configured.
	Sky     camera.Camera
	Scene   camera.Camera
	Forward camera.Camera
	Display camera.Camera

	// ColorTarget and DepthTarget are the offscreen targets the scene passes draw into.
	ColorTarget texture.Texture
	DepthTarget texture.Texture

	// SkyTexture is the decoded skybox, nil without a sky pass.
	SkyTexture texture.Texture
}

type options struct {
	skybox     string
	clearColor mgl32.Vec4
	shadowOpts []shadow.ModuleBuilderOption
	lightOpts  []light.ModuleBuilderOption
}

// SetupStandardPipeline loads the shaders, registers the "Shadow" and "Light" modules, and adds the
// standard passes to p. The viewer gets p as its pipeline and root as its scene data. On error
// the modules, passes and textures created by this call are removed again, so p can be reused.
//
// Parameters:
//   - p: the pipeline to configure
//   - v: the viewer whose main camera drives the cascades
//   - root: the scene root
//   - shaderDir: the directory holding the WGSL shaders
//   - width, height: the size of the offscreen scene targets
//   - opts: functional options
//
// Returns:
//   - *Standard: the created modules, cameras and targets
//   - error: ErrShaderDir, a shader error, a module registration error or a texture error
func SetupStandardPipeline(p pipeline.Pipeline, v viewer.Viewer, root scene.Node, shaderDir string, width, height int, opts ...SetupBuilderOption) (_ *Standard, err error) {
	o := &options{clearColor: mgl32.Vec4{0.1, 0.1, 0.12, 1}}
	for _, opt := range opts {
		opt(o)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", width, height)
	}

	if info, err := os.Stat(shaderDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrShaderDir, shaderDir)
	}
	if err := p.LoadShaders(shaderDir); err != nil {
		return nil, err
	}

	std := &Standard{}
	defer func() {
		if err != nil {
			std.rollback(p)
		}
	}()
	masks := p.Masks()
	dev := p.Device()

	sm, err := shadow.NewModule(ShadowModuleName, o.shadowOpts...)
	if err != nil {
		return nil, err
	}
	if err := p.RegisterModule(sm); err != nil {
		return nil, fmt.Errorf("failed to register shadow module: %w", err)
	}
	sm.SetViewCamera(v.Camera())
	std.Shadow = sm

	lm := light.NewModule(LightModuleName, o.lightOpts...)
	if err := p.RegisterModule(lm); err != nil {
		return nil, fmt.Errorf("failed to register light module: %w", err)
	}
	std.Light = lm

	if std.ColorTarget, err = dev.CreateTexture(texture.Descriptor{
		Label:  "Scene Color",
		Width:  uint32(width),
		Height: uint32(height),
		Format: texture.FormatRGBA8Unorm,
		Usage:  texture.UsageRenderAttachment | texture.UsageTextureBinding,
	}); err != nil {
		return nil, fmt.Errorf("failed to create scene color target: %w", err)
	}
	if std.DepthTarget, err = dev.CreateTexture(texture.Descriptor{
		Label:  "Scene Depth",
		Width:  uint32(width),
		Height: uint32(height),
		Format: texture.FormatDepth24Plus,
		Usage:  texture.UsageRenderAttachment,
	}); err != nil {
		return nil, fmt.Errorf("failed to create scene depth target: %w", err)
	}

	if o.skybox != "" {
		tex, err := loadSkybox(dev, o.skybox)
		switch {
		case errors.Is(err, common.ErrUnsupportedImage):
			common.Logger().Warn("skybox format not supported, sky pass skipped", "path", o.skybox, "error", err)
		case err != nil:
			return nil, err
		default:
			std.SkyTexture = tex
			std.Sky = camera.NewCamera("Sky",
				camera.WithKind(camera.PassFullscreen),
				camera.WithRenderOrder(camera.NestedRender, -1),
				camera.WithReferenceFrame(camera.ReferenceAbsolute),
				camera.WithClear(camera.ClearColor, o.clearColor),
				camera.WithReads(tex),
				camera.WithTargets(std.ColorTarget, nil),
			)
			p.AddPass(std.Sky)
		}
	}

	sceneClear := camera.ClearColor | camera.ClearDepth
	if std.Sky != nil {
		sceneClear = camera.ClearDepth
	}
	// reading the shadow maps puts a fence between the cascades and the lit scene
	std.Scene = camera.NewCamera("Scene",
		camera.WithKind(camera.PassScene),
		camera.WithRenderOrder(camera.NestedRender, 0),
		camera.WithClear(sceneClear, o.clearColor),
		camera.WithCullMask(masks.DeferredScene),
		camera.WithReads(sm.Textures()...),
		camera.WithTargets(std.ColorTarget, std.DepthTarget),
	)
	p.AddPass(std.Scene)

	std.Forward = camera.NewCamera("Forward",
		camera.WithKind(camera.PassScene),
		camera.WithRenderOrder(camera.NestedRender, 1),
		camera.WithCullMask(masks.ForwardScene),
		camera.WithTargets(std.ColorTarget, std.DepthTarget),
	)
	p.AddPass(std.Forward)

	std.Display = camera.NewCamera("Display",
		camera.WithKind(camera.PassFullscreen),
		camera.WithRenderOrder(camera.PostRender, 0),
		camera.WithReferenceFrame(camera.ReferenceAbsolute),
		camera.WithClear(camera.ClearColor, o.clearColor),
		camera.WithReads(std.ColorTarget),
	)
	p.AddPass(std.Display)

	v.Camera().SetAspect(float32(width) / float32(height))
	v.SetPipeline(p)
	v.SetSceneData(root)

	common.Logger().Info("standard pipeline ready",
		"shaders", shaderDir, "width", width, "height", height,
		"cascades", sm.ShadowNumber(), "sky", std.Sky != nil, "passes", len(p.Passes()))
	return std, nil
}

// rollback undoes a partial setup: it unregisters the modules this setup registered, removes its
// passes and releases its textures.
func (s *Standard) rollback(p pipeline.Pipeline) {
	for _, cam := range []camera.Camera{s.Sky, s.Scene, s.Forward, s.Display} {
		if cam != nil {
			p.RemovePass(cam)
		}
	}
	if s.Light != nil && p.Module(LightModuleName) == pipeline.Module(s.Light) {
		p.UnregisterModule(LightModuleName)
	}
	if s.Shadow != nil && p.Module(ShadowModuleName) == pipeline.Module(s.Shadow) {
		p.UnregisterModule(ShadowModuleName)
		for _, t := range s.Shadow.Textures() {
			t.Release()
		}
	}
	for _, t := range []texture.Texture{s.ColorTarget, s.DepthTarget, s.SkyTexture} {
		if t != nil {
			t.Release()
		}
	}
	common.Logger().Debug("standard pipeline setup rolled back")
}

// loadSkybox decodes an image file and uploads it into a new texture.
func loadSkybox(dev renderer.Device, path string) (texture.Texture, error) {
	img, err := common.DecodeImageFile(path)
	if err != nil {
		return nil, err
	}
	tex, err := dev.CreateTexture(texture.Descriptor{
		Label:  "Skybox",
		Width:  img.Width,
		Height: img.Height,
		Format: texture.FormatRGBA8Unorm,
		Usage:  texture.UsageTextureBinding | texture.UsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create skybox texture: %w", err)
	}
	if err := dev.WriteTexture(tex, img.Pixels); err != nil {
		tex.Release()
		return nil, fmt.Errorf("failed to upload skybox %s: %w", path, err)
	}
	return tex, nil
}
