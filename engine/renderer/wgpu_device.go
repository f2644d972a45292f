package renderer

import (
	"encoding/binary"
	"fmt"
	"math"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/camera"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/scene"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/shader"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/texture"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

const (
	// vertexStride is position (3) + normal (3) + uv (2) + tangent (4) floats.
	vertexStride = 12 * 4

	// drawUniformSize is the size of the WGSL DrawUniform struct.
	drawUniformSize = 96

	// drawUniformAlign is the dynamic offset alignment required by WebGPU's default limits.
	drawUniformAlign = 256

	// lightUniformSize is the size of one WGSL LightUniform.
	lightUniformSize = 80

	// maxExtraLights is the capacity of the extra light array.
	maxExtraLights = 64

	// shadowDataSize is the size of one WGSL ShadowData.
	shadowDataSize = 80

	// meshEvictFrames is how many frames an unused geometry keeps its GPU buffers.
	meshEvictFrames = 120
)

// pipelineVariant selects the shader and primitive setup of a draw.
type pipelineVariant int

const (
	variantDepth pipelineVariant = iota
	variantForward
	variantForwardLines
	variantHUDDepth
	variantComposite
)

// pipelineKey identifies a cached render pipeline. The target formats are part of the key since a
// pipeline is only compatible with passes whose attachments match.
type pipelineKey struct {
	variant  pipelineVariant
	color    wgpu.TextureFormat
	depth    wgpu.TextureFormat
	hasColor bool
	hasDepth bool
}

// wgpuTexture is the native resource behind texture.Texture handles created by the wgpu device.
type wgpuTexture struct {
	tex  *wgpu.Texture
	view *wgpu.TextureView
}

// gpuMesh holds the uploaded buffers of one geometry.
type gpuMesh struct {
	vertex     *wgpu.Buffer
	index      *wgpu.Buffer
	indexCount uint32
	lastUse    uint64
}

// passResources holds the per-camera uniform buffers and bind groups. They are reused across frames.
type passResources struct {
	cameraBuf     *wgpu.Buffer
	drawBuf       *wgpu.Buffer
	drawCapacity  int
	cameraGroup   *wgpu.BindGroup
	sceneGroup    *wgpu.BindGroup
	sceneVersion  int
	drawGroup     *wgpu.BindGroup
	drawGroupSize int
}

// passTargets are the attachments a pass renders into.
type passTargets struct {
	colorView   *wgpu.TextureView
	colorFormat wgpu.TextureFormat
	depthView   *wgpu.TextureView
	depthFormat wgpu.TextureFormat
	screen      bool
}

// wgpuDevice is the WebGPU implementation of Device.
type wgpuDevice struct {
	mu *sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface

	surfaceFormat        wgpu.TextureFormat
	presentMode          wgpu.PresentMode
	forceFallbackAdapter bool
	clearColor           [4]float64
	width, height        int
	screenDepth          *wgpuTexture

	modules   map[string]*wgpu.ShaderModule
	pipelines map[pipelineKey]*wgpu.RenderPipeline

	cameraLayout    *wgpu.BindGroupLayout
	sceneLayout     *wgpu.BindGroupLayout
	drawLayout      *wgpu.BindGroupLayout
	materialLayout  *wgpu.BindGroupLayout
	depthTexLayout  *wgpu.BindGroupLayout
	compositeLayout *wgpu.BindGroupLayout

	linearSampler  *wgpu.Sampler
	nearestSampler *wgpu.Sampler
	shadowSampler  *wgpu.Sampler
	whiteTexture   *wgpuTexture
	dummyDepth     *wgpuTexture

	lightBuf       *wgpu.Buffer
	extraLightBuf  *wgpu.Buffer
	shadowBuf      *wgpu.Buffer
	shadowMaps     []texture.Texture
	globalsVersion int

	meshes         map[*scene.Geometry]*gpuMesh
	passes         map[string]*passResources
	textureGroups  map[texture.Texture]*wgpu.BindGroup
	compositeGroup map[texture.Texture]*wgpu.BindGroup
	textures       []texture.Texture

	// Frame state
	frameCount   uint64
	encoder      *wgpu.CommandEncoder
	frameSurface *wgpu.Texture
	frameView    *wgpu.TextureView
	screenDrawn  bool
}

var _ Device = &wgpuDevice{}

// NewWGPUDevice creates the WebGPU device for a window surface and configures the surface.
// Must be called from the thread that owns the window.
//
// Parameters:
//   - surfaceDescriptor: the platform surface descriptor from the window
//   - width, height: the initial surface size in pixels
//   - options: functional options
//
// Returns:
//   - Device: the device
//   - error: if no adapter or device could be acquired
func NewWGPUDevice(surfaceDescriptor *wgpu.SurfaceDescriptor, width, height int, options ...DeviceBuilderOption) (Device, error) {
	runtime.LockOSThread()
	d := &wgpuDevice{
		mu:             &sync.Mutex{},
		presentMode:    wgpu.PresentModeFifo,
		clearColor:     [4]float64{0.1, 0.1, 0.1, 1},
		modules:        make(map[string]*wgpu.ShaderModule),
		pipelines:      make(map[pipelineKey]*wgpu.RenderPipeline),
		meshes:         make(map[*scene.Geometry]*gpuMesh),
		passes:         make(map[string]*passResources),
		textureGroups:  make(map[texture.Texture]*wgpu.BindGroup),
		compositeGroup: make(map[texture.Texture]*wgpu.BindGroup),
	}
	for _, option := range options {
		option(d)
	}

	d.instance = wgpu.CreateInstance(nil)
	d.surface = d.instance.CreateSurface(surfaceDescriptor)

	a, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: d.forceFallbackAdapter,
		CompatibleSurface:    d.surface,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request adapter: %w", err)
	}
	d.adapter = a

	dev, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to request device: %w", err)
	}
	d.device = dev
	d.queue = dev.GetQueue()

	if err := d.createSharedResources(); err != nil {
		return nil, err
	}
	d.Resize(width, height)

	common.Logger().Info("wgpu device ready", "width", width, "height", height, "format", d.surfaceFormat)
	return d, nil
}

func presentModeToWGPU(mode PresentMode) wgpu.PresentMode {
	switch mode {
	case PresentModeUncapped:
		return wgpu.PresentModeImmediate
	default:
		return wgpu.PresentModeFifo
	}
}

func formatToWGPU(f texture.Format) wgpu.TextureFormat {
	switch f {
	case texture.FormatBGRA8Unorm:
		return wgpu.TextureFormatBGRA8Unorm
	case texture.FormatRGBA16Float:
		return wgpu.TextureFormatRGBA16Float
	case texture.FormatDepth24Plus:
		return wgpu.TextureFormatDepth24Plus
	case texture.FormatDepth32Float:
		return wgpu.TextureFormatDepth32Float
	default:
		return wgpu.TextureFormatRGBA8Unorm
	}
}

func usageToWGPU(u texture.Usage) wgpu.TextureUsage {
	var out wgpu.TextureUsage
	if u&texture.UsageRenderAttachment != 0 {
		out |= wgpu.TextureUsageRenderAttachment
	}
	if u&texture.UsageTextureBinding != 0 {
		out |= wgpu.TextureUsageTextureBinding
	}
	if u&texture.UsageCopyDst != 0 {
		out |= wgpu.TextureUsageCopyDst
	}
	return out
}

// createTextureLocked allocates a texture and its default view. Caller must hold the mutex.
func (d *wgpuDevice) createTextureLocked(label string, width, height uint32, format wgpu.TextureFormat, usage wgpu.TextureUsage) (*wgpuTexture, error) {
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: label,
		Size: wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         usage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create texture %q: %w", label, err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("failed to create view for texture %q: %w", label, err)
	}
	return &wgpuTexture{tex: tex, view: view}, nil
}

func (t *wgpuTexture) release() {
	if t == nil {
		return
	}
	t.view.Release()
	t.tex.Release()
}

// createSharedResources builds the bind group layouts, samplers, fallback textures and global
// buffers. They live until Release.
func (d *wgpuDevice) createSharedResources() error {
	var err error
	vsfs := wgpu.ShaderStageVertex | wgpu.ShaderStageFragment

	cameraEntry := wgpu.BindGroupLayoutEntry{
		Binding:    0,
		Visibility: vsfs,
		Buffer:     wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform},
	}
	if d.cameraLayout, err = d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "Camera Layout",
		Entries: []wgpu.BindGroupLayoutEntry{cameraEntry},
	}); err != nil {
		return err
	}

	sceneEntries := []wgpu.BindGroupLayoutEntry{
		cameraEntry,
		{Binding: 1, Visibility: wgpu.ShaderStageFragment, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeUniform}},
		{Binding: 2, Visibility: wgpu.ShaderStageFragment, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}},
	}
	for i := range MaxShadowMaps {
		entry := wgpu.BindGroupLayoutEntry{Binding: uint32(3 + i), Visibility: wgpu.ShaderStageFragment}
		entry.Texture.SampleType = wgpu.TextureSampleTypeDepth
		entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
		sceneEntries = append(sceneEntries, entry)
	}
	samplerEntry := wgpu.BindGroupLayoutEntry{Binding: 11, Visibility: wgpu.ShaderStageFragment}
	samplerEntry.Sampler.Type = wgpu.SamplerBindingTypeComparison
	sceneEntries = append(sceneEntries, samplerEntry,
		wgpu.BindGroupLayoutEntry{Binding: 12, Visibility: wgpu.ShaderStageFragment, Buffer: wgpu.BufferBindingLayout{Type: wgpu.BufferBindingTypeReadOnlyStorage}},
	)
	if d.sceneLayout, err = d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   "Scene Layout",
		Entries: sceneEntries,
	}); err != nil {
		return err
	}

	if d.drawLayout, err = d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Draw Layout",
		Entries: []wgpu.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: vsfs,
			Buffer: wgpu.BufferBindingLayout{
				Type:             wgpu.BufferBindingTypeUniform,
				HasDynamicOffset: true,
				MinBindingSize:   drawUniformSize,
			},
		}},
	}); err != nil {
		return err
	}

	textureLayout := func(label string, sampleType wgpu.TextureSampleType, samplerType wgpu.SamplerBindingType) (*wgpu.BindGroupLayout, error) {
		tex := wgpu.BindGroupLayoutEntry{Binding: 0, Visibility: wgpu.ShaderStageFragment}
		tex.Texture.SampleType = sampleType
		tex.Texture.ViewDimension = wgpu.TextureViewDimension2D
		samp := wgpu.BindGroupLayoutEntry{Binding: 1, Visibility: wgpu.ShaderStageFragment}
		samp.Sampler.Type = samplerType
		return d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label:   label,
			Entries: []wgpu.BindGroupLayoutEntry{tex, samp},
		})
	}
	if d.materialLayout, err = textureLayout("Material Layout", wgpu.TextureSampleTypeFloat, wgpu.SamplerBindingTypeFiltering); err != nil {
		return err
	}
	if d.depthTexLayout, err = textureLayout("Depth Texture Layout", wgpu.TextureSampleTypeDepth, wgpu.SamplerBindingTypeNonFiltering); err != nil {
		return err
	}
	if d.compositeLayout, err = textureLayout("Composite Layout", wgpu.TextureSampleTypeFloat, wgpu.SamplerBindingTypeFiltering); err != nil {
		return err
	}

	newSampler := func(label string, data common.SamplerStagingData) (*wgpu.Sampler, error) {
		return d.device.CreateSampler(&wgpu.SamplerDescriptor{
			Label:         label,
			AddressModeU:  common.Coalesce(data.AddressModeU, wgpu.AddressModeRepeat),
			AddressModeV:  common.Coalesce(data.AddressModeV, wgpu.AddressModeRepeat),
			AddressModeW:  common.Coalesce(data.AddressModeW, wgpu.AddressModeRepeat),
			MagFilter:     common.Coalesce(data.MagFilter, wgpu.FilterModeLinear),
			MinFilter:     common.Coalesce(data.MinFilter, wgpu.FilterModeLinear),
			MipmapFilter:  common.Coalesce(data.MipmapFilter, wgpu.MipmapFilterModeLinear),
			LodMinClamp:   common.Coalesce(data.LodMinClamp, 0.0),
			LodMaxClamp:   common.Coalesce(data.LodMaxClamp, 32.0),
			MaxAnisotropy: common.Coalesce(data.MaxAnisotropy, 1),
			Compare:       data.Compare,
		})
	}
	if d.linearSampler, err = newSampler("Linear Sampler", common.SamplerStagingData{}); err != nil {
		return err
	}
	if d.nearestSampler, err = newSampler("Nearest Sampler", common.SamplerStagingData{
		AddressModeU: wgpu.AddressModeClampToEdge,
		AddressModeV: wgpu.AddressModeClampToEdge,
		AddressModeW: wgpu.AddressModeClampToEdge,
		MagFilter:    wgpu.FilterModeNearest,
		MinFilter:    wgpu.FilterModeNearest,
		MipmapFilter: wgpu.MipmapFilterModeNearest,
	}); err != nil {
		return err
	}
	if d.shadowSampler, err = newSampler("Shadow Comparison Sampler", common.ShadowSamplerStagingData()); err != nil {
		return err
	}

	if d.whiteTexture, err = d.createTextureLocked("White Texture", 1, 1, wgpu.TextureFormatRGBA8Unorm,
		wgpu.TextureUsageTextureBinding|wgpu.TextureUsageCopyDst); err != nil {
		return err
	}
	d.writePixelsLocked(d.whiteTexture.tex, []byte{255, 255, 255, 255}, 1, 1)
	if d.dummyDepth, err = d.createTextureLocked("Empty Shadow Map", 1, 1, wgpu.TextureFormatDepth32Float,
		wgpu.TextureUsageTextureBinding|wgpu.TextureUsageRenderAttachment); err != nil {
		return err
	}

	newBuffer := func(label string, size uint64, usage wgpu.BufferUsage) (*wgpu.Buffer, error) {
		return d.device.CreateBuffer(&wgpu.BufferDescriptor{Label: label, Size: size, Usage: usage | wgpu.BufferUsageCopyDst})
	}
	if d.lightBuf, err = newBuffer("Light Buffer", lightUniformSize, wgpu.BufferUsageUniform); err != nil {
		return err
	}
	if d.extraLightBuf, err = newBuffer("Extra Light Buffer", lightUniformSize*maxExtraLights, wgpu.BufferUsageStorage); err != nil {
		return err
	}
	if d.shadowBuf, err = newBuffer("Shadow Data Buffer", shadowDataSize*MaxShadowMaps, wgpu.BufferUsageStorage); err != nil {
		return err
	}
	return nil
}

func (d *wgpuDevice) writePixelsLocked(tex *wgpu.Texture, pixels []byte, width, height uint32) {
	d.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		pixels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  width * 4,
			RowsPerImage: height,
		},
		&wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
	)
}

func (d *wgpuDevice) CreateTexture(desc texture.Descriptor) (texture.Texture, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	native, err := d.createTextureLocked(desc.Label, desc.Width, desc.Height, formatToWGPU(desc.Format), usageToWGPU(desc.Usage))
	if err != nil {
		return nil, err
	}
	t := texture.New(desc, native, native.release)
	d.textures = append(d.textures, t)
	return t, nil
}

func (d *wgpuDevice) WriteTexture(t texture.Texture, pixels []byte) error {
	native, ok := t.Native().(*wgpuTexture)
	if !ok {
		return fmt.Errorf("texture %q was not created by this device", t.Label())
	}
	desc := t.Descriptor()
	if want := int(desc.Width * desc.Height * 4); len(pixels) != want {
		return fmt.Errorf("texture %q expects %d bytes, got %d", desc.Label, want, len(pixels))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.writePixelsLocked(native.tex, pixels, desc.Width, desc.Height)
	return nil
}

func (d *wgpuDevice) PrepareShaders(lib shader.Library) error {
	names := []string{shader.ShaderDepth, shader.ShaderForward, shader.ShaderComposite, shader.ShaderHUDDepth}
	if err := lib.Require(names...); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, name := range names {
		s, _ := lib.Shader(name)
		module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
			Label: s.Name,
			WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
				Code: s.Source,
			},
		})
		if err != nil {
			return fmt.Errorf("failed to compile shader %s: %w", s.Path, err)
		}
		if old := d.modules[name]; old != nil {
			old.Release()
		}
		d.modules[name] = module
	}
	for k, p := range d.pipelines {
		p.Release()
		delete(d.pipelines, k)
	}
	return nil
}

func (d *wgpuDevice) SetSceneGlobals(g SceneGlobals) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(g.Light) > 0 {
		d.queue.WriteBuffer(d.lightBuf, 0, g.Light[:min(len(g.Light), lightUniformSize)])
	}
	if len(g.ExtraLights) > 0 {
		d.queue.WriteBuffer(d.extraLightBuf, 0, g.ExtraLights[:min(len(g.ExtraLights), lightUniformSize*maxExtraLights)])
	}
	if len(g.Shadows) > 0 {
		d.queue.WriteBuffer(d.shadowBuf, 0, g.Shadows[:min(len(g.Shadows), shadowDataSize*MaxShadowMaps)])
	}

	changed := len(g.ShadowMaps) != len(d.shadowMaps)
	for i := 0; !changed && i < len(g.ShadowMaps); i++ {
		changed = g.ShadowMaps[i] != d.shadowMaps[i]
	}
	if changed {
		d.shadowMaps = append(d.shadowMaps[:0], g.ShadowMaps...)
		d.globalsVersion++
	}
}

func (d *wgpuDevice) BeginFrame() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.frameSurface != nil || d.encoder != nil {
		return ErrFrameInProgress
	}

	surfaceTexture, err := d.surface.GetCurrentTexture()
	if err != nil {
		return err
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return err
	}
	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return err
	}

	d.encoder = encoder
	d.frameSurface = surfaceTexture
	d.frameView = view
	d.screenDrawn = false
	d.frameCount++
	return nil
}

// targetsFor resolves the attachments of a camera. Caller must hold the mutex.
func (d *wgpuDevice) targetsFor(cam camera.Camera) (passTargets, error) {
	var t passTargets

	if ct := cam.ColorTarget(); ct != nil {
		native, ok := ct.Native().(*wgpuTexture)
		if !ok {
			return t, fmt.Errorf("color target %q was not created by this device", ct.Label())
		}
		t.colorView = native.view
		t.colorFormat = formatToWGPU(ct.Descriptor().Format)
	} else if cam.Kind() != camera.PassDepth {
		t.colorView = d.frameView
		t.colorFormat = d.surfaceFormat
		t.screen = true
	}

	if dt := cam.DepthTarget(); dt != nil {
		native, ok := dt.Native().(*wgpuTexture)
		if !ok {
			return t, fmt.Errorf("depth target %q was not created by this device", dt.Label())
		}
		t.depthView = native.view
		t.depthFormat = formatToWGPU(dt.Descriptor().Format)
	} else if t.screen {
		t.depthView = d.screenDepth.view
		t.depthFormat = wgpu.TextureFormatDepth24Plus
	}

	if t.colorView == nil && t.depthView == nil {
		return t, fmt.Errorf("pass %q has no attachments", cam.Name())
	}
	return t, nil
}

// beginPass opens a render pass on the frame encoder with the camera's clear policy.
// Caller must hold the mutex.
func (d *wgpuDevice) beginPass(cam camera.Camera, t passTargets) *wgpu.RenderPassEncoder {
	mask := cam.ClearMask()
	desc := &wgpu.RenderPassDescriptor{Label: cam.Name()}

	if t.colorView != nil {
		c := cam.ClearColor()
		load := wgpu.LoadOpLoad
		if mask&camera.ClearColor != 0 || (t.screen && !d.screenDrawn) {
			load = wgpu.LoadOpClear
		}
		desc.ColorAttachments = []wgpu.RenderPassColorAttachment{{
			View:       t.colorView,
			LoadOp:     load,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: float64(c[0]), G: float64(c[1]), B: float64(c[2]), A: float64(c[3])},
		}}
	}
	if t.depthView != nil {
		load := wgpu.LoadOpLoad
		if mask&camera.ClearDepth != 0 || (t.screen && !d.screenDrawn) {
			load = wgpu.LoadOpClear
		}
		desc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            t.depthView,
			DepthLoadOp:     load,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: 1.0,
		}
	}
	if t.screen {
		d.screenDrawn = true
	}
	return d.encoder.BeginRenderPass(desc)
}

func (d *wgpuDevice) ExecutePass(pass Pass) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.encoder == nil {
		return ErrNoFrame
	}
	cam := pass.Camera
	targets, err := d.targetsFor(cam)
	if err != nil {
		return err
	}

	if cam.Kind() == camera.PassFullscreen {
		return d.executeFullscreen(cam, targets)
	}

	res, err := d.passResourcesFor(cam.Name(), len(pass.Items))
	if err != nil {
		return err
	}
	uniform := camera.NewGPUCameraUniform(cam)
	uniform.ViewProj = pass.ViewProjection()
	uniform.View = pass.View
	uniform.Projection = pass.Projection
	uniform.Position = eyePosition(pass.View)
	d.queue.WriteBuffer(res.cameraBuf, 0, uniform.Marshal())

	draws := make([]byte, len(pass.Items)*drawUniformAlign)
	for i, item := range pass.Items {
		marshalDrawUniform(draws[i*drawUniformAlign:], item)
	}
	if len(draws) > 0 {
		d.queue.WriteBuffer(res.drawBuf, 0, draws)
	}

	rp := d.beginPass(cam, targets)
	defer rp.End()

	for i, item := range pass.Items {
		g := item.Geometry
		variant, ok := variantFor(cam.Kind(), g)
		if !ok {
			continue
		}
		pipeline, err := d.pipelineFor(pipelineKey{
			variant:  variant,
			color:    targets.colorFormat,
			depth:    targets.depthFormat,
			hasColor: targets.colorView != nil,
			hasDepth: targets.depthView != nil,
		})
		if err != nil {
			return err
		}
		mesh, err := d.meshFor(g)
		if err != nil {
			return err
		}

		rp.SetPipeline(pipeline)
		switch variant {
		case variantDepth:
			rp.SetBindGroup(0, res.cameraGroup, nil)
		case variantHUDDepth:
			rp.SetBindGroup(0, res.cameraGroup, nil)
			group, err := d.textureGroupFor(g.Texture, d.depthTexLayout, d.nearestSampler, d.textureGroups)
			if err != nil {
				return err
			}
			rp.SetBindGroup(2, group, nil)
		default:
			sceneGroup, err := d.sceneGroupFor(res)
			if err != nil {
				return err
			}
			rp.SetBindGroup(0, sceneGroup, nil)
			var group *wgpu.BindGroup
			if g.Texture != nil {
				group, err = d.textureGroupFor(g.Texture, d.materialLayout, d.linearSampler, d.textureGroups)
			} else {
				group, err = d.textureGroupFor(nil, d.materialLayout, d.linearSampler, d.textureGroups)
			}
			if err != nil {
				return err
			}
			rp.SetBindGroup(2, group, nil)
		}
		rp.SetBindGroup(1, res.drawGroup, []uint32{uint32(i * drawUniformAlign)})
		rp.SetVertexBuffer(0, mesh.vertex, 0, wgpu.WholeSize)
		rp.SetIndexBuffer(mesh.index, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
		rp.DrawIndexed(mesh.indexCount, 1, 0, 0, 0)
	}
	return nil
}

// executeFullscreen draws the first read texture of a camera over its whole target.
// Caller must hold the mutex.
func (d *wgpuDevice) executeFullscreen(cam camera.Camera, targets passTargets) error {
	reads := cam.Reads()
	rp := d.beginPass(cam, targets)
	defer rp.End()
	if len(reads) == 0 {
		return nil
	}

	pipeline, err := d.pipelineFor(pipelineKey{
		variant:  variantComposite,
		color:    targets.colorFormat,
		depth:    targets.depthFormat,
		hasColor: targets.colorView != nil,
		hasDepth: targets.depthView != nil,
	})
	if err != nil {
		return err
	}
	group, err := d.textureGroupFor(reads[0], d.compositeLayout, d.linearSampler, d.compositeGroup)
	if err != nil {
		return err
	}
	rp.SetPipeline(pipeline)
	rp.SetBindGroup(0, group, nil)
	rp.Draw(3, 1, 0, 0)
	return nil
}

// variantFor picks the pipeline variant for a geometry in a pass. Lines never cast shadows.
func variantFor(kind camera.PassKind, g *scene.Geometry) (pipelineVariant, bool) {
	switch {
	case kind == camera.PassDepth:
		return variantDepth, g.Primitive == scene.PrimitiveTriangles
	case g.Texture != nil && g.Texture.Descriptor().Format.IsDepth():
		return variantHUDDepth, true
	case g.Primitive == scene.PrimitiveLines:
		return variantForwardLines, true
	default:
		return variantForward, true
	}
}

func eyePosition(view mgl32.Mat4) [3]float32 {
	return view.Inv().Col(3).Vec3()
}

// marshalDrawUniform writes one WGSL DrawUniform into buf.
func marshalDrawUniform(buf []byte, item scene.DrawItem) {
	for i := range 16 {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(item.World[i]))
	}
	for i := range 4 {
		binary.LittleEndian.PutUint32(buf[64+i*4:], math.Float32bits(item.Geometry.Color[i]))
	}
	var textured, unlit uint32
	if item.Geometry.Texture != nil {
		textured = 1
	}
	if item.Geometry.Primitive == scene.PrimitiveLines {
		unlit = 1
	}
	binary.LittleEndian.PutUint32(buf[80:], textured)
	binary.LittleEndian.PutUint32(buf[84:], unlit)
}

// passResourcesFor returns the uniform buffers of a camera, growing the draw buffer to hold
// itemCount draws. Caller must hold the mutex.
func (d *wgpuDevice) passResourcesFor(name string, itemCount int) (*passResources, error) {
	res := d.passes[name]
	if res == nil {
		res = &passResources{}
		buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: name + " Camera Buffer",
			Size:  224,
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return nil, err
		}
		res.cameraBuf = buf
		res.cameraGroup, err = d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:   name + " Camera Bind Group",
			Layout:  d.cameraLayout,
			Entries: []wgpu.BindGroupEntry{{Binding: 0, Buffer: buf, Offset: 0, Size: wgpu.WholeSize}},
		})
		if err != nil {
			return nil, err
		}
		res.sceneVersion = -1
		d.passes[name] = res
	}

	if itemCount > res.drawCapacity || res.drawBuf == nil {
		capacity := max(64, res.drawCapacity)
		for capacity < itemCount {
			capacity *= 2
		}
		if res.drawBuf != nil {
			res.drawGroup.Release()
			res.drawBuf.Release()
		}
		buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
			Label: name + " Draw Buffer",
			Size:  uint64(capacity * drawUniformAlign),
			Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return nil, err
		}
		group, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:   name + " Draw Bind Group",
			Layout:  d.drawLayout,
			Entries: []wgpu.BindGroupEntry{{Binding: 0, Buffer: buf, Offset: 0, Size: drawUniformSize}},
		})
		if err != nil {
			return nil, err
		}
		res.drawBuf, res.drawGroup, res.drawCapacity = buf, group, capacity
	}
	return res, nil
}

// sceneGroupFor returns the group 0 bind group of scene passes, rebuilding it when the shadow maps
// changed. Caller must hold the mutex.
func (d *wgpuDevice) sceneGroupFor(res *passResources) (*wgpu.BindGroup, error) {
	if res.sceneGroup != nil && res.sceneVersion == d.globalsVersion {
		return res.sceneGroup, nil
	}
	entries := []wgpu.BindGroupEntry{
		{Binding: 0, Buffer: res.cameraBuf, Size: wgpu.WholeSize},
		{Binding: 1, Buffer: d.lightBuf, Size: wgpu.WholeSize},
		{Binding: 2, Buffer: d.shadowBuf, Size: wgpu.WholeSize},
	}
	for i := range MaxShadowMaps {
		view := d.dummyDepth.view
		if i < len(d.shadowMaps) {
			if native, ok := d.shadowMaps[i].Native().(*wgpuTexture); ok {
				view = native.view
			}
		}
		entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(3 + i), TextureView: view})
	}
	entries = append(entries,
		wgpu.BindGroupEntry{Binding: 11, Sampler: d.shadowSampler},
		wgpu.BindGroupEntry{Binding: 12, Buffer: d.extraLightBuf, Size: wgpu.WholeSize},
	)

	group, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   "Scene Bind Group",
		Layout:  d.sceneLayout,
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}
	if res.sceneGroup != nil {
		res.sceneGroup.Release()
	}
	res.sceneGroup, res.sceneVersion = group, d.globalsVersion
	return group, nil
}

// textureGroupFor returns a cached texture + sampler bind group. A nil texture binds the white
// fallback texture. Caller must hold the mutex.
func (d *wgpuDevice) textureGroupFor(t texture.Texture, layout *wgpu.BindGroupLayout, sampler *wgpu.Sampler, cache map[texture.Texture]*wgpu.BindGroup) (*wgpu.BindGroup, error) {
	if g, ok := cache[t]; ok {
		return g, nil
	}
	view := d.whiteTexture.view
	label := "White"
	if t != nil {
		native, ok := t.Native().(*wgpuTexture)
		if !ok {
			return nil, fmt.Errorf("texture %q was not created by this device", t.Label())
		}
		view, label = native.view, t.Label()
	}
	group, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  label + " Texture Bind Group",
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, TextureView: view},
			{Binding: 1, Sampler: sampler},
		},
	})
	if err != nil {
		return nil, err
	}
	cache[t] = group
	return group, nil
}

// meshFor uploads a geometry on first use. Caller must hold the mutex.
func (d *wgpuDevice) meshFor(g *scene.Geometry) (*gpuMesh, error) {
	if m, ok := d.meshes[g]; ok {
		m.lastUse = d.frameCount
		return m, nil
	}

	vertices := make([]float32, 0, len(g.Positions)*12)
	for i, p := range g.Positions {
		var n [3]float32
		var uv [2]float32
		tangent := [4]float32{1, 0, 0, 1}
		if i < len(g.Normals) {
			n = g.Normals[i]
		}
		if i < len(g.TexCoords) {
			uv = g.TexCoords[i]
		}
		if i < len(g.Tangents) {
			tangent = g.Tangents[i]
		}
		vertices = append(vertices, p[0], p[1], p[2], n[0], n[1], n[2], uv[0], uv[1],
			tangent[0], tangent[1], tangent[2], tangent[3])
	}
	indices := g.Indices
	if len(indices) == 0 {
		indices = make([]uint32, len(g.Positions))
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	if len(vertices) == 0 || len(indices) == 0 {
		return nil, fmt.Errorf("geometry %q has no vertices", g.Name)
	}

	vertexData := common.SliceToBytes(vertices)
	vb, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: g.Name + " Vertex Buffer",
		Size:  uint64(len(vertexData)),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	d.queue.WriteBuffer(vb, 0, vertexData)

	indexData := common.SliceToBytes(indices)
	ib, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: g.Name + " Index Buffer",
		Size:  uint64(len(indexData)),
		Usage: wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		vb.Release()
		return nil, err
	}
	d.queue.WriteBuffer(ib, 0, indexData)

	m := &gpuMesh{vertex: vb, index: ib, indexCount: uint32(len(indices)), lastUse: d.frameCount}
	d.meshes[g] = m
	return m, nil
}

// pipelineFor builds or returns the render pipeline for a key. Caller must hold the mutex.
func (d *wgpuDevice) pipelineFor(key pipelineKey) (*wgpu.RenderPipeline, error) {
	if p, ok := d.pipelines[key]; ok {
		return p, nil
	}

	var (
		moduleName = shader.ShaderForward
		layouts    []*wgpu.BindGroupLayout
		topology   = wgpu.PrimitiveTopologyTriangleList
		cullMode   = wgpu.CullModeBack
		depthWrite = true
		compare    = wgpu.CompareFunctionLess
		depthBias  int32
		slopeScale float32
		buffers    = []wgpu.VertexBufferLayout{{
			ArrayStride: vertexStride,
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes: []wgpu.VertexAttribute{
				{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
				{Format: wgpu.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
				{Format: wgpu.VertexFormatFloat32x2, Offset: 24, ShaderLocation: 2},
				{Format: wgpu.VertexFormatFloat32x4, Offset: 32, ShaderLocation: 3},
			},
		}}
	)

	switch key.variant {
	case variantDepth:
		moduleName = shader.ShaderDepth
		layouts = []*wgpu.BindGroupLayout{d.cameraLayout, d.drawLayout}
		cullMode = wgpu.CullModeNone
		depthBias, slopeScale = 2, 2.0
	case variantForward:
		layouts = []*wgpu.BindGroupLayout{d.sceneLayout, d.drawLayout, d.materialLayout}
	case variantForwardLines:
		layouts = []*wgpu.BindGroupLayout{d.sceneLayout, d.drawLayout, d.materialLayout}
		topology = wgpu.PrimitiveTopologyLineList
		cullMode = wgpu.CullModeNone
	case variantHUDDepth:
		moduleName = shader.ShaderHUDDepth
		// group 1 is bound, group 0 and 2 of the hud shader use the camera and depth texture layouts
		layouts = []*wgpu.BindGroupLayout{d.cameraLayout, d.drawLayout, d.depthTexLayout}
		cullMode = wgpu.CullModeNone
	case variantComposite:
		moduleName = shader.ShaderComposite
		layouts = []*wgpu.BindGroupLayout{d.compositeLayout}
		buffers = nil
		cullMode = wgpu.CullModeNone
		depthWrite = false
		compare = wgpu.CompareFunctionAlways
	}

	module := d.modules[moduleName]
	if module == nil {
		return nil, fmt.Errorf("%w: %s (call PrepareShaders first)", shader.ErrShaderNotFound, moduleName)
	}

	pipelineLayout, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            moduleName + " Layout",
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return nil, err
	}

	desc := &wgpu.RenderPipelineDescriptor{
		Label:  moduleName + " Render Pipeline",
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: shader.VertexEntryPoint,
			Buffers:    buffers,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  topology,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  cullMode,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	}
	if key.hasColor {
		desc.Fragment = &wgpu.FragmentState{
			Module:     module,
			EntryPoint: shader.FragmentEntryPoint,
			Targets: []wgpu.ColorTargetState{{
				Format:    key.color,
				WriteMask: wgpu.ColorWriteMaskAll,
				Blend: &wgpu.BlendState{
					Color: wgpu.BlendComponent{
						SrcFactor: wgpu.BlendFactorSrcAlpha,
						DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						Operation: wgpu.BlendOperationAdd,
					},
					Alpha: wgpu.BlendComponent{
						SrcFactor: wgpu.BlendFactorOne,
						DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
						Operation: wgpu.BlendOperationAdd,
					},
				},
			}},
		}
	}
	if key.hasDepth {
		desc.DepthStencil = &wgpu.DepthStencilState{
			Format:              key.depth,
			DepthWriteEnabled:   depthWrite,
			DepthCompare:        compare,
			DepthBias:           depthBias,
			DepthBiasSlopeScale: slopeScale,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		}
	}

	p, err := d.device.CreateRenderPipeline(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s pipeline: %w", moduleName, err)
	}
	d.pipelines[key] = p
	return p, nil
}

// submitLocked finishes the frame encoder and submits it. Caller must hold the mutex.
func (d *wgpuDevice) submitLocked() error {
	commandBuffer, err := d.encoder.Finish(nil)
	d.encoder.Release()
	d.encoder = nil
	if err != nil {
		return fmt.Errorf("failed to finish command encoder: %w", err)
	}
	d.queue.Submit(commandBuffer)
	commandBuffer.Release()
	return nil
}

func (d *wgpuDevice) Fence() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.encoder == nil {
		return ErrNoFrame
	}
	if err := d.submitLocked(); err != nil {
		return err
	}
	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	d.encoder = encoder
	return nil
}

func (d *wgpuDevice) EndFrame() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.encoder == nil {
		return ErrNoFrame
	}
	if !d.screenDrawn {
		// nothing drew to the screen this frame; clear it so stale images are not presented
		c := d.clearColor
		rp := d.encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
			ColorAttachments: []wgpu.RenderPassColorAttachment{{
				View:       d.frameView,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{R: c[0], G: c[1], B: c[2], A: c[3]},
			}},
		})
		rp.End()
	}
	if err := d.submitLocked(); err != nil {
		return err
	}
	d.evictMeshesLocked()
	return nil
}

// evictMeshesLocked releases the buffers of geometry no pass has drawn recently, such as debug
// lines rebuilt every frame. Caller must hold the mutex.
func (d *wgpuDevice) evictMeshesLocked() {
	for g, m := range d.meshes {
		if m.lastUse+meshEvictFrames < d.frameCount {
			m.vertex.Release()
			m.index.Release()
			delete(d.meshes, g)
		}
	}
}

func (d *wgpuDevice) Present() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.frameSurface == nil {
		return
	}
	d.surface.Present()

	d.frameView.Release()
	d.frameView = nil
	d.frameSurface.Release()
	d.frameSurface = nil
}

func (d *wgpuDevice) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	capabilities := d.surface.GetCapabilities(d.adapter)
	d.surfaceFormat = capabilities.Formats[0]
	d.surface.Configure(d.adapter, d.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      d.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: d.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	d.screenDepth.release()
	depth, err := d.createTextureLocked("Depth Texture", uint32(width), uint32(height),
		wgpu.TextureFormatDepth24Plus, wgpu.TextureUsageRenderAttachment)
	if err != nil {
		common.Logger().Error("failed to recreate screen depth texture", "error", err)
		return
	}
	d.screenDepth = depth
	d.width, d.height = width, height
}

func (d *wgpuDevice) Size() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.width, d.height
}

func (d *wgpuDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, m := range d.meshes {
		m.vertex.Release()
		m.index.Release()
	}
	for _, res := range d.passes {
		res.cameraBuf.Release()
		if res.drawBuf != nil {
			res.drawBuf.Release()
		}
	}
	for _, p := range d.pipelines {
		p.Release()
	}
	for _, m := range d.modules {
		m.Release()
	}
	for _, t := range d.textures {
		t.Release()
	}
	d.meshes, d.passes, d.pipelines, d.modules, d.textures = nil, nil, nil, nil, nil

	d.whiteTexture.release()
	d.dummyDepth.release()
	d.screenDepth.release()
	d.lightBuf.Release()
	d.extraLightBuf.Release()
	d.shadowBuf.Release()
	d.device.Release()
	d.adapter.Release()
	d.surface.Release()
	d.instance.Release()
}
