package renderer

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-pipeline/engine/shader"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/texture"
)

// DeviceType identifies the Device implementation.
type DeviceType int

const (
	// DeviceTypeWGPU selects the WebGPU device.
	DeviceTypeWGPU DeviceType = iota

	// DeviceTypeHeadless selects the recording device, which draws nothing.
	DeviceTypeHeadless
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// MaxShadowMaps is the number of shadow map slots bound to scene passes.
const MaxShadowMaps = 8

// ErrNoFrame is returned when a pass is executed outside BeginFrame/EndFrame.
var ErrNoFrame = errors.New("no frame in progress")

// ErrFrameInProgress is returned by BeginFrame when the previous frame was not ended.
var ErrFrameInProgress = errors.New("previous frame not ended")

// SceneGlobals is the per-frame data every scene pass binds: the light uniform, the extra light
// array, the per-cascade shadow data and the shadow maps themselves.
type SceneGlobals struct {
	// Light is the marshalled main light uniform.
	Light []byte

	// ExtraLights is the marshalled array of additional point and spot lights.
	ExtraLights []byte

	// Shadows is the marshalled array of per-cascade shadow data.
	Shadows []byte

	// ShadowMaps holds up to MaxShadowMaps depth textures, in cascade order.
	ShadowMaps []texture.Texture
}

// Device is the low-level graphics command submission interface. A frame is
// BeginFrame, any number of ExecutePass and Fence calls, EndFrame, then Present.
type Device interface {
	texture.Allocator

	// WriteTexture uploads RGBA8 pixels into a texture created with UsageCopyDst.
	//
	// Parameters:
	//   - t: the destination texture
	//   - pixels: width*height*4 bytes, row-major
	//
	// Returns:
	//   - error: if the texture is not owned by this device or the size does not match
	WriteTexture(t texture.Texture, pixels []byte) error

	// PrepareShaders gives the device the shaders its pipelines are built from.
	//
	// Parameters:
	//   - lib: a library containing at least the depth, forward, composite and hud_depth shaders
	//
	// Returns:
	//   - error: if a required shader is missing or fails to compile
	PrepareShaders(lib shader.Library) error

	// SetSceneGlobals replaces the light and shadow data bound by scene passes.
	//
	// Parameters:
	//   - g: the new globals
	SetSceneGlobals(g SceneGlobals)

	// BeginFrame acquires the frame's render target and starts recording.
	//
	// Returns:
	//   - error: ErrFrameInProgress or a surface acquisition error
	BeginFrame() error

	// ExecutePass records one pass.
	//
	// Parameters:
	//   - pass: the culled pass
	//
	// Returns:
	//   - error: ErrNoFrame or a resource creation error
	ExecutePass(pass Pass) error

	// Fence submits everything recorded so far, so later passes observe the writes of earlier ones.
	//
	// Returns:
	//   - error: ErrNoFrame or a submission error
	Fence() error

	// EndFrame submits the remaining work of the frame.
	//
	// Returns:
	//   - error: ErrNoFrame or a submission error
	EndFrame() error

	// Present shows the finished frame.
	Present()

	// Resize reconfigures the screen target.
	//
	// Parameters:
	//   - width, height: the new size in pixels
	Resize(width, height int)

	// Size returns the screen target size in pixels.
	Size() (width, height int)

	// Release frees every device resource.
	Release()
}
