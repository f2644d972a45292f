// Package texture defines device-independent texture handles. Devices create the native
// resources; passes and modules only ever hold a Texture.
package texture

import (
	"fmt"
	"sync"
)

// Format identifies the pixel layout of a texture.
type Format int

const (
	// FormatRGBA8Unorm is an 8-bit per channel color format.
	FormatRGBA8Unorm Format = iota

	// FormatBGRA8Unorm is the usual swapchain color format.
	FormatBGRA8Unorm

	// FormatRGBA16Float is a half-float color format used by G-buffer and HDR targets.
	FormatRGBA16Float

	// FormatDepth24Plus is a depth format with at least 24 bits of precision.
	FormatDepth24Plus

	// FormatDepth32Float is a 32-bit float depth format used for shadow maps.
	FormatDepth32Float
)

// IsDepth reports whether the format holds depth values.
func (f Format) IsDepth() bool {
	return f == FormatDepth24Plus || f == FormatDepth32Float
}

// String returns a readable name for the format.
func (f Format) String() string {
	switch f {
	case FormatRGBA8Unorm:
		return "rgba8unorm"
	case FormatBGRA8Unorm:
		return "bgra8unorm"
	case FormatRGBA16Float:
		return "rgba16float"
	case FormatDepth24Plus:
		return "depth24plus"
	case FormatDepth32Float:
		return "depth32float"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Usage is a bit set describing how a texture will be used.
type Usage uint32

const (
	// UsageRenderAttachment allows the texture to be a render pass target.
	UsageRenderAttachment Usage = 1 << iota

	// UsageTextureBinding allows the texture to be sampled by shaders.
	UsageTextureBinding

	// UsageCopyDst allows data uploads into the texture.
	UsageCopyDst
)

// Descriptor describes a texture to be allocated.
type Descriptor struct {
	Label  string
	Width  uint32
	Height uint32
	Format Format
	Usage  Usage
}

// Validate checks that the descriptor has a positive size.
func (d Descriptor) Validate() error {
	if d.Width == 0 || d.Height == 0 {
		return fmt.Errorf("texture %q has zero size %dx%d", d.Label, d.Width, d.Height)
	}
	return nil
}

// texture is the implementation of the Texture interface.
type texture struct {
	mu       sync.Mutex
	desc     Descriptor
	native   any
	release  func()
	released bool
}

// Texture is a handle to a texture owned by a device.
type Texture interface {
	// Label returns the debug label the texture was created with.
	Label() string

	// Descriptor returns the descriptor the texture was created with.
	Descriptor() Descriptor

	// Native returns the device-specific resource (for example a *wgpu.Texture), or nil for headless textures.
	Native() any

	// Released reports whether Release has been called.
	Released() bool

	// Release frees the device resource. Safe to call more than once.
	Release()
}

var _ Texture = &texture{}

// Allocator creates textures on a device.
type Allocator interface {
	// CreateTexture allocates a texture.
	//
	// Parameters:
	//   - desc: the texture description
	//
	// Returns:
	//   - Texture: the new texture handle
	//   - error: if the descriptor is invalid or the device allocation fails
	CreateTexture(desc Descriptor) (Texture, error)
}

// New wraps a device resource in a Texture handle. Devices call this after allocating.
//
// Parameters:
//   - desc: the descriptor used to allocate the resource
//   - native: the device resource, may be nil
//   - release: called once by Release, may be nil
//
// Returns:
//   - Texture: the texture handle
func New(desc Descriptor, native any, release func()) Texture {
	return &texture{desc: desc, native: native, release: release}
}

func (t *texture) Label() string {
	return t.desc.Label
}

func (t *texture) Descriptor() Descriptor {
	return t.desc
}

func (t *texture) Native() any {
	return t.native
}

func (t *texture) Released() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.released
}

func (t *texture) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.released {
		return
	}
	t.released = true
	if t.release != nil {
		t.release()
	}
}
