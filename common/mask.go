package common

import (
	"errors"
	"fmt"
)

// NodeMask is a bit set tagging a scene subgraph with the render categories it belongs to.
// A pass draws a node only when the node's mask and the pass's cull mask share a bit.
type NodeMask uint32

// MaskAll selects every category.
const MaskAll NodeMask = 0xFFFFFFFF

// Has reports whether m shares at least one bit with other.
func (m NodeMask) Has(other NodeMask) bool {
	return m&other != 0
}

// MaskConfig enumerates the render categories the pipeline recognises and the bit value of each.
// It is built once at startup and passed to every component that filters by mask.
type MaskConfig struct {
	// DeferredScene tags opaque geometry shaded by the deferred passes.
	DeferredScene NodeMask `toml:"deferred_scene"`

	// ShadowCaster tags geometry rendered into shadow maps.
	ShadowCaster NodeMask `toml:"shadow_caster"`

	// ForwardScene tags geometry drawn by forward passes after lighting (overlays, debug, HUD).
	ForwardScene NodeMask `toml:"forward_scene"`
}

// DefaultMaskConfig returns the standard category bits.
func DefaultMaskConfig() MaskConfig {
	return MaskConfig{
		DeferredScene: 0x00010000,
		ShadowCaster:  0x00020000,
		ForwardScene:  0x01000000,
	}
}

// Validate checks that every category has a bit and that no two categories overlap.
func (c MaskConfig) Validate() error {
	named := []struct {
		name string
		mask NodeMask
	}{
		{"deferred_scene", c.DeferredScene},
		{"shadow_caster", c.ShadowCaster},
		{"forward_scene", c.ForwardScene},
	}

	var errs []error
	for i, a := range named {
		if a.mask == 0 {
			errs = append(errs, fmt.Errorf("mask %s must not be zero", a.name))
		}
		for _, b := range named[i+1:] {
			if a.mask.Has(b.mask) {
				errs = append(errs, fmt.Errorf("masks %s and %s overlap (0x%08x & 0x%08x)", a.name, b.name, uint32(a.mask), uint32(b.mask)))
			}
		}
	}
	return errors.Join(errs...)
}
