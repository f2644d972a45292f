package shader

import (
	"fmt"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-pipeline/engine/camera"
)

// registryEntry pairs a WGSL struct source with the type name used in generated declarations.
type registryEntry struct {
	// Source is the raw WGSL struct definition text injected by @oxy:include.
	Source string

	// Type is the WGSL type name emitted in @oxy:group declarations.
	Type string
}

// drawUniformSource is the WGSL definition of the per-draw uniform. The device writes one
// DrawUniform per draw item at a 256-byte aligned dynamic offset.
const drawUniformSource = `struct DrawUniform {
    model: mat4x4<f32>,
    color: vec4<f32>,
    flags: vec4<u32>,
};`

var (
	registryMu     sync.RWMutex
	structRegistry = map[AnnotationArg]registryEntry{
		AnnotationArgCamera: {Source: camera.GPUCameraUniformSource, Type: "CameraUniform"},
		AnnotationArgDraw:   {Source: drawUniformSource, Type: "DrawUniform"},
	}
)

// RegisterStruct makes a GPU struct available to @oxy:include and @oxy:group annotations.
// Packages that own a GPU struct call it from init. Registering an existing key replaces it.
//
// Parameters:
//   - key: the annotation argument naming the struct
//   - source: the WGSL struct definition
//   - typeName: the WGSL type name declared by source
func RegisterStruct(key AnnotationArg, source, typeName string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	structRegistry[key] = registryEntry{Source: source, Type: typeName}
}

func lookupStruct(key AnnotationArg) (registryEntry, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	e, ok := structRegistry[key]
	return e, ok
}

// preProcessor expands annotations in one shader using the struct registry and the snippets
// of its library.
type preProcessor struct {
	snippets     map[string]string
	declarations []Annotation
}

// process expands all annotations in source. Snippet includes are expanded recursively and
// each struct or snippet is injected at most once per shader, which also breaks include cycles.
func (p *preProcessor) process(name, source string) (string, error) {
	p.declarations = p.declarations[:0]
	return p.expand(name, source, map[string]bool{name: true})
}

func (p *preProcessor) expand(name, source string, included map[string]bool) (string, error) {
	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))

	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", fmt.Errorf("%s: %w", name, err)
		}
		if a == nil {
			out = append(out, line)
			continue
		}

		switch a.Type {
		case annotationTypeInclude:
			key := string(a.Args[0])
			if included[key] {
				continue
			}
			if entry, ok := lookupStruct(a.Args[0]); ok {
				included[key] = true
				out = append(out, entry.Source)
				continue
			}
			snippet, ok := p.snippets[key]
			if !ok {
				return "", fmt.Errorf("%s: line %d: unknown @oxy:include argument %q", name, a.Line, key)
			}
			included[key] = true
			expanded, err := p.expand(key, snippet, included)
			if err != nil {
				return "", err
			}
			out = append(out, expanded)
		case AnnotationTypeBindingGroup:
			typeArg := string(a.Args[2])
			var wgslType string
			if inner, ok := strings.CutPrefix(typeArg, "array<"); ok {
				inner = strings.TrimSuffix(inner, ">")
				entry, ok := lookupStruct(AnnotationArg(inner))
				if !ok {
					return "", fmt.Errorf("%s: line %d: unknown array element type %q", name, a.Line, inner)
				}
				wgslType = fmt.Sprintf("array<%s>", entry.Type)
			} else {
				entry, ok := lookupStruct(a.Args[2])
				if !ok {
					return "", fmt.Errorf("%s: line %d: unknown struct type %q", name, a.Line, typeArg)
				}
				wgslType = entry.Type
			}
			out = append(out, fmt.Sprintf("@group(%d) @binding(%d) %s %s: %s;",
				a.Group, a.Binding, addressSpaces[a.Args[0]], a.Args[1], wgslType))
			p.declarations = append(p.declarations, *a)
		}
	}
	return strings.Join(out, "\n"), nil
}
