package shader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-pipeline/common"
)

// Names of the shaders the graphics device builds its pipelines from.
const (
	ShaderDepth     = "depth"
	ShaderForward   = "forward"
	ShaderComposite = "composite"
	ShaderHUDDepth  = "hud_depth"
)

// Entry points every shader exposes.
const (
	VertexEntryPoint   = "vs_main"
	FragmentEntryPoint = "fs_main"
)

// ErrShaderNotFound is returned when a required shader is missing from a library.
var ErrShaderNotFound = errors.New("shader not found")

// Shader is one pre-processed WGSL module.
type Shader struct {
	// Name is the file name without the .wgsl extension.
	Name string

	// Path is the file the shader was read from.
	Path string

	// Source is the WGSL source with all annotations expanded.
	Source string

	// Declarations lists the generated @group/@binding declarations in source order.
	Declarations []Annotation
}

// HasFragment reports whether the shader declares a fragment entry point. Depth-only shaders may omit it.
func (s *Shader) HasFragment() bool {
	return strings.Contains(s.Source, "fn "+FragmentEntryPoint)
}

// library is the implementation of the Library interface.
type library struct {
	mu      *sync.RWMutex
	dir     string
	shaders map[string]*Shader
}

// Library holds the pre-processed shaders of one directory. Files whose names start with an
// underscore are snippets: they can be included by other shaders but are not shaders themselves.
type Library interface {
	// Dir returns the directory the library was loaded from.
	Dir() string

	// Shader returns a shader by name.
	//
	// Parameters:
	//   - name: the file name without extension
	//
	// Returns:
	//   - *Shader: the shader, or nil
	//   - bool: whether the shader exists
	Shader(name string) (*Shader, bool)

	// Names returns the sorted names of all shaders.
	Names() []string

	// Require checks that every named shader is present.
	//
	// Parameters:
	//   - names: shader names
	//
	// Returns:
	//   - error: ErrShaderNotFound wrapped with the missing names
	Require(names ...string) error
}

var _ Library = &library{}

// LoadDir reads and pre-processes every .wgsl file in dir.
//
// Parameters:
//   - dir: the shader directory
//
// Returns:
//   - Library: the loaded shaders
//   - error: an error if the directory cannot be read or a shader fails to pre-process
func LoadDir(dir string) (Library, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read shader directory %s: %w", dir, err)
	}

	snippets := map[string]string{}
	sources := map[string]string{}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".wgsl" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read shader %s: %w", e.Name(), err)
		}
		name := strings.TrimSuffix(e.Name(), ".wgsl")
		if snippet, ok := strings.CutPrefix(name, "_"); ok {
			snippets[snippet] = string(data)
			continue
		}
		sources[name] = string(data)
	}

	lib := &library{mu: &sync.RWMutex{}, dir: dir, shaders: make(map[string]*Shader, len(sources))}
	pp := &preProcessor{snippets: snippets}
	for name, src := range sources {
		out, err := pp.process(name, src)
		if err != nil {
			return nil, err
		}
		lib.shaders[name] = &Shader{
			Name:         name,
			Path:         filepath.Join(dir, name+".wgsl"),
			Source:       out,
			Declarations: slices.Clone(pp.declarations),
		}
	}

	common.Logger().Debug("shader library loaded", "dir", dir, "shaders", len(lib.shaders), "snippets", len(snippets))
	return lib, nil
}

func (l *library) Dir() string {
	return l.dir
}

func (l *library) Shader(name string) (*Shader, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.shaders[name]
	return s, ok
}

func (l *library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.shaders))
	for n := range l.shaders {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

func (l *library) Require(names ...string) error {
	var missing []string
	for _, n := range names {
		if _, ok := l.Shader(n); !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w in %s: %s", ErrShaderNotFound, l.dir, strings.Join(missing, ", "))
	}
	return nil
}
