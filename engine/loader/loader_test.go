package loader

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// triangleGLTF is a single indexed triangle with normals and texture coordinates,
// translated by +2 on x, with its buffer embedded as a data URI.
const triangleGLTF = `{
  "asset": {"version": "2.0"},
  "scene": 0,
  "scenes": [{"nodes": [0]}],
  "nodes": [{"name": "tri", "mesh": 0, "translation": [2, 0, 0]}],
  "meshes": [{"name": "tri", "primitives": [{"attributes": {"POSITION": 0, "NORMAL": 1, "TEXCOORD_0": 2}, "indices": 3}]}],
  "accessors": [
    {"bufferView": 0, "componentType": 5126, "count": 3, "type": "VEC3", "min": [0, 0, 0], "max": [1, 1, 0]},
    {"bufferView": 1, "componentType": 5126, "count": 3, "type": "VEC3"},
    {"bufferView": 2, "componentType": 5126, "count": 3, "type": "VEC2"},
    {"bufferView": 3, "componentType": 5123, "count": 3, "type": "SCALAR"}
  ],
  "bufferViews": [
    {"buffer": 0, "byteOffset": 0, "byteLength": 36},
    {"buffer": 0, "byteOffset": 36, "byteLength": 36},
    {"buffer": 0, "byteOffset": 72, "byteLength": 24},
    {"buffer": 0, "byteOffset": 96, "byteLength": 6}
  ],
  "buffers": [{"byteLength": 104, "uri": "data:application/octet-stream;base64,AAAAAAAAAAAAAAAAAACAPwAAAAAAAAAAAAAAAAAAgD8AAAAAAAAAAAAAAAAAAIA/AAAAAAAAAAAAAIA/AAAAAAAAAAAAAIA/AAAAAAAAAAAAAIA/AAAAAAAAAAAAAIA/AAABAAIAAAA="}]
}`

func writeTriangle(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tri.gltf")
	require.NoError(t, os.WriteFile(path, []byte(triangleGLTF), 0o644))
	return path
}

func TestLoadMissingFile(t *testing.T) {
	l := NewLoader()
	_, err := l.Load(filepath.Join(t.TempDir(), "missing.glb"))

	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestLoadUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.obj")
	require.NoError(t, os.WriteFile(path, []byte("v 0 0 0"), 0o644))

	_, err := NewLoader().Load(path)
	assert.ErrorContains(t, err, "unsupported model format")
}

func TestLoadGLTF(t *testing.T) {
	mask := common.DefaultMaskConfig().DeferredScene | common.DefaultMaskConfig().ShadowCaster
	l := NewLoader(WithMask(mask))

	root, err := l.Load(writeTriangle(t))
	require.NoError(t, err)
	assert.Equal(t, mask, root.Mask())

	children := root.Children()
	require.Len(t, children, 1)
	assert.Equal(t, "tri", children[0].Name())

	geoms := children[0].Geometries()
	require.Len(t, geoms, 1)
	assert.Equal(t, scene.PrimitiveTriangles, geoms[0].Primitive)
	assert.Equal(t, []uint32{0, 1, 2}, geoms[0].Indices)
	assert.True(t, geoms[0].HasTangentSpace())

	b := root.Bound()
	assert.InDelta(t, 2, b.Min.X(), 1e-6)
	assert.InDelta(t, 3, b.Max.X(), 1e-6)
	assert.InDelta(t, 1, b.Max.Y(), 1e-6)
}

func TestLoadCachesByPath(t *testing.T) {
	path := writeTriangle(t)
	l := NewLoader(WithTangents(false))

	first, err := l.Load(path)
	require.NoError(t, err)
	second, err := l.Load(path)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, first, l.Cached(path))
	assert.False(t, first.Children()[0].Geometries()[0].HasTangentSpace())

	l.Evict(path)
	assert.Nil(t, l.Cached(path))
}

func TestWithNode(t *testing.T) {
	n := scene.NewNode("prebuilt")
	l := NewLoader(WithNode("virtual/model.glb", n))

	got, err := l.Load("virtual/model.glb")
	require.NoError(t, err)
	assert.Equal(t, n, got)
}
