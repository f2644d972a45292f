package loader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-pipeline/common"
	"github.com/Carmen-Shannon/oxy-pipeline/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// gltfLoaderBackend imports .gltf and .glb files with qmuntal/gltf.
type gltfLoaderBackend struct{}

var _ loaderBackend = &gltfLoaderBackend{}

func newGLTFLoaderBackend() loaderBackend {
	return &gltfLoaderBackend{}
}

// Import opens the document and converts the default scene (or every parentless node when no
// default scene is set) into a scene graph under a single root named after the file.
func (b *gltfLoaderBackend) Import(path string) (scene.Node, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gltf open: %w", err)
	}

	colors := make([]mgl32.Vec4, len(doc.Materials))
	for i, m := range doc.Materials {
		colors[i] = mgl32.Vec4{1, 1, 1, 1}
		if pbr := m.PBRMetallicRoughness; pbr != nil {
			cf := pbr.BaseColorFactorOrDefault()
			colors[i] = mgl32.Vec4{float32(cf[0]), float32(cf[1]), float32(cf[2]), float32(cf[3])}
		}
	}

	meshes := make([][]*scene.Geometry, len(doc.Meshes))
	for mi, m := range doc.Meshes {
		for pi, prim := range m.Primitives {
			g, primErr := readPrimitive(doc, m.Name, pi, prim)
			if primErr != nil {
				common.Logger().Warn("skipping gltf primitive", "mesh", mi, "primitive", pi, "error", primErr)
				continue
			}
			if prim.Material != nil && *prim.Material < len(colors) {
				g.Color = colors[*prim.Material]
			}
			meshes[mi] = append(meshes[mi], g)
		}
	}

	nodes := make([]scene.Node, len(doc.Nodes))
	for i, gn := range doc.Nodes {
		name := gn.Name
		if name == "" {
			name = fmt.Sprintf("node_%d", i)
		}
		n := scene.NewNode(name, scene.WithMatrix(nodeMatrix(gn)))
		if gn.Mesh != nil && *gn.Mesh < len(meshes) {
			for _, g := range meshes[*gn.Mesh] {
				n.AddGeometry(g)
			}
		}
		nodes[i] = n
	}

	hasParent := make([]bool, len(nodes))
	for i, gn := range doc.Nodes {
		for _, c := range gn.Children {
			if c < len(nodes) && c != i {
				nodes[i].AddChild(nodes[c])
				hasParent[c] = true
			}
		}
	}

	root := scene.NewNode(path)
	if doc.Scene != nil && *doc.Scene < len(doc.Scenes) {
		for _, idx := range doc.Scenes[*doc.Scene].Nodes {
			if idx < len(nodes) {
				root.AddChild(nodes[idx])
			}
		}
	} else {
		for i, n := range nodes {
			if !hasParent[i] {
				root.AddChild(n)
			}
		}
	}

	if len(root.Children()) == 0 {
		return nil, fmt.Errorf("gltf document has no nodes")
	}
	return root, nil
}

// nodeMatrix returns the node's local transform from its matrix, or from its TRS properties when no matrix is set.
func nodeMatrix(gn *gltf.Node) mgl32.Mat4 {
	if gn.Matrix != [16]float64{} {
		var m mgl32.Mat4
		for i, v := range gn.MatrixOrDefault() {
			m[i] = float32(v)
		}
		return m
	}

	t := gn.TranslationOrDefault()
	r := gn.RotationOrDefault()
	s := gn.ScaleOrDefault()

	return common.ComposeTRS(
		mgl32.Vec3{float32(t[0]), float32(t[1]), float32(t[2])},
		mgl32.Quat{W: float32(r[3]), V: mgl32.Vec3{float32(r[0]), float32(r[1]), float32(r[2])}},
		mgl32.Vec3{float32(s[0]), float32(s[1]), float32(s[2])},
	)
}

// readPrimitive converts one glTF mesh primitive into scene geometry.
func readPrimitive(doc *gltf.Document, meshName string, primIdx int, prim *gltf.Primitive) (*scene.Geometry, error) {
	g := &scene.Geometry{
		Name:  fmt.Sprintf("%s_p%d", meshName, primIdx),
		Color: mgl32.Vec4{1, 1, 1, 1},
	}

	switch prim.Mode {
	case gltf.PrimitiveTriangles:
		g.Primitive = scene.PrimitiveTriangles
	case gltf.PrimitiveLines:
		g.Primitive = scene.PrimitiveLines
	default:
		return nil, fmt.Errorf("unsupported primitive mode %d", prim.Mode)
	}

	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, fmt.Errorf("no POSITION attribute")
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	g.Positions = make([]mgl32.Vec3, len(positions))
	for i, p := range positions {
		g.Positions[i] = mgl32.Vec3(p)
	}

	if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
		normals, nErr := modeler.ReadNormal(doc, doc.Accessors[idx], nil)
		if nErr != nil {
			return nil, fmt.Errorf("normals: %w", nErr)
		}
		if len(normals) == len(positions) {
			g.Normals = make([]mgl32.Vec3, len(normals))
			for i, n := range normals {
				g.Normals[i] = mgl32.Vec3(n)
			}
		}
	}

	if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		uvs, uvErr := modeler.ReadTextureCoord(doc, doc.Accessors[idx], nil)
		if uvErr != nil {
			return nil, fmt.Errorf("texcoords: %w", uvErr)
		}
		if len(uvs) == len(positions) {
			g.TexCoords = make([]mgl32.Vec2, len(uvs))
			for i, uv := range uvs {
				g.TexCoords[i] = mgl32.Vec2(uv)
			}
		}
	}

	if prim.Indices != nil {
		indices, iErr := modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
		if iErr != nil {
			return nil, fmt.Errorf("indices: %w", iErr)
		}
		g.Indices = indices
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}
