// Package scenetest builds small glTF assets in memory for tests.
package scenetest

import (
	"encoding/binary"
	"encoding/json"
	stdmath "math"

	"github.com/Faultbox/gltfview/pkg/gltf"
)

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }

// Builder accumulates a document and its single binary buffer.
type Builder struct {
	Doc gltf.Document
	Bin []byte
}

// New returns a builder for an empty 2.0 asset.
func New() *Builder {
	return &Builder{Doc: gltf.Document{Asset: gltf.Asset{Version: "2.0", Generator: "scenetest"}}}
}

func (b *Builder) align() {
	for len(b.Bin)%4 != 0 {
		b.Bin = append(b.Bin, 0)
	}
}

func (b *Builder) view(data []byte) int {
	b.align()
	b.Doc.BufferViews = append(b.Doc.BufferViews, gltf.BufferView{
		Buffer:     0,
		ByteOffset: len(b.Bin),
		ByteLength: len(data),
	})
	b.Bin = append(b.Bin, data...)
	return len(b.Doc.BufferViews) - 1
}

// Floats stores FLOAT data and returns its accessor index.
func (b *Builder) Floats(data []float32, typ string) int {
	comps, err := gltf.Components(typ)
	if err != nil {
		panic(err)
	}
	raw := make([]byte, 4*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint32(raw[4*i:], stdmath.Float32bits(v))
	}
	v := b.view(raw)
	b.Doc.Accessors = append(b.Doc.Accessors, gltf.Accessor{
		BufferView:    Ptr(v),
		ComponentType: gltf.Float,
		Count:         len(data) / comps,
		Type:          typ,
	})
	return len(b.Doc.Accessors) - 1
}

// Positions stores VEC3 positions with their min/max bounds.
func (b *Builder) Positions(data []float32) int {
	idx := b.Floats(data, gltf.Vec3)
	lo := []float32{data[0], data[1], data[2]}
	hi := []float32{data[0], data[1], data[2]}
	for i := 3; i+2 < len(data); i += 3 {
		for c := 0; c < 3; c++ {
			lo[c] = min(lo[c], data[i+c])
			hi[c] = max(hi[c], data[i+c])
		}
	}
	b.Doc.Accessors[idx].Min = lo
	b.Doc.Accessors[idx].Max = hi
	return idx
}

// Indices stores UNSIGNED_SHORT indices and returns their accessor index.
func (b *Builder) Indices(idx []uint16) int {
	raw := make([]byte, 2*len(idx))
	for i, v := range idx {
		binary.LittleEndian.PutUint16(raw[2*i:], v)
	}
	v := b.view(raw)
	b.Doc.Accessors = append(b.Doc.Accessors, gltf.Accessor{
		BufferView:    Ptr(v),
		ComponentType: gltf.UnsignedShort,
		Count:         len(idx),
		Type:          gltf.Scalar,
	})
	return len(b.Doc.Accessors) - 1
}

// Mesh adds a mesh and returns its index.
func (b *Builder) Mesh(prims ...gltf.Primitive) int {
	b.Doc.Meshes = append(b.Doc.Meshes, gltf.Mesh{Primitives: prims})
	return len(b.Doc.Meshes) - 1
}

// Node adds a node and returns its index.
func (b *Builder) Node(n gltf.Node) int {
	b.Doc.Nodes = append(b.Doc.Nodes, n)
	return len(b.Doc.Nodes) - 1
}

// Material adds a material and returns its index.
func (b *Builder) Material(m gltf.Material) int {
	b.Doc.Materials = append(b.Doc.Materials, m)
	return len(b.Doc.Materials) - 1
}

// Texture adds an image embedded in the buffer plus a texture sampling it.
func (b *Builder) Texture(encoded []byte, mimeType string) int {
	v := b.view(encoded)
	b.Doc.Images = append(b.Doc.Images, gltf.Image{BufferView: Ptr(v), MimeType: mimeType})
	b.Doc.Textures = append(b.Doc.Textures, gltf.Texture{Source: Ptr(len(b.Doc.Images) - 1)})
	return len(b.Doc.Textures) - 1
}

// Scene adds a scene over the given roots and makes it the default.
func (b *Builder) Scene(roots ...int) int {
	b.Doc.Scenes = append(b.Doc.Scenes, gltf.Scene{Nodes: roots})
	b.Doc.Scene = Ptr(len(b.Doc.Scenes) - 1)
	return len(b.Doc.Scenes) - 1
}

// Document finalizes the buffer declaration and returns the document.
func (b *Builder) Document() *gltf.Document {
	b.align()
	switch {
	case len(b.Bin) == 0:
	case len(b.Doc.Buffers) == 0:
		b.Doc.Buffers = []gltf.Buffer{{ByteLength: len(b.Bin)}}
	default:
		b.Doc.Buffers[0].ByteLength = len(b.Bin)
	}
	return &b.Doc
}

// Buffers returns the loaded-buffer slice matching Document.
func (b *Builder) Buffers() [][]byte {
	if len(b.Bin) == 0 {
		return nil
	}
	return [][]byte{b.Bin}
}

// JSON returns the document encoded as glTF JSON.
func (b *Builder) JSON() []byte {
	data, err := json.Marshal(b.Document())
	if err != nil {
		panic(err)
	}
	return data
}

// ExternalJSON returns the document with its buffer referenced by uri, for
// loading alongside the bytes from Bin.
func (b *Builder) ExternalJSON(uri string) []byte {
	b.Document()
	b.Doc.Buffers[0].URI = uri
	defer func() { b.Doc.Buffers[0].URI = "" }()
	return b.JSON()
}

// GLB returns the asset as a binary container.
func (b *Builder) GLB() []byte {
	data := b.JSON()
	bin := b.Bin
	if bin == nil {
		bin = []byte{}
	}
	return gltf.EncodeGLB(data, bin)
}

// Triangle returns a builder holding one unindexed, unlit triangle in the
// XY plane on a single root node.
func Triangle() *Builder {
	b := New()
	pos := b.Positions([]float32{0, 0, 0, 1, 0, 0, 0, 1, 0})
	mesh := b.Mesh(gltf.Primitive{Attributes: map[string]int{"POSITION": pos}})
	b.Scene(b.Node(gltf.Node{Mesh: Ptr(mesh)}))
	return b
}

// Box returns the 8 corners and 12 triangles of an axis-aligned box.
func Box(lo, hi [3]float32) ([]float32, []uint16) {
	var pos []float32
	for c := 0; c < 8; c++ {
		p := lo
		if c&1 != 0 {
			p[0] = hi[0]
		}
		if c&2 != 0 {
			p[1] = hi[1]
		}
		if c&4 != 0 {
			p[2] = hi[2]
		}
		pos = append(pos, p[:]...)
	}
	idx := []uint16{
		0, 2, 1, 1, 2, 3, // -Z
		4, 5, 6, 5, 7, 6, // +Z
		0, 1, 4, 1, 5, 4, // -Y
		2, 6, 3, 3, 6, 7, // +Y
		0, 4, 2, 2, 4, 6, // -X
		1, 3, 5, 3, 7, 5, // +X
	}
	return pos, idx
}
