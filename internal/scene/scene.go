// Package scene holds the loaded, renderable form of a glTF asset and the
// passes that prepare it for drawing: default filling, attribute
// generation, fit-to-view and world/joint matrix evaluation.
package scene

import (
	"encoding/binary"
	"fmt"
	"image"
	stdmath "math"

	"github.com/Faultbox/gltfview/pkg/gltf"
	"github.com/Faultbox/gltfview/pkg/math"
)

// None marks an absent optional index.
const None = -1

// MaxZeroFilledValues caps the components an accessor without a buffer
// view may declare. Such accessors decode to zeros, so nothing in the
// file bounds their size.
const MaxZeroFilledValues = 1 << 24

// Attribute semantics the viewer consumes.
const (
	AttrPosition  = "POSITION"
	AttrNormal    = "NORMAL"
	AttrTangent   = "TANGENT"
	AttrTexCoord0 = "TEXCOORD_0"
	AttrJoints0   = "JOINTS_0"
	AttrWeights0  = "WEIGHTS_0"
)

// BufferView is a window into a decoded buffer. Data aliases the buffer.
type BufferView struct {
	Data       []byte
	ByteStride int
	Target     int
}

// Accessor is a typed view over a BufferView. ByteStride is copied from
// the view at load time so readers never consult the view for layout.
type Accessor struct {
	BufferView    int
	ByteOffset    int
	ByteStride    int
	ComponentType gltf.ComponentType
	Type          string
	Components    int
	Count         int
	Normalized    bool
	Min, Max      []float32
}

// HasBounds reports whether the accessor declares a 3-component min and max.
func (a *Accessor) HasBounds() bool {
	return len(a.Min) >= 3 && len(a.Max) >= 3
}

func (a *Accessor) layout() gltf.Layout {
	return gltf.Layout{
		Offset:        a.ByteOffset,
		Stride:        a.ByteStride,
		Count:         a.Count,
		Components:    a.Components,
		ComponentType: a.ComponentType,
		Normalized:    a.Normalized,
	}
}

// Node is a scene graph node with every optional property resolved.
// Matrix is the local transform; the postprocessor fills it from TRS
// when the asset did not supply one.
type Node struct {
	Name        string
	Children    []int
	Mesh        int
	Skin        int
	HasMatrix   bool
	Matrix      math.Mat4
	Translation math.Vec3
	Rotation    math.Quat
	Scale       math.Vec3
}

// HasMesh reports whether the node references a mesh.
func (n *Node) HasMesh() bool { return n.Mesh != None }

// HasSkin reports whether the node references a skin.
func (n *Node) HasSkin() bool { return n.Skin != None }

// UpdateMatrix recomposes Matrix from the node's TRS properties.
func (n *Node) UpdateMatrix() {
	n.Matrix = math.FromTRS(n.Translation, n.Rotation, n.Scale)
}

type Mesh struct {
	Name       string
	Primitives []Primitive
}

// Primitive is one draw call worth of geometry.
type Primitive struct {
	Attributes map[string]int
	Indices    int
	Material   int
	Mode       int
}

// Attribute returns the accessor for a semantic, or None.
func (p *Primitive) Attribute(name string) int {
	if idx, ok := p.Attributes[name]; ok {
		return idx
	}
	return None
}

// HasAttribute reports whether the primitive declares the semantic.
func (p *Primitive) HasAttribute(name string) bool {
	_, ok := p.Attributes[name]
	return ok
}

// TextureRef points at a texture from a material slot.
type TextureRef struct {
	Index    int
	TexCoord int
	Scale    float32
}

// PBR holds the metallic-roughness parameters. Only the base color is shaded.
type PBR struct {
	BaseColorFactor          [4]float32
	BaseColorTexture         *TextureRef
	MetallicFactor           float32
	RoughnessFactor          float32
	MetallicRoughnessTexture *TextureRef
}

type Material struct {
	Name          string
	PBR           *PBR
	NormalTexture *TextureRef
	AlphaMode     string
	AlphaCutoff   float32
	DoubleSided   bool
}

// Texture binds an image to a sampler. Source is None for textures that
// only use extensions the viewer does not understand.
type Texture struct {
	Source  int
	Sampler int
}

// Image is a decoded texture source. Bitmap is nil when the image could
// not be fetched or decoded.
type Image struct {
	Name     string
	URI      string
	MimeType string
	Bitmap   *image.RGBA
}

// Skin binds joints to their inverse bind matrices. InverseBind is filled
// by the postprocessor and always has one entry per joint.
type Skin struct {
	Name                string
	Joints              []int
	Skeleton            int
	InverseBindAccessor int
	InverseBind         []math.Mat4
}

type Animation struct {
	Name     string
	Channels []Channel
	Samplers []Sampler
}

// Channel drives one TRS property of one node.
type Channel struct {
	Sampler int
	Node    int
	Path    string
}

// Sampler holds keyframe times and values. Times and Values are decoded
// by the postprocessor.
type Sampler struct {
	Input         int
	Output        int
	Interpolation string
	Times         []float32
	Values        []float32
}

// Scene is a loaded asset: the resolved document plus decoded buffers and
// images. It is replaced wholesale when another file is opened.
type Scene struct {
	Name          string
	RootNodes     []int
	Accessors     []Accessor
	BufferViews   []BufferView
	Nodes         []Node
	Meshes        []Mesh
	Materials     []Material
	Textures      []Texture
	Images        []Image
	Skins         []Skin
	Animations    []Animation
	MissingImages []string
}

func optIndex(p *int) int {
	if p == nil {
		return None
	}
	return *p
}

// New resolves a decoded document against its loaded buffers and images.
// buffers[i] backs doc.Buffers[i]; images may be shorter than doc.Images
// or contain nil entries for images that failed to load.
func New(doc *gltf.Document, buffers [][]byte, images []*image.RGBA) (*Scene, error) {
	if len(buffers) != len(doc.Buffers) {
		return nil, fmt.Errorf("%w: %d buffers declared, %d loaded", gltf.ErrMalformedAsset, len(doc.Buffers), len(buffers))
	}
	s := &Scene{}

	for i, b := range doc.Buffers {
		if len(buffers[i]) < b.ByteLength {
			return nil, fmt.Errorf("%w: buffer %d has %d bytes, declares %d", gltf.ErrMalformedAsset, i, len(buffers[i]), b.ByteLength)
		}
	}

	s.BufferViews = make([]BufferView, len(doc.BufferViews))
	for i, v := range doc.BufferViews {
		buf := buffers[v.Buffer]
		end := v.ByteOffset + v.ByteLength
		if v.ByteOffset < 0 || v.ByteLength < 0 || end > len(buf) {
			return nil, fmt.Errorf("%w: buffer view %d [%d,%d) outside buffer %d of %d bytes",
				gltf.ErrMalformedAsset, i, v.ByteOffset, end, v.Buffer, len(buf))
		}
		s.BufferViews[i] = BufferView{Data: buf[v.ByteOffset:end:end], ByteStride: v.ByteStride, Target: v.Target}
	}

	s.Accessors = make([]Accessor, len(doc.Accessors))
	for i, a := range doc.Accessors {
		comps, err := gltf.AccessorComponents(a.ComponentType, a.Type)
		if err != nil {
			return nil, fmt.Errorf("accessor %d: %w", i, err)
		}
		if a.Count < 0 || a.ByteOffset < 0 {
			return nil, fmt.Errorf("%w: accessor %d has count %d and offset %d",
				gltf.ErrMalformedAsset, i, a.Count, a.ByteOffset)
		}
		if a.BufferView == nil && a.Count > MaxZeroFilledValues/comps {
			return nil, fmt.Errorf("%w: accessor %d without a buffer view declares %d elements",
				gltf.ErrMalformedAsset, i, a.Count)
		}
		acc := Accessor{
			BufferView:    optIndex(a.BufferView),
			ByteOffset:    a.ByteOffset,
			ComponentType: a.ComponentType,
			Type:          a.Type,
			Components:    comps,
			Count:         a.Count,
			Normalized:    a.Normalized,
			Min:           a.Min,
			Max:           a.Max,
		}
		if acc.BufferView != None {
			view := &s.BufferViews[acc.BufferView]
			acc.ByteStride = view.ByteStride
			// Every later read and draw relies on this check.
			if err := acc.layout().Validate(view.Data); err != nil {
				return nil, fmt.Errorf("accessor %d: %w", i, err)
			}
		}
		s.Accessors[i] = acc
	}

	s.Nodes = make([]Node, len(doc.Nodes))
	for i, n := range doc.Nodes {
		node := Node{
			Name:        n.Name,
			Children:    n.Children,
			Mesh:        optIndex(n.Mesh),
			Skin:        optIndex(n.Skin),
			Translation: math.Vec3{},
			Rotation:    math.QuatIdentity(),
			Scale:       math.Vec3{X: 1, Y: 1, Z: 1},
		}
		if n.Matrix != nil {
			node.HasMatrix = true
			node.Matrix = math.Mat4(*n.Matrix)
		}
		if n.Translation != nil {
			node.Translation = math.Vec3From(n.Translation[:])
		}
		if n.Rotation != nil {
			node.Rotation = math.QuatFrom(n.Rotation[:])
		}
		if n.Scale != nil {
			node.Scale = math.Vec3From(n.Scale[:])
		}
		s.Nodes[i] = node
	}

	s.Meshes = make([]Mesh, len(doc.Meshes))
	for i, m := range doc.Meshes {
		mesh := Mesh{Name: m.Name, Primitives: make([]Primitive, len(m.Primitives))}
		for j, p := range m.Primitives {
			attrs := make(map[string]int, len(p.Attributes))
			for k, v := range p.Attributes {
				attrs[k] = v
			}
			mode := gltf.ModeTriangles
			if p.Mode != nil {
				mode = *p.Mode
			}
			mesh.Primitives[j] = Primitive{
				Attributes: attrs,
				Indices:    optIndex(p.Indices),
				Material:   optIndex(p.Material),
				Mode:       mode,
			}
		}
		s.Meshes[i] = mesh
	}

	s.Materials = make([]Material, len(doc.Materials))
	for i, m := range doc.Materials {
		s.Materials[i] = resolveMaterial(m)
	}

	s.Textures = make([]Texture, len(doc.Textures))
	for i, t := range doc.Textures {
		s.Textures[i] = Texture{Source: optIndex(t.Source), Sampler: optIndex(t.Sampler)}
	}

	s.Images = make([]Image, len(doc.Images))
	for i, img := range doc.Images {
		s.Images[i] = Image{Name: img.Name, URI: img.URI, MimeType: img.MimeType}
		if i < len(images) {
			s.Images[i].Bitmap = images[i]
		}
	}

	s.Skins = make([]Skin, len(doc.Skins))
	for i, sk := range doc.Skins {
		s.Skins[i] = Skin{
			Name:                sk.Name,
			Joints:              sk.Joints,
			Skeleton:            optIndex(sk.Skeleton),
			InverseBindAccessor: optIndex(sk.InverseBindMatrices),
		}
	}

	s.Animations = make([]Animation, len(doc.Animations))
	for i, a := range doc.Animations {
		anim := Animation{Name: a.Name}
		for _, smp := range a.Samplers {
			interp := smp.Interpolation
			if interp == "" {
				interp = gltf.InterpLinear
			}
			anim.Samplers = append(anim.Samplers, Sampler{Input: smp.Input, Output: smp.Output, Interpolation: interp})
		}
		for _, ch := range a.Channels {
			anim.Channels = append(anim.Channels, Channel{Sampler: ch.Sampler, Node: optIndex(ch.Target.Node), Path: ch.Target.Path})
		}
		s.Animations[i] = anim
	}

	s.RootNodes = rootNodes(doc)
	return s, nil
}

func resolveMaterial(m gltf.Material) Material {
	out := Material{
		Name:          m.Name,
		AlphaMode:     gltf.AlphaOpaque,
		AlphaCutoff:   0.5,
		DoubleSided:   m.DoubleSided,
		NormalTexture: resolveTexture(m.NormalTexture),
	}
	if m.AlphaMode != "" {
		out.AlphaMode = m.AlphaMode
	}
	if m.AlphaCutoff != nil {
		out.AlphaCutoff = *m.AlphaCutoff
	}
	if pbr := m.PBRMetallicRoughness; pbr != nil {
		p := &PBR{
			BaseColorFactor:          [4]float32{1, 1, 1, 1},
			BaseColorTexture:         resolveTexture(pbr.BaseColorTexture),
			MetallicFactor:           1,
			RoughnessFactor:          1,
			MetallicRoughnessTexture: resolveTexture(pbr.MetallicRoughnessTexture),
		}
		if pbr.BaseColorFactor != nil {
			p.BaseColorFactor = *pbr.BaseColorFactor
		}
		if pbr.MetallicFactor != nil {
			p.MetallicFactor = *pbr.MetallicFactor
		}
		if pbr.RoughnessFactor != nil {
			p.RoughnessFactor = *pbr.RoughnessFactor
		}
		out.PBR = p
	}
	return out
}

func resolveTexture(ti *gltf.TextureInfo) *TextureRef {
	if ti == nil {
		return nil
	}
	ref := &TextureRef{Index: ti.Index, TexCoord: ti.TexCoord, Scale: 1}
	if ti.Scale != nil {
		ref.Scale = *ti.Scale
	}
	return ref
}

// rootNodes picks the default scene's nodes, falling back to the first
// scene and then to every node that is nobody's child.
func rootNodes(doc *gltf.Document) []int {
	if len(doc.Scenes) > 0 {
		idx := 0
		if doc.Scene != nil {
			idx = *doc.Scene
		}
		return append([]int(nil), doc.Scenes[idx].Nodes...)
	}
	isChild := make([]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			isChild[c] = true
		}
	}
	var roots []int
	for i, child := range isChild {
		if !child {
			roots = append(roots, i)
		}
	}
	return roots
}

// Floats decodes an accessor into a dense float slice. Accessors without a
// buffer view decode to zeros.
func (s *Scene) Floats(accessor int) ([]float32, error) {
	if accessor < 0 || accessor >= len(s.Accessors) {
		return nil, fmt.Errorf("%w: accessor %d out of range", gltf.ErrMalformedAsset, accessor)
	}
	a := &s.Accessors[accessor]
	if a.BufferView == None {
		return make([]float32, a.Count*a.Components), nil
	}
	out, err := gltf.ReadFloats(s.BufferViews[a.BufferView].Data, a.layout())
	if err != nil {
		return nil, fmt.Errorf("accessor %d: %w", accessor, err)
	}
	return out, nil
}

// Indices returns the primitive's index list, or 0..n-1 over its POSITION
// count when the primitive is not indexed.
func (s *Scene) Indices(p *Primitive) ([]uint32, error) {
	if p.Indices == None {
		pos := p.Attribute(AttrPosition)
		if pos == None {
			return nil, nil
		}
		return gltf.SequentialIndices(s.Accessors[pos].Count), nil
	}
	a := &s.Accessors[p.Indices]
	if a.BufferView == None {
		return make([]uint32, a.Count), nil
	}
	out, err := gltf.ReadIndices(s.BufferViews[a.BufferView].Data, a.layout())
	if err != nil {
		return nil, fmt.Errorf("indices accessor %d: %w", p.Indices, err)
	}
	return out, nil
}

// AppendFloatAccessor stores data in a new tightly packed buffer view and
// returns the index of a new FLOAT accessor over it.
func (s *Scene) AppendFloatAccessor(data []float32, typ string) int {
	comps, err := gltf.Components(typ)
	if err != nil {
		panic(err)
	}
	buf := make([]byte, 4*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint32(buf[4*i:], stdmath.Float32bits(v))
	}
	s.BufferViews = append(s.BufferViews, BufferView{Data: buf})
	s.Accessors = append(s.Accessors, Accessor{
		BufferView:    len(s.BufferViews) - 1,
		ComponentType: gltf.Float,
		Type:          typ,
		Components:    comps,
		Count:         len(data) / comps,
	})
	return len(s.Accessors) - 1
}

// PrimitiveCount returns the number of primitives across all meshes.
func (s *Scene) PrimitiveCount() int {
	n := 0
	for i := range s.Meshes {
		n += len(s.Meshes[i].Primitives)
	}
	return n
}

// TextureImage returns the decoded bitmap behind a texture, or nil when
// the texture has no source or its image failed to load.
func (s *Scene) TextureImage(texture int) *image.RGBA {
	if texture < 0 || texture >= len(s.Textures) {
		return nil
	}
	src := s.Textures[texture].Source
	if src < 0 || src >= len(s.Images) {
		return nil
	}
	return s.Images[src].Bitmap
}
