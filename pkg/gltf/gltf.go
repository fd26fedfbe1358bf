// Package gltf decodes glTF 2.0 documents and GLB containers.
//
// The types in this package mirror the JSON wire format. Optional
// properties are pointers here; internal/scene resolves them to explicit
// presence flags and defaults once, right after decoding.
package gltf

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Component types.
const (
	Byte          ComponentType = 5120
	UnsignedByte  ComponentType = 5121
	Short         ComponentType = 5122
	UnsignedShort ComponentType = 5123
	UnsignedInt   ComponentType = 5125
	Float         ComponentType = 5126
)

// Accessor element shapes.
const (
	Scalar = "SCALAR"
	Vec2   = "VEC2"
	Vec3   = "VEC3"
	Vec4   = "VEC4"
	Mat2   = "MAT2"
	Mat3   = "MAT3"
	Mat4   = "MAT4"
)

// Primitive topologies.
const (
	ModePoints = iota
	ModeLines
	ModeLineLoop
	ModeLineStrip
	ModeTriangles
	ModeTriangleStrip
	ModeTriangleFan
)

// Material alpha modes.
const (
	AlphaOpaque = "OPAQUE"
	AlphaMask   = "MASK"
	AlphaBlend  = "BLEND"
)

// Animation channel target paths.
const (
	PathTranslation = "translation"
	PathRotation    = "rotation"
	PathScale       = "scale"
	PathWeights     = "weights"
)

// Sampler interpolation modes.
const (
	InterpLinear      = "LINEAR"
	InterpStep        = "STEP"
	InterpCubicSpline = "CUBICSPLINE"
)

// Document is the top-level glTF JSON object.
type Document struct {
	Asset       Asset        `json:"asset"`
	Accessors   []Accessor   `json:"accessors,omitempty"`
	Animations  []Animation  `json:"animations,omitempty"`
	Buffers     []Buffer     `json:"buffers,omitempty"`
	BufferViews []BufferView `json:"bufferViews,omitempty"`
	Images      []Image      `json:"images,omitempty"`
	Materials   []Material   `json:"materials,omitempty"`
	Meshes      []Mesh       `json:"meshes,omitempty"`
	Nodes       []Node       `json:"nodes,omitempty"`
	Samplers    []Sampler    `json:"samplers,omitempty"`
	Scene       *int         `json:"scene,omitempty"`
	Scenes      []Scene      `json:"scenes,omitempty"`
	Skins       []Skin       `json:"skins,omitempty"`
	Textures    []Texture    `json:"textures,omitempty"`

	ExtensionsUsed     []string `json:"extensionsUsed,omitempty"`
	ExtensionsRequired []string `json:"extensionsRequired,omitempty"`
}

// Asset carries metadata about the document.
type Asset struct {
	Version    string `json:"version"`
	MinVersion string `json:"minVersion,omitempty"`
	Generator  string `json:"generator,omitempty"`
	Copyright  string `json:"copyright,omitempty"`
}

type Accessor struct {
	BufferView    *int          `json:"bufferView,omitempty"`
	ByteOffset    int           `json:"byteOffset,omitempty"`
	ComponentType ComponentType `json:"componentType"`
	Normalized    bool          `json:"normalized,omitempty"`
	Count         int           `json:"count"`
	Type          string        `json:"type"`
	Max           []float32     `json:"max,omitempty"`
	Min           []float32     `json:"min,omitempty"`
	Name          string        `json:"name,omitempty"`
}

type Animation struct {
	Channels []Channel          `json:"channels"`
	Samplers []AnimationSampler `json:"samplers"`
	Name     string             `json:"name,omitempty"`
}

type Channel struct {
	Sampler int           `json:"sampler"`
	Target  ChannelTarget `json:"target"`
}

type ChannelTarget struct {
	Node *int   `json:"node,omitempty"`
	Path string `json:"path"`
}

type AnimationSampler struct {
	Input         int    `json:"input"`
	Output        int    `json:"output"`
	Interpolation string `json:"interpolation,omitempty"`
}

type Buffer struct {
	URI        string `json:"uri,omitempty"`
	ByteLength int    `json:"byteLength"`
	Name       string `json:"name,omitempty"`
}

type BufferView struct {
	Buffer     int    `json:"buffer"`
	ByteOffset int    `json:"byteOffset,omitempty"`
	ByteLength int    `json:"byteLength"`
	ByteStride int    `json:"byteStride,omitempty"`
	Target     int    `json:"target,omitempty"`
	Name       string `json:"name,omitempty"`
}

type Image struct {
	URI        string `json:"uri,omitempty"`
	MimeType   string `json:"mimeType,omitempty"`
	BufferView *int   `json:"bufferView,omitempty"`
	Name       string `json:"name,omitempty"`
}

type Material struct {
	Name                 string                `json:"name,omitempty"`
	PBRMetallicRoughness *PBRMetallicRoughness `json:"pbrMetallicRoughness,omitempty"`
	NormalTexture        *TextureInfo          `json:"normalTexture,omitempty"`
	OcclusionTexture     *TextureInfo          `json:"occlusionTexture,omitempty"`
	EmissiveTexture      *TextureInfo          `json:"emissiveTexture,omitempty"`
	EmissiveFactor       *[3]float32           `json:"emissiveFactor,omitempty"`
	AlphaMode            string                `json:"alphaMode,omitempty"`
	AlphaCutoff          *float32              `json:"alphaCutoff,omitempty"`
	DoubleSided          bool                  `json:"doubleSided,omitempty"`
}

type PBRMetallicRoughness struct {
	BaseColorFactor          *[4]float32  `json:"baseColorFactor,omitempty"`
	BaseColorTexture         *TextureInfo `json:"baseColorTexture,omitempty"`
	MetallicFactor           *float32     `json:"metallicFactor,omitempty"`
	RoughnessFactor          *float32     `json:"roughnessFactor,omitempty"`
	MetallicRoughnessTexture *TextureInfo `json:"metallicRoughnessTexture,omitempty"`
}

// TextureInfo references a texture. Scale applies to normal textures and
// Strength to occlusion textures.
type TextureInfo struct {
	Index    int      `json:"index"`
	TexCoord int      `json:"texCoord,omitempty"`
	Scale    *float32 `json:"scale,omitempty"`
	Strength *float32 `json:"strength,omitempty"`
}

type Mesh struct {
	Primitives []Primitive `json:"primitives"`
	Weights    []float32   `json:"weights,omitempty"`
	Name       string      `json:"name,omitempty"`
}

type Primitive struct {
	Attributes map[string]int `json:"attributes"`
	Indices    *int           `json:"indices,omitempty"`
	Material   *int           `json:"material,omitempty"`
	Mode       *int           `json:"mode,omitempty"`
}

type Node struct {
	Name        string       `json:"name,omitempty"`
	Children    []int        `json:"children,omitempty"`
	Mesh        *int         `json:"mesh,omitempty"`
	Skin        *int         `json:"skin,omitempty"`
	Camera      *int         `json:"camera,omitempty"`
	Matrix      *[16]float32 `json:"matrix,omitempty"`
	Translation *[3]float32  `json:"translation,omitempty"`
	Rotation    *[4]float32  `json:"rotation,omitempty"`
	Scale       *[3]float32  `json:"scale,omitempty"`
}

type Sampler struct {
	MagFilter int    `json:"magFilter,omitempty"`
	MinFilter int    `json:"minFilter,omitempty"`
	WrapS     int    `json:"wrapS,omitempty"`
	WrapT     int    `json:"wrapT,omitempty"`
	Name      string `json:"name,omitempty"`
}

type Scene struct {
	Nodes []int  `json:"nodes,omitempty"`
	Name  string `json:"name,omitempty"`
}

type Skin struct {
	InverseBindMatrices *int   `json:"inverseBindMatrices,omitempty"`
	Skeleton            *int   `json:"skeleton,omitempty"`
	Joints              []int  `json:"joints"`
	Name                string `json:"name,omitempty"`
}

type Texture struct {
	Sampler *int   `json:"sampler,omitempty"`
	Source  *int   `json:"source,omitempty"`
	Name    string `json:"name,omitempty"`
}

// Unmarshal decodes a glTF JSON document and checks that it declares
// a 2.x asset version.
func Unmarshal(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAsset, err)
	}
	if !strings.HasPrefix(doc.Asset.Version, "2.") && doc.Asset.Version != "2" {
		return nil, fmt.Errorf("%w: asset version %q", ErrUnsupportedVersion, doc.Asset.Version)
	}
	if err := doc.validateIndices(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// validateIndices checks every cross-reference in the document so later
// stages can index slices without bounds checks of their own.
func (d *Document) validateIndices() error {
	check := func(what string, idx, n int) error {
		if idx < 0 || idx >= n {
			return fmt.Errorf("%w: %s index %d out of range [0,%d)", ErrMalformedAsset, what, idx, n)
		}
		return nil
	}
	checkOpt := func(what string, idx *int, n int) error {
		if idx == nil {
			return nil
		}
		return check(what, *idx, n)
	}

	for i := range d.Accessors {
		if err := checkOpt("accessor.bufferView", d.Accessors[i].BufferView, len(d.BufferViews)); err != nil {
			return err
		}
	}
	for i := range d.BufferViews {
		if err := check("bufferView.buffer", d.BufferViews[i].Buffer, len(d.Buffers)); err != nil {
			return err
		}
	}
	for i := range d.Images {
		if err := checkOpt("image.bufferView", d.Images[i].BufferView, len(d.BufferViews)); err != nil {
			return err
		}
	}
	for i := range d.Textures {
		if err := checkOpt("texture.source", d.Textures[i].Source, len(d.Images)); err != nil {
			return err
		}
		if err := checkOpt("texture.sampler", d.Textures[i].Sampler, len(d.Samplers)); err != nil {
			return err
		}
	}
	for i := range d.Materials {
		m := &d.Materials[i]
		infos := []*TextureInfo{m.NormalTexture, m.OcclusionTexture, m.EmissiveTexture}
		if pbr := m.PBRMetallicRoughness; pbr != nil {
			infos = append(infos, pbr.BaseColorTexture, pbr.MetallicRoughnessTexture)
		}
		for _, ti := range infos {
			if ti == nil {
				continue
			}
			if err := check("material texture", ti.Index, len(d.Textures)); err != nil {
				return err
			}
		}
	}
	for i := range d.Meshes {
		for _, p := range d.Meshes[i].Primitives {
			for name, a := range p.Attributes {
				if err := check("attribute "+name, a, len(d.Accessors)); err != nil {
					return err
				}
			}
			if err := checkOpt("primitive.indices", p.Indices, len(d.Accessors)); err != nil {
				return err
			}
			if err := checkOpt("primitive.material", p.Material, len(d.Materials)); err != nil {
				return err
			}
		}
	}
	for i := range d.Nodes {
		n := &d.Nodes[i]
		for _, c := range n.Children {
			if err := check("node.children", c, len(d.Nodes)); err != nil {
				return err
			}
		}
		if err := checkOpt("node.mesh", n.Mesh, len(d.Meshes)); err != nil {
			return err
		}
		if err := checkOpt("node.skin", n.Skin, len(d.Skins)); err != nil {
			return err
		}
	}
	if err := checkOpt("scene", d.Scene, len(d.Scenes)); err != nil {
		return err
	}
	for i := range d.Scenes {
		for _, n := range d.Scenes[i].Nodes {
			if err := check("scene.nodes", n, len(d.Nodes)); err != nil {
				return err
			}
		}
	}
	for i := range d.Skins {
		s := &d.Skins[i]
		if err := checkOpt("skin.inverseBindMatrices", s.InverseBindMatrices, len(d.Accessors)); err != nil {
			return err
		}
		for _, j := range s.Joints {
			if err := check("skin.joints", j, len(d.Nodes)); err != nil {
				return err
			}
		}
	}
	for i := range d.Animations {
		a := &d.Animations[i]
		for _, s := range a.Samplers {
			if err := check("animation sampler input", s.Input, len(d.Accessors)); err != nil {
				return err
			}
			if err := check("animation sampler output", s.Output, len(d.Accessors)); err != nil {
				return err
			}
		}
		for _, c := range a.Channels {
			if err := check("channel.sampler", c.Sampler, len(a.Samplers)); err != nil {
				return err
			}
			if err := checkOpt("channel.target.node", c.Target.Node, len(d.Nodes)); err != nil {
				return err
			}
		}
	}
	return nil
}
