// Package shader compiles and caches the GPU programs used to draw mesh
// primitives. One program exists per combination of capability defines;
// individual stages are cached by their own define subset so variants that
// only differ in one stage share the other.
package shader

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/gltfview/internal/gpu"
	"github.com/Faultbox/gltfview/internal/logger"
	"github.com/Faultbox/gltfview/internal/scene"
)

// MaxJoints is the number of joint matrices a skinned program accepts.
const MaxJoints = 20

const glslVersion = "#version 410 core"

// Capability defines.
const (
	DefineUVs              = "HAS_UVS"
	DefineSkinning         = "HAS_SKINNING"
	DefineBaseColorTexture = "HAS_BASE_COLOR_TEXTURE"
	DefineNormalTexture    = "HAS_NORMAL_TEXTURE"
)

var (
	ErrCompile = errors.New("shader compile failed")
	ErrLink    = errors.New("shader link failed")
)

// Variant is the capability set of a primitive/material pair.
type Variant struct {
	UVs              bool
	Skinning         bool
	BaseColorTexture bool
	NormalTexture    bool
}

// Features derives the variant used to draw prim with mat. Texture
// capabilities are only claimed when the referenced image actually loaded.
func Features(s *scene.Scene, prim *scene.Primitive, mat *scene.Material) Variant {
	var v Variant
	v.UVs = prim.HasAttribute(scene.AttrTexCoord0)
	v.Skinning = prim.HasAttribute(scene.AttrJoints0)
	if mat.PBR != nil && mat.PBR.BaseColorTexture != nil {
		v.BaseColorTexture = s.TextureImage(mat.PBR.BaseColorTexture.Index) != nil
	}
	if mat.NormalTexture != nil {
		v.NormalTexture = s.TextureImage(mat.NormalTexture.Index) != nil
	}
	return v
}

// VertexDefines returns the vertex stage defines in fixed order.
func (v Variant) VertexDefines() []string {
	var d []string
	if v.UVs {
		d = append(d, DefineUVs)
	}
	if v.Skinning {
		d = append(d, DefineSkinning)
	}
	return d
}

// FragmentDefines returns the fragment stage defines in fixed order.
func (v Variant) FragmentDefines() []string {
	var d []string
	if v.BaseColorTexture {
		d = append(d, DefineBaseColorTexture)
	}
	if v.NormalTexture {
		d = append(d, DefineNormalTexture)
	}
	return d
}

// Key identifies the program: vertex defines and fragment defines joined by '&'.
func (v Variant) Key() string {
	return strings.Join(v.VertexDefines(), ",") + "&" + strings.Join(v.FragmentDefines(), ",")
}

func (v Variant) String() string { return v.Key() }

// Source returns the full GLSL source for a stage with the given defines.
func Source(stage gpu.ShaderStage, defines []string) string {
	var b strings.Builder
	b.WriteString(glslVersion)
	b.WriteByte('\n')
	b.WriteString("#define MAX_JOINTS " + strconv.Itoa(MaxJoints) + "\n")
	for _, d := range defines {
		b.WriteString("#define " + d + "\n")
	}
	if stage == gpu.VertexStage {
		b.WriteString(meshVertexSource)
	} else {
		b.WriteString(meshFragmentSource)
	}
	return b.String()
}

// Attribute names in the vertex stage, by glTF semantic.
var attributeNames = map[string]string{
	scene.AttrPosition:  "position",
	scene.AttrNormal:    "normal",
	scene.AttrTexCoord0: "texcoord0",
	scene.AttrTangent:   "tangent",
	scene.AttrJoints0:   "joints0",
	scene.AttrWeights0:  "weights0",
}

// Uniforms holds uniform locations; -1 means the variant does not use it.
type Uniforms struct {
	ModelMatrix          int32
	ModelMatrixForNormal int32
	ViewMatrix           int32
	ProjectionMatrix     int32
	Bones                int32
	Color                int32
	ColorSampler         int32
	NormalSampler        int32
}

// Program is a linked variant.
type Program struct {
	Handle   gpu.Program
	Variant  Variant
	Uniforms Uniforms

	attribs map[string]int32
}

// Attribute returns the location bound to a glTF semantic, or -1 when the
// variant does not declare it.
func (p *Program) Attribute(semantic string) int32 {
	if loc, ok := p.attribs[semantic]; ok {
		return loc
	}
	return -1
}

// Semantics returns the glTF semantics this variant declares.
func (p *Program) Semantics() []string {
	out := []string{scene.AttrPosition, scene.AttrNormal}
	if p.Variant.UVs {
		out = append(out, scene.AttrTexCoord0, scene.AttrTangent)
	}
	if p.Variant.Skinning {
		out = append(out, scene.AttrJoints0, scene.AttrWeights0)
	}
	return out
}

type stageKey struct {
	stage   gpu.ShaderStage
	defines string
}

// Cache owns every compiled stage and linked program. It must only be used
// from the render thread.
type Cache struct {
	dev      gpu.Device
	log      *zap.Logger
	shaders  map[stageKey]gpu.Shader
	programs map[string]*Program
	failed   map[string]error
}

// NewCache returns an empty cache drawing on dev.
func NewCache(dev gpu.Device) *Cache {
	return &Cache{
		dev:      dev,
		log:      logger.Named("shader"),
		shaders:  make(map[stageKey]gpu.Shader),
		programs: make(map[string]*Program),
		failed:   make(map[string]error),
	}
}

// Program returns the program for v, compiling it on first use. A compile
// or link failure is returned once; afterwards the variant is known bad and
// Program returns nil with no error.
func (c *Cache) Program(v Variant) (*Program, error) {
	key := v.Key()
	if p, ok := c.programs[key]; ok {
		return p, nil
	}
	if _, ok := c.failed[key]; ok {
		return nil, nil
	}
	p, err := c.build(v)
	if err != nil {
		c.failed[key] = err
		c.log.Error("shader variant failed", zap.String("variant", key), zap.Error(err))
		return nil, err
	}
	c.programs[key] = p
	c.log.Debug("shader variant linked", zap.String("variant", key))
	return p, nil
}

// Failed reports whether v previously failed to build.
func (c *Cache) Failed(v Variant) bool {
	_, ok := c.failed[v.Key()]
	return ok
}

// Len returns the number of linked programs.
func (c *Cache) Len() int { return len(c.programs) }

func (c *Cache) build(v Variant) (*Program, error) {
	vs, err := c.stage(gpu.VertexStage, v.VertexDefines())
	if err != nil {
		return nil, err
	}
	fs, err := c.stage(gpu.FragmentStage, v.FragmentDefines())
	if err != nil {
		return nil, err
	}
	h, err := c.dev.LinkProgram(vs, fs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLink, v.Key(), err)
	}

	p := &Program{Handle: h, Variant: v, attribs: make(map[string]int32)}
	for _, sem := range p.Semantics() {
		if loc := c.dev.AttribLocation(h, attributeNames[sem]); loc >= 0 {
			p.attribs[sem] = loc
		}
	}
	p.Uniforms = Uniforms{
		ModelMatrix:          c.dev.UniformLocation(h, "modelMatrix"),
		ModelMatrixForNormal: c.dev.UniformLocation(h, "modelMatrixForNormal"),
		ViewMatrix:           c.dev.UniformLocation(h, "viewMatrix"),
		ProjectionMatrix:     c.dev.UniformLocation(h, "projectionMatrix"),
		Bones:                -1,
		Color:                c.dev.UniformLocation(h, "color"),
		ColorSampler:         -1,
		NormalSampler:        -1,
	}
	if v.Skinning {
		p.Uniforms.Bones = c.dev.UniformLocation(h, "bones")
	}
	if v.BaseColorTexture {
		p.Uniforms.ColorSampler = c.dev.UniformLocation(h, "colorSampler")
	}
	if v.NormalTexture {
		p.Uniforms.NormalSampler = c.dev.UniformLocation(h, "normalSampler")
	}
	return p, nil
}

// stage compiles or reuses a shader. Failed stages are not cached; the
// program-level failure record stops them from being retried.
func (c *Cache) stage(stage gpu.ShaderStage, defines []string) (gpu.Shader, error) {
	key := stageKey{stage: stage, defines: strings.Join(defines, ",")}
	if s, ok := c.shaders[key]; ok {
		return s, nil
	}
	s, err := c.dev.CompileShader(stage, Source(stage, defines))
	if err != nil {
		return 0, fmt.Errorf("%w: %s stage [%s]: %v", ErrCompile, stage, key.defines, err)
	}
	c.shaders[key] = s
	return s, nil
}

// Release deletes every program and stage and forgets failures.
func (c *Cache) Release() {
	for _, p := range c.programs {
		c.dev.DeleteProgram(p.Handle)
	}
	for _, s := range c.shaders {
		c.dev.DeleteShader(s)
	}
	clear(c.programs)
	clear(c.shaders)
	clear(c.failed)
}
