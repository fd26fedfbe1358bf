// Package renderer draws a loaded scene: it keeps the GPU copies of buffer
// views and textures, picks a shader variant per primitive and issues the
// draw calls.
package renderer

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/gltfview/internal/animation"
	"github.com/Faultbox/gltfview/internal/engine/shader"
	"github.com/Faultbox/gltfview/internal/gpu"
	"github.com/Faultbox/gltfview/internal/logger"
	"github.com/Faultbox/gltfview/internal/scene"
	"github.com/Faultbox/gltfview/pkg/gltf"
	"github.com/Faultbox/gltfview/pkg/math"
)

// ErrTooManyJoints is reported for skinned meshes the shaders cannot hold.
var ErrTooManyJoints = errors.New("skin exceeds supported joint count")

// Texture units.
const (
	colorUnit  = 0
	normalUnit = 1
)

// Reporter receives non-fatal per-resource failures.
type Reporter func(error)

// Config holds renderer configuration.
type Config struct {
	FOVDegrees float32
	Near       float32
	Far        float32
	ClearColor [4]float32
	// MaxJoints caps joints per skin; larger skins are reported and their
	// meshes skipped. Values above shader.MaxJoints are clamped.
	MaxJoints int
	// Clock drives animation playback; nil uses the wall clock.
	Clock animation.Clock
}

// DefaultConfig returns the standard projection and clear color.
func DefaultConfig() Config {
	return Config{
		FOVDegrees: 45,
		Near:       0.1,
		Far:        1000,
		ClearColor: [4]float32{0, 0, 0, 1},
		MaxJoints:  shader.MaxJoints,
	}
}

// Stats describes the last rendered frame.
type Stats struct {
	DrawCalls         int
	SkippedPrimitives int
	Buffers           int
	Textures          int
	Animating         bool
}

// Renderer owns every GPU resource derived from the current scene. It must
// only be used from the thread owning the graphics context.
type Renderer struct {
	cfg     Config
	dev     gpu.Device
	shaders *shader.Cache
	report  Reporter
	log     *zap.Logger

	scene    *scene.Scene
	graph    *scene.Graph
	animator *animation.Animator

	buffers  map[int]gpu.Buffer
	textures map[int]gpu.Texture
	// skins already reported as over the joint cap
	oversized map[int]bool

	view            math.Mat4
	width, height   int
	renderRequested bool
	stats           Stats
}

// New creates a renderer drawing through dev. report may be nil.
func New(dev gpu.Device, cfg Config, report Reporter) *Renderer {
	if cfg.MaxJoints <= 0 || cfg.MaxJoints > shader.MaxJoints {
		cfg.MaxJoints = shader.MaxJoints
	}
	if report == nil {
		report = func(error) {}
	}
	return &Renderer{
		cfg:       cfg,
		dev:       dev,
		shaders:   shader.NewCache(dev),
		report:    report,
		log:       logger.Named("renderer"),
		buffers:   make(map[int]gpu.Buffer),
		textures:  make(map[int]gpu.Texture),
		oversized: make(map[int]bool),
		view:      math.Identity(),
		width:     1,
		height:    1,
	}
}

// Handle applies an event and requests a frame.
func (r *Renderer) Handle(ev Event) {
	switch e := ev.(type) {
	case SceneLoaded:
		if err := r.SetScene(e.Scene); err != nil {
			r.report(err)
		}
	case ViewportResized:
		r.width, r.height = max(e.Width, 1), max(e.Height, 1)
		r.log.Debug("viewport resized", zap.Int("width", r.width), zap.Int("height", r.height))
	case CameraChanged:
		r.view = e.View
	}
	r.renderRequested = true
}

// RequestRender marks the next Frame as needing a redraw.
func (r *Renderer) RequestRender() {
	r.renderRequested = true
}

// Scene returns the displayed scene, or nil.
func (r *Renderer) Scene() *scene.Scene {
	return r.scene
}

// SetScene releases every GPU buffer and texture of the previous scene and
// adopts s. A nil scene clears the display.
func (r *Renderer) SetScene(s *scene.Scene) error {
	var g *scene.Graph
	if s != nil {
		var err error
		if g, err = scene.Evaluate(s); err != nil {
			return fmt.Errorf("adopt scene: %w", err)
		}
	}

	r.releaseSceneResources()
	r.scene = s
	r.graph = g
	r.animator = nil
	clear(r.oversized)
	if s != nil && len(s.Animations) > 0 {
		r.animator = animation.New(s, r.cfg.Clock)
	}
	r.renderRequested = true
	return nil
}

func (r *Renderer) releaseSceneResources() {
	if len(r.buffers) == 0 && len(r.textures) == 0 {
		return
	}
	r.log.Debug("releasing scene resources",
		zap.Int("buffers", len(r.buffers)),
		zap.Int("textures", len(r.textures)),
	)
	for _, b := range r.buffers {
		r.dev.DeleteBuffer(b)
	}
	clear(r.buffers)
	for _, t := range r.textures {
		r.dev.DeleteTexture(t)
	}
	clear(r.textures)
}

// Frame renders if a frame was requested since the last call and reports
// whether it did. While an animation plays every frame requests the next.
func (r *Renderer) Frame() bool {
	if !r.renderRequested {
		return false
	}
	r.renderRequested = false
	r.Render()
	return true
}

// Render draws the current scene unconditionally.
func (r *Renderer) Render() {
	r.stats = Stats{}
	if r.animator != nil && r.animator.Active() {
		r.animator.Tick()
		if g, err := scene.Evaluate(r.scene); err == nil {
			r.graph = g
		}
		r.stats.Animating = true
		r.renderRequested = true
	}

	proj := r.Projection()

	r.dev.Viewport(r.width, r.height)
	r.dev.SetDepthTest(true)
	r.dev.Clear(r.cfg.ClearColor)

	if r.scene != nil {
		for _, idx := range r.graph.Order {
			r.drawNode(idx, proj)
		}
	}

	r.stats.Buffers = len(r.buffers)
	r.stats.Textures = len(r.textures)
}

// Projection returns the perspective matrix for the current viewport.
func (r *Renderer) Projection() math.Mat4 {
	aspect := float32(r.width) / float32(r.height)
	return math.Perspective(r.cfg.FOVDegrees*math.DegToRad, aspect, r.cfg.Near, r.cfg.Far)
}

// View returns the last camera matrix received.
func (r *Renderer) View() math.Mat4 {
	return r.view
}

// Graph returns the evaluated graph of the displayed scene, or nil.
func (r *Renderer) Graph() *scene.Graph {
	return r.graph
}

// Stats returns statistics for the last rendered frame.
func (r *Renderer) Stats() Stats {
	return r.stats
}

// Close releases every GPU resource the renderer created.
func (r *Renderer) Close() {
	r.log.Info("closing renderer")
	r.releaseSceneResources()
	r.shaders.Release()
	r.scene, r.graph, r.animator = nil, nil, nil
}

func (r *Renderer) drawNode(idx int, proj math.Mat4) {
	s := r.scene
	n := &s.Nodes[idx]
	if !n.HasMesh() {
		return
	}
	mesh := &s.Meshes[n.Mesh]

	var bones []math.Mat4
	if n.HasSkin() {
		if joints := len(s.Skins[n.Skin].Joints); joints > r.cfg.MaxJoints {
			if !r.oversized[n.Skin] {
				r.oversized[n.Skin] = true
				r.report(fmt.Errorf("%w: skin %d has %d joints, at most %d supported (mesh %q skipped)",
					ErrTooManyJoints, n.Skin, joints, r.cfg.MaxJoints, mesh.Name))
			}
			r.stats.SkippedPrimitives += len(mesh.Primitives)
			return
		}
		bones = r.graph.JointMatrices(s, idx)
	}

	model := r.graph.World[idx]
	normal := model.NormalMatrix()
	for i := range mesh.Primitives {
		if !r.drawPrimitive(&mesh.Primitives[i], model, normal, proj, bones) {
			r.stats.SkippedPrimitives++
		}
	}
}

func (r *Renderer) drawPrimitive(prim *scene.Primitive, model math.Mat4, normal [9]float32, proj math.Mat4, bones []math.Mat4) bool {
	s := r.scene
	if prim.Material == scene.None {
		return false
	}
	mat := &s.Materials[prim.Material]
	if mat.PBR == nil {
		return false
	}

	prog, err := r.shaders.Program(shader.Features(s, prim, mat))
	if err != nil {
		r.report(err)
	}
	if prog == nil {
		return false
	}
	r.dev.UseProgram(prog.Handle)

	if !r.bindMaterial(prog, mat) {
		return false
	}

	u := prog.Uniforms
	r.dev.UniformMat4(u.ViewMatrix, r.view)
	r.dev.UniformMat4(u.ProjectionMatrix, proj)
	r.dev.UniformMat4(u.ModelMatrix, model)
	r.dev.UniformMat3(u.ModelMatrixForNormal, normal)
	if prog.Variant.Skinning && len(bones) > 0 {
		r.dev.UniformMat4(u.Bones, bones...)
	}

	var index *scene.Accessor
	if prim.Indices != scene.None {
		index = &s.Accessors[prim.Indices]
		if index.BufferView == scene.None {
			return false
		}
		buf, ok := r.buffer(index.BufferView, gpu.ElementArrayBuffer)
		if !ok {
			return false
		}
		r.dev.BindBuffer(gpu.ElementArrayBuffer, buf)
	}

	vertexCount := 0
	var enabled []uint32
	for _, sem := range prog.Semantics() {
		loc := prog.Attribute(sem)
		accIdx := prim.Attribute(sem)
		if loc < 0 || accIdx == scene.None {
			continue
		}
		acc := &s.Accessors[accIdx]
		if acc.BufferView == scene.None {
			continue
		}
		buf, ok := r.buffer(acc.BufferView, gpu.ArrayBuffer)
		if !ok {
			continue
		}
		r.dev.BindBuffer(gpu.ArrayBuffer, buf)
		r.dev.EnableAttrib(gpu.VertexAttrib{
			Location:      uint32(loc),
			Components:    acc.Components,
			ComponentType: uint32(acc.ComponentType),
			Normalized:    acc.Normalized,
			Stride:        acc.ByteStride,
			Offset:        acc.ByteOffset,
		})
		enabled = append(enabled, uint32(loc))
		if sem == scene.AttrPosition || vertexCount == 0 {
			vertexCount = acc.Count
		}
	}

	drawn := vertexCount > 0
	if drawn {
		mode := uint32(prim.Mode)
		if index != nil {
			r.dev.DrawElements(mode, index.Count, uint32(index.ComponentType), index.ByteOffset)
		} else {
			r.dev.DrawArrays(mode, 0, vertexCount)
		}
		r.stats.DrawCalls++
	}

	for _, loc := range enabled {
		r.dev.DisableAttrib(loc)
	}
	return drawn
}

// bindMaterial sets culling, blending, the base color and texture units.
func (r *Renderer) bindMaterial(prog *shader.Program, mat *scene.Material) bool {
	r.dev.SetCullFace(!mat.DoubleSided)
	if mat.AlphaMode == gltf.AlphaBlend {
		r.dev.SetBlend(gpu.AlphaBlend)
	} else {
		r.dev.SetBlend(gpu.NoBlend)
	}

	r.dev.UniformVec4(prog.Uniforms.Color, mat.PBR.BaseColorFactor)
	if prog.Variant.BaseColorTexture {
		tex, ok := r.texture(mat.PBR.BaseColorTexture.Index)
		if !ok {
			return false
		}
		r.dev.UniformInt(prog.Uniforms.ColorSampler, colorUnit)
		r.dev.BindTexture(colorUnit, tex)
	}
	if prog.Variant.NormalTexture {
		tex, ok := r.texture(mat.NormalTexture.Index)
		if !ok {
			return false
		}
		r.dev.UniformInt(prog.Uniforms.NormalSampler, normalUnit)
		r.dev.BindTexture(normalUnit, tex)
	}
	return true
}

// buffer returns the GPU copy of a buffer view, uploading it on first use.
func (r *Renderer) buffer(view int, target gpu.BufferTarget) (gpu.Buffer, bool) {
	if b, ok := r.buffers[view]; ok {
		return b, true
	}
	b, err := r.dev.CreateBuffer(target, r.scene.BufferViews[view].Data)
	if err != nil {
		r.report(fmt.Errorf("upload buffer view %d: %w", view, err))
		return 0, false
	}
	r.buffers[view] = b
	return b, true
}

// texture returns the GPU copy of a texture, uploading it on first use.
func (r *Renderer) texture(idx int) (gpu.Texture, bool) {
	if t, ok := r.textures[idx]; ok {
		return t, true
	}
	img := r.scene.TextureImage(idx)
	if img == nil {
		return 0, false
	}
	t, err := r.dev.CreateTexture(img)
	if err != nil {
		r.report(fmt.Errorf("upload texture %d: %w", idx, err))
		return 0, false
	}
	r.textures[idx] = t
	return t, true
}
