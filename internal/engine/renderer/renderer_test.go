package renderer

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/gltfview/internal/engine/shader"
	"github.com/Faultbox/gltfview/internal/gpu"
	"github.com/Faultbox/gltfview/internal/scene"
	"github.com/Faultbox/gltfview/internal/scene/scenetest"
	"github.com/Faultbox/gltfview/pkg/gltf"
	"github.com/Faultbox/gltfview/pkg/math"
)

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

func prepare(t *testing.T, b *scenetest.Builder, fit bool) *scene.Scene {
	t.Helper()
	s, err := scene.New(b.Document(), b.Buffers(), nil)
	require.NoError(t, err)
	_, err = scene.Postprocess(s, scene.Options{FitToView: fit})
	require.NoError(t, err)
	return s
}

// litTriangle is the single triangle with a plain PBR material.
func litTriangle(m gltf.Material) *scenetest.Builder {
	b := scenetest.Triangle()
	if m.PBRMetallicRoughness == nil {
		m.PBRMetallicRoughness = &gltf.PBRMetallicRoughness{}
	}
	b.Doc.Meshes[0].Primitives[0].Material = scenetest.Ptr(b.Material(m))
	return b
}

func newRenderer(t *testing.T) (*Renderer, *gpu.Recorder, *[]error) {
	t.Helper()
	dev := gpu.NewRecorder()
	var reported []error
	r := New(dev, DefaultConfig(), func(err error) { reported = append(reported, err) })
	r.Handle(ViewportResized{Width: 640, Height: 480})
	return r, dev, &reported
}

func TestSingleTriangleEndToEnd(t *testing.T) {
	s := prepare(t, litTriangle(gltf.Material{}), true)

	require.Len(t, s.RootNodes, 1)
	assert.Equal(t, scene.FitRootName, s.Nodes[s.RootNodes[0]].Name)
	assert.True(t, s.Meshes[0].Primitives[0].HasAttribute(scene.AttrNormal))

	r, dev, reported := newRenderer(t)
	r.Handle(SceneLoaded{Scene: s})
	require.True(t, r.Frame())

	require.Len(t, dev.Draws, 1)
	dc := dev.Draws[0]
	assert.Equal(t, uint32(gltf.ModeTriangles), dc.Mode)
	assert.Equal(t, 3, dc.Count)
	assert.False(t, dc.Indexed)
	assert.Len(t, dc.Attribs, 2, "POSITION and NORMAL")
	assert.True(t, dc.Cull)
	assert.False(t, dc.Blend.Enabled)

	assert.Empty(t, dev.EnabledAttribs(), "attributes are disabled after the draw")
	assert.Empty(t, dev.Errors)
	assert.Empty(t, *reported)
	assert.Equal(t, 1, r.Stats().DrawCalls)
	assert.Equal(t, []int{640, 480}, dev.ViewportSize[:])
}

func TestFrameOnlyWhenRequested(t *testing.T) {
	r, dev, _ := newRenderer(t)
	r.Handle(SceneLoaded{Scene: prepare(t, litTriangle(gltf.Material{}), false)})

	assert.True(t, r.Frame())
	assert.False(t, r.Frame(), "no event since the last frame")

	r.Handle(CameraChanged{View: math.Translate(0, 0, -3)})
	assert.True(t, r.Frame())
	assert.Len(t, dev.Draws, 2)
}

func TestBuffersAreUploadedOnce(t *testing.T) {
	r, dev, _ := newRenderer(t)
	r.Handle(SceneLoaded{Scene: prepare(t, litTriangle(gltf.Material{}), false)})
	r.Render()
	created := dev.Counts.BuffersCreated
	r.Render()
	r.Render()
	assert.Equal(t, created, dev.Counts.BuffersCreated)
	assert.Equal(t, created, r.Stats().Buffers)
}

func TestSceneSwitchReleasesResources(t *testing.T) {
	r, dev, _ := newRenderer(t)

	b := scenetest.New()
	pos, idx := scenetest.Box([3]float32{0, 0, 0}, [3]float32{1, 1, 1})
	mat := b.Material(gltf.Material{PBRMetallicRoughness: &gltf.PBRMetallicRoughness{}})
	mesh := b.Mesh(gltf.Primitive{
		Attributes: map[string]int{"POSITION": b.Positions(pos)},
		Indices:    scenetest.Ptr(b.Indices(idx)),
		Material:   scenetest.Ptr(mat),
	})
	b.Scene(b.Node(gltf.Node{Mesh: scenetest.Ptr(mesh)}))

	r.Handle(SceneLoaded{Scene: prepare(t, b, true)})
	r.Render()
	first := dev.LiveBuffers()
	require.Equal(t, 3, first, "positions, indices and generated normals")
	require.Len(t, dev.Draws, 1)
	assert.True(t, dev.Draws[0].Indexed)
	assert.Equal(t, 36, dev.Draws[0].Count)
	assert.Equal(t, uint32(gltf.UnsignedShort), dev.Draws[0].IndexType)

	r.Handle(SceneLoaded{Scene: prepare(t, litTriangle(gltf.Material{}), true)})
	assert.Equal(t, 0, dev.LiveBuffers())
	assert.Equal(t, first, dev.Counts.BuffersDeleted)

	r.Render()
	assert.Equal(t, 2, dev.LiveBuffers())

	r.Close()
	assert.Equal(t, 0, dev.LiveBuffers())
	assert.Equal(t, 0, dev.LivePrograms())
	assert.Equal(t, dev.Counts.BuffersCreated, dev.Counts.BuffersDeleted)
	assert.Empty(t, dev.Errors, "every handle is deleted exactly once")
}

func TestPrimitivesWithoutPBRAreSkipped(t *testing.T) {
	r, dev, _ := newRenderer(t)

	b := scenetest.Triangle()
	r.Handle(SceneLoaded{Scene: prepare(t, b, false)})
	r.Render()
	assert.Empty(t, dev.Draws, "no material")
	assert.Equal(t, 1, r.Stats().SkippedPrimitives)

	b = scenetest.Triangle()
	b.Doc.Meshes[0].Primitives[0].Material = scenetest.Ptr(b.Material(gltf.Material{Name: "no pbr"}))
	r.Handle(SceneLoaded{Scene: prepare(t, b, false)})
	r.Render()
	assert.Empty(t, dev.Draws, "material without metallic-roughness block")
}

func TestMaterialState(t *testing.T) {
	tests := []struct {
		name  string
		mat   gltf.Material
		cull  bool
		blend gpu.Blend
	}{
		{"opaque", gltf.Material{}, true, gpu.NoBlend},
		{"double sided", gltf.Material{DoubleSided: true}, false, gpu.NoBlend},
		{"blend", gltf.Material{AlphaMode: gltf.AlphaBlend}, true, gpu.AlphaBlend},
		{"mask draws unblended", gltf.Material{AlphaMode: gltf.AlphaMask}, true, gpu.NoBlend},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, dev, _ := newRenderer(t)
			r.Handle(SceneLoaded{Scene: prepare(t, litTriangle(tt.mat), false)})
			r.Render()
			require.Len(t, dev.Draws, 1)
			assert.Equal(t, tt.cull, dev.Draws[0].Cull)
			assert.Equal(t, tt.blend, dev.Draws[0].Blend)
		})
	}
}

func TestShaderFailureReportedOnce(t *testing.T) {
	r, dev, reported := newRenderer(t)
	dev.FailCompile = func(gpu.ShaderStage, string) error { return errors.New("driver says no") }

	r.Handle(SceneLoaded{Scene: prepare(t, litTriangle(gltf.Material{}), false)})
	r.Render()
	r.Render()

	require.Len(t, *reported, 1)
	assert.ErrorIs(t, (*reported)[0], shader.ErrCompile)
	assert.Empty(t, dev.Draws)
	assert.Equal(t, 1, r.Stats().SkippedPrimitives)
}

func TestOversizedSkinIsSkipped(t *testing.T) {
	b := litTriangle(gltf.Material{})
	joints := make([]int, shader.MaxJoints+1)
	for i := range joints {
		joints[i] = b.Node(gltf.Node{Name: "joint"})
	}
	b.Doc.Skins = []gltf.Skin{{Joints: joints}}
	b.Doc.Nodes[0].Skin = scenetest.Ptr(0)
	b.Doc.Nodes[0].Children = joints

	r, dev, reported := newRenderer(t)
	r.Handle(SceneLoaded{Scene: prepare(t, b, false)})
	r.Render()
	r.Render()

	assert.Empty(t, dev.Draws)
	require.Len(t, *reported, 1, "reported once per skin")
	assert.ErrorIs(t, (*reported)[0], ErrTooManyJoints)
	assert.True(t, strings.Contains((*reported)[0].Error(), "21 joints"))
}

func TestSkinnedMeshUsesSkinningVariant(t *testing.T) {
	b := litTriangle(gltf.Material{})
	joint := b.Node(gltf.Node{Name: "joint"})
	b.Doc.Skins = []gltf.Skin{{Joints: []int{joint}}}
	b.Doc.Nodes[0].Skin = scenetest.Ptr(0)
	b.Doc.Nodes[0].Children = []int{joint}
	prim := &b.Doc.Meshes[0].Primitives[0]
	prim.Attributes["JOINTS_0"] = b.Floats(make([]float32, 12), gltf.Vec4)
	prim.Attributes["WEIGHTS_0"] = b.Floats([]float32{1, 0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0}, gltf.Vec4)

	r, dev, reported := newRenderer(t)
	r.Handle(SceneLoaded{Scene: prepare(t, b, false)})
	r.Render()

	require.Len(t, dev.Draws, 1)
	assert.Len(t, dev.Draws[0].Attribs, 4, "POSITION, NORMAL, JOINTS_0, WEIGHTS_0")
	assert.Empty(t, *reported)
}

func TestAnimationKeepsRequestingFrames(t *testing.T) {
	b := litTriangle(gltf.Material{})
	times := b.Floats([]float32{0, 2}, gltf.Scalar)
	values := b.Floats([]float32{0, 0, 0, 4, 0, 0}, gltf.Vec3)
	b.Doc.Animations = []gltf.Animation{{
		Channels: []gltf.Channel{{Sampler: 0, Target: gltf.ChannelTarget{Node: scenetest.Ptr(0), Path: gltf.PathTranslation}}},
		Samplers: []gltf.AnimationSampler{{Input: times, Output: values}},
	}}
	s := prepare(t, b, false)

	clock := &fixedClock{now: time.Unix(100, 0)}
	cfg := DefaultConfig()
	cfg.Clock = clock
	r := New(gpu.NewRecorder(), cfg, nil)
	r.Handle(SceneLoaded{Scene: s})

	clock.now = clock.now.Add(time.Second)
	require.True(t, r.Frame())
	assert.True(t, r.Stats().Animating)
	assert.InDelta(t, 2, s.Nodes[0].Translation.X, 1e-4)
	assert.True(t, r.Frame(), "animation requests the next frame")
}

func TestEmptyRendererClears(t *testing.T) {
	r, dev, _ := newRenderer(t)
	assert.True(t, r.Frame())
	assert.Empty(t, dev.Draws)
	assert.Nil(t, r.Scene())
}
