package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/gltfview/internal/scene/scenetest"
	"github.com/Faultbox/gltfview/pkg/gltf"
	"github.com/Faultbox/gltfview/pkg/math"
)

func load(t *testing.T, b *scenetest.Builder) *Scene {
	t.Helper()
	s, err := New(b.Document(), b.Buffers(), nil)
	require.NoError(t, err)
	return s
}

func TestNewResolvesDefaults(t *testing.T) {
	b := scenetest.Triangle()
	b.Doc.Materials = []gltf.Material{{PBRMetallicRoughness: &gltf.PBRMetallicRoughness{}}}
	b.Doc.Meshes[0].Primitives[0].Material = scenetest.Ptr(0)
	s := load(t, b)

	n := s.Nodes[0]
	assert.False(t, n.HasMatrix)
	assert.Equal(t, math.QuatIdentity(), n.Rotation)
	assert.Equal(t, math.Vec3{X: 1, Y: 1, Z: 1}, n.Scale)
	assert.Equal(t, None, n.Skin)
	assert.True(t, n.HasMesh())

	p := s.Meshes[0].Primitives[0]
	assert.Equal(t, gltf.ModeTriangles, p.Mode)
	assert.Equal(t, None, p.Indices)

	m := s.Materials[0]
	assert.Equal(t, gltf.AlphaOpaque, m.AlphaMode)
	assert.Equal(t, float32(0.5), m.AlphaCutoff)
	require.NotNil(t, m.PBR)
	assert.Equal(t, [4]float32{1, 1, 1, 1}, m.PBR.BaseColorFactor)
	assert.Equal(t, []int{0}, s.RootNodes)
}

func TestNewCopiesViewStride(t *testing.T) {
	b := scenetest.Triangle()
	b.Doc.BufferViews[0].ByteStride = 12
	s := load(t, b)
	assert.Equal(t, 12, s.Accessors[0].ByteStride)
}

func TestNewRejectsBadBuffers(t *testing.T) {
	t.Run("short buffer", func(t *testing.T) {
		b := scenetest.Triangle()
		doc := b.Document()
		_, err := New(doc, [][]byte{b.Bin[:4]}, nil)
		assert.ErrorIs(t, err, gltf.ErrMalformedAsset)
	})
	t.Run("view outside buffer", func(t *testing.T) {
		b := scenetest.Triangle()
		doc := b.Document()
		doc.BufferViews[0].ByteOffset = 8
		_, err := New(doc, b.Buffers(), nil)
		assert.ErrorIs(t, err, gltf.ErrMalformedAsset)
	})
	t.Run("buffer count mismatch", func(t *testing.T) {
		b := scenetest.Triangle()
		_, err := New(b.Document(), nil, nil)
		assert.ErrorIs(t, err, gltf.ErrMalformedAsset)
	})
	t.Run("unknown shape", func(t *testing.T) {
		b := scenetest.Triangle()
		b.Doc.Accessors[0].Type = "VEC7"
		_, err := New(b.Document(), b.Buffers(), nil)
		assert.ErrorIs(t, err, gltf.ErrUnsupportedAccessorType)
	})
	t.Run("padded matrix components", func(t *testing.T) {
		b := scenetest.Triangle()
		b.Doc.Accessors[0].Type = gltf.Mat3
		b.Doc.Accessors[0].ComponentType = gltf.Short
		_, err := New(b.Document(), b.Buffers(), nil)
		assert.ErrorIs(t, err, gltf.ErrUnsupportedAccessorType)
	})
}

func TestNewRejectsBadCounts(t *testing.T) {
	tests := []struct {
		name   string
		modify func(a *gltf.Accessor)
	}{
		{"negative count", func(a *gltf.Accessor) { a.Count = -1 }},
		{"negative count without view", func(a *gltf.Accessor) { a.BufferView, a.Count = nil, -3 }},
		{"negative offset", func(a *gltf.Accessor) { a.ByteOffset = -12 }},
		{"huge count without view", func(a *gltf.Accessor) { a.BufferView, a.Count = nil, 1<<40 }},
		{"count overflows view", func(a *gltf.Accessor) { a.Count = 1 << 61 }},
		{"count past view", func(a *gltf.Accessor) { a.Count = 4 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := scenetest.Triangle()
			tt.modify(&b.Doc.Accessors[0])
			_, err := New(b.Document(), b.Buffers(), nil)
			assert.ErrorIs(t, err, gltf.ErrMalformedAsset)
		})
	}

	b := scenetest.Triangle()
	b.Doc.Accessors[0].BufferView = nil
	s, err := New(b.Document(), b.Buffers(), nil)
	require.NoError(t, err, "a small accessor without a view is zero filled")
	got, err := s.Floats(0)
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 9), got)
}

func TestRootNodesWithoutScenes(t *testing.T) {
	b := scenetest.New()
	b.Node(gltf.Node{Children: []int{1}})
	b.Node(gltf.Node{})
	b.Node(gltf.Node{})
	s := load(t, b)
	assert.Equal(t, []int{0, 2}, s.RootNodes)
}

func TestIndices(t *testing.T) {
	b := scenetest.New()
	pos := b.Positions([]float32{0, 0, 0, 1, 0, 0, 0, 1, 0, 1, 1, 0})
	idx := b.Indices([]uint16{0, 1, 2, 2, 1, 3})
	b.Mesh(
		gltf.Primitive{Attributes: map[string]int{AttrPosition: pos}, Indices: scenetest.Ptr(idx)},
		gltf.Primitive{Attributes: map[string]int{AttrPosition: pos}},
	)
	s := load(t, b)

	got, err := s.Indices(&s.Meshes[0].Primitives[0])
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 2, 2, 1, 3}, got)

	got, err = s.Indices(&s.Meshes[0].Primitives[1])
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 2, 3}, got)
}

func TestAppendFloatAccessor(t *testing.T) {
	s := load(t, scenetest.Triangle())
	idx := s.AppendFloatAccessor([]float32{1, 2, 3, 4, 5, 6}, gltf.Vec3)

	assert.Equal(t, 2, s.Accessors[idx].Count)
	got, err := s.Floats(idx)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, got)
}
