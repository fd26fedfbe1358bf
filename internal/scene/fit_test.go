package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/gltfview/internal/scene/scenetest"
	"github.com/Faultbox/gltfview/pkg/gltf"
	"github.com/Faultbox/gltfview/pkg/math"
)

func boxScene(t *testing.T, lo, hi [3]float32) *Scene {
	t.Helper()
	b := scenetest.New()
	pos, idx := scenetest.Box(lo, hi)
	p := b.Positions(pos)
	i := b.Indices(idx)
	m := b.Mesh(gltf.Primitive{Attributes: map[string]int{AttrPosition: p}, Indices: scenetest.Ptr(i)})
	b.Scene(b.Node(gltf.Node{Mesh: scenetest.Ptr(m)}))
	return load(t, b)
}

func fittedBounds(t *testing.T, s *Scene) Bounds {
	t.Helper()
	g, err := Evaluate(s)
	require.NoError(t, err)
	b, ok := WorldBounds(s, g)
	require.True(t, ok)
	return b
}

func assertVec(t *testing.T, want, got math.Vec3) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, 1e-5)
	assert.InDelta(t, want.Y, got.Y, 1e-5)
	assert.InDelta(t, want.Z, got.Z, 1e-5)
}

func TestFitToView(t *testing.T) {
	tests := []struct {
		name      string
		lo, hi    [3]float32
		wantScale float32
	}{
		{"unit cube at origin", [3]float32{-0.5, -0.5, -0.5}, [3]float32{0.5, 0.5, 0.5}, 1},
		{"0..10 cube", [3]float32{0, 0, 0}, [3]float32{10, 10, 10}, 0.1},
		{"flat slab", [3]float32{-4, 0, -1}, [3]float32{4, 0, 1}, 0.125},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := boxScene(t, tt.lo, tt.hi)
			st, err := Postprocess(s, Options{FitToView: true})
			require.NoError(t, err)
			require.True(t, st.Fitted)

			require.Len(t, s.RootNodes, 1)
			wrapper := s.Nodes[s.RootNodes[0]]
			assert.Equal(t, FitRootName, wrapper.Name)
			assert.Equal(t, []int{0}, wrapper.Children)
			assert.InDelta(t, tt.wantScale, wrapper.Scale.X, 1e-6)

			b := fittedBounds(t, s)
			assertVec(t, math.Vec3{}, b.Center())
			assert.InDelta(t, 1, b.Size().MaxComponent(), 1e-5)
		})
	}
}

func TestFitToViewZeroToTenTranslation(t *testing.T) {
	s := boxScene(t, [3]float32{0, 0, 0}, [3]float32{10, 10, 10})
	_, err := Postprocess(s, Options{FitToView: true})
	require.NoError(t, err)

	wrapper := s.Nodes[s.RootNodes[0]]
	assertVec(t, math.Vec3{X: -0.5, Y: -0.5, Z: -0.5}, wrapper.Translation)
}

func TestFitToViewUsesWorldTransforms(t *testing.T) {
	b := scenetest.New()
	pos, idx := scenetest.Box([3]float32{0, 0, 0}, [3]float32{1, 1, 1})
	p := b.Positions(pos)
	i := b.Indices(idx)
	m := b.Mesh(gltf.Primitive{Attributes: map[string]int{AttrPosition: p}, Indices: scenetest.Ptr(i)})
	b.Scene(b.Node(gltf.Node{Mesh: scenetest.Ptr(m), Translation: &[3]float32{100, 0, 0}, Scale: &[3]float32{4, 4, 4}}))
	s := load(t, b)

	_, err := Postprocess(s, Options{FitToView: true})
	require.NoError(t, err)
	wrapper := s.Nodes[s.RootNodes[0]]
	assert.InDelta(t, 0.25, wrapper.Scale.X, 1e-6)

	bounds := fittedBounds(t, s)
	assertVec(t, math.Vec3{}, bounds.Center())
}

func TestFitToViewWithoutBounds(t *testing.T) {
	b := scenetest.Triangle()
	b.Doc.Accessors[0].Min = nil
	b.Doc.Accessors[0].Max = nil
	s := load(t, b)
	nodes := len(s.Nodes)

	st, err := Postprocess(s, Options{FitToView: true})
	require.NoError(t, err)
	assert.False(t, st.Fitted)
	assert.Len(t, s.Nodes, nodes)
	assert.Equal(t, []int{0}, s.RootNodes)
}
