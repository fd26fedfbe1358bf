package animation

import (
	stdmath "math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/gltfview/internal/scene"
	"github.com/Faultbox/gltfview/internal/scene/scenetest"
	"github.com/Faultbox/gltfview/pkg/gltf"
	"github.com/Faultbox/gltfview/pkg/math"
)

type manualClock struct{ now time.Time }

func (c *manualClock) Now() time.Time { return c.now }

func (c *manualClock) advance(sec float64) {
	c.now = c.now.Add(time.Duration(sec * float64(time.Second)))
}

type track struct {
	path   string
	times  []float32
	values []float32
	interp string
}

// animatedScene returns a one-node scene with one animation per track.
func animatedScene(t *testing.T, tracks ...track) *scene.Scene {
	t.Helper()
	b := scenetest.New()
	node := b.Node(gltf.Node{})
	b.Scene(node)

	anim := gltf.Animation{}
	for i, tr := range tracks {
		typ := gltf.Vec3
		if tr.path == gltf.PathRotation {
			typ = gltf.Vec4
		}
		in := b.Floats(tr.times, gltf.Scalar)
		out := b.Floats(tr.values, typ)
		anim.Samplers = append(anim.Samplers, gltf.AnimationSampler{Input: in, Output: out, Interpolation: tr.interp})
		anim.Channels = append(anim.Channels, gltf.Channel{
			Sampler: i,
			Target:  gltf.ChannelTarget{Node: scenetest.Ptr(node), Path: tr.path},
		})
	}
	b.Doc.Animations = []gltf.Animation{anim}

	s, err := scene.New(b.Document(), b.Buffers(), nil)
	require.NoError(t, err)
	_, err = scene.Postprocess(s, scene.Options{})
	require.NoError(t, err)
	return s
}

func TestPeriodIsShortestTrack(t *testing.T) {
	s := animatedScene(t,
		track{path: gltf.PathTranslation, times: []float32{0, 2}, values: []float32{0, 0, 0, 2, 0, 0}},
		track{path: gltf.PathScale, times: []float32{0, 1.5}, values: []float32{1, 1, 1, 2, 2, 2}},
	)
	a := New(s, &manualClock{})
	assert.True(t, a.Active())
	assert.Equal(t, float32(1.5), a.Period())
}

func TestTranslationLerp(t *testing.T) {
	s := animatedScene(t, track{path: gltf.PathTranslation, times: []float32{0, 2}, values: []float32{0, 0, 0, 4, 2, 0}})
	a := New(s, &manualClock{})

	changed := a.Apply(0.5)
	assert.Equal(t, []int{0}, changed)
	assert.Equal(t, math.Vec3{X: 1, Y: 0.5, Z: 0}, s.Nodes[0].Translation)
	assert.Equal(t, math.Translate(1, 0.5, 0), s.Nodes[0].Matrix)
}

func TestBeforeFirstKeyframeNoUpdate(t *testing.T) {
	s := animatedScene(t, track{path: gltf.PathScale, times: []float32{1, 2}, values: []float32{2, 2, 2, 3, 3, 3}})
	a := New(s, &manualClock{})

	assert.Empty(t, a.Apply(0.5))
	assert.Equal(t, math.Vec3{X: 1, Y: 1, Z: 1}, s.Nodes[0].Scale)
}

func TestRotationSlerp(t *testing.T) {
	q90 := math.QuatFromAxisAngle(math.Vec3{Y: 1}, stdmath.Pi/2)
	s := animatedScene(t, track{
		path:   gltf.PathRotation,
		times:  []float32{0, 1},
		values: []float32{0, 0, 0, 1, q90.X, q90.Y, q90.Z, q90.W},
	})
	a := New(s, &manualClock{})

	a.Apply(0.5)
	want := math.QuatFromAxisAngle(math.Vec3{Y: 1}, stdmath.Pi/4)
	got := s.Nodes[0].Rotation
	assert.InDelta(t, want.Y, got.Y, 1e-5)
	assert.InDelta(t, want.W, got.W, 1e-5)
}

func TestStepInterpolation(t *testing.T) {
	s := animatedScene(t, track{
		path:   gltf.PathTranslation,
		times:  []float32{0, 1, 2},
		values: []float32{0, 0, 0, 5, 0, 0, 9, 0, 0},
		interp: gltf.InterpStep,
	})
	a := New(s, &manualClock{})

	a.Apply(1.9)
	assert.Equal(t, float32(5), s.Nodes[0].Translation.X)
}

func TestCubicSplineUsesValues(t *testing.T) {
	// Each key is (in-tangent, value, out-tangent).
	s := animatedScene(t, track{
		path:  gltf.PathTranslation,
		times: []float32{0, 1},
		values: []float32{
			9, 9, 9, 0, 0, 0, 9, 9, 9,
			9, 9, 9, 2, 0, 0, 9, 9, 9,
		},
		interp: gltf.InterpCubicSpline,
	})
	a := New(s, &manualClock{})

	a.Apply(0.5)
	assert.Equal(t, math.Vec3{X: 1}, s.Nodes[0].Translation)
}

func TestTickLoops(t *testing.T) {
	s := animatedScene(t, track{path: gltf.PathTranslation, times: []float32{0, 2}, values: []float32{0, 0, 0, 2, 0, 0}})
	clock := &manualClock{now: time.Unix(1000, 0)}
	a := New(s, clock)

	clock.advance(5.5) // 5.5 mod 2 = 1.5
	assert.InDelta(t, 1.5, a.Time(), 1e-5)
	a.Tick()
	assert.InDelta(t, 1.5, s.Nodes[0].Translation.X, 1e-5)

	a.Restart()
	assert.Zero(t, a.Time())
}

func TestInactiveWithoutChannels(t *testing.T) {
	b := scenetest.Triangle()
	s, err := scene.New(b.Document(), b.Buffers(), nil)
	require.NoError(t, err)

	a := New(s, nil)
	assert.False(t, a.Active())
	assert.Empty(t, a.Tick())
}
