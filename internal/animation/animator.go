// Package animation plays back glTF keyframe animations on a loaded scene.
//
// All animations in a scene loop together. The loop period is the shortest
// last-keyframe time over all channels.
//
// Translation and scale are interpolated linearly and rotation by slerp.
// STEP samplers hold the earlier keyframe. CUBICSPLINE samplers are played
// as linear over their value elements; the tangents are ignored. Morph
// target weights are not animated.
package animation

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/gltfview/internal/logger"
	"github.com/Faultbox/gltfview/internal/scene"
	"github.com/Faultbox/gltfview/pkg/gltf"
	"github.com/Faultbox/gltfview/pkg/math"
)

// Clock supplies the current time. Tests substitute a manual clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

type channel struct {
	node    int
	path    string
	sampler *scene.Sampler
}

// Animator advances the looping playback clock and writes interpolated
// TRS values into node transforms.
type Animator struct {
	scene    *scene.Scene
	clock    Clock
	start    time.Time
	period   float32
	channels []channel
	touched  []bool
}

// New prepares playback for every supported channel in s. Channels that
// target no node, animate morph weights or have no keyframes are ignored.
// A nil clock uses the wall clock.
func New(s *scene.Scene, clock Clock) *Animator {
	if clock == nil {
		clock = SystemClock{}
	}
	a := &Animator{
		scene:   s,
		clock:   clock,
		start:   clock.Now(),
		touched: make([]bool, len(s.Nodes)),
	}

	log := logger.Named("animation")
	for ai := range s.Animations {
		anim := &s.Animations[ai]
		for _, ch := range anim.Channels {
			smp := &anim.Samplers[ch.Sampler]
			switch {
			case ch.Node == scene.None, len(smp.Times) == 0:
				continue
			case ch.Path != gltf.PathTranslation && ch.Path != gltf.PathRotation && ch.Path != gltf.PathScale:
				log.Debug("skipping unsupported channel path", zap.String("path", ch.Path), zap.Int("animation", ai))
				continue
			}
			last := smp.Times[len(smp.Times)-1]
			if len(a.channels) == 0 || last < a.period {
				a.period = last
			}
			a.channels = append(a.channels, channel{node: ch.Node, path: ch.Path, sampler: smp})
		}
	}
	if len(a.channels) > 0 {
		log.Info("animation ready", zap.Int("channels", len(a.channels)), zap.Float32("period", a.period))
	}
	return a
}

// Active reports whether there is anything to play.
func (a *Animator) Active() bool {
	return len(a.channels) > 0
}

// Period returns the loop length in seconds.
func (a *Animator) Period() float32 {
	return a.period
}

// Restart resets the playback clock to zero.
func (a *Animator) Restart() {
	a.start = a.clock.Now()
}

// Time returns the current looped playback time in seconds.
func (a *Animator) Time() float32 {
	if a.period <= 0 {
		return 0
	}
	elapsed := a.clock.Now().Sub(a.start).Seconds()
	p := float64(a.period)
	return float32(elapsed - p*float64(int64(elapsed/p)))
}

// Tick applies every channel at the current playback time.
func (a *Animator) Tick() []int {
	return a.Apply(a.Time())
}

// Apply evaluates every channel at time t, writes the results into the
// targeted nodes and recomposes their local matrices. It returns the
// indices of the nodes it changed.
func (a *Animator) Apply(t float32) []int {
	clear(a.touched)
	var changed []int

	for _, ch := range a.channels {
		if !a.apply(ch, t) {
			continue
		}
		if !a.touched[ch.node] {
			a.touched[ch.node] = true
			changed = append(changed, ch.node)
		}
	}
	for _, n := range changed {
		a.scene.Nodes[n].UpdateMatrix()
	}
	return changed
}

func (a *Animator) apply(ch channel, t float32) bool {
	times := ch.sampler.Times
	i := sort.Search(len(times), func(k int) bool { return times[k] > t })
	if i == 0 || i == len(times) {
		return false
	}

	prev, next := times[i-1], times[i]
	f := float32(0)
	if next > prev {
		f = (t - prev) / (next - prev)
	}
	if ch.sampler.Interpolation == gltf.InterpStep {
		f = 0
	}

	node := &a.scene.Nodes[ch.node]
	switch ch.path {
	case gltf.PathTranslation:
		v0, v1, ok := vec3Keys(ch.sampler, i)
		if !ok {
			return false
		}
		node.Translation = v0.Lerp(v1, f)
	case gltf.PathScale:
		v0, v1, ok := vec3Keys(ch.sampler, i)
		if !ok {
			return false
		}
		node.Scale = v0.Lerp(v1, f)
	case gltf.PathRotation:
		q0, q1, ok := quatKeys(ch.sampler, i)
		if !ok {
			return false
		}
		node.Rotation = q0.Slerp(q1, f)
	}
	return true
}

// keyValues returns the value slice of keyframe k. Cubic spline samplers
// store (in-tangent, value, out-tangent) triples; only the value is used.
func keyValues(s *scene.Sampler, k, comps int) ([]float32, bool) {
	stride, offset := comps, 0
	if s.Interpolation == gltf.InterpCubicSpline {
		stride, offset = 3*comps, comps
	}
	start := k*stride + offset
	if start+comps > len(s.Values) {
		return nil, false
	}
	return s.Values[start : start+comps], true
}

func vec3Keys(s *scene.Sampler, i int) (math.Vec3, math.Vec3, bool) {
	a, ok0 := keyValues(s, i-1, 3)
	b, ok1 := keyValues(s, i, 3)
	if !ok0 || !ok1 {
		return math.Vec3{}, math.Vec3{}, false
	}
	return math.Vec3From(a), math.Vec3From(b), true
}

func quatKeys(s *scene.Sampler, i int) (math.Quat, math.Quat, bool) {
	a, ok0 := keyValues(s, i-1, 4)
	b, ok1 := keyValues(s, i, 4)
	if !ok0 || !ok1 {
		return math.Quat{}, math.Quat{}, false
	}
	return math.QuatFrom(a), math.QuatFrom(b), true
}
