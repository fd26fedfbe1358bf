// Package camera provides the orbit camera the viewer looks through.
package camera

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/gltfview/pkg/math"
)

// Default orbit, framing the unit-sized scene produced by fit-to-view.
const (
	DefaultDistance = 2
	DefaultPhi      = math32.Pi / 4
	DefaultTheta    = math32.Pi / 4
)

// poleEpsilon keeps the polar angle off the poles, where the view's up
// vector is undefined.
const poleEpsilon = 1e-3

// OrbitCamera orbits around a target point.
type OrbitCamera struct {
	// Target point to orbit around
	Target math.Vec3

	// Spherical coordinates
	Distance float32 // Distance from target
	Phi      float32 // Polar angle from +Y (radians)
	Theta    float32 // Azimuth around Y, measured from +X (radians)

	// Constraints
	MinDistance float32
	MaxDistance float32

	// Sensitivity
	DragSensitivity float32
	ZoomSensitivity float32

	resetDistance float32
	listeners     []func()
}

// NewOrbitCamera creates a new orbit camera at the default orbit.
func NewOrbitCamera() *OrbitCamera {
	c := &OrbitCamera{
		MinDistance:     0.01,
		MaxDistance:     10000,
		DragSensitivity: 1,
		ZoomSensitivity: 0.05,
		resetDistance:   DefaultDistance,
	}
	c.reset()
	return c
}

// SetResetDistance changes the distance Reset returns to and applies it.
func (c *OrbitCamera) SetResetDistance(d float32) {
	if d > 0 {
		c.resetDistance = d
	}
	c.Reset()
}

// OnChange registers fn to run after every change to the view.
func (c *OrbitCamera) OnChange(fn func()) {
	c.listeners = append(c.listeners, fn)
}

func (c *OrbitCamera) changed() {
	for _, fn := range c.listeners {
		fn()
	}
}

// Reset returns to the default orbit around the origin.
func (c *OrbitCamera) Reset() {
	c.reset()
	c.changed()
}

func (c *OrbitCamera) reset() {
	c.Target = math.Vec3{}
	c.Distance = c.resetDistance
	c.Phi = DefaultPhi
	c.Theta = DefaultTheta
}

// Position returns the camera position in world space.
func (c *OrbitCamera) Position() math.Vec3 {
	sinPhi, cosPhi := math32.Sincos(c.Phi)
	sinTheta, cosTheta := math32.Sincos(c.Theta)
	return c.Target.Add(math.Vec3{
		X: c.Distance * sinPhi * cosTheta,
		Y: c.Distance * cosPhi,
		Z: c.Distance * sinPhi * sinTheta,
	})
}

// ViewMatrix returns the view matrix for this camera.
func (c *OrbitCamera) ViewMatrix() math.Mat4 {
	return math.LookAt(c.Position(), c.Target, math.Vec3{Y: 1})
}

// basis returns the camera's right and up axes in world space.
func (c *OrbitCamera) basis() (right, up math.Vec3) {
	forward := c.Target.Sub(c.Position()).Normalize()
	right = forward.Cross(math.Vec3{Y: 1}).Normalize()
	return right, right.Cross(forward)
}

// HandleDrag rotates the orbit by a mouse drag of (deltaX, deltaY) pixels
// in a viewport viewportHeight pixels tall. A drag across the full height
// turns the camera once around.
func (c *OrbitCamera) HandleDrag(deltaX, deltaY float32, viewportHeight int) {
	if viewportHeight <= 0 {
		return
	}
	turn := 2 * math32.Pi * c.DragSensitivity / float32(viewportHeight)
	c.Theta += deltaX * turn
	c.Phi -= deltaY * turn

	// Clamp pitch
	c.Phi = max(poleEpsilon, min(math32.Pi-poleEpsilon, c.Phi))
	c.changed()
}

// HandlePan moves the target in the view plane so the point under the
// cursor follows a drag of (deltaX, deltaY) pixels.
func (c *OrbitCamera) HandlePan(deltaX, deltaY float32, viewportHeight int) {
	if viewportHeight <= 0 {
		return
	}
	scale := c.Distance / float32(viewportHeight)
	right, up := c.basis()
	c.Target = c.Target.
		Add(right.Scale(-deltaX * scale)).
		Add(up.Scale(deltaY * scale))
	c.changed()
}

// HandleZoom moves the camera towards the target for a positive wheel delta
// and away from it for a negative one. Zooming in then out by one step
// returns to the same distance.
func (c *OrbitCamera) HandleZoom(delta float32) {
	step := 1 - c.ZoomSensitivity
	switch {
	case delta > 0:
		c.Distance *= step
	case delta < 0:
		c.Distance /= step
	default:
		return
	}
	c.Distance = max(c.MinDistance, min(c.MaxDistance, c.Distance))
	c.changed()
}

// FitToBounds centers the orbit on a bounding box and backs off far enough
// to see all of it.
func (c *OrbitCamera) FitToBounds(lo, hi math.Vec3) {
	c.Target = lo.Add(hi).Scale(0.5)
	c.Distance = max(c.MinDistance, 2*hi.Sub(lo).MaxComponent())
	c.changed()
}

// SetTarget moves the orbit center to p, keeping the angles and distance.
func (c *OrbitCamera) SetTarget(p math.Vec3) {
	c.Target = p
	c.changed()
}
