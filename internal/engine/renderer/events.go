package renderer

import (
	"github.com/Faultbox/gltfview/internal/scene"
	"github.com/Faultbox/gltfview/pkg/math"
)

// Event is anything the renderer reacts to. Every event requests a frame.
type Event interface {
	event()
}

// SceneLoaded replaces the displayed scene.
type SceneLoaded struct {
	Scene *scene.Scene
}

// ViewportResized reports a new drawable size in pixels.
type ViewportResized struct {
	Width, Height int
}

// CameraChanged carries a new view matrix.
type CameraChanged struct {
	View math.Mat4
}

func (SceneLoaded) event()     {}
func (ViewportResized) event() {}
func (CameraChanged) event()   {}
