// Package viewer is the single dispatch point of the application: it owns
// the loader options, the renderer and the camera, and routes load results,
// window changes and camera gestures to the renderer as explicit events.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Faultbox/gltfview/internal/assets"
	"github.com/Faultbox/gltfview/internal/config"
	"github.com/Faultbox/gltfview/internal/engine/camera"
	"github.com/Faultbox/gltfview/internal/engine/picking"
	"github.com/Faultbox/gltfview/internal/engine/renderer"
	"github.com/Faultbox/gltfview/internal/gpu"
	"github.com/Faultbox/gltfview/internal/loader"
	"github.com/Faultbox/gltfview/internal/logger"
)

// ErrSuperseded is returned by Load when a later load started before this
// one finished. Its result is discarded.
var ErrSuperseded = errors.New("load superseded by a newer one")

// LoadRequest names what to load: in-memory or on-disk files, or a URL.
type LoadRequest struct {
	Files *assets.FileSet
	Paths []string
	URL   string
}

// PathsRequest loads files from disk.
func PathsRequest(paths ...string) LoadRequest {
	return LoadRequest{Paths: paths}
}

// String describes the request for logs and the window title.
func (r LoadRequest) String() string {
	switch {
	case r.URL != "":
		return r.URL
	case len(r.Paths) > 0:
		return strings.Join(r.Paths, ", ")
	case r.Files != nil:
		return strings.Join(r.Files.Names(), ", ")
	}
	return "<empty>"
}

// Config holds viewer settings.
type Config struct {
	Loader   loader.Options
	Renderer renderer.Config
	Camera   config.CameraConfig
}

// ConfigFrom maps the application configuration onto the viewer.
func ConfigFrom(c *config.Config) Config {
	rc := renderer.DefaultConfig()
	rc.FOVDegrees = c.Camera.FOVDegrees
	rc.Near = c.Camera.Near
	rc.Far = c.Camera.Far
	rc.ClearColor = c.Graphics.ClearColor
	rc.MaxJoints = c.Render.MaxJoints

	return Config{
		Loader: loader.Options{
			AllowNetwork:   c.Loader.AllowNetwork,
			MaxTextureSize: c.Loader.MaxTextureSize,
			FitToView:      c.Render.FitToView,
		},
		Renderer: rc,
		Camera:   c.Camera,
	}
}

type loadResult struct {
	seq uint64
	req LoadRequest
	res *loader.Result
	err error
}

// Viewer ties loading, rendering and the camera together. Except for
// LoadAsync, its methods must be called from the thread owning the
// graphics context.
type Viewer struct {
	cfg      Config
	renderer *renderer.Renderer
	camera   *camera.OrbitCamera
	report   renderer.Reporter
	log      *zap.Logger

	seq     atomic.Uint64
	pending chan loadResult
	wg      sync.WaitGroup

	current *loader.Result
	request LoadRequest
	width   int
	height  int
	onLoad  []func(LoadRequest, *loader.Result)
}

// New creates a viewer drawing through dev. report receives load failures
// and per-resource rendering failures; it may be nil.
func New(dev gpu.Device, cfg Config, report renderer.Reporter) *Viewer {
	if report == nil {
		report = func(error) {}
	}
	if cfg.Loader.Fetcher == nil && cfg.Loader.AllowNetwork {
		cfg.Loader.Fetcher = loader.NewHTTPFetcher()
	}

	v := &Viewer{
		cfg:     cfg,
		report:  report,
		log:     logger.Named("viewer"),
		pending: make(chan loadResult, 4),
		camera:  camera.NewOrbitCamera(),
		width:   1,
		height:  1,
	}
	v.renderer = renderer.New(dev, cfg.Renderer, report)

	if cfg.Camera.DragSensitivity > 0 {
		v.camera.DragSensitivity = cfg.Camera.DragSensitivity
	}
	if cfg.Camera.ZoomSensitivity > 0 && cfg.Camera.ZoomSensitivity < 1 {
		v.camera.ZoomSensitivity = cfg.Camera.ZoomSensitivity
	}
	v.camera.OnChange(v.cameraChanged)
	v.camera.SetResetDistance(cfg.Camera.Distance)
	return v
}

func (v *Viewer) cameraChanged() {
	v.renderer.Handle(renderer.CameraChanged{View: v.camera.ViewMatrix()})
}

// OnLoad registers fn to run on the render thread after a scene is shown.
func (v *Viewer) OnLoad(fn func(LoadRequest, *loader.Result)) {
	v.onLoad = append(v.onLoad, fn)
}

// Renderer returns the renderer.
func (v *Viewer) Renderer() *renderer.Renderer { return v.renderer }

// Camera returns the orbit camera.
func (v *Viewer) Camera() *camera.OrbitCamera { return v.camera }

// Current returns the result of the load being displayed, or nil.
func (v *Viewer) Current() *loader.Result { return v.current }

// CurrentRequest returns the request of the load being displayed.
func (v *Viewer) CurrentRequest() LoadRequest { return v.request }

// Load runs a load to completion and shows the scene. Load failures are
// returned and reported; the previous scene stays on screen.
func (v *Viewer) Load(ctx context.Context, req LoadRequest) (*loader.Result, error) {
	seq := v.seq.Add(1)
	res, err := v.load(ctx, req)
	return v.apply(loadResult{seq: seq, req: req, res: res, err: err})
}

// LoadAsync starts a load in the background. Its result is shown by the
// first Poll after it completes, unless a newer load was started first.
// It is safe to call from any goroutine.
func (v *Viewer) LoadAsync(ctx context.Context, req LoadRequest) {
	seq := v.seq.Add(1)
	v.log.Debug("load started", zap.Uint64("seq", seq), zap.Stringer("request", req))

	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		res, err := v.load(ctx, req)
		select {
		case v.pending <- loadResult{seq: seq, req: req, res: res, err: err}:
		case <-ctx.Done():
		}
	}()
}

// Poll applies background loads that have completed and reports whether
// one of them replaced the scene.
func (v *Viewer) Poll() bool {
	shown := false
	for {
		select {
		case r := <-v.pending:
			if _, err := v.apply(r); err == nil {
				shown = true
			}
		default:
			return shown
		}
	}
}

// Wait blocks until every background load has delivered its result. Only
// a few results are buffered, so call Poll between bursts of loads.
func (v *Viewer) Wait() {
	v.wg.Wait()
}

func (v *Viewer) load(ctx context.Context, req LoadRequest) (*loader.Result, error) {
	opts := v.cfg.Loader
	switch {
	case req.URL != "":
		return loader.LoadURL(ctx, opts, req.URL)
	case req.Files != nil:
		return loader.Load(ctx, req.Files, opts)
	case len(req.Paths) > 0:
		return loader.LoadPaths(ctx, opts, req.Paths...)
	}
	return nil, loader.ErrNoSceneFile
}

func (v *Viewer) apply(r loadResult) (*loader.Result, error) {
	if latest := v.seq.Load(); r.seq != latest {
		v.log.Debug("discarding superseded load",
			zap.Uint64("seq", r.seq),
			zap.Uint64("latest", latest),
			zap.Stringer("request", r.req),
		)
		return nil, ErrSuperseded
	}
	if r.err != nil {
		err := fmt.Errorf("loading %s: %w", r.req, r.err)
		v.log.Error("load failed", zap.Error(r.err), zap.Stringer("request", r.req))
		v.report(err)
		return nil, err
	}

	if missing := r.res.Scene.MissingImages; len(missing) > 0 {
		v.report(fmt.Errorf("%s: %d image(s) could not be loaded: %s",
			r.res.Source, len(missing), strings.Join(missing, ", ")))
	}

	// Frame the new scene from the default orbit before it is first drawn.
	v.camera.Reset()
	v.renderer.Handle(renderer.SceneLoaded{Scene: r.res.Scene})
	v.current = r.res
	v.request = r.req

	for _, fn := range v.onLoad {
		fn(r.req, r.res)
	}
	return r.res, nil
}

// Reload loads the displayed request again.
func (v *Viewer) Reload(ctx context.Context) {
	if v.current == nil {
		return
	}
	v.LoadAsync(ctx, v.request)
}

// Resize tells the renderer the drawable size changed. Camera gestures are
// scaled by the window height passed here.
func (v *Viewer) Resize(width, height int) {
	v.width, v.height = max(width, 1), max(height, 1)
	v.renderer.Handle(renderer.ViewportResized{Width: v.width, Height: v.height})
}

// Rotate orbits the camera by a drag of (dx, dy) pixels.
func (v *Viewer) Rotate(dx, dy float32) {
	v.camera.HandleDrag(dx, dy, v.height)
}

// Pan moves the orbit target by a drag of (dx, dy) pixels.
func (v *Viewer) Pan(dx, dy float32) {
	v.camera.HandlePan(dx, dy, v.height)
}

// Zoom moves the camera by wheel steps; positive zooms in.
func (v *Viewer) Zoom(steps float32) {
	v.camera.HandleZoom(steps)
}

// ResetCamera returns the camera to its default orbit.
func (v *Viewer) ResetCamera() {
	v.camera.Reset()
}

// FocusAt re-centers the orbit on the node under the drawable pixel (x, y)
// and reports whether one was found.
func (v *Viewer) FocusAt(x, y float32) bool {
	s, g := v.renderer.Scene(), v.renderer.Graph()
	if s == nil || g == nil {
		return false
	}
	invViewProj := v.renderer.Projection().Mul(v.camera.ViewMatrix()).Inverse()
	ray := picking.ScreenToRay(x, y, float32(v.width), float32(v.height), invViewProj)
	hit, ok := picking.Pick(s, g, ray)
	if !ok {
		return false
	}
	v.log.Debug("focus", zap.Int("node", hit.Node), zap.Float32("distance", hit.Distance))
	v.camera.SetTarget(hit.Bounds.Center())
	return true
}

// Frame renders if anything changed since the last frame and reports
// whether it did. Call once per display refresh.
func (v *Viewer) Frame() bool {
	return v.renderer.Frame()
}

// Close discards background loads still running and releases every GPU
// resource.
func (v *Viewer) Close() {
	done := make(chan struct{})
	go func() {
		v.wg.Wait()
		close(done)
	}()
	for {
		select {
		case <-v.pending:
		case <-done:
			v.renderer.Close()
			return
		}
	}
}
