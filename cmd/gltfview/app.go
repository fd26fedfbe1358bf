package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/gltfview/internal/assets"
	"github.com/Faultbox/gltfview/internal/config"
	"github.com/Faultbox/gltfview/internal/engine/input"
	"github.com/Faultbox/gltfview/internal/engine/window"
	"github.com/Faultbox/gltfview/internal/gpu/gldevice"
	"github.com/Faultbox/gltfview/internal/loader"
	"github.com/Faultbox/gltfview/internal/logger"
	"github.com/Faultbox/gltfview/internal/viewer"
)

const title = "gltfview"

// idleDelay throttles the loop while nothing needs drawing.
const idleDelay = 5 * time.Millisecond

// App is the interactive viewer: window, input, GPU device and viewer.
type App struct {
	cfg     *config.Config
	window  *window.Window
	device  *gldevice.Device
	input   *input.Input
	viewer  *viewer.Viewer
	watcher *watcher
	errors  *errorBoxes
	dialog  *openDialog
	log     *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// window to drawable pixel ratio, for high-DPI displays
	pixelRatio float32
	// set by the file watcher, consumed by the render loop
	reloadRequested atomic.Bool
}

// NewApp opens the window and prepares the viewer.
func NewApp(cfg *config.Config) (*App, error) {
	app := &App{
		cfg:        cfg,
		log:        logger.Named("app"),
		errors:     newErrorBoxes(),
		dialog:     newOpenDialog(),
		pixelRatio: 1,
	}
	app.ctx, app.cancel = context.WithCancel(context.Background())

	var err error
	app.window, err = window.New(window.Config{
		Title:      title,
		Width:      cfg.Graphics.Width,
		Height:     cfg.Graphics.Height,
		Fullscreen: cfg.Graphics.Fullscreen,
		VSync:      cfg.Graphics.VSync,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	// Create the device AFTER the window, since the GL context must exist
	app.device, err = gldevice.New()
	if err != nil {
		app.window.Close()
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}

	app.input = input.New()
	app.viewer = viewer.New(app.device, viewer.ConfigFrom(cfg), app.errors.Report)
	app.viewer.OnLoad(app.loaded)
	app.resize()

	if cfg.Watch.Enabled {
		app.watcher, err = newWatcher(func() { app.reloadRequested.Store(true) })
		if err != nil {
			app.log.Warn("file watching disabled", zap.Error(err))
		}
	}

	app.log.Info("viewer initialized")
	return app, nil
}

// Open starts loading a scene.
func (app *App) Open(req viewer.LoadRequest) {
	app.log.Info("opening", zap.Stringer("request", req))
	app.window.SetTitle(fmt.Sprintf("%s - loading %s", title, req))
	app.viewer.LoadAsync(app.ctx, req)
}

// Run runs the event loop until the window is closed.
func (app *App) Run() error {
	for {
		if app.input.Update() {
			return nil
		}
		for _, ev := range app.input.Events() {
			if quit := app.handle(ev); quit {
				return nil
			}
		}

		if app.reloadRequested.Swap(false) {
			app.viewer.Reload(app.ctx)
		}
		if path, ok := app.dialog.Picked(); ok {
			app.Open(viewer.PathsRequest(path))
		}
		app.viewer.Poll()

		if app.viewer.Frame() {
			app.window.SwapBuffers()
		} else {
			time.Sleep(idleDelay)
		}
	}
}

func (app *App) handle(ev input.Event) bool {
	switch ev.Type {
	case input.EventQuit:
		return true

	case input.EventWindowResize:
		app.resize()

	case input.EventDrop:
		app.Open(viewer.PathsRequest(ev.Paths...))

	case input.EventMouseMove:
		dx := float32(ev.DeltaX) * app.pixelRatio
		dy := float32(ev.DeltaY) * app.pixelRatio
		switch {
		case app.input.IsButtonDown(sdl.BUTTON_RIGHT),
			app.input.IsButtonDown(sdl.BUTTON_LEFT) && sdl.GetModState()&(sdl.KMOD_SHIFT|sdl.KMOD_CTRL|sdl.KMOD_GUI) != 0:
			app.viewer.Pan(dx, dy)
		case app.input.IsButtonDown(sdl.BUTTON_LEFT):
			app.viewer.Rotate(dx, dy)
		}

	case input.EventMouseDown:
		if ev.Button == sdl.BUTTON_LEFT && ev.Clicks == 2 {
			app.viewer.FocusAt(float32(ev.MouseX)*app.pixelRatio, float32(ev.MouseY)*app.pixelRatio)
		}

	case input.EventMouseWheel:
		app.viewer.Zoom(ev.Wheel)

	case input.EventKeyDown:
		switch ev.Key {
		case sdl.K_ESCAPE:
			return true
		case sdl.K_o:
			app.dialog.Show()
		case sdl.K_r:
			app.viewer.ResetCamera()
		case sdl.K_F5:
			app.viewer.Reload(app.ctx)
		}
	}
	return false
}

func (app *App) resize() {
	w, h := app.window.GetSize()
	dw, dh := app.window.DrawableSize()
	if h > 0 {
		app.pixelRatio = float32(dh) / float32(h)
	}
	app.log.Debug("window resized", zap.Int("width", w), zap.Int("height", h))
	app.viewer.Resize(dw, dh)
}

// loaded runs on the render thread after a scene replaced the previous one.
func (app *App) loaded(req viewer.LoadRequest, res *loader.Result) {
	app.window.SetTitle(fmt.Sprintf("%s - %s", title, res.Source))
	if app.watcher != nil {
		app.watcher.Watch(req.Paths)
	}
}

// Close stops background work and releases the window.
func (app *App) Close() {
	app.cancel()
	if app.watcher != nil {
		app.watcher.Close()
	}
	app.viewer.Close()
	app.device.Close()
	app.window.Close()
}

// requestFromArgs turns command-line arguments into a load: a single URL,
// or files on disk.
func requestFromArgs(args []string) viewer.LoadRequest {
	if len(args) == 1 && assets.IsRemote(args[0]) {
		return viewer.LoadRequest{URL: args[0]}
	}
	paths := make([]string, len(args))
	for i, a := range args {
		if abs, err := filepath.Abs(a); err == nil {
			a = abs
		}
		paths[i] = a
	}
	return viewer.PathsRequest(paths...)
}
