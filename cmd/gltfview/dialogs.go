package main

import (
	"errors"
	"sync"

	"github.com/sqweek/dialog"
	"go.uber.org/zap"

	"github.com/Faultbox/gltfview/internal/logger"
)

// maxQueuedErrors bounds the message boxes waiting to be shown. Further
// errors are only logged.
const maxQueuedErrors = 4

// errorBoxes shows reported errors in native message boxes, one at a time,
// without blocking the render loop.
type errorBoxes struct {
	queue chan error
	once  sync.Once
}

func newErrorBoxes() *errorBoxes {
	return &errorBoxes{queue: make(chan error, maxQueuedErrors)}
}

// Report queues err for display. It is a renderer.Reporter.
func (b *errorBoxes) Report(err error) {
	logger.Warn("reported", zap.Error(err))
	b.once.Do(func() { go b.run() })
	select {
	case b.queue <- err:
	default:
		logger.Debug("error box queue full, dropping", zap.Error(err))
	}
}

func (b *errorBoxes) run() {
	for err := range b.queue {
		dialog.Message("%s", err.Error()).Title("gltfview").Error()
	}
}

// openDialog runs the native file picker off the render thread and hands
// the chosen path back to it.
type openDialog struct {
	mu      sync.Mutex
	open    bool
	picked  string
	hasPick bool
}

func newOpenDialog() *openDialog {
	return &openDialog{}
}

// Show opens the picker unless it is already open.
func (d *openDialog) Show() {
	d.mu.Lock()
	if d.open {
		d.mu.Unlock()
		return
	}
	d.open = true
	d.mu.Unlock()

	go func() {
		filename, err := dialog.File().
			Filter("glTF Scenes", "gltf", "glb").
			Filter("All Files", "*").
			Title("Open glTF Scene").
			Load()

		d.mu.Lock()
		defer d.mu.Unlock()
		d.open = false
		if err != nil {
			// User canceled or error occurred
			if !errors.Is(err, dialog.ErrCancelled) {
				logger.Error("file dialog failed", zap.Error(err))
			}
			return
		}
		d.picked, d.hasPick = filename, true
	}()
}

// Picked returns the path chosen since the last call, if any.
func (d *openDialog) Picked() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.hasPick {
		return "", false
	}
	d.hasPick = false
	return d.picked, true
}
