package main

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Faultbox/gltfview/internal/logger"
)

// settleDelay collapses the burst of events an editor or exporter produces
// while saving into a single reload.
const settleDelay = 250 * time.Millisecond

// watcher reloads the scene when one of its files changes on disk. It
// watches the containing directories, since many tools save by replacing
// the file.
type watcher struct {
	fs     *fsnotify.Watcher
	reload func()
	log    *zap.Logger

	mu    sync.Mutex
	files map[string]bool
	dirs  map[string]bool
	timer *time.Timer
	done  chan struct{}
}

func newWatcher(reload func()) (*watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &watcher{
		fs:     fs,
		reload: reload,
		log:    logger.Named("watch"),
		files:  make(map[string]bool),
		dirs:   make(map[string]bool),
		done:   make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

// Watch replaces the watched files. Resources next to them, such as .bin
// buffers and textures, trigger reloads too.
func (w *watcher) Watch(paths []string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for dir := range w.dirs {
		_ = w.fs.Remove(dir)
	}
	clear(w.dirs)
	clear(w.files)

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		w.files[abs] = true
		dir := filepath.Dir(abs)
		if w.dirs[dir] {
			continue
		}
		if err := w.fs.Add(dir); err != nil {
			w.log.Warn("cannot watch directory", zap.String("dir", dir), zap.Error(err))
			continue
		}
		w.dirs[dir] = true
	}
}

func (w *watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if w.relevant(ev.Name) {
				w.schedule()
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", zap.Error(err))
		}
	}
}

// relevant reports whether a changed path belongs to the watched scene:
// the scene files themselves or a resource beside them.
func (w *watcher) relevant(name string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	abs, err := filepath.Abs(name)
	if err != nil {
		return false
	}
	return w.files[abs] || w.dirs[filepath.Dir(abs)] && isResource(abs)
}

func isResource(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".bin", ".png", ".jpg", ".jpeg", ".webp", ".bmp", ".gif":
		return true
	}
	return false
}

func (w *watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(settleDelay, func() {
		w.log.Info("scene changed on disk, reloading")
		w.reload()
	})
}

// Close stops watching.
func (w *watcher) Close() {
	close(w.done)
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	_ = w.fs.Close()
}
