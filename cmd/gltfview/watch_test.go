package main

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	scene := filepath.Join(dir, "box.gltf")
	require.NoError(t, os.WriteFile(scene, []byte("{}"), 0o644))

	var reloads atomic.Int32
	w, err := newWatcher(func() { reloads.Add(1) })
	require.NoError(t, err)
	defer w.Close()
	w.Watch([]string{scene})

	// A burst of writes settles into one reload
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(scene, []byte("{ }"), 0o644))
	}
	assert.Eventually(t, func() bool { return reloads.Load() == 1 }, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	time.Sleep(2 * settleDelay)
	assert.Equal(t, int32(1), reloads.Load(), "unrelated files are ignored")
}

func TestWatcherRelevant(t *testing.T) {
	dir := t.TempDir()
	w, err := newWatcher(func() {})
	require.NoError(t, err)
	defer w.Close()
	w.Watch([]string{filepath.Join(dir, "a.gltf")})

	assert.True(t, w.relevant(filepath.Join(dir, "a.gltf")))
	assert.True(t, w.relevant(filepath.Join(dir, "a.bin")))
	assert.True(t, w.relevant(filepath.Join(dir, "Tex.PNG")))
	assert.False(t, w.relevant(filepath.Join(dir, "b.gltf")))
	assert.False(t, w.relevant(filepath.Join(t.TempDir(), "a.bin")))
}

func TestRequestFromArgs(t *testing.T) {
	req := requestFromArgs([]string{"https://example.com/a.glb"})
	assert.Equal(t, "https://example.com/a.glb", req.URL)

	req = requestFromArgs([]string{"a.gltf", "a.bin"})
	require.Len(t, req.Paths, 2)
	assert.True(t, filepath.IsAbs(req.Paths[0]))
	assert.Equal(t, "a.bin", filepath.Base(req.Paths[1]))
}

func TestOpenDialogPickedOnce(t *testing.T) {
	d := newOpenDialog()
	_, ok := d.Picked()
	assert.False(t, ok)

	d.picked, d.hasPick = "/tmp/x.glb", true
	p, ok := d.Picked()
	assert.True(t, ok)
	assert.Equal(t, "/tmp/x.glb", p)
	_, ok = d.Picked()
	assert.False(t, ok)
}
