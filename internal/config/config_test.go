package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every flag to its zero value when the test ends.
func resetFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		*flagConfig = ""
		*flagDebug = false
		*flagWindowed = false
		*flagFullscreen = false
		*flagWidth = 0
		*flagHeight = 0
		*flagOffline = false
		*flagNoFit = false
		*flagWatch = false
	})
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 1280, cfg.Graphics.Width)
	assert.Equal(t, 720, cfg.Graphics.Height)
	assert.True(t, cfg.Graphics.VSync)
	assert.Equal(t, [4]float32{0, 0, 0, 1}, cfg.Graphics.ClearColor)

	assert.Equal(t, float32(45), cfg.Camera.FOVDegrees)
	assert.Equal(t, float32(2), cfg.Camera.Distance)
	assert.Equal(t, float32(0.05), cfg.Camera.ZoomSensitivity)

	assert.True(t, cfg.Loader.AllowNetwork)
	assert.Equal(t, 20, cfg.Render.MaxJoints)
	assert.True(t, cfg.Render.FitToView)
	assert.False(t, cfg.Watch.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)

	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFileMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
camera:
  fov_degrees: 60
  drag_sensitivity: 0.5
loader:
  allow_network: false
render:
  fit_to_view: false
graphics:
  clear_color: [0.2, 0.2, 0.2, 1]
`)
	cfg := Default()
	require.NoError(t, loadFromFile(cfg, path))

	assert.Equal(t, float32(60), cfg.Camera.FOVDegrees)
	assert.Equal(t, float32(0.5), cfg.Camera.DragSensitivity)
	assert.False(t, cfg.Loader.AllowNetwork)
	assert.False(t, cfg.Render.FitToView)
	assert.Equal(t, [4]float32{0.2, 0.2, 0.2, 1}, cfg.Graphics.ClearColor)

	// Untouched sections keep their defaults.
	assert.Equal(t, float32(0.1), cfg.Camera.Near)
	assert.Equal(t, 1280, cfg.Graphics.Width)
	assert.Equal(t, 4096, cfg.Loader.MaxTextureSize)
}

func TestLoadFromFileErrors(t *testing.T) {
	cfg := Default()
	assert.Error(t, loadFromFile(cfg, filepath.Join(t.TempDir(), "missing.yaml")))

	bad := writeConfig(t, "camera:\n  fov_degrees: wide\n")
	assert.Error(t, loadFromFile(cfg, bad))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{"zero width", func(c *Config) { c.Graphics.Width = 0 }, "window size"},
		{"flat fov", func(c *Config) { c.Camera.FOVDegrees = 180 }, "fov_degrees"},
		{"near behind camera", func(c *Config) { c.Camera.Near = 0 }, "near"},
		{"far before near", func(c *Config) { c.Camera.Far = 0.01 }, "near"},
		{"no joints", func(c *Config) { c.Render.MaxJoints = 0 }, "max_joints"},
		{"negative texture cap", func(c *Config) { c.Loader.MaxTextureSize = -1 }, "max_texture_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	cfg := Default()
	cfg.Loader.MaxTextureSize = 0
	assert.NoError(t, cfg.Validate(), "zero disables the texture cap")
}

func TestConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg")
	t.Setenv("APPDATA", "/appdata")

	dir := ConfigDir()
	assert.Equal(t, "gltfview", filepath.Base(dir))
	assert.True(t, filepath.IsAbs(dir), dir)
}

func TestFindConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("APPDATA", filepath.Join(home, "AppData"))
	t.Chdir(t.TempDir())

	assert.Empty(t, findConfigFile())

	userPath := filepath.Join(ConfigDir(), FileName)
	require.NoError(t, os.MkdirAll(filepath.Dir(userPath), 0755))
	require.NoError(t, os.WriteFile(userPath, []byte("{}\n"), 0644))
	assert.Equal(t, userPath, findConfigFile())

	require.NoError(t, os.WriteFile(FileName, []byte("{}\n"), 0644))
	assert.Equal(t, "./"+FileName, findConfigFile(), "the working directory wins")
}

func TestSaveToRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Camera.FOVDegrees = 30
	cfg.Watch.Enabled = true

	path := filepath.Join(t.TempDir(), "nested", FileName)
	require.NoError(t, cfg.SaveTo(path))

	loaded := Default()
	require.NoError(t, loadFromFile(loaded, path))
	assert.Equal(t, cfg, loaded)

	cfg.Render.MaxJoints = 0
	assert.Error(t, cfg.SaveTo(path), "invalid settings are not written")
}

func TestMarshalUsesFileKeys(t *testing.T) {
	data, err := Default().Marshal()
	require.NoError(t, err)

	s := string(data)
	for _, key := range []string{"graphics:", "clear_color:", "zoom_sensitivity:", "max_texture_size:", "fit_to_view:", "log_file:"} {
		assert.True(t, strings.Contains(s, key), "missing %s", key)
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name   string
		set    func()
		verify func(*testing.T, *Config)
	}{
		{
			name: "debug",
			set:  func() { *flagDebug = true },
			verify: func(t *testing.T, c *Config) {
				assert.Equal(t, "debug", c.Logging.Level)
			},
		},
		{
			name: "fullscreen",
			set:  func() { *flagFullscreen = true },
			verify: func(t *testing.T, c *Config) {
				assert.True(t, c.Graphics.Fullscreen)
			},
		},
		{
			name: "window size",
			set:  func() { *flagWidth, *flagHeight = 800, 600 },
			verify: func(t *testing.T, c *Config) {
				assert.Equal(t, 800, c.Graphics.Width)
				assert.Equal(t, 600, c.Graphics.Height)
			},
		},
		{
			name: "offline",
			set:  func() { *flagOffline = true },
			verify: func(t *testing.T, c *Config) {
				assert.False(t, c.Loader.AllowNetwork)
			},
		},
		{
			name: "no fit",
			set:  func() { *flagNoFit = true },
			verify: func(t *testing.T, c *Config) {
				assert.False(t, c.Render.FitToView)
			},
		},
		{
			name: "watch",
			set:  func() { *flagWatch = true },
			verify: func(t *testing.T, c *Config) {
				assert.True(t, c.Watch.Enabled)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetFlags(t)
			tt.set()
			cfg := Default()
			applyFlags(cfg)
			tt.verify(t, cfg)
		})
	}

	t.Run("windowed overrides file", func(t *testing.T) {
		resetFlags(t)
		*flagWindowed = true
		cfg := Default()
		cfg.Graphics.Fullscreen = true
		applyFlags(cfg)
		assert.False(t, cfg.Graphics.Fullscreen)
	})
}

func TestLoadPriority(t *testing.T) {
	resetFlags(t)
	*flagConfig = writeConfig(t, `
graphics:
  width: 1600
  height: 900
camera:
  far: 50
`)
	*flagWidth = 1920

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1920, cfg.Graphics.Width, "flag beats file")
	assert.Equal(t, 900, cfg.Graphics.Height, "file beats default")
	assert.Equal(t, float32(50), cfg.Camera.Far)
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	resetFlags(t)
	*flagConfig = writeConfig(t, "camera:\n  near: 10\n  far: 1\n")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "near")

	*flagConfig = writeConfig(t, "render: [broken\n")
	_, err = Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config from")
}
