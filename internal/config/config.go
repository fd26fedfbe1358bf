// Package config handles viewer configuration loading and management.
package config

// Config holds all viewer settings.
type Config struct {
	Graphics GraphicsConfig `yaml:"graphics"`
	Camera   CameraConfig   `yaml:"camera"`
	Loader   LoaderConfig   `yaml:"loader"`
	Render   RenderConfig   `yaml:"render"`
	Watch    WatchConfig    `yaml:"watch"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// GraphicsConfig holds display settings.
type GraphicsConfig struct {
	Width      int        `yaml:"width"`
	Height     int        `yaml:"height"`
	Fullscreen bool       `yaml:"fullscreen"`
	VSync      bool       `yaml:"vsync"`
	ClearColor [4]float32 `yaml:"clear_color"`
}

// CameraConfig holds the projection and orbit camera settings.
type CameraConfig struct {
	FOVDegrees      float32 `yaml:"fov_degrees"`
	Near            float32 `yaml:"near"`
	Far             float32 `yaml:"far"`
	Distance        float32 `yaml:"distance"`
	DragSensitivity float32 `yaml:"drag_sensitivity"` // 1 = a full turn per window height
	ZoomSensitivity float32 `yaml:"zoom_sensitivity"` // Fraction of the distance per wheel step
}

// LoaderConfig controls how assets are resolved.
type LoaderConfig struct {
	AllowNetwork   bool `yaml:"allow_network"` // Fetch http(s) buffers and images
	MaxTextureSize int  `yaml:"max_texture_size"`
}

// RenderConfig holds scene preparation and draw settings.
type RenderConfig struct {
	MaxJoints int  `yaml:"max_joints"`
	FitToView bool `yaml:"fit_to_view"`
}

// WatchConfig controls reloading the open scene when its file changes.
type WatchConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Graphics: GraphicsConfig{
			Width:      1280,
			Height:     720,
			Fullscreen: false,
			VSync:      true,
			ClearColor: [4]float32{0, 0, 0, 1},
		},
		Camera: CameraConfig{
			FOVDegrees:      45,
			Near:            0.1,
			Far:             1000,
			Distance:        2,
			DragSensitivity: 1,
			ZoomSensitivity: 0.05,
		},
		Loader: LoaderConfig{
			AllowNetwork:   true,
			MaxTextureSize: 4096,
		},
		Render: RenderConfig{
			MaxJoints: 20,
			FitToView: true,
		},
		Watch: WatchConfig{
			Enabled: false,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
