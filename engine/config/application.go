package config

import (
	"bytes"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer"
)

type WindowConfig struct {
	// The application name used in windowing.
	Name string `toml:"name"`
	// Window starting position.
	X uint32 `toml:"x"`
	Y uint32 `toml:"y"`
	// Window starting size.
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
}

type RendererConfig struct {
	FramesInFlight   int        `toml:"frames_in_flight"`
	FenceTimeoutMS   uint32     `toml:"fence_timeout_ms"`
	AcquireTimeoutMS uint32     `toml:"acquire_timeout_ms"`
	Validation       bool       `toml:"validation"`
	VSync            bool       `toml:"vsync"`
	PreferDiscrete   bool       `toml:"prefer_discrete"`
	MaxObjects       uint32     `toml:"max_objects"`
	ClearColor       [4]float32 `toml:"clear_color"`
	// Camera position, (0, 0, 7) when unset.
	Camera *[3]float32 `toml:"camera"`
}

func (r RendererConfig) FenceTimeout() time.Duration {
	return time.Duration(r.FenceTimeoutMS) * time.Millisecond
}

func (r RendererConfig) AcquireTimeout() time.Duration {
	return time.Duration(r.AcquireTimeoutMS) * time.Millisecond
}

// Settings converts the section into the renderer's configuration.
func (r RendererConfig) Settings() renderer.Config {
	cfg := renderer.Config{
		FramesInFlight: r.FramesInFlight,
		FenceTimeout:   r.FenceTimeout(),
		AcquireTimeout: r.AcquireTimeout(),
		MaxObjects:     r.MaxObjects,
		ClearColor:     r.ClearColor,
	}
	if r.Camera != nil {
		pos := mgl32.Vec3(*r.Camera)
		cfg.CameraPosition = &pos
	}
	return cfg
}

type AssetsConfig struct {
	// Root holds shaders/, textures/, models/ and scenes/.
	Root string `toml:"root"`
	// Scene is loaded from Root/scenes at startup.
	Scene string `toml:"scene"`
}

type LogConfig struct {
	Level core.LogLevel `toml:"level"`
	// MetricsInterval is how often frame metrics are logged. Zero disables it.
	MetricsIntervalS float64 `toml:"metrics_interval_s"`
}

type ApplicationConfig struct {
	Window   WindowConfig   `toml:"window"`
	Renderer RendererConfig `toml:"renderer"`
	Assets   AssetsConfig   `toml:"assets"`
	Log      LogConfig      `toml:"log"`
}

func DefaultApplicationConfig() *ApplicationConfig {
	return &ApplicationConfig{
		Window: WindowConfig{
			Name:   "Ember",
			X:      100,
			Y:      100,
			Width:  1280,
			Height: 720,
		},
		Renderer: RendererConfig{
			FramesInFlight:   2,
			FenceTimeoutMS:   1000,
			AcquireTimeoutMS: 1000,
			MaxObjects:       1000,
			ClearColor:       [4]float32{0.05, 0.05, 0.08, 1},
		},
		Assets: AssetsConfig{
			Root:  "assets",
			Scene: "demo",
		},
		Log: LogConfig{
			Level:            core.LogLevelInfo,
			MetricsIntervalS: 5,
		},
	}
}

// LoadApplicationConfig decodes the TOML file at path on top of the defaults,
// so missing keys keep their default value.
func LoadApplicationConfig(path string) (*ApplicationConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(core.ErrNotFound, "config file %s", path)
		}
		return nil, errors.Wrapf(err, "reading config file %s", path)
	}
	cfg, err := ParseApplicationConfig(data)
	if err != nil {
		return nil, errors.Wrapf(err, "config file %s", path)
	}
	return cfg, nil
}

func ParseApplicationConfig(data []byte) (*ApplicationConfig, error) {
	cfg := DefaultApplicationConfig()
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(cfg); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decoding toml"), core.ErrInvalidArgument)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *ApplicationConfig) Validate() error {
	switch {
	case c.Window.Name == "":
		return errors.Wrap(core.ErrInvalidArgument, "window.name is empty")
	case c.Window.Width == 0 || c.Window.Height == 0:
		return errors.Wrapf(core.ErrInvalidArgument, "window size %dx%d", c.Window.Width, c.Window.Height)
	case c.Renderer.FramesInFlight < 1:
		return errors.Wrapf(core.ErrInvalidArgument, "renderer.frames_in_flight = %d, must be at least 1", c.Renderer.FramesInFlight)
	case c.Renderer.FenceTimeoutMS == 0 || c.Renderer.AcquireTimeoutMS == 0:
		return errors.Wrap(core.ErrInvalidArgument, "renderer timeouts must be positive")
	case c.Renderer.MaxObjects == 0:
		return errors.Wrap(core.ErrInvalidArgument, "renderer.max_objects is zero")
	case c.Assets.Root == "":
		return errors.Wrap(core.ErrInvalidArgument, "assets.root is empty")
	case !c.Log.Level.Valid():
		return errors.Wrapf(core.ErrInvalidArgument, "log.level %q", c.Log.Level)
	case c.Log.MetricsIntervalS < 0:
		return errors.Wrap(core.ErrInvalidArgument, "log.metrics_interval_s is negative")
	}
	for i, v := range c.Renderer.ClearColor {
		if v < 0 || v > 1 {
			return errors.Wrapf(core.ErrInvalidArgument, "renderer.clear_color[%d] = %v, want 0..1", i, v)
		}
	}
	return nil
}
