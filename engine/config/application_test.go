package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/ember/engine/core"
)

func TestParseApplicationConfigKeepsDefaults(t *testing.T) {
	cfg, err := ParseApplicationConfig([]byte(`
[window]
name = "demo"
width = 640

[renderer]
frames_in_flight = 3
clear_color = [0.0, 0.5, 1.0, 1.0]
camera = [0.0, 1.0, 5.0]

[log]
level = "debug"
`))
	if err != nil {
		t.Fatalf("ParseApplicationConfig() error = %v", err)
	}
	if cfg.Window.Name != "demo" || cfg.Window.Width != 640 {
		t.Errorf("Window = %+v, want demo 640 wide", cfg.Window)
	}
	if cfg.Window.Height != 720 {
		t.Errorf("Window.Height = %d, want default 720", cfg.Window.Height)
	}
	if cfg.Log.Level != core.LogLevelDebug {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}

	settings := cfg.Renderer.Settings()
	if settings.FramesInFlight != 3 {
		t.Errorf("FramesInFlight = %d, want 3", settings.FramesInFlight)
	}
	if settings.FenceTimeout != time.Second || settings.AcquireTimeout != time.Second {
		t.Errorf("timeouts = %v/%v, want 1s", settings.FenceTimeout, settings.AcquireTimeout)
	}
	if settings.ClearColor != [4]float32{0, 0.5, 1, 1} {
		t.Errorf("ClearColor = %v", settings.ClearColor)
	}
	if settings.CameraPosition == nil || settings.CameraPosition.Z() != 5 {
		t.Errorf("CameraPosition = %v, want (0, 1, 5)", settings.CameraPosition)
	}
}

func TestParseApplicationConfigRejects(t *testing.T) {
	tests := map[string]string{
		"zero frames":   "[renderer]\nframes_in_flight = 0\n",
		"bad level":     "[log]\nlevel = \"loud\"\n",
		"empty name":    "[window]\nname = \"\"\n",
		"unknown key":   "[window]\ntitle = \"x\"\n",
		"bad colour":    "[renderer]\nclear_color = [2.0, 0.0, 0.0, 1.0]\n",
		"zero timeout":  "[renderer]\nfence_timeout_ms = 0\n",
		"not toml":      "[window\n",
		"no asset root": "[assets]\nroot = \"\"\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseApplicationConfig([]byte(src)); !errors.Is(err, core.ErrInvalidArgument) {
				t.Errorf("ParseApplicationConfig() error = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestLoadApplicationConfig(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadApplicationConfig(filepath.Join(dir, "missing.toml")); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("LoadApplicationConfig(missing) error = %v, want ErrNotFound", err)
	}

	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("[assets]\nscene = \"spin\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadApplicationConfig(path)
	if err != nil {
		t.Fatalf("LoadApplicationConfig() error = %v", err)
	}
	if cfg.Assets.Scene != "spin" || cfg.Assets.Root != "assets" {
		t.Errorf("Assets = %+v, want scene spin under assets", cfg.Assets)
	}
}

func TestDefaultApplicationConfigIsValid(t *testing.T) {
	if err := DefaultApplicationConfig().Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}
