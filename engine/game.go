package engine

import (
	"github.com/spaghettifunk/ember/engine/config"
	"github.com/spaghettifunk/ember/engine/renderer"
)

// Game holds the hooks the engine calls into. Renderer is set before
// FnInitialize runs.
type Game struct {
	ApplicationConfig *config.ApplicationConfig
	Renderer          *renderer.Renderer
	State             interface{}
	FnInitialize      Initialize
	FnUpdate          Update
	FnOnResize        OnResize
	FnShutdown        Shutdown
}

type Initialize func() error
type Update func(deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
