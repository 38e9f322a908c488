package engine

import (
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/ember/engine/assets"
	"github.com/spaghettifunk/ember/engine/config"
	"github.com/spaghettifunk/ember/engine/core"
	emath "github.com/spaghettifunk/ember/engine/math"
	"github.com/spaghettifunk/ember/engine/platform"
	"github.com/spaghettifunk/ember/engine/renderer"
	"github.com/spaghettifunk/ember/engine/renderer/metadata"
	"github.com/spaghettifunk/ember/engine/renderer/vulkan"
	"github.com/spaghettifunk/ember/engine/scene"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
	// Engine released every resource
	EngineStageShutdown
)

type Engine struct {
	currentStage Stage
	gameInstance *Game
	config       *config.ApplicationConfig

	isRunning   atomic.Bool
	isSuspended bool

	platform     *platform.Platform
	assetManager *assets.AssetManager
	backend      *vulkan.Backend
	renderer     *renderer.Renderer
	trackball    *emath.Trackball

	width    uint32
	height   uint32
	clock    *core.Clock
	lastTime float64

	lastMetrics float64
}

func New(g *Game) (*Engine, error) {
	if g.ApplicationConfig == nil {
		g.ApplicationConfig = config.DefaultApplicationConfig()
	}
	if err := g.ApplicationConfig.Validate(); err != nil {
		return nil, err
	}

	p, err := platform.New()
	if err != nil {
		return nil, err
	}
	am, err := assets.NewAssetManager()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		config:       g.ApplicationConfig,
		platform:     p,
		assetManager: am,
		clock:        core.NewClock(),
		width:        g.ApplicationConfig.Window.Width,
		height:       g.ApplicationConfig.Window.Height,
	}
	e.isRunning.Store(true)
	return e, nil
}

func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing
	cfg := e.config
	core.SetLogLevel(cfg.Log.Level)

	if err := core.InputInitialize(); err != nil {
		return err
	}
	if !core.EventInitialize() {
		return errors.New("failed to initialize the event system")
	}
	if err := core.MetricsInitialize(); err != nil {
		return err
	}

	core.EventRegister(core.EVENT_CODE_APPLICATION_QUIT, e, e.onQuit)
	core.EventRegister(core.EVENT_CODE_BUTTON_PRESSED, e, e.onButton)
	core.EventRegister(core.EVENT_CODE_BUTTON_RELEASED, e, e.onButton)
	core.EventRegister(core.EVENT_CODE_MOUSE_MOVED, e, e.onMouseMoved)
	core.EventRegister(core.EVENT_CODE_RESIZED, e, e.onResized)
	core.EventRegister(core.EVENT_CODE_ASSET_CHANGED, e, e.onAssetChanged)

	if err := e.platform.Startup(cfg.Window.Name, cfg.Window.X, cfg.Window.Y, cfg.Window.Width, cfg.Window.Height); err != nil {
		return err
	}
	if err := e.assetManager.Initialize(cfg.Assets.Root); err != nil {
		return err
	}

	e.width, e.height = e.platform.FramebufferSize()
	backend, err := vulkan.NewBackend(e.platform, vulkan.BackendConfig{
		ApplicationName: cfg.Window.Name,
		Width:           e.width,
		Height:          e.height,
		Validation:      cfg.Renderer.Validation,
		VSync:           cfg.Renderer.VSync,
		PreferDiscrete:  cfg.Renderer.PreferDiscrete,
	})
	if err != nil {
		return err
	}
	e.backend = backend

	r, err := renderer.New(backend.Device(), backend.Swapchain(), cfg.Renderer.Settings())
	if err != nil {
		return err
	}
	e.renderer = r
	e.gameInstance.Renderer = r

	// Cursor positions arrive in window coordinates.
	e.trackball = emath.NewTrackball(e.platform.WindowSize())

	if cfg.Assets.Scene != "" {
		if _, _, err := scene.Load(e.assetManager, r, cfg.Assets.Scene); err != nil {
			return err
		}
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			return err
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}
	e.currentStage = EngineStageInitialized
	return nil
}

// Run drives the frame loop until a quit event arrives or a fatal device error
// occurs. Fatal errors are returned; resources are released by Shutdown.
func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning.Load() {
		e.platform.PumpMessages()
		if e.platform.ShouldClose() {
			e.isRunning.Store(false)
			break
		}

		if e.isSuspended {
			// Minimized: nothing to present until the window comes back.
			e.platform.WaitMessages()
			continue
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStart := core.Now()

		if e.gameInstance.FnUpdate != nil {
			if err := e.gameInstance.FnUpdate(delta); err != nil {
				e.isRunning.Store(false)
				return errors.Wrap(err, "game update failed")
			}
		}

		if _, err := e.renderer.DrawFrame(e.trackball.Matrix()); err != nil {
			if core.IsFatal(err) {
				e.isRunning.Store(false)
				return errors.Wrap(err, "drawing frame")
			}
			core.LogWarn("frame dropped: %v", err)
		}

		core.MetricsUpdate(core.Since(frameStart).Seconds())
		e.logMetrics(currentTime)

		// Input state is copied last so the next frame sees this frame's
		// buttons as previous.
		core.InputUpdate()
		e.lastTime = currentTime
	}
	return nil
}

func (e *Engine) logMetrics(now float64) {
	interval := e.config.Log.MetricsIntervalS
	if interval <= 0 || now-e.lastMetrics < interval {
		return
	}
	e.lastMetrics = now
	fps, avg := core.MetricsFrame()
	stats := e.renderer.FrameStats()
	core.LogInfo("%.0f fps, %.2f ms avg, %d frames, %d skipped, %d rebuilds, longest fence wait %s",
		fps, avg, stats.Frames, stats.Skipped, stats.Rebuilds, stats.LongestFenceWait.Round(time.Microsecond))
}

// Stop asks the loop to exit after the current frame. Safe to call from any
// goroutine.
func (e *Engine) Stop() {
	core.EventFire(core.EVENT_CODE_APPLICATION_QUIT, nil, core.EventContext{})
}

// Shutdown releases everything Initialize created, in reverse order. It must
// run on the main thread after Run returned.
func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShutdown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	var errs error

	if e.gameInstance.FnShutdown != nil {
		errs = errors.CombineErrors(errs, e.gameInstance.FnShutdown())
	}
	if e.renderer != nil {
		leaks, err := e.renderer.Shutdown()
		if leaks > 0 {
			core.LogWarn("%d allocations were still live at shutdown", leaks)
		}
		errs = errors.CombineErrors(errs, err)
		e.renderer = nil
	}
	if e.backend != nil {
		e.backend.Shutdown()
		e.backend = nil
	}
	errs = errors.CombineErrors(errs, e.assetManager.Shutdown())
	errs = errors.CombineErrors(errs, e.platform.Shutdown())
	errs = errors.CombineErrors(errs, core.EventShutdown())
	errs = errors.CombineErrors(errs, core.InputShutdown())

	e.currentStage = EngineStageShutdown
	return errs
}

// GetFramebufferSize returns the width and height (in this order)
// of the application framebuffer.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onQuit(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
	e.isRunning.Store(false)
	e.platform.Wake()
	return true
}

func (e *Engine) onButton(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	if core.Button(data.Data.U16[0]) != core.BUTTON_LEFT {
		return false
	}
	if code == core.EVENT_CODE_BUTTON_PRESSED {
		e.trackball.Press(data.Data.F64[0], data.Data.F64[1])
	} else {
		e.trackball.Release()
	}
	return true
}

func (e *Engine) onMouseMoved(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	if !e.trackball.Dragging() {
		return false
	}
	e.trackball.Drag(data.Data.F64[0], data.Data.F64[1])
	return true
}

func (e *Engine) onResized(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	width, height := data.Data.U32[0], data.Data.U32[1]
	if width == e.width && height == e.height {
		return false
	}
	e.width, e.height = width, height
	core.LogDebug("Window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return true
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	e.renderer.Resize(width, height)
	e.trackball.Resize(e.platform.WindowSize())
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			core.LogError("game resize: %v", err)
		}
	}
	return true
}

// onAssetChanged runs on the watcher goroutine, so it only reports.
func (e *Engine) onAssetChanged(code core.SystemEventCode, sender, listener interface{}, data core.EventContext) bool {
	path, _ := sender.(string)
	resourceType := metadata.ResourceType(data.Data.U32[0])
	core.LogInfo("%s asset changed: %s (restart to reload)", resourceType, path)
	return false
}
