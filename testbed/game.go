package testbed

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/ember/engine"
	"github.com/spaghettifunk/ember/engine/config"
	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/metadata"
)

// gridMaterial draws the triangle grid around the scene.
const gridMaterial = "defaultmesh"

type TestGame struct {
	*engine.Game
}

type gameState struct {
	elapsed float64
	width   uint32
	height  uint32
	grid    []*metadata.RenderObject
}

func NewTestGame(cfg *config.ApplicationConfig) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: cfg,
			State:             &gameState{},
		},
	}
	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown
	return tg
}

// Initialize lays a 21x21 grid of small triangles under the scene.
func (g *TestGame) Initialize() error {
	core.LogDebug("TestGame Initialize fn....")
	state := g.State.(*gameState)

	if _, ok := g.Renderer.GetMaterial(gridMaterial); !ok {
		core.LogWarn("material %s not loaded, skipping the triangle grid", gridMaterial)
		return nil
	}
	for x := -10; x <= 10; x++ {
		for y := -10; y <= 10; y++ {
			transform := mgl32.Translate3D(float32(x), -1, float32(y)).
				Mul4(mgl32.Scale3D(0.2, 0.2, 0.2))
			obj, err := g.Renderer.AddRenderObject(metadata.TriangleMeshName, gridMaterial, transform)
			if err != nil {
				core.LogWarn("triangle grid stopped at %d objects: %v", len(state.grid), err)
				return nil
			}
			state.grid = append(state.grid, obj)
		}
	}
	return nil
}

// Update bobs the grid triangles.
func (g *TestGame) Update(deltaTime float64) error {
	state := g.State.(*gameState)
	state.elapsed += deltaTime
	for i, obj := range state.grid {
		pos := obj.Transform.Col(3)
		phase := float32(state.elapsed) + float32(i)*0.1
		obj.Transform.SetCol(3, mgl32.Vec4{pos.X(), -1 + 0.1*float32(math.Sin(float64(phase))), pos.Z(), 1})
	}
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.State.(*gameState)
	state.width, state.height = width, height
	return nil
}

func (g *TestGame) Shutdown() error {
	core.LogInfo("testbed ran for %.1fs", g.State.(*gameState).elapsed)
	return nil
}
