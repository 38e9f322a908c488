package renderer

import (
	"testing"
	"time"

	"github.com/spaghettifunk/ember/engine/renderer/driver"
	"github.com/spaghettifunk/ember/engine/renderer/driver/drivertest"
	"github.com/spaghettifunk/ember/engine/renderer/metadata"
)

// spirvStub is a SPIR-V header; the fake device only checks the word count.
var spirvStub = []uint32{0x07230203, 0x00010000, 0, 1, 0}

type testEnv struct {
	dev       *drivertest.Device
	swapchain *drivertest.Swapchain
	allocator *Allocator
	teardown  *Teardown
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dev := drivertest.NewDevice()
	allocator := NewAllocator(dev)
	return &testEnv{
		dev:       dev,
		swapchain: drivertest.NewSwapchain(dev, 800, 600, 3),
		allocator: allocator,
		teardown:  NewTeardown(dev, allocator),
	}
}

// newTestRenderer returns a renderer with n frames in flight and a "default"
// material built from stub shaders.
func newTestRenderer(t *testing.T, n int) (*Renderer, *testEnv) {
	t.Helper()
	env := newTestEnv(t)
	config := DefaultConfig()
	config.FramesInFlight = n
	config.FenceTimeout = 100 * time.Millisecond
	config.MaxObjects = 16
	r, err := New(env.dev, env.swapchain, config)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	for _, name := range []string{"mesh.vert", "mesh.frag"} {
		if _, err := r.LoadShader(name, spirvStub); err != nil {
			t.Fatalf("LoadShader(%s) = %v", name, err)
		}
	}
	_, err = r.CreateMaterial(metadata.MaterialConfig{
		Name:           metadata.DefaultMaterialName,
		VertexShader:   "mesh.vert",
		FragmentShader: "mesh.frag",
	})
	if err != nil {
		t.Fatalf("CreateMaterial() = %v", err)
	}
	return r, env
}

func checkNoDriverErrors(t *testing.T, dev *drivertest.Device) {
	t.Helper()
	for _, err := range dev.Errors() {
		t.Errorf("driver misuse: %v", err)
	}
}

func stubShaders(t *testing.T, dev driver.Device) (vert, frag, layout driver.Handle) {
	t.Helper()
	var err error
	if vert, err = dev.CreateShaderModule(spirvStub); err != nil {
		t.Fatalf("CreateShaderModule() = %v", err)
	}
	if frag, err = dev.CreateShaderModule(spirvStub); err != nil {
		t.Fatalf("CreateShaderModule() = %v", err)
	}
	if layout, err = dev.CreatePipelineLayout(nil, nil); err != nil {
		t.Fatalf("CreatePipelineLayout() = %v", err)
	}
	return vert, frag, layout
}
