package scene_test

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/ember/engine/assets"
	"github.com/spaghettifunk/ember/engine/renderer"
	"github.com/spaghettifunk/ember/engine/renderer/driver/drivertest"
	"github.com/spaghettifunk/ember/engine/scene"
)

const demoScene = `
name: demo
shaders: [mesh.vert, mesh.frag, broken.frag]
meshes:
  - {name: quad, file: quad}
textures:
  - {name: checker, file: checker.ppm}
materials:
  - {name: defaultmesh, vertex: mesh.vert, fragment: mesh.frag}
  - {name: broken, vertex: mesh.vert, fragment: broken.frag}
texture: checker
objects:
  - {mesh: quad, material: defaultmesh}
  - {mesh: triangle, material: defaultmesh, position: [2, 0, 0]}
  - {mesh: quad, material: broken}
`

const quadOBJ = `v -1 -1 0
v 1 -1 0
v 1 1 0
v -1 1 0
f 1 2 3 4
`

func writeAssets(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	spirv := make([]byte, 20)
	binary.LittleEndian.PutUint32(spirv, 0x07230203)
	files := map[string][]byte{
		"shaders/mesh.vert.spv": spirv,
		"shaders/mesh.frag.spv": spirv,
		"models/quad.obj":       []byte(quadOBJ),
		"textures/checker.ppm":  append([]byte("P6\n2 1\n255\n"), 255, 255, 255, 0, 0, 0),
		"scenes/demo.yaml":      []byte(demoScene),
	}
	for name, data := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestLoadPopulatesRenderer(t *testing.T) {
	am, err := assets.NewAssetManager()
	if err != nil {
		t.Fatal(err)
	}
	defer am.Shutdown()
	if err := am.Initialize(writeAssets(t)); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	dev := drivertest.NewDevice()
	r, err := renderer.New(dev, drivertest.NewSwapchain(dev, 800, 600, 2), renderer.DefaultConfig())
	if err != nil {
		t.Fatalf("renderer.New() error = %v", err)
	}

	cfg, report, err := scene.Load(am, r, "demo")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Name != "demo" {
		t.Errorf("scene name = %q, want demo", cfg.Name)
	}
	want := scene.Report{Shaders: 2, Meshes: 1, Textures: 1, Materials: 1, Objects: 2}
	if report.Shaders != want.Shaders || report.Meshes != want.Meshes || report.Textures != want.Textures ||
		report.Materials != want.Materials || report.Objects != want.Objects {
		t.Errorf("Load() report = %+v, want %+v", report, want)
	}
	// broken.frag is missing, which takes its material and object with it.
	if len(report.Failures) != 3 {
		t.Errorf("len(Failures) = %d, want 3: %v", len(report.Failures), report.Failures)
	}

	mesh, ok := r.GetMesh("quad")
	if !ok || !mesh.Uploaded() || mesh.IndexCount() != 6 {
		t.Fatalf("GetMesh(quad) = %+v, %v", mesh, ok)
	}
	texture, ok := r.GetTexture("checker")
	if !ok {
		t.Fatal("GetTexture(checker) = false")
	}
	pixels, err := r.ReadTexture(texture)
	if err != nil {
		t.Fatalf("ReadTexture() error = %v", err)
	}
	if wantPix := []byte{255, 255, 255, 255, 0, 0, 0, 255}; !bytes.Equal(pixels, wantPix) {
		t.Errorf("ReadTexture() = %v, want %v", pixels, wantPix)
	}

	if drawn, err := r.DrawFrame(mgl32.Ident4()); !drawn || err != nil {
		t.Fatalf("DrawFrame() = %v, %v", drawn, err)
	}
	if got := r.DrawStats().Draws; got != 2 {
		t.Errorf("DrawStats().Draws = %d, want 2", got)
	}
	if leaks, err := r.Shutdown(); leaks != 0 || err != nil {
		t.Errorf("Shutdown() = %d, %v", leaks, err)
	}
}

func TestLoadMissingScene(t *testing.T) {
	am, err := assets.NewAssetManager()
	if err != nil {
		t.Fatal(err)
	}
	defer am.Shutdown()
	if err := am.Initialize(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	dev := drivertest.NewDevice()
	r, err := renderer.New(dev, drivertest.NewSwapchain(dev, 64, 64, 2), renderer.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	defer r.Shutdown()
	if _, _, err := scene.Load(am, r, "nope"); err == nil {
		t.Error("Load(nope) error = nil, want error")
	}
}
