package loaders

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/metadata"
)

const testScene = `
name: demo
shaders: [mesh.vert, mesh.frag]
meshes:
  - name: monkey
    file: monkey.obj
textures:
  - name: checker
    file: checker.ppm
materials:
  - name: defaultmesh
    vertex: mesh.vert
    fragment: mesh.frag
texture: checker
objects:
  - mesh: monkey
    material: defaultmesh
  - mesh: triangle
    material: defaultmesh
    position: [2, 0, 0]
    scale: 0.5
`

func TestParseScene(t *testing.T) {
	scene, err := ParseScene([]byte(testScene))
	if err != nil {
		t.Fatalf("ParseScene() error = %v", err)
	}
	if scene.Name != "demo" || len(scene.Shaders) != 2 || len(scene.Objects) != 2 {
		t.Fatalf("ParseScene() = %+v", scene)
	}
	if m := scene.Materials[0]; m.VertexShader != "mesh.vert" || m.FragmentShader != "mesh.frag" {
		t.Errorf("Materials[0] = %+v", m)
	}
	if got := scene.Objects[0].Transform(); !got.ApproxEqual(mgl32.Ident4()) {
		t.Errorf("Objects[0].Transform() = %v, want identity", got)
	}
	p := scene.Objects[1].Transform().Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	if !p.ApproxEqual(mgl32.Vec4{2.5, 0, 0, 1}) {
		t.Errorf("Objects[1] maps (1,0,0) to %v, want (2.5,0,0)", p)
	}
}

func TestParseSceneRejectsDanglingReferences(t *testing.T) {
	tests := map[string]string{
		"unknown mesh":     "shaders: [a]\nmaterials: [{name: m, vertex: a, fragment: a}]\nobjects: [{mesh: nope, material: m}]\n",
		"unknown material": "objects: [{mesh: triangle, material: nope}]\n",
		"unknown shader":   "shaders: [a]\nmaterials: [{name: m, vertex: a, fragment: b}]\n",
		"unknown texture":  "texture: nope\n",
		"duplicate mesh":   "meshes: [{name: a, file: a.obj}, {name: a, file: b.obj}]\n",
		"bad yaml":         "objects: [\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseScene([]byte(src)); !errors.Is(err, core.ErrInvalidArgument) {
				t.Errorf("ParseScene() error = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestSceneLoaderDefaultsName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, []byte("objects: []\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := (&SceneLoader{}).Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if scene := res.Data.(*metadata.SceneConfig); scene.Name != "empty" {
		t.Errorf("Name = %q, want empty", scene.Name)
	}
}
