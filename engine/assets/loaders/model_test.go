package loaders

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/metadata"
)

const quadOBJ = `# unit quad
o quad
v -1 -1 0
v  1 -1 0
v  1  1 0
v -1  1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
vn 0 0 1
s off
f 1/1/1 2/2/1 3/3/1 4/4/1
`

func TestParseOBJQuad(t *testing.T) {
	mesh, err := ParseOBJ(strings.NewReader(quadOBJ))
	if err != nil {
		t.Fatalf("ParseOBJ() error = %v", err)
	}
	if len(mesh.Vertices) != 4 {
		t.Errorf("len(Vertices) = %d, want 4", len(mesh.Vertices))
	}
	wantIdx := []uint32{0, 1, 2, 0, 2, 3}
	if len(mesh.Indices) != len(wantIdx) {
		t.Fatalf("Indices = %v, want %v", mesh.Indices, wantIdx)
	}
	for i := range wantIdx {
		if mesh.Indices[i] != wantIdx[i] {
			t.Fatalf("Indices = %v, want %v", mesh.Indices, wantIdx)
		}
	}
	v := mesh.Vertices[2]
	if v.Position != [3]float32{1, 1, 0} {
		t.Errorf("Vertices[2].Position = %v, want [1 1 0]", v.Position)
	}
	if v.UV != [2]float32{1, 0} {
		t.Errorf("Vertices[2].UV = %v, want [1 0] (v flipped)", v.UV)
	}
	if v.Normal != [3]float32{0, 0, 1} || v.Color != v.Normal {
		t.Errorf("Vertices[2] normal %v colour %v, want both [0 0 1]", v.Normal, v.Color)
	}
}

func TestParseOBJNegativeIndicesAndFaceNormals(t *testing.T) {
	src := `v 0 0 0
v 1 0 0
v 0 1 0
f -3 -2 -1
`
	mesh, err := ParseOBJ(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ParseOBJ() error = %v", err)
	}
	if len(mesh.Vertices) != 3 || len(mesh.Indices) != 3 {
		t.Fatalf("got %d vertices %d indices, want 3 and 3", len(mesh.Vertices), len(mesh.Indices))
	}
	for i, v := range mesh.Vertices {
		if v.Normal != [3]float32{0, 0, 1} {
			t.Errorf("Vertices[%d].Normal = %v, want face normal [0 0 1]", i, v.Normal)
		}
	}
	if mesh.Vertices[1].Position != [3]float32{1, 0, 0} {
		t.Errorf("Vertices[1].Position = %v, want [1 0 0]", mesh.Vertices[1].Position)
	}
}

func TestParseOBJSharedCorners(t *testing.T) {
	src := `v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vn 0 0 1
f 1//1 2//1 3//1
f 1//1 3//1 4//1
`
	mesh, err := ParseOBJ(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ParseOBJ() error = %v", err)
	}
	if len(mesh.Vertices) != 4 || len(mesh.Indices) != 6 {
		t.Errorf("got %d vertices %d indices, want 4 and 6", len(mesh.Vertices), len(mesh.Indices))
	}
}

func TestParseOBJErrors(t *testing.T) {
	tests := map[string]string{
		"no faces":       "v 0 0 0\n",
		"bad float":      "v 0 x 0\n",
		"out of range":   "v 0 0 0\nv 1 0 0\nf 1 2 3\n",
		"short face":     "v 0 0 0\nv 1 0 0\nf 1 2\n",
		"short position": "v 0 0\n",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseOBJ(strings.NewReader(src))
			if !errors.Is(err, core.ErrInvalidArgument) {
				t.Errorf("ParseOBJ() error = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestModelLoaderLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quad.obj")
	if err := os.WriteFile(path, []byte(quadOBJ), 0o644); err != nil {
		t.Fatal(err)
	}
	res, err := (&ModelLoader{}).Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	mesh := res.Data.(*metadata.Mesh)
	if mesh.Name != "quad" || res.Type != metadata.ResourceTypeModel {
		t.Errorf("Load() name %q type %v, want quad model", mesh.Name, res.Type)
	}
	if want := uint64(4*metadata.VertexSize + 6*4); res.DataSize != want {
		t.Errorf("DataSize = %d, want %d", res.DataSize, want)
	}
}
