package loaders

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/ember/engine/core"
)

func spirvBytes(words ...uint32) []byte {
	b := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(b[i*4:], w)
	}
	return b
}

func TestDecodeSPIRV(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
		want    int
	}{
		{"valid", spirvBytes(spirvMagic, 0x00010000, 7), nil, 3},
		{"empty", nil, core.ErrInvalidShader, 0},
		{"misaligned", append(spirvBytes(spirvMagic), 0x01), core.ErrInvalidShader, 0},
		{"bad magic", spirvBytes(0xdeadbeef, 1), core.ErrInvalidShader, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, err := DecodeSPIRV(tt.data)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("DecodeSPIRV() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeSPIRV() error = %v", err)
			}
			if len(code) != tt.want || code[0] != spirvMagic {
				t.Errorf("DecodeSPIRV() = %x, want %d words starting with magic", code, tt.want)
			}
		})
	}
}

func TestShaderLoaderLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mesh.vert.spv")
	if err := os.WriteFile(path, spirvBytes(spirvMagic, 1, 2, 3), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := (&ShaderLoader{}).Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if res.Name != "mesh.vert" {
		t.Errorf("Name = %q, want mesh.vert", res.Name)
	}
	if res.DataSize != 16 {
		t.Errorf("DataSize = %d, want 16", res.DataSize)
	}
	if code := res.Data.([]uint32); len(code) != 4 || code[3] != 3 {
		t.Errorf("Data = %v, want 4 words ending in 3", code)
	}

	_, err = (&ShaderLoader{}).Load(filepath.Join(dir, "missing.spv"))
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Load(missing) error = %v, want ErrNotFound", err)
	}
}
