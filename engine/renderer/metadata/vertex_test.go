package metadata

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestVertexLayout(t *testing.T) {
	if VertexSize != 44 {
		t.Fatalf("VertexSize = %d, want 44", VertexSize)
	}
	desc := VertexDescription()
	wantOffsets := []uint32{0, 12, 24, 36}
	if len(desc.Attributes) != len(wantOffsets) {
		t.Fatalf("len(Attributes) = %d, want %d", len(desc.Attributes), len(wantOffsets))
	}
	for i, a := range desc.Attributes {
		if a.Offset != wantOffsets[i] || a.Location != uint32(i) {
			t.Errorf("Attributes[%d] = %+v, want location %d offset %d", i, a, i, wantOffsets[i])
		}
	}
	if desc.Binding.Stride != VertexSize {
		t.Errorf("Binding.Stride = %d, want %d", desc.Binding.Stride, VertexSize)
	}
}

func TestVertexBytes(t *testing.T) {
	tri := Triangle()
	b := VertexBytes(tri.Vertices)
	if len(b) != 3*44 {
		t.Fatalf("len(VertexBytes()) = %d, want %d", len(b), 3*44)
	}
	// Second vertex, position.x
	got := math.Float32frombits(binary.LittleEndian.Uint32(b[44:48]))
	if got != -1 {
		t.Errorf("vertex[1].Position.x = %v, want -1", got)
	}
	if IndexBytes(nil) != nil || VertexBytes(nil) != nil {
		t.Error("empty slices should map to nil bytes")
	}
	if len(IndexBytes(tri.Indices)) != 12 {
		t.Errorf("len(IndexBytes()) = %d, want 12", len(IndexBytes(tri.Indices)))
	}
}
