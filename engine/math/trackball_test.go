package math

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestTrackballProjectCenter(t *testing.T) {
	tb := NewTrackball(801, 601)
	// (w-1)/2, (h-1)/2 is the exact center.
	got := tb.Project(400, 300)
	if !got.ApproxEqual(mgl32.Vec3{0, 0, 1}) {
		t.Errorf("Project(center) = %v, want [0 0 1]", got)
	}
}

func TestTrackballProjectOutsideCircle(t *testing.T) {
	tb := NewTrackball(801, 601)
	// Right edge: sx = (1600-801+1)/600 = 4/3, pulled back onto the rim.
	got := tb.Project(800, 300)
	if !got.ApproxEqualThreshold(mgl32.Vec3{1, 0, 0}, 1e-5) {
		t.Errorf("Project(edge) = %v, want [1 0 0]", got)
	}
}

func TestTrackballNoDragIsIdentity(t *testing.T) {
	tb := NewTrackball(800, 600)
	if !tb.Matrix().ApproxEqual(mgl32.Ident4()) {
		t.Errorf("Matrix() = %v, want identity", tb.Matrix())
	}
	// Drag without a press is ignored.
	tb.Drag(10, 10)
	if !tb.Matrix().ApproxEqual(mgl32.Ident4()) {
		t.Errorf("Matrix() after stray drag = %v, want identity", tb.Matrix())
	}
}

func TestTrackballReleaseAccumulates(t *testing.T) {
	tb := NewTrackball(801, 601)
	tb.Press(400, 300)
	tb.Drag(500, 300)
	during := tb.Rotation()
	tb.Release()

	if tb.Dragging() {
		t.Error("Dragging() after release = true, want false")
	}
	if !tb.Rotation().ApproxEqual(during) {
		t.Errorf("Rotation() after release = %v, want %v", tb.Rotation(), during)
	}

	// Dragging right tips the z axis toward +x.
	v := tb.Matrix().Mul4x1(mgl32.Vec4{0, 0, 1, 0})
	if v.X() <= 0 {
		t.Errorf("rotated +z = %v, want positive x component", v)
	}
}

func TestTrackballProjectBoundary(t *testing.T) {
	tests := []struct {
		name string
		x, y float64
		maxZ float32
	}{
		{"on rim right", 700, 300, 1e-5},
		{"on rim top", 400, 0, 1e-5},
		{"just inside rim", 699.9, 300, 0.03},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TrackballProject(tt.x, tt.y, 801, 601)
			if got.Z() < 0 || got.Z() > tt.maxZ {
				t.Errorf("TrackballProject(%v, %v).Z() = %v, want in [0, %v]", tt.x, tt.y, got.Z(), tt.maxZ)
			}
			if l := got.Len(); mgl32.Abs(l-1) > 1e-4 {
				t.Errorf("TrackballProject(%v, %v) length = %v, want 1", tt.x, tt.y, l)
			}
		})
	}
}
