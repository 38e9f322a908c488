package math

import (
	m "math"

	"github.com/go-gl/mathgl/mgl32"
)

// Trackball turns mouse drags into an accumulated rotation. A drag produces the
// current rotation from the press point to the cursor; releasing the button folds
// it into the last rotation.
type Trackball struct {
	width  float32
	height float32

	start    mgl32.Vec3
	current  mgl32.Quat
	last     mgl32.Quat
	dragging bool
}

func NewTrackball(width, height uint32) *Trackball {
	return &Trackball{
		width:   float32(width),
		height:  float32(height),
		current: mgl32.QuatIdent(),
		last:    mgl32.QuatIdent(),
	}
}

// Resize updates the window extent used to project cursor positions.
func (t *Trackball) Resize(width, height uint32) {
	t.width = float32(width)
	t.height = float32(height)
}

// Project maps window coordinates onto the trackball sphere.
func (t *Trackball) Project(x, y float64) mgl32.Vec3 {
	return TrackballProject(x, y, t.width, t.height)
}

// TrackballProject maps window coordinates onto the unit hemisphere facing the
// viewer. Points outside the inscribed circle are pulled onto its rim, z = 0.
func TrackballProject(x, y float64, width, height float32) mgl32.Vec3 {
	s := float32(m.Min(float64(width), float64(height))) - 1
	if s <= 0 {
		return mgl32.Vec3{0, 0, 1}
	}
	sx := (2*float32(x) - width + 1) / s
	sy := -(2*float32(y) - height + 1) / s
	r2 := sx*sx + sy*sy
	if r2 >= 1 {
		r := float32(m.Sqrt(float64(r2)))
		return mgl32.Vec3{sx / r, sy / r, 0}
	}
	return mgl32.Vec3{sx, sy, float32(m.Sqrt(float64(1 - r2)))}
}

func (t *Trackball) Press(x, y float64) {
	t.start = t.Project(x, y).Normalize()
	t.dragging = true
}

func (t *Trackball) Drag(x, y float64) {
	if !t.dragging {
		return
	}
	end := t.Project(x, y).Normalize()
	t.current = mgl32.QuatBetweenVectors(t.start, end)
}

func (t *Trackball) Release() {
	if !t.dragging {
		return
	}
	t.last = t.current.Mul(t.last)
	t.current = mgl32.QuatIdent()
	t.dragging = false
}

func (t *Trackball) Dragging() bool {
	return t.dragging
}

// Rotation is the combined rotation, current drag applied after everything
// already released.
func (t *Trackball) Rotation() mgl32.Quat {
	return t.current.Mul(t.last)
}

func (t *Trackball) Matrix() mgl32.Mat4 {
	return t.Rotation().Normalize().Mat4()
}
