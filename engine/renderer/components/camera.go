package components

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/ember/engine/math"
)

/** @brief The name of the default camera. */
const DEFAULT_CAMERA_NAME string = "default"

/**
 * @brief A perspective camera looking down -Z from Position after applying
 * EulerRotation. The view matrix is cached and only rebuilt when one of the
 * setters marked it dirty.
 */
type Camera struct {
	/** @brief World space position. Set through SetPosition so the view is rebuilt. */
	Position mgl32.Vec3
	/** @brief Rotation in radians as (pitch, yaw, roll). */
	EulerRotation mgl32.Vec3
	/** @brief Vertical field of view in degrees. */
	FovY float32
	Near float32
	Far  float32

	isDirty    bool
	viewMatrix mgl32.Mat4
}

// NewCamera returns a camera at position with a 70 degree field of view and a
// 0.1 to 200 depth range.
func NewCamera(position mgl32.Vec3) *Camera {
	c := &Camera{}
	c.Reset()
	c.SetPosition(position)
	return c
}

func (c *Camera) Reset() {
	c.Position = mgl32.Vec3{}
	c.EulerRotation = mgl32.Vec3{}
	c.FovY = 70
	c.Near = 0.1
	c.Far = 200
	c.isDirty = false
	c.viewMatrix = mgl32.Ident4()
}

func (c *Camera) SetPosition(position mgl32.Vec3) {
	c.Position = position
	c.isDirty = true
}

func (c *Camera) SetEulerRotation(rotation mgl32.Vec3) {
	c.EulerRotation = rotation
	c.isDirty = true
}

// View returns the world to view transform.
func (c *Camera) View() mgl32.Mat4 {
	if c.isDirty {
		rotation := mgl32.HomogRotate3DX(c.EulerRotation.X()).
			Mul4(mgl32.HomogRotate3DY(c.EulerRotation.Y())).
			Mul4(mgl32.HomogRotate3DZ(c.EulerRotation.Z()))
		translation := mgl32.Translate3D(c.Position.X(), c.Position.Y(), c.Position.Z())
		c.viewMatrix = translation.Mul4(rotation).Inv()
		c.isDirty = false
	}
	return c.viewMatrix
}

// Projection returns a perspective projection for aspect (width / height) with
// Y pointing down in clip space, as Vulkan expects.
func (c *Camera) Projection(aspect float32) mgl32.Mat4 {
	if aspect <= 0 {
		aspect = 1
	}
	proj := mgl32.Perspective(mgl32.DegToRad(c.FovY), aspect, c.Near, c.Far)
	proj[5] *= -1
	return proj
}

func (c *Camera) Forward() mgl32.Vec3 {
	v := c.View()
	return mgl32.Vec3{-v[2], -v[6], -v[10]}.Normalize()
}

func (c *Camera) Right() mgl32.Vec3 {
	v := c.View()
	return mgl32.Vec3{v[0], v[4], v[8]}.Normalize()
}

func (c *Camera) MoveForward(amount float32) {
	c.SetPosition(c.Position.Add(c.Forward().Mul(amount)))
}

func (c *Camera) MoveRight(amount float32) {
	c.SetPosition(c.Position.Add(c.Right().Mul(amount)))
}

func (c *Camera) Yaw(amount float32) {
	c.EulerRotation[1] += amount
	c.isDirty = true
}

func (c *Camera) Pitch(amount float32) {
	// Clamp to avoid Gimbal lock.
	limit := mgl32.DegToRad(89)
	c.EulerRotation[0] = math.Clamp(c.EulerRotation[0]+amount, -limit, limit)
	c.isDirty = true
}
