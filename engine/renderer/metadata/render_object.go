package metadata

import "github.com/go-gl/mathgl/mgl32"

/**
 * @brief One drawable: references a mesh and a material owned by the
 * renderer, placed in the world by Transform.
 */
type RenderObject struct {
	Mesh      *Mesh
	Material  *Material
	Transform mgl32.Mat4
}
