package metadata

import (
	"unsafe"

	"github.com/spaghettifunk/ember/engine/renderer/driver"
)

/**
 * @brief A vertex as laid out in the vertex buffer: position, normal,
 * colour and texture coordinate, tightly packed 32-bit floats.
 */
type Vertex struct {
	Position [3]float32
	Normal   [3]float32
	Color    [3]float32
	UV       [2]float32
}

/** @brief The size of a Vertex in bytes. */
const VertexSize = uint32(unsafe.Sizeof(Vertex{}))

/**
 * @brief Describes how the vertex buffer is fed to the vertex shader:
 * one binding and one attribute per Vertex field.
 */
type VertexInputDescription struct {
	Binding    driver.VertexBinding
	Attributes []driver.VertexAttribute
}

// VertexDescription returns the fixed input layout for Vertex, attribute
// locations 0..3 in field order.
func VertexDescription() VertexInputDescription {
	return VertexInputDescription{
		Binding: driver.VertexBinding{Binding: 0, Stride: VertexSize},
		Attributes: []driver.VertexAttribute{
			{Location: 0, Binding: 0, Format: driver.FormatR32G32B32Sfloat, Offset: uint32(unsafe.Offsetof(Vertex{}.Position))},
			{Location: 1, Binding: 0, Format: driver.FormatR32G32B32Sfloat, Offset: uint32(unsafe.Offsetof(Vertex{}.Normal))},
			{Location: 2, Binding: 0, Format: driver.FormatR32G32B32Sfloat, Offset: uint32(unsafe.Offsetof(Vertex{}.Color))},
			{Location: 3, Binding: 0, Format: driver.FormatR32G32Sfloat, Offset: uint32(unsafe.Offsetof(Vertex{}.UV))},
		},
	}
}

// VertexBytes views vertices as raw bytes without copying.
func VertexBytes(vertices []Vertex) []byte {
	if len(vertices) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&vertices[0])), len(vertices)*int(VertexSize))
}

// IndexBytes views indices as raw bytes without copying.
func IndexBytes(indices []uint32) []byte {
	if len(indices) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&indices[0])), len(indices)*4)
}
