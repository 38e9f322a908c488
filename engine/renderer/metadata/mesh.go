package metadata

/** @brief The name of the built-in triangle mesh. */
const TriangleMeshName string = "triangle"

/**
 * @brief CPU geometry plus the device local buffers it was uploaded to.
 * Immutable once uploaded.
 */
type Mesh struct {
	Name     string
	Vertices []Vertex
	Indices  []uint32

	VertexBuffer *AllocatedBuffer
	IndexBuffer  *AllocatedBuffer
}

func (m *Mesh) IndexCount() uint32 {
	return uint32(len(m.Indices))
}

func (m *Mesh) Uploaded() bool {
	return m.VertexBuffer != nil && m.IndexBuffer != nil
}

// Triangle returns a single coloured triangle with a 3 entry index buffer.
func Triangle() *Mesh {
	return &Mesh{
		Name: TriangleMeshName,
		Vertices: []Vertex{
			{Position: [3]float32{1, 1, 0}, Normal: [3]float32{0, 0, 1}, Color: [3]float32{1, 0, 0}, UV: [2]float32{1, 1}},
			{Position: [3]float32{-1, 1, 0}, Normal: [3]float32{0, 0, 1}, Color: [3]float32{0, 1, 0}, UV: [2]float32{0, 1}},
			{Position: [3]float32{0, -1, 0}, Normal: [3]float32{0, 0, 1}, Color: [3]float32{0, 0, 1}, UV: [2]float32{0.5, 0}},
		},
		Indices: []uint32{0, 1, 2},
	}
}
