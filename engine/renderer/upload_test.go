package renderer

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
	"github.com/spaghettifunk/ember/engine/renderer/metadata"
)

func quad() *metadata.Mesh {
	return &metadata.Mesh{
		Name: "quad",
		Vertices: []metadata.Vertex{
			{Position: [3]float32{-1, -1, 0}, UV: [2]float32{0, 0}},
			{Position: [3]float32{1, -1, 0}, UV: [2]float32{1, 0}},
			{Position: [3]float32{1, 1, 0}, UV: [2]float32{1, 1}},
			{Position: [3]float32{-1, 1, 0}, UV: [2]float32{0, 1}},
			{Position: [3]float32{0, 0, 1}, Color: [3]float32{1, 1, 1}},
		},
		Indices: []uint32{0, 1, 2, 2, 3, 0, 0, 4, 1},
	}
}

func TestUploadMeshRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	u := NewUploader(env.dev, env.allocator)
	mesh := quad()
	if err := u.UploadMesh(mesh); err != nil {
		t.Fatalf("UploadMesh() = %v", err)
	}
	if !mesh.Uploaded() {
		t.Fatal("Uploaded() = false after UploadMesh")
	}
	if mesh.VertexBuffer.Usage != metadata.MemoryUsageGPUOnly || mesh.VertexBuffer.Mapped != nil {
		t.Errorf("vertex buffer usage = %s, want an unmapped %s buffer", mesh.VertexBuffer.Usage, metadata.MemoryUsageGPUOnly)
	}

	tests := []struct {
		name string
		buf  *metadata.AllocatedBuffer
		want []byte
	}{
		{"vertices", mesh.VertexBuffer, metadata.VertexBytes(mesh.Vertices)},
		{"indices", mesh.IndexBuffer, metadata.IndexBytes(mesh.Indices)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := u.ReadBuffer(tt.buf)
			if err != nil {
				t.Fatalf("ReadBuffer() = %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("ReadBuffer() = %d bytes differing from the %d uploaded", len(got), len(tt.want))
			}
			direct, _ := env.dev.BufferBytes(tt.buf.Buffer)
			if !bytes.Equal(direct, tt.want) {
				t.Errorf("device memory differs from uploaded data")
			}
		})
	}

	// Staging and readback buffers are gone; only the two mesh buffers remain.
	if got := len(env.allocator.Live()); got != 2 {
		t.Errorf("live allocations = %d, want 2", got)
	}
	if got := env.dev.Live(driver.ResourceBuffer); got != 2 {
		t.Errorf("live buffers = %d, want 2", got)
	}
	if got := env.dev.Live(driver.ResourceCommandBuffer); got != 0 {
		t.Errorf("live command buffers = %d, want 0", got)
	}
	checkNoDriverErrors(t, env.dev)
}

func TestUploadBufferRejectsEmptyPayload(t *testing.T) {
	env := newTestEnv(t)
	u := NewUploader(env.dev, env.allocator)
	if _, err := u.UploadBuffer(nil, driver.BufferUsageVertex, "empty"); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("UploadBuffer(nil) = %v, want %v", err, core.ErrInvalidArgument)
	}
	if err := u.UploadMesh(&metadata.Mesh{Name: "empty"}); !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("UploadMesh(empty) = %v, want %v", err, core.ErrInvalidArgument)
	}
	for _, call := range []string{"CreateBuffer", "CopyBuffer", "Submit"} {
		if n := env.dev.Calls(call); n != 0 {
			t.Errorf("%s calls = %d, want 0", call, n)
		}
	}
}

func TestUploadImageRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	u := NewUploader(env.dev, env.allocator)
	pixels := []byte{
		255, 0, 0, 255, 0, 255, 0, 255,
		0, 0, 255, 255, 255, 255, 255, 255,
	}
	img, err := u.UploadImage(pixels, 2, 2, driver.FormatR8G8B8A8Srgb, "checker")
	if err != nil {
		t.Fatalf("UploadImage() = %v", err)
	}
	if got := env.dev.ImageLayout(img.Image); got != driver.ImageLayoutShaderReadOnlyOptimal {
		t.Errorf("ImageLayout() = %d, want SHADER_READ_ONLY", got)
	}
	got, err := u.ReadImage(img)
	if err != nil {
		t.Fatalf("ReadImage() = %v", err)
	}
	if !bytes.Equal(got, pixels) {
		t.Errorf("ReadImage() = %v, want %v", got, pixels)
	}
	if got := env.dev.ImageLayout(img.Image); got != driver.ImageLayoutShaderReadOnlyOptimal {
		t.Errorf("ImageLayout() after readback = %d, want SHADER_READ_ONLY", got)
	}
	checkNoDriverErrors(t, env.dev)
}

func TestUploadImageRejectsSizeMismatch(t *testing.T) {
	env := newTestEnv(t)
	u := NewUploader(env.dev, env.allocator)
	tests := []struct {
		name          string
		pixels        []byte
		width, height uint32
	}{
		{"empty", nil, 1, 1},
		{"short", []byte{1, 2, 3}, 1, 1},
		{"zero extent", []byte{1, 2, 3, 4}, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := u.UploadImage(tt.pixels, tt.width, tt.height, driver.FormatR8G8B8A8Unorm, tt.name)
			if !errors.Is(err, core.ErrInvalidArgument) {
				t.Errorf("UploadImage() = %v, want %v", err, core.ErrInvalidArgument)
			}
		})
	}
	if n := env.dev.Calls("Submit"); n != 0 {
		t.Errorf("Submit calls = %d, want 0", n)
	}
}

func TestTransitionMasksRejectsUnknownTransition(t *testing.T) {
	_, _, _, _, err := transitionMasks(driver.ImageLayoutShaderReadOnlyOptimal, driver.ImageLayoutDepthStencilAttachmentOptimal)
	if !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("transitionMasks() = %v, want %v", err, core.ErrInvalidArgument)
	}
}
