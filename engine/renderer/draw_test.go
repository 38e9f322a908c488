package renderer

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/components"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
	"github.com/spaghettifunk/ember/engine/renderer/driver/drivertest"
	"github.com/spaghettifunk/ember/engine/renderer/metadata"
)

// fakeMesh is enough for recording; nothing is submitted.
func fakeMesh(name string, vb, ib driver.Handle, indices int) *metadata.Mesh {
	return &metadata.Mesh{
		Name:         name,
		Indices:      make([]uint32, indices),
		VertexBuffer: &metadata.AllocatedBuffer{Buffer: vb},
		IndexBuffer:  &metadata.AllocatedBuffer{Buffer: ib},
	}
}

func recordOnce(t *testing.T, objects []*metadata.RenderObject, rotation mgl32.Mat4) (DrawStats, *drivertest.CommandBuffer, *FrameSlot, *FrameDescriptors, error) {
	t.Helper()
	env := newTestEnv(t)
	fc, fd, _ := newTestDescriptors(t, env, 2, 8)
	camera := components.NewCamera(mgl32.Vec3{0, 0, 7})
	rec := NewDrawRecorder(env.swapchain, fd, camera)

	slot := fc.Slots()[0]
	cb := slot.CommandBuffer.(*drivertest.CommandBuffer)
	if err := cb.Begin(true); err != nil {
		t.Fatalf("Begin() = %v", err)
	}
	stats, err := rec.Record(cb, slot, 0, objects, rotation)
	if endErr := cb.End(); endErr != nil && err == nil {
		t.Fatalf("End() = %v", endErr)
	}
	return stats, cb, slot, fd, err
}

func TestDrawRecorderElidesRedundantBinds(t *testing.T) {
	m1 := &metadata.Material{Name: "m1", Pipeline: 9001, Layout: 9101}
	m2 := &metadata.Material{Name: "m2", Pipeline: 9002, Layout: 9102}
	a := fakeMesh("a", 9201, 9202, 3)
	b := fakeMesh("b", 9301, 9302, 6)

	tests := []struct {
		name          string
		objects       []*metadata.RenderObject
		wantPipelines int
		wantMeshes    int
	}{
		{"single", []*metadata.RenderObject{{Mesh: a, Material: m1}}, 1, 1},
		{"same run", []*metadata.RenderObject{
			{Mesh: a, Material: m1}, {Mesh: a, Material: m1}, {Mesh: a, Material: m1},
		}, 1, 1},
		{"interleaved", []*metadata.RenderObject{
			{Mesh: a, Material: m1}, {Mesh: a, Material: m1}, {Mesh: b, Material: m1},
			{Mesh: b, Material: m2}, {Mesh: a, Material: m2},
		}, 2, 3},
		{"alternating", []*metadata.RenderObject{
			{Mesh: a, Material: m1}, {Mesh: b, Material: m2}, {Mesh: a, Material: m1}, {Mesh: b, Material: m2},
		}, 4, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, o := range tt.objects {
				o.Transform = mgl32.Ident4()
			}
			stats, cb, _, _, err := recordOnce(t, tt.objects, mgl32.Ident4())
			if err != nil {
				t.Fatalf("Record() = %v", err)
			}
			n := len(tt.objects)
			want := DrawStats{PipelineBinds: tt.wantPipelines, MeshBinds: tt.wantMeshes, DescriptorBinds: n, Draws: n}
			if stats != want {
				t.Errorf("Record() stats = %+v, want %+v", stats, want)
			}
			if got := cb.Count("BindPipeline"); got != tt.wantPipelines {
				t.Errorf("BindPipeline recorded %d times, want %d", got, tt.wantPipelines)
			}
			if got := cb.Count("BindVertexBuffer"); got != tt.wantMeshes {
				t.Errorf("BindVertexBuffer recorded %d times, want %d", got, tt.wantMeshes)
			}
			if got := cb.Count("BindIndexBuffer"); got != tt.wantMeshes {
				t.Errorf("BindIndexBuffer recorded %d times, want %d", got, tt.wantMeshes)
			}
			if got := cb.Count("DrawIndexed"); got != n {
				t.Errorf("DrawIndexed recorded %d times, want %d", got, n)
			}
		})
	}
}

func TestDrawRecorderWritesMVPAtDynamicOffsets(t *testing.T) {
	m := &metadata.Material{Name: "m", Pipeline: 9001, Layout: 9101}
	mesh := fakeMesh("a", 9201, 9202, 3)
	objects := []*metadata.RenderObject{
		{Mesh: mesh, Material: m, Transform: mgl32.Translate3D(1, 0, 0)},
		{Mesh: mesh, Material: m, Transform: mgl32.Translate3D(-1, 0, 0)},
	}
	rotation := mgl32.HomogRotate3DY(mgl32.DegToRad(30))
	_, cb, slot, fd, err := recordOnce(t, objects, rotation)
	if err != nil {
		t.Fatalf("Record() = %v", err)
	}

	camera := components.NewCamera(mgl32.Vec3{0, 0, 7})
	view := camera.View()
	if !view.ApproxEqual(mgl32.Translate3D(0, 0, -7)) {
		t.Errorf("View() = %v, want a -7 translation along z", view)
	}
	projection := camera.Projection(800.0 / 600.0)
	for i, obj := range objects {
		model := rotation.Mul4(obj.Transform)
		data := ObjectData{MVP: projection.Mul4(view).Mul4(model), Model: model}
		want := make([]byte, objectDataSize)
		write(want, 0, &data)
		start := fd.frameStride + uint64(i)*fd.ObjectStride()
		if got := slot.Uniforms.Mapped[start : start+objectDataSize]; !bytes.Equal(got, want) {
			t.Errorf("object %d: uniform record differs from projection*view*rotation*model", i)
		}
	}

	var offsets []uint32
	for _, cmd := range cb.Commands() {
		if cmd.Name == "BindDescriptorSets" {
			offsets = append(offsets, cmd.Args[3].([]uint32)...)
		}
	}
	if len(offsets) != 2 || offsets[0] != 0 || uint64(offsets[1]) != fd.ObjectStride() {
		t.Errorf("dynamic offsets = %v, want [0 %d]", offsets, fd.ObjectStride())
	}
}

func TestDrawRecorderProjectionFlipsY(t *testing.T) {
	camera := components.NewCamera(mgl32.Vec3{})
	p := camera.Projection(1)
	if p.At(1, 1) >= 0 {
		t.Errorf("Projection()[1][1] = %v, want negative", p.At(1, 1))
	}
}

func TestDrawRecorderRejectsBadObjects(t *testing.T) {
	m := &metadata.Material{Name: "m", Pipeline: 9001, Layout: 9101}
	tests := []struct {
		name    string
		objects []*metadata.RenderObject
	}{
		{"mesh not uploaded", []*metadata.RenderObject{{Mesh: &metadata.Mesh{Name: "cpu"}, Material: m}}},
		{"no material", []*metadata.RenderObject{{Mesh: fakeMesh("a", 1, 2, 3)}}},
		{"too many objects", make([]*metadata.RenderObject, 9)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, _, err := recordOnce(t, tt.objects, mgl32.Ident4())
			if !errors.Is(err, core.ErrInvalidArgument) {
				t.Errorf("Record() = %v, want %v", err, core.ErrInvalidArgument)
			}
		})
	}
}
