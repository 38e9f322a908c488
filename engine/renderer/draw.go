package renderer

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/components"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
	"github.com/spaghettifunk/ember/engine/renderer/metadata"
)

// DrawStats counts what one pass bound and drew.
type DrawStats struct {
	PipelineBinds   int
	MeshBinds       int
	DescriptorBinds int
	Draws           int
}

// DrawRecorder records the single render pass of a frame into a slot's
// command buffer.
type DrawRecorder struct {
	swapchain   driver.Swapchain
	descriptors *FrameDescriptors
	camera      *components.Camera

	ClearColor [4]float32
	// Seconds since start, written into FrameData.Time.x.
	Time float32
}

func NewDrawRecorder(swapchain driver.Swapchain, descriptors *FrameDescriptors, camera *components.Camera) *DrawRecorder {
	return &DrawRecorder{
		swapchain:   swapchain,
		descriptors: descriptors,
		camera:      camera,
		ClearColor:  [4]float32{0, 0, 0, 1},
	}
}

// Record writes the frame and object uniforms of slot and draws objects in
// the order given. A pipeline is bound only when the material changes and
// vertex/index buffers only when the mesh changes; both trackers start empty
// on every call. rotation is applied between view and model.
func (r *DrawRecorder) Record(cb driver.CommandBuffer, slot *FrameSlot, imageIndex uint32, objects []*metadata.RenderObject, rotation mgl32.Mat4) (DrawStats, error) {
	var stats DrawStats
	if n := uint32(len(objects)); n > r.descriptors.MaxObjects() {
		return stats, errors.Wrapf(core.ErrInvalidArgument, "%d render objects, at most %d per frame", n, r.descriptors.MaxObjects())
	}

	extent := r.swapchain.Extent()
	target := r.swapchain.RenderTarget()
	view := r.camera.View()
	projection := r.camera.Projection(float32(extent.Width) / float32(extent.Height))
	viewProjection := projection.Mul4(view)

	r.descriptors.WriteFrame(slot, FrameData{
		View:           view,
		Projection:     projection,
		ViewProjection: viewProjection,
		Time:           [4]float32{r.Time, float32(slot.Index), 0, 0},
	})

	cb.BeginRenderPass(target.RenderPass, r.swapchain.Framebuffer(imageIndex), extent, []driver.ClearValue{
		driver.ClearColor(r.ClearColor[0], r.ClearColor[1], r.ClearColor[2], r.ClearColor[3]),
		driver.ClearDepth(1, 0),
	})

	var (
		lastMaterial *metadata.Material
		lastMesh     *metadata.Mesh
		err          error
	)
	sets := []driver.Handle{slot.DescriptorSet}
	for i, obj := range objects {
		if obj.Mesh == nil || !obj.Mesh.Uploaded() {
			err = errors.Wrapf(core.ErrInvalidArgument, "render object %d has no uploaded mesh", i)
			break
		}
		if obj.Material == nil || obj.Material.Pipeline == driver.NullHandle {
			err = errors.Wrapf(core.ErrInvalidArgument, "render object %d has no built material", i)
			break
		}

		model := rotation.Mul4(obj.Transform)
		offset, werr := r.descriptors.WriteObject(slot, uint32(i), ObjectData{
			MVP:   viewProjection.Mul4(model),
			Model: model,
		})
		if werr != nil {
			err = werr
			break
		}

		if obj.Material != lastMaterial {
			cb.BindPipeline(obj.Material.Pipeline)
			lastMaterial = obj.Material
			stats.PipelineBinds++
		}
		cb.BindDescriptorSets(obj.Material.Layout, 0, sets, []uint32{offset})
		stats.DescriptorBinds++

		if obj.Mesh != lastMesh {
			cb.BindVertexBuffer(obj.Mesh.VertexBuffer.Buffer, 0)
			cb.BindIndexBuffer(obj.Mesh.IndexBuffer.Buffer, 0, driver.IndexTypeUint32)
			lastMesh = obj.Mesh
			stats.MeshBinds++
		}
		cb.DrawIndexed(obj.Mesh.IndexCount(), 1, 0, 0, 0)
		stats.Draws++
	}
	cb.EndRenderPass()
	return stats, err
}
