package renderer

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/ember/engine/core"
	emath "github.com/spaghettifunk/ember/engine/math"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
	"github.com/spaghettifunk/ember/engine/renderer/metadata"
)

const (
	bindingFrame   uint32 = 0
	bindingObjects uint32 = 1
	bindingTexture uint32 = 2
)

// FrameData is written once per frame at the start of the slot's uniform
// buffer. Layout matches the std140 block in the shaders.
type FrameData struct {
	View           mgl32.Mat4
	Projection     mgl32.Mat4
	ViewProjection mgl32.Mat4
	// x: seconds since start, y: frame slot index
	Time [4]float32
}

// ObjectData is written once per drawn object at a dynamic offset.
type ObjectData struct {
	MVP   mgl32.Mat4
	Model mgl32.Mat4
}

const (
	frameDataSize  = uint64(unsafe.Sizeof(FrameData{}))
	objectDataSize = uint64(unsafe.Sizeof(ObjectData{}))
)

// FrameDescriptors owns the descriptor set layout, the pool and, per frame
// slot, one persistently mapped uniform buffer and the set pointing into it.
//
// Each uniform buffer holds FrameData followed by MaxObjects ObjectData
// records, every record aligned to minUniformBufferOffsetAlignment.
type FrameDescriptors struct {
	device driver.Device
	layout driver.Handle
	pool   driver.Handle
	slots  []*FrameSlot

	frameStride  uint64
	objectStride uint64
	maxObjects   uint32
}

func NewFrameDescriptors(device driver.Device, allocator *Allocator, teardown *Teardown, slots []*FrameSlot, maxObjects uint32, texture *metadata.Texture) (*FrameDescriptors, error) {
	if maxObjects == 0 {
		return nil, errors.Wrap(core.ErrInvalidArgument, "max objects must be positive")
	}
	if texture == nil || texture.Image == nil {
		return nil, errors.Wrap(core.ErrInvalidArgument, "descriptor sets need an initial texture")
	}
	align := device.Limits().MinUniformBufferOffsetAlignment
	fd := &FrameDescriptors{
		device:       device,
		slots:        slots,
		frameStride:  emath.AlignUp(frameDataSize, align),
		objectStride: emath.AlignUp(objectDataSize, align),
		maxObjects:   maxObjects,
	}

	var err error
	fd.layout, err = device.CreateDescriptorSetLayout([]driver.DescriptorBinding{
		{Binding: bindingFrame, Type: driver.DescriptorTypeUniformBuffer, Count: 1, Stages: driver.ShaderStageVertex | driver.ShaderStageFragment},
		{Binding: bindingObjects, Type: driver.DescriptorTypeUniformBufferDynamic, Count: 1, Stages: driver.ShaderStageVertex},
		{Binding: bindingTexture, Type: driver.DescriptorTypeCombinedImageSampler, Count: 1, Stages: driver.ShaderStageFragment},
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating descriptor set layout")
	}
	teardown.Push(driver.ResourceDescriptorSetLayout, fd.layout, "frame set layout")

	n := uint32(len(slots))
	fd.pool, err = device.CreateDescriptorPool(n, []driver.DescriptorPoolSize{
		{Type: driver.DescriptorTypeUniformBuffer, Count: n},
		{Type: driver.DescriptorTypeUniformBufferDynamic, Count: n},
		{Type: driver.DescriptorTypeCombinedImageSampler, Count: n},
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating descriptor pool")
	}
	teardown.Push(driver.ResourceDescriptorPool, fd.pool, "frame descriptor pool")

	size := fd.frameStride + uint64(maxObjects)*fd.objectStride
	for _, slot := range slots {
		slot.Uniforms, err = allocator.CreateBuffer(size, driver.BufferUsageUniform, metadata.MemoryUsageCPUToGPU, "frame uniforms")
		if err != nil {
			return nil, errors.Wrapf(err, "creating uniforms for frame %d", slot.Index)
		}
		teardown.PushBuffer(slot.Uniforms, "frame uniforms")

		slot.DescriptorSet, err = device.AllocateDescriptorSet(fd.pool, fd.layout)
		if err != nil {
			return nil, errors.Wrapf(err, "allocating descriptor set for frame %d", slot.Index)
		}
		err = device.UpdateDescriptorSet(slot.DescriptorSet, []driver.DescriptorWrite{
			{
				Binding: bindingFrame,
				Type:    driver.DescriptorTypeUniformBuffer,
				Buffer:  slot.Uniforms.Buffer,
				Offset:  0,
				Range:   frameDataSize,
			},
			{
				Binding: bindingObjects,
				Type:    driver.DescriptorTypeUniformBufferDynamic,
				Buffer:  slot.Uniforms.Buffer,
				Offset:  fd.frameStride,
				Range:   objectDataSize,
			},
			textureWrite(texture),
		})
		if err != nil {
			return nil, errors.Wrapf(err, "writing descriptor set for frame %d", slot.Index)
		}
	}
	return fd, nil
}

func textureWrite(texture *metadata.Texture) driver.DescriptorWrite {
	return driver.DescriptorWrite{
		Binding:     bindingTexture,
		Type:        driver.DescriptorTypeCombinedImageSampler,
		ImageView:   texture.Image.View,
		Sampler:     texture.Sampler,
		ImageLayout: driver.ImageLayoutShaderReadOnlyOptimal,
	}
}

// Layout is the descriptor set layout every material's pipeline layout uses.
func (fd *FrameDescriptors) Layout() driver.Handle {
	return fd.layout
}

func (fd *FrameDescriptors) MaxObjects() uint32 {
	return fd.maxObjects
}

// ObjectStride is the distance between two ObjectData records.
func (fd *FrameDescriptors) ObjectStride() uint64 {
	return fd.objectStride
}

func write[T any](dst []byte, offset uint64, value *T) {
	src := unsafe.Slice((*byte)(unsafe.Pointer(value)), unsafe.Sizeof(*value))
	copy(dst[offset:offset+uint64(len(src))], src)
}

// WriteFrame stores data in slot's mapping. The memory is coherent, so the
// write is visible to the next submission without a flush.
func (fd *FrameDescriptors) WriteFrame(slot *FrameSlot, data FrameData) {
	write(slot.Uniforms.Mapped, 0, &data)
}

// WriteObject stores the index-th object record and returns the dynamic
// offset to bind it with.
func (fd *FrameDescriptors) WriteObject(slot *FrameSlot, index uint32, data ObjectData) (uint32, error) {
	if index >= fd.maxObjects {
		return 0, errors.Wrapf(core.ErrInvalidArgument, "object %d exceeds the %d object limit", index, fd.maxObjects)
	}
	offset := uint64(index) * fd.objectStride
	write(slot.Uniforms.Mapped, fd.frameStride+offset, &data)
	return uint32(offset), nil
}

// BindTexture points the sampler binding of every set at texture. Only call
// it while no frame is in flight.
func (fd *FrameDescriptors) BindTexture(texture *metadata.Texture) error {
	if texture == nil || texture.Image == nil {
		return errors.Wrap(core.ErrInvalidArgument, "nil texture")
	}
	for _, slot := range fd.slots {
		if err := fd.device.UpdateDescriptorSet(slot.DescriptorSet, []driver.DescriptorWrite{textureWrite(texture)}); err != nil {
			return errors.Wrapf(err, "binding texture %s to frame %d", texture.Name, slot.Index)
		}
	}
	return nil
}
