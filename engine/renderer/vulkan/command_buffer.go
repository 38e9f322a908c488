package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
)

type commandBufferState int

const (
	commandBufferReady commandBufferState = iota
	commandBufferRecording
	commandBufferInRenderPass
	commandBufferRecordingEnded
	commandBufferSubmitted
	commandBufferNotAllocated
)

// VulkanCommandBuffer is a primary command buffer from the graphics pool.
// Handle lookups that fail while recording are latched and reported by End.
type VulkanCommandBuffer struct {
	device *VulkanDevice
	handle vk.CommandBuffer
	id     driver.Handle
	state  commandBufferState
	err    error
}

func (d *VulkanDevice) AllocateCommandBuffer() (driver.CommandBuffer, error) {
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.GraphicsCommandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	handles := make([]vk.CommandBuffer, 1)
	err := d.locks.SafeCall(CommandPoolManagement, func() error {
		return resultError(vk.AllocateCommandBuffers(d.LogicalDevice, &allocateInfo, handles), "vkAllocateCommandBuffers")
	})
	if err != nil {
		return nil, err
	}
	cb := &VulkanCommandBuffer{
		device: d,
		handle: handles[0],
		state:  commandBufferReady,
	}
	cb.id = d.register(driver.ResourceCommandBuffer, cb)
	return cb, nil
}

// FreeCommandBuffer returns cb to the pool and drops its handle.
func (d *VulkanDevice) FreeCommandBuffer(cb driver.CommandBuffer) {
	if cb == nil {
		return
	}
	d.Destroy(driver.ResourceCommandBuffer, cb.Handle())
}

func (v *VulkanCommandBuffer) free() {
	if v.state == commandBufferNotAllocated {
		return
	}
	d := v.device
	_ = d.locks.SafeCall(CommandPoolManagement, func() error {
		vk.FreeCommandBuffers(d.LogicalDevice, d.GraphicsCommandPool, 1, []vk.CommandBuffer{v.handle})
		return nil
	})
	v.handle = nil
	v.state = commandBufferNotAllocated
}

func (v *VulkanCommandBuffer) Handle() driver.Handle {
	return v.id
}

func (v *VulkanCommandBuffer) fail(err error) {
	if v.err == nil && err != nil {
		v.err = err
	}
}

func (v *VulkanCommandBuffer) Begin(oneTimeSubmit bool) error {
	if v.state == commandBufferNotAllocated {
		return errors.Wrap(core.ErrInvalidArgument, "command buffer is not allocated")
	}
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if oneTimeSubmit {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if err := resultError(vk.BeginCommandBuffer(v.handle, &beginInfo), "vkBeginCommandBuffer"); err != nil {
		return err
	}
	v.err = nil
	v.state = commandBufferRecording
	return nil
}

func (v *VulkanCommandBuffer) End() error {
	if err := resultError(vk.EndCommandBuffer(v.handle), "vkEndCommandBuffer"); err != nil {
		return err
	}
	v.state = commandBufferRecordingEnded
	if v.err != nil {
		err := v.err
		v.err = nil
		return errors.Wrap(err, "recording command buffer")
	}
	return nil
}

func (v *VulkanCommandBuffer) Reset() error {
	if err := resultError(vk.ResetCommandBuffer(v.handle, 0), "vkResetCommandBuffer"); err != nil {
		return err
	}
	v.state = commandBufferReady
	v.err = nil
	return nil
}

func (v *VulkanCommandBuffer) BeginRenderPass(pass, framebuffer driver.Handle, extent driver.Extent2D, clear []driver.ClearValue) {
	renderPass, err := lookup[vk.RenderPass](v.device, pass, driver.ResourceRenderPass)
	if err != nil {
		v.fail(err)
		return
	}
	fb, err := lookup[vk.Framebuffer](v.device, framebuffer, driver.ResourceFramebuffer)
	if err != nil {
		v.fail(err)
		return
	}
	clearValues := make([]vk.ClearValue, len(clear))
	for i, c := range clear {
		if c.IsDepth {
			clearValues[i] = vk.NewClearDepthStencil(c.Depth, c.Stencil)
		} else {
			clearValues[i] = vk.NewClearValue(c.Color[:])
		}
	}
	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  renderPass,
		Framebuffer: fb,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{Width: extent.Width, Height: extent.Height},
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(v.handle, &beginInfo, vk.SubpassContentsInline)
	v.state = commandBufferInRenderPass
}

func (v *VulkanCommandBuffer) EndRenderPass() {
	vk.CmdEndRenderPass(v.handle)
	v.state = commandBufferRecording
}

func (v *VulkanCommandBuffer) BindPipeline(pipeline driver.Handle) {
	p, err := lookup[vk.Pipeline](v.device, pipeline, driver.ResourcePipeline)
	if err != nil {
		v.fail(err)
		return
	}
	vk.CmdBindPipeline(v.handle, vk.PipelineBindPointGraphics, p)
}

func (v *VulkanCommandBuffer) BindDescriptorSets(layout driver.Handle, firstSet uint32, sets []driver.Handle, dynamicOffsets []uint32) {
	pipelineLayout, err := lookup[vk.PipelineLayout](v.device, layout, driver.ResourcePipelineLayout)
	if err != nil {
		v.fail(err)
		return
	}
	vkSets := make([]vk.DescriptorSet, len(sets))
	for i, s := range sets {
		set, err := lookup[vk.DescriptorSet](v.device, s, resourceDescriptorSet)
		if err != nil {
			v.fail(err)
			return
		}
		vkSets[i] = set
	}
	vk.CmdBindDescriptorSets(v.handle, vk.PipelineBindPointGraphics, pipelineLayout, firstSet,
		uint32(len(vkSets)), vkSets, uint32(len(dynamicOffsets)), dynamicOffsets)
}

func (v *VulkanCommandBuffer) BindVertexBuffer(buffer driver.Handle, offset uint64) {
	b, err := lookup[vk.Buffer](v.device, buffer, driver.ResourceBuffer)
	if err != nil {
		v.fail(err)
		return
	}
	vk.CmdBindVertexBuffers(v.handle, 0, 1, []vk.Buffer{b}, []vk.DeviceSize{vk.DeviceSize(offset)})
}

func (v *VulkanCommandBuffer) BindIndexBuffer(buffer driver.Handle, offset uint64, indexType driver.IndexType) {
	b, err := lookup[vk.Buffer](v.device, buffer, driver.ResourceBuffer)
	if err != nil {
		v.fail(err)
		return
	}
	vk.CmdBindIndexBuffer(v.handle, b, vk.DeviceSize(offset), vk.IndexType(indexType))
}

func (v *VulkanCommandBuffer) PushConstants(layout driver.Handle, stages driver.ShaderStageFlags, offset uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	pipelineLayout, err := lookup[vk.PipelineLayout](v.device, layout, driver.ResourcePipelineLayout)
	if err != nil {
		v.fail(err)
		return
	}
	vk.CmdPushConstants(v.handle, pipelineLayout, vk.ShaderStageFlags(stages), offset, uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (v *VulkanCommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(v.handle, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

func (v *VulkanCommandBuffer) CopyBuffer(src, dst driver.Handle, regions []driver.BufferCopy) {
	srcBuffer, err := lookup[vk.Buffer](v.device, src, driver.ResourceBuffer)
	if err != nil {
		v.fail(err)
		return
	}
	dstBuffer, err := lookup[vk.Buffer](v.device, dst, driver.ResourceBuffer)
	if err != nil {
		v.fail(err)
		return
	}
	copies := make([]vk.BufferCopy, len(regions))
	for i, r := range regions {
		copies[i] = vk.BufferCopy{
			SrcOffset: vk.DeviceSize(r.SrcOffset),
			DstOffset: vk.DeviceSize(r.DstOffset),
			Size:      vk.DeviceSize(r.Size),
		}
	}
	vk.CmdCopyBuffer(v.handle, srcBuffer, dstBuffer, uint32(len(copies)), copies)
}

func bufferImageCopy(region driver.BufferImageCopy) vk.BufferImageCopy {
	return vk.BufferImageCopy{
		BufferOffset:      vk.DeviceSize(region.BufferOffset),
		BufferRowLength:   0,
		BufferImageHeight: 0,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(region.Aspect),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageOffset: vk.Offset3D{X: 0, Y: 0, Z: 0},
		ImageExtent: vk.Extent3D{Width: region.Width, Height: region.Height, Depth: 1},
	}
}

func (v *VulkanCommandBuffer) CopyBufferToImage(src, dst driver.Handle, layout driver.ImageLayout, region driver.BufferImageCopy) {
	buffer, err := lookup[vk.Buffer](v.device, src, driver.ResourceBuffer)
	if err != nil {
		v.fail(err)
		return
	}
	image, err := lookup[vk.Image](v.device, dst, driver.ResourceImage)
	if err != nil {
		v.fail(err)
		return
	}
	vk.CmdCopyBufferToImage(v.handle, buffer, image, vk.ImageLayout(layout), 1, []vk.BufferImageCopy{bufferImageCopy(region)})
}

func (v *VulkanCommandBuffer) CopyImageToBuffer(src driver.Handle, layout driver.ImageLayout, dst driver.Handle, region driver.BufferImageCopy) {
	image, err := lookup[vk.Image](v.device, src, driver.ResourceImage)
	if err != nil {
		v.fail(err)
		return
	}
	buffer, err := lookup[vk.Buffer](v.device, dst, driver.ResourceBuffer)
	if err != nil {
		v.fail(err)
		return
	}
	vk.CmdCopyImageToBuffer(v.handle, image, vk.ImageLayout(layout), buffer, 1, []vk.BufferImageCopy{bufferImageCopy(region)})
}

func (v *VulkanCommandBuffer) ImageBarrier(barrier driver.ImageBarrier) {
	image, err := lookup[vk.Image](v.device, barrier.Image, driver.ResourceImage)
	if err != nil {
		v.fail(err)
		return
	}
	b := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           vk.ImageLayout(barrier.OldLayout),
		NewLayout:           vk.ImageLayout(barrier.NewLayout),
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SrcAccessMask:       vk.AccessFlags(barrier.SrcAccess),
		DstAccessMask:       vk.AccessFlags(barrier.DstAccess),
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(barrier.Aspect),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	vk.CmdPipelineBarrier(v.handle, vk.PipelineStageFlags(barrier.SrcStage), vk.PipelineStageFlags(barrier.DstStage),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{b})
}
