// Package driver is the seam between the renderer core and the GPU API.
// Handles are opaque; the Vulkan backend maps them onto vk objects and
// drivertest maps them onto an in-memory simulation.
package driver

import "time"

// Handle identifies a GPU object owned by a Device. Zero is never a valid handle.
type Handle uint64

const NullHandle Handle = 0

type ResourceKind uint8

const (
	ResourceUnknown ResourceKind = iota
	ResourceBuffer
	ResourceMemory
	ResourceImage
	ResourceImageView
	ResourceSampler
	ResourceShaderModule
	ResourceDescriptorSetLayout
	ResourceDescriptorPool
	ResourcePipelineLayout
	ResourcePipeline
	ResourceFence
	ResourceSemaphore
	ResourceCommandBuffer
	ResourceRenderPass
	ResourceFramebuffer
)

var resourceKindNames = [...]string{
	ResourceUnknown:             "unknown",
	ResourceBuffer:              "buffer",
	ResourceMemory:              "memory",
	ResourceImage:               "image",
	ResourceImageView:           "image view",
	ResourceSampler:             "sampler",
	ResourceShaderModule:        "shader module",
	ResourceDescriptorSetLayout: "descriptor set layout",
	ResourceDescriptorPool:      "descriptor pool",
	ResourcePipelineLayout:      "pipeline layout",
	ResourcePipeline:            "pipeline",
	ResourceFence:               "fence",
	ResourceSemaphore:           "semaphore",
	ResourceCommandBuffer:       "command buffer",
	ResourceRenderPass:          "render pass",
	ResourceFramebuffer:         "framebuffer",
}

func (k ResourceKind) String() string {
	if int(k) < len(resourceKindNames) {
		return resourceKindNames[k]
	}
	return resourceKindNames[ResourceUnknown]
}

// Device is a logical GPU device with a single graphics+present queue.
type Device interface {
	MemoryTypes() []MemoryType
	Limits() Limits

	CreateBuffer(size uint64, usage BufferUsageFlags) (Handle, MemoryRequirements, error)
	CreateImage(desc ImageDesc) (Handle, MemoryRequirements, error)
	AllocateMemory(size uint64, memoryTypeIndex uint32) (Handle, error)
	BindBufferMemory(buffer, memory Handle, offset uint64) error
	BindImageMemory(image, memory Handle, offset uint64) error
	// MapMemory returns a view of the whole allocation. The slice stays valid
	// until UnmapMemory.
	MapMemory(memory Handle, size uint64) ([]byte, error)
	UnmapMemory(memory Handle)

	CreateImageView(desc ImageViewDesc) (Handle, error)
	CreateSampler(desc SamplerDesc) (Handle, error)
	CreateShaderModule(code []uint32) (Handle, error)

	CreateDescriptorSetLayout(bindings []DescriptorBinding) (Handle, error)
	CreateDescriptorPool(maxSets uint32, sizes []DescriptorPoolSize) (Handle, error)
	AllocateDescriptorSet(pool, layout Handle) (Handle, error)
	UpdateDescriptorSet(set Handle, writes []DescriptorWrite) error

	CreatePipelineLayout(setLayouts []Handle, pushConstants []PushConstantRange) (Handle, error)
	CreateGraphicsPipeline(desc *GraphicsPipelineDesc) (Handle, error)

	CreateFence(signaled bool) (Handle, error)
	CreateSemaphore() (Handle, error)
	// WaitForFence blocks until the fence is signaled. It returns an error
	// matching core.ErrTimeout when the timeout elapses first.
	WaitForFence(fence Handle, timeout time.Duration) error
	ResetFence(fence Handle) error

	AllocateCommandBuffer() (CommandBuffer, error)
	FreeCommandBuffer(cb CommandBuffer)

	// Submit queues cb. wait is waited on at the color attachment output stage.
	// Any of wait, signal and fence may be NullHandle.
	Submit(cb CommandBuffer, wait, signal, fence Handle) error
	QueueWaitIdle() error
	WaitIdle() error

	Destroy(kind ResourceKind, handle Handle)
}

// Swapchain owns the presentable images, their framebuffers and the depth
// attachment shared by all of them.
type Swapchain interface {
	// AcquireNextImage signals semaphore once the returned image is available.
	// An error matching core.ErrSwapchainOutOfDate means nothing was acquired.
	AcquireNextImage(timeout time.Duration, semaphore Handle) (index uint32, suboptimal bool, err error)
	// Present queues image for presentation after wait is signaled.
	Present(index uint32, wait Handle) (suboptimal bool, err error)
	Extent() Extent2D
	ImageCount() uint32
	RenderTarget() RenderTarget
	Framebuffer(index uint32) Handle
	Rebuild(width, height uint32) error
	Destroy()
}

// CommandBuffer records GPU commands for a later Submit.
type CommandBuffer interface {
	Handle() Handle
	Begin(oneTimeSubmit bool) error
	End() error
	Reset() error

	BeginRenderPass(pass, framebuffer Handle, extent Extent2D, clear []ClearValue)
	EndRenderPass()

	BindPipeline(pipeline Handle)
	BindDescriptorSets(layout Handle, firstSet uint32, sets []Handle, dynamicOffsets []uint32)
	BindVertexBuffer(buffer Handle, offset uint64)
	BindIndexBuffer(buffer Handle, offset uint64, indexType IndexType)
	PushConstants(layout Handle, stages ShaderStageFlags, offset uint32, data []byte)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)

	CopyBuffer(src, dst Handle, regions []BufferCopy)
	CopyBufferToImage(src, dst Handle, layout ImageLayout, region BufferImageCopy)
	CopyImageToBuffer(src Handle, layout ImageLayout, dst Handle, region BufferImageCopy)
	ImageBarrier(barrier ImageBarrier)
}
