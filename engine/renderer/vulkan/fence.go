package vulkan

import (
	"time"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
)

func (d *VulkanDevice) CreateFence(signaled bool) (driver.Handle, error) {
	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if err := resultError(vk.CreateFence(d.LogicalDevice, &fenceCreateInfo, d.context.Allocator, &fence), "vkCreateFence"); err != nil {
		return driver.NullHandle, err
	}
	return d.register(driver.ResourceFence, fence), nil
}

func (d *VulkanDevice) CreateSemaphore() (driver.Handle, error) {
	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var semaphore vk.Semaphore
	if err := resultError(vk.CreateSemaphore(d.LogicalDevice, &semaphoreCreateInfo, d.context.Allocator, &semaphore), "vkCreateSemaphore"); err != nil {
		return driver.NullHandle, err
	}
	return d.register(driver.ResourceSemaphore, semaphore), nil
}

func (d *VulkanDevice) WaitForFence(handle driver.Handle, timeout time.Duration) error {
	fence, err := lookup[vk.Fence](d, handle, driver.ResourceFence)
	if err != nil {
		return err
	}
	result := vk.WaitForFences(d.LogicalDevice, 1, []vk.Fence{fence}, vk.True, timeoutNanos(timeout))
	switch result {
	case vk.Success:
		return nil
	case vk.Timeout:
		core.LogWarn("vk_fence_wait - Timed out")
	case vk.ErrorDeviceLost:
		core.LogError("vk_fence_wait - VK_ERROR_DEVICE_LOST.")
	}
	return resultError(result, "vkWaitForFences")
}

func (d *VulkanDevice) ResetFence(handle driver.Handle) error {
	fence, err := lookup[vk.Fence](d, handle, driver.ResourceFence)
	if err != nil {
		return err
	}
	return resultError(vk.ResetFences(d.LogicalDevice, 1, []vk.Fence{fence}), "vkResetFences")
}

// Submit queues cb on the graphics queue.
func (d *VulkanDevice) Submit(cb driver.CommandBuffer, wait, signal, fence driver.Handle) error {
	vcb, ok := cb.(*VulkanCommandBuffer)
	if !ok {
		return core.ErrInvalidArgument
	}
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{vcb.handle},
	}
	if wait != driver.NullHandle {
		semaphore, err := lookup[vk.Semaphore](d, wait, driver.ResourceSemaphore)
		if err != nil {
			return err
		}
		submitInfo.WaitSemaphoreCount = 1
		submitInfo.PWaitSemaphores = []vk.Semaphore{semaphore}
		submitInfo.PWaitDstStageMask = []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)}
	}
	if signal != driver.NullHandle {
		semaphore, err := lookup[vk.Semaphore](d, signal, driver.ResourceSemaphore)
		if err != nil {
			return err
		}
		submitInfo.SignalSemaphoreCount = 1
		submitInfo.PSignalSemaphores = []vk.Semaphore{semaphore}
	}
	vkFence := vk.NullFence
	if fence != driver.NullHandle {
		f, err := lookup[vk.Fence](d, fence, driver.ResourceFence)
		if err != nil {
			return err
		}
		vkFence = f
	}

	err := d.locks.SafeQueueCall(d.GraphicsQueueIndex, func() error {
		return resultError(vk.QueueSubmit(d.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, vkFence), "vkQueueSubmit")
	})
	if err != nil {
		return err
	}
	vcb.state = commandBufferSubmitted
	return nil
}
