package vulkan

import (
	"math"
	"time"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/ember/engine/core"
	emath "github.com/spaghettifunk/ember/engine/math"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
)

type VulkanSwapchainSupportInfo struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

// VulkanSwapchain implements driver.Swapchain. The render pass, depth
// attachment and framebuffers are owned here and rebuilt with the images.
type VulkanSwapchain struct {
	device *VulkanDevice

	Handle      vk.Swapchain
	ImageFormat vk.SurfaceFormat
	extent      vk.Extent2D
	Images      []vk.Image
	Views       []vk.ImageView

	DepthAttachment *VulkanImage

	renderPass   driver.Handle
	framebuffers []driver.Handle

	vsync bool
}

func NewVulkanSwapchain(device *VulkanDevice, width, height uint32, vsync bool) (*VulkanSwapchain, error) {
	vs := &VulkanSwapchain{device: device, vsync: vsync}
	if err := vs.create(width, height); err != nil {
		vs.Destroy()
		return nil, err
	}
	return vs, nil
}

func (vs *VulkanSwapchain) Extent() driver.Extent2D {
	return driver.Extent2D{Width: vs.extent.Width, Height: vs.extent.Height}
}

func (vs *VulkanSwapchain) ImageCount() uint32 {
	return uint32(len(vs.Images))
}

func (vs *VulkanSwapchain) RenderTarget() driver.RenderTarget {
	return driver.RenderTarget{
		RenderPass:  vs.renderPass,
		ColorFormat: driver.Format(vs.ImageFormat.Format),
		DepthFormat: driver.Format(vs.device.DepthFormat),
	}
}

func (vs *VulkanSwapchain) Framebuffer(index uint32) driver.Handle {
	if index >= uint32(len(vs.framebuffers)) {
		return driver.NullHandle
	}
	return vs.framebuffers[index]
}

func (vs *VulkanSwapchain) AcquireNextImage(timeout time.Duration, semaphore driver.Handle) (uint32, bool, error) {
	sem, err := lookup[vk.Semaphore](vs.device, semaphore, driver.ResourceSemaphore)
	if err != nil {
		return 0, false, err
	}
	var imageIndex uint32
	result := vk.AcquireNextImage(vs.device.LogicalDevice, vs.Handle, timeoutNanos(timeout), sem, vk.NullFence, &imageIndex)
	suboptimal, err := swapchainResult(result, "vkAcquireNextImageKHR")
	if err != nil {
		return 0, false, err
	}
	return imageIndex, suboptimal, nil
}

func (vs *VulkanSwapchain) Present(index uint32, wait driver.Handle) (bool, error) {
	sem, err := lookup[vk.Semaphore](vs.device, wait, driver.ResourceSemaphore)
	if err != nil {
		return false, err
	}
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{sem},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{vs.Handle},
		PImageIndices:      []uint32{index},
	}
	var suboptimal bool
	err = vs.device.locks.SafeQueueCall(vs.device.PresentQueueIndex, func() error {
		var err error
		suboptimal, err = swapchainResult(vk.QueuePresent(vs.device.PresentQueue, &presentInfo), "vkQueuePresentKHR")
		return err
	})
	return suboptimal, err
}

// Rebuild recreates the swapchain for a new window size. The caller must have
// waited for the device to go idle.
func (vs *VulkanSwapchain) Rebuild(width, height uint32) error {
	if width == 0 || height == 0 {
		return errors.Wrapf(core.ErrInvalidArgument, "swapchain extent %dx%d", width, height)
	}
	if err := QuerySwapchainSupport(vs.device.PhysicalDevice, vs.device.context.Surface, &vs.device.SwapchainSupport); err != nil {
		return err
	}
	vs.destroyAttachments()
	return vs.create(width, height)
}

func (vs *VulkanSwapchain) chooseFormat() vk.SurfaceFormat {
	formats := vs.device.SwapchainSupport.Formats
	for _, format := range formats {
		if format.Format == vk.FormatB8g8r8a8Unorm && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return format
		}
	}
	return formats[0]
}

// choosePresentMode prefers mailbox when vsync is off. FIFO is always available.
func (vs *VulkanSwapchain) choosePresentMode() vk.PresentMode {
	if vs.vsync {
		return vk.PresentModeFifo
	}
	for _, mode := range vs.device.SwapchainSupport.PresentModes {
		if mode == vk.PresentModeMailbox {
			return mode
		}
	}
	return vk.PresentModeFifo
}

func (vs *VulkanSwapchain) create(width, height uint32) error {
	d := vs.device
	caps := d.SwapchainSupport.Capabilities
	if len(d.SwapchainSupport.Formats) == 0 {
		return errors.Wrap(core.ErrNotFound, "surface reports no formats")
	}
	vs.ImageFormat = vs.chooseFormat()
	presentMode := vs.choosePresentMode()

	extent := vk.Extent2D{Width: width, Height: height}
	if caps.CurrentExtent.Width != math.MaxUint32 {
		extent = caps.CurrentExtent
	}
	extent.Width = emath.Clamp(extent.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width)
	extent.Height = emath.Clamp(extent.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height)
	if extent.Width == 0 || extent.Height == 0 {
		return errors.Wrap(core.ErrSwapchainBooting, "surface extent is zero")
	}

	imageCount := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && imageCount > caps.MaxImageCount {
		imageCount = caps.MaxImageCount
	}

	oldSwapchain := vs.Handle
	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          d.context.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      vs.ImageFormat.Format,
		ImageColorSpace:  vs.ImageFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
		OldSwapchain:     oldSwapchain,
	}
	if d.GraphicsQueueIndex != d.PresentQueueIndex {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{d.GraphicsQueueIndex, d.PresentQueueIndex}
	} else {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	var handle vk.Swapchain
	err := resultError(vk.CreateSwapchain(d.LogicalDevice, &swapchainCreateInfo, d.context.Allocator, &handle), "vkCreateSwapchainKHR")
	if oldSwapchain != vk.NullSwapchain {
		vk.DestroySwapchain(d.LogicalDevice, oldSwapchain, d.context.Allocator)
		vs.Handle = vk.NullSwapchain
	}
	if err != nil {
		return err
	}
	vs.Handle = handle
	vs.extent = extent

	var count uint32
	if err := resultError(vk.GetSwapchainImages(d.LogicalDevice, vs.Handle, &count, nil), "vkGetSwapchainImagesKHR"); err != nil {
		return err
	}
	vs.Images = make([]vk.Image, count)
	if err := resultError(vk.GetSwapchainImages(d.LogicalDevice, vs.Handle, &count, vs.Images), "vkGetSwapchainImagesKHR"); err != nil {
		return err
	}
	vs.Views = make([]vk.ImageView, 0, count)
	for _, image := range vs.Images {
		view, err := d.createImageView(image, vs.ImageFormat.Format, vk.ImageAspectFlags(vk.ImageAspectColorBit))
		if err != nil {
			return err
		}
		vs.Views = append(vs.Views, view)
	}

	depth, err := NewVulkanImage(d, extent.Width, extent.Height, d.DepthFormat,
		vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit), vk.ImageAspectFlags(vk.ImageAspectDepthBit))
	if err != nil {
		return errors.Wrap(err, "creating depth attachment")
	}
	vs.DepthAttachment = depth

	renderPass, err := d.createRenderPass(vs.ImageFormat.Format, d.DepthFormat)
	if err != nil {
		return err
	}
	vs.renderPass = d.register(driver.ResourceRenderPass, renderPass)

	vs.framebuffers = make([]driver.Handle, 0, count)
	for _, view := range vs.Views {
		fb, err := d.createFramebuffer(renderPass, extent.Width, extent.Height, []vk.ImageView{view, depth.View})
		if err != nil {
			return err
		}
		vs.framebuffers = append(vs.framebuffers, d.register(driver.ResourceFramebuffer, fb))
	}

	core.LogInfo("Swapchain created: %dx%d, %d images, present mode %d.", extent.Width, extent.Height, count, presentMode)
	return nil
}

// destroyAttachments releases everything except the swapchain handle, which
// create passes on as OldSwapchain.
func (vs *VulkanSwapchain) destroyAttachments() {
	d := vs.device
	for _, fb := range vs.framebuffers {
		d.Destroy(driver.ResourceFramebuffer, fb)
	}
	vs.framebuffers = nil
	if vs.renderPass != driver.NullHandle {
		d.Destroy(driver.ResourceRenderPass, vs.renderPass)
		vs.renderPass = driver.NullHandle
	}
	if vs.DepthAttachment != nil {
		vs.DepthAttachment.Destroy(d)
		vs.DepthAttachment = nil
	}
	// Images belong to the swapchain, only the views are ours.
	for _, view := range vs.Views {
		vk.DestroyImageView(d.LogicalDevice, view, d.context.Allocator)
	}
	vs.Views = nil
	vs.Images = nil
}

func (vs *VulkanSwapchain) Destroy() {
	vs.destroyAttachments()
	if vs.Handle != vk.NullSwapchain {
		vk.DestroySwapchain(vs.device.LogicalDevice, vs.Handle, vs.device.context.Allocator)
		vs.Handle = vk.NullSwapchain
	}
}
