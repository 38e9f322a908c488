package vulkan

import (
	vk "github.com/goki/vulkan"
)

func (d *VulkanDevice) createFramebuffer(renderPass vk.RenderPass, width, height uint32, attachments []vk.ImageView) (vk.Framebuffer, error) {
	framebufferCreateInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderPass,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		Width:           width,
		Height:          height,
		Layers:          1,
	}
	var framebuffer vk.Framebuffer
	if err := resultError(vk.CreateFramebuffer(d.LogicalDevice, &framebufferCreateInfo, d.context.Allocator, &framebuffer), "vkCreateFramebuffer"); err != nil {
		return vk.NullFramebuffer, err
	}
	return framebuffer, nil
}
