package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
)

func (d *VulkanDevice) CreateImage(desc driver.ImageDesc) (driver.Handle, driver.MemoryRequirements, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return driver.NullHandle, driver.MemoryRequirements{}, errors.Wrapf(core.ErrInvalidArgument, "image extent %dx%d", desc.Width, desc.Height)
	}
	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  desc.Width,
			Height: desc.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        vk.Format(desc.Format),
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         vk.ImageUsageFlags(desc.Usage),
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}
	var image vk.Image
	if err := resultError(vk.CreateImage(d.LogicalDevice, &imageCreateInfo, d.context.Allocator, &image), "vkCreateImage"); err != nil {
		return driver.NullHandle, driver.MemoryRequirements{}, err
	}
	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.LogicalDevice, image, &requirements)
	requirements.Deref()
	return d.register(driver.ResourceImage, image), driver.MemoryRequirements{
		Size:           uint64(requirements.Size),
		Alignment:      uint64(requirements.Alignment),
		MemoryTypeBits: requirements.MemoryTypeBits,
	}, nil
}

func (d *VulkanDevice) CreateImageView(desc driver.ImageViewDesc) (driver.Handle, error) {
	image, err := lookup[vk.Image](d, desc.Image, driver.ResourceImage)
	if err != nil {
		return driver.NullHandle, err
	}
	view, err := d.createImageView(image, vk.Format(desc.Format), vk.ImageAspectFlags(desc.Aspect))
	if err != nil {
		return driver.NullHandle, err
	}
	return d.register(driver.ResourceImageView, view), nil
}

func (d *VulkanDevice) createImageView(image vk.Image, format vk.Format, aspect vk.ImageAspectFlags) (vk.ImageView, error) {
	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var view vk.ImageView
	if err := resultError(vk.CreateImageView(d.LogicalDevice, &viewCreateInfo, d.context.Allocator, &view), "vkCreateImageView"); err != nil {
		return vk.NullImageView, err
	}
	return view, nil
}

func (d *VulkanDevice) CreateSampler(desc driver.SamplerDesc) (driver.Handle, error) {
	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.Filter(desc.MagFilter),
		MinFilter:               vk.Filter(desc.MinFilter),
		AddressModeU:            vk.SamplerAddressMode(desc.AddressMode),
		AddressModeV:            vk.SamplerAddressMode(desc.AddressMode),
		AddressModeW:            vk.SamplerAddressMode(desc.AddressMode),
		AnisotropyEnable:        vk.False,
		MaxAnisotropy:           1,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MipmapMode:              vk.SamplerMipmapModeLinear,
	}
	if d.Features.SamplerAnisotropy == vk.True {
		samplerInfo.AnisotropyEnable = vk.True
		samplerInfo.MaxAnisotropy = d.Properties.Limits.MaxSamplerAnisotropy
	}
	var sampler vk.Sampler
	if err := resultError(vk.CreateSampler(d.LogicalDevice, &samplerInfo, d.context.Allocator, &sampler), "vkCreateSampler"); err != nil {
		return driver.NullHandle, err
	}
	return d.register(driver.ResourceSampler, sampler), nil
}

// VulkanImage is an image with its own dedicated allocation and a single view.
// The swapchain uses one for the depth attachment.
type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Width  uint32
	Height uint32
}

func NewVulkanImage(d *VulkanDevice, width, height uint32, format vk.Format, usage vk.ImageUsageFlags, aspect vk.ImageAspectFlags) (*VulkanImage, error) {
	img := &VulkanImage{Width: width, Height: height}
	imageCreateInfo := vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Extent:        vk.Extent3D{Width: width, Height: height, Depth: 1},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         usage,
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}
	if err := resultError(vk.CreateImage(d.LogicalDevice, &imageCreateInfo, d.context.Allocator, &img.Handle), "vkCreateImage"); err != nil {
		return nil, err
	}

	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.LogicalDevice, img.Handle, &requirements)
	requirements.Deref()
	memoryType := d.FindMemoryIndex(requirements.MemoryTypeBits, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if memoryType < 0 {
		img.Destroy(d)
		return nil, errors.Wrap(core.ErrNotFound, "required memory type not found, image not valid")
	}
	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(memoryType),
	}
	if err := resultError(vk.AllocateMemory(d.LogicalDevice, &allocateInfo, d.context.Allocator, &img.Memory), "vkAllocateMemory"); err != nil {
		img.Destroy(d)
		return nil, err
	}
	if err := resultError(vk.BindImageMemory(d.LogicalDevice, img.Handle, img.Memory, 0), "vkBindImageMemory"); err != nil {
		img.Destroy(d)
		return nil, err
	}
	view, err := d.createImageView(img.Handle, format, aspect)
	if err != nil {
		img.Destroy(d)
		return nil, err
	}
	img.View = view
	return img, nil
}

func (img *VulkanImage) Destroy(d *VulkanDevice) {
	if img.View != vk.NullImageView {
		vk.DestroyImageView(d.LogicalDevice, img.View, d.context.Allocator)
		img.View = vk.NullImageView
	}
	if img.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(d.LogicalDevice, img.Memory, d.context.Allocator)
		img.Memory = vk.NullDeviceMemory
	}
	if img.Handle != vk.NullImage {
		vk.DestroyImage(d.LogicalDevice, img.Handle, d.context.Allocator)
		img.Handle = vk.NullImage
	}
}
