package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
)

// memoryObject is a device allocation. mapped tracks whether it is currently
// mapped into host address space.
type memoryObject struct {
	memory vk.DeviceMemory
	size   uint64
	mapped bool
}

func (d *VulkanDevice) CreateBuffer(size uint64, usage driver.BufferUsageFlags) (driver.Handle, driver.MemoryRequirements, error) {
	if size == 0 {
		return driver.NullHandle, driver.MemoryRequirements{}, errors.Wrap(core.ErrInvalidArgument, "buffer size is zero")
	}
	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var buffer vk.Buffer
	if err := resultError(vk.CreateBuffer(d.LogicalDevice, &bufferInfo, d.context.Allocator, &buffer), "vkCreateBuffer"); err != nil {
		return driver.NullHandle, driver.MemoryRequirements{}, err
	}
	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.LogicalDevice, buffer, &requirements)
	requirements.Deref()
	return d.register(driver.ResourceBuffer, buffer), driver.MemoryRequirements{
		Size:           uint64(requirements.Size),
		Alignment:      uint64(requirements.Alignment),
		MemoryTypeBits: requirements.MemoryTypeBits,
	}, nil
}

func (d *VulkanDevice) AllocateMemory(size uint64, memoryTypeIndex uint32) (driver.Handle, error) {
	if memoryTypeIndex >= d.Memory.MemoryTypeCount {
		return driver.NullHandle, errors.Wrapf(core.ErrInvalidArgument, "memory type %d out of range", memoryTypeIndex)
	}
	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  vk.DeviceSize(size),
		MemoryTypeIndex: memoryTypeIndex,
	}
	var memory vk.DeviceMemory
	if err := resultError(vk.AllocateMemory(d.LogicalDevice, &allocateInfo, d.context.Allocator, &memory), "vkAllocateMemory"); err != nil {
		return driver.NullHandle, err
	}
	return d.register(driver.ResourceMemory, &memoryObject{memory: memory, size: size}), nil
}

func (d *VulkanDevice) BindBufferMemory(buffer, memory driver.Handle, offset uint64) error {
	b, err := lookup[vk.Buffer](d, buffer, driver.ResourceBuffer)
	if err != nil {
		return err
	}
	mem, err := lookup[*memoryObject](d, memory, driver.ResourceMemory)
	if err != nil {
		return err
	}
	return resultError(vk.BindBufferMemory(d.LogicalDevice, b, mem.memory, vk.DeviceSize(offset)), "vkBindBufferMemory")
}

func (d *VulkanDevice) BindImageMemory(image, memory driver.Handle, offset uint64) error {
	img, err := lookup[vk.Image](d, image, driver.ResourceImage)
	if err != nil {
		return err
	}
	mem, err := lookup[*memoryObject](d, memory, driver.ResourceMemory)
	if err != nil {
		return err
	}
	return resultError(vk.BindImageMemory(d.LogicalDevice, img, mem.memory, vk.DeviceSize(offset)), "vkBindImageMemory")
}

func (d *VulkanDevice) MapMemory(memory driver.Handle, size uint64) ([]byte, error) {
	mem, err := lookup[*memoryObject](d, memory, driver.ResourceMemory)
	if err != nil {
		return nil, err
	}
	if mem.mapped {
		return nil, errors.Wrapf(core.ErrInvalidArgument, "memory %d is already mapped", memory)
	}
	if size == 0 || size > mem.size {
		size = mem.size
	}
	var data unsafe.Pointer
	if err := resultError(vk.MapMemory(d.LogicalDevice, mem.memory, 0, vk.DeviceSize(size), 0, &data), "vkMapMemory"); err != nil {
		return nil, err
	}
	mem.mapped = true
	return unsafe.Slice((*byte)(data), size), nil
}

func (d *VulkanDevice) UnmapMemory(memory driver.Handle) {
	mem, err := lookup[*memoryObject](d, memory, driver.ResourceMemory)
	if err != nil {
		core.LogWarn("unmap: %v", err)
		return
	}
	if !mem.mapped {
		return
	}
	vk.UnmapMemory(d.LogicalDevice, mem.memory)
	mem.mapped = false
}
