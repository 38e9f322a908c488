package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
)

// descriptorPool owns the sets allocated from it. Destroying the pool drops
// their handles.
type descriptorPool struct {
	pool vk.DescriptorPool
	sets []driver.Handle
}

func (d *VulkanDevice) CreateDescriptorSetLayout(bindings []driver.DescriptorBinding) (driver.Handle, error) {
	vkBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		count := b.Count
		if count == 0 {
			count = 1
		}
		vkBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  vk.DescriptorType(b.Type),
			DescriptorCount: count,
			StageFlags:      vk.ShaderStageFlags(b.Stages),
		}
	}
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(vkBindings)),
		PBindings:    vkBindings,
	}
	var layout vk.DescriptorSetLayout
	if err := resultError(vk.CreateDescriptorSetLayout(d.LogicalDevice, &layoutInfo, d.context.Allocator, &layout), "vkCreateDescriptorSetLayout"); err != nil {
		return driver.NullHandle, err
	}
	return d.register(driver.ResourceDescriptorSetLayout, layout), nil
}

func (d *VulkanDevice) CreateDescriptorPool(maxSets uint32, sizes []driver.DescriptorPoolSize) (driver.Handle, error) {
	poolSizes := make([]vk.DescriptorPoolSize, len(sizes))
	for i, s := range sizes {
		poolSizes[i] = vk.DescriptorPoolSize{
			Type:            vk.DescriptorType(s.Type),
			DescriptorCount: s.Count,
		}
	}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       maxSets,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}
	var pool vk.DescriptorPool
	if err := resultError(vk.CreateDescriptorPool(d.LogicalDevice, &poolInfo, d.context.Allocator, &pool), "vkCreateDescriptorPool"); err != nil {
		return driver.NullHandle, err
	}
	return d.register(driver.ResourceDescriptorPool, &descriptorPool{pool: pool}), nil
}

func (d *VulkanDevice) AllocateDescriptorSet(pool, layout driver.Handle) (driver.Handle, error) {
	p, err := lookup[*descriptorPool](d, pool, driver.ResourceDescriptorPool)
	if err != nil {
		return driver.NullHandle, err
	}
	l, err := lookup[vk.DescriptorSetLayout](d, layout, driver.ResourceDescriptorSetLayout)
	if err != nil {
		return driver.NullHandle, err
	}
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     p.pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{l},
	}
	sets := make([]vk.DescriptorSet, 1)
	err = d.locks.SafeCall(DescriptorManagement, func() error {
		return resultError(vk.AllocateDescriptorSets(d.LogicalDevice, &allocInfo, &sets[0]), "vkAllocateDescriptorSets")
	})
	if err != nil {
		return driver.NullHandle, err
	}
	h := d.register(resourceDescriptorSet, sets[0])
	p.sets = append(p.sets, h)
	return h, nil
}

func (d *VulkanDevice) UpdateDescriptorSet(set driver.Handle, writes []driver.DescriptorWrite) error {
	dst, err := lookup[vk.DescriptorSet](d, set, resourceDescriptorSet)
	if err != nil {
		return err
	}
	vkWrites := make([]vk.WriteDescriptorSet, len(writes))
	for i, w := range writes {
		vkWrites[i] = vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          dst,
			DstBinding:      w.Binding,
			DstArrayElement: 0,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorType(w.Type),
		}
		switch w.Type {
		case driver.DescriptorTypeCombinedImageSampler:
			view, err := lookup[vk.ImageView](d, w.ImageView, driver.ResourceImageView)
			if err != nil {
				return err
			}
			sampler, err := lookup[vk.Sampler](d, w.Sampler, driver.ResourceSampler)
			if err != nil {
				return err
			}
			vkWrites[i].PImageInfo = []vk.DescriptorImageInfo{{
				ImageLayout: vk.ImageLayout(w.ImageLayout),
				ImageView:   view,
				Sampler:     sampler,
			}}
		case driver.DescriptorTypeUniformBuffer, driver.DescriptorTypeUniformBufferDynamic:
			buffer, err := lookup[vk.Buffer](d, w.Buffer, driver.ResourceBuffer)
			if err != nil {
				return err
			}
			vkWrites[i].PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: buffer,
				Offset: vk.DeviceSize(w.Offset),
				Range:  vk.DeviceSize(w.Range),
			}}
		default:
			return errors.Wrapf(core.ErrInvalidArgument, "unsupported descriptor type %d", w.Type)
		}
	}
	return d.locks.SafeCall(DescriptorManagement, func() error {
		vk.UpdateDescriptorSets(d.LogicalDevice, uint32(len(vkWrites)), vkWrites, 0, nil)
		return nil
	})
}
