package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
)

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic = 0x07230203

func (d *VulkanDevice) CreateShaderModule(code []uint32) (driver.Handle, error) {
	if len(code) == 0 || code[0] != spirvMagic {
		return driver.NullHandle, errors.Wrap(core.ErrInvalidShader, "missing SPIR-V magic number")
	}
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code) * 4),
		PCode:    code,
	}
	var module vk.ShaderModule
	if err := resultError(vk.CreateShaderModule(d.LogicalDevice, &createInfo, d.context.Allocator, &module), "vkCreateShaderModule"); err != nil {
		return driver.NullHandle, errors.Mark(err, core.ErrInvalidShader)
	}
	return d.register(driver.ResourceShaderModule, module), nil
}

func (d *VulkanDevice) shaderStages(stages []driver.ShaderStage) ([]vk.PipelineShaderStageCreateInfo, error) {
	out := make([]vk.PipelineShaderStageCreateInfo, len(stages))
	for i, s := range stages {
		module, err := lookup[vk.ShaderModule](d, s.Module, driver.ResourceShaderModule)
		if err != nil {
			return nil, err
		}
		entry := s.Entry
		if entry == "" {
			entry = "main"
		}
		out[i] = vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFlagBits(s.Stage),
			Module: module,
			PName:  VulkanSafeString(entry),
		}
	}
	return out, nil
}
