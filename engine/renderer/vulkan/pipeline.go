package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
)

// maxPushConstantRanges bounds the ranges of a layout. Only 128 bytes are
// guaranteed, at 4 byte granularity.
const maxPushConstantRanges = 32

func (d *VulkanDevice) CreatePipelineLayout(setLayouts []driver.Handle, pushConstants []driver.PushConstantRange) (driver.Handle, error) {
	if len(pushConstants) > maxPushConstantRanges {
		return driver.NullHandle, errors.Wrapf(core.ErrInvalidArgument, "cannot have more than %d push constant ranges, got %d", maxPushConstantRanges, len(pushConstants))
	}
	layouts := make([]vk.DescriptorSetLayout, len(setLayouts))
	for i, h := range setLayouts {
		l, err := lookup[vk.DescriptorSetLayout](d, h, driver.ResourceDescriptorSetLayout)
		if err != nil {
			return driver.NullHandle, err
		}
		layouts[i] = l
	}
	ranges := make([]vk.PushConstantRange, len(pushConstants))
	for i, r := range pushConstants {
		ranges[i] = vk.PushConstantRange{
			StageFlags: vk.ShaderStageFlags(r.Stages),
			Offset:     r.Offset,
			Size:       r.Size,
		}
	}
	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(layouts)),
		PSetLayouts:            layouts,
		PushConstantRangeCount: uint32(len(ranges)),
		PPushConstantRanges:    ranges,
	}
	var layout vk.PipelineLayout
	err := d.locks.SafeCall(PipelineManagement, func() error {
		return resultError(vk.CreatePipelineLayout(d.LogicalDevice, &pipelineLayoutCreateInfo, d.context.Allocator, &layout), "vkCreatePipelineLayout")
	})
	if err != nil {
		return driver.NullHandle, err
	}
	return d.register(driver.ResourcePipelineLayout, layout), nil
}

// CreateGraphicsPipeline builds a pipeline with a fixed viewport and scissor.
// It is rebuilt together with the swapchain.
func (d *VulkanDevice) CreateGraphicsPipeline(desc *driver.GraphicsPipelineDesc) (driver.Handle, error) {
	stages, err := d.shaderStages(desc.Stages)
	if err != nil {
		return driver.NullHandle, err
	}
	layout, err := lookup[vk.PipelineLayout](d, desc.Layout, driver.ResourcePipelineLayout)
	if err != nil {
		return driver.NullHandle, err
	}
	renderPass, err := lookup[vk.RenderPass](d, desc.RenderPass, driver.ResourceRenderPass)
	if err != nil {
		return driver.NullHandle, err
	}

	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		PViewports: []vk.Viewport{{
			X:        desc.Viewport.X,
			Y:        desc.Viewport.Y,
			Width:    desc.Viewport.Width,
			Height:   desc.Viewport.Height,
			MinDepth: desc.Viewport.MinDepth,
			MaxDepth: desc.Viewport.MaxDepth,
		}},
		ScissorCount: 1,
		PScissors: []vk.Rect2D{{
			Offset: vk.Offset2D{X: desc.Scissor.X, Y: desc.Scissor.Y},
			Extent: vk.Extent2D{Width: desc.Scissor.Width, Height: desc.Scissor.Height},
		}},
	}

	lineWidth := desc.Rasterization.LineWidth
	if lineWidth == 0 {
		lineWidth = 1.0
	}
	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonMode(desc.Rasterization.PolygonMode),
		LineWidth:               lineWidth,
		CullMode:                vk.CullModeFlags(desc.Rasterization.CullMode),
		FrontFace:               vk.FrontFace(desc.Rasterization.FrontFace),
		DepthBiasEnable:         vk.False,
	}

	samples := vk.SampleCountFlagBits(desc.Samples)
	if samples == 0 {
		samples = vk.SampleCount1Bit
	}
	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:   vk.False,
		RasterizationSamples:  samples,
		MinSampleShading:      1.0,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vkBool(desc.DepthStencil.DepthTest),
		DepthWriteEnable:      vkBool(desc.DepthStencil.DepthWrite),
		DepthCompareOp:        vk.CompareOp(desc.DepthStencil.CompareOp),
		DepthBoundsTestEnable: vk.False,
		StencilTestEnable:     vk.False,
		MinDepthBounds:        0,
		MaxDepthBounds:        1,
	}

	blend := desc.ColorBlend
	colorBlendAttachmentState := vk.PipelineColorBlendAttachmentState{
		BlendEnable:         vkBool(blend.BlendEnable),
		SrcColorBlendFactor: vk.BlendFactor(blend.SrcColor),
		DstColorBlendFactor: vk.BlendFactor(blend.DstColor),
		ColorBlendOp:        vk.BlendOp(blend.ColorOp),
		SrcAlphaBlendFactor: vk.BlendFactor(blend.SrcAlpha),
		DstAlphaBlendFactor: vk.BlendFactor(blend.DstAlpha),
		AlphaBlendOp:        vk.BlendOp(blend.AlphaOp),
		ColorWriteMask:      vk.ColorComponentFlags(blend.WriteMask),
	}
	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachmentState},
	}

	bindingDescription := vk.VertexInputBindingDescription{
		Binding:   desc.VertexBinding.Binding,
		Stride:    desc.VertexBinding.Stride,
		InputRate: vk.VertexInputRateVertex,
	}
	attributes := make([]vk.VertexInputAttributeDescription, len(desc.VertexAttributes))
	for i, a := range desc.VertexAttributes {
		attributes[i] = vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  a.Binding,
			Format:   vk.Format(a.Format),
			Offset:   a.Offset,
		}
	}
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   1,
		PVertexBindingDescriptions:      []vk.VertexInputBindingDescription{bindingDescription},
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopology(desc.Topology),
		PrimitiveRestartEnable: vk.False,
	}

	pipelineCreateInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		Layout:              layout,
		RenderPass:          renderPass,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}

	pipelines := make([]vk.Pipeline, 1)
	err = d.locks.SafeCall(PipelineManagement, func() error {
		return resultError(vk.CreateGraphicsPipelines(d.LogicalDevice, vk.NullPipelineCache, 1,
			[]vk.GraphicsPipelineCreateInfo{pipelineCreateInfo}, d.context.Allocator, pipelines), "vkCreateGraphicsPipelines")
	})
	if err != nil {
		return driver.NullHandle, err
	}
	if pipelines[0] == vk.NullPipeline {
		return driver.NullHandle, errors.Wrap(core.ErrUnknown, "vulkan pipeline handle is nil")
	}
	core.LogDebug("Graphics pipeline created!")
	return d.register(driver.ResourcePipeline, pipelines[0]), nil
}
