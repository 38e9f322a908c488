package vulkan

import vk "github.com/goki/vulkan"

const engineName = "Ember Engine"

const validationLayerName = "VK_LAYER_KHRONOS_validation"

const portabilitySubsetExtension = "VK_KHR_portability_subset"

// depthFormatCandidates are tried in order until one supports depth attachments.
var depthFormatCandidates = []vk.Format{
	vk.FormatD32Sfloat,
	vk.FormatD32SfloatS8Uint,
	vk.FormatD24UnormS8Uint,
}
