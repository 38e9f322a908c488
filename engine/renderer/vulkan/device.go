package vulkan

import (
	"runtime"
	"time"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
)

// resourceDescriptorSet tags descriptor sets in the handle table. Sets are
// owned by their pool and never destroyed on their own.
const resourceDescriptorSet driver.ResourceKind = 0xff

// object is one entry of the handle table. value holds the vk handle.
type object struct {
	kind  driver.ResourceKind
	value any
}

// VulkanDevice implements driver.Device on top of a single graphics queue and
// a present queue, which may be the same queue.
type VulkanDevice struct {
	context *VulkanContext

	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	SwapchainSupport   VulkanSwapchainSupportInfo
	GraphicsQueueIndex uint32
	PresentQueueIndex  uint32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties

	DepthFormat vk.Format

	objects *core.IDTable[object]
	locks   *VulkanLockPool
}

type VulkanPhysicalDeviceRequirements struct {
	Graphics             bool
	Present              bool
	DeviceExtensionNames []string
	SamplerAnisotropy    bool
	DiscreteGPU          bool
}

type VulkanPhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex int32
	PresentFamilyIndex  int32
}

func NewVulkanDevice(context *VulkanContext, preferDiscrete bool) (*VulkanDevice, error) {
	d := &VulkanDevice{
		context: context,
		objects: core.NewIDTable[object](),
		locks:   NewVulkanLockPool(),
	}
	if err := d.selectPhysicalDevice(preferDiscrete); err != nil {
		return nil, err
	}

	core.LogInfo("Creating logical device...")
	indices := []uint32{d.GraphicsQueueIndex}
	if d.PresentQueueIndex != d.GraphicsQueueIndex {
		indices = append(indices, d.PresentQueueIndex)
	}
	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i, index := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: index,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
		d.locks.SetQueueFamily(index)
	}

	deviceFeatures := vk.PhysicalDeviceFeatures{
		SamplerAnisotropy: d.Features.SamplerAnisotropy,
		FillModeNonSolid:  d.Features.FillModeNonSolid,
	}

	extensionNames := []string{vk.KhrSwapchainExtensionName}
	if d.hasDeviceExtension(portabilitySubsetExtension) {
		core.LogInfo("Adding required extension '%s'.", portabilitySubsetExtension)
		extensionNames = append(extensionNames, portabilitySubsetExtension)
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
	}
	var logical vk.Device
	if err := resultError(vk.CreateDevice(d.PhysicalDevice, &deviceCreateInfo, context.Allocator, &logical), "vkCreateDevice"); err != nil {
		return nil, err
	}
	d.LogicalDevice = logical
	core.LogInfo("Logical device created.")

	var graphics, present vk.Queue
	vk.GetDeviceQueue(d.LogicalDevice, d.GraphicsQueueIndex, 0, &graphics)
	vk.GetDeviceQueue(d.LogicalDevice, d.PresentQueueIndex, 0, &present)
	d.GraphicsQueue = graphics
	d.PresentQueue = present
	core.LogInfo("Queues obtained.")

	// Frame command buffers are reset individually every frame.
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: d.GraphicsQueueIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var pool vk.CommandPool
	if err := resultError(vk.CreateCommandPool(d.LogicalDevice, &poolCreateInfo, context.Allocator, &pool), "vkCreateCommandPool"); err != nil {
		vk.DestroyDevice(d.LogicalDevice, context.Allocator)
		return nil, err
	}
	d.GraphicsCommandPool = pool
	core.LogInfo("Graphics command pool created.")

	if !d.detectDepthFormat() {
		d.destroy()
		return nil, errors.Wrap(core.ErrNotFound, "no supported depth format")
	}
	return d, nil
}

// destroy releases the command pool and the logical device. Every object in
// the handle table must have been destroyed already.
func (d *VulkanDevice) destroy() {
	if n := d.objects.Live(); n > 0 {
		core.LogWarn("destroying device with %d live objects", n)
	}
	d.GraphicsQueue = nil
	d.PresentQueue = nil

	core.LogInfo("Destroying command pools...")
	vk.DestroyCommandPool(d.LogicalDevice, d.GraphicsCommandPool, d.context.Allocator)

	core.LogInfo("Destroying logical device...")
	if d.LogicalDevice != nil {
		vk.DestroyDevice(d.LogicalDevice, d.context.Allocator)
		d.LogicalDevice = nil
	}
	d.PhysicalDevice = nil
	d.SwapchainSupport = VulkanSwapchainSupportInfo{}
}

func (d *VulkanDevice) hasDeviceExtension(name string) bool {
	for _, ext := range deviceExtensions(d.PhysicalDevice) {
		if ext == name {
			return true
		}
	}
	return false
}

func deviceExtensions(device vk.PhysicalDevice) []string {
	var count uint32
	if vk.EnumerateDeviceExtensionProperties(device, "", &count, nil) != vk.Success || count == 0 {
		return nil
	}
	available := make([]vk.ExtensionProperties, count)
	if vk.EnumerateDeviceExtensionProperties(device, "", &count, available) != vk.Success {
		return nil
	}
	names := make([]string, 0, count)
	for i := range available {
		available[i].Deref()
		names = append(names, vk.ToString(available[i].ExtensionName[:]))
	}
	return names
}

// QuerySwapchainSupport refreshes the surface capabilities, formats and
// present modes of device.
func QuerySwapchainSupport(physicalDevice vk.PhysicalDevice, surface vk.Surface, supportInfo *VulkanSwapchainSupportInfo) error {
	var caps vk.SurfaceCapabilities
	if err := resultError(vk.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, surface, &caps), "vkGetPhysicalDeviceSurfaceCapabilities"); err != nil {
		return err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	supportInfo.Capabilities = caps

	var formatCount uint32
	if err := resultError(vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, nil), "vkGetPhysicalDeviceSurfaceFormats"); err != nil {
		return err
	}
	supportInfo.Formats = make([]vk.SurfaceFormat, formatCount)
	if formatCount != 0 {
		if err := resultError(vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &formatCount, supportInfo.Formats), "vkGetPhysicalDeviceSurfaceFormats"); err != nil {
			return err
		}
		for i := range supportInfo.Formats {
			supportInfo.Formats[i].Deref()
		}
	}

	var modeCount uint32
	if err := resultError(vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &modeCount, nil), "vkGetPhysicalDeviceSurfacePresentModes"); err != nil {
		return err
	}
	supportInfo.PresentModes = make([]vk.PresentMode, modeCount)
	if modeCount != 0 {
		if err := resultError(vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &modeCount, supportInfo.PresentModes), "vkGetPhysicalDeviceSurfacePresentModes"); err != nil {
			return err
		}
	}
	return nil
}

func (d *VulkanDevice) detectDepthFormat() bool {
	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, candidate := range depthFormatCandidates {
		var properties vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(d.PhysicalDevice, candidate, &properties)
		properties.Deref()
		if properties.LinearTilingFeatures&flags == flags || properties.OptimalTilingFeatures&flags == flags {
			d.DepthFormat = candidate
			return true
		}
	}
	return false
}

func (d *VulkanDevice) selectPhysicalDevice(preferDiscrete bool) error {
	var count uint32
	if err := resultError(vk.EnumeratePhysicalDevices(d.context.Instance, &count, nil), "vkEnumeratePhysicalDevices"); err != nil {
		return err
	}
	if count == 0 {
		return errors.Wrap(core.ErrNotFound, "no devices which support Vulkan were found")
	}
	physicalDevices := make([]vk.PhysicalDevice, count)
	if err := resultError(vk.EnumeratePhysicalDevices(d.context.Instance, &count, physicalDevices), "vkEnumeratePhysicalDevices"); err != nil {
		return err
	}

	requirements := VulkanPhysicalDeviceRequirements{
		Graphics:             true,
		Present:              true,
		DeviceExtensionNames: []string{vk.KhrSwapchainExtensionName},
		DiscreteGPU:          preferDiscrete && runtime.GOOS != "darwin",
	}

	// A second pass drops the discrete requirement so integrated GPUs still run.
	for pass := 0; pass < 2 && d.PhysicalDevice == nil; pass++ {
		if pass == 1 {
			requirements.DiscreteGPU = false
		}
		for _, candidate := range physicalDevices {
			var properties vk.PhysicalDeviceProperties
			vk.GetPhysicalDeviceProperties(candidate, &properties)
			properties.Deref()
			properties.Limits.Deref()

			var features vk.PhysicalDeviceFeatures
			vk.GetPhysicalDeviceFeatures(candidate, &features)
			features.Deref()

			var queueInfo VulkanPhysicalDeviceQueueFamilyInfo
			var support VulkanSwapchainSupportInfo
			if !PhysicalDeviceMeetsRequirements(candidate, d.context.Surface, &properties, &features, &requirements, &queueInfo, &support) {
				continue
			}

			var memory vk.PhysicalDeviceMemoryProperties
			vk.GetPhysicalDeviceMemoryProperties(candidate, &memory)
			memory.Deref()
			for i := uint32(0); i < memory.MemoryTypeCount; i++ {
				memory.MemoryTypes[i].Deref()
			}
			for i := uint32(0); i < memory.MemoryHeapCount; i++ {
				memory.MemoryHeaps[i].Deref()
			}

			d.PhysicalDevice = candidate
			d.GraphicsQueueIndex = uint32(queueInfo.GraphicsFamilyIndex)
			d.PresentQueueIndex = uint32(queueInfo.PresentFamilyIndex)
			d.Properties = properties
			d.Features = features
			d.Memory = memory
			d.SwapchainSupport = support
			logDeviceInfo(&properties, &memory)
			break
		}
	}

	if d.PhysicalDevice == nil {
		return errors.Wrap(core.ErrNotFound, "no physical devices were found which meet the requirements")
	}
	core.LogInfo("Physical device selected.")
	return nil
}

func logDeviceInfo(properties *vk.PhysicalDeviceProperties, memory *vk.PhysicalDeviceMemoryProperties) {
	core.LogInfo("Selected device: '%s'.", vk.ToString(properties.DeviceName[:]))
	switch properties.DeviceType {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		core.LogInfo("GPU type is Integrated.")
	case vk.PhysicalDeviceTypeDiscreteGpu:
		core.LogInfo("GPU type is Discrete.")
	case vk.PhysicalDeviceTypeVirtualGpu:
		core.LogInfo("GPU type is Virtual.")
	case vk.PhysicalDeviceTypeCpu:
		core.LogInfo("GPU type is CPU.")
	default:
		core.LogInfo("GPU type is Unknown.")
	}
	driverVersion := vk.Version(properties.DriverVersion)
	apiVersion := vk.Version(properties.ApiVersion)
	core.LogInfo("GPU Driver version: %d.%d.%d", driverVersion.Major(), driverVersion.Minor(), driverVersion.Patch())
	core.LogInfo("Vulkan API version: %d.%d.%d", apiVersion.Major(), apiVersion.Minor(), apiVersion.Patch())

	for j := uint32(0); j < memory.MemoryHeapCount; j++ {
		sizeGiB := float64(memory.MemoryHeaps[j].Size) / 1024.0 / 1024.0 / 1024.0
		if vk.MemoryHeapFlagBits(memory.MemoryHeaps[j].Flags)&vk.MemoryHeapDeviceLocalBit != 0 {
			core.LogInfo("Local GPU memory: %.2f GiB", sizeGiB)
		} else {
			core.LogInfo("Shared System memory: %.2f GiB", sizeGiB)
		}
	}
}

func PhysicalDeviceMeetsRequirements(device vk.PhysicalDevice, surface vk.Surface, properties *vk.PhysicalDeviceProperties, features *vk.PhysicalDeviceFeatures, requirements *VulkanPhysicalDeviceRequirements, outQueueInfo *VulkanPhysicalDeviceQueueFamilyInfo, outSwapchainSupport *VulkanSwapchainSupportInfo) bool {
	outQueueInfo.GraphicsFamilyIndex = -1
	outQueueInfo.PresentFamilyIndex = -1

	if requirements.DiscreteGPU && properties.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu {
		core.LogInfo("Device is not a discrete GPU, and one is required. Skipping.")
		return false
	}

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	for i := range queueFamilies {
		queueFamilies[i].Deref()
		if outQueueInfo.GraphicsFamilyIndex < 0 && vk.QueueFlagBits(queueFamilies[i].QueueFlags)&vk.QueueGraphicsBit != 0 {
			outQueueInfo.GraphicsFamilyIndex = int32(i)
		}
		var supportsPresent vk.Bool32
		if vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &supportsPresent) != vk.Success {
			return false
		}
		// Prefer a family that does both.
		if supportsPresent == vk.True && (outQueueInfo.PresentFamilyIndex < 0 || int32(i) == outQueueInfo.GraphicsFamilyIndex) {
			outQueueInfo.PresentFamilyIndex = int32(i)
		}
	}

	name := vk.ToString(properties.DeviceName[:])
	core.LogDebug("%s: graphics family %d, present family %d", name, outQueueInfo.GraphicsFamilyIndex, outQueueInfo.PresentFamilyIndex)
	if requirements.Graphics && outQueueInfo.GraphicsFamilyIndex < 0 {
		return false
	}
	if requirements.Present && outQueueInfo.PresentFamilyIndex < 0 {
		return false
	}

	if err := QuerySwapchainSupport(device, surface, outSwapchainSupport); err != nil {
		core.LogInfo("Failed to query swapchain support: %v, skipping device.", err)
		return false
	}
	if len(outSwapchainSupport.Formats) < 1 || len(outSwapchainSupport.PresentModes) < 1 {
		core.LogInfo("Required swapchain support not present, skipping device.")
		return false
	}

	available := deviceExtensions(device)
	for _, required := range requirements.DeviceExtensionNames {
		found := false
		for _, ext := range available {
			if ext == required {
				found = true
				break
			}
		}
		if !found {
			core.LogInfo("Required extension not found: '%s', skipping device.", required)
			return false
		}
	}

	if requirements.SamplerAnisotropy && features.SamplerAnisotropy == vk.False {
		core.LogInfo("Device does not support samplerAnisotropy, skipping.")
		return false
	}
	return true
}

// FindMemoryIndex returns the first memory type allowed by typeFilter that has
// all of propertyFlags, or -1.
func (d *VulkanDevice) FindMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) int32 {
	for i := uint32(0); i < d.Memory.MemoryTypeCount; i++ {
		if typeFilter&(1<<i) != 0 && d.Memory.MemoryTypes[i].PropertyFlags&propertyFlags == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}

func (d *VulkanDevice) MemoryTypes() []driver.MemoryType {
	types := make([]driver.MemoryType, d.Memory.MemoryTypeCount)
	for i := range types {
		types[i] = driver.MemoryType{
			PropertyFlags: driver.MemoryPropertyFlags(d.Memory.MemoryTypes[i].PropertyFlags),
			HeapIndex:     d.Memory.MemoryTypes[i].HeapIndex,
		}
	}
	return types
}

func (d *VulkanDevice) Limits() driver.Limits {
	limits := d.Properties.Limits
	return driver.Limits{
		MinUniformBufferOffsetAlignment: uint64(limits.MinUniformBufferOffsetAlignment),
		MaxUniformBufferRange:           limits.MaxUniformBufferRange,
		MaxSamplerAnisotropy:            limits.MaxSamplerAnisotropy,
	}
}

func (d *VulkanDevice) register(kind driver.ResourceKind, value any) driver.Handle {
	return driver.Handle(d.objects.Acquire(object{kind: kind, value: value}))
}

// lookup resolves h to its vk handle, checking that it names an object of kind.
func lookup[T any](d *VulkanDevice, h driver.Handle, kind driver.ResourceKind) (T, error) {
	var zero T
	obj, ok := d.objects.Get(uint64(h))
	if !ok {
		return zero, errors.Wrapf(core.ErrNotFound, "%s %d", kind, h)
	}
	if obj.kind != kind {
		return zero, errors.Wrapf(core.ErrInvalidArgument, "handle %d is a %s, not a %s", h, obj.kind, kind)
	}
	value, ok := obj.value.(T)
	if !ok {
		return zero, errors.Wrapf(core.ErrInvalidArgument, "handle %d holds %T", h, obj.value)
	}
	return value, nil
}

// Destroy releases handle. Unknown handles are logged and ignored so a
// teardown pass can always run to completion.
func (d *VulkanDevice) Destroy(kind driver.ResourceKind, handle driver.Handle) {
	if handle == driver.NullHandle {
		return
	}
	obj, err := d.objects.Release(uint64(handle))
	if err != nil {
		core.LogWarn("destroy %s %d: %v", kind, handle, err)
		return
	}
	if obj.kind != kind {
		core.LogWarn("destroy %s %d: handle is a %s", kind, handle, obj.kind)
	}
	dev, alloc := d.LogicalDevice, d.context.Allocator
	switch v := obj.value.(type) {
	case vk.Buffer:
		vk.DestroyBuffer(dev, v, alloc)
	case *memoryObject:
		if v.mapped {
			vk.UnmapMemory(dev, v.memory)
		}
		vk.FreeMemory(dev, v.memory, alloc)
	case vk.Image:
		vk.DestroyImage(dev, v, alloc)
	case vk.ImageView:
		vk.DestroyImageView(dev, v, alloc)
	case vk.Sampler:
		vk.DestroySampler(dev, v, alloc)
	case vk.ShaderModule:
		vk.DestroyShaderModule(dev, v, alloc)
	case vk.DescriptorSetLayout:
		vk.DestroyDescriptorSetLayout(dev, v, alloc)
	case *descriptorPool:
		for _, set := range v.sets {
			_, _ = d.objects.Release(uint64(set))
		}
		_ = d.locks.SafeCall(DescriptorManagement, func() error {
			vk.DestroyDescriptorPool(dev, v.pool, alloc)
			return nil
		})
	case vk.PipelineLayout:
		vk.DestroyPipelineLayout(dev, v, alloc)
	case vk.Pipeline:
		vk.DestroyPipeline(dev, v, alloc)
	case vk.Fence:
		vk.DestroyFence(dev, v, alloc)
	case vk.Semaphore:
		vk.DestroySemaphore(dev, v, alloc)
	case *VulkanCommandBuffer:
		v.free()
	case vk.RenderPass:
		vk.DestroyRenderPass(dev, v, alloc)
	case vk.Framebuffer:
		vk.DestroyFramebuffer(dev, v, alloc)
	default:
		core.LogWarn("destroy %s %d: unexpected value %T", kind, handle, v)
	}
}

func (d *VulkanDevice) QueueWaitIdle() error {
	return d.locks.SafeQueueCall(d.GraphicsQueueIndex, func() error {
		return resultError(vk.QueueWaitIdle(d.GraphicsQueue), "vkQueueWaitIdle")
	})
}

func (d *VulkanDevice) WaitIdle() error {
	return resultError(vk.DeviceWaitIdle(d.LogicalDevice), "vkDeviceWaitIdle")
}

func timeoutNanos(timeout time.Duration) uint64 {
	if timeout < 0 {
		return 0
	}
	return uint64(timeout.Nanoseconds())
}
