package vulkan

import (
	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/platform"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
)

type BackendConfig struct {
	ApplicationName string
	Width           uint32
	Height          uint32
	Validation      bool
	// VSync forces FIFO presentation. Otherwise mailbox is used when available.
	VSync          bool
	PreferDiscrete bool
}

// Backend owns the instance, device and swapchain. The renderer only sees
// them through the driver interfaces.
type Backend struct {
	context   *VulkanContext
	device    *VulkanDevice
	swapchain *VulkanSwapchain
}

func NewBackend(p *platform.Platform, cfg BackendConfig) (*Backend, error) {
	context, err := NewVulkanContext(p, cfg.ApplicationName, cfg.Validation)
	if err != nil {
		return nil, errors.Wrap(err, "creating vulkan instance")
	}
	device, err := NewVulkanDevice(context, cfg.PreferDiscrete)
	if err != nil {
		context.Destroy()
		return nil, errors.Wrap(err, "creating vulkan device")
	}
	swapchain, err := NewVulkanSwapchain(device, cfg.Width, cfg.Height, cfg.VSync)
	if err != nil {
		device.destroy()
		context.Destroy()
		return nil, errors.Wrap(err, "creating swapchain")
	}
	core.LogInfo("Vulkan backend initialized successfully.")
	return &Backend{
		context:   context,
		device:    device,
		swapchain: swapchain,
	}, nil
}

func (b *Backend) Device() driver.Device {
	return b.device
}

func (b *Backend) Swapchain() driver.Swapchain {
	return b.swapchain
}

// Shutdown destroys the swapchain, device and instance in that order. Every
// resource created through Device must already be destroyed.
func (b *Backend) Shutdown() {
	if err := b.device.WaitIdle(); err != nil {
		core.LogError("waiting for device idle: %v", err)
	}
	core.LogDebug("Destroying Vulkan swapchain...")
	b.swapchain.Destroy()
	core.LogDebug("Destroying Vulkan device...")
	b.device.destroy()
	b.context.Destroy()
	core.LogInfo("Vulkan backend shut down.")
}
