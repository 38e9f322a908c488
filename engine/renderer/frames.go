package renderer

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
	"github.com/spaghettifunk/ember/engine/renderer/metadata"
)

// FrameSlot is everything one in-flight frame owns. Slots are created once and
// reused round robin; a slot is only touched again after its fence signaled.
type FrameSlot struct {
	Index          int
	Fence          driver.Handle
	ImageAcquired  driver.Handle
	RenderComplete driver.Handle
	CommandBuffer  driver.CommandBuffer

	Uniforms      *metadata.AllocatedBuffer
	DescriptorSet driver.Handle
}

type FrameConfig struct {
	FramesInFlight int
	FenceTimeout   time.Duration
	AcquireTimeout time.Duration
}

type FrameStats struct {
	// Frames submitted and presented.
	Frames uint64
	// Frames dropped because the swapchain was out of date or the window empty.
	Skipped          uint64
	Rebuilds         uint64
	LongestFenceWait time.Duration
}

// FrameController paces the CPU against the GPU: at most FramesInFlight frames
// are recorded ahead of the one being presented.
type FrameController struct {
	device    driver.Device
	swapchain driver.Swapchain
	config    FrameConfig
	slots     []*FrameSlot

	frameCount   uint64
	width        uint32
	height       uint32
	needsRebuild bool
	onRebuild    func(extent driver.Extent2D) error

	stats FrameStats
}

// NewFrameController creates the per-frame synchronization objects and hands
// them to teardown. Fences start signaled so the first wait on each slot
// returns immediately.
func NewFrameController(device driver.Device, swapchain driver.Swapchain, teardown *Teardown, config FrameConfig) (*FrameController, error) {
	if config.FramesInFlight < 1 {
		return nil, errors.Wrapf(core.ErrInvalidArgument, "frames in flight must be at least 1, got %d", config.FramesInFlight)
	}
	if config.FenceTimeout <= 0 {
		config.FenceTimeout = time.Second
	}
	if config.AcquireTimeout <= 0 {
		config.AcquireTimeout = time.Second
	}
	extent := swapchain.Extent()
	fc := &FrameController{
		device:    device,
		swapchain: swapchain,
		config:    config,
		width:     extent.Width,
		height:    extent.Height,
	}

	for i := 0; i < config.FramesInFlight; i++ {
		slot := &FrameSlot{Index: i}
		var err error
		if slot.Fence, err = device.CreateFence(true); err != nil {
			return nil, errors.Wrapf(err, "creating fence for frame %d", i)
		}
		teardown.Push(driver.ResourceFence, slot.Fence, "frame fence")
		if slot.ImageAcquired, err = device.CreateSemaphore(); err != nil {
			return nil, errors.Wrapf(err, "creating image acquired semaphore for frame %d", i)
		}
		teardown.Push(driver.ResourceSemaphore, slot.ImageAcquired, "image acquired")
		if slot.RenderComplete, err = device.CreateSemaphore(); err != nil {
			return nil, errors.Wrapf(err, "creating render complete semaphore for frame %d", i)
		}
		teardown.Push(driver.ResourceSemaphore, slot.RenderComplete, "render complete")
		if slot.CommandBuffer, err = device.AllocateCommandBuffer(); err != nil {
			return nil, errors.Wrapf(err, "allocating command buffer for frame %d", i)
		}
		teardown.Push(driver.ResourceCommandBuffer, slot.CommandBuffer.Handle(), "frame command buffer")
		fc.slots = append(fc.slots, slot)
	}
	core.LogDebug("created %d frames in flight", config.FramesInFlight)
	return fc, nil
}

func (fc *FrameController) Slots() []*FrameSlot {
	return fc.slots
}

// FrameCount is the number of frames presented so far.
func (fc *FrameController) FrameCount() uint64 {
	return fc.frameCount
}

// CurrentSlot is the slot the next frame will use.
func (fc *FrameController) CurrentSlot() *FrameSlot {
	return fc.slots[fc.frameCount%uint64(len(fc.slots))]
}

func (fc *FrameController) Stats() FrameStats {
	return fc.stats
}

func (fc *FrameController) Extent() driver.Extent2D {
	return fc.swapchain.Extent()
}

// OnRebuild registers fn to run after every swapchain rebuild, with the GPU idle.
func (fc *FrameController) OnRebuild(fn func(extent driver.Extent2D) error) {
	fc.onRebuild = fn
}

// Resize records the new window size. The swapchain is rebuilt before the
// next frame; a zero size pauses rendering.
func (fc *FrameController) Resize(width, height uint32) {
	if width == fc.width && height == fc.height {
		return
	}
	fc.width = width
	fc.height = height
	fc.needsRebuild = true
}

func (fc *FrameController) waitFence(slot *FrameSlot) error {
	start := core.Now()
	err := fc.device.WaitForFence(slot.Fence, fc.config.FenceTimeout)
	if waited := core.Since(start); waited > fc.stats.LongestFenceWait {
		fc.stats.LongestFenceWait = waited
	}
	if err != nil {
		return errors.Wrapf(err, "waiting for frame %d fence", slot.Index)
	}
	return nil
}

// AcquireNextImage waits until slot is free, then acquires a swapchain image
// signaling slot.ImageAcquired. The fence is reset only once an image was
// acquired, so a failed acquire leaves the slot reusable.
func (fc *FrameController) AcquireNextImage(slot *FrameSlot) (uint32, error) {
	if err := fc.waitFence(slot); err != nil {
		return 0, err
	}
	index, suboptimal, err := fc.swapchain.AcquireNextImage(fc.config.AcquireTimeout, slot.ImageAcquired)
	if err != nil {
		if errors.Is(err, core.ErrSwapchainOutOfDate) {
			fc.needsRebuild = true
		}
		return 0, errors.Wrapf(err, "acquiring image for frame %d", slot.Index)
	}
	if suboptimal {
		fc.needsRebuild = true
	}
	if err := fc.device.ResetFence(slot.Fence); err != nil {
		return 0, errors.Wrapf(err, "resetting frame %d fence", slot.Index)
	}
	return index, nil
}

// SubmitAndPresent submits slot's recorded command buffer and presents
// imageIndex once rendering completed.
func (fc *FrameController) SubmitAndPresent(slot *FrameSlot, imageIndex uint32) error {
	if err := fc.device.Submit(slot.CommandBuffer, slot.ImageAcquired, slot.RenderComplete, slot.Fence); err != nil {
		return errors.CombineErrors(errors.Wrapf(err, "submitting frame %d", slot.Index), fc.abandon(slot))
	}
	suboptimal, err := fc.swapchain.Present(imageIndex, slot.RenderComplete)
	switch {
	case errors.Is(err, core.ErrSwapchainOutOfDate):
		fc.needsRebuild = true
	case err != nil:
		return errors.Wrapf(err, "presenting frame %d", slot.Index)
	case suboptimal:
		fc.needsRebuild = true
	}
	fc.frameCount++
	fc.stats.Frames++
	return nil
}

// Frame runs one iteration: wait, acquire, record, submit, present. It
// returns false when the frame was skipped (minimized window or stale
// swapchain). Errors are fatal to the render loop.
func (fc *FrameController) Frame(record func(slot *FrameSlot, imageIndex uint32) error) (bool, error) {
	if fc.width == 0 || fc.height == 0 {
		fc.stats.Skipped++
		return false, nil
	}
	if fc.needsRebuild {
		if err := fc.rebuild(); err != nil {
			return false, err
		}
	}

	slot := fc.CurrentSlot()
	imageIndex, err := fc.AcquireNextImage(slot)
	if errors.Is(err, core.ErrSwapchainOutOfDate) {
		fc.stats.Skipped++
		return false, fc.rebuild()
	}
	if err != nil {
		return false, err
	}

	if err := fc.recordSlot(slot, imageIndex, record); err != nil {
		return false, errors.CombineErrors(err, fc.abandon(slot))
	}
	if err := fc.SubmitAndPresent(slot, imageIndex); err != nil {
		return false, err
	}

	if fc.needsRebuild {
		if err := fc.rebuild(); err != nil {
			return true, err
		}
	}
	return true, nil
}

func (fc *FrameController) recordSlot(slot *FrameSlot, imageIndex uint32, record func(slot *FrameSlot, imageIndex uint32) error) error {
	cb := slot.CommandBuffer
	if err := cb.Reset(); err != nil {
		return errors.Wrapf(err, "resetting frame %d command buffer", slot.Index)
	}
	if err := cb.Begin(true); err != nil {
		return errors.Wrapf(err, "beginning frame %d command buffer", slot.Index)
	}
	if err := record(slot, imageIndex); err != nil {
		return errors.Wrapf(err, "recording frame %d", slot.Index)
	}
	if err := cb.End(); err != nil {
		return errors.Wrapf(err, "ending frame %d command buffer", slot.Index)
	}
	return nil
}

// abandon hands a slot whose fence was already reset back to the GPU with an
// empty batch. The batch consumes the pending ImageAcquired signal and
// signals the fence, so later waits on the slot succeed. Nothing is presented.
func (fc *FrameController) abandon(slot *FrameSlot) error {
	cb := slot.CommandBuffer
	if err := cb.Reset(); err != nil {
		return errors.Wrapf(err, "resetting frame %d command buffer", slot.Index)
	}
	if err := cb.Begin(true); err != nil {
		return errors.Wrapf(err, "beginning empty frame %d", slot.Index)
	}
	if err := cb.End(); err != nil {
		return errors.Wrapf(err, "ending empty frame %d", slot.Index)
	}
	if err := fc.device.Submit(cb, slot.ImageAcquired, driver.NullHandle, slot.Fence); err != nil {
		return errors.Wrapf(err, "submitting empty frame %d", slot.Index)
	}
	return nil
}

func (fc *FrameController) rebuild() error {
	if fc.width == 0 || fc.height == 0 {
		return nil
	}
	if err := fc.device.WaitIdle(); err != nil {
		return errors.Wrap(err, "waiting for idle before swapchain rebuild")
	}
	if err := fc.swapchain.Rebuild(fc.width, fc.height); err != nil {
		return errors.Wrap(err, "rebuilding swapchain")
	}
	fc.needsRebuild = false
	fc.stats.Rebuilds++
	extent := fc.swapchain.Extent()
	core.LogInfo("swapchain rebuilt at %dx%d", extent.Width, extent.Height)
	if fc.onRebuild != nil {
		return fc.onRebuild(extent)
	}
	return nil
}

// WaitAll blocks until every in-flight frame has finished on the GPU.
func (fc *FrameController) WaitAll() error {
	for _, slot := range fc.slots {
		if err := fc.waitFence(slot); err != nil {
			return err
		}
	}
	return nil
}
