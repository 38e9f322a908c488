package drivertest

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/ember/engine/renderer/driver"
)

type cbState int

const (
	stateInitial cbState = iota
	stateRecording
	stateExecutable
	stateSubmitted
)

// Command is one recorded call, kept for assertions.
type Command struct {
	Name string
	Args []any
}

func (c Command) String() string {
	return fmt.Sprintf("%s%v", c.Name, c.Args)
}

// CommandBuffer records commands as closures that run against the device
// memory on Submit.
type CommandBuffer struct {
	dev    *Device
	handle driver.Handle
	state  cbState

	commands []Command
	ops      []func() error
	err      error

	inRenderPass bool
	pipeline     driver.Handle
	vertex       driver.Handle
	index        driver.Handle
	setsBound    bool
}

func (c *CommandBuffer) Handle() driver.Handle { return c.handle }

// Commands returns the commands recorded since the last Begin or Reset.
func (c *CommandBuffer) Commands() []Command {
	return append([]Command(nil), c.commands...)
}

// Count returns how many times name was recorded since the last Begin or Reset.
func (c *CommandBuffer) Count(name string) int {
	n := 0
	for _, cmd := range c.commands {
		if cmd.Name == name {
			n++
		}
	}
	return n
}

func (c *CommandBuffer) clear() {
	c.commands = c.commands[:0]
	c.ops = c.ops[:0]
	c.err = nil
	c.inRenderPass = false
	c.pipeline = driver.NullHandle
	c.vertex = driver.NullHandle
	c.index = driver.NullHandle
	c.setsBound = false
}

func (c *CommandBuffer) record(name string, op func() error, args ...any) {
	c.dev.mu.Lock()
	c.dev.count(name)
	c.dev.mu.Unlock()
	if c.state != stateRecording {
		c.fail(errors.Newf("%s recorded outside Begin/End", name))
		return
	}
	c.commands = append(c.commands, Command{Name: name, Args: args})
	if op != nil {
		c.ops = append(c.ops, op)
	}
}

func (c *CommandBuffer) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

func (c *CommandBuffer) Begin(oneTimeSubmit bool) error {
	c.dev.mu.Lock()
	c.dev.count("Begin")
	c.dev.mu.Unlock()
	if c.state == stateRecording {
		return errors.Newf("command buffer %d already recording", c.handle)
	}
	c.clear()
	c.state = stateRecording
	return nil
}

func (c *CommandBuffer) End() error {
	c.dev.mu.Lock()
	c.dev.count("End")
	c.dev.mu.Unlock()
	if c.state != stateRecording {
		return errors.Newf("command buffer %d ended while not recording", c.handle)
	}
	if c.inRenderPass {
		c.fail(errors.New("command buffer ended inside a render pass"))
	}
	c.state = stateExecutable
	return c.err
}

func (c *CommandBuffer) Reset() error {
	c.dev.mu.Lock()
	c.dev.count("Reset")
	c.dev.mu.Unlock()
	c.clear()
	c.state = stateInitial
	return nil
}

func (c *CommandBuffer) BeginRenderPass(pass, framebuffer driver.Handle, extent driver.Extent2D, clear []driver.ClearValue) {
	if c.inRenderPass {
		c.fail(errors.New("nested render pass"))
	}
	c.inRenderPass = true
	c.record("BeginRenderPass", nil, pass, framebuffer, extent, len(clear))
}

func (c *CommandBuffer) EndRenderPass() {
	if !c.inRenderPass {
		c.fail(errors.New("EndRenderPass without BeginRenderPass"))
	}
	c.inRenderPass = false
	c.record("EndRenderPass", nil)
}

func (c *CommandBuffer) BindPipeline(pipeline driver.Handle) {
	c.pipeline = pipeline
	c.record("BindPipeline", nil, pipeline)
}

func (c *CommandBuffer) BindDescriptorSets(layout driver.Handle, firstSet uint32, sets []driver.Handle, dynamicOffsets []uint32) {
	align := c.dev.Limits().MinUniformBufferOffsetAlignment
	for _, off := range dynamicOffsets {
		if align != 0 && uint64(off)%align != 0 {
			c.fail(errors.Newf("dynamic offset %d not aligned to %d", off, align))
		}
	}
	c.setsBound = true
	c.record("BindDescriptorSets", nil, layout, firstSet, append([]driver.Handle(nil), sets...), append([]uint32(nil), dynamicOffsets...))
}

func (c *CommandBuffer) BindVertexBuffer(buffer driver.Handle, offset uint64) {
	c.vertex = buffer
	c.record("BindVertexBuffer", nil, buffer, offset)
}

func (c *CommandBuffer) BindIndexBuffer(buffer driver.Handle, offset uint64, indexType driver.IndexType) {
	c.index = buffer
	c.record("BindIndexBuffer", nil, buffer, offset, indexType)
}

func (c *CommandBuffer) PushConstants(layout driver.Handle, stages driver.ShaderStageFlags, offset uint32, data []byte) {
	c.record("PushConstants", nil, layout, stages, offset, len(data))
}

func (c *CommandBuffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	switch {
	case !c.inRenderPass:
		c.fail(errors.New("DrawIndexed outside a render pass"))
	case c.pipeline == driver.NullHandle:
		c.fail(errors.New("DrawIndexed with no pipeline bound"))
	case c.vertex == driver.NullHandle || c.index == driver.NullHandle:
		c.fail(errors.New("DrawIndexed with no vertex or index buffer bound"))
	case !c.setsBound:
		c.fail(errors.New("DrawIndexed with no descriptor sets bound"))
	}
	c.record("DrawIndexed", nil, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

func (c *CommandBuffer) CopyBuffer(src, dst driver.Handle, regions []driver.BufferCopy) {
	regions = append([]driver.BufferCopy(nil), regions...)
	c.record("CopyBuffer", func() error {
		from, err := c.dev.bytesOf(src, driver.ResourceBuffer)
		if err != nil {
			return err
		}
		to, err := c.dev.bytesOf(dst, driver.ResourceBuffer)
		if err != nil {
			return err
		}
		if err := c.dev.checkUsage(src, uint32(driver.BufferUsageTransferSrc)); err != nil {
			return err
		}
		if err := c.dev.checkUsage(dst, uint32(driver.BufferUsageTransferDst)); err != nil {
			return err
		}
		for _, r := range regions {
			if r.SrcOffset+r.Size > uint64(len(from)) || r.DstOffset+r.Size > uint64(len(to)) {
				return errors.Newf("copy region %+v out of bounds", r)
			}
			copy(to[r.DstOffset:r.DstOffset+r.Size], from[r.SrcOffset:r.SrcOffset+r.Size])
		}
		return nil
	}, src, dst, regions)
}

func (c *CommandBuffer) CopyBufferToImage(src, dst driver.Handle, layout driver.ImageLayout, region driver.BufferImageCopy) {
	c.record("CopyBufferToImage", func() error {
		img, err := c.dev.get(dst, driver.ResourceImage)
		if err != nil {
			return err
		}
		if img.layout != driver.ImageLayoutTransferDstOptimal || layout != driver.ImageLayoutTransferDstOptimal {
			return errors.Newf("image %d is in layout %d, copy needs TRANSFER_DST", dst, img.layout)
		}
		from, err := c.dev.bytesOf(src, driver.ResourceBuffer)
		if err != nil {
			return err
		}
		to, err := c.dev.bytesOf(dst, driver.ResourceImage)
		if err != nil {
			return err
		}
		n := uint64(region.Width) * uint64(region.Height) * uint64(img.image.Format.BytesPerPixel())
		if region.BufferOffset+n > uint64(len(from)) || n > uint64(len(to)) {
			return errors.Newf("image copy of %d bytes out of bounds", n)
		}
		copy(to[:n], from[region.BufferOffset:region.BufferOffset+n])
		return nil
	}, src, dst, layout, region)
}

func (c *CommandBuffer) CopyImageToBuffer(src driver.Handle, layout driver.ImageLayout, dst driver.Handle, region driver.BufferImageCopy) {
	c.record("CopyImageToBuffer", func() error {
		img, err := c.dev.get(src, driver.ResourceImage)
		if err != nil {
			return err
		}
		if img.layout != layout {
			return errors.Newf("image %d is in layout %d, copy claims %d", src, img.layout, layout)
		}
		from, err := c.dev.bytesOf(src, driver.ResourceImage)
		if err != nil {
			return err
		}
		to, err := c.dev.bytesOf(dst, driver.ResourceBuffer)
		if err != nil {
			return err
		}
		n := uint64(region.Width) * uint64(region.Height) * uint64(img.image.Format.BytesPerPixel())
		if n > uint64(len(from)) || region.BufferOffset+n > uint64(len(to)) {
			return errors.Newf("image copy of %d bytes out of bounds", n)
		}
		copy(to[region.BufferOffset:region.BufferOffset+n], from[:n])
		return nil
	}, src, layout, dst, region)
}

func (c *CommandBuffer) ImageBarrier(b driver.ImageBarrier) {
	c.record("ImageBarrier", func() error {
		img, err := c.dev.get(b.Image, driver.ResourceImage)
		if err != nil {
			return err
		}
		if b.OldLayout != driver.ImageLayoutUndefined && b.OldLayout != img.layout {
			return errors.Newf("image %d barrier from layout %d but image is in %d", b.Image, b.OldLayout, img.layout)
		}
		img.layout = b.NewLayout
		return nil
	}, b.Image, b.OldLayout, b.NewLayout)
}

// checkUsage is called with the device lock held.
func (d *Device) checkUsage(buffer driver.Handle, want uint32) error {
	o, err := d.get(buffer, driver.ResourceBuffer)
	if err != nil {
		return err
	}
	if o.usage&want == 0 {
		return errors.Newf("buffer %d lacks usage %#x", buffer, want)
	}
	return nil
}
