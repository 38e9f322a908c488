// Package drivertest provides an in-memory driver.Device for tests. Memory is
// backed by byte slices, copies run when a command buffer is submitted and
// fences signal as soon as the submission completes. Every call is counted
// and misuse (wrong layouts, unsignaled waits, misaligned dynamic offsets)
// surfaces as an error.
package drivertest

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
)

type object struct {
	kind driver.ResourceKind

	// buffers and images
	size    uint64
	usage   uint32
	memory  driver.Handle
	offset  uint64
	image   driver.ImageDesc
	layout  driver.ImageLayout
	typeIdx uint32

	// memory
	data   []byte
	mapped bool

	// fences and semaphores
	signaled bool

	// descriptor pools
	maxSets uint32
	sets    []driver.Handle

	pipeline *driver.GraphicsPipelineDesc
}

// Destroyed is one entry of the destroy log.
type Destroyed struct {
	Kind   driver.ResourceKind
	Handle driver.Handle
}

type Device struct {
	mu sync.Mutex

	next        driver.Handle
	memoryTypes []driver.MemoryType
	limits      driver.Limits

	objects   map[driver.Handle]*object
	sets      map[driver.Handle]map[uint32]driver.DescriptorWrite
	calls     map[string]int
	destroyed []Destroyed
	errs      []error
}

func NewDevice() *Device {
	return &Device{
		next: 1,
		memoryTypes: []driver.MemoryType{
			{PropertyFlags: driver.MemoryPropertyDeviceLocal, HeapIndex: 0},
			{PropertyFlags: driver.MemoryPropertyHostVisible | driver.MemoryPropertyHostCoherent, HeapIndex: 1},
			{PropertyFlags: driver.MemoryPropertyHostVisible | driver.MemoryPropertyHostCoherent | driver.MemoryPropertyHostCached, HeapIndex: 1},
		},
		limits: driver.Limits{
			MinUniformBufferOffsetAlignment: 256,
			MaxUniformBufferRange:           65536,
			MaxSamplerAnisotropy:            16,
		},
		objects: make(map[driver.Handle]*object),
		sets:    make(map[driver.Handle]map[uint32]driver.DescriptorWrite),
		calls:   make(map[string]int),
	}
}

// SetLimits replaces the reported device limits.
func (d *Device) SetLimits(l driver.Limits) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.limits = l
}

// Calls returns how many times the named Device or CommandBuffer method ran.
func (d *Device) Calls(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[name]
}

// Live returns the number of live objects of kind.
func (d *Device) Live(kind driver.ResourceKind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, o := range d.objects {
		if o.kind == kind {
			n++
		}
	}
	return n
}

// LiveTotal returns the number of live objects of every kind.
func (d *Device) LiveTotal() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.objects)
}

// DestroyLog returns every Destroy call in the order it happened.
func (d *Device) DestroyLog() []Destroyed {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Destroyed(nil), d.destroyed...)
}

// Errors returns misuse detected outside of calls that return an error.
func (d *Device) Errors() []error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]error(nil), d.errs...)
}

// FenceSignaled reports the current state of a fence.
func (d *Device) FenceSignaled(fence driver.Handle) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	o, ok := d.objects[fence]
	return ok && o.kind == driver.ResourceFence && o.signaled
}

// Pipeline returns the description a pipeline was created from.
func (d *Device) Pipeline(h driver.Handle) *driver.GraphicsPipelineDesc {
	d.mu.Lock()
	defer d.mu.Unlock()
	if o, ok := d.objects[h]; ok {
		return o.pipeline
	}
	return nil
}

// DescriptorWrites returns the last write made to every binding of set.
func (d *Device) DescriptorWrites(set driver.Handle) map[uint32]driver.DescriptorWrite {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[uint32]driver.DescriptorWrite, len(d.sets[set]))
	for k, v := range d.sets[set] {
		out[k] = v
	}
	return out
}

// BufferBytes returns a copy of the bytes backing buffer, wherever it lives.
func (d *Device) BufferBytes(buffer driver.Handle) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	src, err := d.bytesOf(buffer, driver.ResourceBuffer)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), src...), nil
}

// ImageBytes returns a copy of the texels backing image.
func (d *Device) ImageBytes(image driver.Handle) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	src, err := d.bytesOf(image, driver.ResourceImage)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), src...), nil
}

// ImageLayout returns the layout image was last transitioned to.
func (d *Device) ImageLayout(image driver.Handle) driver.ImageLayout {
	d.mu.Lock()
	defer d.mu.Unlock()
	if o, ok := d.objects[image]; ok {
		return o.layout
	}
	return driver.ImageLayoutUndefined
}

func (d *Device) count(name string) {
	d.calls[name]++
}

func (d *Device) add(o *object) driver.Handle {
	h := d.next
	d.next++
	d.objects[h] = o
	return h
}

func (d *Device) get(h driver.Handle, kind driver.ResourceKind) (*object, error) {
	o, ok := d.objects[h]
	if !ok || o.kind != kind {
		return nil, errors.Wrapf(core.ErrNotFound, "%s %d", kind, h)
	}
	return o, nil
}

// bytesOf returns the live slice of memory a buffer or image is bound to.
func (d *Device) bytesOf(h driver.Handle, kind driver.ResourceKind) ([]byte, error) {
	o, err := d.get(h, kind)
	if err != nil {
		return nil, err
	}
	if o.memory == driver.NullHandle {
		return nil, errors.Newf("%s %d has no memory bound", kind, h)
	}
	mem, err := d.get(o.memory, driver.ResourceMemory)
	if err != nil {
		return nil, err
	}
	end := o.offset + o.size
	if end > uint64(len(mem.data)) {
		return nil, errors.Newf("%s %d overruns its memory", kind, h)
	}
	return mem.data[o.offset:end], nil
}

func (d *Device) MemoryTypes() []driver.MemoryType {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]driver.MemoryType(nil), d.memoryTypes...)
}

func (d *Device) Limits() driver.Limits {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.limits
}

func allTypes(n int) uint32 {
	return uint32(1)<<uint(n) - 1
}

func (d *Device) CreateBuffer(size uint64, usage driver.BufferUsageFlags) (driver.Handle, driver.MemoryRequirements, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("CreateBuffer")
	if size == 0 {
		return driver.NullHandle, driver.MemoryRequirements{}, errors.Wrap(core.ErrInvalidArgument, "buffer size 0")
	}
	h := d.add(&object{kind: driver.ResourceBuffer, size: size, usage: uint32(usage)})
	return h, driver.MemoryRequirements{
		Size:           (size + 15) &^ 15,
		Alignment:      16,
		MemoryTypeBits: allTypes(len(d.memoryTypes)),
	}, nil
}

func (d *Device) CreateImage(desc driver.ImageDesc) (driver.Handle, driver.MemoryRequirements, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("CreateImage")
	bpp := desc.Format.BytesPerPixel()
	if desc.Width == 0 || desc.Height == 0 || bpp == 0 {
		return driver.NullHandle, driver.MemoryRequirements{}, errors.Wrapf(core.ErrInvalidArgument, "image %dx%d format %d", desc.Width, desc.Height, desc.Format)
	}
	size := uint64(desc.Width) * uint64(desc.Height) * uint64(bpp)
	h := d.add(&object{kind: driver.ResourceImage, size: size, usage: uint32(desc.Usage), image: desc})
	return h, driver.MemoryRequirements{
		Size:           (size + 255) &^ 255,
		Alignment:      256,
		MemoryTypeBits: allTypes(len(d.memoryTypes)),
	}, nil
}

func (d *Device) AllocateMemory(size uint64, memoryTypeIndex uint32) (driver.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("AllocateMemory")
	if int(memoryTypeIndex) >= len(d.memoryTypes) {
		return driver.NullHandle, errors.Wrapf(core.ErrInvalidArgument, "memory type %d", memoryTypeIndex)
	}
	return d.add(&object{kind: driver.ResourceMemory, size: size, typeIdx: memoryTypeIndex, data: make([]byte, size)}), nil
}

func (d *Device) bind(h driver.Handle, kind driver.ResourceKind, memory driver.Handle, offset uint64) error {
	o, err := d.get(h, kind)
	if err != nil {
		return err
	}
	mem, err := d.get(memory, driver.ResourceMemory)
	if err != nil {
		return err
	}
	if o.memory != driver.NullHandle {
		return errors.Newf("%s %d already bound", kind, h)
	}
	if offset+o.size > mem.size {
		return errors.Wrapf(core.ErrInvalidArgument, "%s %d does not fit memory %d", kind, h, memory)
	}
	o.memory = memory
	o.offset = offset
	return nil
}

func (d *Device) BindBufferMemory(buffer, memory driver.Handle, offset uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("BindBufferMemory")
	return d.bind(buffer, driver.ResourceBuffer, memory, offset)
}

func (d *Device) BindImageMemory(image, memory driver.Handle, offset uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("BindImageMemory")
	return d.bind(image, driver.ResourceImage, memory, offset)
}

func (d *Device) MapMemory(memory driver.Handle, size uint64) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("MapMemory")
	mem, err := d.get(memory, driver.ResourceMemory)
	if err != nil {
		return nil, err
	}
	if d.memoryTypes[mem.typeIdx].PropertyFlags&driver.MemoryPropertyHostVisible == 0 {
		return nil, errors.Newf("memory %d is not host visible", memory)
	}
	if mem.mapped {
		return nil, errors.Newf("memory %d is already mapped", memory)
	}
	if size == 0 || size > mem.size {
		size = mem.size
	}
	mem.mapped = true
	return mem.data[:size:size], nil
}

func (d *Device) UnmapMemory(memory driver.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("UnmapMemory")
	if mem, err := d.get(memory, driver.ResourceMemory); err == nil {
		mem.mapped = false
	}
}

func (d *Device) CreateImageView(desc driver.ImageViewDesc) (driver.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("CreateImageView")
	if _, err := d.get(desc.Image, driver.ResourceImage); err != nil {
		return driver.NullHandle, err
	}
	return d.add(&object{kind: driver.ResourceImageView}), nil
}

func (d *Device) CreateSampler(desc driver.SamplerDesc) (driver.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("CreateSampler")
	return d.add(&object{kind: driver.ResourceSampler}), nil
}

func (d *Device) CreateShaderModule(code []uint32) (driver.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("CreateShaderModule")
	if len(code) == 0 {
		return driver.NullHandle, errors.Wrap(core.ErrInvalidShader, "empty shader module")
	}
	return d.add(&object{kind: driver.ResourceShaderModule, size: uint64(len(code) * 4)}), nil
}

func (d *Device) CreateDescriptorSetLayout(bindings []driver.DescriptorBinding) (driver.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("CreateDescriptorSetLayout")
	return d.add(&object{kind: driver.ResourceDescriptorSetLayout}), nil
}

func (d *Device) CreateDescriptorPool(maxSets uint32, sizes []driver.DescriptorPoolSize) (driver.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("CreateDescriptorPool")
	return d.add(&object{kind: driver.ResourceDescriptorPool, maxSets: maxSets}), nil
}

func (d *Device) AllocateDescriptorSet(pool, layout driver.Handle) (driver.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("AllocateDescriptorSet")
	p, err := d.get(pool, driver.ResourceDescriptorPool)
	if err != nil {
		return driver.NullHandle, err
	}
	if _, err := d.get(layout, driver.ResourceDescriptorSetLayout); err != nil {
		return driver.NullHandle, err
	}
	if uint32(len(p.sets)) >= p.maxSets {
		return driver.NullHandle, errors.Newf("descriptor pool %d exhausted (%d sets)", pool, p.maxSets)
	}
	h := d.next
	d.next++
	p.sets = append(p.sets, h)
	d.sets[h] = make(map[uint32]driver.DescriptorWrite)
	return h, nil
}

func (d *Device) UpdateDescriptorSet(set driver.Handle, writes []driver.DescriptorWrite) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("UpdateDescriptorSet")
	bindings, ok := d.sets[set]
	if !ok {
		return errors.Wrapf(core.ErrNotFound, "descriptor set %d", set)
	}
	for _, w := range writes {
		switch w.Type {
		case driver.DescriptorTypeCombinedImageSampler:
			if _, err := d.get(w.ImageView, driver.ResourceImageView); err != nil {
				return err
			}
			if _, err := d.get(w.Sampler, driver.ResourceSampler); err != nil {
				return err
			}
		default:
			b, err := d.get(w.Buffer, driver.ResourceBuffer)
			if err != nil {
				return err
			}
			if w.Offset+w.Range > b.size {
				return errors.Wrapf(core.ErrInvalidArgument, "descriptor range %d+%d exceeds buffer %d", w.Offset, w.Range, w.Buffer)
			}
		}
		bindings[w.Binding] = w
	}
	return nil
}

func (d *Device) CreatePipelineLayout(setLayouts []driver.Handle, pushConstants []driver.PushConstantRange) (driver.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("CreatePipelineLayout")
	for _, l := range setLayouts {
		if _, err := d.get(l, driver.ResourceDescriptorSetLayout); err != nil {
			return driver.NullHandle, err
		}
	}
	return d.add(&object{kind: driver.ResourcePipelineLayout}), nil
}

func (d *Device) CreateGraphicsPipeline(desc *driver.GraphicsPipelineDesc) (driver.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("CreateGraphicsPipeline")
	for _, s := range desc.Stages {
		if _, err := d.get(s.Module, driver.ResourceShaderModule); err != nil {
			return driver.NullHandle, err
		}
	}
	if _, err := d.get(desc.Layout, driver.ResourcePipelineLayout); err != nil {
		return driver.NullHandle, err
	}
	cp := *desc
	cp.Stages = append([]driver.ShaderStage(nil), desc.Stages...)
	cp.VertexAttributes = append([]driver.VertexAttribute(nil), desc.VertexAttributes...)
	return d.add(&object{kind: driver.ResourcePipeline, pipeline: &cp}), nil
}

func (d *Device) CreateFence(signaled bool) (driver.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("CreateFence")
	return d.add(&object{kind: driver.ResourceFence, signaled: signaled}), nil
}

func (d *Device) CreateSemaphore() (driver.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("CreateSemaphore")
	return d.add(&object{kind: driver.ResourceSemaphore}), nil
}

// WaitForFence never blocks: all submitted work has already completed, so an
// unsignaled fence can only time out.
func (d *Device) WaitForFence(fence driver.Handle, timeout time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("WaitForFence")
	f, err := d.get(fence, driver.ResourceFence)
	if err != nil {
		return err
	}
	if !f.signaled {
		return errors.Wrapf(core.ErrTimeout, "fence %d not signaled after %s", fence, timeout)
	}
	return nil
}

func (d *Device) ResetFence(fence driver.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("ResetFence")
	f, err := d.get(fence, driver.ResourceFence)
	if err != nil {
		return err
	}
	f.signaled = false
	return nil
}

func (d *Device) AllocateCommandBuffer() (driver.CommandBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("AllocateCommandBuffer")
	cb := &CommandBuffer{dev: d}
	cb.handle = d.add(&object{kind: driver.ResourceCommandBuffer})
	return cb, nil
}

func (d *Device) FreeCommandBuffer(cb driver.CommandBuffer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("FreeCommandBuffer")
	if _, err := d.get(cb.Handle(), driver.ResourceCommandBuffer); err != nil {
		d.errs = append(d.errs, err)
		return
	}
	delete(d.objects, cb.Handle())
}

func (d *Device) Submit(cb driver.CommandBuffer, wait, signal, fence driver.Handle) error {
	fake, ok := cb.(*CommandBuffer)
	if !ok {
		return errors.Wrap(core.ErrInvalidArgument, "foreign command buffer")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("Submit")
	if _, err := d.get(fake.handle, driver.ResourceCommandBuffer); err != nil {
		return err
	}
	if fake.state != stateExecutable {
		return errors.Newf("command buffer %d submitted while not ended", fake.handle)
	}

	var f *object
	if fence != driver.NullHandle {
		var err error
		if f, err = d.get(fence, driver.ResourceFence); err != nil {
			return err
		}
		if f.signaled {
			return errors.Newf("fence %d submitted while still signaled", fence)
		}
	}
	if wait != driver.NullHandle {
		s, err := d.get(wait, driver.ResourceSemaphore)
		if err != nil {
			return err
		}
		if !s.signaled {
			return errors.Newf("semaphore %d waited on with no pending signal", wait)
		}
		s.signaled = false
	}

	for _, op := range fake.ops {
		if err := op(); err != nil {
			return errors.Wrapf(err, "executing command buffer %d", fake.handle)
		}
	}

	if signal != driver.NullHandle {
		s, err := d.get(signal, driver.ResourceSemaphore)
		if err != nil {
			return err
		}
		s.signaled = true
	}
	if f != nil {
		f.signaled = true
	}
	fake.state = stateSubmitted
	return nil
}

func (d *Device) QueueWaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("QueueWaitIdle")
	return nil
}

func (d *Device) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("WaitIdle")
	return nil
}

func (d *Device) Destroy(kind driver.ResourceKind, handle driver.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("Destroy")
	d.destroyed = append(d.destroyed, Destroyed{Kind: kind, Handle: handle})
	o, err := d.get(handle, kind)
	if err != nil {
		d.errs = append(d.errs, errors.Wrap(err, "destroy"))
		return
	}
	if kind == driver.ResourceDescriptorPool {
		for _, s := range o.sets {
			delete(d.sets, s)
		}
	}
	if kind == driver.ResourceMemory {
		for h, other := range d.objects {
			if other.memory == handle {
				d.errs = append(d.errs, errors.Newf("memory %d freed while %s %d is still bound", handle, other.kind, h))
			}
		}
	}
	delete(d.objects, handle)
}
