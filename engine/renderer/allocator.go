package renderer

import (
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
	"github.com/spaghettifunk/ember/engine/renderer/metadata"
)

// Allocation describes one live block of device memory.
type Allocation struct {
	ID     uuid.UUID
	Label  string
	Size   uint64
	Usage  metadata.MemoryUsage
	Memory driver.Handle
	mapped bool
}

// Allocator gives every buffer and image its own dedicated memory block and
// remembers each block until it is freed, so leaks can be reported at shutdown.
type Allocator struct {
	device      driver.Device
	memoryTypes []driver.MemoryType

	mu   sync.Mutex
	live map[driver.Handle]*Allocation
}

func NewAllocator(device driver.Device) *Allocator {
	return &Allocator{
		device:      device,
		memoryTypes: device.MemoryTypes(),
		live:        make(map[driver.Handle]*Allocation),
	}
}

// FindMemoryType returns the first memory type allowed by typeBits that has
// every flag in required.
func FindMemoryType(types []driver.MemoryType, typeBits uint32, required driver.MemoryPropertyFlags) (uint32, error) {
	for i := 0; i < len(types) && i < 32; i++ {
		// Check each memory type to see if its bit is set to 1.
		if typeBits&(1<<uint(i)) != 0 && types[i].PropertyFlags&required == required {
			return uint32(i), nil
		}
	}
	return 0, errors.Wrapf(core.ErrNotFound, "no memory type with flags %#x in mask %#b", required, typeBits)
}

func memoryFlags(usage metadata.MemoryUsage) (required, preferred driver.MemoryPropertyFlags) {
	switch usage {
	case metadata.MemoryUsageGPUOnly:
		return driver.MemoryPropertyDeviceLocal, 0
	case metadata.MemoryUsageCPUToGPU:
		return driver.MemoryPropertyHostVisible | driver.MemoryPropertyHostCoherent, driver.MemoryPropertyDeviceLocal
	case metadata.MemoryUsageCPUOnly:
		return driver.MemoryPropertyHostVisible | driver.MemoryPropertyHostCoherent, 0
	case metadata.MemoryUsageGPUToCPU:
		// Readbacks never invalidate the mapping, so the memory must be coherent.
		return driver.MemoryPropertyHostVisible | driver.MemoryPropertyHostCoherent, driver.MemoryPropertyHostCached
	}
	return 0, 0
}

func (a *Allocator) pickMemoryType(typeBits uint32, usage metadata.MemoryUsage) (uint32, error) {
	required, preferred := memoryFlags(usage)
	if preferred != 0 {
		if idx, err := FindMemoryType(a.memoryTypes, typeBits, required|preferred); err == nil {
			return idx, nil
		}
	}
	return FindMemoryType(a.memoryTypes, typeBits, required)
}

func hostVisible(usage metadata.MemoryUsage) bool {
	return usage != metadata.MemoryUsageGPUOnly
}

func (a *Allocator) allocate(req driver.MemoryRequirements, usage metadata.MemoryUsage, label string) (*Allocation, error) {
	typeIdx, err := a.pickMemoryType(req.MemoryTypeBits, usage)
	if err != nil {
		return nil, errors.Wrapf(err, "allocating %s (%s)", label, usage)
	}
	mem, err := a.device.AllocateMemory(req.Size, typeIdx)
	if err != nil {
		return nil, errors.Wrapf(err, "allocating %d bytes for %s", req.Size, label)
	}
	alloc := &Allocation{
		ID:     uuid.New(),
		Label:  label,
		Size:   req.Size,
		Usage:  usage,
		Memory: mem,
	}
	a.mu.Lock()
	a.live[mem] = alloc
	a.mu.Unlock()
	return alloc, nil
}

// CreateBuffer creates a buffer of size bytes backed by memory chosen for
// memUsage. Host visible buffers come back persistently mapped.
func (a *Allocator) CreateBuffer(size uint64, usage driver.BufferUsageFlags, memUsage metadata.MemoryUsage, label string) (*metadata.AllocatedBuffer, error) {
	if size == 0 {
		return nil, errors.Wrapf(core.ErrInvalidArgument, "buffer %s has zero size", label)
	}
	buf, req, err := a.device.CreateBuffer(size, usage)
	if err != nil {
		return nil, errors.Wrapf(err, "creating buffer %s", label)
	}
	alloc, err := a.allocate(req, memUsage, label)
	if err != nil {
		a.device.Destroy(driver.ResourceBuffer, buf)
		return nil, err
	}
	if err := a.device.BindBufferMemory(buf, alloc.Memory, 0); err != nil {
		a.device.Destroy(driver.ResourceBuffer, buf)
		a.FreeMemory(alloc.Memory)
		return nil, errors.Wrapf(err, "binding buffer %s", label)
	}

	out := &metadata.AllocatedBuffer{
		ID:     alloc.ID,
		Buffer: buf,
		Memory: alloc.Memory,
		Size:   size,
		Usage:  memUsage,
	}
	if hostVisible(memUsage) {
		mapped, err := a.device.MapMemory(alloc.Memory, req.Size)
		if err != nil {
			a.device.Destroy(driver.ResourceBuffer, buf)
			a.FreeMemory(alloc.Memory)
			return nil, errors.Wrapf(err, "mapping buffer %s", label)
		}
		a.mu.Lock()
		alloc.mapped = true
		a.mu.Unlock()
		out.Mapped = mapped[:size:size]
	}
	return out, nil
}

// DestroyBuffer releases buf right away. Only call it once no submission
// still references the buffer.
func (a *Allocator) DestroyBuffer(buf *metadata.AllocatedBuffer) {
	if buf == nil {
		return
	}
	a.device.Destroy(driver.ResourceBuffer, buf.Buffer)
	a.FreeMemory(buf.Memory)
	buf.Mapped = nil
}

// CreateImage creates a device local 2D image and a view covering it.
func (a *Allocator) CreateImage(desc driver.ImageDesc, aspect driver.ImageAspectFlags, label string) (*metadata.AllocatedImage, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, errors.Wrapf(core.ErrInvalidArgument, "image %s has extent %dx%d", label, desc.Width, desc.Height)
	}
	img, req, err := a.device.CreateImage(desc)
	if err != nil {
		return nil, errors.Wrapf(err, "creating image %s", label)
	}
	alloc, err := a.allocate(req, metadata.MemoryUsageGPUOnly, label)
	if err != nil {
		a.device.Destroy(driver.ResourceImage, img)
		return nil, err
	}
	if err := a.device.BindImageMemory(img, alloc.Memory, 0); err != nil {
		a.device.Destroy(driver.ResourceImage, img)
		a.FreeMemory(alloc.Memory)
		return nil, errors.Wrapf(err, "binding image %s", label)
	}
	view, err := a.device.CreateImageView(driver.ImageViewDesc{Image: img, Format: desc.Format, Aspect: aspect})
	if err != nil {
		a.device.Destroy(driver.ResourceImage, img)
		a.FreeMemory(alloc.Memory)
		return nil, errors.Wrapf(err, "creating view for image %s", label)
	}
	return &metadata.AllocatedImage{
		ID:     alloc.ID,
		Image:  img,
		Memory: alloc.Memory,
		View:   view,
		Width:  desc.Width,
		Height: desc.Height,
		Format: desc.Format,
	}, nil
}

func (a *Allocator) DestroyImage(img *metadata.AllocatedImage) {
	if img == nil {
		return
	}
	a.device.Destroy(driver.ResourceImageView, img.View)
	a.device.Destroy(driver.ResourceImage, img.Image)
	a.FreeMemory(img.Memory)
}

// FreeMemory unmaps and frees a block handed out by this allocator.
func (a *Allocator) FreeMemory(memory driver.Handle) {
	a.mu.Lock()
	alloc, ok := a.live[memory]
	delete(a.live, memory)
	a.mu.Unlock()
	if !ok {
		core.LogWarn("freeing memory %d not owned by the allocator", memory)
	} else if alloc.mapped {
		a.device.UnmapMemory(memory)
	}
	a.device.Destroy(driver.ResourceMemory, memory)
}

// Live returns the outstanding allocations, largest first.
func (a *Allocator) Live() []Allocation {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Allocation, 0, len(a.live))
	for _, alloc := range a.live {
		out = append(out, *alloc)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Size != out[j].Size {
			return out[i].Size > out[j].Size
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// ReportLeaks logs every allocation still alive and returns how many there were.
func (a *Allocator) ReportLeaks() int {
	live := a.Live()
	for _, alloc := range live {
		core.LogWarn("leaked allocation %s: %s, %d bytes (%s)", alloc.ID, alloc.Label, alloc.Size, alloc.Usage)
	}
	return len(live)
}
