package renderer

import (
	"github.com/spaghettifunk/ember/engine/containers"
	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
	"github.com/spaghettifunk/ember/engine/renderer/metadata"
)

// TeardownRecord names one GPU object to destroy.
type TeardownRecord struct {
	Kind   driver.ResourceKind
	Handle driver.Handle
	Label  string
}

// Teardown is the renderer's deletion queue. Objects are pushed right after
// they are created and destroyed in reverse order on Flush.
type Teardown struct {
	device    driver.Device
	allocator *Allocator
	queue     *containers.DeletionQueue[TeardownRecord]
}

func NewTeardown(device driver.Device, allocator *Allocator) *Teardown {
	return &Teardown{
		device:    device,
		allocator: allocator,
		queue:     containers.NewDeletionQueue[TeardownRecord](),
	}
}

func (t *Teardown) Push(kind driver.ResourceKind, handle driver.Handle, label string) {
	if handle == driver.NullHandle {
		return
	}
	t.queue.Push(TeardownRecord{Kind: kind, Handle: handle, Label: label})
}

// PushBuffer queues buf so the buffer goes before the memory it is bound to.
func (t *Teardown) PushBuffer(buf *metadata.AllocatedBuffer, label string) {
	t.Push(driver.ResourceMemory, buf.Memory, label)
	t.Push(driver.ResourceBuffer, buf.Buffer, label)
}

// PushImage queues img as memory, image, view; destroyed view first.
func (t *Teardown) PushImage(img *metadata.AllocatedImage, label string) {
	t.Push(driver.ResourceMemory, img.Memory, label)
	t.Push(driver.ResourceImage, img.Image, label)
	t.Push(driver.ResourceImageView, img.View, label)
}

// Flush destroys everything queued, newest first. The caller must have waited
// for the GPU to go idle.
func (t *Teardown) Flush() int {
	return t.queue.Flush(func(r TeardownRecord) {
		core.LogDebug("destroying %s %d (%s)", r.Kind, r.Handle, r.Label)
		if r.Kind == driver.ResourceMemory {
			t.allocator.FreeMemory(r.Handle)
			return
		}
		t.device.Destroy(r.Kind, r.Handle)
	})
}

func (t *Teardown) Len() int {
	return t.queue.Len()
}

func (t *Teardown) Records() []TeardownRecord {
	return t.queue.Records()
}
