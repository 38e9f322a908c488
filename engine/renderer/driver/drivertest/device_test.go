package drivertest

import (
	"bytes"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
)

func mustBuffer(t *testing.T, d *Device, size uint64, usage driver.BufferUsageFlags, memType uint32) (driver.Handle, driver.Handle) {
	t.Helper()
	buf, req, err := d.CreateBuffer(size, usage)
	if err != nil {
		t.Fatalf("CreateBuffer() = %v", err)
	}
	mem, err := d.AllocateMemory(req.Size, memType)
	if err != nil {
		t.Fatalf("AllocateMemory() = %v", err)
	}
	if err := d.BindBufferMemory(buf, mem, 0); err != nil {
		t.Fatalf("BindBufferMemory() = %v", err)
	}
	return buf, mem
}

func TestSubmitRunsCopiesAndSignalsFence(t *testing.T) {
	d := NewDevice()
	src, srcMem := mustBuffer(t, d, 8, driver.BufferUsageTransferSrc, 1)
	dst, _ := mustBuffer(t, d, 8, driver.BufferUsageTransferDst|driver.BufferUsageVertex, 0)

	m, err := d.MapMemory(srcMem, 8)
	if err != nil {
		t.Fatalf("MapMemory() = %v", err)
	}
	copy(m, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	d.UnmapMemory(srcMem)

	fence, _ := d.CreateFence(false)
	cb, _ := d.AllocateCommandBuffer()
	cb.Begin(true)
	cb.CopyBuffer(src, dst, []driver.BufferCopy{{Size: 8}})
	if err := cb.End(); err != nil {
		t.Fatalf("End() = %v", err)
	}
	if err := d.WaitForFence(fence, time.Millisecond); !errors.Is(err, core.ErrTimeout) {
		t.Errorf("WaitForFence() before submit = %v, want %v", err, core.ErrTimeout)
	}
	if err := d.Submit(cb, driver.NullHandle, driver.NullHandle, fence); err != nil {
		t.Fatalf("Submit() = %v", err)
	}
	if err := d.WaitForFence(fence, time.Millisecond); err != nil {
		t.Errorf("WaitForFence() after submit = %v", err)
	}
	got, _ := d.BufferBytes(dst)
	if !bytes.Equal(got, []byte{1, 2, 3, 4, 5, 6, 7, 8}) {
		t.Errorf("BufferBytes() = %v, want copied bytes", got)
	}
}

func TestMapDeviceLocalMemoryFails(t *testing.T) {
	d := NewDevice()
	_, mem := mustBuffer(t, d, 4, driver.BufferUsageVertex, 0)
	if _, err := d.MapMemory(mem, 4); err == nil {
		t.Error("MapMemory(device local) = nil, want error")
	}
}

func TestSubmitRejectsSignaledFenceAndUnsignaledWait(t *testing.T) {
	d := NewDevice()
	fence, _ := d.CreateFence(true)
	sem, _ := d.CreateSemaphore()
	cb, _ := d.AllocateCommandBuffer()
	cb.Begin(false)
	cb.End()

	if err := d.Submit(cb, driver.NullHandle, driver.NullHandle, fence); err == nil {
		t.Error("Submit() with signaled fence = nil, want error")
	}
	d.ResetFence(fence)
	if err := d.Submit(cb, sem, driver.NullHandle, fence); err == nil {
		t.Error("Submit() waiting on unsignaled semaphore = nil, want error")
	}
}

func TestDrawValidation(t *testing.T) {
	d := NewDevice()
	cb, _ := d.AllocateCommandBuffer()
	cb.Begin(false)
	cb.BeginRenderPass(1, 2, driver.Extent2D{Width: 1, Height: 1}, nil)
	cb.DrawIndexed(3, 1, 0, 0, 0)
	cb.EndRenderPass()
	if err := cb.End(); err == nil {
		t.Error("End() after unbound draw = nil, want error")
	}
}

func TestSwapchainAcquirePresentProtocol(t *testing.T) {
	d := NewDevice()
	sc := NewSwapchain(d, 800, 600, 2)
	acquired, _ := d.CreateSemaphore()
	rendered, _ := d.CreateSemaphore()

	sc.OutOfDateAcquires = 1
	if _, _, err := sc.AcquireNextImage(time.Second, acquired); !errors.Is(err, core.ErrSwapchainOutOfDate) {
		t.Fatalf("AcquireNextImage() = %v, want %v", err, core.ErrSwapchainOutOfDate)
	}
	idx, _, err := sc.AcquireNextImage(time.Second, acquired)
	if err != nil || idx != 0 {
		t.Fatalf("AcquireNextImage() = %d, %v, want 0, nil", idx, err)
	}
	if _, err := sc.Present(idx, rendered); err == nil {
		t.Error("Present() before render signal = nil, want error")
	}

	cb, _ := d.AllocateCommandBuffer()
	cb.Begin(true)
	cb.End()
	if err := d.Submit(cb, acquired, rendered, driver.NullHandle); err != nil {
		t.Fatalf("Submit() = %v", err)
	}
	if _, err := sc.Present(idx, rendered); err != nil {
		t.Errorf("Present() = %v", err)
	}
	if len(sc.Presented) != 1 {
		t.Errorf("Presented = %v, want one image", sc.Presented)
	}
}

func TestDestroyLogAndLeaks(t *testing.T) {
	d := NewDevice()
	buf, mem := mustBuffer(t, d, 4, driver.BufferUsageVertex, 0)
	d.Destroy(driver.ResourceMemory, mem)
	if len(d.Errors()) != 1 {
		t.Errorf("Errors() = %v, want one bound-memory error", d.Errors())
	}
	d.Destroy(driver.ResourceBuffer, buf)
	d.Destroy(driver.ResourceBuffer, buf)
	if len(d.Errors()) != 2 {
		t.Errorf("Errors() = %v, want a double destroy error", d.Errors())
	}
	if d.LiveTotal() != 0 {
		t.Errorf("LiveTotal() = %d, want 0", d.LiveTotal())
	}
	want := []Destroyed{{driver.ResourceMemory, mem}, {driver.ResourceBuffer, buf}, {driver.ResourceBuffer, buf}}
	got := d.DestroyLog()
	if len(got) != len(want) {
		t.Fatalf("DestroyLog() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("DestroyLog()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}
