package renderer

import (
	"fmt"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
)

func noRecord(*FrameSlot, uint32) error { return nil }

func TestNewFrameControllerCreatesOneSetPerSlot(t *testing.T) {
	for _, n := range []int{1, 2, 3} {
		t.Run(fmt.Sprintf("frames=%d", n), func(t *testing.T) {
			env := newTestEnv(t)
			fc, err := NewFrameController(env.dev, env.swapchain, env.teardown, FrameConfig{FramesInFlight: n})
			if err != nil {
				t.Fatalf("NewFrameController() = %v", err)
			}
			if got := len(fc.Slots()); got != n {
				t.Errorf("len(Slots()) = %d, want %d", got, n)
			}
			if got := env.dev.Live(driver.ResourceFence); got != n {
				t.Errorf("fences = %d, want %d", got, n)
			}
			if got := env.dev.Live(driver.ResourceSemaphore); got != 2*n {
				t.Errorf("semaphores = %d, want %d", got, 2*n)
			}
			if got := env.dev.Live(driver.ResourceCommandBuffer); got != n {
				t.Errorf("command buffers = %d, want %d", got, n)
			}
			for _, slot := range fc.Slots() {
				if !env.dev.FenceSignaled(slot.Fence) {
					t.Errorf("slot %d fence starts unsignaled", slot.Index)
				}
			}
			if got := env.teardown.Len(); got != 4*n {
				t.Errorf("teardown.Len() = %d, want %d", got, 4*n)
			}
		})
	}
}

func TestNewFrameControllerRejectsZeroFrames(t *testing.T) {
	env := newTestEnv(t)
	_, err := NewFrameController(env.dev, env.swapchain, env.teardown, FrameConfig{})
	if !errors.Is(err, core.ErrInvalidArgument) {
		t.Errorf("NewFrameController() = %v, want %v", err, core.ErrInvalidArgument)
	}
}

func TestFrameCyclesSlotsAndImages(t *testing.T) {
	env := newTestEnv(t)
	fc, err := NewFrameController(env.dev, env.swapchain, env.teardown, FrameConfig{FramesInFlight: 2})
	if err != nil {
		t.Fatalf("NewFrameController() = %v", err)
	}
	var slots []int
	for i := 0; i < 5; i++ {
		drawn, err := fc.Frame(func(slot *FrameSlot, imageIndex uint32) error {
			slots = append(slots, slot.Index)
			return nil
		})
		if err != nil || !drawn {
			t.Fatalf("Frame() #%d = %v, %v", i, drawn, err)
		}
	}
	if got := fc.FrameCount(); got != 5 {
		t.Errorf("FrameCount() = %d, want 5", got)
	}
	if want := fmt.Sprint([]int{0, 1, 0, 1, 0}); fmt.Sprint(slots) != want {
		t.Errorf("slots used = %v, want %s", slots, want)
	}
	if want := fmt.Sprint([]uint32{0, 1, 2, 0, 1}); fmt.Sprint(env.swapchain.Presented) != want {
		t.Errorf("Presented = %v, want %s", env.swapchain.Presented, want)
	}
	for _, slot := range fc.Slots() {
		if !env.dev.FenceSignaled(slot.Fence) {
			t.Errorf("slot %d fence unsignaled after its frame completed", slot.Index)
		}
	}
	if got := env.dev.Calls("WaitForFence"); got != 5 {
		t.Errorf("WaitForFence calls = %d, want 5", got)
	}
	if err := fc.WaitAll(); err != nil {
		t.Errorf("WaitAll() = %v", err)
	}
}

func TestFrameSkipsOutOfDateAcquire(t *testing.T) {
	env := newTestEnv(t)
	fc, err := NewFrameController(env.dev, env.swapchain, env.teardown, FrameConfig{FramesInFlight: 2})
	if err != nil {
		t.Fatalf("NewFrameController() = %v", err)
	}
	var rebuiltAt driver.Extent2D
	fc.OnRebuild(func(extent driver.Extent2D) error {
		rebuiltAt = extent
		return nil
	})
	env.swapchain.OutOfDateAcquires = 1

	drawn, err := fc.Frame(noRecord)
	if err != nil || drawn {
		t.Fatalf("Frame() = %v, %v, want skipped frame", drawn, err)
	}
	if env.swapchain.Rebuilds != 1 {
		t.Errorf("Rebuilds = %d, want 1", env.swapchain.Rebuilds)
	}
	if rebuiltAt != (driver.Extent2D{Width: 800, Height: 600}) {
		t.Errorf("OnRebuild extent = %+v", rebuiltAt)
	}
	if fc.FrameCount() != 0 {
		t.Errorf("FrameCount() = %d, want 0", fc.FrameCount())
	}
	// The fence was not reset, so the slot is immediately usable again.
	if !env.dev.FenceSignaled(fc.Slots()[0].Fence) {
		t.Error("skipped frame left its fence unsignaled")
	}

	drawn, err = fc.Frame(noRecord)
	if err != nil || !drawn {
		t.Fatalf("Frame() after rebuild = %v, %v", drawn, err)
	}
	if stats := fc.Stats(); stats.Skipped != 1 || stats.Frames != 1 || stats.Rebuilds != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestFrameRebuildsAfterSuboptimalPresent(t *testing.T) {
	env := newTestEnv(t)
	fc, err := NewFrameController(env.dev, env.swapchain, env.teardown, FrameConfig{FramesInFlight: 2})
	if err != nil {
		t.Fatalf("NewFrameController() = %v", err)
	}
	env.swapchain.SuboptimalPresents = 1
	drawn, err := fc.Frame(noRecord)
	if err != nil || !drawn {
		t.Fatalf("Frame() = %v, %v", drawn, err)
	}
	if env.swapchain.Rebuilds != 1 {
		t.Errorf("Rebuilds = %d, want 1", env.swapchain.Rebuilds)
	}
	if fc.FrameCount() != 1 {
		t.Errorf("FrameCount() = %d, want 1", fc.FrameCount())
	}
}

func TestFramePausesWhileMinimized(t *testing.T) {
	env := newTestEnv(t)
	fc, err := NewFrameController(env.dev, env.swapchain, env.teardown, FrameConfig{FramesInFlight: 2})
	if err != nil {
		t.Fatalf("NewFrameController() = %v", err)
	}
	fc.Resize(0, 600)
	drawn, err := fc.Frame(noRecord)
	if err != nil || drawn {
		t.Fatalf("Frame() while minimized = %v, %v", drawn, err)
	}
	if env.dev.Calls("AcquireNextImage") != 0 || env.swapchain.Rebuilds != 0 {
		t.Errorf("minimized frame touched the swapchain")
	}

	fc.Resize(1024, 768)
	if drawn, err := fc.Frame(noRecord); err != nil || !drawn {
		t.Fatalf("Frame() after restore = %v, %v", drawn, err)
	}
	if got := fc.Extent(); got != (driver.Extent2D{Width: 1024, Height: 768}) {
		t.Errorf("Extent() = %+v, want 1024x768", got)
	}
}

func TestFrameFenceTimeoutIsFatal(t *testing.T) {
	env := newTestEnv(t)
	fc, err := NewFrameController(env.dev, env.swapchain, env.teardown, FrameConfig{FramesInFlight: 1, FenceTimeout: time.Millisecond})
	if err != nil {
		t.Fatalf("NewFrameController() = %v", err)
	}
	if err := env.dev.ResetFence(fc.Slots()[0].Fence); err != nil {
		t.Fatalf("ResetFence() = %v", err)
	}
	_, err = fc.Frame(noRecord)
	if !errors.Is(err, core.ErrTimeout) {
		t.Errorf("Frame() = %v, want %v", err, core.ErrTimeout)
	}
	if !core.IsFatal(err) {
		t.Errorf("IsFatal(%v) = false", err)
	}
}

func TestFrameRecordErrorStopsSubmission(t *testing.T) {
	env := newTestEnv(t)
	fc, err := NewFrameController(env.dev, env.swapchain, env.teardown, FrameConfig{FramesInFlight: 2})
	if err != nil {
		t.Fatalf("NewFrameController() = %v", err)
	}
	boom := errors.New("boom")
	_, err = fc.Frame(func(*FrameSlot, uint32) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("Frame() = %v, want %v", err, boom)
	}
	if got := len(env.swapchain.Presented); got != 0 {
		t.Errorf("presented %d images, want 0", got)
	}
	// The slot went back to the GPU as an empty batch.
	slot := fc.Slots()[0]
	if !env.dev.FenceSignaled(slot.Fence) {
		t.Errorf("frame 0 fence unsignaled after a failed recording")
	}

	drawn, err := fc.Frame(noRecord)
	if err != nil || !drawn {
		t.Fatalf("Frame() after failure = %v, %v", drawn, err)
	}
	if err := fc.WaitAll(); err != nil {
		t.Errorf("WaitAll() = %v", err)
	}
	checkNoDriverErrors(t, env.dev)
}
