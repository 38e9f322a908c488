package drivertest

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/ember/engine/core"
	"github.com/spaghettifunk/ember/engine/renderer/driver"
)

// Swapchain hands out images round robin and presents them into a log.
// OutOfDateAcquires and SuboptimalPresents inject the next N stale results.
type Swapchain struct {
	dev *Device

	extent       driver.Extent2D
	imageCount   uint32
	next         uint32
	target       driver.RenderTarget
	framebuffers []driver.Handle

	OutOfDateAcquires  int
	SuboptimalPresents int

	Rebuilds  int
	Presented []uint32
	destroyed bool
}

func NewSwapchain(dev *Device, width, height, imageCount uint32) *Swapchain {
	s := &Swapchain{
		dev:        dev,
		imageCount: imageCount,
	}
	dev.mu.Lock()
	s.target = driver.RenderTarget{
		RenderPass:  dev.next,
		ColorFormat: driver.FormatB8G8R8A8Srgb,
		DepthFormat: driver.FormatD32Sfloat,
	}
	dev.next++
	dev.mu.Unlock()
	s.build(width, height)
	return s
}

func (s *Swapchain) build(width, height uint32) {
	s.extent = driver.Extent2D{Width: width, Height: height}
	s.next = 0
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	s.framebuffers = s.framebuffers[:0]
	for i := uint32(0); i < s.imageCount; i++ {
		s.framebuffers = append(s.framebuffers, s.dev.next)
		s.dev.next++
	}
}

func (s *Swapchain) AcquireNextImage(timeout time.Duration, semaphore driver.Handle) (uint32, bool, error) {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	s.dev.count("AcquireNextImage")
	if s.destroyed {
		return 0, false, errors.New("swapchain destroyed")
	}
	if s.OutOfDateAcquires > 0 {
		s.OutOfDateAcquires--
		return 0, false, errors.Wrap(core.ErrSwapchainOutOfDate, "acquire")
	}
	sem, err := s.dev.get(semaphore, driver.ResourceSemaphore)
	if err != nil {
		return 0, false, err
	}
	if sem.signaled {
		return 0, false, errors.Newf("semaphore %d already has a pending signal", semaphore)
	}
	sem.signaled = true
	idx := s.next
	s.next = (s.next + 1) % s.imageCount
	return idx, false, nil
}

func (s *Swapchain) Present(index uint32, wait driver.Handle) (bool, error) {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	s.dev.count("Present")
	if index >= s.imageCount {
		return false, errors.Wrapf(core.ErrInvalidArgument, "image index %d", index)
	}
	sem, err := s.dev.get(wait, driver.ResourceSemaphore)
	if err != nil {
		return false, err
	}
	if !sem.signaled {
		return false, errors.Newf("present waits on semaphore %d with no pending signal", wait)
	}
	sem.signaled = false
	s.Presented = append(s.Presented, index)
	if s.SuboptimalPresents > 0 {
		s.SuboptimalPresents--
		return true, nil
	}
	return false, nil
}

func (s *Swapchain) Extent() driver.Extent2D { return s.extent }

func (s *Swapchain) ImageCount() uint32 { return s.imageCount }

func (s *Swapchain) RenderTarget() driver.RenderTarget { return s.target }

func (s *Swapchain) Framebuffer(index uint32) driver.Handle {
	if index >= uint32(len(s.framebuffers)) {
		return driver.NullHandle
	}
	return s.framebuffers[index]
}

func (s *Swapchain) Rebuild(width, height uint32) error {
	s.dev.mu.Lock()
	s.dev.count("Rebuild")
	s.dev.mu.Unlock()
	if width == 0 || height == 0 {
		return errors.Wrapf(core.ErrInvalidArgument, "swapchain extent %dx%d", width, height)
	}
	s.Rebuilds++
	s.build(width, height)
	return nil
}

func (s *Swapchain) Destroy() {
	s.destroyed = true
}
