package core

import (
	"github.com/cockroachdb/errors"
)

var (
	ErrSwapchainBooting   = errors.New("swapchain resized or recreated, booting")
	ErrSwapchainOutOfDate = errors.New("swapchain out of date")
	ErrTimeout            = errors.New("gpu wait timed out")
	ErrDeviceLost         = errors.New("device lost")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrNotFound           = errors.New("not found")
	ErrInvalidShader      = errors.New("invalid shader bytecode")
	ErrUnknown            = errors.New("unknown")
)

// IsFatal reports whether err leaves the GPU in a state the frame loop must not
// continue from. Swapchain staleness is the only recoverable device condition.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrSwapchainOutOfDate) || errors.Is(err, ErrSwapchainBooting) {
		return false
	}
	return true
}
