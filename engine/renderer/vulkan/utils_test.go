package vulkan

import (
	"testing"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/ember/engine/core"
)

func TestSwapchainResult(t *testing.T) {
	tests := []struct {
		result         vk.Result
		wantSuboptimal bool
		wantErr        error
	}{
		{vk.Success, false, nil},
		{vk.Suboptimal, true, nil},
		{vk.ErrorOutOfDate, false, core.ErrSwapchainOutOfDate},
		{vk.Timeout, false, core.ErrTimeout},
		{vk.ErrorDeviceLost, false, core.ErrDeviceLost},
		{vk.ErrorSurfaceLost, false, core.ErrDeviceLost},
	}
	for _, tt := range tests {
		suboptimal, err := swapchainResult(tt.result, "vkQueuePresentKHR")
		if suboptimal != tt.wantSuboptimal {
			t.Errorf("swapchainResult(%d) suboptimal = %v, want %v", tt.result, suboptimal, tt.wantSuboptimal)
		}
		if tt.wantErr == nil && err != nil {
			t.Errorf("swapchainResult(%d) = %v, want nil", tt.result, err)
		}
		if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
			t.Errorf("swapchainResult(%d) = %v, want %v", tt.result, err, tt.wantErr)
		}
	}
}
