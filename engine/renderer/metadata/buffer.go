package metadata

import (
	"github.com/google/uuid"

	"github.com/spaghettifunk/ember/engine/renderer/driver"
)

/** @brief How an allocation will be accessed, used to pick a memory type. */
type MemoryUsage int

const (
	/** @brief Device local, never touched by the CPU. */
	MemoryUsageGPUOnly MemoryUsage = iota
	/** @brief Host visible and coherent, written by the CPU every frame. */
	MemoryUsageCPUToGPU
	/** @brief Host visible and coherent, used for staging. */
	MemoryUsageCPUOnly
	/** @brief Host visible and coherent, preferably cached, read back by the CPU. */
	MemoryUsageGPUToCPU
)

func (u MemoryUsage) String() string {
	switch u {
	case MemoryUsageGPUOnly:
		return "gpu-only"
	case MemoryUsageCPUToGPU:
		return "cpu-to-gpu"
	case MemoryUsageCPUOnly:
		return "cpu-only"
	case MemoryUsageGPUToCPU:
		return "gpu-to-cpu"
	}
	return "unknown"
}

/**
 * @brief A buffer together with the memory backing it. Owned by whoever
 * created it; destroyed through the deletion queue or after a queue wait.
 */
type AllocatedBuffer struct {
	/** @brief Allocation id, used by the leak report. */
	ID     uuid.UUID
	Buffer driver.Handle
	Memory driver.Handle
	/** @brief The requested size in bytes. */
	Size  uint64
	Usage MemoryUsage
	/** @brief Persistent mapping for host visible buffers, nil otherwise. */
	Mapped []byte
}

/** @brief An image together with its memory and default view. */
type AllocatedImage struct {
	ID     uuid.UUID
	Image  driver.Handle
	Memory driver.Handle
	View   driver.Handle
	Width  uint32
	Height uint32
	Format driver.Format
}
