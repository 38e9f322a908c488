package math

import "golang.org/x/exp/constraints"

// Clamp limits v to [lo, hi]. The swapchain uses it to fit the window into the
// surface's supported extents.
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	return min(max(v, lo), hi)
}

// AlignUp rounds v up to the next multiple of align, which must be a power of
// two. An align of zero leaves v unchanged.
func AlignUp[T constraints.Unsigned](v, align T) T {
	if align == 0 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}
