//go:build !frame_freelist && !frame_bitmap

package allocator

import "rvos/kernel/mem/pmm"

// ActiveStrategy names the strategy used by the kernel frame allocator.
// Build with -tags frame_freelist or -tags frame_bitmap to select another.
const ActiveStrategy = "stack"

func newStrategy(_ pmm.FrameMemory) FrameAllocator {
	return &StackAllocator{}
}
