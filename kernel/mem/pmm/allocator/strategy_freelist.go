//go:build frame_freelist && !frame_bitmap

package allocator

import "rvos/kernel/mem/pmm"

// ActiveStrategy names the strategy used by the kernel frame allocator.
const ActiveStrategy = "freelist"

func newStrategy(fm pmm.FrameMemory) FrameAllocator {
	return NewFreeListAllocator(fm)
}
