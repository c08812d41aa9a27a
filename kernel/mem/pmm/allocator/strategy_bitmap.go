//go:build frame_bitmap

package allocator

import "rvos/kernel/mem/pmm"

// ActiveStrategy names the strategy used by the kernel frame allocator.
const ActiveStrategy = "bitmap"

func newStrategy(_ pmm.FrameMemory) FrameAllocator {
	return &BitmapAllocator{}
}
