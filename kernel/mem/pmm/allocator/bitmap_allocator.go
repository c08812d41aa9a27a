package allocator

import (
	"math/bits"
	"rvos/kernel"
	"rvos/kernel/mem/pmm"
)

type markAs bool

const (
	markReserved markAs = false
	markFree     markAs = true
)

// BitmapAllocator implements a physical frame allocator that tracks frame
// reservations using a bitmap with one bit per managed frame. A set bit marks
// a reserved frame.
//
// Allocation performs a first-fit scan that skips fully reserved 64-frame
// blocks, so frames are always handed out from the lowest free address.
type BitmapAllocator struct {
	// startFrame is the first managed frame. Bit i of the bitmap tracks
	// frame (startFrame + i).
	startFrame pmm.Frame

	// endFrame is the first frame past the managed range.
	endFrame pmm.Frame

	// totalPages tracks the number of managed frames.
	totalPages uint64

	// reservedPages tracks the number of reserved frames.
	reservedPages uint64

	// freeBitmap tracks used/free frames. Bits are assigned MSB first.
	freeBitmap []uint64
}

// Init sets up the bitmap for the frames in [low, high). Padding bits in the
// last bitmap block are marked as reserved so they are never selected.
func (alloc *BitmapAllocator) Init(low, high pmm.Frame) {
	checkRange(low, high)

	alloc.startFrame, alloc.endFrame = low, high
	alloc.totalPages = uint64(high - low)
	alloc.reservedPages = 0
	alloc.freeBitmap = make([]uint64, (alloc.totalPages+63)>>6)

	if padBits := uint64(len(alloc.freeBitmap))<<6 - alloc.totalPages; padBits != 0 {
		alloc.freeBitmap[len(alloc.freeBitmap)-1] = (uint64(1) << padBits) - 1
	}
}

// markFrame updates the reservation flag for frame. Calls with a frame
// outside the managed range are ignored.
func (alloc *BitmapAllocator) markFrame(frame pmm.Frame, flag markAs) {
	if frame < alloc.startFrame || frame >= alloc.endFrame {
		return
	}

	block, mask := alloc.bitFor(frame)
	switch flag {
	case markFree:
		alloc.freeBitmap[block] &^= mask
		alloc.reservedPages--
	case markReserved:
		alloc.freeBitmap[block] |= mask
		alloc.reservedPages++
	}
}

// bitFor returns the bitmap block index and bit mask that track frame.
func (alloc *BitmapAllocator) bitFor(frame pmm.Frame) (int, uint64) {
	relFrame := uint64(frame - alloc.startFrame)
	return int(relFrame >> 6), uint64(1) << (63 - (relFrame & 63))
}

// AllocFrame reserves the lowest free frame.
func (alloc *BitmapAllocator) AllocFrame() (pmm.Frame, *kernel.Error) {
	if alloc.reservedPages == alloc.totalPages {
		return pmm.InvalidFrame, ErrOutOfMemory
	}

	for blockIndex, block := range alloc.freeBitmap {
		if block == ^uint64(0) {
			continue
		}

		frame := alloc.startFrame + pmm.Frame(blockIndex<<6+bits.LeadingZeros64(^block))
		alloc.markFrame(frame, markReserved)
		return frame, nil
	}

	// reservedPages claims there is a free frame but the bitmap disagrees
	fatalf("bitmap corruption detected: %d of %d frames reserved but no free bit found", alloc.reservedPages, alloc.totalPages)
	return pmm.InvalidFrame, ErrOutOfMemory
}

// FreeFrame releases a frame previously reserved via AllocFrame. Freeing a
// frame outside the managed range or a frame that is not reserved panics.
func (alloc *BitmapAllocator) FreeFrame(frame pmm.Frame) {
	if frame < alloc.startFrame || frame >= alloc.endFrame {
		fatalf("frame 0x%x outside managed range [0x%x, 0x%x)", uintptr(frame), uintptr(alloc.startFrame), uintptr(alloc.endFrame))
	}

	if block, mask := alloc.bitFor(frame); alloc.freeBitmap[block]&mask == 0 {
		fatalf("double free detected for frame 0x%x", uintptr(frame))
	}

	alloc.markFrame(frame, markFree)
}

// Stats implements FrameAllocator.
func (alloc *BitmapAllocator) Stats() Stats {
	return Stats{
		Low:       alloc.startFrame,
		High:      alloc.endFrame,
		Free:      alloc.totalPages - alloc.reservedPages,
		Allocated: alloc.reservedPages,
	}
}
