package allocator

import (
	"rvos/kernel"
	"rvos/kernel/mem/pmm"
)

// StackAllocator hands out frames from a cursor that moves from the low end
// of the managed range towards its high end. Freed frames are pushed onto a
// recycle stack and are handed out again before the cursor advances.
//
// Both operations are O(1). The recycle stack only grows up to the number of
// frames that are freed at the same time, and the order in which recycled
// frames are returned is not part of the contract.
type StackAllocator struct {
	// low is the first managed frame.
	low pmm.Frame

	// current is the next frame that has never been handed out.
	current pmm.Frame

	// end is the first frame past the managed range.
	end pmm.Frame

	// recycled holds freed frames pending reuse; recycledSet mirrors its
	// contents for double free detection.
	recycled    []pmm.Frame
	recycledSet map[pmm.Frame]struct{}
}

// Init sets up the allocator to manage the frames in [low, high). An empty
// range is accepted and yields an allocator that is always out of memory.
func (alloc *StackAllocator) Init(low, high pmm.Frame) {
	if !low.Valid() {
		fatalf("invalid starting frame 0x%x", uintptr(low))
	}

	if low > high {
		fatalf("invalid frame range [0x%x, 0x%x)", uintptr(low), uintptr(high))
	}

	alloc.low, alloc.current, alloc.end = low, low, high
	alloc.recycled = alloc.recycled[:0]
	alloc.recycledSet = make(map[pmm.Frame]struct{})
}

// AllocFrame returns a recycled frame if one is available or else the frame
// at the cursor.
func (alloc *StackAllocator) AllocFrame() (pmm.Frame, *kernel.Error) {
	if last := len(alloc.recycled) - 1; last >= 0 {
		frame := alloc.recycled[last]
		alloc.recycled = alloc.recycled[:last]
		delete(alloc.recycledSet, frame)
		return frame, nil
	}

	if alloc.current == alloc.end {
		return pmm.InvalidFrame, ErrOutOfMemory
	}

	frame := alloc.current
	alloc.current++
	return frame, nil
}

// FreeFrame pushes frame onto the recycle stack. Freeing a frame that was
// never handed out or that has already been freed panics.
func (alloc *StackAllocator) FreeFrame(frame pmm.Frame) {
	if frame < alloc.low || frame >= alloc.current {
		fatalf("frame 0x%x has not been allocated", uintptr(frame))
	}

	if _, freed := alloc.recycledSet[frame]; freed {
		fatalf("double free detected for frame 0x%x", uintptr(frame))
	}

	alloc.recycled = append(alloc.recycled, frame)
	alloc.recycledSet[frame] = struct{}{}
}

// Stats implements FrameAllocator.
func (alloc *StackAllocator) Stats() Stats {
	recycled := uint64(len(alloc.recycled))
	return Stats{
		Low:       alloc.low,
		High:      alloc.end,
		Free:      uint64(alloc.end-alloc.current) + recycled,
		Allocated: uint64(alloc.current-alloc.low) - recycled,
	}
}
