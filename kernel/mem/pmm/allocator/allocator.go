// Package allocator implements the physical frame allocators and the
// kernel-wide frame allocator instance.
package allocator

import (
	"rvos/kernel"
	"rvos/kernel/kfmt"
	"rvos/kernel/mem/pmm"
)

const moduleName = "frame_alloc"

var (
	// ErrOutOfMemory is returned when no free frames are left. Running out
	// of frames is not fatal; the caller decides how to react.
	ErrOutOfMemory = &kernel.Error{Module: moduleName, Message: "out of memory"}
)

// FrameAllocator is implemented by all physical frame allocation strategies.
//
// Init must be called exactly once, before any other method, and hands the
// allocator the frames in [low, high). Violated preconditions, double frees
// and corrupted bookkeeping are kernel bugs and cause a panic with a
// *kernel.Error value; only exhaustion is reported as an error.
type FrameAllocator interface {
	// Init sets up the allocator to manage the frames in [low, high).
	Init(low, high pmm.Frame)

	// AllocFrame reserves a frame. It returns ErrOutOfMemory if all
	// frames are in use.
	AllocFrame() (pmm.Frame, *kernel.Error)

	// FreeFrame returns a frame obtained via AllocFrame to the allocator.
	FreeFrame(pmm.Frame)

	// Stats returns a snapshot of the allocator's usage counters.
	Stats() Stats
}

// Stats describes the state of a frame allocator.
type Stats struct {
	// Low and High delimit the managed frame range [Low, High).
	Low, High pmm.Frame

	// Free is the number of frames that can still be allocated.
	Free uint64

	// Allocated is the number of frames currently handed out.
	Allocated uint64
}

// Total returns the number of managed frames.
func (s Stats) Total() uint64 {
	return uint64(s.High - s.Low)
}

// fatalf panics with a *kernel.Error describing a violated allocator
// invariant.
func fatalf(format string, args ...interface{}) {
	panic(&kernel.Error{Module: moduleName, Message: kfmt.Sprintf(format, args...)})
}

// checkRange panics unless [low, high) is a non-empty range that does not
// include the reserved frame 0.
func checkRange(low, high pmm.Frame) {
	if !low.Valid() {
		fatalf("invalid starting frame 0x%x", uintptr(low))
	}

	if low >= high {
		fatalf("invalid frame range [0x%x, 0x%x)", uintptr(low), uintptr(high))
	}
}
