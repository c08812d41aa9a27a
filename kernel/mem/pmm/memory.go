package pmm

import (
	"rvos/kernel"
	"rvos/kernel/kfmt"
	"rvos/kernel/mem"
	"unsafe"
)

// FrameMemory provides access to the contents of physical frames. Frame
// allocators that keep bookkeeping data inside free frames, as well as the
// code that clears newly allocated frames, go through a FrameMemory instead
// of dereferencing physical addresses themselves.
type FrameMemory interface {
	// FrameBytes returns the mem.PageSize bytes backing frame f.
	FrameBytes(f Frame) []byte
}

// Arena is a FrameMemory backed by a contiguous byte slice that emulates the
// physical frames [Base, Base+Len). The frame number is the arena index.
type Arena struct {
	base  Frame
	pages []byte
}

// NewArena allocates an arena that emulates physical memory between the
// page-aligned addresses start and end.
func NewArena(start, end PhysAddr) *Arena {
	base, limit := start.Ceil(), end.Floor()
	if limit < base {
		limit = base
	}

	return &Arena{
		base:  base,
		pages: make([]byte, uintptr(limit-base)<<mem.PageShift),
	}
}

// Base returns the first frame covered by the arena.
func (a *Arena) Base() Frame {
	return a.base
}

// Len returns the number of frames covered by the arena.
func (a *Arena) Len() int {
	return len(a.pages) >> mem.PageShift
}

// Contains returns true if f is backed by the arena.
func (a *Arena) Contains(f Frame) bool {
	return f >= a.base && uintptr(f-a.base) < uintptr(a.Len())
}

// FrameBytes implements FrameMemory. Accessing a frame outside the arena is
// the hosted equivalent of a bus error and panics.
func (a *Arena) FrameBytes(f Frame) []byte {
	if !a.Contains(f) {
		panic(&kernel.Error{
			Module:  "pmm",
			Message: kfmt.Sprintf("access to frame 0x%x outside physical memory [0x%x, 0x%x)", uintptr(f), uintptr(a.base), uintptr(a.base)+uintptr(a.Len())),
		})
	}

	offset := uintptr(f-a.base) << mem.PageShift
	return a.pages[offset : offset+uintptr(mem.PageSize) : offset+uintptr(mem.PageSize)]
}

// Bytes returns the arena contents starting at physical address addr and
// spanning size bytes. It is used to hand the heap extent to the heap
// allocator.
func (a *Arena) Bytes(addr PhysAddr, size mem.Size) []byte {
	start := uintptr(addr) - uintptr(a.base.Address())
	if uintptr(addr) < uintptr(a.base.Address()) || start+uintptr(size) > uintptr(len(a.pages)) {
		panic(&kernel.Error{
			Module:  "pmm",
			Message: kfmt.Sprintf("access to region 0x%x (%d bytes) outside physical memory", uintptr(addr), uint64(size)),
		})
	}

	return a.pages[start : start+uintptr(size) : start+uintptr(size)]
}

// IdentityMap is a FrameMemory for code running on the bare machine with
// paging disabled, where every physical address is directly accessible.
type IdentityMap struct{}

// FrameBytes implements FrameMemory by overlaying a slice on top of the
// frame's physical address.
func (IdentityMap) FrameBytes(f Frame) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(f.Address()))), int(mem.PageSize))
}
