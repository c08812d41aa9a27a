// Package pmm contains the types used to address physical memory and to access
// the contents of physical frames.
package pmm

import "rvos/kernel/mem"

// Frame describes a physical page number (PPN).
type Frame uintptr

const (
	// InvalidFrame is the reserved page number 0. Frame allocators never
	// hand it out and use it to terminate their free lists.
	InvalidFrame = Frame(0)
)

// Valid returns true if this is a valid frame.
func (f Frame) Valid() bool {
	return f != InvalidFrame
}

// Address returns the physical address of the first byte of this frame.
func (f Frame) Address() PhysAddr {
	return PhysAddr(f << mem.PageShift)
}

// FrameFromAddress returns the Frame that contains the given physical
// address. Unaligned addresses are rounded down.
func FrameFromAddress(physAddr uintptr) Frame {
	return PhysAddr(physAddr).Floor()
}

// PhysAddr describes a physical memory address.
type PhysAddr uintptr

// PageOffset returns the offset of the address inside its frame.
func (a PhysAddr) PageOffset() uintptr {
	return uintptr(a) & uintptr(mem.PageSize-1)
}

// IsAligned returns true if the address lies on a frame boundary.
func (a PhysAddr) IsAligned() bool {
	return a.PageOffset() == 0
}

// Floor returns the frame that contains this address.
func (a PhysAddr) Floor() Frame {
	return Frame(uintptr(a) >> mem.PageShift)
}

// Ceil returns the first frame that starts at or after this address.
func (a PhysAddr) Ceil() Frame {
	if a.IsAligned() {
		return a.Floor()
	}
	return a.Floor() + 1
}
