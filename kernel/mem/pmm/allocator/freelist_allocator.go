package allocator

import (
	"encoding/binary"
	"rvos/kernel"
	"rvos/kernel/mem"
	"rvos/kernel/mem/pmm"
)

// FreeFrameMagic tags the header of every frame on the free list.
const FreeFrameMagic = uint64(0xdeadbeef)

// pageHeaderSize is the number of bytes at the start of a free frame that
// hold its pageHeader: two little-endian 64-bit words.
const pageHeaderSize = 16

// pageHeader is the bookkeeping record stored inside each free frame.
type pageHeader struct {
	// next is the following frame on the free list; InvalidFrame ends it.
	next pmm.Frame

	// magic equals FreeFrameMagic while the frame is free.
	magic uint64
}

func readPageHeader(page []byte) pageHeader {
	return pageHeader{
		next:  pmm.Frame(binary.LittleEndian.Uint64(page[0:8])),
		magic: binary.LittleEndian.Uint64(page[8:pageHeaderSize]),
	}
}

func (h pageHeader) writeTo(page []byte) {
	binary.LittleEndian.PutUint64(page[0:8], uint64(h.next))
	binary.LittleEndian.PutUint64(page[8:pageHeaderSize], h.magic)
}

// FreeListAllocator keeps its free list inside the free frames themselves:
// the first bytes of every free frame hold a pageHeader pointing to the next
// free frame. Apart from the list head it needs no metadata, at the cost of
// touching every managed frame during Init.
//
// Frames are handed out in LIFO order. Right after Init the list is sorted so
// allocations start at the low end of the range.
type FreeListAllocator struct {
	mem pmm.FrameMemory

	// low and high delimit the managed range [low, high).
	low, high pmm.Frame

	// head is the first frame on the free list.
	head pmm.Frame

	freeCount uint64
}

// NewFreeListAllocator returns an allocator that accesses frame contents
// through fm.
func NewFreeListAllocator(fm pmm.FrameMemory) *FreeListAllocator {
	return &FreeListAllocator{mem: fm}
}

// Init threads every frame in [low, high) onto the free list, walking the
// range from its high end down so that the list starts at low.
func (alloc *FreeListAllocator) Init(low, high pmm.Frame) {
	checkRange(low, high)

	alloc.low, alloc.high = low, high
	alloc.head = pmm.InvalidFrame
	for frame := high; frame > low; {
		frame--
		pageHeader{next: alloc.head, magic: FreeFrameMagic}.writeTo(alloc.mem.FrameBytes(frame))
		alloc.head = frame
	}
	alloc.freeCount = uint64(high - low)
}

// AllocFrame pops the head of the free list and clears it. A head whose
// header does not carry FreeFrameMagic has been overwritten while on the
// free list and causes a panic.
func (alloc *FreeListAllocator) AllocFrame() (pmm.Frame, *kernel.Error) {
	if !alloc.head.Valid() {
		return pmm.InvalidFrame, ErrOutOfMemory
	}

	frame := alloc.head
	page := alloc.mem.FrameBytes(frame)
	hdr := readPageHeader(page)
	if hdr.magic != FreeFrameMagic {
		fatalf("memory corruption detected while allocating frame 0x%x: expected free tag 0x%x; got 0x%x", uintptr(frame), FreeFrameMagic, hdr.magic)
	}

	if hdr.next.Valid() && !alloc.manages(hdr.next) {
		fatalf("memory corruption detected while allocating frame 0x%x: next free frame 0x%x outside [0x%x, 0x%x)", uintptr(frame), uintptr(hdr.next), uintptr(alloc.low), uintptr(alloc.high))
	}

	alloc.head = hdr.next
	alloc.freeCount--
	mem.Memset(page, 0)
	return frame, nil
}

// FreeFrame pushes frame onto the free list. Freeing frame 0, a frame outside
// the managed range or a frame that already carries the free tag panics.
func (alloc *FreeListAllocator) FreeFrame(frame pmm.Frame) {
	if !frame.Valid() {
		fatalf("attempt to free invalid frame 0x%x", uintptr(frame))
	}

	if !alloc.manages(frame) {
		fatalf("frame 0x%x outside managed range [0x%x, 0x%x)", uintptr(frame), uintptr(alloc.low), uintptr(alloc.high))
	}

	page := alloc.mem.FrameBytes(frame)
	if readPageHeader(page).magic == FreeFrameMagic {
		fatalf("double free detected for frame 0x%x", uintptr(frame))
	}

	pageHeader{next: alloc.head, magic: FreeFrameMagic}.writeTo(page)
	alloc.head = frame
	alloc.freeCount++
}

// Stats implements FrameAllocator.
func (alloc *FreeListAllocator) Stats() Stats {
	return Stats{
		Low:       alloc.low,
		High:      alloc.high,
		Free:      alloc.freeCount,
		Allocated: uint64(alloc.high-alloc.low) - alloc.freeCount,
	}
}

func (alloc *FreeListAllocator) manages(frame pmm.Frame) bool {
	return frame >= alloc.low && frame < alloc.high
}
