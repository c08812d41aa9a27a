package heap

import (
	"math/bits"
	"rvos/kernel/mem"
)

const (
	// minBlockShift is equal to log2(MinBlockSize).
	minBlockShift = 4

	// MinBlockSize is the size of the smallest block handed out by the
	// heap. All allocations are aligned to it.
	MinBlockSize = mem.Size(1 << minBlockShift)

	// maxOrders bounds the number of block orders; order k blocks are
	// MinBlockSize << k bytes long.
	maxOrders = 32
)

// buddyAllocator manages a byte extent using the binary buddy system. Block
// offsets are relative to the start of the extent.
type buddyAllocator struct {
	// size is the managed extent length rounded down to MinBlockSize.
	size uint64

	// orders is the number of block orders that fit in the extent.
	orders int

	// freeCount stores the number of free blocks for each order. It lets
	// alloc skip orders without scanning their bitmaps.
	freeCount [maxOrders]uint32

	// freeBitmap stores one bit per block for each order. A set bit marks
	// a free block. Bits are assigned MSB first.
	freeBitmap [maxOrders][]uint64

	// blockOrder stores order+1 for every allocated block, indexed by the
	// block offset in MinBlockSize units. Zero marks offsets that are not
	// the start of an allocated block.
	blockOrder []uint8

	// freeBytes tracks the number of bytes in free blocks.
	freeBytes mem.Size
}

// init sets up the bitmaps for an extent of size bytes and carves the extent
// into the largest naturally aligned blocks that fit. A 3M extent yields a 2M
// block followed by a 1M block.
func (alloc *buddyAllocator) init(size uint64) {
	alloc.size = size &^ uint64(MinBlockSize-1)

	alloc.orders = 0
	for alloc.orders < maxOrders && uint64(MinBlockSize)<<alloc.orders <= alloc.size {
		alloc.orders++
	}

	for ord := 0; ord < maxOrders; ord++ {
		alloc.freeCount[ord] = 0
		alloc.freeBitmap[ord] = nil
		if ord < alloc.orders {
			blocks := mem.Size(alloc.size).AlignUp(MinBlockSize<<ord) >> (minBlockShift + ord)
			alloc.freeBitmap[ord] = make([]uint64, blocks.AlignUp(64)>>6)
		}
	}
	alloc.blockOrder = make([]uint8, alloc.size>>minBlockShift)

	var offset uint64
	for ord := alloc.orders - 1; ord >= 0; ord-- {
		if blockSize := uint64(MinBlockSize) << ord; alloc.size-offset >= blockSize {
			alloc.markFree(offset, ord)
			offset += blockSize
		}
	}
	alloc.freeBytes = mem.Size(offset)
}

// orderFor returns the smallest block order that can hold size bytes.
func orderFor(size mem.Size) int {
	ord := 0
	for ord < maxOrders && MinBlockSize<<ord < size {
		ord++
	}
	return ord
}

// alloc reserves a block that can hold size bytes and returns its offset. If
// no order-sized block is free, the smallest larger free block is split and
// the unused halves are put back. The second return value is false if no
// block fits.
func (alloc *buddyAllocator) alloc(size mem.Size) (uint64, bool) {
	want := orderFor(size)
	if want >= alloc.orders {
		return 0, false
	}

	ord := want
	for ord < alloc.orders && alloc.freeCount[ord] == 0 {
		ord++
	}
	if ord == alloc.orders {
		return 0, false
	}

	offset := alloc.firstFree(ord)
	alloc.markUsed(offset, ord)
	for ord > want {
		ord--
		alloc.markFree(offset+(uint64(MinBlockSize)<<ord), ord)
	}

	alloc.blockOrder[offset>>minBlockShift] = uint8(want) + 1
	alloc.freeBytes -= MinBlockSize << want
	return offset, true
}

// free releases the block starting at offset and merges it with its buddy
// for as long as the buddy is free. It returns false if offset is not the
// start of an allocated block.
func (alloc *buddyAllocator) free(offset uint64) bool {
	if offset&uint64(MinBlockSize-1) != 0 || offset >= alloc.size || alloc.blockOrder[offset>>minBlockShift] == 0 {
		return false
	}

	ord := int(alloc.blockOrder[offset>>minBlockShift] - 1)
	alloc.blockOrder[offset>>minBlockShift] = 0
	alloc.freeBytes += MinBlockSize << ord

	for ord < alloc.orders-1 {
		buddy := offset ^ (uint64(MinBlockSize) << ord)
		if !alloc.isFree(buddy, ord) {
			break
		}

		alloc.markUsed(buddy, ord)
		if buddy < offset {
			offset = buddy
		}
		ord++
	}

	alloc.markFree(offset, ord)
	return true
}

// blockSize returns the size of the allocated block starting at offset or 0
// if there is no such block.
func (alloc *buddyAllocator) blockSize(offset uint64) mem.Size {
	if offset&uint64(MinBlockSize-1) != 0 || offset >= alloc.size {
		return 0
	}

	if ord := alloc.blockOrder[offset>>minBlockShift]; ord != 0 {
		return MinBlockSize << (ord - 1)
	}
	return 0
}

// firstFree returns the offset of the lowest free block of order ord. The
// caller must check freeCount first.
func (alloc *buddyAllocator) firstFree(ord int) uint64 {
	for blockIndex, block := range alloc.freeBitmap[ord] {
		if block == 0 {
			continue
		}

		index := uint64(blockIndex)<<6 + uint64(bits.LeadingZeros64(block))
		return index << (minBlockShift + ord)
	}

	panic(errBitmapCorruption)
}

// bitFor returns the bitmap block index and bit mask that track the order
// ord block at offset. Offsets past the extent map to padding bits that are
// never set.
func bitFor(offset uint64, ord int) (int, uint64) {
	index := offset >> (minBlockShift + ord)
	return int(index >> 6), uint64(1) << (63 - (index & 63))
}

func (alloc *buddyAllocator) isFree(offset uint64, ord int) bool {
	block, mask := bitFor(offset, ord)
	return block < len(alloc.freeBitmap[ord]) && alloc.freeBitmap[ord][block]&mask != 0
}

func (alloc *buddyAllocator) markFree(offset uint64, ord int) {
	block, mask := bitFor(offset, ord)
	alloc.freeBitmap[ord][block] |= mask
	alloc.freeCount[ord]++
}

func (alloc *buddyAllocator) markUsed(offset uint64, ord int) {
	block, mask := bitFor(offset, ord)
	alloc.freeBitmap[ord][block] &^= mask
	alloc.freeCount[ord]--
}
