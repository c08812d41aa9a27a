// Package heap manages the kernel heap extent that the boot code reserves in
// the kernel image.
package heap

import (
	"rvos/kernel"
	"rvos/kernel/kfmt"
	"rvos/kernel/mem"
	"rvos/kernel/mem/pmm"
)

const moduleName = "heap"

var (
	// kernelHeap is the buddy allocator that manages the heap extent.
	kernelHeap struct {
		buddyAllocator

		start  pmm.PhysAddr
		extent []byte
	}

	errHeapOutOfMemory        = &kernel.Error{Module: moduleName, Message: "out of memory"}
	errHeapNotInitialized     = &kernel.Error{Module: moduleName, Message: "heap used before initialization"}
	errHeapAlreadyInitialized = &kernel.Error{Module: moduleName, Message: "heap already initialized"}
	errBitmapCorruption       = &kernel.Error{Module: moduleName, Message: "free block counter out of sync with bitmap"}
)

// Init hands the heap extent to the heap allocator. extent holds the bytes of
// the physical range that starts at start; its length must be exactly
// mem.KernelHeapSize and start must be aligned to MinBlockSize.
func Init(start pmm.PhysAddr, extent []byte) *kernel.Error {
	if kernelHeap.extent != nil {
		return errHeapAlreadyInitialized
	}

	if size := mem.Size(len(extent)); size != mem.KernelHeapSize {
		return &kernel.Error{
			Module:  moduleName,
			Message: kfmt.Sprintf("kernel heap size mismatch: expected %d; got %d", uint64(mem.KernelHeapSize), uint64(size)),
		}
	}

	if uintptr(start)&uintptr(MinBlockSize-1) != 0 {
		return &kernel.Error{
			Module:  moduleName,
			Message: kfmt.Sprintf("heap start 0x%x is not aligned to %d bytes", uintptr(start), uint64(MinBlockSize)),
		}
	}

	kernelHeap.start, kernelHeap.extent = start, extent
	kernelHeap.init(uint64(len(extent)))

	kfmt.Printf("[%s] extent: [0x%x - 0x%x), %d bytes\n",
		moduleName, uintptr(start), uintptr(start)+uintptr(len(extent)), len(extent),
	)
	return nil
}

func mustBeInitialized() {
	if kernelHeap.extent == nil {
		panic(errHeapNotInitialized)
	}
}

// Alloc reserves a block of at least size bytes and returns its physical
// address. The block is aligned to its own size rounded up to a power of two.
// Alloc returns an error if no block can hold size bytes.
func Alloc(size mem.Size) (pmm.PhysAddr, *kernel.Error) {
	mustBeInitialized()

	offset, ok := kernelHeap.alloc(size)
	if !ok {
		return 0, errHeapOutOfMemory
	}

	return kernelHeap.start + pmm.PhysAddr(offset), nil
}

// Free releases the block at addr. Freeing an address that was not returned
// by Alloc, or freeing it twice, panics.
func Free(addr pmm.PhysAddr) {
	mustBeInitialized()

	if !Contains(addr) || !kernelHeap.free(uint64(addr-kernelHeap.start)) {
		panic(&kernel.Error{
			Module:  moduleName,
			Message: kfmt.Sprintf("attempt to free unknown heap address 0x%x", uintptr(addr)),
		})
	}
}

// Bytes returns the size bytes at addr. The range must lie inside a block
// returned by Alloc.
func Bytes(addr pmm.PhysAddr, size mem.Size) []byte {
	mustBeInitialized()

	var blockSize mem.Size
	if Contains(addr) {
		blockSize = kernelHeap.blockSize(uint64(addr - kernelHeap.start))
	}

	if blockSize == 0 || size > blockSize {
		panic(&kernel.Error{
			Module:  moduleName,
			Message: kfmt.Sprintf("access to %d bytes at 0x%x exceeds allocated block", uint64(size), uintptr(addr)),
		})
	}

	offset := uintptr(addr - kernelHeap.start)
	return kernelHeap.extent[offset : offset+uintptr(size) : offset+uintptr(size)]
}

// Contains returns true if addr lies inside the heap extent.
func Contains(addr pmm.PhysAddr) bool {
	return addr >= kernelHeap.start && uintptr(addr-kernelHeap.start) < uintptr(len(kernelHeap.extent))
}

// FreeBytes returns the number of bytes in free heap blocks.
func FreeBytes() mem.Size {
	mustBeInitialized()
	return kernelHeap.freeBytes
}
