package mem

// Physical memory layout of the qemu virt board as used by the kernel:
//
//	00100000 -- test device (shutdown)
//	10000000 -- uart0
//	80000000 -- firmware
//	80200000 -- kernel image: text, data, heap (in bss)
//	kernelEnd -- first frame managed by the frame allocator
//	MemoryEnd -- end of RAM used by the kernel
const (
	// KernelBase is the physical address the firmware jumps to.
	KernelBase = uintptr(0x80200000)

	// MemoryEnd is the end of usable physical memory.
	MemoryEnd = uintptr(0x80800000)

	// KernelHeapSize is the size of the heap extent reserved in the kernel
	// image bss.
	KernelHeapSize = 3 * Mb
)
