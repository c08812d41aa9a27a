package main

import (
	"rvos/kernel/kfmt"
	"rvos/kernel/kmain"
	"rvos/kernel/mem"
	"rvos/kernel/mem/pmm"
	"rvos/kernel/sbi"
	"unsafe"
)

// The following variables are populated by the rt0 code from the linker
// script symbols before it jumps to main.
var (
	kernelEnd uintptr
	heapStart uintptr
)

// main is the only Go symbol that the rt0 code calls. It attaches the console
// and hands the machine over to kmain.Kmain. Passing the rt0-populated globals
// keeps the compiler from treating the kernel code as dead and discarding it.
//
// main is not expected to return; Kmain shuts the machine down when done.
func main() {
	console := sbi.NewConsole()
	console.Init()
	kfmt.SetOutputSink(console)

	kmain.Kmain(&kmain.BootInfo{
		KernelEnd:      kernelEnd,
		MemoryEnd:      mem.MemoryEnd,
		HeapStart:      pmm.PhysAddr(heapStart),
		Heap:           unsafe.Slice((*byte)(unsafe.Pointer(heapStart)), int(mem.KernelHeapSize)),
		Frames:         pmm.IdentityMap{},
		SelfTestFrames: 5,
	})
}
