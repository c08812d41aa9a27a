// Package kmain contains the kernel boot sequence.
package kmain

import (
	"rvos/kernel"
	"rvos/kernel/kfmt"
	"rvos/kernel/mem/heap"
	"rvos/kernel/mem/pmm"
	"rvos/kernel/mem/pmm/allocator"
	"rvos/kernel/sbi"
)

var (
	// The following functions are mocked by tests.
	heapInitFn          = heap.Init
	heapSelfTestFn      = heap.SelfTest
	allocatorInitFn     = allocator.Init
	allocatorSelfTestFn = allocator.SelfTest
)

// BootInfo describes the machine that the boot entry hands over to Kmain.
type BootInfo struct {
	// KernelEnd is the first byte after the kernel image. Frames from the
	// next page boundary onwards are managed by the frame allocator.
	KernelEnd uintptr

	// MemoryEnd is the end of usable physical memory.
	MemoryEnd uintptr

	// HeapStart is the physical address of the heap extent and Heap holds
	// its bytes.
	HeapStart pmm.PhysAddr
	Heap      []byte

	// Frames provides access to the contents of physical frames.
	Frames pmm.FrameMemory

	// SelfTestFrames is the number of frames exercised by the frame
	// allocator self test.
	SelfTestFrames int
}

// Kmain brings up the kernel memory subsystems described by info, runs their
// self tests and shuts the machine down. Any panic raised along the way is
// reported through kfmt.Panic, which halts the machine.
//
//go:noinline
func Kmain(info *BootInfo) {
	defer func() {
		if r := recover(); r != nil {
			kfmt.Panic(r)
		}
	}()

	var err *kernel.Error
	if err = heapInitFn(info.HeapStart, info.Heap); err != nil {
		panic(err)
	} else if err = heapSelfTestFn(prefixed("[heap] ")); err != nil {
		panic(err)
	} else if err = allocatorInitFn(info.KernelEnd, info.MemoryEnd, info.Frames); err != nil {
		panic(err)
	} else if err = allocatorSelfTestFn(prefixed("[frame_alloc] "), info.SelfTestFrames); err != nil {
		panic(err)
	}

	allocator.PrintStats()
	kfmt.Printf("[kmain] all self tests passed\n")
	sbi.Shutdown(true)
}

// prefixed returns a writer that tags every line sent to the console with
// prefix.
func prefixed(prefix string) *kfmt.PrefixWriter {
	return &kfmt.PrefixWriter{Sink: kfmt.GetOutputSink(), Prefix: []byte(prefix)}
}
