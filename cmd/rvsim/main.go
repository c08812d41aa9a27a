// Command rvsim boots the kernel memory subsystems on a simulated qemu virt
// machine whose RAM is backed by a host byte arena.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"rvos/kernel/kfmt"
	"rvos/kernel/kmain"
	"rvos/kernel/mem"
	"rvos/kernel/mem/pmm"
	"rvos/kernel/sbi"
)

// heapOffset is the offset of the heap extent from the start of the kernel
// image. Text and data are placed below it.
const heapOffset = uintptr(mem.Mb)

var (
	errNoShutdown = errors.New("kernel returned without requesting a shutdown")
	errBootFailed = errors.New("kernel reported a failed boot")
)

// config describes the simulated machine.
type config struct {
	// kernelSize is the number of bytes occupied by the kernel image,
	// including the heap extent in its bss.
	kernelSize uintptr

	// memoryEnd is the end of simulated RAM.
	memoryEnd uintptr

	selfTestFrames int
}

func exit(err error) {
	fmt.Fprintf(os.Stderr, "[rvsim] error: %s\n", err.Error())
	os.Exit(1)
}

// newBootInfo allocates the RAM of the simulated machine and lays out the
// kernel image inside it.
func newBootInfo(cfg config) (*kmain.BootInfo, error) {
	if minSize := heapOffset + uintptr(mem.KernelHeapSize); cfg.kernelSize < minSize {
		return nil, fmt.Errorf("kernel size 0x%x too small to hold the heap; need at least 0x%x", cfg.kernelSize, minSize)
	}

	if cfg.memoryEnd <= mem.KernelBase+cfg.kernelSize {
		return nil, fmt.Errorf("memory end 0x%x must be above the kernel image end 0x%x", cfg.memoryEnd, mem.KernelBase+cfg.kernelSize)
	}

	if cfg.selfTestFrames < 0 {
		return nil, fmt.Errorf("invalid self test frame count %d", cfg.selfTestFrames)
	}

	ram := pmm.NewArena(pmm.PhysAddr(mem.KernelBase), pmm.PhysAddr(cfg.memoryEnd))
	heapStart := pmm.PhysAddr(mem.KernelBase + heapOffset)

	return &kmain.BootInfo{
		KernelEnd:      mem.KernelBase + cfg.kernelSize,
		MemoryEnd:      cfg.memoryEnd,
		HeapStart:      heapStart,
		Heap:           ram.Bytes(heapStart, mem.KernelHeapSize),
		Frames:         ram,
		SelfTestFrames: cfg.selfTestFrames,
	}, nil
}

// boot runs the kernel on the machine described by info with the console
// attached to out. The shutdown request of the kernel becomes the result.
func boot(info *kmain.BootInfo, out io.Writer) error {
	var halted, passed bool

	kfmt.SetOutputSink(out)
	sbi.SetShutdownHandler(func(success bool) {
		halted, passed = true, success
	})
	defer sbi.SetShutdownHandler(nil)

	kmain.Kmain(info)

	switch {
	case !halted:
		return errNoShutdown
	case !passed:
		return errBootFailed
	}
	return nil
}

func runTool() error {
	kernelSize := flag.Uint64("kernel-size", 0x400123, "the size of the kernel image in bytes, including the heap")
	memoryEnd := flag.Uint64("memory-end", uint64(mem.MemoryEnd), "the end address of simulated RAM")
	selfTestFrames := flag.Int("selftest-frames", 5, "the number of frames exercised by the frame allocator self test")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: rvsim [options]\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 0 {
		flag.Usage()
		return errors.New("unexpected arguments")
	}

	info, err := newBootInfo(config{
		kernelSize:     uintptr(*kernelSize),
		memoryEnd:      uintptr(*memoryEnd),
		selfTestFrames: *selfTestFrames,
	})
	if err != nil {
		return err
	}

	return boot(info, os.Stdout)
}

func main() {
	if err := runTool(); err != nil {
		exit(err)
	}
}
