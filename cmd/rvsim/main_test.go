package main

import (
	"bytes"
	"rvos/kernel/mem"
	"rvos/kernel/mem/pmm"
	"strings"
	"testing"
)

func TestNewBootInfo(t *testing.T) {
	info, err := newBootInfo(config{kernelSize: 0x400123, memoryEnd: mem.MemoryEnd, selfTestFrames: 3})
	if err != nil {
		t.Fatal(err)
	}

	if exp := pmm.PhysAddr(0x80300000); info.HeapStart != exp {
		t.Errorf("expected heap to start at 0x%x; got 0x%x", exp, info.HeapStart)
	}

	if exp := int(mem.KernelHeapSize); len(info.Heap) != exp {
		t.Errorf("expected a %d byte heap extent; got %d", exp, len(info.Heap))
	}

	if exp := uintptr(0x80600123); info.KernelEnd != exp {
		t.Errorf("expected kernel end 0x%x; got 0x%x", exp, info.KernelEnd)
	}

	// The heap extent and the frames must alias the same simulated RAM.
	info.Heap[0] = 0x5a
	if got := info.Frames.FrameBytes(pmm.Frame(0x80300))[0]; got != 0x5a {
		t.Fatal("expected the heap extent to be backed by simulated RAM")
	}
}

func TestNewBootInfoErrors(t *testing.T) {
	specs := []struct {
		cfg    config
		expErr string
	}{
		{config{kernelSize: 0x100000, memoryEnd: mem.MemoryEnd}, "too small to hold the heap"},
		{config{kernelSize: 0x400000, memoryEnd: 0x80600000}, "must be above the kernel image end"},
		{config{kernelSize: 0x400000, memoryEnd: mem.MemoryEnd, selfTestFrames: -1}, "invalid self test frame count"},
	}

	for specIndex, spec := range specs {
		if _, err := newBootInfo(spec.cfg); err == nil || !strings.Contains(err.Error(), spec.expErr) {
			t.Errorf("[spec %d] expected error containing %q; got %v", specIndex, spec.expErr, err)
		}
	}
}

func TestBoot(t *testing.T) {
	info, err := newBootInfo(config{kernelSize: 0x400123, memoryEnd: mem.MemoryEnd, selfTestFrames: 5})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := boot(info, &buf); err != nil {
		t.Fatalf("unexpected error: %v; output:\n%s", err, buf.String())
	}

	// frames [0x80601, 0x80800)
	for _, exp := range []string{
		"pages: 511\n",
		"[frame_alloc] frames: 511 total, 0 allocated, 511 free\n",
		"[kmain] all self tests passed\n",
	} {
		if !strings.Contains(buf.String(), exp) {
			t.Errorf("expected output to contain %q; got:\n%s", exp, buf.String())
		}
	}
}
