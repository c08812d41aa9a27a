package allocator

import (
	"rvos/kernel"
	"rvos/kernel/kfmt"
	"rvos/kernel/mem/pmm"
	"rvos/kernel/sync"
)

var (
	// frameAllocator is the kernel-wide frame allocator. It is only
	// reachable through Init, AllocFrame, FrameStats and FrameGuard.Release.
	frameAllocator globalAllocator

	// newStrategyFn is mocked by tests to run the kernel-wide allocator
	// with every strategy regardless of build tags.
	newStrategyFn = newStrategy

	errAlreadyInitialized = &kernel.Error{Module: moduleName, Message: "frame allocator already initialized"}
	errNotInitialized     = &kernel.Error{Module: moduleName, Message: "frame allocator used before initialization"}
	errReentrantAccess    = &kernel.Error{Module: moduleName, Message: "re-entrant access to the frame allocator"}
)

// frameRange is implemented by frame memories that only back a contiguous
// subset of the physical frames, such as pmm.Arena.
type frameRange interface {
	Contains(pmm.Frame) bool
}

// globalAllocator wraps the active strategy in an exclusive-access cell.
// Every operation takes the cell for its whole duration. On a single hart
// with interrupts off during allocator calls the cell can only be found
// taken if an operation was re-entered, which is reported as a kernel bug
// instead of spinning forever.
type globalAllocator struct {
	lock        sync.Spinlock
	initialized bool
	strategy    FrameAllocator
	mem         pmm.FrameMemory
}

func (g *globalAllocator) exclusiveAccess() {
	if !g.lock.TryToAcquire() {
		panic(errReentrantAccess)
	}
}

func (g *globalAllocator) mustBeInitialized() {
	if !g.initialized {
		panic(errNotInitialized)
	}
}

// Init sets up the kernel frame allocator to manage all frames between the
// end of the kernel image and the end of physical memory. kernelEnd is rounded
// up and memoryEnd is rounded down to a frame boundary. Frame contents are
// accessed through fm.
//
// Init must be called once during boot, before any call to AllocFrame.
func Init(kernelEnd, memoryEnd uintptr, fm pmm.FrameMemory) *kernel.Error {
	frameAllocator.exclusiveAccess()
	defer frameAllocator.lock.Release()

	if frameAllocator.initialized {
		return errAlreadyInitialized
	}

	low, high := pmm.PhysAddr(kernelEnd).Ceil(), pmm.PhysAddr(memoryEnd).Floor()
	if !low.Valid() || low >= high {
		return &kernel.Error{
			Module:  moduleName,
			Message: kfmt.Sprintf("no frames between kernel end 0x%x and memory end 0x%x", kernelEnd, memoryEnd),
		}
	}

	// Every managed frame must be backed by fm.
	if fr, ok := fm.(frameRange); ok && (!fr.Contains(low) || !fr.Contains(high-1)) {
		return &kernel.Error{
			Module:  moduleName,
			Message: kfmt.Sprintf("frame memory does not back frames [0x%x, 0x%x)", uintptr(low), uintptr(high)),
		}
	}

	strategy := newStrategyFn(fm)
	strategy.Init(low, high)

	frameAllocator.strategy = strategy
	frameAllocator.mem = fm
	frameAllocator.initialized = true

	kfmt.Printf("[%s] strategy: %s, frames: [0x%x - 0x%x), pages: %d\n",
		moduleName, ActiveStrategy, uintptr(low), uintptr(high), uint64(high-low),
	)
	return nil
}

// AllocFrame reserves a zeroed frame and returns a guard that owns it. It
// returns ErrOutOfMemory if no frames are left.
func AllocFrame() (*FrameGuard, *kernel.Error) {
	frame, err := allocFrame()
	if err != nil {
		return nil, err
	}

	return newFrameGuard(frameAllocator.mem, frame), nil
}

func allocFrame() (pmm.Frame, *kernel.Error) {
	frameAllocator.exclusiveAccess()
	defer frameAllocator.lock.Release()

	frameAllocator.mustBeInitialized()
	return frameAllocator.strategy.AllocFrame()
}

// freeFrame returns frame to the active strategy. It is only invoked by
// FrameGuard.Release so a frame can only be freed by its owner.
func freeFrame(frame pmm.Frame) {
	frameAllocator.exclusiveAccess()
	defer frameAllocator.lock.Release()

	frameAllocator.mustBeInitialized()
	frameAllocator.strategy.FreeFrame(frame)
}

// FrameStats returns the usage counters of the kernel frame allocator.
func FrameStats() Stats {
	frameAllocator.exclusiveAccess()
	defer frameAllocator.lock.Release()

	frameAllocator.mustBeInitialized()
	return frameAllocator.strategy.Stats()
}

// PrintStats writes the usage counters of the kernel frame allocator to the
// console.
func PrintStats() {
	stats := FrameStats()
	kfmt.Printf("[%s] frames: %d total, %d allocated, %d free\n",
		moduleName, stats.Total(), stats.Allocated, stats.Free,
	)
}
