package allocator

import (
	"rvos/kernel"
	"rvos/kernel/mem"
	"rvos/kernel/mem/pmm"
)

var errUseAfterRelease = &kernel.Error{Module: moduleName, Message: "access to a released frame"}

// noCopy makes go vet's copylocks check flag FrameGuard values that are
// copied instead of passed by pointer.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// FrameGuard owns a single allocated frame. It is the only handle through
// which kernel code receives frames; the frame goes back to the allocator
// when the guard is released:
//
//	guard, err := allocator.AllocFrame()
//	if err != nil {
//		return err
//	}
//	defer guard.Release()
//
// Guards must be passed by pointer. Handing the pointer over transfers
// ownership; the previous owner must not release it.
type FrameGuard struct {
	_ noCopy

	frame    pmm.Frame
	mem      pmm.FrameMemory
	released bool
}

// newFrameGuard takes ownership of an allocated frame and clears its
// contents.
func newFrameGuard(fm pmm.FrameMemory, frame pmm.Frame) *FrameGuard {
	mem.Memset(fm.FrameBytes(frame), 0)
	return &FrameGuard{frame: frame, mem: fm}
}

// Frame returns the owned frame.
func (g *FrameGuard) Frame() pmm.Frame {
	return g.frame
}

// Address returns the physical address of the owned frame.
func (g *FrameGuard) Address() pmm.PhysAddr {
	return g.frame.Address()
}

// Bytes returns the contents of the owned frame. Calling Bytes after the
// guard has been released panics.
func (g *FrameGuard) Bytes() []byte {
	if g.released {
		panic(errUseAfterRelease)
	}
	return g.mem.FrameBytes(g.frame)
}

// Released returns true once the frame has been returned to the allocator.
func (g *FrameGuard) Released() bool {
	return g.released
}

// Release returns the owned frame to the kernel frame allocator. Only the
// first call has an effect, so Release can be deferred and also invoked
// explicitly on an early exit.
func (g *FrameGuard) Release() {
	if g.released {
		return
	}

	g.released = true
	freeFrame(g.frame)
}

// ReleaseAll releases every guard in guards. Nil entries are skipped.
func ReleaseAll(guards []*FrameGuard) {
	for _, g := range guards {
		if g != nil {
			g.Release()
		}
	}
}
