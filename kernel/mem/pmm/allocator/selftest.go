package allocator

import (
	"io"
	"rvos/kernel"
	"rvos/kernel/kfmt"
	"rvos/kernel/mem"
	"rvos/kernel/mem/pmm"
)

// selfTestPattern is written to every frame during the first pass so the
// second pass can verify that reused frames were cleared.
const selfTestPattern = 0xa5

// SelfTest exercises the kernel frame allocator: it allocates count frames,
// checks they are distinct and zeroed, dirties and releases them, then
// allocates count frames again and checks that the released frames were
// reused and cleared. Progress is written to w. All frames are released
// before SelfTest returns.
func SelfTest(w io.Writer, count int) *kernel.Error {
	var guards []*FrameGuard
	defer func() { ReleaseAll(guards) }()

	firstPass := make(map[pmm.Frame]struct{}, count)
	for i := 0; i < count; i++ {
		guard, err := AllocFrame()
		if err != nil {
			return err
		}
		guards = append(guards, guard)

		if err := checkFreshFrame(guard, firstPass); err != nil {
			return err
		}
		firstPass[guard.Frame()] = struct{}{}

		kfmt.Fprintf(w, "allocated frame 0x%x\n", uintptr(guard.Frame()))
		mem.Memset(guard.Bytes(), selfTestPattern)
	}

	ReleaseAll(guards)
	guards = guards[:0]

	var (
		secondPass = make(map[pmm.Frame]struct{}, count)
		reused     int
	)
	for i := 0; i < count; i++ {
		guard, err := AllocFrame()
		if err != nil {
			return err
		}
		guards = append(guards, guard)

		if err := checkFreshFrame(guard, secondPass); err != nil {
			return err
		}
		secondPass[guard.Frame()] = struct{}{}

		if _, ok := firstPass[guard.Frame()]; ok {
			reused++
		}
		kfmt.Fprintf(w, "reallocated frame 0x%x\n", uintptr(guard.Frame()))
	}

	if reused != count {
		return &kernel.Error{
			Module:  moduleName,
			Message: kfmt.Sprintf("self test: expected %d released frames to be reused; got %d", count, reused),
		}
	}

	kfmt.Fprintf(w, "frame allocator self test passed\n")
	return nil
}

// checkFreshFrame verifies that a newly allocated frame is not already owned
// by another live guard and that its contents are zeroed.
func checkFreshFrame(guard *FrameGuard, live map[pmm.Frame]struct{}) *kernel.Error {
	if _, dup := live[guard.Frame()]; dup {
		return &kernel.Error{
			Module:  moduleName,
			Message: kfmt.Sprintf("self test: frame 0x%x handed out twice", uintptr(guard.Frame())),
		}
	}

	if !mem.IsZero(guard.Bytes()) {
		return &kernel.Error{
			Module:  moduleName,
			Message: kfmt.Sprintf("self test: frame 0x%x not cleared", uintptr(guard.Frame())),
		}
	}

	return nil
}
