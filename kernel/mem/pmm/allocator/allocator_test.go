package allocator

import (
	"math/rand"
	"rvos/kernel"
	"rvos/kernel/mem"
	"rvos/kernel/mem/pmm"
	"strings"
	"testing"
)

var testStrategies = []struct {
	name  string
	newFn func(pmm.FrameMemory) FrameAllocator
}{
	{"stack", func(_ pmm.FrameMemory) FrameAllocator { return &StackAllocator{} }},
	{"freelist", func(fm pmm.FrameMemory) FrameAllocator { return NewFreeListAllocator(fm) }},
	{"bitmap", func(_ pmm.FrameMemory) FrameAllocator { return &BitmapAllocator{} }},
}

func newTestArena(low, high pmm.Frame) *pmm.Arena {
	return pmm.NewArena(low.Address(), high.Address())
}

// expectPanic runs fn and fails the test unless it panics with a
// *kernel.Error whose message contains msg.
func expectPanic(t *testing.T, msg string, fn func()) {
	t.Helper()

	defer func() {
		t.Helper()
		err, ok := recover().(*kernel.Error)
		if !ok {
			t.Fatalf("expected a *kernel.Error panic containing %q", msg)
		}

		if !strings.Contains(err.Message, msg) {
			t.Fatalf("expected panic message to contain %q; got %q", msg, err.Message)
		}
	}()

	fn()
}

func TestStrategiesAllocateWholeRange(t *testing.T) {
	specs := []struct {
		low, high pmm.Frame
	}{
		{1, 2},
		{100, 105},
		{0x80400, 0x80400 + 130},
	}

	for _, strategy := range testStrategies {
		for specIndex, spec := range specs {
			alloc := strategy.newFn(newTestArena(spec.low, spec.high))
			alloc.Init(spec.low, spec.high)

			seen := make(map[pmm.Frame]bool)
			for i := pmm.Frame(0); i < spec.high-spec.low; i++ {
				frame, err := alloc.AllocFrame()
				if err != nil {
					t.Fatalf("[%s spec %d] unexpected error after %d allocations: %v", strategy.name, specIndex, i, err)
				}

				if frame < spec.low || frame >= spec.high {
					t.Fatalf("[%s spec %d] frame 0x%x outside [0x%x, 0x%x)", strategy.name, specIndex, frame, spec.low, spec.high)
				}

				if seen[frame] {
					t.Fatalf("[%s spec %d] frame 0x%x allocated twice", strategy.name, specIndex, frame)
				}
				seen[frame] = true
			}

			if _, err := alloc.AllocFrame(); err != ErrOutOfMemory {
				t.Errorf("[%s spec %d] expected ErrOutOfMemory; got %v", strategy.name, specIndex, err)
			}

			stats := alloc.Stats()
			if stats.Free != 0 || stats.Allocated != stats.Total() {
				t.Errorf("[%s spec %d] expected all frames to be allocated; got %+v", strategy.name, specIndex, stats)
			}
		}
	}
}

func TestStrategiesReuseFreedSubset(t *testing.T) {
	const low, high = pmm.Frame(100), pmm.Frame(110)

	for _, strategy := range testStrategies {
		alloc := strategy.newFn(newTestArena(low, high))
		alloc.Init(low, high)

		for i := low; i < high; i++ {
			if _, err := alloc.AllocFrame(); err != nil {
				t.Fatalf("[%s] unexpected error: %v", strategy.name, err)
			}
		}

		freed := map[pmm.Frame]bool{101: true, 104: true, 109: true}
		for frame := range freed {
			alloc.FreeFrame(frame)
		}

		reusable := len(freed)
		for i := 0; i < reusable; i++ {
			frame, err := alloc.AllocFrame()
			if err != nil {
				t.Fatalf("[%s] expected allocation %d to succeed; got %v", strategy.name, i, err)
			}

			if !freed[frame] {
				t.Fatalf("[%s] expected a freed frame to be reused; got 0x%x", strategy.name, frame)
			}
			delete(freed, frame)
		}

		if _, err := alloc.AllocFrame(); err != ErrOutOfMemory {
			t.Errorf("[%s] expected ErrOutOfMemory; got %v", strategy.name, err)
		}
	}
}

func TestStrategiesRandomInterleaving(t *testing.T) {
	const low, high = pmm.Frame(0x80400), pmm.Frame(0x80400 + 64)

	for _, strategy := range testStrategies {
		var (
			rng   = rand.New(rand.NewSource(42))
			alloc = strategy.newFn(newTestArena(low, high))
			live  = make(map[pmm.Frame]bool)
			owned []pmm.Frame
		)
		alloc.Init(low, high)

		for step := 0; step < 2000; step++ {
			if len(owned) == 0 || rng.Intn(3) != 0 {
				frame, err := alloc.AllocFrame()
				if err == ErrOutOfMemory {
					if len(owned) != int(high-low) {
						t.Fatalf("[%s step %d] out of memory with only %d live frames", strategy.name, step, len(owned))
					}
					continue
				}

				if live[frame] {
					t.Fatalf("[%s step %d] frame 0x%x handed out while still live", strategy.name, step, frame)
				}
				if frame < low || frame >= high {
					t.Fatalf("[%s step %d] frame 0x%x outside managed range", strategy.name, step, frame)
				}
				live[frame] = true
				owned = append(owned, frame)
				continue
			}

			victim := rng.Intn(len(owned))
			frame := owned[victim]
			owned[victim] = owned[len(owned)-1]
			owned = owned[:len(owned)-1]
			delete(live, frame)
			alloc.FreeFrame(frame)
		}

		if stats := alloc.Stats(); stats.Allocated != uint64(len(owned)) {
			t.Errorf("[%s] expected %d allocated frames; got %d", strategy.name, len(owned), stats.Allocated)
		}
	}
}

func TestStrategiesFreeErrors(t *testing.T) {
	const low, high = pmm.Frame(100), pmm.Frame(105)

	for _, strategy := range testStrategies {
		t.Run(strategy.name, func(t *testing.T) {
			newAlloc := func() FrameAllocator {
				alloc := strategy.newFn(newTestArena(low, high))
				alloc.Init(low, high)
				return alloc
			}

			t.Run("double free", func(t *testing.T) {
				alloc := newAlloc()
				frame, _ := alloc.AllocFrame()
				alloc.FreeFrame(frame)
				expectPanic(t, "double free", func() { alloc.FreeFrame(frame) })
			})

			t.Run("frame 0", func(t *testing.T) {
				alloc := newAlloc()
				alloc.AllocFrame()
				expectPanic(t, "0x0", func() { alloc.FreeFrame(pmm.InvalidFrame) })
			})

			t.Run("frame past range", func(t *testing.T) {
				alloc := newAlloc()
				for i := low; i < high; i++ {
					alloc.AllocFrame()
				}
				expectPanic(t, "0x69", func() { alloc.FreeFrame(high) })
			})

			t.Run("frame below range", func(t *testing.T) {
				alloc := newAlloc()
				alloc.AllocFrame()
				expectPanic(t, "0x63", func() { alloc.FreeFrame(low - 1) })
			})
		})
	}
}

func TestStrategiesInitErrors(t *testing.T) {
	specs := []struct {
		name      string
		low, high pmm.Frame
		expMsg    string
	}{
		{"frame 0", 0, 5, "invalid starting frame"},
		{"inverted range", 10, 5, "invalid frame range"},
	}

	for _, strategy := range testStrategies {
		for _, spec := range specs {
			t.Run(strategy.name+"/"+spec.name, func(t *testing.T) {
				alloc := strategy.newFn(newTestArena(1, 11))
				expectPanic(t, spec.expMsg, func() { alloc.Init(spec.low, spec.high) })
			})
		}
	}
}

func TestStrategiesStats(t *testing.T) {
	const low, high = pmm.Frame(100), pmm.Frame(108)

	for _, strategy := range testStrategies {
		alloc := strategy.newFn(newTestArena(low, high))
		alloc.Init(low, high)

		var frames []pmm.Frame
		for i := 0; i < 3; i++ {
			frame, _ := alloc.AllocFrame()
			frames = append(frames, frame)
		}
		alloc.FreeFrame(frames[1])

		exp := Stats{Low: low, High: high, Free: 6, Allocated: 2}
		if got := alloc.Stats(); got != exp {
			t.Errorf("[%s] expected stats %+v; got %+v", strategy.name, exp, got)
		}

		if exp, got := uint64(8), alloc.Stats().Total(); got != exp {
			t.Errorf("[%s] expected Total() to return %d; got %d", strategy.name, exp, got)
		}
	}
}

func dirty(page []byte) {
	mem.Memset(page, 0xff)
}
