package kfmt

import (
	"rvos/kernel"
	"rvos/kernel/sbi"
)

var (
	// haltFn is mocked by tests. On the virt board it signals a failed run
	// to the test device, which makes qemu exit.
	haltFn = sbi.ShutdownFailure

	errRuntimePanic = &kernel.Error{Module: "rt", Message: "unknown cause"}
)

// Panic outputs the supplied error (if not nil) to the console and halts the
// machine. Calls to Panic never return on real hardware. The boot entry
// recovers any Go panic raised by a subsystem and forwards its value here.
func Panic(e interface{}) {
	var err *kernel.Error

	switch t := e.(type) {
	case *kernel.Error:
		err = t
	case string:
		errRuntimePanic.Message = t
		err = errRuntimePanic
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	Printf("\n-----------------------------------\n")
	if err != nil {
		Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	Printf("*** kernel panic: system halted ***")
	Printf("\n-----------------------------------\n")

	haltFn()
}
