// Package sbi provides the console and shutdown hooks of the qemu virt board
// that the rest of the kernel relies on.
package sbi

import "unsafe"

const (
	// UARTBase is the MMIO base of the 16550 compatible UART.
	UARTBase = uintptr(0x10000000)

	// ShutdownBase is the MMIO address of the sifive test device that qemu
	// uses to terminate the machine.
	ShutdownBase = uintptr(0x100000)

	shutdownPass = uint16(0x5555)
	shutdownFail = uint16(0x3333)
)

var (
	// The following functions are mocked by tests.
	mmioRead8Fn   = mmioRead8
	mmioWrite8Fn  = mmioWrite8
	mmioWrite16Fn = mmioWrite16
	spinFn        = func() {
		for {
		}
	}

	// shutdownHandler replaces the test device when the kernel runs
	// hosted, e.g. inside the simulator.
	shutdownHandler func(success bool)
)

// SetShutdownHandler registers fn to be invoked by Shutdown instead of
// signalling the test device. Passing nil restores the hardware behavior.
func SetShutdownHandler(fn func(success bool)) {
	shutdownHandler = fn
}

// Shutdown terminates the machine reporting success or failure to the host.
// It does not return on real hardware.
func Shutdown(success bool) {
	if shutdownHandler != nil {
		shutdownHandler(success)
		return
	}

	code := shutdownFail
	if success {
		code = shutdownPass
	}
	mmioWrite16Fn(ShutdownBase, code)
	spinFn()
}

// ShutdownFailure is a shorthand for Shutdown(false) that can be used as a
// halt function.
func ShutdownFailure() {
	Shutdown(false)
}

func mmioRead8(addr uintptr) uint8 {
	return *(*uint8)(unsafe.Pointer(addr))
}

func mmioWrite8(addr uintptr, v uint8) {
	*(*uint8)(unsafe.Pointer(addr)) = v
}

func mmioWrite16(addr uintptr, v uint16) {
	*(*uint16)(unsafe.Pointer(addr)) = v
}
