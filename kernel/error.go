// Package kernel contains the error type shared by all kernel subsystems.
package kernel

// Error describes a kernel error. Errors for static conditions are declared
// as package-level pointers so that reporting them never allocates; the
// memory subsystems may only build dynamic messages once the heap is up.
type Error struct {
	// The module where the error occurred, e.g. "frame_alloc".
	Module string

	// The error message.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// String returns the error prefixed with its originating module.
func (e *Error) String() string {
	return "[" + e.Module + "] " + e.Message
}
