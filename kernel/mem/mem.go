// Package mem defines the memory sizes and board layout shared by the kernel
// memory subsystems.
package mem

const (
	// PageShift is equal to log2(PageSize). This constant is used when
	// we need to convert a physical address to a page number (shift right by PageShift)
	// and vice-versa.
	PageShift = 12

	// PageSize defines the system's page size in bytes.
	PageSize = Size(1 << PageShift)
)

// Size represents a memory block size in bytes.
type Size uint64

// Common memory block sizes
const (
	Byte Size = 1
	Kb        = 1024 * Byte
	Mb        = 1024 * Kb
	Gb        = 1024 * Mb
)

// AlignUp rounds s up to the next multiple of align, which must be a power
// of 2.
func (s Size) AlignUp(align Size) Size {
	return (s + align - 1) &^ (align - 1)
}
