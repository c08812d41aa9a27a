package heap

import (
	"encoding/binary"
	"io"
	"rvos/kernel"
	"rvos/kernel/kfmt"
	"rvos/kernel/mem/pmm"
)

// selfTestWords is the number of 64-bit words in the array allocation.
const selfTestWords = 500

func selfTestError(format string, args ...interface{}) *kernel.Error {
	return &kernel.Error{Module: moduleName, Message: "self test: " + kfmt.Sprintf(format, args...)}
}

// SelfTest allocates a single word and an array of words, checks that both
// live inside the heap extent and hold the values written to them, frees
// them and checks that all heap space was returned.
func SelfTest(w io.Writer) *kernel.Error {
	freeBefore := FreeBytes()

	addr, err := Alloc(8)
	if err != nil {
		return err
	}

	word := Bytes(addr, 8)
	binary.LittleEndian.PutUint64(word, 5)
	if got := binary.LittleEndian.Uint64(word); got != 5 {
		return selfTestError("expected word at 0x%x to hold 5; got %d", uintptr(addr), got)
	}
	if !Contains(addr) {
		return selfTestError("word at 0x%x outside heap extent", uintptr(addr))
	}
	kfmt.Fprintf(w, "word at 0x%x\n", uintptr(addr))
	Free(addr)

	if addr, err = Alloc(selfTestWords * 8); err != nil {
		return err
	}

	array := Bytes(addr, selfTestWords*8)
	for i := 0; i < selfTestWords; i++ {
		binary.LittleEndian.PutUint64(array[i*8:], uint64(i))
	}
	for i := 0; i < selfTestWords; i++ {
		if got := binary.LittleEndian.Uint64(array[i*8:]); got != uint64(i) {
			return selfTestError("expected array[%d] to hold %d; got %d", i, i, got)
		}
	}
	if last := addr + pmm.PhysAddr(selfTestWords*8-1); !Contains(addr) || !Contains(last) {
		return selfTestError("array at 0x%x outside heap extent", uintptr(addr))
	}
	kfmt.Fprintf(w, "array of %d words at 0x%x\n", selfTestWords, uintptr(addr))
	Free(addr)

	if freeAfter := FreeBytes(); freeAfter != freeBefore {
		return selfTestError("expected %d free bytes; got %d", uint64(freeBefore), uint64(freeAfter))
	}

	kfmt.Fprintf(w, "heap self test passed\n")
	return nil
}
