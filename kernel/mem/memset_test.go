package mem

import "testing"

func TestMemset(t *testing.T) {
	// memset with a 0 size should be a no-op
	Memset(nil, 0x00)

	for pageCount := uint32(1); pageCount <= 10; pageCount++ {
		buf := make([]byte, PageSize<<pageCount)
		for i := 0; i < len(buf); i++ {
			buf[i] = 0xFE
		}

		Memset(buf, 0x00)

		for i := 0; i < len(buf); i++ {
			if got := buf[i]; got != 0x00 {
				t.Errorf("[block with %d pages] expected byte: %d to be 0x00; got 0x%x", pageCount, i, got)
			}
		}

		if !IsZero(buf) {
			t.Errorf("[block with %d pages] expected IsZero to return true", pageCount)
		}
	}
}

func TestMemsetOddLength(t *testing.T) {
	buf := make([]byte, 13)
	Memset(buf, 0xAB)

	for i, b := range buf {
		if b != 0xAB {
			t.Errorf("expected byte %d to be 0xab; got 0x%x", i, b)
		}
	}

	if IsZero(buf) {
		t.Error("expected IsZero to return false")
	}
}
