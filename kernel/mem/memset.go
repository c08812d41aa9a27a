package mem

// Memset sets every byte of buf to value. Instead of a byte loop it performs
// log2(len(buf)) copy calls, which is fast for the page sized buffers the
// frame allocators clear.
func Memset(buf []byte, value byte) {
	if len(buf) == 0 {
		return
	}

	buf[0] = value
	for filled := 1; filled < len(buf); filled *= 2 {
		copy(buf[filled:], buf[:filled])
	}
}

// IsZero reports whether every byte of buf is zero.
func IsZero(buf []byte) bool {
	for _, b := range buf {
		if b != 0 {
			return false
		}
	}
	return true
}
