// Package kfmt implements console formatting helpers that are safe to use
// before the kernel heap has been brought up.
package kfmt

import (
	"bytes"
	"io"
	"unsafe"
)

// maxBufSize defines the buffer size for formatting numbers.
const maxBufSize = 32

var (
	errMissingArg   = []byte("(MISSING)")
	errWrongArgType = []byte("%!(WRONGTYPE)")
	errNoVerb       = []byte("%!(NOVERB)")
	errExtraArg     = []byte("%!(EXTRA)")
	trueValue       = []byte("true")
	falseValue      = []byte("false")

	numFmtBuf = []byte("012345678901234567890123456789012")

	// singleByte is a shared buffer for passing single characters to
	// doWrite without allocating.
	singleByte = []byte(" ")

	// earlyPrintBuffer captures Printf output until the console sink is
	// attached by the boot code.
	earlyPrintBuffer ringBuffer

	// outputSink receives the output of Printf. While nil, output goes to
	// earlyPrintBuffer.
	outputSink io.Writer
)

// SetOutputSink sets the target for calls to Printf to w and replays any
// output that was buffered while no sink was attached.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w != nil {
		io.Copy(w, &earlyPrintBuffer)
	}
}

// GetOutputSink returns the currently attached output sink or nil if output
// is still being buffered.
func GetOutputSink() io.Writer {
	return outputSink
}

// Printf provides a minimal Printf implementation that does not allocate
// memory and can therefore be used by the boot code before the heap exists.
//
// The following subset of the fmt verbs is supported:
//
//	%s  string or []byte
//	%d  base 10 integer
//	%o  base 8 integer
//	%x  base 16 integer, lower-case digits
//	%t  bool
//	%%  literal percent sign
//
// An optional decimal width may precede the verb. Strings and base-10
// integers are left-padded with spaces; base-8 and base-16 integers are
// left-padded with zeroes.
//
// Arguments that do not match one of the built-in string, integer or bool
// types are reported as %!(WRONGTYPE); io.Stringer is not consulted.
func Printf(format string, args ...interface{}) {
	Fprintf(outputSink, format, args...)
}

// Sprintf behaves like Printf but returns the formatted output as a string.
// Unlike Printf it allocates and must only be used once the heap is up.
func Sprintf(format string, args ...interface{}) string {
	var buf bytes.Buffer
	Fprintf(&buf, format, args...)
	return buf.String()
}

// Fprintf behaves like Printf but writes the formatted output to w. A nil w
// sends the output to the early print buffer.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	var (
		argIndex int
		width    int
		fmtLen   = len(format)
	)

	for i := 0; i < fmtLen; i++ {
		if format[i] != '%' {
			writeByte(w, format[i])
			continue
		}

		// Collect the optional width and locate the verb
		width = 0
		for i++; i < fmtLen && format[i] >= '0' && format[i] <= '9'; i++ {
			width = width*10 + int(format[i]-'0')
		}

		if i == fmtLen {
			doWrite(w, errNoVerb)
			break
		}

		verb := format[i]
		switch verb {
		case '%':
			writeByte(w, '%')
			continue
		case 'd', 'o', 'x', 's', 't':
		default:
			doWrite(w, errNoVerb)
			continue
		}

		if argIndex >= len(args) {
			doWrite(w, errMissingArg)
			continue
		}

		switch verb {
		case 'd':
			fmtInt(w, args[argIndex], 10, width)
		case 'o':
			fmtInt(w, args[argIndex], 8, width)
		case 'x':
			fmtInt(w, args[argIndex], 16, width)
		case 's':
			fmtString(w, args[argIndex], width)
		case 't':
			fmtBool(w, args[argIndex])
		}
		argIndex++
	}

	for ; argIndex < len(args); argIndex++ {
		doWrite(w, errExtraArg)
	}
}

func writeByte(w io.Writer, b byte) {
	singleByte[0] = b
	doWrite(w, singleByte)
}

// fmtBool prints "true" or "false" for a bool value v.
func fmtBool(w io.Writer, v interface{}) {
	bVal, ok := v.(bool)
	switch {
	case !ok:
		doWrite(w, errWrongArgType)
	case bVal:
		doWrite(w, trueValue)
	default:
		doWrite(w, falseValue)
	}
}

// fmtString prints a string or []byte value v left-padded to width.
func fmtString(w io.Writer, v interface{}, width int) {
	switch castedVal := v.(type) {
	case string:
		fmtRepeat(w, ' ', width-len(castedVal))
		// converting the string to a byte slice allocates so the string
		// is written one byte at a time.
		for i := 0; i < len(castedVal); i++ {
			writeByte(w, castedVal[i])
		}
	case []byte:
		fmtRepeat(w, ' ', width-len(castedVal))
		doWrite(w, castedVal)
	default:
		doWrite(w, errWrongArgType)
	}
}

// fmtRepeat writes count copies of ch.
func fmtRepeat(w io.Writer, ch byte, count int) {
	for i := 0; i < count; i++ {
		writeByte(w, ch)
	}
}

// fmtInt prints integer v in the requested base, padded to width. All
// built-in signed and unsigned integer types are supported, including the
// named integer types declared by the mem and pmm packages when they are
// passed through a uintptr or uint64 conversion.
func fmtInt(w io.Writer, v interface{}, base, width int) {
	var (
		uval     uint64
		negative bool
		padCh    = byte('0')
		n        int
	)

	if width >= maxBufSize {
		width = maxBufSize - 1
	}

	if base == 10 {
		padCh = ' '
	}

	switch t := v.(type) {
	case uint8:
		uval = uint64(t)
	case uint16:
		uval = uint64(t)
	case uint32:
		uval = uint64(t)
	case uint64:
		uval = t
	case uint:
		uval = uint64(t)
	case uintptr:
		uval = uint64(t)
	case int8:
		uval, negative = abs(int64(t))
	case int16:
		uval, negative = abs(int64(t))
	case int32:
		uval, negative = abs(int64(t))
	case int64:
		uval, negative = abs(t)
	case int:
		uval, negative = abs(int64(t))
	default:
		doWrite(w, errWrongArgType)
		return
	}

	// Emit digits in reverse order
	for n < maxBufSize {
		digit := byte(uval % uint64(base))
		if digit < 10 {
			numFmtBuf[n] = digit + '0'
		} else {
			numFmtBuf[n] = digit - 10 + 'a'
		}
		n++

		if uval /= uint64(base); uval == 0 {
			break
		}
	}

	switch {
	case negative && padCh == ' ':
		// The sign goes right before the first digit and consumes one
		// padding slot.
		numFmtBuf[n] = '-'
		n++
		for ; n < width; n++ {
			numFmtBuf[n] = padCh
		}
	case negative:
		// Zero padding goes between the sign and the digits.
		for ; n < width-1; n++ {
			numFmtBuf[n] = padCh
		}
		numFmtBuf[n] = '-'
		n++
	default:
		for ; n < width; n++ {
			numFmtBuf[n] = padCh
		}
	}

	for left, right := 0, n-1; left < right; left, right = left+1, right-1 {
		numFmtBuf[left], numFmtBuf[right] = numFmtBuf[right], numFmtBuf[left]
	}

	doWrite(w, numFmtBuf[:n])
}

func abs(v int64) (uint64, bool) {
	if v < 0 {
		return uint64(-v), true
	}
	return uint64(v), false
}

// doWrite hides p from the compiler's escape analysis. Without it, passing p
// to the yet unknown outputSink flags p as escaping and every Printf call
// allocates, which crashes the kernel before the heap is initialized.
func doWrite(w io.Writer, p []byte) {
	doRealWrite(w, noEscape(unsafe.Pointer(&p)))
}

func doRealWrite(w io.Writer, bufPtr unsafe.Pointer) {
	p := *(*[]byte)(bufPtr)
	if w != nil {
		w.Write(p)
	} else {
		earlyPrintBuffer.Write(p)
	}
}

// noEscape hides a pointer from escape analysis. Copied from runtime/stubs.go.
//
//go:nosplit
func noEscape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}
