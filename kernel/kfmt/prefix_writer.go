package kfmt

import (
	"bytes"
	"io"
)

// PrefixWriter is an io.Writer that injects Prefix at the beginning of every
// line written to Sink. Subsystems use it to tag multi-line diagnostics, e.g.
// "[frame_alloc] ".
type PrefixWriter struct {
	// Sink receives the prefixed output. A nil Sink sends the output to
	// the early print buffer.
	Sink io.Writer

	// Prefix is written before the first byte of each line.
	Prefix []byte

	// midLine is set when the last write did not end with a line feed.
	midLine bool
}

// Write writes p to the sink, injecting the prefix at line starts. The
// returned byte count excludes injected prefixes. A prefix for the line that
// follows a trailing line feed is deferred to the next Write.
func (w *PrefixWriter) Write(p []byte) (int, error) {
	var (
		written int
		sink    = w.Sink
	)

	if sink == nil {
		sink = &earlyPrintBuffer
	}

	for len(p) != 0 {
		if !w.midLine {
			if _, err := sink.Write(w.Prefix); err != nil {
				return written, err
			}
			w.midLine = true
		}

		lineLen := len(p)
		if lf := bytes.IndexByte(p, '\n'); lf != -1 {
			lineLen = lf + 1
			w.midLine = false
		}

		n, err := sink.Write(p[:lineLen])
		written += n
		if err != nil {
			return written, err
		}
		p = p[lineLen:]
	}

	return written, nil
}
