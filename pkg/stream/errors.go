package stream

import (
	"fmt"
)

// CorruptionError is returned when a line that must be a complete record
// fails to decode. The stream is malformed, not merely chunked, so it
// can't be recovered from.
type CorruptionError struct {
	// Text is the offending line, without its terminator.
	Text string
	// Trailing is set when the line was the final one of the stream,
	// only checked once the source reported end-of-stream.
	Trailing bool
	Err      error
}

func (e *CorruptionError) Error() string {
	where := "record"
	if e.Trailing {
		where = "trailing record"
	}
	return fmt.Sprintf("stream: corrupt %s %q: %v", where, truncate(e.Text, 128), e.Err)
}

func (e *CorruptionError) Unwrap() error {
	return e.Err
}

// TransportError wraps a failure of the underlying source, either while
// opening it or reading from it.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("stream: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
