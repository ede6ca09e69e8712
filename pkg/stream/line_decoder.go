package stream

import (
	"bytes"
	"errors"
)

// ErrDecoderClosed is returned by a LineDecoder which has already been
// told the stream has ended.
var ErrDecoderClosed = errors.New("stream: decoder closed")

// DecodeLines appends fragment to buffer and decodes every line which is
// now known to be complete.
//
// Every line but the last must decode, blank lines excepted. The last
// line is returned as the new buffer, as more of it may be yet to come,
// unless eof is set, in which case it must decode too (when not blank)
// and the returned buffer is empty.
//
// On failure the records which preceded the corrupt line are returned
// along with a *CorruptionError. No record following it is decoded.
func DecodeLines[T any](buffer, fragment string, eof bool, decode RecordDecoder[T]) ([]T, string, error) {
	text := make([]byte, 0, len(buffer)+len(fragment))
	text = append(append(text, buffer...), fragment...)

	records, consumed, err := decodeLines(text, 0, eof, decode)
	if err != nil {
		return records, "", err
	}

	return records, string(text[consumed:]), nil
}

// decodeLines decodes the complete lines of text, returning how many
// bytes of it they took up. No line terminator is searched for before
// from.
func decodeLines[T any](text []byte, from int, eof bool, decode RecordDecoder[T]) ([]T, int, error) {
	var records []T
	start := 0

	for {
		i := bytes.IndexByte(text[from:], '\n')
		if i < 0 {
			break
		}
		end := from + i

		record, ok, err := decodeLine(text[start:end], false, decode)
		if err != nil {
			return records, start, err
		}
		if ok {
			records = append(records, record)
		}

		start = end + 1
		from = start
	}

	if !eof {
		return records, start, nil
	}

	record, ok, err := decodeLine(text[start:], true, decode)
	if err != nil {
		return records, start, err
	}
	if ok {
		records = append(records, record)
	}

	return records, len(text), nil
}

// decodeLine decodes a single line. ok is false if the line was blank
// and so produced no record.
func decodeLine[T any](line []byte, trailing bool, decode RecordDecoder[T]) (t T, ok bool, err error) {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	if len(bytes.TrimSpace(line)) == 0 {
		return t, false, nil
	}

	t, err = decode(line)
	if err != nil {
		return t, false, &CorruptionError{
			Text:     string(line),
			Trailing: trailing,
			Err:      err,
		}
	}

	return t, true, nil
}

// LineDecoder holds the text buffer between decode steps, for callers
// that are fed fragments one at a time. Fragments are appended to the
// buffer in place, so a record arriving over many fragments costs time
// in proportion to its length.
type LineDecoder[T any] struct {
	decode RecordDecoder[T]
	buffer []byte
	closed bool
	err    error
}

func NewLineDecoder[T any](decode RecordDecoder[T]) *LineDecoder[T] {
	return &LineDecoder[T]{decode: decode}
}

// Write feeds the next fragment of the stream to the decoder and returns
// the records it completed. Once an error has been returned the decoder
// is spent and will return it again on every call.
func (d *LineDecoder[T]) Write(fragment string) ([]T, error) {
	if err := d.usable(); err != nil {
		return nil, err
	}

	from := len(d.buffer)
	d.buffer = append(d.buffer, fragment...)
	return d.step(from, false)
}

// WriteBytes is Write for a fragment held in a byte slice. The fragment
// is copied, so the caller may reuse it once WriteBytes returns.
func (d *LineDecoder[T]) WriteBytes(fragment []byte) ([]T, error) {
	if err := d.usable(); err != nil {
		return nil, err
	}

	from := len(d.buffer)
	d.buffer = append(d.buffer, fragment...)
	return d.step(from, false)
}

// Close signals the end of the stream, decoding whatever remains in the
// buffer.
func (d *LineDecoder[T]) Close() ([]T, error) {
	if err := d.usable(); err != nil {
		return nil, err
	}

	return d.step(len(d.buffer), true)
}

// Buffered returns the text held back as a possibly incomplete record.
func (d *LineDecoder[T]) Buffered() string {
	return string(d.buffer)
}

func (d *LineDecoder[T]) usable() error {
	if d.err != nil {
		return d.err
	}
	if d.closed {
		return ErrDecoderClosed
	}
	return nil
}

// step decodes the lines completed by the text appended after from. The
// buffer held no terminator before from, so it is not searched again.
func (d *LineDecoder[T]) step(from int, eof bool) ([]T, error) {
	records, consumed, err := decodeLines(d.buffer, from, eof, d.decode)
	d.closed = eof
	d.err = err

	if err != nil || eof {
		d.buffer = nil
		return records, err
	}

	// Only shift the buffer down once a line has been taken off it. What
	// remains then is no longer than the fragment which completed it.
	if consumed > 0 {
		n := copy(d.buffer, d.buffer[consumed:])
		d.buffer = d.buffer[:n]
	}

	return records, nil
}
