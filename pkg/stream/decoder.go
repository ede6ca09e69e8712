package stream

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/gammazero/deque"
)

// ErrStreamClosed is returned by a stream which was closed before its
// source was exhausted.
var ErrStreamClosed = errors.New("stream: closed")

type chunkStream[T any] struct {
	ctx       context.Context
	reader    ChunkReader
	chunkSize int
	decoder   *LineDecoder[T]
	pending   *deque.Deque[T]
	done      bool
	err       error

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// FromChunks returns a Stream[T] which reads the given ChunkReader
// chunkSize bytes at a time and decodes each line as a record.
//
// ctx is checked before every read; once it is done no further reads
// are made and Next returns its error. If reader is an io.Closer, the
// returned stream is one too and closing it closes the reader.
func FromChunks[T any](ctx context.Context, reader ChunkReader, chunkSize int, decode RecordDecoder[T]) Stream[T] {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	return &chunkStream[T]{
		ctx:       ctx,
		reader:    reader,
		chunkSize: chunkSize,
		decoder:   NewLineDecoder(decode),
		pending:   deque.New[T](),
	}
}

// Next blocks until it can return the next record in the source.
// Records decoded before a failure are still returned in order, the
// error is only returned once they have all been taken.
func (sd *chunkStream[T]) Next() (T, error) {
	for sd.pending.Len() == 0 {
		if sd.err != nil {
			var t T
			return t, sd.err
		}
		if sd.done {
			var t T
			return t, io.EOF
		}
		sd.fill()
	}

	return sd.pending.PopFront(), nil
}

// fill performs a single read and queues whatever it completed.
func (sd *chunkStream[T]) fill() {
	if err := sd.ctx.Err(); err != nil {
		sd.err = err
		return
	}
	if sd.closed.Load() {
		sd.err = ErrStreamClosed
		return
	}

	chunk, exhausted, err := sd.reader.ReadChunk(sd.chunkSize)
	if err != nil {
		// A read failing because we were cancelled is reported as such,
		// rather than as whatever the closed source had to say about it.
		if ctxErr := sd.ctx.Err(); ctxErr != nil {
			sd.err = ctxErr
		} else if sd.closed.Load() {
			sd.err = ErrStreamClosed
		} else {
			sd.err = &TransportError{Op: "read", Err: err}
		}
		return
	}

	var records []T
	records, err = sd.decoder.WriteBytes(chunk)
	if err == nil && exhausted {
		var last []T
		last, err = sd.decoder.Close()
		records = append(records, last...)
	}

	for _, record := range records {
		sd.pending.PushBack(record)
	}

	if err != nil {
		sd.err = err
	} else if exhausted {
		sd.done = true
	}
}

// Close releases the underlying reader, if it can be closed. It is safe
// to call more than once and from another goroutine than Next.
func (sd *chunkStream[T]) Close() error {
	sd.closed.Store(true)
	sd.closeOnce.Do(func() {
		if closer, ok := sd.reader.(io.Closer); ok {
			sd.closeErr = closer.Close()
		}
	})

	return sd.closeErr
}
