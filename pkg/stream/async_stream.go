package stream

import (
	"context"
	"errors"
	"io"
	"iter"
	"sync"
)

// DefaultCapacity is the size of an AsyncStream's result channel when
// no other size is given. It is kept small so that a slow consumer
// holds back the reads rather than letting records pile up in memory.
const DefaultCapacity = 1

// AsyncStream acts as a wrapper for any Stream and allows objects to be
// read from it asynchronously.
//
// Most streams are synchronous by their nature, because the underlying
// source needs to be read sequentially, however once parsed its common
// that items can be processed independently. A background goroutine
// pulls from the stream and blocks when the result channel is full.
type AsyncStream[T any] struct {
	stream Stream[T]
	result chan T
	ctx    context.Context
	cancel context.CancelFunc
	exited chan struct{}

	lock       sync.RWMutex
	stopped    bool
	err        error
	closeOnce  sync.Once
	releaseErr error
}

// NewAsyncStream starts reading from stream in the background. The
// stream is released once it ends, fails, ctx is done or Stop is
// called, whichever comes first.
func NewAsyncStream[T any](ctx context.Context, stream Stream[T], capacity int) *AsyncStream[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	ctx, cancel := context.WithCancel(ctx)
	sd := &AsyncStream[T]{
		stream: stream,
		result: make(chan T, capacity),
		ctx:    ctx,
		cancel: cancel,
		exited: make(chan struct{}),
	}

	go sd.run()
	go func() {
		// Unblocks a read which is waiting on the source.
		select {
		case <-ctx.Done():
			sd.release()
		case <-sd.exited:
		}
	}()

	return sd
}

func (sd *AsyncStream[T]) run() {
	defer close(sd.result)
	defer close(sd.exited)
	defer sd.release()
	defer sd.cancel()

	for {
		if err := sd.ctx.Err(); err != nil {
			sd.fail(err)
			return
		}

		result, err := sd.stream.Next()
		if err != nil {
			// Being cancelled mid-read usually surfaces as a failure of
			// the closed source, which isn't the cause.
			if ctxErr := sd.ctx.Err(); ctxErr != nil {
				sd.fail(ctxErr)
			} else if !errors.Is(err, io.EOF) {
				sd.fail(err)
			}
			return
		}

		select {
		case sd.result <- result:
		case <-sd.ctx.Done():
			sd.fail(sd.ctx.Err())
			return
		}
	}
}

// fail records the error which ended the stream. Errors caused by a
// call to Stop are expected and so ignored.
func (sd *AsyncStream[T]) fail(err error) {
	sd.lock.Lock()
	defer sd.lock.Unlock()

	if !sd.stopped && sd.err == nil {
		sd.err = err
	}
}

// release closes the wrapped stream, if it can be closed, exactly once.
func (sd *AsyncStream[T]) release() {
	sd.closeOnce.Do(func() {
		if closer, ok := sd.stream.(io.Closer); ok {
			sd.releaseErr = closer.Close()
		}
	})
}

// ReleaseError returns the error the wrapped stream gave when it was
// closed. It is only meaningful once Done is closed.
func (sd *AsyncStream[T]) ReleaseError() error {
	select {
	case <-sd.exited:
		return sd.releaseErr
	default:
		return nil
	}
}

// Stop tells the background goroutine to finish and releases the
// underlying stream. The result channel is closed once the goroutine
// has exited. Records not yet consumed are dropped.
func (sd *AsyncStream[T]) Stop() {
	sd.lock.Lock()
	sd.stopped = true
	sd.lock.Unlock()

	sd.cancel()
	sd.release()
}

// Stopped returns true if Stop has been called.
func (sd *AsyncStream[T]) Stopped() bool {
	sd.lock.RLock()
	defer sd.lock.RUnlock()

	return sd.stopped
}

// Done is closed once the background goroutine has exited and the
// stream has been released.
func (sd *AsyncStream[T]) Done() <-chan struct{} {
	return sd.exited
}

// Next blocks until the next record is available. Once the stream has
// ended it returns the error which ended it, or io.EOF.
func (sd *AsyncStream[T]) Next() (T, error) {
	result, ok := <-sd.result
	if !ok {
		if err := sd.Error(); err != nil {
			return result, err
		}
		return result, io.EOF
	}

	return result, nil
}

// All returns an iterator over the remaining records. If the stream
// ends in an error, it is yielded last. Breaking out of the loop stops
// the stream.
func (sd *AsyncStream[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for result := range sd.result {
			if !yield(result, nil) {
				sd.Stop()
				return
			}
		}
		if err := sd.Error(); err != nil {
			var t T
			yield(t, err)
		}
	}
}

func (sd *AsyncStream[T]) ResultChan() <-chan T {
	return sd.result
}

// Error returns the error which ended the stream, if any. It is only
// meaningful once the result channel has been closed.
func (sd *AsyncStream[T]) Error() error {
	sd.lock.RLock()
	defer sd.lock.RUnlock()

	return sd.err
}
