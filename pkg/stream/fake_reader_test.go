package stream_test

import (
	"errors"
	"sync"
)

var errReaderClosed = errors.New("reader closed")

// fakeReader serves text in chunks of the requested size. If block is
// set the source is never exhausted, and every read after the first
// `free` reads waits until Close.
type fakeReader struct {
	lock   sync.Mutex
	text     string
	err      error
	closeErr error
	reads  int
	closes int

	free   int
	block  bool
	closed chan struct{}
}

func newFakeReader(text string) *fakeReader {
	return &fakeReader{
		text:   text,
		closed: make(chan struct{}),
	}
}

func (r *fakeReader) ReadChunk(max int) ([]byte, bool, error) {
	r.lock.Lock()
	r.reads++
	reads := r.reads
	r.lock.Unlock()

	if r.block && reads > r.free {
		<-r.closed
		return nil, false, errReaderClosed
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	select {
	case <-r.closed:
		return nil, false, errReaderClosed
	default:
	}

	if len(r.text) == 0 {
		if r.err != nil {
			return nil, false, r.err
		}
		return nil, !r.block, nil
	}

	n := min(max, len(r.text))
	chunk := []byte(r.text[:n])
	r.text = r.text[n:]

	return chunk, len(r.text) == 0 && r.err == nil && !r.block, nil
}

func (r *fakeReader) Close() error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.closes++
	if r.closes == 1 {
		close(r.closed)
	}
	return r.closeErr
}

func (r *fakeReader) Reads() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.reads
}

func (r *fakeReader) Closes() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.closes
}
