package types

import (
	"iter"
)

// RecordStream can be implemented by anything that delivers a sequence
// of records decoded from a long running response.
type RecordStream[T any] interface {
	// Stop stops reading. Will close the channel returned by ResultChan().
	// Releases any resources used by the stream.
	Stop()

	// ResultChan returns a chan which will receive all the records. If an
	// error occurs or Stop() is called, this channel will be closed, in
	// which case the stream should be completely cleaned up.
	ResultChan() <-chan T

	// Next blocks until the next record arrives. It returns io.EOF once
	// the stream has ended normally, or the error which ended it.
	Next() (T, error)

	// All ranges over the remaining records, yielding the terminal error
	// last if there is one.
	All() iter.Seq2[T, error]

	// Error returns the error which ended the stream, once ResultChan()
	// has been closed.
	Error() error

	// Done is closed once reading has finished and the underlying
	// response has been released, whether the stream ended, failed or
	// was stopped.
	Done() <-chan struct{}
}

// StatusEvent is reported when a stream is opened with a response that
// doesn't indicate success. The stream is still read.
type StatusEvent struct {
	Method string
	URL    string
	Status string
}
