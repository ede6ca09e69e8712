// Package stream implements the decoding of newline delimited records
// out of a chunked byte source, and the pipelining of those records to
// a consumer, much like one might do with an [io.Reader].
package stream

// A RecordDecoder is able to hydrate a single T from one complete line
// of text. It must fail if the text is not a complete record. data is
// only valid for the duration of the call and must not be retained.
type RecordDecoder[T any] func(data []byte) (T, error)

// A ChunkReader yields the raw bytes of a response in chunks of at most
// max bytes. exhausted is true once the source has nothing further to
// give; the returned bytes are still valid in that case.
type ChunkReader interface {
	ReadChunk(max int) (chunk []byte, exhausted bool, err error)
}

// A stream is able to provide a source of atomic data values.
//
// The source of a Stream's data is implementation specific - an example
// may be reading JSON objects from a long running HTTP response. Next
// returns io.EOF once the source has been fully consumed.
type Stream[T any] interface {
	Next() (T, error)
}

// DefaultChunkSize is the number of bytes requested from a ChunkReader
// per read when no other size is given.
const DefaultChunkSize = 1024
