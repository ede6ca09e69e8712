package stream_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EmilyShepherd/appstream/pkg/stream"
)

func waitDone(t *testing.T, s *stream.AsyncStream[item]) {
	t.Helper()

	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("background reader did not exit")
	}
}

func TestAsyncStream_DeliversInOrder(t *testing.T) {
	text, want := records(25)
	reader := newFakeReader(text)

	s := stream.NewAsyncStream(context.Background(), stream.FromChunks(context.Background(), reader, 16, stream.JSON[item]()), 0)

	var got []item
	for record := range s.ResultChan() {
		got = append(got, record)
	}

	assert.Equal(t, want, got)
	assert.NoError(t, s.Error())
	assert.Equal(t, 1, reader.Closes())
}

func TestAsyncStream_Next(t *testing.T) {
	reader := newFakeReader("{\"id\":1}\n{\"id\":2}\n")
	s := stream.NewAsyncStream(context.Background(), stream.FromChunks(context.Background(), reader, 4, stream.JSON[item]()), 2)

	first, err := s.Next()
	require.NoError(t, err)
	second, err := s.Next()
	require.NoError(t, err)
	_, err = s.Next()

	assert.Equal(t, item{ID: 1}, first)
	assert.Equal(t, item{ID: 2}, second)
	assert.ErrorIs(t, err, io.EOF)
}

func TestAsyncStream_AllYieldsTerminalError(t *testing.T) {
	reader := newFakeReader("{\"id\":1}\n{\"id\":2}\n][\n")
	s := stream.NewAsyncStream(context.Background(), stream.FromChunks(context.Background(), reader, 1024, stream.JSON[item]()), 1)

	var got []item
	var errs []error
	for record, err := range s.All() {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		got = append(got, record)
	}

	assert.Equal(t, []item{{ID: 1}, {ID: 2}}, got)
	require.Len(t, errs, 1)
	assert.ErrorAs(t, errs[0], new(*stream.CorruptionError))
	assert.Equal(t, 1, reader.Closes())
}

func TestAsyncStream_BreakingOutOfAllStops(t *testing.T) {
	text, _ := records(100)
	reader := newFakeReader(text)
	s := stream.NewAsyncStream(context.Background(), stream.FromChunks(context.Background(), reader, 8, stream.JSON[item]()), 1)

	for record, err := range s.All() {
		require.NoError(t, err)
		if record.ID == 3 {
			break
		}
	}

	waitDone(t, s)
	assert.True(t, s.Stopped())
	assert.NoError(t, s.Error())
	assert.Equal(t, 1, reader.Closes())
}

func TestAsyncStream_Backpressure(t *testing.T) {
	text, _ := records(100)
	reader := newFakeReader(text)
	s := stream.NewAsyncStream(context.Background(), stream.FromChunks(context.Background(), reader, 8, stream.JSON[item]()), 1)
	defer s.Stop()

	// One record fills the channel, the next is decoded and held while
	// the send waits.
	time.Sleep(100 * time.Millisecond)
	reads := reader.Reads()

	assert.Less(t, reads, 20)
	assert.Never(t, func() bool {
		return reader.Reads() != reads
	}, 100*time.Millisecond, 10*time.Millisecond)

	// Consuming lets reading resume.
	first, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, first.ID)
	assert.Eventually(t, func() bool {
		return reader.Reads() > reads
	}, time.Second, 10*time.Millisecond)
}

func TestAsyncStream_StopDuringRead(t *testing.T) {
	text, _ := records(10)
	reader := newFakeReader(text)
	reader.block = true
	reader.free = 5

	s := stream.NewAsyncStream(context.Background(), stream.FromChunks(context.Background(), reader, 8, stream.JSON[item]()), 1)

	_, err := s.Next()
	require.NoError(t, err)

	// Wait until the reader is stuck in the blocking read.
	require.Eventually(t, func() bool {
		return reader.Reads() > reader.free
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	waitDone(t, s)
	reads := reader.Reads()

	for range s.ResultChan() {
	}

	assert.NoError(t, s.Error())
	assert.Equal(t, 1, reader.Closes())
	assert.Never(t, func() bool {
		return reader.Reads() != reads
	}, 50*time.Millisecond, 5*time.Millisecond)
}

func TestAsyncStream_ParentCancelled(t *testing.T) {
	reader := newFakeReader("{\"id\":1}\n")
	reader.block = true
	reader.free = 1

	ctx, cancel := context.WithCancel(context.Background())
	s := stream.NewAsyncStream(ctx, stream.FromChunks(ctx, reader, 1024, stream.JSON[item]()), 1)

	first, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, first.ID)

	require.Eventually(t, func() bool {
		return reader.Reads() == 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	waitDone(t, s)

	_, err = s.Next()
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.Error(), context.Canceled)
	assert.False(t, s.Stopped())
	assert.Equal(t, 1, reader.Closes())
	assert.Equal(t, 2, reader.Reads())
}

func TestAsyncStream_StopIsIdempotent(t *testing.T) {
	reader := newFakeReader("")
	reader.block = true

	s := stream.NewAsyncStream(context.Background(), stream.FromChunks(context.Background(), reader, 8, stream.JSON[item]()), 1)
	s.Stop()
	s.Stop()
	waitDone(t, s)

	_, ok := <-s.ResultChan()
	assert.False(t, ok)
	assert.Equal(t, 1, reader.Closes())
}

func TestAsyncStream_ReleaseError(t *testing.T) {
	reader := newFakeReader("{\"id\":1}\n")
	reader.closeErr = errors.New("connection already gone")

	s := stream.NewAsyncStream(context.Background(), stream.FromChunks(context.Background(), reader, 1024, stream.JSON[item]()), 1)

	for range s.ResultChan() {
	}
	waitDone(t, s)

	assert.NoError(t, s.Error())
	assert.ErrorIs(t, s.ReleaseError(), reader.closeErr)
	assert.Equal(t, 1, reader.Closes())
}
