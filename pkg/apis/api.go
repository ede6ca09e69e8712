package apis

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/EmilyShepherd/appstream/pkg/client"
	"github.com/EmilyShepherd/appstream/pkg/config"
	"github.com/EmilyShepherd/appstream/pkg/stream"
	"github.com/EmilyShepherd/appstream/types"
)

// StatusHandler is told about responses which did not report success.
type StatusHandler func(types.StatusEvent)

type Option[T any] func(api *StreamAPI[T])

// WithRecordDecoder sets how each line of a response is decoded. The
// default is encoding/json.
func WithRecordDecoder[T any](decode stream.RecordDecoder[T]) Option[T] {
	return func(api *StreamAPI[T]) {
		api.decode = decode
	}
}

// WithCodec selects the JSON implementation used both for decoding
// records and encoding request bodies.
func WithCodec[T any](codec stream.Codec) Option[T] {
	return func(api *StreamAPI[T]) {
		api.codec = codec
		api.decode = stream.DecoderFor[T](codec)
	}
}

// WithChunkSize sets the most bytes requested from the transport per
// read.
func WithChunkSize[T any](size int) Option[T] {
	return func(api *StreamAPI[T]) {
		api.chunkSize = size
	}
}

// WithCapacity sets how many decoded records may wait for the consumer
// before reading is paused.
func WithCapacity[T any](capacity int) Option[T] {
	return func(api *StreamAPI[T]) {
		api.capacity = capacity
	}
}

func WithLogger[T any](log *slog.Logger) Option[T] {
	return func(api *StreamAPI[T]) {
		api.log = log
	}
}

func WithStatusHandler[T any](handler StatusHandler) Option[T] {
	return func(api *StreamAPI[T]) {
		api.onStatus = handler
	}
}

// StreamAPI opens streams of T over a transport.
type StreamAPI[T any] struct {
	transport client.Transport
	decode    stream.RecordDecoder[T]
	codec     stream.Codec
	chunkSize int
	capacity  int
	log       *slog.Logger
	onStatus  StatusHandler
}

func NewStreamAPI[T any](transport client.Transport, opts ...Option[T]) *StreamAPI[T] {
	api := &StreamAPI[T]{
		transport: transport,
		decode:    stream.JSON[T](),
		codec:     stream.CodecJSON,
		chunkSize: stream.DefaultChunkSize,
		capacity:  stream.DefaultCapacity,
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(api)
	}

	return api
}

// Get streams the records returned for path.
func (o *StreamAPI[T]) Get(ctx context.Context, path string, values url.Values) (types.RecordStream[T], error) {
	return o.stream(ctx, client.StreamRequest{
		Verb:   "GET",
		Path:   path,
		Values: values,
	})
}

// Post sends body, encoded as JSON, to path and streams the records
// returned.
func (o *StreamAPI[T]) Post(ctx context.Context, path string, body any) (types.RecordStream[T], error) {
	s, err := stream.Marshal(o.codec, body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}

	return o.stream(ctx, client.StreamRequest{
		Verb:        "POST",
		Path:        path,
		ContentType: client.JSONContentType,
		Body:        bytes.NewReader(s),
	})
}

// WithConfig applies the stream settings of cfg, logging to log.
func WithConfig[T any](cfg config.Config, log *slog.Logger) Option[T] {
	return func(api *StreamAPI[T]) {
		WithCodec[T](cfg.Codec)(api)
		api.chunkSize = cfg.ReadBufferSize
		api.capacity = cfg.ChannelCapacity
		if log != nil {
			api.log = log
		}
	}
}
