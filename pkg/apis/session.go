package apis

import (
	"context"
	"log/slog"

	"github.com/EmilyShepherd/appstream/pkg/client"
	"github.com/EmilyShepherd/appstream/pkg/stream"
	"github.com/EmilyShepherd/appstream/types"
)

// stream opens a session for the request and starts decoding it in the
// background. The session lasts until the returned stream ends or is
// stopped.
func (o *StreamAPI[T]) stream(ctx context.Context, r client.StreamRequest) (types.RecordStream[T], error) {
	resp, err := o.transport.Open(ctx, r)
	if err != nil {
		return nil, &stream.TransportError{Op: "open " + o.url(r), Err: err}
	}

	if !resp.Success() {
		event := types.StatusEvent{
			Method: r.Verb,
			URL:    o.url(r),
			Status: resp.Status(),
		}
		o.log.Warn("unexpected response status, reading stream anyway",
			slog.String("method", event.Method),
			slog.String("url", event.URL),
			slog.String("status", event.Status))
		if o.onStatus != nil {
			o.onStatus(event)
		}
	}

	records := stream.FromChunks(ctx, resp, o.chunkSize, o.decode)
	async := stream.NewAsyncStream(ctx, records, o.capacity)

	go func() {
		<-async.Done()
		if err := async.Error(); err != nil {
			o.log.Info("stream ended with error",
				slog.String("url", o.url(r)),
				slog.Any("error", err))
		}
		if err := async.ReleaseError(); err != nil {
			o.log.Debug("failed to release stream",
				slog.String("url", o.url(r)),
				slog.Any("error", err))
		}
	}()

	return async, nil
}

// url returns where the request is sent, absolute if the transport can
// say.
func (o *StreamAPI[T]) url(r client.StreamRequest) string {
	if locator, ok := o.transport.(client.Locator); ok {
		return locator.URL(r)
	}
	return r.URL()
}
