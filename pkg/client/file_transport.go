package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/EmilyShepherd/appstream/pkg/util"
)

// FileTransport is a Transport for newline delimited records stored in
// files under Root. Request paths name files relative to Root, and only
// GET requests are supported.
//
// When Follow is set, reaching the end of a file does not end the stream:
// the file is watched for writes and new data is returned as it appears,
// much like tail -f. The stream then ends when the file is removed or
// renamed, or the request's context is done.
type FileTransport struct {
	Root   string
	Follow bool
}

func (t *FileTransport) path(r StreamRequest) string {
	return filepath.Join(t.Root, filepath.FromSlash(util.CleanPath(r.Path)))
}

// URL returns the file:// URL of the file the request reads.
func (t *FileTransport) URL(r StreamRequest) string {
	name, err := filepath.Abs(t.path(r))
	if err != nil {
		name = t.path(r)
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(name)}).String()
}

func (t *FileTransport) Open(ctx context.Context, r StreamRequest) (Response, error) {
	if r.verb() != "GET" {
		return nil, fmt.Errorf("file transport: unsupported verb %q", r.Verb)
	}

	name := t.path(r)
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}

	resp := &fileResponse{
		ctx:    ctx,
		name:   name,
		file:   file,
		closed: make(chan struct{}),
	}

	if t.Follow {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			file.Close()
			return nil, err
		}

		// Watching the directory rather than the file itself means we get
		// told when the file goes away.
		if err := watcher.Add(filepath.Dir(name)); err != nil {
			watcher.Close()
			file.Close()
			return nil, err
		}
		resp.watcher = watcher
	}

	return resp, nil
}

type fileResponse struct {
	ctx     context.Context
	name    string
	file    *os.File
	watcher *fsnotify.Watcher
	buf     []byte
	gone    bool

	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func (r *fileResponse) Success() bool {
	return true
}

func (r *fileResponse) Status() string {
	return "OK"
}

func (r *fileResponse) ReadChunk(max int) ([]byte, bool, error) {
	if cap(r.buf) < max {
		r.buf = make([]byte, max)
	}

	for {
		n, err := r.file.Read(r.buf[:max])
		if err != nil && err != io.EOF {
			return nil, false, err
		}
		if n > 0 {
			return r.buf[:n], false, nil
		}

		if r.watcher == nil || r.gone {
			return nil, true, nil
		}
		if err := r.wait(); err != nil {
			return nil, false, err
		}
	}
}

// wait blocks until something happens to the file which may mean there
// is more to read.
func (r *fileResponse) wait() error {
	for {
		select {
		case <-r.ctx.Done():
			return r.ctx.Err()

		case <-r.closed:
			return os.ErrClosed

		case event, ok := <-r.watcher.Events:
			if !ok {
				return os.ErrClosed
			}
			if filepath.Clean(event.Name) != r.name {
				continue
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				// Whatever was written before it went is still readable.
				r.gone = true
			}
			return nil

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return os.ErrClosed
			}
			return fmt.Errorf("watch %s: %w", r.name, err)
		}
	}
}

func (r *fileResponse) Close() error {
	r.closeOnce.Do(func() {
		close(r.closed)

		var errs []error
		if r.watcher != nil {
			errs = append(errs, r.watcher.Close())
		}
		errs = append(errs, r.file.Close())
		r.closeErr = errors.Join(errs...)
	})

	return r.closeErr
}
