package client

import (
	"io"
	"net/url"

	"github.com/EmilyShepherd/appstream/pkg/util"
)

type ContentType string

const (
	JSONContentType   ContentType = "application/json"
	NDJSONContentType ContentType = "application/x-ndjson"
)

// StreamRequest describes the request which opens a stream.
type StreamRequest struct {
	Verb        string
	Path        string
	ContentType ContentType
	Values      url.Values
	Body        io.Reader
}

// URL returns the request's path, relative to the transport's base, with
// its query string.
func (r StreamRequest) URL() string {
	return util.WithQuery(util.CleanPath(r.Path), r.Values)
}

func (r StreamRequest) verb() string {
	if r.Verb == "" {
		return "GET"
	}
	return r.Verb
}
