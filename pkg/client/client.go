package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/EmilyShepherd/appstream/pkg/util"
)

// Transport opens streams. It is the only thing the rest of this module
// needs to know about the network.
type Transport interface {
	// Open sends the request and returns as soon as the response headers
	// are in. The response body is bound to ctx: cancelling it aborts any
	// read in progress.
	Open(ctx context.Context, r StreamRequest) (Response, error)
}

// Locator is implemented by transports which can say exactly where a
// request will be sent.
type Locator interface {
	URL(r StreamRequest) string
}

// Response is an open stream.
type Response interface {
	// Success reports whether the request was answered with a success
	// status.
	Success() bool
	// Status describes the response status for diagnostics.
	Status() string
	// ReadChunk reads at most max bytes of the body. exhausted is set once
	// the body has been fully read. The chunk is only valid until the next
	// call.
	ReadChunk(max int) (chunk []byte, exhausted bool, err error)
	// Close releases the response. It may be called more than once, and
	// concurrently with ReadChunk to abort it.
	Close() error
}

// Client is a Transport for an HTTP server.
type Client struct {
	HttpClient *http.Client
	// Header is sent with every request.
	Header http.Header

	baseURL string
}

// NewFromEnv creates a Client for the server named by APPSTREAM_BASE_URL,
// trusting the CA bundle at APPSTREAM_CA_FILE if it is set.
func NewFromEnv() (*Client, error) {
	host := os.Getenv("APPSTREAM_BASE_URL")
	if len(host) == 0 {
		return nil, fmt.Errorf("unable to load configuration from the environment, APPSTREAM_BASE_URL must be defined")
	}

	var ca []byte
	if caFile := os.Getenv("APPSTREAM_CA_FILE"); caFile != "" {
		var err error
		if ca, err = os.ReadFile(caFile); err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
	}

	return NewClient(host, ca)
}

// NewClient creates a Client for the server at host. If ca is given, it
// is the only set of roots trusted for TLS connections.
func NewClient(host string, ca []byte) (*Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if len(ca) > 0 {
		certPool := x509.NewCertPool()
		if !certPool.AppendCertsFromPEM(ca) {
			return nil, fmt.Errorf("no certificates found in ca bundle")
		}
		transport.TLSClientConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
			RootCAs:    certPool,
		}
	}

	return &Client{
		baseURL: host,
		Header:  make(http.Header),
		HttpClient: &http.Client{
			Transport: transport,
			// Streams are long lived, any deadline belongs to the caller's
			// context.
			Timeout: 0,
		},
	}, nil
}

// BaseURL returns the URL all request paths are relative to.
func (kc *Client) BaseURL() string {
	return kc.baseURL
}

// URL returns the absolute URL the request will be sent to.
func (kc *Client) URL(r StreamRequest) string {
	return util.WithQuery(util.JoinURL(kc.baseURL, r.Path), r.Values)
}

func (kc *Client) DoRaw(req *http.Request) (*http.Response, error) {
	for name, values := range kc.Header {
		for _, value := range values {
			req.Header.Add(name, value)
		}
	}
	return kc.HttpClient.Do(req)
}

func (kc *Client) Open(ctx context.Context, r StreamRequest) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, r.verb(), kc.URL(r), r.Body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json, "+string(NDJSONContentType))

	if r.ContentType != "" {
		req.Header.Set("Content-Type", string(r.ContentType))
	}

	resp, err := kc.DoRaw(req)
	if err != nil {
		return nil, err
	}

	return &httpResponse{resp: resp}, nil
}

type httpResponse struct {
	resp *http.Response
	buf  []byte

	closeOnce sync.Once
	closeErr  error
}

func (r *httpResponse) Success() bool {
	return r.resp.StatusCode >= 200 && r.resp.StatusCode < 300
}

func (r *httpResponse) Status() string {
	return r.resp.Status
}

func (r *httpResponse) ReadChunk(max int) ([]byte, bool, error) {
	if cap(r.buf) < max {
		r.buf = make([]byte, max)
	}

	n, err := r.resp.Body.Read(r.buf[:max])
	if err == io.EOF {
		return r.buf[:n], true, nil
	}

	return r.buf[:n], false, err
}

func (r *httpResponse) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.resp.Body.Close()
	})

	return r.closeErr
}
