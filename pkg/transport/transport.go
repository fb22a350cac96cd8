package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ce-data-e/opencodex/pkg/debug"
)

// Request describes one HTTP attempt. Body is held as bytes so that an
// identical request can be replayed on retry.
type Request struct {
	Method  string
	URL     string
	Header  http.Header
	Body    []byte
	Timeout time.Duration
}

// Response is a fully buffered HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// StreamResponse is an HTTP response whose body is still open. The caller
// must close Body.
type StreamResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// Transport executes single HTTP attempts.
type Transport interface {
	// Execute sends req and buffers the response body.
	Execute(ctx context.Context, req *Request) (*Response, error)

	// Stream sends req and returns the open response body.
	Stream(ctx context.Context, req *Request) (*StreamResponse, error)
}

// HTTPTransport implements Transport on top of net/http.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport creates a transport using client, or a default client
// without a global timeout when client is nil. Per-request timeouts come
// from Request.Timeout.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPTransport{client: client}
}

// Execute implements Transport.
func (t *HTTPTransport) Execute(ctx context.Context, req *Request) (*Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	resp, err := t.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Op: "read body", URL: req.URL, Err: err}
	}

	debug.Log("transport", "response received", "status", resp.StatusCode, "body_bytes", len(body))
	if debug.TraceIsEnabled("transport") {
		debug.Raw("transport", fmt.Sprintf("<<< %d\n%s", resp.StatusCode, body))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// Stream implements Transport. Request.Timeout bounds only the time to
// response headers; the body stays readable until ctx ends.
func (t *HTTPTransport) Stream(ctx context.Context, req *Request) (*StreamResponse, error) {
	attemptCtx, cancel := context.WithCancel(ctx)
	stop := func() bool { return true }
	if req.Timeout > 0 {
		stop = time.AfterFunc(req.Timeout, cancel).Stop
	}

	resp, err := t.do(attemptCtx, req)
	fired := !stop()
	if err != nil {
		cancel()
		return nil, err
	}
	if fired {
		resp.Body.Close()
		cancel()
		return nil, &Error{Op: "send", URL: req.URL, Err: context.DeadlineExceeded}
	}

	debug.Log("transport", "stream opened", "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer cancel()
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, &StatusError{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}
	}
	return &StreamResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       &cancelOnClose{ReadCloser: resp.Body, cancel: cancel},
	}, nil
}

// cancelOnClose releases the attempt context together with the body.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func (t *HTTPTransport) do(ctx context.Context, req *Request) (*http.Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, bytes.NewReader(req.Body))
	if err != nil {
		return nil, &Error{Op: "create request", URL: req.URL, Err: err}
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	debug.Log("transport", "sending request", "method", method, "url", req.URL, "body_bytes", len(req.Body))
	if debug.TraceIsEnabled("transport") {
		debug.Raw("transport", fmt.Sprintf(">>> %s %s\n%s", method, req.URL, req.Body))
	}

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, &Error{Op: "send", URL: req.URL, Err: err}
	}
	return resp, nil
}

// Clone returns a deep copy of req, so the copy's headers can be modified
// without affecting the original.
func (r *Request) Clone() *Request {
	c := *r
	c.Header = r.Header.Clone()
	if c.Header == nil {
		c.Header = http.Header{}
	}
	return &c
}
