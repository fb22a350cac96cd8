package transport

import (
	"context"

	"github.com/google/uuid"
)

// HeaderRequestID is the header carrying the logical call ID. It stays the
// same across retries of one call.
const HeaderRequestID = "X-Request-Id"

// NewRequestID returns a fresh random request ID.
func NewRequestID() string {
	return uuid.NewString()
}

// RequestID returns middleware that makes sure every attempt carries an
// X-Request-Id header. An ID already present on the request wins, then one
// stored in the context, then a freshly generated one.
func RequestID() Middleware {
	return func(next Transport) Transport {
		stamp := func(ctx context.Context, req *Request) *Request {
			if req.Header.Get(HeaderRequestID) != "" {
				return req
			}
			id := RequestIDFromContext(ctx)
			if id == "" {
				id = NewRequestID()
			}
			req = req.Clone()
			req.Header.Set(HeaderRequestID, id)
			return req
		}
		return Funcs{
			ExecuteFunc: func(ctx context.Context, req *Request) (*Response, error) {
				return next.Execute(ctx, stamp(ctx, req))
			},
			StreamFunc: func(ctx context.Context, req *Request) (*StreamResponse, error) {
				return next.Stream(ctx, stamp(ctx, req))
			},
		}
	}
}
