package observability

import (
	"context"
	"io"
	"sync"

	"github.com/ce-data-e/opencodex/pkg/transport"
)

// StreamMetrics returns transport middleware that keeps
// opencodex_streaming_connections_active in step with the number of
// streaming response bodies that are open. Buffered requests pass through.
func StreamMetrics() transport.Middleware {
	return func(next transport.Transport) transport.Transport {
		return transport.Funcs{
			ExecuteFunc: next.Execute,
			StreamFunc: func(ctx context.Context, req *transport.Request) (*transport.StreamResponse, error) {
				resp, err := next.Stream(ctx, req)
				if err != nil {
					return nil, err
				}
				StreamingConnections.Inc()
				resp.Body = &trackedBody{ReadCloser: resp.Body}
				return resp, nil
			},
		}
	}
}

// trackedBody decrements the connection gauge exactly once on Close.
type trackedBody struct {
	io.ReadCloser
	once sync.Once
}

func (b *trackedBody) Close() error {
	b.once.Do(StreamingConnections.Dec)
	return b.ReadCloser.Close()
}
