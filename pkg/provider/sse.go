package provider

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/openai/openai-go/packages/ssestream"
)

// ErrIdleTimeout is returned by SSEReader.Next when no event arrives within
// the idle timeout. It reports Timeout() == true like net.Error.
var ErrIdleTimeout error = idleTimeoutError{}

type idleTimeoutError struct{}

func (idleTimeoutError) Error() string { return "idle timeout waiting for SSE" }
func (idleTimeoutError) Timeout() bool { return true }

// SSEEvent is one server-sent event. Data has the trailing newline of the
// last data line removed.
type SSEEvent struct {
	Type string
	Data []byte
}

type sseResult struct {
	event SSEEvent
	err   error
}

// SSEReader decodes server-sent events from a response body and lets the
// caller wait for each event with an idle timeout. A background goroutine
// owns the decoder; Close stops it and closes the body.
type SSEReader struct {
	body   io.ReadCloser
	events chan sseResult
	stop   chan struct{}
	once   sync.Once
}

// NewSSEReader starts decoding body.
func NewSSEReader(body io.ReadCloser) *SSEReader {
	r := &SSEReader{
		body:   body,
		events: make(chan sseResult),
		stop:   make(chan struct{}),
	}
	dec := ssestream.NewDecoder(&http.Response{
		Header: http.Header{"Content-Type": {"text/event-stream"}},
		Body:   body,
	})
	go r.pump(dec)
	return r
}

func (r *SSEReader) pump(dec ssestream.Decoder) {
	defer close(r.events)
	for dec.Next() {
		ev := dec.Event()
		res := sseResult{event: SSEEvent{
			Type: ev.Type,
			Data: bytes.TrimSuffix(bytes.Clone(ev.Data), []byte("\n")),
		}}
		select {
		case r.events <- res:
		case <-r.stop:
			return
		}
	}
	err := dec.Err()
	if err == nil {
		err = io.EOF
	}
	select {
	case r.events <- sseResult{err: err}:
	case <-r.stop:
	}
}

// Next waits for the next event. It returns io.EOF at the end of the body,
// ErrIdleTimeout if idle elapses first (idle <= 0 disables the timeout),
// ctx.Err() if ctx ends, or the read error that stopped the decoder.
func (r *SSEReader) Next(ctx context.Context, idle time.Duration) (SSEEvent, error) {
	var timeout <-chan time.Time
	if idle > 0 {
		t := time.NewTimer(idle)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case res, ok := <-r.events:
		if !ok {
			return SSEEvent{}, io.EOF
		}
		return res.event, res.err
	case <-timeout:
		return SSEEvent{}, ErrIdleTimeout
	case <-ctx.Done():
		return SSEEvent{}, ctx.Err()
	}
}

// Close stops decoding and closes the body. It is safe to call more than once.
func (r *SSEReader) Close() error {
	var err error
	r.once.Do(func() {
		close(r.stop)
		err = r.body.Close()
	})
	return err
}
