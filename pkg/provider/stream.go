package provider

import (
	"context"
	"io"
	"sync"

	"github.com/ce-data-e/opencodex/pkg/api"
)

// Result is one element of a ResponseStream: an event or a terminal error.
type Result struct {
	Event api.Event
	Err   error
}

// ResponseStream is the consumer side of one call. Events arrive in
// production order; the stream ends after EventCompleted, after an error
// result, or when the producer stops.
//
// Close cancels the call. Go cannot observe a receiver that simply stops
// reading, so consumers that abandon a stream early must call Close (or
// cancel the call's context) to release the producer and the connection.
type ResponseStream struct {
	ch     chan Result
	cancel context.CancelFunc
	once   sync.Once
}

// Emitter is the producer side of a ResponseStream. It is owned by a single
// goroutine.
//
// Sends are best effort: they block while the buffer is full, and are
// silently discarded once the consumer has closed the stream or the call
// context has ended. Send reports whether the event was delivered so the
// producer can stop early.
type Emitter struct {
	ctx context.Context
	ch  chan<- Result
}

// NewResponseStream creates a stream with the given buffer capacity. The
// returned context is cancelled when the consumer closes the stream or
// parent ends; the producer should use it for all its blocking work.
func NewResponseStream(parent context.Context, capacity int) (*ResponseStream, *Emitter, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan Result, capacity)
	return &ResponseStream{ch: ch, cancel: cancel}, &Emitter{ctx: ctx, ch: ch}, ctx
}

// Send delivers an event.
func (e *Emitter) Send(ev api.Event) bool {
	return e.send(Result{Event: ev})
}

// Fail delivers a terminal error. The producer must not send anything after it.
func (e *Emitter) Fail(err error) bool {
	return e.send(Result{Err: err})
}

func (e *Emitter) send(r Result) bool {
	if e.ctx.Err() != nil {
		return false
	}
	select {
	case e.ch <- r:
		return true
	case <-e.ctx.Done():
		return false
	}
}

// Close marks the end of production. It must be called exactly once, by the
// producer goroutine.
func (e *Emitter) Close() {
	close(e.ch)
}

// Recv returns the next event. It returns io.EOF after the last event, the
// stream's error if the producer failed, or ctx.Err() if ctx ends first.
func (s *ResponseStream) Recv(ctx context.Context) (api.Event, error) {
	select {
	case r, ok := <-s.ch:
		if !ok {
			return api.Event{}, io.EOF
		}
		if r.Err != nil {
			return api.Event{}, r.Err
		}
		return r.Event, nil
	case <-ctx.Done():
		return api.Event{}, ctx.Err()
	}
}

// Events exposes the underlying channel for range loops and selects.
func (s *ResponseStream) Events() <-chan Result {
	return s.ch
}

// Close cancels the call and releases the producer. It is safe to call
// more than once and concurrently with Recv.
func (s *ResponseStream) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// Collect drains the stream and returns every event received. If the
// stream fails, the events delivered before the failure are returned along
// with the error. The stream is closed on return.
func (s *ResponseStream) Collect(ctx context.Context) ([]api.Event, error) {
	defer s.Close()
	var events []api.Event
	for {
		ev, err := s.Recv(ctx)
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}
