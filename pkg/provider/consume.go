package provider

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/ce-data-e/opencodex/pkg/api"
)

// ConsumeSSE reads events from r and hands every non-empty payload to
// handle until the stream terminates. Each wait is bounded by idle and
// reported to the state's telemetry. End of input calls end (s.Finish when
// nil); an idle timeout or a read error fails the stream. Cancellation of
// ctx just stops.
func ConsumeSSE(ctx context.Context, s *StreamState, r *SSEReader, idle time.Duration, handle func(data []byte), end func()) {
	if end == nil {
		end = s.Finish
	}
	for !s.Done() {
		start := time.Now()
		ev, err := r.Next(ctx, idle)
		if s.telemetry != nil {
			pollErr := err
			if err == io.EOF {
				pollErr = nil
			}
			s.telemetry.OnStreamPoll(s.name, pollErr, time.Since(start))
		}

		switch {
		case err == io.EOF:
			end()
			return
		case errors.Is(err, ErrIdleTimeout):
			s.Fail(api.NewStreamError(ErrIdleTimeout.Error()))
			return
		case ctx.Err() != nil:
			return
		case err != nil:
			s.Fail(api.NewStreamError("reading SSE: " + err.Error()))
			return
		}

		data := bytes.TrimSpace(ev.Data)
		if len(data) == 0 {
			continue
		}
		handle(data)
	}
}
