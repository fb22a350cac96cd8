package transport

import (
	"context"
	"log/slog"
	"time"
)

// Logging returns middleware that emits a structured log entry for each
// attempt: method, URL, request ID, status, duration and error.
func Logging(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	log := func(ctx context.Context, req *Request, start time.Time, status int, err error) {
		attrs := []slog.Attr{
			slog.String("method", req.Method),
			slog.String("url", req.URL),
			slog.String("request_id", req.Header.Get(HeaderRequestID)),
			slog.Duration("duration", time.Since(start)),
		}
		if status != 0 {
			attrs = append(attrs, slog.Int("status", status))
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
			logger.LogAttrs(ctx, slog.LevelWarn, "provider request failed", attrs...)
			return
		}
		logger.LogAttrs(ctx, slog.LevelDebug, "provider request completed", attrs...)
	}

	return func(next Transport) Transport {
		return Funcs{
			ExecuteFunc: func(ctx context.Context, req *Request) (*Response, error) {
				start := time.Now()
				resp, err := next.Execute(ctx, req)
				log(ctx, req, start, attemptStatus(resp, err), err)
				return resp, err
			},
			StreamFunc: func(ctx context.Context, req *Request) (*StreamResponse, error) {
				start := time.Now()
				resp, err := next.Stream(ctx, req)
				log(ctx, req, start, attemptStatus(resp, err), err)
				return resp, err
			},
		}
	}
}
