package transport

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// maxRetryAfter caps server-requested delays.
const maxRetryAfter = 30 * time.Second

// Policy controls how many times a request is attempted and which failures
// are retried.
type Policy struct {
	// MaxAttempts includes the initial attempt. Values below 1 mean 1.
	MaxAttempts int
	// BaseDelay is the delay before the first retry; it doubles per retry.
	BaseDelay time.Duration

	Retry429       bool
	Retry5xx       bool
	RetryTransport bool
}

// DefaultPolicy returns the policy used when a provider configures none.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    4,
		BaseDelay:      200 * time.Millisecond,
		Retry429:       true,
		Retry5xx:       true,
		RetryTransport: true,
	}
}

// RequestTelemetry observes every attempt made by Run. status is 0 when no
// HTTP response was received.
type RequestTelemetry interface {
	OnRequest(attempt int, status int, err error, elapsed time.Duration)
}

// Class categorizes a failed attempt for retry decisions.
type Class int

const (
	ClassNone Class = iota
	ClassTransport
	ClassRateLimited
	ClassServer
	ClassOther
)

// Classify returns the retry class of err.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == 429:
			return ClassRateLimited
		case se.StatusCode >= 500:
			return ClassServer
		default:
			return ClassOther
		}
	}
	var te *Error
	if errors.As(err, &te) {
		return ClassTransport
	}
	return ClassOther
}

func (p Policy) allows(c Class) bool {
	switch c {
	case ClassTransport:
		return p.RetryTransport
	case ClassRateLimited:
		return p.Retry429
	case ClassServer:
		return p.Retry5xx
	}
	return false
}

// NewBackOff returns the exponential schedule for p: BaseDelay doubling
// per retry with +/-10% jitter, capped at 30s per wait.
func (p Policy) NewBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.RandomizationFactor = 0.1
	b.Multiplier = 2
	b.MaxInterval = maxRetryAfter
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// retryAfterBackOff lets a 429 response replace the next scheduled delay.
type retryAfterBackOff struct {
	backoff.BackOff
	after    time.Duration
	hasAfter bool
}

func (b *retryAfterBackOff) override(d time.Duration) {
	b.after = min(d, maxRetryAfter)
	b.hasAfter = true
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if b.hasAfter && next != backoff.Stop {
		next = b.after
	}
	b.hasAfter = false
	return next
}

func (b *retryAfterBackOff) Reset() {
	b.BackOff.Reset()
	b.hasAfter = false
}

type statusCoder interface {
	Status() int
}

// Status returns the HTTP status code.
func (r *Response) Status() int { return r.StatusCode }

// Status returns the HTTP status code.
func (r *StreamResponse) Status() int { return r.StatusCode }

// Run sends a request built by factory through send, retrying according
// to p. factory is called once per attempt so that every attempt gets a
// fresh, identical request. Errors from factory are returned unretried.
// Telemetry, when non-nil, sees every attempt.
func Run[T any](ctx context.Context, p Policy, tel RequestTelemetry, factory func() (*Request, error), send func(context.Context, *Request) (T, error)) (T, error) {
	var zero T
	maxAttempts := max(p.MaxAttempts, 1)
	schedule := &retryAfterBackOff{BackOff: p.NewBackOff()}
	b := backoff.WithContext(backoff.WithMaxRetries(schedule, uint64(maxAttempts-1)), ctx)

	attempt := 0
	operation := func() (T, error) {
		attempt++
		req, err := factory()
		if err != nil {
			return zero, backoff.Permanent(err)
		}

		start := time.Now()
		v, err := send(ctx, req)
		elapsed := time.Since(start)

		if tel != nil {
			tel.OnRequest(attempt, attemptStatus(v, err), err, elapsed)
		}
		if err == nil {
			return v, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, backoff.Permanent(ctxErr)
		}

		class := Classify(err)
		if !p.allows(class) {
			return zero, backoff.Permanent(err)
		}
		var se *StatusError
		if class == ClassRateLimited && errors.As(err, &se) {
			if ra, ok := se.RetryAfter(time.Now()); ok {
				schedule.override(ra)
			}
		}
		return zero, err
	}

	notify := func(err error, delay time.Duration) {
		slog.Warn("retrying request",
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"delay", delay,
			"error", err.Error(),
		)
	}

	v, err := backoff.RetryNotifyWithData(operation, b, notify)
	if err != nil {
		return zero, err
	}
	return v, nil
}

func attemptStatus(v any, err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	if err != nil {
		return 0
	}
	if sc, ok := v.(statusCoder); ok {
		return sc.Status()
	}
	return 200
}
