// Package transport sends vendor requests over HTTP and retries them.
//
// A [Transport] executes one attempt: [Transport.Execute] buffers the whole
// response body, [Transport.Stream] hands the open body to the caller.
// Non-2xx responses come back as a [*StatusError] so the retry executor can
// classify them. [Run] wraps any send function with the retry policy and
// reports every attempt to a [RequestTelemetry].
//
// Cross-cutting concerns (request IDs, logging) are expressed as
// [Middleware] wrapping a Transport, composed with [Chain].
package transport
