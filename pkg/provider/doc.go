// Package provider defines the vendor-neutral endpoint contract.
//
// An [Endpoint] takes a [api.Prompt], builds the vendor request, sends it
// through the retrying transport and returns a [ResponseStream] of
// normalized events. Each vendor adapter (gemini, openaicompat) implements
// Endpoint in its own subpackage and shares the pieces defined here: the
// immutable [Config], the stream and its producer-side [Emitter], the SSE
// reader with idle timeout, and HTTP error mapping.
package provider
