// Package openaicompat speaks the OpenAI-compatible Chat Completions wire
// protocol (/chat/completions). It builds chat requests from the neutral
// prompt model, sends them through the shared executor and turns the
// streamed chunks (or a single batch response) into the ordered event
// stream.
//
// Tool call deltas are assembled by index and emitted as whole function
// calls once the backend reports a finish reason or the stream ends.
package openaicompat
