// Package api defines the normalized model shared by every vendor adapter.
//
// A caller describes a conversation once, as a [Prompt] made of [Item]
// values and [ToolSpec] definitions. Vendor request builders translate that
// prompt into their own wire format, and vendor response parsers translate
// replies back into an ordered sequence of [Event] values that ends with
// exactly one [EventCompleted] or with an error.
//
// Core types:
//   - [Item]: Polymorphic unit of conversation (message, function_call, function_call_output, reasoning, ...)
//   - [Prompt]: Instructions, input items and tools for one model call
//   - [Event]: Normalized output event (item added, text delta, item done, completed)
//   - [TokenUsage]: Token accounting reported with the completion event
//   - [APIError]: Structured error with type, status, code, param, and message
//
// The package performs no I/O and depends only on the standard library.
package api
