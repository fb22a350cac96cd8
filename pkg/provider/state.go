package provider

import (
	"fmt"
	"strings"

	"github.com/ce-data-e/opencodex/pkg/api"
	"github.com/ce-data-e/opencodex/pkg/debug"
)

// StreamState turns vendor-agnostic parse results into ordered events. It
// owns the pending assistant message, the per-stream call counter and the
// completion flag. It is used by exactly one producer goroutine.
//
// Once the stream is terminated (completed or failed) every further call
// is a no-op, which keeps EventCompleted last.
type StreamState struct {
	name      string
	prefix    string
	emit      *Emitter
	telemetry StreamTelemetry

	pending *strings.Builder
	callSeq int
	done    bool
	gone    bool
	err     error

	// Usage is the most recently reported token usage.
	Usage *api.TokenUsage
	// ResponseID is the most recently reported vendor response ID.
	ResponseID string
}

// NewStreamState creates the state for one stream. prefix is used for
// synthesized call IDs ("<prefix>_call_<n>").
func NewStreamState(name, prefix string, emit *Emitter, telemetry StreamTelemetry) *StreamState {
	return &StreamState{name: name, prefix: prefix, emit: emit, telemetry: telemetry}
}

// Done reports whether the stream has terminated or the consumer is gone.
// Producers stop reading input once it returns true.
func (s *StreamState) Done() bool {
	return s.done || s.gone
}

func (s *StreamState) send(ev api.Event) {
	if s.Done() {
		return
	}
	if !s.emit.Send(ev) {
		s.gone = true
	}
}

// Text appends a fragment to the pending assistant message, opening one
// first if necessary. Empty fragments are ignored.
func (s *StreamState) Text(fragment string) {
	if fragment == "" || s.Done() {
		return
	}
	if s.pending == nil {
		s.pending = &strings.Builder{}
		s.send(api.OutputItemAdded(assistantMessage("")))
	}
	s.pending.WriteString(fragment)
	s.send(api.OutputTextDelta(fragment))
}

// FlushMessage completes the pending assistant message, if any.
func (s *StreamState) FlushMessage() {
	if s.pending == nil {
		return
	}
	text := s.pending.String()
	s.pending = nil
	s.send(api.OutputItemDone(assistantMessage(text)))
}

// NextCallID returns the next synthesized call ID for this stream.
func (s *StreamState) NextCallID() string {
	s.callSeq++
	return fmt.Sprintf("%s_call_%d", s.prefix, s.callSeq)
}

// FunctionCall flushes the pending message and emits a finished function
// call. An empty CallID is replaced with a synthesized one.
func (s *StreamState) FunctionCall(fc api.FunctionCallData) {
	if s.Done() {
		return
	}
	s.FlushMessage()
	if fc.CallID == "" {
		fc.CallID = s.NextCallID()
	}
	debug.Log("streaming", "function call", "provider", s.name, "name", fc.Name, "call_id", fc.CallID)
	s.send(api.OutputItemDone(api.Item{Type: api.ItemTypeFunctionCall, FunctionCall: &fc}))
}

// Complete flushes the pending message and emits the single completion
// event with the last-seen usage. It terminates the stream.
func (s *StreamState) Complete() {
	if s.Done() {
		return
	}
	s.FlushMessage()
	s.send(api.Completed(s.ResponseID, s.Usage))
	s.done = true
	if s.telemetry != nil {
		s.telemetry.OnStreamCompleted(s.name, s.Usage)
	}
}

// Fail emits a terminal error. Already delivered events stay delivered.
func (s *StreamState) Fail(err error) {
	if s.Done() {
		return
	}
	debug.Log("streaming", "stream failed", "provider", s.name, "error", err.Error())
	s.err = err
	if !s.emit.Fail(err) {
		s.gone = true
	}
	s.done = true
}

// Err returns the error the stream failed with, if any.
func (s *StreamState) Err() error {
	return s.err
}

// Finish handles the end of input: a stream that was neither completed nor
// failed is completed now.
func (s *StreamState) Finish() {
	s.Complete()
}

func assistantMessage(text string) api.Item {
	msg := &api.MessageData{Role: api.RoleAssistant}
	if text != "" {
		msg.Content = []api.ContentPart{{Type: api.ContentTypeOutputText, Text: text}}
	}
	return api.Item{Type: api.ItemTypeMessage, Message: msg}
}
