package openaicompat

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/ce-data-e/opencodex/pkg/api"
	"github.com/ce-data-e/opencodex/pkg/provider"
)

func sseBody(chunks ...string) string {
	var sb strings.Builder
	for _, c := range chunks {
		sb.WriteString("data: ")
		sb.WriteString(c)
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func runSSE(t *testing.T, body io.ReadCloser, idle time.Duration) ([]api.Event, error) {
	t.Helper()
	stream, emit, pctx := provider.NewResponseStream(context.Background(), provider.StreamChannelCapacity)
	go func() {
		defer emit.Close()
		r := provider.NewSSEReader(body)
		defer r.Close()
		consumeSSE(pctx, provider.NewStreamState("chat", callIDPrefix, emit, nil), r, idle)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return stream.Collect(ctx)
}

func runChunks(t *testing.T, chunks ...string) ([]api.Event, error) {
	t.Helper()
	return runSSE(t, io.NopCloser(strings.NewReader(sseBody(chunks...))), time.Second)
}

func eventTypes(events []api.Event) []api.EventType {
	types := make([]api.EventType, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}

func assertTypes(t *testing.T, events []api.Event, want ...api.EventType) {
	t.Helper()
	got := eventTypes(events)
	if len(got) != len(want) {
		t.Fatalf("event types = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event types = %v, want %v", got, want)
		}
	}
}

func assertOrdered(t *testing.T, events []api.Event) {
	t.Helper()
	var order api.EventOrder
	for i, ev := range events {
		if err := order.Observe(ev); err != nil {
			t.Fatalf("events[%d]: %v", i, err)
		}
	}
}

func TestStream_TextDeltas(t *testing.T) {
	events, err := runChunks(t,
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{"role":"assistant"},"finish_reason":null}]}`,
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{"content":"Hello"},"finish_reason":null}]}`,
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{"content":" world"},"finish_reason":null}]}`,
		`{"id":"chatcmpl-1","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}`,
		`{"id":"chatcmpl-1","choices":[],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7,"prompt_tokens_details":{"cached_tokens":3},"completion_tokens_details":{"reasoning_tokens":1}}}`,
		`[DONE]`,
	)
	if err != nil {
		t.Fatalf("stream error = %v", err)
	}

	assertTypes(t, events,
		api.EventOutputItemAdded,
		api.EventOutputTextDelta,
		api.EventOutputTextDelta,
		api.EventOutputItemDone,
		api.EventCompleted,
	)
	assertOrdered(t, events)

	if got := events[3].Item.Message.Text(); got != "Hello world" {
		t.Errorf("done text = %q", got)
	}
	done := events[4]
	if done.ResponseID != "chatcmpl-1" {
		t.Errorf("ResponseID = %q", done.ResponseID)
	}
	want := api.TokenUsage{InputTokens: 5, CachedInputTokens: 3, OutputTokens: 2, ReasoningOutputTokens: 1, TotalTokens: 7}
	if done.Usage == nil || *done.Usage != want {
		t.Errorf("Usage = %+v, want %+v (trailing usage chunk)", done.Usage, want)
	}
}

func TestStream_ToolCallsBufferedByIndex(t *testing.T) {
	events, err := runChunks(t,
		`{"choices":[{"delta":{"content":"Checking."}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":1,"id":"call_b","type":"function","function":{"name":"get_time","arguments":""}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_a","type":"function","function":{"name":"get_weather","arguments":"{\"ci"}}]}}]}`,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"ty\":\"Paris\"}"}}]}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"tool_calls"}]}`,
		`[DONE]`,
	)
	if err != nil {
		t.Fatalf("stream error = %v", err)
	}

	assertTypes(t, events,
		api.EventOutputItemAdded,
		api.EventOutputTextDelta,
		api.EventOutputItemDone,
		api.EventOutputItemDone,
		api.EventOutputItemDone,
		api.EventCompleted,
	)
	assertOrdered(t, events)

	first := events[3].Item.FunctionCall
	if first.CallID != "call_a" || first.Name != "get_weather" || first.Arguments != `{"city":"Paris"}` {
		t.Errorf("first call = %+v", first)
	}
	second := events[4].Item.FunctionCall
	if second.CallID != "call_b" || second.Arguments != "{}" {
		t.Errorf("second call = %+v", second)
	}
}

func TestStream_SynthesizesMissingCallIDs(t *testing.T) {
	events, err := runChunks(t,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"name":"a","arguments":"{}"}},{"index":1,"function":{"name":"b","arguments":"{}"}}]},"finish_reason":"tool_calls"}]}`,
	)
	if err != nil {
		t.Fatalf("stream error = %v", err)
	}
	if id := events[0].Item.FunctionCall.CallID; id != "chat_call_1" {
		t.Errorf("call id = %q, want chat_call_1", id)
	}
	if id := events[1].Item.FunctionCall.CallID; id != "chat_call_2" {
		t.Errorf("call id = %q, want chat_call_2", id)
	}
}

func TestStream_EOFFlushesToolCalls(t *testing.T) {
	events, err := runChunks(t,
		`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"c1","function":{"name":"f","arguments":"{\"x\":1}"}}]}}]}`,
	)
	if err != nil {
		t.Fatalf("stream error = %v", err)
	}
	assertTypes(t, events, api.EventOutputItemDone, api.EventCompleted)
	if got := events[0].Item.FunctionCall.Arguments; got != `{"x":1}` {
		t.Errorf("arguments = %q", got)
	}
}

func TestStream_Length(t *testing.T) {
	events, err := runChunks(t,
		`{"choices":[{"delta":{"content":"partial"}}]}`,
		`{"choices":[{"delta":{},"finish_reason":"length"}]}`,
		`[DONE]`,
	)
	if !errors.Is(err, api.ErrContextWindowExceeded) {
		t.Fatalf("stream error = %v, want context window exceeded", err)
	}
	assertTypes(t, events, api.EventOutputItemAdded, api.EventOutputTextDelta)
}

func TestStream_ContentFilter(t *testing.T) {
	_, err := runChunks(t,
		`{"choices":[{"delta":{},"finish_reason":"content_filter"}]}`,
	)
	if !errors.Is(err, api.ErrStream) {
		t.Fatalf("stream error = %v, want stream error", err)
	}
}

func TestStream_MalformedChunkSkipped(t *testing.T) {
	events, err := runChunks(t,
		`{"choices":[{"delta":{"content":"a"}}]}`,
		`{broken`,
		`{"choices":[{"delta":{"content":"b"},"finish_reason":"stop"}]}`,
		`[DONE]`,
	)
	if err != nil {
		t.Fatalf("stream error = %v", err)
	}
	if got := events[len(events)-2].Item.Message.Text(); got != "ab" {
		t.Errorf("text = %q, want ab", got)
	}
}

func TestStream_NothingAfterDone(t *testing.T) {
	events, err := runChunks(t,
		`{"choices":[{"delta":{"content":"a"},"finish_reason":"stop"}]}`,
		`[DONE]`,
		`{"choices":[{"delta":{"content":"late"}}]}`,
	)
	if err != nil {
		t.Fatalf("stream error = %v", err)
	}
	if last := events[len(events)-1]; last.Type != api.EventCompleted {
		t.Errorf("last event = %s, want Completed", last.Type)
	}
	assertOrdered(t, events)
}

func TestStream_IdleTimeout(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	go func() {
		pw.Write([]byte(sseBody(`{"choices":[{"delta":{"content":"hi"}}]}`)))
	}()

	events, err := runSSE(t, pr, 200*time.Millisecond)
	if !errors.Is(err, api.ErrStream) || !strings.Contains(err.Error(), "idle timeout waiting for SSE") {
		t.Fatalf("stream error = %v, want idle timeout", err)
	}
	assertTypes(t, events, api.EventOutputItemAdded, api.EventOutputTextDelta)
}

func TestReplayBatch(t *testing.T) {
	body := `{
		"id":"chatcmpl-9",
		"choices":[{"index":0,"message":{"role":"assistant","content":"Let me look.","tool_calls":[
			{"id":"call_1","type":"function","function":{"name":"search","arguments":"{\"q\":\"go\"}"}},
			{"id":"call_2","type":"function","function":{"name":"noop","arguments":""}}
		]},"finish_reason":"tool_calls"}],
		"usage":{"prompt_tokens":9,"completion_tokens":4,"total_tokens":13}
	}`

	stream, emit, _ := provider.NewResponseStream(context.Background(), provider.BatchChannelCapacity)
	go func() {
		defer emit.Close()
		replayBatch(provider.NewStreamState("chat", callIDPrefix, emit, nil), []byte(body))
	}()
	events, err := stream.Collect(context.Background())
	if err != nil {
		t.Fatalf("error = %v", err)
	}

	assertTypes(t, events,
		api.EventOutputItemAdded,
		api.EventOutputTextDelta,
		api.EventOutputItemDone,
		api.EventOutputItemDone,
		api.EventOutputItemDone,
		api.EventCompleted,
	)
	assertOrdered(t, events)
	if events[3].Item.FunctionCall.CallID != "call_1" || events[4].Item.FunctionCall.Arguments != "{}" {
		t.Errorf("calls = %+v, %+v", events[3].Item.FunctionCall, events[4].Item.FunctionCall)
	}
	if last := events[5]; last.ResponseID != "chatcmpl-9" || last.Usage.TotalTokens != 13 {
		t.Errorf("completed = %+v", last)
	}
}

func TestReplayBatch_NullContent(t *testing.T) {
	stream, emit, _ := provider.NewResponseStream(context.Background(), provider.BatchChannelCapacity)
	go func() {
		defer emit.Close()
		replayBatch(provider.NewStreamState("chat", callIDPrefix, emit, nil),
			[]byte(`{"choices":[{"message":{"role":"assistant","content":null},"finish_reason":"stop"}]}`))
	}()
	events, err := stream.Collect(context.Background())
	if err != nil {
		t.Fatalf("error = %v", err)
	}
	assertTypes(t, events, api.EventCompleted)
}

func TestReplayBatch_Length(t *testing.T) {
	stream, emit, _ := provider.NewResponseStream(context.Background(), provider.BatchChannelCapacity)
	go func() {
		defer emit.Close()
		replayBatch(provider.NewStreamState("chat", callIDPrefix, emit, nil),
			[]byte(`{"choices":[{"message":{"role":"assistant","content":"cut"},"finish_reason":"length"}]}`))
	}()
	if _, err := stream.Collect(context.Background()); !errors.Is(err, api.ErrContextWindowExceeded) {
		t.Errorf("error = %v, want context window exceeded", err)
	}
}

func TestReplayBatch_InvalidBody(t *testing.T) {
	stream, emit, _ := provider.NewResponseStream(context.Background(), provider.BatchChannelCapacity)
	go func() {
		defer emit.Close()
		replayBatch(provider.NewStreamState("chat", callIDPrefix, emit, nil), []byte(`<html>`))
	}()
	_, err := stream.Collect(context.Background())
	if !errors.Is(err, api.ErrStream) {
		t.Errorf("error = %v, want stream error", err)
	}
	if err == nil || !strings.Contains(err.Error(), "failed to parse chat completion") {
		t.Errorf("error = %v, want parse failure message", err)
	}
}
