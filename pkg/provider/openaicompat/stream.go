package openaicompat

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"time"

	"github.com/ce-data-e/opencodex/pkg/api"
	"github.com/ce-data-e/opencodex/pkg/debug"
	"github.com/ce-data-e/opencodex/pkg/provider"
)

// callIDPrefix prefixes call IDs synthesized for tool calls that arrive
// without a vendor ID.
const callIDPrefix = "chat"

// doneSentinel is the payload of the final SSE event.
const doneSentinel = "[DONE]"

// toolCallBuffer assembles one tool call from its deltas.
type toolCallBuffer struct {
	id   string
	name string
	args strings.Builder
}

// chunkParser carries the per-stream tool call buffers on top of the
// shared state machine. It is owned by the producer goroutine.
type chunkParser struct {
	state *provider.StreamState
	calls map[int]*toolCallBuffer
}

func newChunkParser(s *provider.StreamState) *chunkParser {
	return &chunkParser{state: s, calls: make(map[int]*toolCallBuffer)}
}

// handleChunk feeds one chunk into the state machine. A normal finish
// reason only flushes: completion waits for [DONE] or end of input so that
// a trailing usage chunk is still reported.
func (p *chunkParser) handleChunk(chunk *ChatCompletionChunk) {
	s := p.state
	if chunk.Usage != nil {
		s.Usage = convertUsage(chunk.Usage)
	}
	if chunk.ID != "" {
		s.ResponseID = chunk.ID
	}
	if len(chunk.Choices) == 0 {
		return
	}

	choice := chunk.Choices[0]
	delta := choice.Delta
	if delta.ReasoningContent != nil && *delta.ReasoningContent != "" {
		debug.Trace("streaming", "skipping reasoning delta", "bytes", len(*delta.ReasoningContent))
	}
	if delta.Content != nil {
		s.Text(*delta.Content)
	}
	for _, tc := range delta.ToolCalls {
		buf, ok := p.calls[tc.Index]
		if !ok {
			buf = &toolCallBuffer{}
			p.calls[tc.Index] = buf
		}
		if tc.ID != "" {
			buf.id = tc.ID
		}
		if tc.Function.Name != "" {
			buf.name = tc.Function.Name
		}
		buf.args.WriteString(tc.Function.Arguments)
	}

	if choice.FinishReason == nil {
		return
	}
	switch reason := *choice.FinishReason; reason {
	case FinishReasonStop, FinishReasonToolCalls:
		p.flushCalls()
		s.FlushMessage()
	case FinishReasonLength:
		s.Fail(api.NewContextWindowExceededError())
	case FinishReasonContentFilter:
		s.Fail(api.NewStreamError("Response blocked by content filter"))
	case "":
	default:
		debug.Log("streaming", "ignoring chat finish reason", "reason", reason)
		p.flushCalls()
	}
}

// flushCalls emits every buffered tool call in index order.
func (p *chunkParser) flushCalls() {
	if len(p.calls) == 0 {
		return
	}
	indices := make([]int, 0, len(p.calls))
	for i := range p.calls {
		indices = append(indices, i)
	}
	slices.Sort(indices)

	for _, i := range indices {
		buf := p.calls[i]
		p.state.FunctionCall(api.FunctionCallData{
			Name:      buf.name,
			CallID:    buf.id,
			Arguments: string(provider.ParseArguments(buf.args.String())),
		})
	}
	clear(p.calls)
}

// finish flushes leftover tool calls and completes the stream.
func (p *chunkParser) finish() {
	p.flushCalls()
	p.state.Finish()
}

func convertUsage(u *ChatUsage) *api.TokenUsage {
	usage := &api.TokenUsage{
		InputTokens:  u.PromptTokens,
		OutputTokens: u.CompletionTokens,
		TotalTokens:  u.TotalTokens,
	}
	if u.PromptTokensDetails != nil {
		usage.CachedInputTokens = u.PromptTokensDetails.CachedTokens
	}
	if u.CompletionTokensDetails != nil {
		usage.ReasoningOutputTokens = u.CompletionTokensDetails.ReasoningTokens
	}
	return usage
}

// replayBatch decodes a complete chat completion and replays it through
// the state machine as a single chunk.
func replayBatch(s *provider.StreamState, body []byte) {
	var resp ChatCompletionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		s.Fail(api.NewParseError("failed to parse chat completion", err))
		return
	}

	p := newChunkParser(s)
	p.handleChunk(responseToChunk(&resp))
	p.finish()
}

// responseToChunk converts a batch response into the equivalent chunk.
func responseToChunk(resp *ChatCompletionResponse) *ChatCompletionChunk {
	chunk := &ChatCompletionChunk{ID: resp.ID, Model: resp.Model, Usage: resp.Usage}
	if len(resp.Choices) == 0 {
		return chunk
	}
	choice := resp.Choices[0]
	delta := ChatChunkDelta{
		Role:             choice.Message.Role,
		Content:          choice.Message.Content,
		ReasoningContent: choice.Message.ReasoningContent,
	}
	for i, tc := range choice.Message.ToolCalls {
		delta.ToolCalls = append(delta.ToolCalls, ChatChunkToolCall{
			Index:    i,
			ID:       tc.ID,
			Type:     tc.Type,
			Function: ChatChunkFunctionCall{Name: tc.Function.Name, Arguments: tc.Function.Arguments},
		})
	}
	reason := choice.FinishReason
	chunk.Choices = []ChatChunkChoice{{Index: choice.Index, Delta: delta, FinishReason: &reason}}
	return chunk
}

// consumeSSE feeds SSE chunks into the state machine until [DONE], end of
// input or a terminal error. Malformed chunks are skipped. End of input
// without [DONE] still flushes buffered tool calls.
func consumeSSE(ctx context.Context, s *provider.StreamState, r *provider.SSEReader, idle time.Duration) {
	p := newChunkParser(s)
	provider.ConsumeSSE(ctx, s, r, idle, func(data []byte) {
		if string(data) == doneSentinel {
			p.finish()
			return
		}
		debug.Trace("streaming", "chat chunk", "data", debug.Truncate(string(data), 2048))

		var chunk ChatCompletionChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			debug.Log("streaming", "skipping malformed chat chunk", "error", err.Error())
			return
		}
		p.handleChunk(&chunk)
	}, p.finish)
}
