package gemini

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ce-data-e/opencodex/pkg/api"
	"github.com/ce-data-e/opencodex/pkg/debug"
	"github.com/ce-data-e/opencodex/pkg/provider"
)

// callIDPrefix prefixes call IDs synthesized for Gemini function calls,
// which carry no ID of their own.
const callIDPrefix = "gemini"

// handleChunk feeds one response (or SSE chunk) into the state machine.
// Parts are handled before the finish reason so that text arriving in the
// final chunk is still delivered.
func handleChunk(s *provider.StreamState, chunk *GenerateContentResponse) {
	if chunk.UsageMetadata != nil {
		s.Usage = convertUsage(chunk.UsageMetadata)
	}
	if chunk.ResponseID != "" {
		s.ResponseID = chunk.ResponseID
	}

	if len(chunk.Candidates) == 0 {
		if chunk.PromptFeedback != nil && chunk.PromptFeedback.BlockReason != "" {
			s.Fail(api.NewStreamError("Prompt blocked: " + chunk.PromptFeedback.BlockReason))
		}
		return
	}

	cand := chunk.Candidates[0]
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			switch {
			case part.FunctionCall != nil:
				args := "{}"
				if len(part.FunctionCall.Args) > 0 && string(part.FunctionCall.Args) != "null" {
					args = string(part.FunctionCall.Args)
				}
				s.FunctionCall(api.FunctionCallData{
					Name:             part.FunctionCall.Name,
					Arguments:        args,
					ThoughtSignature: part.ThoughtSignature,
				})
			case part.Thought:
				debug.Trace("streaming", "skipping thought part", "bytes", len(part.Text))
			case part.Text != "":
				s.Text(part.Text)
			}
		}
	}

	switch cand.FinishReason {
	case "":
	case FinishReasonStop:
		s.Complete()
	case FinishReasonMaxTokens:
		s.Fail(api.NewContextWindowExceededError())
	case FinishReasonSafety:
		s.Fail(api.NewStreamError("Response blocked by safety filters"))
	default:
		debug.Log("streaming", "ignoring gemini finish reason", "reason", cand.FinishReason)
	}
}

func convertUsage(u *UsageMetadata) *api.TokenUsage {
	return &api.TokenUsage{
		InputTokens:           u.PromptTokenCount,
		CachedInputTokens:     u.CachedContentTokenCount,
		OutputTokens:          u.CandidatesTokenCount,
		ReasoningOutputTokens: u.ThoughtsTokenCount,
		TotalTokens:           u.TotalTokenCount,
	}
}

// replayBatch decodes a complete generateContent body and replays it
// through the state machine.
func replayBatch(s *provider.StreamState, body []byte) {
	var resp GenerateContentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		s.Fail(api.NewParseError("failed to parse gemini response", err))
		return
	}
	handleChunk(s, &resp)
	s.Finish()
}

// consumeSSE feeds SSE chunks into the state machine until the stream
// terminates. Malformed chunks are skipped.
func consumeSSE(ctx context.Context, s *provider.StreamState, r *provider.SSEReader, idle time.Duration) {
	provider.ConsumeSSE(ctx, s, r, idle, func(data []byte) {
		debug.Trace("streaming", "gemini chunk", "data", debug.Truncate(string(data), 2048))

		var chunk GenerateContentResponse
		if err := json.Unmarshal(data, &chunk); err != nil {
			debug.Log("streaming", "skipping malformed gemini chunk", "error", err.Error())
			return
		}
		handleChunk(s, &chunk)
	}, nil)
}
