package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ce-data-e/opencodex/pkg/provider/openaicompat"
)

func handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req openaicompat.ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request")
		return
	}

	model := req.Model
	if model == "" {
		model = "mock-model"
	}
	sc := classify(lastChatUserText(req.Messages), len(req.Tools) > 0, hasChatSystem(req.Messages))

	if req.Stream {
		streamChat(w, model, sc)
		return
	}

	msg := openaicompat.ChatResponseMessage{Role: "assistant"}
	finish := chatFinish(sc)
	if sc.call != nil {
		msg.ToolCalls = []openaicompat.ChatToolCall{{
			ID:       "call_mock_1",
			Type:     "function",
			Function: openaicompat.ChatFunctionCall{Name: sc.call.name, Arguments: sc.call.arguments},
		}}
	} else {
		text := sc.text()
		msg.Content = &text
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(openaicompat.ChatCompletionResponse{
		ID:      "chatcmpl-mock",
		Object:  "chat.completion",
		Model:   model,
		Choices: []openaicompat.ChatChoice{{Message: msg, FinishReason: finish}},
		Usage:   chatUsage(sc),
	})
}

func streamChat(w http.ResponseWriter, model string, sc scenario) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	send := func(v any) {
		data, _ := json.Marshal(v)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
	chunk := func(delta openaicompat.ChatChunkDelta, finish *string) openaicompat.ChatCompletionChunk {
		return openaicompat.ChatCompletionChunk{
			ID:      "chatcmpl-mock-stream",
			Object:  "chat.completion.chunk",
			Model:   model,
			Choices: []openaicompat.ChatChunkChoice{{Delta: delta, FinishReason: finish}},
		}
	}

	send(chunk(openaicompat.ChatChunkDelta{Role: "assistant"}, nil))
	for _, tok := range sc.tokens {
		send(chunk(openaicompat.ChatChunkDelta{Content: &tok}, nil))
	}
	if sc.call != nil {
		// Arguments arrive in two fragments, as real backends split them.
		half := len(sc.call.arguments) / 2
		send(chunk(openaicompat.ChatChunkDelta{ToolCalls: []openaicompat.ChatChunkToolCall{{
			ID:       "call_mock_1",
			Type:     "function",
			Function: openaicompat.ChatChunkFunctionCall{Name: sc.call.name, Arguments: sc.call.arguments[:half]},
		}}}, nil))
		send(chunk(openaicompat.ChatChunkDelta{ToolCalls: []openaicompat.ChatChunkToolCall{{
			Function: openaicompat.ChatChunkFunctionCall{Arguments: sc.call.arguments[half:]},
		}}}, nil))
	}

	finish := chatFinish(sc)
	send(chunk(openaicompat.ChatChunkDelta{}, &finish))
	send(openaicompat.ChatCompletionChunk{
		ID:      "chatcmpl-mock-stream",
		Object:  "chat.completion.chunk",
		Model:   model,
		Choices: []openaicompat.ChatChunkChoice{},
		Usage:   chatUsage(sc),
	})
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func chatFinish(sc scenario) string {
	switch {
	case sc.finish == "length":
		return openaicompat.FinishReasonLength
	case sc.finish == "blocked":
		return openaicompat.FinishReasonContentFilter
	case sc.call != nil:
		return openaicompat.FinishReasonToolCalls
	default:
		return openaicompat.FinishReasonStop
	}
}

func chatUsage(sc scenario) *openaicompat.ChatUsage {
	out := int64(len(sc.tokens))
	if sc.call != nil {
		out = 15
	}
	return &openaicompat.ChatUsage{PromptTokens: 10, CompletionTokens: out, TotalTokens: 10 + out}
}

func lastChatUserText(msgs []openaicompat.ChatMessage) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != "user" {
			continue
		}
		switch v := msgs[i].Content.(type) {
		case string:
			return v
		case []any:
			for _, part := range v {
				if m, ok := part.(map[string]any); ok && m["type"] == "text" {
					if text, ok := m["text"].(string); ok {
						return text
					}
				}
			}
		}
	}
	return ""
}

func hasChatSystem(msgs []openaicompat.ChatMessage) bool {
	for _, m := range msgs {
		if m.Role == "system" {
			return true
		}
	}
	return false
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"message": message, "type": "invalid_request_error"},
	})
}
