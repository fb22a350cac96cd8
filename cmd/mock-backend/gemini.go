package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ce-data-e/opencodex/pkg/provider/gemini"
)

func handleGemini(w http.ResponseWriter, r *http.Request) {
	model, method, ok := strings.Cut(r.PathValue("call"), ":")
	if !ok || model == "" {
		writeJSONError(w, http.StatusNotFound, "unknown method")
		return
	}

	var req gemini.GenerateContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request")
		return
	}
	sc := classify(lastGeminiUserText(req.Contents), len(req.Tools) > 0, req.SystemInstruction != nil)

	switch method {
	case "generateContent":
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(geminiChunk(sc, []gemini.Part{{Text: sc.text()}}, true))
	case "streamGenerateContent":
		if r.URL.Query().Get("alt") != "sse" {
			writeJSONError(w, http.StatusBadRequest, "only alt=sse streaming is supported")
			return
		}
		streamGemini(w, sc)
	default:
		writeJSONError(w, http.StatusNotFound, "unknown method "+method)
	}
}

func streamGemini(w http.ResponseWriter, sc scenario) {
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

	if sc.call != nil {
		send(geminiChunk(sc, nil, true))
		return
	}
	for i, tok := range sc.tokens {
		send(geminiChunk(sc, []gemini.Part{{Text: tok}}, i == len(sc.tokens)-1))
	}
}

// geminiChunk builds one response. The finish reason and usage are only
// set on the last chunk; a function call scenario replaces parts.
func geminiChunk(sc scenario, parts []gemini.Part, last bool) gemini.GenerateContentResponse {
	if sc.call != nil {
		parts = []gemini.Part{{FunctionCall: &gemini.FunctionCall{
			Name: sc.call.name,
			Args: json.RawMessage(sc.call.arguments),
		}}}
	}
	cand := gemini.Candidate{Content: &gemini.Content{Role: "model", Parts: parts}}
	resp := gemini.GenerateContentResponse{ResponseID: "mock-gemini", ModelVersion: "mock-model"}
	if last {
		switch sc.finish {
		case "length":
			cand.FinishReason = gemini.FinishReasonMaxTokens
		case "blocked":
			cand.FinishReason = gemini.FinishReasonSafety
		default:
			cand.FinishReason = gemini.FinishReasonStop
		}
		out := int64(len(sc.tokens))
		resp.UsageMetadata = &gemini.UsageMetadata{PromptTokenCount: 10, CandidatesTokenCount: out, TotalTokenCount: 10 + out}
	}
	resp.Candidates = []gemini.Candidate{cand}
	return resp
}

func lastGeminiUserText(contents []gemini.Content) string {
	for i := len(contents) - 1; i >= 0; i-- {
		if contents[i].Role != "user" {
			continue
		}
		for _, p := range contents[i].Parts {
			if p.Text != "" {
				return p.Text
			}
		}
	}
	return ""
}
