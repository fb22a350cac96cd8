package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ce-data-e/opencodex/pkg/api"
	"github.com/ce-data-e/opencodex/pkg/auth/apikey"
	"github.com/ce-data-e/opencodex/pkg/provider"
	"github.com/ce-data-e/opencodex/pkg/transport"
)

func userPrompt(text string) *api.Prompt {
	return &api.Prompt{Input: []api.Item{api.NewMessage(api.RoleUser, text)}}
}

func collect(t *testing.T, s *provider.ResponseStream) ([]api.Event, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.Collect(ctx)
}

func TestClient_CompletionsURL(t *testing.T) {
	tests := []struct {
		cfg  provider.Config
		want string
	}{
		{provider.Config{BaseURL: "http://localhost:8000/v1"}, "http://localhost:8000/v1/chat/completions"},
		{provider.Config{BaseURL: "https://res.openai.azure.com/openai/deployments/gpt4o", QueryParams: map[string]string{"api-version": "2024-06-01"}},
			"https://res.openai.azure.com/openai/deployments/gpt4o/chat/completions?api-version=2024-06-01"},
	}
	for _, tt := range tests {
		if got := New(tt.cfg).CompletionsURL(); got != tt.want {
			t.Errorf("CompletionsURL() = %q, want %q", got, tt.want)
		}
	}
}

func TestClient_Batch(t *testing.T) {
	var got ChatCompletionRequest
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"chatcmpl-1","choices":[{"index":0,"message":{"role":"assistant","content":"Hi!"},"finish_reason":"stop"}],"usage":{"prompt_tokens":3,"completion_tokens":1,"total_tokens":4}}`)
	}))
	defer srv.Close()

	c := New(provider.Config{
		Name:         "local",
		BaseURL:      srv.URL + "/v1",
		Model:        "fast",
		ModelMapping: map[string]string{"fast": "qwen2.5-7b"},
	}, provider.WithAuth(apikey.New("sk-test")))

	s, err := c.StreamPrompt(context.Background(), "", userPrompt("hello"), api.ConversationMeta{})
	if err != nil {
		t.Fatalf("StreamPrompt: %v", err)
	}
	events, err := collect(t, s)
	if err != nil {
		t.Fatalf("stream error = %v", err)
	}

	if gotPath != "/v1/chat/completions" {
		t.Errorf("path = %q", gotPath)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if got.Model != "qwen2.5-7b" {
		t.Errorf("model = %q, want mapped model", got.Model)
	}
	if got.Stream || got.StreamOptions != nil {
		t.Errorf("batch request should not stream: %+v", got)
	}
	assertOrdered(t, events)
	if last := events[len(events)-1]; last.Type != api.EventCompleted || last.Usage.TotalTokens != 4 {
		t.Errorf("last event = %+v", last)
	}
}

func TestClient_Streaming(t *testing.T) {
	var got ChatCompletionRequest
	var gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, sseBody(
			`{"id":"c","choices":[{"delta":{"content":"Hel"}}]}`,
			`{"id":"c","choices":[{"delta":{"content":"lo"},"finish_reason":"stop"}]}`,
			`{"id":"c","choices":[],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`,
			`[DONE]`,
		))
	}))
	defer srv.Close()

	c := New(provider.Config{BaseURL: srv.URL, Model: "m", Streaming: true})
	s, err := c.StreamPrompt(context.Background(), "", userPrompt("hi"), api.ConversationMeta{})
	if err != nil {
		t.Fatalf("StreamPrompt: %v", err)
	}
	events, err := collect(t, s)
	if err != nil {
		t.Fatalf("stream error = %v", err)
	}

	if !got.Stream || got.StreamOptions == nil || !got.StreamOptions.IncludeUsage {
		t.Errorf("request = %+v, want stream with include_usage", got)
	}
	if gotAccept != "text/event-stream" {
		t.Errorf("Accept = %q", gotAccept)
	}
	assertOrdered(t, events)
	if last := events[len(events)-1]; last.Usage == nil || last.Usage.TotalTokens != 5 {
		t.Errorf("completed usage = %+v, want trailing usage", last.Usage)
	}
}

func TestClient_ContextLengthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":{"message":"This model's maximum context length is 4096 tokens","type":"invalid_request_error","code":"context_length_exceeded"}}`)
	}))
	defer srv.Close()

	c := New(provider.Config{BaseURL: srv.URL, Model: "m"})
	_, err := c.StreamPrompt(context.Background(), "", userPrompt("hi"), api.ConversationMeta{})
	if !errors.Is(err, api.ErrContextWindowExceeded) {
		t.Errorf("error = %v, want context window exceeded", err)
	}
}

func TestClient_RetryAfter(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			io.WriteString(w, `{"error":{"message":"rate limited"}}`)
			return
		}
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	p := transport.DefaultPolicy()
	p.BaseDelay = time.Hour // Retry-After must win
	c := New(provider.Config{BaseURL: srv.URL, Model: "m", Retry: p})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := c.StreamPrompt(ctx, "", userPrompt("hi"), api.ConversationMeta{})
	if err != nil {
		t.Fatalf("StreamPrompt: %v", err)
	}
	if _, err := collect(t, s); err != nil {
		t.Fatalf("stream error = %v", err)
	}
	if got := attempts.Load(); got != 2 {
		t.Errorf("attempts = %d, want 2", got)
	}
}

func TestClient_RequestIDFromContext(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(transport.HeaderRequestID)
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	c := New(provider.Config{BaseURL: srv.URL, Model: "m"})
	ctx := transport.ContextWithRequestID(context.Background(), "req-from-caller")
	s, err := c.StreamPrompt(ctx, "", userPrompt("hi"), api.ConversationMeta{})
	if err != nil {
		t.Fatalf("StreamPrompt: %v", err)
	}
	collect(t, s)
	if got != "req-from-caller" {
		t.Errorf("X-Request-Id = %q, want req-from-caller", got)
	}
}

func TestClient_StreamPrebuiltBody(t *testing.T) {
	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&raw)
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"ok"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	c := New(provider.Config{BaseURL: srv.URL})
	body := map[string]any{"model": "custom", "messages": []any{map[string]any{"role": "user", "content": "x"}}, "temperature": 0.2}
	s, err := c.Stream(context.Background(), "custom", body, http.Header{"X-Extra": {"1"}})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if _, err := collect(t, s); err != nil {
		t.Fatalf("stream error = %v", err)
	}
	if raw["temperature"] != 0.2 {
		t.Errorf("body = %v, want caller's body sent unchanged", raw)
	}
}

func TestClient_ConfigIsACopy(t *testing.T) {
	c := New(provider.Config{
		BaseURL:      "http://localhost:8000/v1",
		Model:        "alias",
		ModelMapping: map[string]string{"alias": "gpt-4o"},
	})
	got := c.Config()
	got.ModelMapping["alias"] = "changed"
	got.Model = "other"

	if again := c.Config(); again.Model != "alias" || again.ModelMapping["alias"] != "gpt-4o" {
		t.Errorf("Config() after caller mutation = %+v, want original values", again)
	}
}
