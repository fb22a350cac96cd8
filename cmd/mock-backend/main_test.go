package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ce-data-e/opencodex/pkg/api"
	"github.com/ce-data-e/opencodex/pkg/provider"
	"github.com/ce-data-e/opencodex/pkg/provider/gemini"
	"github.com/ce-data-e/opencodex/pkg/provider/openaicompat"
)

// endpoints returns a client per wire and delivery mode against srv.
func endpoints(srv *httptest.Server) map[string]provider.Endpoint {
	out := map[string]provider.Endpoint{}
	for _, streaming := range []bool{true, false} {
		mode := "batch"
		if streaming {
			mode = "sse"
		}
		out["gemini/"+mode] = gemini.New(provider.Config{
			Name:      "gemini-" + mode,
			BaseURL:   srv.URL + "/v1beta",
			Model:     "gemini-pro",
			Streaming: streaming,
		})
		out["chat/"+mode] = openaicompat.New(provider.Config{
			Name:      "chat-" + mode,
			BaseURL:   srv.URL + "/v1",
			Model:     "mock-model",
			Streaming: streaming,
		})
	}
	return out
}

func ask(t *testing.T, ep provider.Endpoint, prompt *api.Prompt) ([]api.Event, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	stream, err := ep.StreamPrompt(ctx, "", prompt, api.ConversationMeta{})
	if err != nil {
		return nil, err
	}
	return stream.Collect(ctx)
}

func textOf(events []api.Event) string {
	var sb strings.Builder
	for _, ev := range events {
		if ev.Type == api.EventOutputTextDelta {
			sb.WriteString(ev.Delta)
		}
	}
	return sb.String()
}

func TestMockBackend_Scenarios(t *testing.T) {
	srv := httptest.NewServer(newMux())
	defer srv.Close()

	user := func(text string) *api.Prompt {
		return &api.Prompt{Input: []api.Item{api.NewMessage(api.RoleUser, text)}}
	}

	for name, ep := range endpoints(srv) {
		t.Run(name+"/hello", func(t *testing.T) {
			events, err := ask(t, ep, user("hi"))
			if err != nil {
				t.Fatalf("error: %v", err)
			}
			if got := textOf(events); got != "Hello, nice day!" {
				t.Errorf("text = %q", got)
			}
			last := events[len(events)-1]
			if last.Type != api.EventCompleted || last.Usage == nil || last.Usage.InputTokens != 10 {
				t.Errorf("last event = %+v", last)
			}
		})

		t.Run(name+"/count", func(t *testing.T) {
			events, err := ask(t, ep, user("Please count from 1 to 5"))
			if err != nil {
				t.Fatalf("error: %v", err)
			}
			if got := textOf(events); got != "1, 2, 3, 4, 5" {
				t.Errorf("text = %q", got)
			}
		})

		t.Run(name+"/system", func(t *testing.T) {
			p := user("hi")
			p.Instructions = "Talk like a pirate."
			events, err := ask(t, ep, p)
			if err != nil {
				t.Fatalf("error: %v", err)
			}
			if got := textOf(events); !strings.HasPrefix(got, "Ahoy") {
				t.Errorf("text = %q, want pirate greeting", got)
			}
		})

		t.Run(name+"/tool call", func(t *testing.T) {
			p := user("weather?")
			p.Tools = []api.ToolSpec{{Type: "function", Name: "get_weather", Parameters: []byte(`{"type":"object"}`)}}
			events, err := ask(t, ep, p)
			if err != nil {
				t.Fatalf("error: %v", err)
			}
			var call *api.FunctionCallData
			for _, ev := range events {
				if ev.Type == api.EventOutputItemDone && ev.Item.FunctionCall != nil {
					call = ev.Item.FunctionCall
				}
			}
			if call == nil {
				t.Fatal("no function call event")
			}
			if call.Name != "get_weather" || !strings.Contains(call.Arguments, "San Francisco") {
				t.Errorf("call = %+v", call)
			}
		})

		t.Run(name+"/overflow", func(t *testing.T) {
			_, err := ask(t, ep, user("overflow please"))
			if !errors.Is(err, api.ErrContextWindowExceeded) {
				t.Errorf("error = %v, want context window exceeded", err)
			}
		})

		t.Run(name+"/blocked", func(t *testing.T) {
			_, err := ask(t, ep, user("blocked topic"))
			if err == nil {
				t.Fatal("expected stream error")
			}
		})
	}
}

func TestMockBackend_UnknownGeminiMethod(t *testing.T) {
	srv := httptest.NewServer(newMux())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1beta/models/gemini-pro:countTokens", "application/json", strings.NewReader(`{"contents":[]}`))
	if err != nil {
		t.Fatalf("POST error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestMockBackend_Healthz(t *testing.T) {
	srv := httptest.NewServer(newMux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET error: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}
