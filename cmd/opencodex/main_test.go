package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	for _, name := range []string{"OPENCODEX_CONFIG", "OPENCODEX_PROVIDERS", "OPENCODEX_BASE_URL", "OPENCODEX_API_KEY", "OPENCODEX_METRICS_ADDR"} {
		t.Setenv(name, "")
	}
	path := filepath.Join(t.TempDir(), "opencodex.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func exitCode(err error) int {
	if err == nil {
		return exitAllowed
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFailure
}

func TestRunCheck(t *testing.T) {
	cfgPath := writeConfig(t, `
security:
  deny:
    - 'git\s+push\s+--force'
  forbidden:
    - 'rm\s+-rf\s+/'
`)

	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  string
	}{
		{"allowed", []string{"--", "ls", "-la"}, exitAllowed, "allowed"},
		{"deny", []string{"--", "bash", "-lc", "echo hi && git push --force && echo done"}, exitRequiresApproval, "requires approval"},
		{"forbidden", []string{"--", "rm", "-rf", "/"}, exitForbidden, "forbidden"},
		{"extra flag pattern", []string{"--forbidden", "^curl", "--", "curl", "example.com"}, exitForbidden, `"^curl"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			args := append([]string{"check", "--config", cfgPath}, tt.args...)
			err := run(context.Background(), args, nil, &stdout, &stderr)
			if got := exitCode(err); got != tt.wantCode {
				t.Errorf("exit code = %d, want %d (err %v)", got, tt.wantCode, err)
			}
			if !strings.Contains(stdout.String(), tt.wantOut) {
				t.Errorf("stdout = %q, want it to contain %q", stdout.String(), tt.wantOut)
			}
		})
	}
}

func TestRunCheck_RequiresCommand(t *testing.T) {
	cfgPath := writeConfig(t, "")
	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{"check", "--config", cfgPath}, nil, &stdout, &stderr); err == nil {
		t.Error("check without a command should fail")
	}
}

func chatServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if req["model"] != "test-model" {
			t.Errorf("model = %v, want test-model", req["model"])
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range []string{
			`{"id":"c1","choices":[{"delta":{"content":"Hello "}}]}`,
			`{"id":"c1","choices":[{"delta":{"content":"world"},"finish_reason":"stop"}]}`,
			`{"id":"c1","choices":[],"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`,
			`[DONE]`,
		} {
			io.WriteString(w, "data: "+chunk+"\n\n")
		}
	}))
}

func TestRunAsk(t *testing.T) {
	srv := chatServer(t)
	defer srv.Close()

	cfgPath := writeConfig(t, `
providers:
  - name: local
    base_url: `+srv.URL+`
    model: test-model
`)

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"ask", "--config", cfgPath, "say", "hello"}, nil, &stdout, &stderr)
	if err != nil {
		t.Fatalf("ask error: %v (stderr %s)", err, stderr.String())
	}
	out := stdout.String()
	if !strings.HasPrefix(out, "Hello world\n") {
		t.Errorf("stdout = %q, want the streamed text first", out)
	}
	if !strings.Contains(out, "5 total") {
		t.Errorf("stdout = %q, want token usage", out)
	}
}

func TestRunAsk_JSONFromStdin(t *testing.T) {
	srv := chatServer(t)
	defer srv.Close()

	cfgPath := writeConfig(t, `
providers:
  - name: local
    base_url: `+srv.URL+`
    model: test-model
`)

	var stdout, stderr bytes.Buffer
	err := run(context.Background(), []string{"ask", "--config", cfgPath, "--json", "-"}, strings.NewReader("hi there\n"), &stdout, &stderr)
	if err != nil {
		t.Fatalf("ask error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	var last struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &last); err != nil {
		t.Fatalf("last line is not JSON: %v", err)
	}
	if last.Type != "response.completed" {
		t.Errorf("last event type = %q, want response.completed", last.Type)
	}
}

func TestRunAsk_Errors(t *testing.T) {
	cfgPath := writeConfig(t, "")

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{"ask", "--config", cfgPath}, nil, &stdout, &stderr); err == nil {
		t.Error("ask without prompt should fail")
	}
	if err := run(context.Background(), []string{"ask", "--config", cfgPath, "hi"}, nil, &stdout, &stderr); err == nil {
		t.Error("ask without providers should fail")
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{"serve"}, nil, &stdout, &stderr); err == nil {
		t.Error("unknown command should fail")
	}
	if got := exitCode(run(context.Background(), nil, nil, &stdout, &stderr)); got != exitFailure {
		t.Errorf("no arguments exit code = %d, want %d", got, exitFailure)
	}
}

func TestRunAsk_StdoutTraceExporter(t *testing.T) {
	srv := chatServer(t)
	defer srv.Close()
	t.Setenv("OPENCODEX_TRACING", "")
	t.Setenv("OPENCODEX_TRACING_EXPORTER", "")

	cfgPath := writeConfig(t, `
providers:
  - name: local
    base_url: `+srv.URL+`
    model: test-model
observability:
  tracing:
    enabled: true
    exporter: stdout
`)

	var stdout, stderr bytes.Buffer
	if err := run(context.Background(), []string{"ask", "--config", cfgPath, "hi"}, nil, &stdout, &stderr); err != nil {
		t.Fatalf("ask error: %v", err)
	}
	if !strings.Contains(stderr.String(), "opencodex.ask") {
		t.Errorf("stderr = %q, want the exported ask span", stderr.String())
	}
}

func TestRunAsk_RetryHint(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantHint bool
	}{
		{"server error", http.StatusServiceUnavailable, true},
		{"bad request", http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error":{"message":"nope"}}`, tt.status)
			}))
			defer srv.Close()

			cfgPath := writeConfig(t, `
providers:
  - name: local
    base_url: `+srv.URL+`
    model: test-model
    retry:
      max_attempts: 1
`)
			var stdout, stderr bytes.Buffer
			err := run(context.Background(), []string{"ask", "--config", cfgPath, "hi"}, nil, &stdout, &stderr)
			if err == nil {
				t.Fatal("ask error = nil, want error")
			}
			if got := strings.Contains(err.Error(), "may succeed later"); got != tt.wantHint {
				t.Errorf("error = %q, retry hint present = %v, want %v", err, got, tt.wantHint)
			}
		})
	}
}
