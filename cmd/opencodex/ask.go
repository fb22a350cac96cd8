package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/ce-data-e/opencodex/pkg/api"
	"github.com/ce-data-e/opencodex/pkg/endpoint"
	"github.com/ce-data-e/opencodex/pkg/observability"
	"github.com/ce-data-e/opencodex/pkg/transport"
)

func runAsk(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	var (
		common         commonFlags
		providerName   string
		model          string
		instructions   string
		conversationID string
		toolsFile      string
		jsonOutput     bool
	)
	fs := pflag.NewFlagSet("ask", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	common.add(fs)
	fs.StringVarP(&providerName, "provider", "p", "", "provider name (default: first configured)")
	fs.StringVarP(&model, "model", "m", "", "model name (default: the provider's model)")
	fs.StringVarP(&instructions, "instructions", "i", "", "system instructions")
	fs.StringVar(&conversationID, "conversation-id", "", "conversation ID forwarded to the backend")
	fs.StringVar(&toolsFile, "tools", "", "JSON file with an array of function tool definitions")
	fs.BoolVar(&jsonOutput, "json", false, "print every event as a JSON line")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	text, err := promptText(fs.Args(), stdin)
	if err != nil {
		return err
	}

	cfg, err := common.load()
	if err != nil {
		return err
	}
	stop, err := startObservability(ctx, cfg, stderr)
	if err != nil {
		return err
	}
	defer stop()

	registry, err := endpoint.NewRegistry(cfg)
	if err != nil {
		return err
	}
	ep, err := registry.Get(providerName)
	if err != nil {
		return err
	}

	prompt := &api.Prompt{
		Instructions: instructions,
		Input:        []api.Item{api.NewMessage(api.RoleUser, text)},
	}
	if toolsFile != "" {
		if prompt.Tools, err = loadTools(toolsFile); err != nil {
			return err
		}
	}
	if verr := api.ValidatePrompt(prompt, api.DefaultValidationConfig()); verr != nil {
		return verr
	}

	ctx = transport.ContextWithRequestID(ctx, transport.NewRequestID())
	ctx, span := observability.StartSpan(ctx, "opencodex.ask")
	defer span.End()
	log := observability.Logger(ctx)
	log.Debug("sending prompt", "provider", ep.Name(), "model", model, "request_id", transport.RequestIDFromContext(ctx))

	stream, err := ep.StreamPrompt(ctx, model, prompt, api.ConversationMeta{
		ConversationID: conversationID,
		SessionSource:  "cli",
	})
	if err != nil {
		return withRetryHint(err)
	}
	defer stream.Close()

	printer := newEventPrinter(stdout, jsonOutput)
	for {
		ev, err := stream.Recv(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			printer.endLine()
			log.Error("stream failed", "provider", ep.Name(), "error", err)
			return withRetryHint(err)
		}
		if err := printer.print(ev); err != nil {
			return err
		}
	}
}

// promptText joins the positional arguments, or reads stdin for "-".
// withRetryHint marks errors that may go away when the prompt is sent again.
func withRetryHint(err error) error {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) && apiErr.Retryable() {
		return fmt.Errorf("%w (retries exhausted; the request may succeed later)", err)
	}
	return err
}

func promptText(args []string, stdin io.Reader) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading prompt from stdin: %w", err)
		}
		args = []string{string(data)}
	}
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return "", errors.New("a prompt is required")
	}
	return text, nil
}

func loadTools(path string) ([]api.ToolSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tools: %w", err)
	}
	var tools []api.ToolSpec
	if err := json.Unmarshal(data, &tools); err != nil {
		return nil, fmt.Errorf("parsing tools %s: %w", path, err)
	}
	return tools, nil
}

// eventPrinter renders stream events for a terminal or as JSON lines.
type eventPrinter struct {
	w       io.Writer
	enc     *json.Encoder
	midLine bool
}

func newEventPrinter(w io.Writer, jsonOutput bool) *eventPrinter {
	p := &eventPrinter{w: w}
	if jsonOutput {
		p.enc = json.NewEncoder(w)
	}
	return p
}

func (p *eventPrinter) print(ev api.Event) error {
	if p.enc != nil {
		return p.enc.Encode(ev)
	}

	switch ev.Type {
	case api.EventOutputTextDelta:
		p.midLine = !strings.HasSuffix(ev.Delta, "\n")
		_, err := io.WriteString(p.w, ev.Delta)
		return err

	case api.EventOutputItemDone:
		if ev.Item == nil || ev.Item.FunctionCall == nil {
			return nil
		}
		p.endLine()
		fc := ev.Item.FunctionCall
		_, err := fmt.Fprintf(p.w, "-> %s(%s) [%s]\n", fc.Name, fc.Arguments, fc.CallID)
		return err

	case api.EventCompleted:
		p.endLine()
		if ev.Usage != nil {
			_, err := fmt.Fprintf(p.w, "-- tokens: %d in (%d cached), %d out (%d reasoning), %d total\n",
				ev.Usage.InputTokens, ev.Usage.CachedInputTokens,
				ev.Usage.OutputTokens, ev.Usage.ReasoningOutputTokens, ev.Usage.TotalTokens)
			return err
		}
	}
	return nil
}

func (p *eventPrinter) endLine() {
	if p.enc == nil && p.midLine {
		io.WriteString(p.w, "\n")
		p.midLine = false
	}
}
