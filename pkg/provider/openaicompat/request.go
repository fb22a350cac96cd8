package openaicompat

import (
	"net/http"
	"strings"

	"github.com/ce-data-e/opencodex/pkg/api"
	"github.com/ce-data-e/opencodex/pkg/debug"
	"github.com/ce-data-e/opencodex/pkg/provider"
)

// Chat roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// roleMap maps conversation roles to chat roles. Roles not listed map to
// RoleUser.
var roleMap = map[api.MessageRole]string{
	api.RoleUser:      RoleUser,
	api.RoleAssistant: RoleAssistant,
	api.RoleSystem:    RoleSystem,
	api.RoleDeveloper: RoleSystem,
	api.RoleTool:      RoleTool,
}

// MapRole returns the chat role for r.
func MapRole(r api.MessageRole) string {
	if role, ok := roleMap[r]; ok {
		return role
	}
	return RoleUser
}

// Request is a built chat completions request.
type Request struct {
	Body    *ChatCompletionRequest
	Headers http.Header
	Model   string
}

// Build translates prompt into a chat completions request. Streaming is
// decided by the client. The only failure is a prompt whose input produces
// no messages.
func Build(model string, prompt *api.Prompt, meta api.ConversationMeta) (*Request, error) {
	names := provider.LookupFunctionNames(prompt.Input)

	var msgs []ChatMessage
	for _, item := range prompt.Input {
		switch item.Type {
		case api.ItemTypeMessage:
			if m, ok := translateMessage(item.Message); ok {
				msgs = append(msgs, m)
			}

		case api.ItemTypeFunctionCall:
			fc := item.FunctionCall
			if fc == nil {
				continue
			}
			call := ChatToolCall{
				ID:       fc.CallID,
				Type:     "function",
				Function: ChatFunctionCall{Name: fc.Name, Arguments: string(provider.ParseArguments(fc.Arguments))},
			}
			// Consecutive calls share one assistant message, as the
			// backend produced them.
			if n := len(msgs); n > 0 && msgs[n-1].Role == RoleAssistant {
				msgs[n-1].ToolCalls = append(msgs[n-1].ToolCalls, call)
				continue
			}
			msgs = append(msgs, ChatMessage{Role: RoleAssistant, ToolCalls: []ChatToolCall{call}})

		case api.ItemTypeFunctionCallOutput:
			out := item.FunctionCallOutput
			if out == nil {
				continue
			}
			name, ok := names[out.CallID]
			if !ok {
				name = "unknown"
			}
			msgs = append(msgs, ChatMessage{
				Role:       RoleTool,
				ToolCallID: out.CallID,
				Name:       name,
				Content:    toolOutput(out),
			})

		default:
			debug.Log("providers", "skipping item unsupported by chat", "type", item.Type)
		}
	}

	if len(msgs) == 0 {
		return nil, api.NewInvalidRequestError("input", "prompt has no content that can be sent to the chat backend")
	}

	if prompt.Instructions != "" {
		msgs = append([]ChatMessage{{Role: RoleSystem, Content: prompt.Instructions}}, msgs...)
	}

	body := &ChatCompletionRequest{Model: model, Messages: msgs}
	for _, t := range provider.FunctionTools(prompt.Tools) {
		body.Tools = append(body.Tools, ChatTool{
			Type: "function",
			Function: ChatFunctionDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	headers := http.Header{}
	for k, v := range meta.Headers() {
		headers.Set(k, v)
	}

	return &Request{Body: body, Headers: headers, Model: model}, nil
}

// translateMessage maps a message. Text-only messages use string content;
// messages with images use content parts. Messages with nothing left are
// dropped.
func translateMessage(m *api.MessageData) (ChatMessage, bool) {
	if m == nil {
		return ChatMessage{}, false
	}

	var parts []ChatContentPart
	hasImage := false
	for _, c := range m.Content {
		switch c.Type {
		case api.ContentTypeInputText, api.ContentTypeOutputText:
			if c.Text != "" {
				parts = append(parts, ChatContentPart{Type: "text", Text: c.Text})
			}
		case api.ContentTypeInputImage:
			if u, ok := imageURL(c); ok {
				parts = append(parts, ChatContentPart{Type: "image_url", ImageURL: &ChatImageURL{URL: u}})
				hasImage = true
			}
		}
	}
	if len(parts) == 0 {
		return ChatMessage{}, false
	}

	msg := ChatMessage{Role: MapRole(m.Role)}
	if hasImage {
		msg.Content = parts
	} else {
		texts := make([]string, 0, len(parts))
		for _, p := range parts {
			texts = append(texts, p.Text)
		}
		msg.Content = strings.Join(texts, "\n")
	}
	return msg, true
}

// imageURL returns the URL to send for an image part. Inline data becomes a
// data URL; a data URL without a comma is rejected.
func imageURL(c api.ContentPart) (string, bool) {
	if c.Data != "" {
		mime := c.MediaType
		if mime == "" {
			mime = "image/png"
		}
		return "data:" + mime + ";base64," + c.Data, true
	}
	if strings.HasPrefix(c.URL, "data:") && !strings.Contains(c.URL, ",") {
		return "", false
	}
	return c.URL, c.URL != ""
}

// toolOutput returns the tool message content: the plain output, or the
// text parts of a multi-part output joined by newlines.
func toolOutput(out *api.FunctionCallOutputData) string {
	if len(out.ContentItems) == 0 {
		return out.Output
	}
	var texts []string
	for _, c := range out.ContentItems {
		if c.IsText() {
			texts = append(texts, c.Text)
		}
	}
	return strings.Join(texts, "\n")
}
