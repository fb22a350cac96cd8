package gemini

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ce-data-e/opencodex/pkg/api"
	"github.com/ce-data-e/opencodex/pkg/debug"
	"github.com/ce-data-e/opencodex/pkg/provider"
)

// Gemini roles.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// roleMap maps conversation roles to Gemini roles. Roles not listed map to
// RoleUser.
var roleMap = map[api.MessageRole]string{
	api.RoleUser:      RoleUser,
	api.RoleAssistant: RoleModel,
	api.RoleSystem:    RoleUser,
	api.RoleDeveloper: RoleUser,
	api.RoleTool:      RoleUser,
}

// MapRole returns the Gemini role for r.
func MapRole(r api.MessageRole) string {
	if role, ok := roleMap[r]; ok {
		return role
	}
	return RoleUser
}

// Default MIME types for images whose type is not stated.
const (
	defaultInlineMimeType = "image/png"
	defaultRemoteMimeType = "image/jpeg"
)

// Request is a built generateContent request.
type Request struct {
	Body    *GenerateContentRequest
	Headers http.Header
	Model   string
}

// Build translates prompt into a generateContent request. The only failure
// is a prompt that produces no contents at all.
func Build(model string, prompt *api.Prompt, meta api.ConversationMeta) (*Request, error) {
	names := provider.LookupFunctionNames(prompt.Input)

	body := &GenerateContentRequest{}
	for _, item := range prompt.Input {
		content, ok := translateItem(item, names)
		if !ok {
			continue
		}
		body.Contents = append(body.Contents, content)
	}

	if len(body.Contents) == 0 {
		return nil, api.NewInvalidRequestError("input", "prompt has no content that can be sent to gemini")
	}

	if prompt.Instructions != "" {
		body.SystemInstruction = &Content{Parts: []Part{{Text: prompt.Instructions}}}
	}

	if tools := provider.FunctionTools(prompt.Tools); len(tools) > 0 {
		decls := make([]FunctionDeclaration, 0, len(tools))
		for _, t := range tools {
			decls = append(decls, FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			})
		}
		body.Tools = []Tool{{FunctionDeclarations: decls}}
	}

	headers := http.Header{}
	for k, v := range meta.Headers() {
		headers.Set(k, v)
	}

	return &Request{Body: body, Headers: headers, Model: model}, nil
}

func translateItem(item api.Item, names map[string]string) (Content, bool) {
	switch item.Type {
	case api.ItemTypeMessage:
		if item.Message == nil {
			return Content{}, false
		}
		parts := translateParts(item.Message.Content)
		if len(parts) == 0 {
			return Content{}, false
		}
		return Content{Role: MapRole(item.Message.Role), Parts: parts}, true

	case api.ItemTypeFunctionCall:
		fc := item.FunctionCall
		if fc == nil {
			return Content{}, false
		}
		return Content{
			Role: RoleModel,
			Parts: []Part{{
				FunctionCall:     &FunctionCall{Name: fc.Name, Args: provider.ParseArguments(fc.Arguments)},
				ThoughtSignature: fc.ThoughtSignature,
			}},
		}, true

	case api.ItemTypeFunctionCallOutput:
		out := item.FunctionCallOutput
		if out == nil {
			return Content{}, false
		}
		name, ok := names[out.CallID]
		if !ok {
			name = "unknown"
		}
		return Content{
			Role: RoleUser,
			Parts: []Part{{
				FunctionResponse: &FunctionResponse{Name: name, Response: functionResponseBody(out)},
			}},
		}, true

	default:
		debug.Log("providers", "skipping item unsupported by gemini", "type", item.Type)
		return Content{}, false
	}
}

func translateParts(content []api.ContentPart) []Part {
	var parts []Part
	for _, c := range content {
		switch c.Type {
		case api.ContentTypeInputText, api.ContentTypeOutputText:
			if c.Text != "" {
				parts = append(parts, Part{Text: c.Text})
			}
		case api.ContentTypeInputImage:
			if p, ok := imagePart(c); ok {
				parts = append(parts, p)
			}
		}
	}
	return parts
}

func imagePart(c api.ContentPart) (Part, bool) {
	if c.Data != "" {
		mime := c.MediaType
		if mime == "" {
			mime = defaultInlineMimeType
		}
		return Part{InlineData: &Blob{MimeType: mime, Data: c.Data}}, true
	}
	if strings.HasPrefix(c.URL, "data:") {
		blob, ok := ParseDataURL(c.URL)
		if !ok {
			return Part{}, false
		}
		return Part{InlineData: blob}, true
	}
	if c.URL == "" {
		return Part{}, false
	}
	mime := c.MediaType
	if mime == "" {
		mime = defaultRemoteMimeType
	}
	return Part{FileData: &FileData{FileURI: c.URL, MimeType: mime}}, true
}

// ParseDataURL splits a data: URL at the first comma. The MIME type is the
// metadata up to the first ';' (default image/png). A URL without a comma
// is rejected.
func ParseDataURL(u string) (*Blob, bool) {
	meta, data, ok := strings.Cut(strings.TrimPrefix(u, "data:"), ",")
	if !ok {
		return nil, false
	}
	mime, _, _ := strings.Cut(meta, ";")
	if mime == "" {
		mime = defaultInlineMimeType
	}
	return &Blob{MimeType: mime, Data: data}, true
}

func functionResponseBody(out *api.FunctionCallOutputData) json.RawMessage {
	var v any
	if len(out.ContentItems) > 0 {
		type textPart struct {
			Text string `json:"text"`
		}
		parts := []textPart{}
		for _, c := range out.ContentItems {
			if c.IsText() {
				parts = append(parts, textPart{Text: c.Text})
			}
		}
		v = map[string]any{"parts": parts}
	} else {
		v = map[string]string{"output": out.Output}
	}
	b, _ := json.Marshal(v)
	return b
}
