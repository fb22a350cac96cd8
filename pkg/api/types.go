package api

import (
	"encoding/json"
	"strings"
)

// ---------------------------------------------------------------------------
// Content types
// ---------------------------------------------------------------------------

// Content part types.
const (
	ContentTypeInputText  = "input_text"
	ContentTypeOutputText = "output_text"
	ContentTypeInputImage = "input_image"
)

// ContentPart represents one piece of message content.
// The Type field indicates the kind of content: input_text, output_text or
// input_image. Images carry either a URL (remote or data: URL) or inline
// base64 Data with its MediaType.
type ContentPart struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	URL       string `json:"image_url,omitempty"`
	Data      string `json:"data,omitempty"`
	MediaType string `json:"media_type,omitempty"`
}

// IsText reports whether the part carries text.
func (p ContentPart) IsText() bool {
	return p.Type == ContentTypeInputText || p.Type == ContentTypeOutputText
}

// ---------------------------------------------------------------------------
// Item type-specific data structs
// ---------------------------------------------------------------------------

// MessageRole represents the role of a message sender.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
	RoleDeveloper MessageRole = "developer"
	RoleTool      MessageRole = "tool"
)

// ItemType represents the type of an item in a conversation.
type ItemType string

const (
	ItemTypeMessage              ItemType = "message"
	ItemTypeFunctionCall         ItemType = "function_call"
	ItemTypeFunctionCallOutput   ItemType = "function_call_output"
	ItemTypeReasoning            ItemType = "reasoning"
	ItemTypeCustomToolCall       ItemType = "custom_tool_call"
	ItemTypeCustomToolCallOutput ItemType = "custom_tool_call_output"
	ItemTypeLocalShellCall       ItemType = "local_shell_call"
	ItemTypeWebSearchCall        ItemType = "web_search_call"
	ItemTypeGhostSnapshot        ItemType = "ghost_snapshot"
	ItemTypeCompactionSummary    ItemType = "compaction_summary"
	ItemTypeOther                ItemType = "other"
)

// MessageData holds the data specific to a message item.
type MessageData struct {
	Role    MessageRole   `json:"role"`
	Content []ContentPart `json:"content,omitempty"`
}

// Text concatenates the text parts of the message.
func (m *MessageData) Text() string {
	if m == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range m.Content {
		if p.IsText() {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

// FunctionCallData holds the data specific to a function call item.
// Arguments is the JSON-encoded argument object as produced by the model.
// ThoughtSignature is an opaque vendor token that must be echoed back with
// the call on the next turn.
type FunctionCallData struct {
	Name             string `json:"name"`
	CallID           string `json:"call_id"`
	Arguments        string `json:"arguments"`
	ThoughtSignature string `json:"thought_signature,omitempty"`
}

// FunctionCallOutputData holds the data specific to a function call output item.
// Either Output or ContentItems is set; ContentItems takes precedence.
type FunctionCallOutputData struct {
	CallID       string        `json:"call_id"`
	Output       string        `json:"output"`
	ContentItems []ContentPart `json:"content_items,omitempty"`
}

// ReasoningData holds the data specific to a reasoning item.
type ReasoningData struct {
	Content          string `json:"content,omitempty"`
	EncryptedContent string `json:"encrypted_content,omitempty"`
	Summary          string `json:"summary,omitempty"`
}

// ---------------------------------------------------------------------------
// Item struct
// ---------------------------------------------------------------------------

// Item represents a single item in a conversation. Only the data field that
// matches Type is set. Variants that carry no adapter-relevant data (shell
// calls, snapshots, summaries, ...) keep their raw JSON in Extension.
type Item struct {
	ID   string   `json:"id,omitempty"`
	Type ItemType `json:"type"`

	Message            *MessageData            `json:"message,omitempty"`
	FunctionCall       *FunctionCallData       `json:"function_call,omitempty"`
	FunctionCallOutput *FunctionCallOutputData `json:"function_call_output,omitempty"`
	Reasoning          *ReasoningData          `json:"reasoning,omitempty"`

	Extension json.RawMessage `json:"extension,omitempty"`
}

// NewMessage creates a message item with a single text part. Assistant
// messages use output_text, every other role uses input_text.
func NewMessage(role MessageRole, text string) Item {
	partType := ContentTypeInputText
	if role == RoleAssistant {
		partType = ContentTypeOutputText
	}
	return Item{
		Type: ItemTypeMessage,
		Message: &MessageData{
			Role:    role,
			Content: []ContentPart{{Type: partType, Text: text}},
		},
	}
}

// NewFunctionCall creates a function_call item.
func NewFunctionCall(callID, name, arguments string) Item {
	return Item{
		Type:         ItemTypeFunctionCall,
		FunctionCall: &FunctionCallData{CallID: callID, Name: name, Arguments: arguments},
	}
}

// NewFunctionCallOutput creates a function_call_output item with a plain output.
func NewFunctionCallOutput(callID, output string) Item {
	return Item{
		Type:               ItemTypeFunctionCallOutput,
		FunctionCallOutput: &FunctionCallOutputData{CallID: callID, Output: output},
	}
}

// itemWire is the flat wire format: type-specific fields live at the top
// level rather than nested in a wrapper object.
type itemWire struct {
	ID   string   `json:"id,omitempty"`
	Type ItemType `json:"type"`

	Role    MessageRole   `json:"role,omitempty"`
	Content []ContentPart `json:"content,omitempty"`

	CallID           string          `json:"call_id,omitempty"`
	Name             string          `json:"name,omitempty"`
	Arguments        string          `json:"arguments,omitempty"`
	ThoughtSignature string          `json:"thought_signature,omitempty"`
	Output           json.RawMessage `json:"output,omitempty"`

	ReasoningContent string `json:"reasoning_content,omitempty"`
	EncryptedContent string `json:"encrypted_content,omitempty"`
	Summary          string `json:"summary,omitempty"`

	Extension json.RawMessage `json:"extension,omitempty"`
}

// MarshalJSON serializes an Item to the flat wire format.
func (item Item) MarshalJSON() ([]byte, error) {
	w := itemWire{ID: item.ID, Type: item.Type, Extension: item.Extension}

	switch item.Type {
	case ItemTypeMessage:
		if item.Message != nil {
			w.Role = item.Message.Role
			w.Content = item.Message.Content
		}
	case ItemTypeFunctionCall:
		if item.FunctionCall != nil {
			w.CallID = item.FunctionCall.CallID
			w.Name = item.FunctionCall.Name
			w.Arguments = item.FunctionCall.Arguments
			w.ThoughtSignature = item.FunctionCall.ThoughtSignature
		}
	case ItemTypeFunctionCallOutput:
		if out := item.FunctionCallOutput; out != nil {
			w.CallID = out.CallID
			var err error
			if len(out.ContentItems) > 0 {
				w.Output, err = json.Marshal(out.ContentItems)
			} else {
				w.Output, err = json.Marshal(out.Output)
			}
			if err != nil {
				return nil, err
			}
		}
	case ItemTypeReasoning:
		if item.Reasoning != nil {
			w.ReasoningContent = item.Reasoning.Content
			w.EncryptedContent = item.Reasoning.EncryptedContent
			w.Summary = item.Reasoning.Summary
		}
	}

	return json.Marshal(w)
}

// UnmarshalJSON deserializes an Item from either the flat wire format
// or the internal nested format, handling both for compatibility.
func (item *Item) UnmarshalJSON(data []byte) error {
	var base struct {
		itemWire

		// Nested format fields.
		Message            *MessageData            `json:"message"`
		FunctionCall       *FunctionCallData       `json:"function_call"`
		FunctionCallOutput *FunctionCallOutputData `json:"function_call_output"`
		Reasoning          *ReasoningData          `json:"reasoning"`
	}
	if err := json.Unmarshal(data, &base); err != nil {
		return err
	}

	*item = Item{ID: base.ID, Type: base.Type, Extension: base.Extension}

	switch base.Type {
	case ItemTypeMessage:
		if base.Message != nil {
			item.Message = base.Message
		} else {
			item.Message = &MessageData{Role: base.Role, Content: base.Content}
		}

	case ItemTypeFunctionCall:
		if base.FunctionCall != nil {
			item.FunctionCall = base.FunctionCall
		} else {
			item.FunctionCall = &FunctionCallData{
				Name:             base.Name,
				CallID:           base.CallID,
				Arguments:        base.Arguments,
				ThoughtSignature: base.ThoughtSignature,
			}
		}

	case ItemTypeFunctionCallOutput:
		if base.FunctionCallOutput != nil {
			item.FunctionCallOutput = base.FunctionCallOutput
			break
		}
		out := &FunctionCallOutputData{CallID: base.CallID}
		if len(base.Output) > 0 {
			// A string output is the common case; an array is multi-part content.
			if err := json.Unmarshal(base.Output, &out.Output); err != nil {
				var parts []ContentPart
				if err := json.Unmarshal(base.Output, &parts); err == nil {
					out.ContentItems = parts
				} else {
					out.Output = string(base.Output)
				}
			}
		}
		item.FunctionCallOutput = out

	case ItemTypeReasoning:
		if base.Reasoning != nil {
			item.Reasoning = base.Reasoning
		} else if base.ReasoningContent != "" || base.EncryptedContent != "" || base.Summary != "" {
			item.Reasoning = &ReasoningData{
				Content:          base.ReasoningContent,
				EncryptedContent: base.EncryptedContent,
				Summary:          base.Summary,
			}
		}

	default:
		// Pass-through variants keep their full payload.
		if len(item.Extension) == 0 {
			item.Extension = append(json.RawMessage(nil), data...)
		}
	}

	return nil
}

// ---------------------------------------------------------------------------
// Tools and prompt
// ---------------------------------------------------------------------------

// ToolSpec describes a tool available to the model. Parameters is a JSON
// Schema object.
type ToolSpec struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// UnmarshalJSON accepts both the flat form and the nested Chat Completions
// form {"type":"function","function":{"name":...}}.
func (t *ToolSpec) UnmarshalJSON(data []byte) error {
	type flat ToolSpec
	var w struct {
		flat
		Function *flat `json:"function"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*t = ToolSpec(w.flat)
	if w.Function != nil {
		t.Name = w.Function.Name
		t.Description = w.Function.Description
		t.Parameters = w.Function.Parameters
	}
	if t.Type == "" {
		t.Type = "function"
	}
	return nil
}

// Prompt is the vendor-neutral input of one model call.
type Prompt struct {
	Instructions string     `json:"instructions,omitempty"`
	Input        []Item     `json:"input"`
	Tools        []ToolSpec `json:"tools,omitempty"`
}

// ConversationMeta identifies the conversation a call belongs to. Builders
// forward it to the backend as request headers.
type ConversationMeta struct {
	ConversationID string `json:"conversation_id,omitempty"`
	SessionSource  string `json:"session_source,omitempty"`
}

// Headers returns the metadata as HTTP header key/value pairs. Empty values
// are omitted.
func (m ConversationMeta) Headers() map[string]string {
	h := make(map[string]string, 2)
	if m.ConversationID != "" {
		h["conversation_id"] = m.ConversationID
	}
	if m.SessionSource != "" {
		h["session_source"] = m.SessionSource
	}
	return h
}

// TokenUsage holds token accounting for one model call. Fields the backend
// does not report are zero.
type TokenUsage struct {
	InputTokens           int64 `json:"input_tokens"`
	CachedInputTokens     int64 `json:"cached_input_tokens"`
	OutputTokens          int64 `json:"output_tokens"`
	ReasoningOutputTokens int64 `json:"reasoning_output_tokens"`
	TotalTokens           int64 `json:"total_tokens"`
}
