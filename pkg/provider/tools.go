package provider

import (
	"encoding/json"
	"log/slog"

	"github.com/ce-data-e/opencodex/pkg/api"
)

// emptyObjectSchema is used for function tools that declare no parameters.
var emptyObjectSchema = json.RawMessage(`{"type":"object","properties":{}}`)

// FunctionTools returns the tools that can be sent as function
// declarations. Tools of another type or without a name are dropped with a
// warning. A missing parameter schema becomes an empty object schema.
func FunctionTools(tools []api.ToolSpec) []api.ToolSpec {
	out := make([]api.ToolSpec, 0, len(tools))
	for _, t := range tools {
		if t.Type != "" && t.Type != "function" {
			slog.Warn("skipping tool without function shape", "type", t.Type, "name", t.Name)
			continue
		}
		if t.Name == "" {
			slog.Warn("skipping function tool without a name")
			continue
		}
		if len(t.Parameters) == 0 || string(t.Parameters) == "null" {
			t.Parameters = emptyObjectSchema
		}
		out = append(out, t)
	}
	return out
}

// LookupFunctionNames scans input once and maps every function call's
// call_id to its function name. The table lives only for one build.
func LookupFunctionNames(input []api.Item) map[string]string {
	names := make(map[string]string)
	for _, item := range input {
		if item.Type == api.ItemTypeFunctionCall && item.FunctionCall != nil {
			names[item.FunctionCall.CallID] = item.FunctionCall.Name
		}
	}
	return names
}

// ParseArguments parses a JSON-encoded argument string. Anything that is
// not a JSON object yields an empty object.
func ParseArguments(args string) json.RawMessage {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(args), &obj); err != nil || obj == nil {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(args)
}
