package api

import "fmt"

// ValidationConfig holds configurable limits for prompt validation.
type ValidationConfig struct {
	MaxInputItems int
	MaxTools      int
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxInputItems: 10000,
		MaxTools:      128,
	}
}

// ValidatePrompt checks a Prompt for structural problems the request
// builders cannot repair. It returns an *APIError describing the first
// failure, or nil if the prompt is valid.
func ValidatePrompt(p *Prompt, cfg ValidationConfig) *APIError {
	if p == nil || len(p.Input) == 0 {
		return NewInvalidRequestError("input", "input must contain at least one item")
	}

	if cfg.MaxInputItems > 0 && len(p.Input) > cfg.MaxInputItems {
		return NewInvalidRequestError("input",
			fmt.Sprintf("input exceeds maximum of %d items", cfg.MaxInputItems))
	}

	if cfg.MaxTools > 0 && len(p.Tools) > cfg.MaxTools {
		return NewInvalidRequestError("tools",
			fmt.Sprintf("tools exceeds maximum of %d", cfg.MaxTools))
	}

	seen := make(map[string]bool)
	for i, item := range p.Input {
		switch item.Type {
		case ItemTypeMessage:
			if item.Message == nil {
				return NewInvalidRequestError(fmt.Sprintf("input[%d]", i), "message item has no message data")
			}
		case ItemTypeFunctionCall:
			fc := item.FunctionCall
			if fc == nil || fc.CallID == "" {
				return NewInvalidRequestError(fmt.Sprintf("input[%d].call_id", i), "function_call requires a call_id")
			}
			if fc.Name == "" {
				return NewInvalidRequestError(fmt.Sprintf("input[%d].name", i), "function_call requires a name")
			}
			if seen[fc.CallID] {
				return NewInvalidRequestError(fmt.Sprintf("input[%d].call_id", i),
					fmt.Sprintf("duplicate call_id %q", fc.CallID))
			}
			seen[fc.CallID] = true
		case ItemTypeFunctionCallOutput:
			if item.FunctionCallOutput == nil || item.FunctionCallOutput.CallID == "" {
				return NewInvalidRequestError(fmt.Sprintf("input[%d].call_id", i), "function_call_output requires a call_id")
			}
		}
	}

	return nil
}
