package api

import "testing"

func TestValidatePrompt(t *testing.T) {
	cfg := DefaultValidationConfig()
	tests := []struct {
		name      string
		prompt    *Prompt
		wantParam string
	}{
		{"valid", &Prompt{Input: []Item{NewMessage(RoleUser, "hi")}}, ""},
		{"nil", nil, "input"},
		{"empty input", &Prompt{}, "input"},
		{
			"duplicate call id",
			&Prompt{Input: []Item{NewFunctionCall("c1", "f", "{}"), NewFunctionCall("c1", "g", "{}")}},
			"input[1].call_id",
		},
		{
			"call without name",
			&Prompt{Input: []Item{NewFunctionCall("c1", "", "{}")}},
			"input[0].name",
		},
		{
			"output without call id",
			&Prompt{Input: []Item{{Type: ItemTypeFunctionCallOutput, FunctionCallOutput: &FunctionCallOutputData{}}}},
			"input[0].call_id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePrompt(tt.prompt, cfg)
			if tt.wantParam == "" {
				if err != nil {
					t.Fatalf("ValidatePrompt() = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("ValidatePrompt() = nil, want error on %s", tt.wantParam)
			}
			if err.Param != tt.wantParam {
				t.Errorf("Param = %q, want %q", err.Param, tt.wantParam)
			}
		})
	}
}

func TestValidatePromptToolLimit(t *testing.T) {
	p := &Prompt{
		Input: []Item{NewMessage(RoleUser, "hi")},
		Tools: make([]ToolSpec, 3),
	}
	if err := ValidatePrompt(p, ValidationConfig{MaxTools: 2}); err == nil || err.Param != "tools" {
		t.Errorf("ValidatePrompt() = %v, want tools error", err)
	}
}
