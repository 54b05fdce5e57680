package models

import (
	"errors"
	"testing"
)

func TestProviderType_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		provider ProviderType
		want     bool
	}{
		{"anthropic", ProviderAnthropic, true},
		{"openai", ProviderOpenAI, true},
		{"google", ProviderGoogle, true},
		{"openrouter", ProviderOpenRouter, true},
		{"unknown", ProviderType("stability"), false},
		{"empty", ProviderType(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.provider.IsValid(); got != tt.want {
				t.Errorf("ProviderType.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProviderType_EnvVar(t *testing.T) {
	tests := []struct {
		provider ProviderType
		want     string
	}{
		{ProviderAnthropic, "ANTHROPIC_API_KEY"},
		{ProviderOpenAI, "OPENAI_API_KEY"},
		{ProviderGoogle, "GEMINI_API_KEY"},
		{ProviderOpenRouter, "OPENROUTER_API_KEY"},
		{ProviderType("mistral"), "MISTRAL_API_KEY"},
	}

	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			if got := tt.provider.EnvVar(); got != tt.want {
				t.Errorf("EnvVar() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewPromptRequest(t *testing.T) {
	req := NewPromptRequest("gpt-4o", "be brief", "hello")

	if req.Model != "gpt-4o" {
		t.Errorf("Model = %v, want gpt-4o", req.Model)
	}
	if req.System != "be brief" || req.User != "hello" {
		t.Errorf("unexpected prompt fields: %+v", req)
	}
	if req.MaxTokens != 4096 {
		t.Errorf("MaxTokens = %d, want 4096", req.MaxTokens)
	}
}

func TestPromptRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     *PromptRequest
		wantErr error
	}{
		{"valid", NewPromptRequest("gpt-4o", "", "hi"), nil},
		{"missing model", NewPromptRequest("", "", "hi"), ErrEmptyModel},
		{"empty prompt", NewPromptRequest("gpt-4o", "sys", ""), ErrEmptyPrompt},
		{"whitespace prompt", NewPromptRequest("gpt-4o", "sys", "  \n"), ErrEmptyPrompt},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCompletion_TotalTokens(t *testing.T) {
	c := &Completion{InputTokens: 120, OutputTokens: 30}
	if got := c.TotalTokens(); got != 150 {
		t.Errorf("TotalTokens() = %d, want 150", got)
	}
}

func TestModelInfo_Validate(t *testing.T) {
	tests := []struct {
		name    string
		info    *ModelInfo
		wantErr error
	}{
		{"valid", &ModelInfo{ID: "x", Provider: ProviderOpenAI}, nil},
		{"missing id", &ModelInfo{Provider: ProviderOpenAI}, ErrEmptyModel},
		{"bad provider", &ModelInfo{ID: "x", Provider: "acme"}, ErrUnknownProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.info.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestModelRegistry(t *testing.T) {
	r := NewModelRegistry()

	if err := r.Register(&ModelInfo{ID: "b-model", Provider: ProviderGoogle}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register(&ModelInfo{ID: "a-model", DisplayName: "Model A", Provider: ProviderAnthropic}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register(&ModelInfo{ID: "bad", Provider: "nope"}); err == nil {
		t.Error("Register() expected error for unknown provider")
	}

	if got := r.List(); len(got) != 2 || got[0] != "a-model" || got[1] != "b-model" {
		t.Errorf("List() = %v, want sorted [a-model b-model]", got)
	}

	p, ok := r.ProviderFor("a-model")
	if !ok || p != ProviderAnthropic {
		t.Errorf("ProviderFor(a-model) = %v, %v", p, ok)
	}
	if _, ok := r.ProviderFor("missing"); ok {
		t.Error("ProviderFor(missing) should not be found")
	}

	if got := r.DisplayName("a-model"); got != "Model A" {
		t.Errorf("DisplayName(a-model) = %q", got)
	}
	if got := r.DisplayName("b-model"); got != "b-model" {
		t.Errorf("DisplayName(b-model) = %q, want id fallback", got)
	}
	if got := r.DisplayName("ghost"); got != "ghost" {
		t.Errorf("DisplayName(ghost) = %q", got)
	}

	if got := r.ListByProvider(ProviderGoogle); len(got) != 1 || got[0] != "b-model" {
		t.Errorf("ListByProvider(google) = %v", got)
	}
}

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	for _, p := range ValidProviders() {
		if len(r.ListByProvider(p)) == 0 {
			t.Errorf("DefaultRegistry() has no models for %s", p)
		}
	}

	info, ok := r.Get("claude-sonnet-4-5")
	if !ok {
		t.Fatal("claude-sonnet-4-5 not registered")
	}
	if info.Provider != ProviderAnthropic {
		t.Errorf("provider = %v, want anthropic", info.Provider)
	}
	if info.InputPerMTok <= 0 || info.OutputPerMTok <= 0 {
		t.Errorf("expected pricing for claude-sonnet-4-5, got %+v", info)
	}
}
