package models

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrEmptyPrompt      = errors.New("prompt cannot be empty")
	ErrEmptyModel       = errors.New("model id cannot be empty")
	ErrUnknownProvider  = errors.New("unknown provider")
	ErrDuplicateModelID = errors.New("model id already registered")
)

type ProviderType string

const (
	ProviderAnthropic  ProviderType = "anthropic"
	ProviderOpenAI     ProviderType = "openai"
	ProviderGoogle     ProviderType = "google"
	ProviderOpenRouter ProviderType = "openrouter"
)

func ValidProviders() []ProviderType {
	return []ProviderType{ProviderAnthropic, ProviderOpenAI, ProviderGoogle, ProviderOpenRouter}
}

func (p ProviderType) IsValid() bool {
	return slices.Contains(ValidProviders(), p)
}

func (p ProviderType) String() string {
	return string(p)
}

// EnvVar is the environment variable consulted for the provider's API key.
func (p ProviderType) EnvVar() string {
	switch p {
	case ProviderAnthropic:
		return "ANTHROPIC_API_KEY"
	case ProviderOpenAI:
		return "OPENAI_API_KEY"
	case ProviderGoogle:
		return "GEMINI_API_KEY"
	case ProviderOpenRouter:
		return "OPENROUTER_API_KEY"
	default:
		return strings.ToUpper(string(p)) + "_API_KEY"
	}
}

// PromptRequest is a single completion call sent to a provider adapter.
type PromptRequest struct {
	Model     string
	System    string
	User      string
	APIKey    string
	MaxTokens int
}

func NewPromptRequest(model, system, user string) *PromptRequest {
	return &PromptRequest{
		Model:     model,
		System:    system,
		User:      user,
		MaxTokens: 4096,
	}
}

func (r *PromptRequest) Validate() error {
	if r.Model == "" {
		return ErrEmptyModel
	}
	if strings.TrimSpace(r.User) == "" {
		return ErrEmptyPrompt
	}
	return nil
}

// Completion is the normalized result of a provider call.
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

func (c *Completion) TotalTokens() int {
	return c.InputTokens + c.OutputTokens
}

// ModelInfo describes one entry of the model catalog. Provider is resolved
// once at registration so dispatch never has to inspect the id.
type ModelInfo struct {
	ID          string
	DisplayName string
	Provider    ProviderType
	// InputPerMTok and OutputPerMTok are USD per million tokens. Zero means unknown.
	InputPerMTok  float64
	OutputPerMTok float64
}

func (m *ModelInfo) Validate() error {
	if m.ID == "" {
		return ErrEmptyModel
	}
	if !m.Provider.IsValid() {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, m.Provider)
	}
	return nil
}

func (m *ModelInfo) Name() string {
	if m.DisplayName != "" {
		return m.DisplayName
	}
	return m.ID
}

type ModelRegistry struct {
	models    map[string]*ModelInfo
	providers map[string]ProviderType
}

func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{
		models:    make(map[string]*ModelInfo),
		providers: make(map[string]ProviderType),
	}
}

// Register adds or replaces a catalog entry.
func (r *ModelRegistry) Register(info *ModelInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}
	r.models[info.ID] = info
	r.providers[info.ID] = info.Provider
	return nil
}

func (r *ModelRegistry) Get(id string) (*ModelInfo, bool) {
	info, ok := r.models[id]
	return info, ok
}

// ProviderFor returns the precomputed provider tag of a model id.
func (r *ModelRegistry) ProviderFor(id string) (ProviderType, bool) {
	p, ok := r.providers[id]
	return p, ok
}

// DisplayName falls back to the id for unknown models.
func (r *ModelRegistry) DisplayName(id string) string {
	if info, ok := r.models[id]; ok {
		return info.Name()
	}
	return id
}

func (r *ModelRegistry) List() []string {
	ids := make([]string, 0, len(r.models))
	for id := range r.models {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (r *ModelRegistry) ListByProvider(provider ProviderType) []string {
	var ids []string
	for id, p := range r.providers {
		if p == provider {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

func DefaultRegistry() *ModelRegistry {
	r := NewModelRegistry()

	for _, info := range []*ModelInfo{
		{ID: "claude-sonnet-4-5", DisplayName: "Claude Sonnet 4.5", Provider: ProviderAnthropic, InputPerMTok: 3.00, OutputPerMTok: 15.00},
		{ID: "claude-haiku-4-5", DisplayName: "Claude Haiku 4.5", Provider: ProviderAnthropic, InputPerMTok: 1.00, OutputPerMTok: 5.00},
		{ID: "claude-opus-4-1", DisplayName: "Claude Opus 4.1", Provider: ProviderAnthropic, InputPerMTok: 15.00, OutputPerMTok: 75.00},
		{ID: "gpt-4o", DisplayName: "GPT-4o", Provider: ProviderOpenAI, InputPerMTok: 2.50, OutputPerMTok: 10.00},
		{ID: "gpt-4o-mini", DisplayName: "GPT-4o mini", Provider: ProviderOpenAI, InputPerMTok: 0.15, OutputPerMTok: 0.60},
		{ID: "gpt-5-mini", DisplayName: "GPT-5 mini", Provider: ProviderOpenAI, InputPerMTok: 0.25, OutputPerMTok: 2.00},
		{ID: "gemini-2.5-pro", DisplayName: "Gemini 2.5 Pro", Provider: ProviderGoogle, InputPerMTok: 1.25, OutputPerMTok: 10.00},
		{ID: "gemini-2.5-flash", DisplayName: "Gemini 2.5 Flash", Provider: ProviderGoogle, InputPerMTok: 0.30, OutputPerMTok: 2.50},
		{ID: "meta-llama/llama-3.3-70b-instruct", DisplayName: "Llama 3.3 70B", Provider: ProviderOpenRouter, InputPerMTok: 0.13, OutputPerMTok: 0.40},
		{ID: "deepseek/deepseek-chat", DisplayName: "DeepSeek V3", Provider: ProviderOpenRouter, InputPerMTok: 0.30, OutputPerMTok: 0.85},
		{ID: "mistralai/mistral-small-3.2-24b-instruct", DisplayName: "Mistral Small 3.2", Provider: ProviderOpenRouter},
	} {
		_ = r.Register(info)
	}

	return r
}
