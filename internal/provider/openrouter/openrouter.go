// Package openrouter routes models through OpenRouter's OpenAI-compatible API.
package openrouter

import (
	"github.com/dschwags/Prompt-Lab-sub000/internal/provider"
	"github.com/dschwags/Prompt-Lab-sub000/internal/provider/openai"
	"github.com/dschwags/Prompt-Lab-sub000/pkg/models"
)

const (
	DefaultBaseURL = "https://openrouter.ai/api/v1"
	appReferer     = "https://github.com/dschwags/Prompt-Lab"
	appTitle       = "promptlab"
)

func New(cfg *provider.Config) *openai.Provider {
	return openai.NewCompatible(models.ProviderOpenRouter, DefaultBaseURL, cfg, map[string]string{
		"HTTP-Referer": appReferer,
		"X-Title":      appTitle,
	})
}
