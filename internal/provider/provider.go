package provider

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dschwags/Prompt-Lab-sub000/pkg/models"
)

var (
	ErrProviderNotFound  = errors.New("provider not found")
	ErrModelNotSupported = errors.New("model not supported by provider")
	ErrAPIKeyRequired    = errors.New("API key is required")
	ErrRequestFailed     = errors.New("completion request failed")
	ErrEmptyResponse     = errors.New("provider returned no content")
	ErrUnauthorized      = errors.New("provider rejected credentials")
	ErrRateLimited       = errors.New("provider rate limit exceeded")
	ErrUnavailable       = errors.New("provider unavailable")
)

// Provider sends a single prompt to one completion API. Keys travel with each
// request so one adapter serves every round.
type Provider interface {
	Name() models.ProviderType
	SendPrompt(ctx context.Context, req *models.PromptRequest) (*models.Completion, error)
}

type Config struct {
	BaseURL    string
	TimeoutSec int
}

type Factory struct {
	registry  *models.ModelRegistry
	configs   map[models.ProviderType]*Config
	providers map[models.ProviderType]Provider
}

func NewFactory(registry *models.ModelRegistry) *Factory {
	return &Factory{
		registry:  registry,
		configs:   make(map[models.ProviderType]*Config),
		providers: make(map[models.ProviderType]Provider),
	}
}

func (f *Factory) Configure(providerType models.ProviderType, cfg *Config) {
	f.configs[providerType] = cfg
}

func (f *Factory) GetConfig(providerType models.ProviderType) (*Config, bool) {
	cfg, ok := f.configs[providerType]
	return cfg, ok
}

func (f *Factory) Register(provider Provider) {
	f.providers[provider.Name()] = provider
}

func (f *Factory) Get(providerType models.ProviderType) (Provider, error) {
	provider, ok := f.providers[providerType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, providerType)
	}
	return provider, nil
}

func (f *Factory) GetForModel(model string) (Provider, error) {
	providerType, ok := f.registry.ProviderFor(model)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotSupported, model)
	}

	provider, ok := f.providers[providerType]
	if !ok {
		return nil, fmt.Errorf("%w: %s (required by model %s)", ErrProviderNotFound, providerType, model)
	}

	return provider, nil
}

func (f *Factory) ListProviders() []models.ProviderType {
	types := make([]models.ProviderType, 0, len(f.providers))
	for t := range f.providers {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}
