package config

import (
	"errors"
	"fmt"
)

var knownProviders = map[string]bool{
	"anthropic":  true,
	"openai":     true,
	"google":     true,
	"openrouter": true,
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Type {
	case "sqlite":
		if c.Storage.Path == "" {
			errs = append(errs, fmt.Errorf("storage.path is required when storage.type is \"sqlite\""))
		}
	case "memory":
	case "postgres":
		if c.Storage.Postgres.DSN == "" && c.Storage.Postgres.DSNFile == "" {
			errs = append(errs, fmt.Errorf("storage.postgres.dsn or storage.postgres.dsn_file is required when storage.type is \"postgres\""))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.type must be \"sqlite\", \"memory\" or \"postgres\", got %q", c.Storage.Type))
	}

	if c.Workshop.StaggerDelay < 0 {
		errs = append(errs, fmt.Errorf("workshop.stagger_delay must be >= 0, got %s", c.Workshop.StaggerDelay))
	}
	if c.Workshop.MaxParallel < 0 {
		errs = append(errs, fmt.Errorf("workshop.max_parallel must be >= 0, got %d", c.Workshop.MaxParallel))
	}
	if c.Workshop.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("workshop.max_retries must be >= 0, got %d", c.Workshop.MaxRetries))
	}
	if c.Workshop.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("workshop.max_tokens must be >= 0, got %d", c.Workshop.MaxTokens))
	}
	if c.Workshop.ResponseTruncate <= 0 {
		errs = append(errs, fmt.Errorf("workshop.response_truncate must be > 0, got %d", c.Workshop.ResponseTruncate))
	}

	for name, pc := range c.Providers {
		if !knownProviders[name] {
			errs = append(errs, fmt.Errorf("providers.%s: unknown provider", name))
		}
		if pc.TimeoutSec < 0 {
			errs = append(errs, fmt.Errorf("providers.%s.timeout_sec must be >= 0", name))
		}
	}

	for i, m := range c.Models {
		if m.ID == "" {
			errs = append(errs, fmt.Errorf("models[%d].id is required", i))
		}
		if !knownProviders[m.Provider] {
			errs = append(errs, fmt.Errorf("models[%d].provider %q is not a known provider", i, m.Provider))
		}
		if m.InputPerMTok < 0 || m.OutputPerMTok < 0 {
			errs = append(errs, fmt.Errorf("models[%d]: pricing must be >= 0", i))
		}
	}

	return errors.Join(errs...)
}
