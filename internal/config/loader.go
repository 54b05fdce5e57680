package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var userHomeDir = os.UserHomeDir

// Load builds the configuration in layers:
//  1. Built-in defaults
//  2. YAML file (explicit path, PROMPTLAB_CONFIG, ./promptlab.yaml, ~/.config/promptlab/config.yaml)
//  3. PROMPTLAB_* environment overrides
//  4. _file secret resolution
//  5. Validation
func Load(configPath string) (*Config, error) {
	cfg := Defaults()

	if filePath := discoverConfigFile(configPath); filePath != "" {
		if err := loadYAMLFile(filePath, &cfg); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", filePath, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := resolveFileReferences(&cfg); err != nil {
		return nil, fmt.Errorf("resolving file references: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return &cfg, nil
}

func discoverConfigFile(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if envPath := os.Getenv("PROMPTLAB_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{"promptlab.yaml"}
	if home, err := userHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "promptlab", "config.yaml"))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PROMPTLAB_STORAGE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("PROMPTLAB_DB_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("PROMPTLAB_POSTGRES_DSN"); v != "" {
		cfg.Storage.Postgres.DSN = v
	}
	if v := os.Getenv("PROMPTLAB_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("PROMPTLAB_STAGGER_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Workshop.StaggerDelay = d
		}
	}
	if v := os.Getenv("PROMPTLAB_MAX_PARALLEL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workshop.MaxParallel = n
		}
	}
	if v := os.Getenv("PROMPTLAB_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workshop.MaxRetries = n
		}
	}
	if v := os.Getenv("PROMPTLAB_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workshop.MaxTokens = n
		}
	}
	if v := os.Getenv("PROMPTLAB_SYNTHESIS_MODEL"); v != "" {
		cfg.Workshop.SynthesisModel = v
	}
	if v := os.Getenv("PROMPTLAB_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("PROMPTLAB_DEBUG"); v != "" {
		cfg.Log.Debug = v
	}

	// PROMPTLAB_<PROVIDER>_BASE_URL, e.g. PROMPTLAB_OPENAI_BASE_URL.
	for _, name := range []string{"anthropic", "openai", "google", "openrouter"} {
		v := os.Getenv("PROMPTLAB_" + strings.ToUpper(name) + "_BASE_URL")
		if v == "" {
			continue
		}
		if cfg.Providers == nil {
			cfg.Providers = make(map[string]ProviderConfig)
		}
		pc := cfg.Providers[name]
		pc.BaseURL = v
		cfg.Providers[name] = pc
	}
}

func resolveFileReferences(cfg *Config) error {
	if cfg.Storage.Postgres.DSNFile != "" && cfg.Storage.Postgres.DSN == "" {
		val, err := readSecretFile(cfg.Storage.Postgres.DSNFile)
		if err != nil {
			return fmt.Errorf("storage.postgres.dsn_file: %w", err)
		}
		cfg.Storage.Postgres.DSN = val
	}
	return nil
}

func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
