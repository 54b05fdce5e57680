// Package config loads promptlab settings from defaults, YAML and the environment.
package config

import (
	"path/filepath"
	"time"
)

type Config struct {
	Workshop  WorkshopConfig            `yaml:"workshop"`
	Storage   StorageConfig             `yaml:"storage"`
	Server    ServerConfig              `yaml:"server"`
	Log       LogConfig                 `yaml:"log"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	Models    []ModelConfig             `yaml:"models"`
}

type WorkshopConfig struct {
	// StaggerDelay spaces out provider calls within a round. Zero dispatches all at once.
	StaggerDelay time.Duration `yaml:"stagger_delay"`
	MaxParallel  int           `yaml:"max_parallel"`
	MaxRetries   int           `yaml:"max_retries"`
	// MaxTokens caps each completion; 0 keeps the request default.
	MaxTokens int `yaml:"max_tokens"`
	// ResponseTruncate caps each response in the synthesis transcript, in runes.
	ResponseTruncate int    `yaml:"response_truncate"`
	SynthesisModel   string `yaml:"synthesis_model"`
	SystemPrompt     string `yaml:"system_prompt"`
}

type StorageConfig struct {
	Type     string         `yaml:"type"` // sqlite, memory, postgres
	Path     string         `yaml:"path"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	DSNFile  string `yaml:"dsn_file"`
	MaxConns int32  `yaml:"max_conns"`
}

type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Debug string `yaml:"debug"`
}

type ProviderConfig struct {
	BaseURL    string `yaml:"base_url"`
	TimeoutSec int    `yaml:"timeout_sec"`
	// AllowInsecure permits http and private addresses, for local gateways.
	AllowInsecure bool `yaml:"allow_insecure"`
}

// ModelConfig adds a catalog entry on top of the built-in models.
type ModelConfig struct {
	ID            string  `yaml:"id"`
	Name          string  `yaml:"name"`
	Provider      string  `yaml:"provider"`
	InputPerMTok  float64 `yaml:"input_per_mtok"`
	OutputPerMTok float64 `yaml:"output_per_mtok"`
}

func Defaults() Config {
	return Config{
		Workshop: WorkshopConfig{
			StaggerDelay:     0,
			MaxParallel:      0,
			MaxRetries:       2,
			ResponseTruncate: 1200,
			SynthesisModel:   "claude-sonnet-4-5",
		},
		Storage: StorageConfig{
			Type: "sqlite",
			Path: DefaultSessionDBPath(),
		},
		Server: ServerConfig{
			Addr:         "127.0.0.1:8420",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 5 * time.Minute,
		},
		Log: LogConfig{
			Level: "INFO",
		},
		Providers: map[string]ProviderConfig{},
	}
}

// DefaultSessionDBPath returns ~/.promptlab/sessions.db, or a relative path
// when the home directory cannot be determined.
func DefaultSessionDBPath() string {
	home, err := userHomeDir()
	if err != nil {
		return filepath.Join(".promptlab", "sessions.db")
	}
	return filepath.Join(home, ".promptlab", "sessions.db")
}
