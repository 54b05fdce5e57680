package keys

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/dschwags/Prompt-Lab-sub000/pkg/models"
)

var ErrKeyNotFound = errors.New("no key stored for provider")

// Store persists provider API keys in keys.json under the user config dir.
type Store struct {
	configDir string
}

type KeyEntry struct {
	Key string `json:"key"`
}

type Keys map[string]KeyEntry

// NewStore creates a key store in the platform config directory.
func NewStore() (*Store, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, err
	}
	return &Store{configDir: configDir}, nil
}

// NewStoreAt roots the store at dir.
func NewStoreAt(dir string) *Store {
	return &Store{configDir: dir}
}

// getConfigDir returns PROMPTLAB_CONFIG_DIR or the platform-specific config directory.
func getConfigDir() (string, error) {
	if dir := os.Getenv("PROMPTLAB_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support", "promptlab"), nil
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, "promptlab"), nil
	default:
		configHome := os.Getenv("XDG_CONFIG_HOME")
		if configHome == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configHome = filepath.Join(home, ".config")
		}
		return filepath.Join(configHome, "promptlab"), nil
	}
}

// Path returns the path to the keys.json file.
func (s *Store) Path() string {
	return filepath.Join(s.configDir, "keys.json")
}

// load reads the keys from disk.
func (s *Store) load() (Keys, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return make(Keys), nil
		}
		return nil, err
	}

	var keys Keys
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, fmt.Errorf("failed to parse keys.json: %w", err)
	}
	if keys == nil {
		keys = make(Keys)
	}
	return keys, nil
}

// save writes the keys to disk.
func (s *Store) save(keys Keys) error {
	if err := os.MkdirAll(s.configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(keys, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(s.Path(), data, 0600); err != nil {
		return fmt.Errorf("failed to write keys.json: %w", err)
	}
	return nil
}

// Set stores a key for the given provider.
func (s *Store) Set(provider, key string) error {
	keys, err := s.load()
	if err != nil {
		return err
	}

	keys[provider] = KeyEntry{Key: key}
	return s.save(keys)
}

// Get returns "" with a nil error when no key is stored.
func (s *Store) Get(provider string) (string, error) {
	keys, err := s.load()
	if err != nil {
		return "", err
	}
	return keys[provider].Key, nil
}

// Delete removes a key for the given provider.
func (s *Store) Delete(provider string) error {
	keys, err := s.load()
	if err != nil {
		return err
	}

	if _, ok := keys[provider]; !ok {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, provider)
	}

	delete(keys, provider)
	return s.save(keys)
}

// List returns stored provider names in sorted order.
func (s *Store) List() ([]string, error) {
	keys, err := s.load()
	if err != nil {
		return nil, err
	}

	providers := make([]string, 0, len(keys))
	for provider := range keys {
		providers = append(providers, provider)
	}
	slices.Sort(providers)
	return providers, nil
}

// Exists checks if a key exists for the given provider.
func (s *Store) Exists(provider string) (bool, error) {
	keys, err := s.load()
	if err != nil {
		return false, err
	}
	_, ok := keys[provider]
	return ok, nil
}

// MaskKey returns a masked version of the key for display.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return strings.Repeat("*", len(key))
	}
	return key[:4] + strings.Repeat("*", len(key)-8) + key[len(key)-4:]
}

// Resolver looks up provider keys, preferring the key store over the environment.
type Resolver struct {
	store  *Store
	getenv func(string) string
}

// NewResolver accepts a nil store, in which case only the environment is consulted.
func NewResolver(store *Store, getenv func(string) string) *Resolver {
	if getenv == nil {
		getenv = os.Getenv
	}
	return &Resolver{store: store, getenv: getenv}
}

// Lookup returns "" when no key is configured.
func (r *Resolver) Lookup(provider models.ProviderType) string {
	key, _ := r.Source(provider)
	return key
}

// Source reports the key together with a human readable origin.
func (r *Resolver) Source(provider models.ProviderType) (string, string) {
	if r.store != nil {
		if key, err := r.store.Get(string(provider)); err == nil && key != "" {
			return key, "stored key (" + r.store.Path() + ")"
		}
	}

	for _, env := range envVars(provider) {
		if key := r.getenv(env); key != "" {
			return key, "environment variable (" + env + ")"
		}
	}
	return "", ""
}

// envVars lists the environment variables consulted for a provider, in order.
func envVars(provider models.ProviderType) []string {
	vars := []string{provider.EnvVar()}
	if provider == models.ProviderGoogle {
		vars = append(vars, "GOOGLE_API_KEY")
	}
	return vars
}
