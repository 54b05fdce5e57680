package cost

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LocalPricing is the user-maintained override file at ~/.promptlab/pricing.json.
type LocalPricing struct {
	UpdatedAt time.Time             `json:"updated_at"`
	Source    string                `json:"source"`
	Models    map[string]TokenPrice `json:"models"`
}

func SavePricing(pricing *LocalPricing) error {
	path, err := pricingCachePath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(pricing, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal pricing: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write pricing cache: %w", err)
	}
	return nil
}

// LoadPricing returns nil, nil when no override file exists.
func LoadPricing() (*LocalPricing, error) {
	path, err := pricingCachePath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read pricing cache: %w", err)
	}

	var pricing LocalPricing
	if err := json.Unmarshal(data, &pricing); err != nil {
		return nil, fmt.Errorf("failed to parse pricing cache: %w", err)
	}
	return &pricing, nil
}

func DeletePricing() error {
	path, err := pricingCachePath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete pricing cache: %w", err)
	}
	return nil
}

func pricingCachePath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".promptlab", "pricing.json"), nil
}

func PricingCachePath() (string, error) {
	return pricingCachePath()
}

// SetPrice records a manual rate for one model.
func SetPrice(model string, price TokenPrice) error {
	pricing, err := LoadPricing()
	if err != nil {
		return err
	}
	if pricing == nil {
		pricing = &LocalPricing{}
	}
	if pricing.Models == nil {
		pricing.Models = make(map[string]TokenPrice)
	}

	pricing.Models[model] = price
	pricing.UpdatedAt = time.Now()
	pricing.Source = "manual"
	return SavePricing(pricing)
}

func GetCachedPrice(model string) (TokenPrice, bool) {
	pricing, err := LoadPricing()
	if err != nil || pricing == nil {
		return TokenPrice{}, false
	}
	price, ok := pricing.Models[model]
	return price, ok
}
