package cost

import "github.com/dschwags/Prompt-Lab-sub000/pkg/models"

// TokenPrice is USD per million tokens.
type TokenPrice struct {
	InputPerMTok  float64 `json:"input_per_mtok"`
	OutputPerMTok float64 `json:"output_per_mtok"`
}

func (p TokenPrice) IsZero() bool {
	return p.InputPerMTok == 0 && p.OutputPerMTok == 0
}

// Table resolves model ids to rates. Local overrides win over catalog rates.
type Table struct {
	registry  *models.ModelRegistry
	overrides map[string]TokenPrice
}

func NewTable(registry *models.ModelRegistry) *Table {
	return &Table{
		registry:  registry,
		overrides: make(map[string]TokenPrice),
	}
}

// LoadOverrides merges the local pricing file into the table. A missing file is not an error.
func (t *Table) LoadOverrides() error {
	local, err := LoadPricing()
	if err != nil {
		return err
	}
	if local == nil {
		return nil
	}
	for model, price := range local.Models {
		t.overrides[model] = price
	}
	return nil
}

func (t *Table) SetOverride(model string, price TokenPrice) {
	t.overrides[model] = price
}

// Price reports false when no rate is known for the model.
func (t *Table) Price(model string) (TokenPrice, bool) {
	if price, ok := t.overrides[model]; ok {
		return price, true
	}
	if t.registry == nil {
		return TokenPrice{}, false
	}
	info, ok := t.registry.Get(model)
	if !ok {
		return TokenPrice{}, false
	}
	price := TokenPrice{InputPerMTok: info.InputPerMTok, OutputPerMTok: info.OutputPerMTok}
	if price.IsZero() {
		return TokenPrice{}, false
	}
	return price, true
}
