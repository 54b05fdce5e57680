package cost

const (
	CurrencyUSD = "USD"
)

// PriceLookup is satisfied by *Table.
type PriceLookup interface {
	Price(model string) (TokenPrice, bool)
}

type Calculator struct {
	prices PriceLookup
}

func NewCalculator(prices PriceLookup) *Calculator {
	return &Calculator{prices: prices}
}

type Breakdown struct {
	Input    float64
	Output   float64
	Total    float64
	Currency string
	// Known is false when the model had no price and the cost was taken as zero.
	Known bool
}

// Calculate prices a call from its token counts. Unknown models cost zero.
func (c *Calculator) Calculate(model string, inputTokens, outputTokens int) Breakdown {
	b := Breakdown{Currency: CurrencyUSD}
	if c == nil || c.prices == nil {
		return b
	}

	price, ok := c.prices.Price(model)
	if !ok {
		return b
	}

	b.Known = true
	b.Input = (float64(inputTokens) / 1_000_000) * price.InputPerMTok
	b.Output = (float64(outputTokens) / 1_000_000) * price.OutputPerMTok
	b.Total = b.Input + b.Output
	return b
}
