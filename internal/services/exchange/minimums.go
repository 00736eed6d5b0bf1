package exchange

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Per-asset minimum exchange amounts keyed by display symbol. Assets not
// listed fall back to the default minimum.
var minimumAmounts = map[string]decimal.Decimal{
	"btc":  decimal.NewFromFloat(0.0001),
	"eth":  decimal.NewFromFloat(0.001),
	"sol":  decimal.NewFromFloat(0.01),
	"ada":  decimal.NewFromFloat(1),
	"doge": decimal.NewFromFloat(10),
	"xrp":  decimal.NewFromFloat(1),
}

var defaultMinimumAmount = decimal.NewFromFloat(0.00001)

// MinimumAmount returns the smallest exchangeable amount for the symbol.
func MinimumAmount(symbol string) decimal.Decimal {
	if min, ok := minimumAmounts[strings.ToLower(symbol)]; ok {
		return min
	}
	return defaultMinimumAmount
}
