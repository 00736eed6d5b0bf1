package domain

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// LedgerEntry is a single line of a user's holdings ledger. Entries are
// created on first acquisition and mutated on every buy, sell or exchange;
// quantity may drop to zero but the entry is never deleted.
type LedgerEntry struct {
	AssetID        string          `json:"asset_id"`
	Class          AssetClass      `json:"class"`
	Quantity       decimal.Decimal `json:"quantity"`
	AverageCostUSD decimal.Decimal `json:"average_cost_usd"`
	LastUpdated    time.Time       `json:"last_updated"`
}

// NewLedgerEntry constructs a validated ledger entry.
func NewLedgerEntry(assetID string, class AssetClass, quantity, averageCost decimal.Decimal) (LedgerEntry, error) {
	if assetID == "" {
		return LedgerEntry{}, errors.New("asset id is required")
	}
	if !class.Valid() {
		return LedgerEntry{}, errors.Errorf("unknown asset class %q", class)
	}
	if quantity.IsNegative() {
		return LedgerEntry{}, errors.Errorf("quantity for %s must not be negative", assetID)
	}
	if averageCost.IsNegative() {
		return LedgerEntry{}, errors.Errorf("average cost for %s must not be negative", assetID)
	}

	return LedgerEntry{
		AssetID:        assetID,
		Class:          class,
		Quantity:       quantity,
		AverageCostUSD: averageCost,
		LastUpdated:    time.Now().UTC(),
	}, nil
}

// Ledger is a user's full holdings map keyed by normalized asset id.
type Ledger map[string]LedgerEntry

// Quantity returns the held quantity for the asset, zero when the asset has
// never been acquired.
func (l Ledger) Quantity(assetID string) decimal.Decimal {
	if e, ok := l[assetID]; ok {
		return e.Quantity
	}
	return decimal.Zero
}

// SwapLeg describes one side of an exchange: a signed quantity delta applied
// to a single ledger entry. Debits carry a negative delta. PriceUSD is the
// unit price at execution time, used to recompute cost basis on credits.
type SwapLeg struct {
	AssetID  string          `json:"asset_id"`
	Class    AssetClass      `json:"class"`
	Delta    decimal.Decimal `json:"delta"`
	PriceUSD decimal.Decimal `json:"price_usd"`
}
