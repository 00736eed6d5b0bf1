package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ValuedHolding joins a live quote with the quantity held. Holdings are
// derived on every reconciliation pass and live for a single refresh cycle.
type ValuedHolding struct {
	Quote    AssetQuote      `json:"quote"`
	Quantity decimal.Decimal `json:"quantity"`
	ValueUSD decimal.Decimal `json:"value_usd"`
}

// Held reports whether the user actually owns any of the asset.
func (h ValuedHolding) Held() bool {
	return h.Quantity.IsPositive()
}

// PortfolioSnapshot is the typed state emitted after every completed
// reconciliation cycle. String money fields avoid precision issues when the
// snapshot is rendered by web/UI layers.
type PortfolioSnapshot struct {
	Timestamp        time.Time       `json:"ts"`
	Class            AssetClass      `json:"class"`
	Holdings         []ValuedHolding `json:"holdings"`
	TotalValueUSD    string          `json:"total_value_usd"`
	WeightedChange24 string          `json:"weighted_change_24h"`
	IsFallback       bool            `json:"is_fallback,omitempty"`
	RateLimitedUntil *time.Time      `json:"rate_limited_until,omitempty"`
}
