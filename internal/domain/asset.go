package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// AssetClass distinguishes the supported asset categories. Every holding and
// quote carries its class so consumers can switch exhaustively instead of
// inspecting identifiers.
type AssetClass string

const (
	ClassCrypto AssetClass = "crypto"
	ClassStock  AssetClass = "stock"
	ClassNFT    AssetClass = "nft"
)

// Valid reports whether the class is one of the supported categories.
func (c AssetClass) Valid() bool {
	switch c {
	case ClassCrypto, ClassStock, ClassNFT:
		return true
	}
	return false
}

// LedgerKey normalizes an asset identifier into the ledger keying scheme for
// this class: stocks key by uppercase ticker, crypto and NFT collections key
// by lowercase catalog id.
func (c AssetClass) LedgerKey(identifier string) string {
	if c == ClassStock {
		return strings.ToUpper(strings.TrimSpace(identifier))
	}
	return strings.ToLower(strings.TrimSpace(identifier))
}

// AssetQuote is a point-in-time market quote for a single asset. Quotes are
// built fresh on every fetch and never persisted.
type AssetQuote struct {
	Identifier      string          `json:"id"`
	DisplaySymbol   string          `json:"symbol"`
	DisplayName     string          `json:"name"`
	Class           AssetClass      `json:"class"`
	PriceUSD        decimal.Decimal `json:"price_usd"`
	ChangePercent24 decimal.Decimal `json:"change_percent_24h"`
	MarketCapUSD    decimal.Decimal `json:"market_cap_usd"`
	Volume24hUSD    decimal.Decimal `json:"volume_24h_usd"`
	ImageRef        string          `json:"image,omitempty"`
}

// LedgerKey returns the ledger lookup key for this quote.
func (q AssetQuote) LedgerKey() string {
	return q.Class.LedgerKey(q.Identifier)
}

// QuoteBatch is the result of one catalog fetch for a single asset class.
// IsFallback marks batches served from the bundled dataset so the UI can
// indicate non-live data.
type QuoteBatch struct {
	Class      AssetClass   `json:"class"`
	Quotes     []AssetQuote `json:"quotes"`
	IsFallback bool         `json:"is_fallback"`
	FetchedAt  time.Time    `json:"fetched_at"`
}
