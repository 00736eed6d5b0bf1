package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/foliosync/foliosync/internal/domain"
)

// Bundled datasets served when a live fetch returns an empty payload. They
// exist for offline and demo continuity, not as a cache, and are always
// flagged so the UI can indicate non-live data.

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

var fallbackCrypto = []domain.AssetQuote{
	{Identifier: "bitcoin", DisplaySymbol: "btc", DisplayName: "Bitcoin", Class: domain.ClassCrypto, PriceUSD: dec(50000), ChangePercent24: dec(1.2), MarketCapUSD: dec(980_000_000_000), Volume24hUSD: dec(32_000_000_000)},
	{Identifier: "ethereum", DisplaySymbol: "eth", DisplayName: "Ethereum", Class: domain.ClassCrypto, PriceUSD: dec(2500), ChangePercent24: dec(-0.8), MarketCapUSD: dec(300_000_000_000), Volume24hUSD: dec(15_000_000_000)},
	{Identifier: "solana", DisplaySymbol: "sol", DisplayName: "Solana", Class: domain.ClassCrypto, PriceUSD: dec(140), ChangePercent24: dec(2.1), MarketCapUSD: dec(65_000_000_000), Volume24hUSD: dec(2_400_000_000)},
	{Identifier: "cardano", DisplaySymbol: "ada", DisplayName: "Cardano", Class: domain.ClassCrypto, PriceUSD: dec(0.45), ChangePercent24: dec(0.3), MarketCapUSD: dec(16_000_000_000), Volume24hUSD: dec(420_000_000)},
	{Identifier: "dogecoin", DisplaySymbol: "doge", DisplayName: "Dogecoin", Class: domain.ClassCrypto, PriceUSD: dec(0.12), ChangePercent24: dec(-2.5), MarketCapUSD: dec(17_000_000_000), Volume24hUSD: dec(900_000_000)},
}

var fallbackStocks = []domain.AssetQuote{
	{Identifier: "AAPL", DisplaySymbol: "AAPL", DisplayName: "Apple Inc.", Class: domain.ClassStock, PriceUSD: dec(190), ChangePercent24: dec(0.6), MarketCapUSD: dec(2_900_000_000_000), Volume24hUSD: dec(11_000_000_000)},
	{Identifier: "MSFT", DisplaySymbol: "MSFT", DisplayName: "Microsoft Corporation", Class: domain.ClassStock, PriceUSD: dec(410), ChangePercent24: dec(0.9), MarketCapUSD: dec(3_000_000_000_000), Volume24hUSD: dec(9_500_000_000)},
	{Identifier: "GOOGL", DisplaySymbol: "GOOGL", DisplayName: "Alphabet Inc.", Class: domain.ClassStock, PriceUSD: dec(150), ChangePercent24: dec(-0.4), MarketCapUSD: dec(1_900_000_000_000), Volume24hUSD: dec(6_800_000_000)},
	{Identifier: "TSLA", DisplaySymbol: "TSLA", DisplayName: "Tesla, Inc.", Class: domain.ClassStock, PriceUSD: dec(240), ChangePercent24: dec(-1.8), MarketCapUSD: dec(760_000_000_000), Volume24hUSD: dec(18_000_000_000)},
}

var fallbackNFTs = []domain.AssetQuote{
	{Identifier: "cryptopunks", DisplaySymbol: "punk", DisplayName: "CryptoPunks", Class: domain.ClassNFT, PriceUSD: dec(68000), ChangePercent24: dec(1.5), Volume24hUSD: dec(2_300_000)},
	{Identifier: "bored-ape-yacht-club", DisplaySymbol: "bayc", DisplayName: "Bored Ape Yacht Club", Class: domain.ClassNFT, PriceUSD: dec(42000), ChangePercent24: dec(-3.1), Volume24hUSD: dec(1_700_000)},
	{Identifier: "azuki", DisplaySymbol: "azuki", DisplayName: "Azuki", Class: domain.ClassNFT, PriceUSD: dec(9800), ChangePercent24: dec(0.2), Volume24hUSD: dec(640_000)},
}

// Fallback returns the bundled dataset for the class, flagged as non-live.
// The returned batch is never empty.
func Fallback(class domain.AssetClass) domain.QuoteBatch {
	var quotes []domain.AssetQuote
	switch class {
	case domain.ClassStock:
		quotes = fallbackStocks
	case domain.ClassNFT:
		quotes = fallbackNFTs
	default:
		quotes = fallbackCrypto
	}

	out := make([]domain.AssetQuote, len(quotes))
	copy(out, quotes)

	return domain.QuoteBatch{
		Class:      class,
		Quotes:     out,
		IsFallback: true,
		FetchedAt:  time.Now().UTC(),
	}
}
