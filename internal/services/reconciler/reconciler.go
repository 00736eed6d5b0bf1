package reconciler

import (
	"github.com/shopspring/decimal"

	"github.com/foliosync/foliosync/internal/domain"
)

// Result is a fully reconciled view of one asset class.
type Result struct {
	Holdings         []domain.ValuedHolding
	TotalValueUSD    decimal.Decimal
	WeightedChange24 decimal.Decimal
}

// Reconcile merges live quotes with ledger quantities. Every quote yields a
// holding: quantity defaults to zero when the ledger has no matching entry,
// so the full catalog stays browsable. Ledger entries without a live quote
// are appended as zero-priced holdings rather than dropped, keeping the
// ledger and the reconciled view in agreement.
//
// Total value and the value-weighted 24h change cover held assets only; the
// weighted change is zero when nothing is held.
func Reconcile(batch domain.QuoteBatch, ledger domain.Ledger) Result {
	holdings := make([]domain.ValuedHolding, 0, len(batch.Quotes))
	seen := make(map[string]struct{}, len(batch.Quotes))

	total := decimal.Zero
	weighted := decimal.Zero

	for _, quote := range batch.Quotes {
		key := quote.LedgerKey()
		seen[key] = struct{}{}

		quantity := ledger.Quantity(key)
		value := quantity.Mul(quote.PriceUSD)

		holdings = append(holdings, domain.ValuedHolding{
			Quote:    quote,
			Quantity: quantity,
			ValueUSD: value,
		})

		if quantity.IsPositive() {
			total = total.Add(value)
			weighted = weighted.Add(value.Mul(quote.ChangePercent24))
		}
	}

	// ledger entries with no matching quote surface as zero-valued holdings
	for key, entry := range ledger {
		if _, ok := seen[key]; ok {
			continue
		}
		if entry.Class != batch.Class || !entry.Quantity.IsPositive() {
			continue
		}
		holdings = append(holdings, domain.ValuedHolding{
			Quote: domain.AssetQuote{
				Identifier:    entry.AssetID,
				DisplaySymbol: entry.AssetID,
				Class:         batch.Class,
			},
			Quantity: entry.Quantity,
			ValueUSD: decimal.Zero,
		})
	}

	change := decimal.Zero
	if total.IsPositive() {
		change = weighted.Div(total)
	}

	return Result{
		Holdings:         holdings,
		TotalValueUSD:    total,
		WeightedChange24: change,
	}
}
