package domain

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ExchangeQuote is an ephemeral cross-asset rate computed from two current
// prices. It is recomputed on every user input change and never stored.
type ExchangeQuote struct {
	FromAsset  AssetQuote
	ToAsset    AssetQuote
	Rate       decimal.Decimal
	FeePercent decimal.Decimal
}

// NewExchangeQuote derives the rate fromPrice/toPrice. Either price being
// zero or negative makes the pair unquotable.
func NewExchangeQuote(from, to AssetQuote, feePercent decimal.Decimal) (ExchangeQuote, error) {
	if !from.PriceUSD.IsPositive() {
		return ExchangeQuote{}, errors.Wrapf(ErrInvalidAsset, "%s has non-positive price %s", from.Identifier, from.PriceUSD)
	}
	if !to.PriceUSD.IsPositive() {
		return ExchangeQuote{}, errors.Wrapf(ErrInvalidAsset, "%s has non-positive price %s", to.Identifier, to.PriceUSD)
	}

	return ExchangeQuote{
		FromAsset:  from,
		ToAsset:    to,
		Rate:       from.PriceUSD.Div(to.PriceUSD),
		FeePercent: feePercent,
	}, nil
}

// Convert returns the destination amount for the given source amount.
func (q ExchangeQuote) Convert(fromAmount decimal.Decimal) decimal.Decimal {
	return fromAmount.Mul(q.Rate)
}

// Fee returns the flat proportional fee charged in the source asset.
func (q ExchangeQuote) Fee(fromAmount decimal.Decimal) decimal.Decimal {
	return fromAmount.Mul(q.FeePercent).Div(decimal.NewFromInt(100))
}
