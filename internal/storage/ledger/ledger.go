// Package ledger provides the holdings store: a per-user document keyed by
// normalized asset id, the single source of truth for balances.
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/foliosync/foliosync/internal/domain"
)

// Store is the ledger contract consumed by the reconciliation and exchange
// engines. Implementations must reject any write that would drive a quantity
// negative before mutating anything, and ApplySwap must update both legs
// atomically.
type Store interface {
	// Read returns the user's full ledger. A user without one gets an
	// empty ledger, not an error.
	Read(ctx context.Context, userID string) (domain.Ledger, error)

	// Write upserts a single entry.
	Write(ctx context.Context, userID string, entry domain.LedgerEntry) error

	// ApplySwap applies a debit and a credit as one atomic update.
	ApplySwap(ctx context.Context, userID string, debit, credit domain.SwapLeg) error

	// Stream emits the ledger on every change until ctx is cancelled. The
	// channel is closed on cancellation; resubscribing restarts it.
	Stream(ctx context.Context, userID string) (<-chan domain.Ledger, error)
}

// applyLegs computes the post-swap entries for both legs against the current
// ledger. Shared by store implementations so validation and cost-basis math
// stay identical regardless of backend.
func applyLegs(current domain.Ledger, debit, credit domain.SwapLeg, now time.Time) (domain.LedgerEntry, domain.LedgerEntry, error) {
	debited, err := applyLeg(current, debit, now)
	if err != nil {
		return domain.LedgerEntry{}, domain.LedgerEntry{}, err
	}
	credited, err := applyLeg(current, credit, now)
	if err != nil {
		return domain.LedgerEntry{}, domain.LedgerEntry{}, err
	}
	return debited, credited, nil
}

func applyLeg(current domain.Ledger, leg domain.SwapLeg, now time.Time) (domain.LedgerEntry, error) {
	key := leg.Class.LedgerKey(leg.AssetID)
	entry, ok := current[key]
	if !ok {
		entry = domain.LedgerEntry{
			AssetID:  key,
			Class:    leg.Class,
			Quantity: decimal.Zero,
		}
	}

	newQty := entry.Quantity.Add(leg.Delta)
	if newQty.IsNegative() {
		return domain.LedgerEntry{}, domain.ErrInsufficientBalance
	}

	if leg.Delta.IsPositive() && newQty.IsPositive() {
		// weighted-average cost basis over the existing position and the
		// newly acquired amount
		oldCost := entry.Quantity.Mul(entry.AverageCostUSD)
		addedCost := leg.Delta.Mul(leg.PriceUSD)
		entry.AverageCostUSD = oldCost.Add(addedCost).Div(newQty)
	}

	entry.Quantity = newQty
	entry.LastUpdated = now
	return entry, nil
}
