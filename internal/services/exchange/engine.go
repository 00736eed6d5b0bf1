package exchange

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/foliosync/foliosync/internal/domain"
	"github.com/foliosync/foliosync/internal/storage/exchangejournal"
	"github.com/foliosync/foliosync/internal/storage/ledger"
)

// fee charged on the source amount, in percent
var defaultFeePercent = decimal.NewFromFloat(0.1)

// swapJournal is the slice of the exchange journal the engine consumes.
type swapJournal interface {
	RecordIntent(rec exchangejournal.Record) error
	RecordCompletion(id string) error
	Incomplete() ([]exchangejournal.Record, error)
}

// Engine computes cross-asset exchange quotes and executes swaps against
// the ledger. Execution always re-reads the ledger immediately before
// writing; quote-time balances are never trusted.
//
// After a detected ledger inconsistency the engine halts all further
// exchanges for the session until the inconsistency is explicitly
// acknowledged.
type Engine struct {
	store      ledger.Store
	journal    swapJournal
	logger     *zap.Logger
	feePercent decimal.Decimal

	mu     sync.Mutex
	halted bool
}

// New creates an exchange engine. It inspects the journal for swaps that
// never completed; finding one halts the engine immediately.
func New(logger *zap.Logger, store ledger.Store, journal swapJournal) (*Engine, error) {
	e := &Engine{
		store:      store,
		journal:    journal,
		logger:     logger,
		feePercent: defaultFeePercent,
	}

	pending, err := journal.Incomplete()
	if err != nil {
		return nil, errors.Wrap(err, "inspect exchange journal")
	}
	if len(pending) > 0 {
		e.halted = true
		for _, rec := range pending {
			logger.Error("incomplete swap found in journal, exchanges halted",
				zap.String("swap_id", rec.ID),
				zap.String("user", rec.UserID),
				zap.String("debit_asset", rec.Debit.AssetID),
				zap.String("credit_asset", rec.Credit.AssetID))
		}
	}

	return e, nil
}

// Quote computes the cross-asset rate fromPrice/toPrice.
func (e *Engine) Quote(from, to domain.AssetQuote) (domain.ExchangeQuote, error) {
	return domain.NewExchangeQuote(from, to, e.feePercent)
}

// Fee returns the flat proportional fee for the amount, charged in the
// source asset.
func (e *Engine) Fee(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(e.feePercent).Div(decimal.NewFromInt(100))
}

// Validate reports whether the amount plus fee is covered by the balance.
func Validate(fromAmount, balance, fee decimal.Decimal) bool {
	if !fromAmount.IsPositive() {
		return false
	}
	return fromAmount.Add(fee).LessThanOrEqual(balance)
}

// Execute performs the swap: re-reads the ledger, re-validates sufficiency
// including the fee, journals the intent, applies debit and credit as one
// atomic ledger update and journals completion.
func (e *Engine) Execute(ctx context.Context, userID string, quote domain.ExchangeQuote, fromAmount decimal.Decimal) error {
	if userID == "" {
		return domain.ErrNoSession
	}

	e.mu.Lock()
	if e.halted {
		e.mu.Unlock()
		return errors.Wrap(domain.ErrLedgerInconsistency, "exchanges are halted")
	}
	e.mu.Unlock()

	if !fromAmount.IsPositive() {
		return errors.Wrapf(domain.ErrInvalidAsset, "exchange amount %s must be positive", fromAmount)
	}

	min := MinimumAmount(quote.FromAsset.DisplaySymbol)
	if fromAmount.LessThan(min) {
		return errors.Wrapf(domain.ErrInvalidAsset,
			"amount %s is below the %s minimum of %s", fromAmount, quote.FromAsset.DisplaySymbol, min)
	}

	fee := quote.Fee(fromAmount)
	toAmount := quote.Convert(fromAmount)
	fromKey := quote.FromAsset.LedgerKey()
	if fromKey == quote.ToAsset.LedgerKey() {
		return errors.Wrapf(domain.ErrInvalidAsset, "cannot exchange %s into itself", quote.FromAsset.Identifier)
	}

	// latest balance, not the one the quote was rendered against
	current, err := e.store.Read(ctx, userID)
	if err != nil {
		return errors.Wrap(err, "read ledger before swap")
	}

	if !Validate(fromAmount, current.Quantity(fromKey), fee) {
		return errors.Wrapf(domain.ErrInsufficientBalance,
			"need %s %s including fee, have %s",
			fromAmount.Add(fee), quote.FromAsset.DisplaySymbol, current.Quantity(fromKey))
	}

	debit := domain.SwapLeg{
		AssetID:  quote.FromAsset.Identifier,
		Class:    quote.FromAsset.Class,
		Delta:    fromAmount.Add(fee).Neg(),
		PriceUSD: quote.FromAsset.PriceUSD,
	}
	credit := domain.SwapLeg{
		AssetID:  quote.ToAsset.Identifier,
		Class:    quote.ToAsset.Class,
		Delta:    toAmount,
		PriceUSD: quote.ToAsset.PriceUSD,
	}

	rec := exchangejournal.Record{
		ID:        uuid.NewString(),
		UserID:    userID,
		Debit:     debit,
		Credit:    credit,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.journal.RecordIntent(rec); err != nil {
		return errors.Wrap(err, "journal swap intent")
	}

	if err := e.store.ApplySwap(ctx, userID, debit, credit); err != nil {
		if errors.Is(err, domain.ErrLedgerInconsistency) {
			e.halt(rec.ID, err)
			return err
		}
		// the swap applied nothing; mark the intent resolved so it does
		// not read as a partial write on recovery
		if cerr := e.journal.RecordCompletion(rec.ID); cerr != nil {
			e.logger.Error("failed to close aborted swap intent", zap.String("swap_id", rec.ID), zap.Error(cerr))
		}
		return err
	}

	if err := e.journal.RecordCompletion(rec.ID); err != nil {
		// the ledger write went through; losing the completion marker only
		// risks a spurious halt on next start
		e.logger.Error("failed to journal swap completion", zap.String("swap_id", rec.ID), zap.Error(err))
	}

	e.logger.Info("swap executed",
		zap.String("swap_id", rec.ID),
		zap.String("user", userID),
		zap.String("from", quote.FromAsset.Identifier),
		zap.String("to", quote.ToAsset.Identifier),
		zap.String("from_amount", fromAmount.String()),
		zap.String("to_amount", toAmount.String()),
		zap.String("fee", fee.String()))

	return nil
}

// Halted reports whether exchanges are blocked pending acknowledgment.
func (e *Engine) Halted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.halted
}

// AcknowledgeInconsistency re-enables exchanges after the ledger has been
// corrected externally.
func (e *Engine) AcknowledgeInconsistency() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.halted = false
}

func (e *Engine) halt(swapID string, err error) {
	e.mu.Lock()
	e.halted = true
	e.mu.Unlock()

	e.logger.Error("ledger inconsistency, halting exchanges for this session",
		zap.String("swap_id", swapID), zap.Error(err))
}
