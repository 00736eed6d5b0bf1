package domain

import (
	"fmt"

	"github.com/pkg/errors"
)

// Expected failure modes of the engine. Callers classify with errors.Is; the
// only fatal member is ErrLedgerInconsistency, which halts automatic ledger
// mutation for the session until resolved externally.
var (
	ErrNetwork             = errors.New("network unreachable")
	ErrTimeout             = errors.New("request deadline exceeded")
	ErrRateLimited         = errors.New("rate limited by upstream")
	ErrMalformedData       = errors.New("malformed item in payload")
	ErrInvalidAsset        = errors.New("asset cannot be quoted")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrSwapConflict        = errors.New("swap aborted by concurrent ledger update")
	ErrLedgerInconsistency = errors.New("ledger inconsistent after partial exchange write")
	ErrNoSession           = errors.New("no authenticated session")
)

// APIError is returned for non-2xx upstream responses that are not rate
// limits.
type APIError struct {
	StatusCode int
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("upstream %s returned status %d", e.Endpoint, e.StatusCode)
}

// IsFatal reports whether the error must stop automatic ledger mutation
// instead of degrading to fallback display.
func IsFatal(err error) bool {
	return errors.Is(err, ErrLedgerInconsistency)
}
