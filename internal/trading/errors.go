package trading

import (
	"errors"
	"fmt"
)

// Error kinds for the analysis-to-execution pipeline. Transient kinds are
// retried by their callers; validation kinds are never retried; operational
// kinds abort the remainder of a plan and require operator intervention.
var (
	// Transient
	ErrMarketDataUnavailable = errors.New("market data unavailable")
	ErrTransientExchange     = errors.New("transient exchange error")
	ErrTransientAdvisor      = errors.New("transient advisor error")

	// Validation
	ErrAdvisorRejected    = errors.New("advisor reply rejected")
	ErrInvariantViolation = errors.New("signal invariant violation")

	// Operational
	ErrInsufficientMargin   = errors.New("insufficient margin")
	ErrSymbolFilterRejected = errors.New("symbol filter rejected")
	ErrCloseTimeout         = errors.New("position close not confirmed in time")
	ErrPositionDesync       = errors.New("position desync after open")
)

// InadmissibleError reports why the signal policy refused a signal. The
// Reason is a short machine-friendly token (e.g. "cooldown", "confidence").
type InadmissibleError struct {
	Reason string
	Detail string
}

func (e *InadmissibleError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("signal inadmissible (%s): %s", e.Reason, e.Detail)
	}
	return fmt.Sprintf("signal inadmissible (%s)", e.Reason)
}

// IsInadmissible reports whether err is a policy rejection and returns it.
func IsInadmissible(err error) (*InadmissibleError, bool) {
	var ie *InadmissibleError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}
