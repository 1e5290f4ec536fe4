package exchange

import (
	"context"

	"github.com/ducminhle1904/gpt-futures-bot/internal/exchange/bybit"
)

// Retry runs fn with the standard exchange retry schedule: three retries at
// 1s, 2s, 4s with jitter. Errors that are not transient fail immediately.
func Retry(ctx context.Context, fn func() error) error {
	return bybit.Retry(ctx, fn)
}

// Error classification at the facade boundary. Callers decide retry and
// abort behavior from these predicates without importing backend packages.

// IsTransient reports whether the error is worth retrying: rate limits,
// server-side failures, timeouts, connection resets.
func IsTransient(err error) bool {
	return bybit.IsRetryable(err)
}

// IsAuthFailure reports an invalid or expired API credential.
func IsAuthFailure(err error) bool {
	return bybit.IsAuthError(err)
}

// IsInsufficientMargin reports that the account cannot cover the order.
func IsInsufficientMargin(err error) bool {
	return bybit.IsInsufficientBalance(err)
}

// IsFilterRejection reports that the order violated an instrument filter
// such as minimum quantity or notional.
func IsFilterRejection(err error) bool {
	return bybit.IsSymbolFilterError(err)
}
