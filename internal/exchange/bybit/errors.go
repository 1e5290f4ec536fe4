package bybit

import (
	"errors"
	"fmt"
	"net/http"
)

// Error carries a Bybit API retCode alongside the message.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("bybit API error %d: %s", e.Code, e.Message)
}

// Common Bybit v5 error codes.
const (
	ErrCodeInvalidAPIKey       = 10003
	ErrCodeInvalidSignature    = 10004
	ErrCodeInvalidTimestamp    = 10005
	ErrCodeRateLimitExceeded   = 10006
	ErrCodeOrderNotFound       = 110001
	ErrCodeInvalidOrderType    = 110004
	ErrCodeInsufficientBalance = 110007
	ErrCodeSymbolNotFound      = 110009
	ErrCodeInvalidQuantity     = 110020
	ErrCodeInvalidPrice        = 110021
	ErrCodeLeverageNotModified = 110043
)

// NewError creates a Bybit API error from a retCode and message.
func NewError(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// ParseAPIError turns a non-zero retCode into an Error, nil otherwise.
func ParseAPIError(retCode int, retMsg string) error {
	if retCode == 0 {
		return nil
	}
	return NewError(retCode, retMsg)
}

// IsRetryable reports whether an error is transient (rate limit or 5xx) and
// should be retried with backoff.
func IsRetryable(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case ErrCodeRateLimitExceeded,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	// Network-level failures surface as plain errors from the HTTP client.
	return err != nil
}

// IsAuthError reports whether the error indicates bad credentials. Auth
// failures are fatal: the process exits instead of retrying.
func IsAuthError(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case ErrCodeInvalidAPIKey, ErrCodeInvalidSignature, ErrCodeInvalidTimestamp:
			return true
		}
	}
	return false
}

// IsInsufficientBalance reports whether the order was refused for margin.
func IsInsufficientBalance(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == ErrCodeInsufficientBalance
	}
	return false
}

// IsSymbolFilterError reports whether the order violated a quantity or price
// filter of the instrument.
func IsSymbolFilterError(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case ErrCodeInvalidQuantity, ErrCodeInvalidPrice, ErrCodeSymbolNotFound:
			return true
		}
	}
	return false
}

// IsLeverageNotModified reports the benign "leverage not modified" response
// Bybit returns when the requested leverage equals the current one.
func IsLeverageNotModified(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == ErrCodeLeverageNotModified
	}
	return false
}
