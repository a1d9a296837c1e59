// Package errors provides the categorized error taxonomy shared by the
// service and API layers.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryUserInput represents user input errors (4xx)
	CategoryUserInput ErrorCategory = "user_input"
	// CategorySystem represents system errors (5xx)
	CategorySystem ErrorCategory = "system"
	// CategoryGateway represents market data gateway errors
	CategoryGateway ErrorCategory = "gateway"
	// CategoryDatabase represents database errors
	CategoryDatabase ErrorCategory = "database"
	// CategoryPricing represents price resolution errors
	CategoryPricing ErrorCategory = "pricing"
	// CategoryValidation represents validation errors
	CategoryValidation ErrorCategory = "validation"
	// CategoryNotFound represents not found errors
	CategoryNotFound ErrorCategory = "not_found"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// NewUnresolvedPriceError signals that no plausible price could be found for
// a token after exhausting every fallback. Callers must treat the token as
// untradable rather than substituting a numeric default.
func NewUnresolvedPriceError(symbol string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryPricing,
		StatusCode: http.StatusBadGateway,
		Code:       "UNRESOLVED_PRICE",
		Message:    fmt.Sprintf("could not resolve a reliable price for %s", symbol),
		Details: map[string]interface{}{
			"symbol": symbol,
		},
	}
}

// NewImplausiblePriceError reports a candidate quote rejected by the
// plausibility check. Internal to price resolution; it never escapes as a
// top-level result.
func NewImplausiblePriceError(symbol, market, price string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryPricing,
		StatusCode: http.StatusBadGateway,
		Code:       "IMPLAUSIBLE_PRICE",
		Message:    fmt.Sprintf("rejected implausible price %s for %s from %s", price, symbol, market),
		Details: map[string]interface{}{
			"symbol": symbol,
			"market": market,
			"price":  price,
		},
	}
}

// NewInsufficientBalanceError reports a trade request exceeding the held
// balance. Checked before any ledger mutation.
func NewInsufficientBalanceError(symbol, current, requested string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUserInput,
		StatusCode: http.StatusBadRequest,
		Code:       "INSUFFICIENT_BALANCE",
		Message:    fmt.Sprintf("not enough %s: current balance = %s, requested = %s", symbol, current, requested),
		Details: map[string]interface{}{
			"symbol":    symbol,
			"current":   current,
			"requested": requested,
		},
	}
}

// NewTokenNotSupportedError reports a token with no tradable markets
func NewTokenNotSupportedError(symbol, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUserInput,
		StatusCode: http.StatusBadRequest,
		Code:       "TOKEN_NOT_SUPPORTED",
		Message:    fmt.Sprintf("token %s is not tradable: %s", symbol, reason),
		Details: map[string]interface{}{
			"symbol": symbol,
			"reason": reason,
		},
	}
}

// NewInvalidParameterError creates an invalid parameter error
func NewInvalidParameterError(param string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_PARAMETER",
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDatabase,
		StatusCode: http.StatusInternalServerError,
		Code:       "DATABASE_ERROR",
		Message:    fmt.Sprintf("database error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewTransactionError reports a failed ledger transaction. The transaction
// is always rolled back in full before this error surfaces.
func NewTransactionError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDatabase,
		StatusCode: http.StatusInternalServerError,
		Code:       "TRANSACTION_FAILED",
		Message:    fmt.Sprintf("ledger transaction failed during %s, all changes rolled back", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewGatewayError creates a market data gateway error
func NewGatewayError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryGateway,
		StatusCode: http.StatusBadGateway,
		Code:       "GATEWAY_ERROR",
		Message:    message,
		Cause:      cause,
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Cause:      cause,
	}
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr
	}

	return NewInternalError("unexpected error", err)
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsUnresolvedPrice reports whether the error is an unresolved price signal
func IsUnresolvedPrice(err error) bool {
	catErr := Categorize(err)
	return catErr != nil && catErr.Code == "UNRESOLVED_PRICE"
}

// IsRetryable determines if an error is retryable
func IsRetryable(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	switch catErr.Category {
	case CategoryGateway, CategoryDatabase:
		return true
	case CategorySystem:
		return catErr.StatusCode == http.StatusServiceUnavailable ||
			catErr.StatusCode == http.StatusGatewayTimeout
	default:
		return false
	}
}

// IsUserError determines if an error is a user error (4xx)
func IsUserError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	return catErr.StatusCode >= 400 && catErr.StatusCode < 500
}
