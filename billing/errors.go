/*
errors.go - Centralized error types for the billing engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match with errors.Is; structured types carry the offending
  input for error messages.

ERROR CATEGORIES:
  1. Input errors - unparseable dates, amounts, enum values. Propagated
     to the caller (a form/UI concern to report).
  2. Rate errors - live lookup failures. Never propagated: the resolver
     absorbs them via the fallback table and flags the result as
     degraded. They exist as sentinels so the fx client and resolver
     can classify failures consistently.

SEE ALSO:
  - rates.go: Degraded-mode resolution policy
  - fx/client.go: Wraps transport failures in ErrRateUnavailable
*/
package billing

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidDate is returned when an input cannot be parsed as a
	// calendar date.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidAmount is returned when an amount string is not a
	// positive decimal.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrRateUnavailable indicates the live rate lookup failed or
	// returned no usable value. Recovered internally via the fallback
	// table; never surfaced to end users.
	ErrRateUnavailable = errors.New("exchange rate unavailable")

	// ErrUnknownCurrency indicates a currency code absent from both the
	// live service and the fallback table.
	ErrUnknownCurrency = errors.New("unknown currency")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidDateError reports an unparseable date input.
type InvalidDateError struct {
	Input string
	Cause error
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("invalid date %q", e.Input)
}

func (e *InvalidDateError) Unwrap() error { return ErrInvalidDate }

// InvalidAmountError reports a non-positive or unparseable amount input.
type InvalidAmountError struct {
	Input string
	Cause error
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount %q: must be a positive decimal", e.Input)
}

func (e *InvalidAmountError) Unwrap() error { return ErrInvalidAmount }

// UnknownCurrencyError reports a currency code outside the supported set.
type UnknownCurrencyError struct {
	Code string
}

func (e *UnknownCurrencyError) Error() string {
	return fmt.Sprintf("unknown currency %q", e.Code)
}

func (e *UnknownCurrencyError) Unwrap() error { return ErrUnknownCurrency }

// UnknownCycleError reports a billing cycle outside {weekly, monthly, yearly}.
type UnknownCycleError struct {
	Value string
}

func (e *UnknownCycleError) Error() string {
	return fmt.Sprintf("unknown billing cycle %q", e.Value)
}
