/*
Package billing provides the core subscription billing engine.

PURPOSE:
  This package contains the pure computation layer of the subscription
  tracker: billing-cycle date arithmetic, multi-currency monetary
  normalization, and exchange-rate resolution policy. Everything here is
  stateless and deterministic except the rate lookup, which is delegated
  to a collaborator behind the Lookup interface.

KEY CONCEPTS IN THIS FILE (types.go):
  - Currency: ISO-style currency code (CNY, USD, EUR, JPY)
  - Cycle: Billing recurrence period (weekly, monthly, yearly)
  - Money: A decimal amount paired with a currency

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Purity: Date and money functions take all inputs explicitly
  3. Degraded over broken: Rate resolution always yields a usable rate

SEE ALSO:
  - date.go: Next-occurrence date arithmetic with month/year clamping
  - money.go: Monthly home-currency normalization
  - rates.go: Exchange-rate resolution policy with fallback table
*/
package billing

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// CURRENCY
// =============================================================================

// Currency is an ISO-style currency code.
type Currency string

const (
	CNY Currency = "CNY"
	USD Currency = "USD"
	EUR Currency = "EUR"
	JPY Currency = "JPY"
)

// HomeCurrency is the currency all amounts are normalized into for
// aggregation and comparison.
const HomeCurrency = CNY

// Symbol returns the display symbol for the currency, falling back to the
// code itself for currencies without a well-known symbol.
func (c Currency) Symbol() string {
	switch c {
	case CNY, JPY:
		return "¥"
	case USD:
		return "$"
	case EUR:
		return "€"
	default:
		return string(c)
	}
}

// Currencies lists the currency codes accepted by the form layer.
var Currencies = []Currency{CNY, USD, EUR, JPY}

// ParseCurrency validates a currency code from an external input.
func ParseCurrency(s string) (Currency, error) {
	for _, c := range Currencies {
		if string(c) == s {
			return c, nil
		}
	}
	return "", &UnknownCurrencyError{Code: s}
}

// =============================================================================
// BILLING CYCLE
// =============================================================================

// Cycle is the recurrence period of a charge. Exactly three variants are
// supported; no other cycle lengths exist.
type Cycle string

const (
	CycleWeekly  Cycle = "weekly"
	CycleMonthly Cycle = "monthly"
	CycleYearly  Cycle = "yearly"
)

// Cycles lists the supported billing cycles.
var Cycles = []Cycle{CycleWeekly, CycleMonthly, CycleYearly}

// ParseCycle validates a billing cycle from an external input.
func ParseCycle(s string) (Cycle, error) {
	for _, c := range Cycles {
		if string(c) == s {
			return c, nil
		}
	}
	return "", &UnknownCycleError{Value: s}
}

// =============================================================================
// MONEY
// =============================================================================

// Money is a decimal amount paired with a currency. Amounts for active
// subscriptions are always positive; the form layer validates this before
// values reach the engine.
type Money struct {
	Amount   decimal.Decimal
	Currency Currency
}

// NewMoney builds a Money from an already-parsed decimal.
func NewMoney(amount decimal.Decimal, currency Currency) Money {
	return Money{Amount: amount, Currency: currency}
}

// ParseAmount parses a positive decimal amount string. Rounding is never
// applied here; callers round only at the display boundary.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, &InvalidAmountError{Input: s, Cause: err}
	}
	if !d.IsPositive() {
		return decimal.Zero, &InvalidAmountError{Input: s}
	}
	return d, nil
}
