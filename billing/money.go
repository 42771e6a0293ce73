/*
money.go - Multi-currency monthly normalization

PURPOSE:
  Converts an amount in any supported currency and billing cycle into a
  comparable monthly figure in the home currency (CNY):
    weekly  -> home amount * 52/12 (average weeks per month, not 4)
    monthly -> home amount unchanged
    yearly  -> home amount / 12

  Also performs instantaneous conversion ("how much is this in CNY right
  now") for per-payment-date display, which deliberately skips the cycle
  normalization.

NUMERIC SEMANTICS:
  All arithmetic is decimal.Decimal. Nothing here rounds; display
  rounding happens once at the serialization boundary so aggregation
  across many subscriptions never compounds rounding error.

  Rate resolution is NOT done here. Callers pass an already-resolved
  rate, which keeps this arithmetic pure and testable with zero mocking.

SEE ALSO:
  - rates.go: How the rate input is resolved
  - types.go: Money, Currency, Cycle
*/
package billing

import (
	"github.com/shopspring/decimal"
)

var (
	weeksPerYear  = decimal.NewFromInt(52)
	monthsPerYear = decimal.NewFromInt(12)

	// RateIdentity is the rate used when the currency already is the
	// home currency, by definition.
	RateIdentity = decimal.NewFromInt(1)
)

// ToMonthlyHome converts amount (denominated in some currency) to its
// monthly home-currency equivalent using an already-resolved rate ("units
// of CNY per 1 unit of foreign currency"). Pure: same inputs, same output.
//
// The weekly factor is 52/12 (average weeks per month), applied as
// multiply-then-divide so amounts that divide evenly stay exact.
func ToMonthlyHome(amount decimal.Decimal, cycle Cycle, rate decimal.Decimal) decimal.Decimal {
	home := amount.Mul(rate)
	switch cycle {
	case CycleWeekly:
		return home.Mul(weeksPerYear).Div(monthsPerYear)
	case CycleYearly:
		return home.Div(monthsPerYear)
	default: // CycleMonthly
		return home
	}
}

// InstantaneousConvert converts amount to home currency at the given rate
// with no cycle normalization. Used for grouping charges by payment date,
// where the actual charge amount matters rather than the monthly average.
func InstantaneousConvert(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate)
}

// DisplayRound rounds a home-currency figure to 2 fractional digits for
// presentation. Call only at the final output boundary.
func DisplayRound(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
