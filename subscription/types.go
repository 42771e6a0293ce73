// Package subscription implements the subscription-tracking domain on top
// of the billing engine: the subscription record itself, the factory that
// builds one from a validated form, and dashboard aggregation.
package subscription

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/subtrack/billing"
)

// =============================================================================
// SUBSCRIPTION
// =============================================================================

// Status is the lifecycle state of a subscription. Only active
// subscriptions count toward the monthly total and upcoming payments.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCancelled Status = "cancelled"
)

// Toggle flips between active and paused. Cancelled is terminal and stays
// cancelled.
func (s Status) Toggle() Status {
	switch s {
	case StatusActive:
		return StatusPaused
	case StatusPaused:
		return StatusActive
	default:
		return s
	}
}

// Category groups subscriptions for display.
type Category string

const (
	CategoryEntertainment Category = "Entertainment"
	CategoryTools         Category = "Tools"
	CategoryUtilities     Category = "Utilities"
	CategoryHealth        Category = "Health"
)

// Categories lists the categories accepted by the form layer.
var Categories = []Category{CategoryEntertainment, CategoryTools, CategoryUtilities, CategoryHealth}

// Subscription is a recurring payment tracked for one user. The exchange
// rate is a frozen snapshot captured when the record was written; it is
// only refreshed on update or by the background refresh pass.
type Subscription struct {
	ID     string
	UserID string
	Name   string

	Amount   decimal.Decimal
	Currency billing.Currency

	// ExchangeRate is CNY per 1 unit of Currency, frozen at write time.
	ExchangeRate decimal.Decimal
	RateSource   billing.RateSource

	Cycle           billing.Cycle
	StartDate       billing.Date
	NextPaymentDate billing.Date

	Category Category
	Status   Status

	CreatedAt time.Time
}

// IsActive reports whether the subscription participates in aggregation.
func (s *Subscription) IsActive() bool {
	return s.Status == StatusActive
}

// MonthlyHome returns the monthly CNY-equivalent figure using the frozen
// rate. Unrounded; round at the display boundary.
func (s *Subscription) MonthlyHome() decimal.Decimal {
	return billing.ToMonthlyHome(s.Amount, s.Cycle, s.ExchangeRate)
}

// InstantaneousHome returns the per-charge CNY amount (no cycle
// normalization) for payment-date grouping.
func (s *Subscription) InstantaneousHome() decimal.Decimal {
	return billing.InstantaneousConvert(s.Amount, s.ExchangeRate)
}

// CurrentNextPayment re-derives the nearest due-or-future payment date as
// of today. The stored NextPaymentDate goes stale once a charge date
// passes; reads advance it rather than trusting the snapshot.
func (s *Subscription) CurrentNextPayment(today billing.Date) billing.Date {
	return billing.AdvanceToFutureOrToday(s.StartDate, s.Cycle, today)
}

// User is the owner of a set of subscriptions. Authentication lives
// outside this service; the user record only scopes data and carries a
// display currency preference.
type User struct {
	ID                 string
	Email              string
	FullName           string
	CurrencyPreference billing.Currency
	CreatedAt          time.Time
}
