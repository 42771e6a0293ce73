/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY ENCODING:
  Monetary figures are serialized as decimal strings, rounded to 2
  fractional digits here and only here. Internal aggregation stays
  unrounded.

SEE ALSO:
  - handlers.go: Uses these types
  - subscription/dashboard.go: Source of the aggregate figures
*/
package api

import (
	"time"

	"github.com/warp/subtrack/billing"
	"github.com/warp/subtrack/subscription"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// SubscriptionDTO represents a subscription in API responses.
type SubscriptionDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`

	// ExchangeRate is the frozen CNY-per-unit snapshot; RateSource says
	// how it was resolved (home/live/fallback/default).
	ExchangeRate string `json:"exchange_rate"`
	RateSource   string `json:"rate_source"`

	BillingCycle    string `json:"billing_cycle"`
	StartDate       string `json:"start_date"`
	NextPaymentDate string `json:"next_payment_date"`

	// MonthlyHomeAmount is the monthly CNY-equivalent, rounded for display.
	MonthlyHomeAmount string `json:"monthly_home_amount"`

	Category  string `json:"category"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at,omitempty"`
}

// SubscriptionRequest is the request body for create and update. Fields
// mirror the original form: raw strings, parsed by the factory.
type SubscriptionRequest struct {
	Name         string `json:"name"`
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	BillingCycle string `json:"billing_cycle"`
	StartDate    string `json:"start_date"`
	Category     string `json:"category"`
}

// FormRecord converts the request into the factory's input type.
func (r SubscriptionRequest) FormRecord() subscription.FormRecord {
	return subscription.FormRecord{
		Name:         r.Name,
		Amount:       r.Amount,
		Currency:     r.Currency,
		BillingCycle: r.BillingCycle,
		StartDate:    r.StartDate,
		Category:     r.Category,
	}
}

// UserDTO represents a user in API responses.
type UserDTO struct {
	ID                 string `json:"id"`
	Email              string `json:"email"`
	FullName           string `json:"full_name,omitempty"`
	CurrencyPreference string `json:"currency_preference"`
	CreatedAt          string `json:"created_at,omitempty"`
}

// CreateUserRequest is the request to create a user.
type CreateUserRequest struct {
	ID                 string `json:"id"`
	Email              string `json:"email"`
	FullName           string `json:"full_name"`
	CurrencyPreference string `json:"currency_preference"`
}

// OverviewDTO holds the dashboard headline figures.
type OverviewDTO struct {
	MonthlyTotal string              `json:"monthly_total"`
	ActiveCount  int                 `json:"active_count"`
	NextPayment  *UpcomingPaymentDTO `json:"next_payment,omitempty"`
}

// UpcomingPaymentDTO is the nearest future charge. Symbol is the display
// symbol for the charge currency (¥, $, €).
type UpcomingPaymentDTO struct {
	SubscriptionID string `json:"subscription_id"`
	Name           string `json:"name"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	Symbol         string `json:"symbol"`
	Date           string `json:"date"`
}

// PaymentGroupDTO is one payment date with its charges and instantaneous
// CNY total.
type PaymentGroupDTO struct {
	Date          string            `json:"date"`
	TotalHome     string            `json:"total_home"`
	Subscriptions []SubscriptionDTO `json:"subscriptions"`
}

// DashboardDTO is the full dashboard response.
type DashboardDTO struct {
	Overview      OverviewDTO       `json:"overview"`
	Subscriptions []SubscriptionDTO `json:"subscriptions"`
	PaymentGroups []PaymentGroupDTO `json:"payment_groups"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toSubscriptionDTO(s *subscription.Subscription, today billing.Date) SubscriptionDTO {
	return SubscriptionDTO{
		ID:                s.ID,
		Name:              s.Name,
		Amount:            s.Amount.String(),
		Currency:          string(s.Currency),
		ExchangeRate:      s.ExchangeRate.String(),
		RateSource:        string(s.RateSource),
		BillingCycle:      string(s.Cycle),
		StartDate:         s.StartDate.String(),
		NextPaymentDate:   s.CurrentNextPayment(today).String(),
		MonthlyHomeAmount: billing.DisplayRound(s.MonthlyHome()).String(),
		Category:          string(s.Category),
		Status:            string(s.Status),
		CreatedAt:         formatTime(s.CreatedAt),
	}
}

func toUserDTO(u subscription.User) UserDTO {
	return UserDTO{
		ID:                 u.ID,
		Email:              u.Email,
		FullName:           u.FullName,
		CurrencyPreference: string(u.CurrencyPreference),
		CreatedAt:          formatTime(u.CreatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
