/*
dashboard.go - Aggregation for the dashboard view

PURPOSE:
  Computes the three overview figures (monthly CNY total, active count,
  next upcoming payment) and the per-payment-date grouping from a user's
  subscriptions. Sums stay unrounded decimals throughout; only the API
  layer rounds for display, so aggregating many subscriptions never
  compounds rounding error.

  Only active subscriptions participate. Paused and cancelled records
  are listed but excluded from totals and upcoming payments.

SEE ALSO:
  - billing/money.go: ToMonthlyHome / InstantaneousConvert
  - api/handlers.go: Serializes these results
*/
package subscription

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/subtrack/billing"
)

// =============================================================================
// OVERVIEW
// =============================================================================

// UpcomingPayment is the single nearest future charge across active
// subscriptions. Charge is the raw amount in its own currency, not a
// CNY-normalized figure.
type UpcomingPayment struct {
	SubscriptionID string
	Name           string
	Charge         billing.Money
	Date           billing.Date
}

// Overview holds the dashboard headline figures.
type Overview struct {
	// MonthlyTotal is the sum of monthly CNY-equivalents of all active
	// subscriptions, unrounded.
	MonthlyTotal decimal.Decimal
	ActiveCount  int
	NextPayment  *UpcomingPayment
}

// ComputeOverview aggregates the active subscriptions as of today.
// Next-payment dates are re-derived from the start date so snapshots that
// went stale while the service was idle still aggregate correctly.
func ComputeOverview(subs []*Subscription, today billing.Date) Overview {
	ov := Overview{MonthlyTotal: decimal.Zero}

	for _, s := range subs {
		if !s.IsActive() {
			continue
		}
		ov.ActiveCount++
		ov.MonthlyTotal = ov.MonthlyTotal.Add(s.MonthlyHome())

		due := s.CurrentNextPayment(today)
		if ov.NextPayment == nil || due.Before(ov.NextPayment.Date) {
			ov.NextPayment = &UpcomingPayment{
				SubscriptionID: s.ID,
				Name:           s.Name,
				Charge:         billing.NewMoney(s.Amount, s.Currency),
				Date:           due,
			}
		}
	}
	return ov
}

// =============================================================================
// PAYMENT-DATE GROUPING
// =============================================================================

// PaymentGroup collects the active subscriptions charged on one date,
// with the instantaneous (per-charge, not monthly-normalized) CNY sum.
type PaymentGroup struct {
	Date          billing.Date
	Subscriptions []*Subscription
	TotalHome     decimal.Decimal
}

// GroupByNextPayment buckets active subscriptions by their current next
// payment date, soonest first.
func GroupByNextPayment(subs []*Subscription, today billing.Date) []PaymentGroup {
	byDate := make(map[string]*PaymentGroup)

	for _, s := range subs {
		if !s.IsActive() {
			continue
		}
		due := s.CurrentNextPayment(today)
		key := due.String()
		g, ok := byDate[key]
		if !ok {
			g = &PaymentGroup{Date: due, TotalHome: decimal.Zero}
			byDate[key] = g
		}
		g.Subscriptions = append(g.Subscriptions, s)
		g.TotalHome = g.TotalHome.Add(s.InstantaneousHome())
	}

	groups := make([]PaymentGroup, 0, len(byDate))
	for _, g := range byDate {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Date.Before(groups[j].Date)
	})
	return groups
}
