/*
seed.go - Demo data loader

PURPOSE:
  Seeds a demo user with a spread of subscriptions covering every
  currency, cycle, and category, including the month-end edge cases the
  date engine exists for (a Jan 31 monthly plan, a Feb 29 yearly plan).
  Useful for local development and UI demos.

  Rates are resolved through the normal factory path, so with no live
  service configured the seeded records carry fallback-table rates and
  rate_source reflects that.
*/
package api

import (
	"fmt"
	"net/http"

	"github.com/warp/subtrack/billing"
	"github.com/warp/subtrack/subscription"
)

// DemoUserID is the owner of the seeded records.
const DemoUserID = "demo-user"

var demoForms = []subscription.FormRecord{
	{Name: "Netflix", Amount: "9.99", Currency: "USD", BillingCycle: "monthly", StartDate: "2026-01-15", Category: "Entertainment"},
	{Name: "Spotify", Amount: "10.99", Currency: "EUR", BillingCycle: "monthly", StartDate: "2026-01-31", Category: "Entertainment"},
	{Name: "iCloud 200GB", Amount: "21", Currency: "CNY", BillingCycle: "monthly", StartDate: "2026-02-01", Category: "Tools"},
	{Name: "JetBrains All Products", Amount: "779", Currency: "USD", BillingCycle: "yearly", StartDate: "2024-02-29", Category: "Tools"},
	{Name: "Nintendo Switch Online", Amount: "2400", Currency: "JPY", BillingCycle: "yearly", StartDate: "2026-03-10", Category: "Entertainment"},
	{Name: "Gym Pass", Amount: "45", Currency: "CNY", BillingCycle: "weekly", StartDate: "2026-02-02", Category: "Health"},
	{Name: "Cloud VPS", Amount: "6", Currency: "USD", BillingCycle: "monthly", StartDate: "2025-12-31", Category: "Utilities"},
}

// SeedDemoData creates the demo user and subscriptions. Idempotent for
// the user; subscriptions are appended with fresh IDs on each call.
func (h *Handler) SeedDemoData(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user := subscription.User{
		ID:                 DemoUserID,
		Email:              "demo@example.com",
		FullName:           "Demo User",
		CurrencyPreference: billing.HomeCurrency,
	}
	if err := h.Store.SaveUser(ctx, user); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to seed user", err)
		return
	}

	created := make([]SubscriptionDTO, 0, len(demoForms))
	today := h.today()
	for i, form := range demoForms {
		sub, err := h.Factory.Build(ctx, DemoUserID, form)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to build demo subscription %d", i), err)
			return
		}
		if err := h.Store.SaveSubscription(ctx, sub); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to save demo subscription", err)
			return
		}
		created = append(created, toSubscriptionDTO(sub, today))
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"user":          toUserDTO(user),
		"subscriptions": created,
	})
}
