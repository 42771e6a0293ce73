package subscription_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/subtrack/billing"
	"github.com/warp/subtrack/subscription"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func fixedLookup(rates map[billing.Currency]string) billing.LookupFunc {
	return func(_ context.Context, from, _ billing.Currency) (decimal.Decimal, error) {
		if r, ok := rates[from]; ok {
			return dec(r), nil
		}
		return decimal.Zero, billing.ErrRateUnavailable
	}
}

func newFactory(lookup billing.Lookup) *subscription.Factory {
	resolver := billing.NewResolver(lookup)
	resolver.Logf = func(string, ...any) {}
	f := subscription.NewFactory(resolver)
	n := 0
	f.NewID = func() string { n++; return "sub-" + string(rune('a'+n-1)) }
	return f
}

// =============================================================================
// FACTORY
// =============================================================================

func TestBuild_EndToEndScenario(t *testing.T) {
	// GIVEN the live service quoting 7.2 CNY per USD
	f := newFactory(fixedLookup(map[billing.Currency]string{billing.USD: "7.2"}))

	// WHEN building a 9.99 USD monthly subscription starting 2026-01-15
	sub, err := f.Build(context.Background(), "u1", subscription.FormRecord{
		Name:         "Netflix",
		Amount:       "9.99",
		Currency:     "USD",
		BillingCycle: "monthly",
		StartDate:    "2026-01-15",
		Category:     "Entertainment",
	})
	require.NoError(t, err)

	// THEN the next payment lands one month later and the monthly CNY
	// figure is 9.99 * 7.2 = 71.928 (71.93 displayed)
	assert.Equal(t, "2026-02-15", sub.NextPaymentDate.String())
	assert.True(t, sub.ExchangeRate.Equal(dec("7.2")))
	assert.Equal(t, billing.SourceLive, sub.RateSource)
	assert.Equal(t, "71.93", billing.DisplayRound(sub.MonthlyHome()).String())
	assert.Equal(t, subscription.StatusActive, sub.Status)
}

func TestBuild_HomeCurrencySkipsResolution(t *testing.T) {
	called := false
	f := newFactory(billing.LookupFunc(func(context.Context, billing.Currency, billing.Currency) (decimal.Decimal, error) {
		called = true
		return decimal.Zero, billing.ErrRateUnavailable
	}))

	sub, err := f.Build(context.Background(), "u1", subscription.FormRecord{
		Name: "iCloud", Amount: "21", Currency: "CNY",
		BillingCycle: "monthly", StartDate: "2026-02-01", Category: "Tools",
	})
	require.NoError(t, err)

	assert.False(t, called, "CNY must not trigger a lookup")
	assert.True(t, sub.ExchangeRate.Equal(billing.RateIdentity))
	assert.Equal(t, billing.SourceHome, sub.RateSource)
}

func TestBuild_RateServiceDownStillCreates(t *testing.T) {
	// A dead rate service must never block subscription creation.
	f := newFactory(billing.LookupFunc(func(context.Context, billing.Currency, billing.Currency) (decimal.Decimal, error) {
		return decimal.Zero, errors.New("timeout")
	}))

	sub, err := f.Build(context.Background(), "u1", subscription.FormRecord{
		Name: "Spotify", Amount: "10.99", Currency: "EUR",
		BillingCycle: "monthly", StartDate: "2026-01-31", Category: "Entertainment",
	})
	require.NoError(t, err)

	assert.True(t, sub.ExchangeRate.Equal(dec("7.8")), "fallback EUR rate")
	assert.Equal(t, billing.SourceFallback, sub.RateSource)
	// Jan 31 monthly start clamps to Feb 28 in 2026.
	assert.Equal(t, "2026-02-28", sub.NextPaymentDate.String())
}

func TestBuild_InputErrors(t *testing.T) {
	f := newFactory(nil)
	valid := subscription.FormRecord{
		Name: "X", Amount: "5", Currency: "USD",
		BillingCycle: "monthly", StartDate: "2026-01-01", Category: "Tools",
	}

	cases := []struct {
		name   string
		mutate func(*subscription.FormRecord)
		check  func(error) bool
	}{
		{"bad amount", func(r *subscription.FormRecord) { r.Amount = "-1" },
			func(err error) bool { return errors.Is(err, billing.ErrInvalidAmount) }},
		{"bad date", func(r *subscription.FormRecord) { r.StartDate = "01/02/2026" },
			func(err error) bool { return errors.Is(err, billing.ErrInvalidDate) }},
		{"bad currency", func(r *subscription.FormRecord) { r.Currency = "GBP" },
			func(err error) bool { return errors.Is(err, billing.ErrUnknownCurrency) }},
		{"bad cycle", func(r *subscription.FormRecord) { r.BillingCycle = "daily" },
			func(err error) bool { return err != nil }},
		{"bad category", func(r *subscription.FormRecord) { r.Category = "Gaming" },
			func(err error) bool { return err != nil }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			form := valid
			tc.mutate(&form)
			_, err := f.Build(context.Background(), "u1", form)
			assert.True(t, tc.check(err), "got err = %v", err)
		})
	}
}

func TestApply_RefreshesRateAndNextPayment(t *testing.T) {
	f := newFactory(fixedLookup(map[billing.Currency]string{billing.USD: "7.2"}))

	sub, err := f.Build(context.Background(), "u1", subscription.FormRecord{
		Name: "VPS", Amount: "6", Currency: "USD",
		BillingCycle: "monthly", StartDate: "2026-01-15", Category: "Utilities",
	})
	require.NoError(t, err)
	sub.Status = subscription.StatusPaused

	// Rate moved; the update re-freezes it and recomputes the date.
	f.Resolver.Lookup = fixedLookup(map[billing.Currency]string{billing.USD: "7.05"})
	err = f.Apply(context.Background(), sub, subscription.FormRecord{
		Name: "VPS Pro", Amount: "12", Currency: "USD",
		BillingCycle: "yearly", StartDate: "2026-03-01", Category: "Utilities",
	})
	require.NoError(t, err)

	assert.Equal(t, "VPS Pro", sub.Name)
	assert.True(t, sub.ExchangeRate.Equal(dec("7.05")))
	assert.Equal(t, "2027-03-01", sub.NextPaymentDate.String())
	assert.Equal(t, subscription.StatusPaused, sub.Status, "Apply must not touch status")
}

// =============================================================================
// STATUS
// =============================================================================

func TestStatusToggle(t *testing.T) {
	assert.Equal(t, subscription.StatusPaused, subscription.StatusActive.Toggle())
	assert.Equal(t, subscription.StatusActive, subscription.StatusPaused.Toggle())
	assert.Equal(t, subscription.StatusCancelled, subscription.StatusCancelled.Toggle(), "cancelled is terminal")
}

// =============================================================================
// DASHBOARD AGGREGATION
// =============================================================================

func activeSub(id, name string, amount string, currency billing.Currency, rate string, cycle billing.Cycle, start billing.Date) *subscription.Subscription {
	return &subscription.Subscription{
		ID: id, UserID: "u1", Name: name,
		Amount: dec(amount), Currency: currency,
		ExchangeRate: dec(rate), RateSource: billing.SourceLive,
		Cycle: cycle, StartDate: start,
		NextPaymentDate: billing.NextOccurrence(start, cycle),
		Category:        subscription.CategoryTools,
		Status:          subscription.StatusActive,
	}
}

func TestComputeOverview(t *testing.T) {
	today := billing.NewDate(2026, time.February, 1)

	netflix := activeSub("s1", "Netflix", "9.99", billing.USD, "7.2", billing.CycleMonthly, billing.NewDate(2026, time.January, 15))
	jetbrains := activeSub("s2", "JetBrains", "100", billing.USD, "7.2", billing.CycleYearly, billing.NewDate(2025, time.June, 1))
	paused := activeSub("s3", "Gym", "45", billing.CNY, "1", billing.CycleWeekly, billing.NewDate(2026, time.January, 5))
	paused.Status = subscription.StatusPaused

	ov := subscription.ComputeOverview([]*subscription.Subscription{netflix, jetbrains, paused}, today)

	// 9.99*7.2 + 100*7.2/12 = 71.928 + 60 = 131.928
	assert.Equal(t, 2, ov.ActiveCount)
	assert.True(t, ov.MonthlyTotal.Equal(dec("131.928")), "got %s", ov.MonthlyTotal)
	assert.Equal(t, "131.93", billing.DisplayRound(ov.MonthlyTotal).String())

	// Netflix is due 2026-02-15; JetBrains not until 2026-06-01.
	require.NotNil(t, ov.NextPayment)
	assert.Equal(t, "s1", ov.NextPayment.SubscriptionID)
	assert.Equal(t, "2026-02-15", ov.NextPayment.Date.String())
}

func TestComputeOverview_Empty(t *testing.T) {
	ov := subscription.ComputeOverview(nil, billing.Today())
	assert.Equal(t, 0, ov.ActiveCount)
	assert.True(t, ov.MonthlyTotal.IsZero())
	assert.Nil(t, ov.NextPayment)
}

func TestGroupByNextPayment(t *testing.T) {
	today := billing.NewDate(2026, time.February, 1)

	// Both are due 2026-02-15: one monthly from Jan 15, one started long
	// ago and advanced forward to the same date.
	a := activeSub("s1", "Netflix", "9.99", billing.USD, "7.2", billing.CycleMonthly, billing.NewDate(2026, time.January, 15))
	b := activeSub("s2", "Backup", "10", billing.CNY, "1", billing.CycleMonthly, billing.NewDate(2025, time.March, 15))
	c := activeSub("s3", "Gym", "45", billing.CNY, "1", billing.CycleWeekly, billing.NewDate(2026, time.January, 26))
	cancelled := activeSub("s4", "Old", "1", billing.CNY, "1", billing.CycleMonthly, billing.NewDate(2026, time.January, 2))
	cancelled.Status = subscription.StatusCancelled

	groups := subscription.GroupByNextPayment([]*subscription.Subscription{a, b, c, cancelled}, today)

	require.Len(t, groups, 2)

	// Soonest first: the weekly Gym charge on 2026-02-02.
	assert.Equal(t, "2026-02-02", groups[0].Date.String())
	assert.True(t, groups[0].TotalHome.Equal(dec("45")))

	assert.Equal(t, "2026-02-15", groups[1].Date.String())
	require.Len(t, groups[1].Subscriptions, 2)
	// Instantaneous sum: 9.99*7.2 + 10 = 81.928 (no monthly normalization).
	assert.True(t, groups[1].TotalHome.Equal(dec("81.928")), "got %s", groups[1].TotalHome)
}

// =============================================================================
// STALE SNAPSHOT DERIVATION
// =============================================================================

func TestCurrentNextPayment_RederivesStaleSnapshot(t *testing.T) {
	// Stored snapshot says 2026-02-28 but months have passed; the read
	// path must advance from the start date with per-step clamping:
	// Jan 31 -> Feb 28 -> Mar 28 -> Apr 28.
	sub := activeSub("s1", "Spotify", "10.99", billing.EUR, "7.8", billing.CycleMonthly, billing.NewDate(2026, time.January, 31))

	got := sub.CurrentNextPayment(billing.NewDate(2026, time.April, 10))
	assert.Equal(t, "2026-04-28", got.String())
}
