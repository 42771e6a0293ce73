package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/subtrack/billing"
	"github.com/warp/subtrack/subscription"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func seedUser(t *testing.T, store *Store, id string) {
	t.Helper()
	err := store.SaveUser(context.Background(), subscription.User{
		ID:                 id,
		Email:              id + "@example.com",
		CurrencyPreference: billing.CNY,
	})
	if err != nil {
		t.Fatalf("Failed to save user: %v", err)
	}
}

func testSubscription(id, userID string) *subscription.Subscription {
	start := billing.NewDate(2026, time.January, 31)
	return &subscription.Subscription{
		ID:              id,
		UserID:          userID,
		Name:            "Spotify",
		Amount:          decimal.RequireFromString("10.99"),
		Currency:        billing.EUR,
		ExchangeRate:    decimal.RequireFromString("7.8"),
		RateSource:      billing.SourceLive,
		Cycle:           billing.CycleMonthly,
		StartDate:       start,
		NextPaymentDate: billing.NextOccurrence(start, billing.CycleMonthly),
		Category:        subscription.CategoryEntertainment,
		Status:          subscription.StatusActive,
	}
}

func TestSubscriptionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "u1")

	in := testSubscription("s1", "u1")
	if err := store.SaveSubscription(ctx, in); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	out, err := store.GetSubscription(ctx, "u1", "s1")
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}

	// Decimal and date columns must survive the text encoding exactly.
	if !out.Amount.Equal(in.Amount) {
		t.Errorf("amount = %s, want %s", out.Amount, in.Amount)
	}
	if !out.ExchangeRate.Equal(in.ExchangeRate) {
		t.Errorf("exchange rate = %s, want %s", out.ExchangeRate, in.ExchangeRate)
	}
	if out.StartDate.String() != "2026-01-31" {
		t.Errorf("start date = %s", out.StartDate)
	}
	if out.NextPaymentDate.String() != "2026-02-28" {
		t.Errorf("next payment date = %s", out.NextPaymentDate)
	}
	if out.Cycle != billing.CycleMonthly || out.Currency != billing.EUR {
		t.Errorf("enums corrupted: %s %s", out.Cycle, out.Currency)
	}
	if out.Status != subscription.StatusActive || out.Category != subscription.CategoryEntertainment {
		t.Errorf("status/category corrupted: %s %s", out.Status, out.Category)
	}
	if out.CreatedAt.IsZero() {
		t.Error("created_at not populated")
	}
}

func TestSaveSubscription_UpsertReplaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "u1")

	sub := testSubscription("s1", "u1")
	if err := store.SaveSubscription(ctx, sub); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	sub.Name = "Spotify Family"
	sub.Amount = decimal.RequireFromString("17.99")
	if err := store.SaveSubscription(ctx, sub); err != nil {
		t.Fatalf("Failed to resave: %v", err)
	}

	out, err := store.GetSubscription(ctx, "u1", "s1")
	if err != nil {
		t.Fatalf("Failed to load: %v", err)
	}
	if out.Name != "Spotify Family" || !out.Amount.Equal(decimal.RequireFromString("17.99")) {
		t.Errorf("upsert did not replace: %s %s", out.Name, out.Amount)
	}

	subs, err := store.ListSubscriptions(ctx, "u1")
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(subs) != 1 {
		t.Errorf("expected 1 subscription, got %d", len(subs))
	}
}

func TestOwnershipScoping(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "u1")
	seedUser(t, store, "u2")

	if err := store.SaveSubscription(ctx, testSubscription("s1", "u1")); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	// Another user cannot read, toggle, or delete someone else's record.
	if _, err := store.GetSubscription(ctx, "u2", "s1"); err != ErrNotFound {
		t.Errorf("GetSubscription cross-user: err = %v, want ErrNotFound", err)
	}
	if err := store.UpdateStatus(ctx, "u2", "s1", subscription.StatusPaused); err != ErrNotFound {
		t.Errorf("UpdateStatus cross-user: err = %v, want ErrNotFound", err)
	}
	if err := store.DeleteSubscription(ctx, "u2", "s1"); err != ErrNotFound {
		t.Errorf("DeleteSubscription cross-user: err = %v, want ErrNotFound", err)
	}

	subs, err := store.ListSubscriptions(ctx, "u2")
	if err != nil {
		t.Fatalf("Failed to list: %v", err)
	}
	if len(subs) != 0 {
		t.Errorf("u2 sees %d of u1's subscriptions", len(subs))
	}
}

func TestUpdateStatusAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "u1")

	if err := store.SaveSubscription(ctx, testSubscription("s1", "u1")); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	if err := store.UpdateStatus(ctx, "u1", "s1", subscription.StatusPaused); err != nil {
		t.Fatalf("Failed to update status: %v", err)
	}
	out, _ := store.GetSubscription(ctx, "u1", "s1")
	if out.Status != subscription.StatusPaused {
		t.Errorf("status = %s, want paused", out.Status)
	}

	if err := store.DeleteSubscription(ctx, "u1", "s1"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if _, err := store.GetSubscription(ctx, "u1", "s1"); err != ErrNotFound {
		t.Errorf("after delete: err = %v, want ErrNotFound", err)
	}
}

func TestListActiveSubscriptions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "u1")
	seedUser(t, store, "u2")

	active := testSubscription("s1", "u1")
	paused := testSubscription("s2", "u2")
	paused.Status = subscription.StatusPaused

	if err := store.SaveSubscription(ctx, active); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveSubscription(ctx, paused); err != nil {
		t.Fatal(err)
	}

	subs, err := store.ListActiveSubscriptions(ctx)
	if err != nil {
		t.Fatalf("Failed to list active: %v", err)
	}
	if len(subs) != 1 || subs[0].ID != "s1" {
		t.Errorf("expected only s1, got %v", subs)
	}
}

func TestUpdateExchangeRate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "u1")

	if err := store.SaveSubscription(ctx, testSubscription("s1", "u1")); err != nil {
		t.Fatal(err)
	}

	newRate := decimal.RequireFromString("7.65")
	if err := store.UpdateExchangeRate(ctx, "s1", newRate, billing.SourceLive); err != nil {
		t.Fatalf("Failed to update rate: %v", err)
	}

	out, _ := store.GetSubscription(ctx, "u1", "s1")
	if !out.ExchangeRate.Equal(newRate) {
		t.Errorf("rate = %s, want %s", out.ExchangeRate, newRate)
	}

	if err := store.UpdateExchangeRate(ctx, "missing", newRate, billing.SourceLive); err != ErrNotFound {
		t.Errorf("missing id: err = %v, want ErrNotFound", err)
	}
}

func TestGetUser_NotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.GetUser(context.Background(), "nobody"); err != ErrNotFound {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
