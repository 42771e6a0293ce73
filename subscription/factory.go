/*
factory.go - Building subscriptions from validated form input

PURPOSE:
  Turns the raw string fields of a submitted form into a Subscription:
  parses amount and start date, validates the enum fields, computes the
  next payment date from the start date and cycle, and freezes the
  exchange rate resolved at write time.

ERROR BEHAVIOR:
  The form layer validates presence and enum membership before calling
  in, so errors here are limited to unparseable low-level inputs
  (billing.ErrInvalidDate, billing.ErrInvalidAmount) plus enum checks.
  Rate resolution never fails: the resolver degrades to its fallback
  table, and the degraded source is recorded on the record.

SEE ALSO:
  - billing/date.go: NextOccurrence
  - billing/rates.go: Resolver policy
*/
package subscription

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/subtrack/billing"
)

// FormRecord is the validated form input from the surrounding CRUD layer.
// All fields are raw strings; parsing happens here.
type FormRecord struct {
	Name         string
	Amount       string
	Currency     string
	BillingCycle string
	StartDate    string
	Category     string
}

// parsedForm holds the typed values of a FormRecord.
type parsedForm struct {
	amount   decimal.Decimal
	currency billing.Currency
	cycle    billing.Cycle
	start    billing.Date
	category Category
}

func parseForm(form FormRecord) (parsedForm, error) {
	var p parsedForm
	var err error

	if p.amount, err = billing.ParseAmount(form.Amount); err != nil {
		return p, err
	}
	if p.currency, err = billing.ParseCurrency(form.Currency); err != nil {
		return p, err
	}
	if p.cycle, err = billing.ParseCycle(form.BillingCycle); err != nil {
		return p, err
	}
	if p.start, err = billing.ParseDate(form.StartDate); err != nil {
		return p, err
	}
	if p.category, err = parseCategory(form.Category); err != nil {
		return p, err
	}
	return p, nil
}

func parseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Factory builds subscriptions, resolving exchange rates through the
// injected resolver.
type Factory struct {
	Resolver *billing.Resolver

	// NewID generates subscription IDs. Swappable for deterministic tests.
	NewID func() string
}

// NewFactory creates a factory over the given resolver.
func NewFactory(resolver *billing.Resolver) *Factory {
	return &Factory{Resolver: resolver}
}

// Build creates a new active subscription for the user from form input.
// The exchange rate is resolved once here and frozen on the record.
func (f *Factory) Build(ctx context.Context, userID string, form FormRecord) (*Subscription, error) {
	p, err := parseForm(form)
	if err != nil {
		return nil, err
	}

	res := f.Resolver.Resolve(ctx, p.currency)

	return &Subscription{
		ID:              f.newID(),
		UserID:          userID,
		Name:            form.Name,
		Amount:          p.amount,
		Currency:        p.currency,
		ExchangeRate:    res.Rate,
		RateSource:      res.Source,
		Cycle:           p.cycle,
		StartDate:       p.start,
		NextPaymentDate: billing.NextOccurrence(p.start, p.cycle),
		Category:        p.category,
		Status:          StatusActive,
	}, nil
}

// Apply updates an existing subscription in place from form input,
// recomputing the next payment date and refreshing the frozen rate.
// Status is untouched; toggling is a separate operation.
func (f *Factory) Apply(ctx context.Context, sub *Subscription, form FormRecord) error {
	p, err := parseForm(form)
	if err != nil {
		return err
	}

	res := f.Resolver.Resolve(ctx, p.currency)

	sub.Name = form.Name
	sub.Amount = p.amount
	sub.Currency = p.currency
	sub.ExchangeRate = res.Rate
	sub.RateSource = res.Source
	sub.Cycle = p.cycle
	sub.StartDate = p.start
	sub.NextPaymentDate = billing.NextOccurrence(p.start, p.cycle)
	sub.Category = p.category
	return nil
}

func (f *Factory) newID() string {
	if f.NewID != nil {
		return f.NewID()
	}
	b := make([]byte, 8)
	rand.Read(b)
	return "sub-" + hex.EncodeToString(b)
}
