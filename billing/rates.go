/*
rates.go - Exchange-rate resolution policy

PURPOSE:
  Resolves "units of CNY per 1 unit of foreign currency" for a given
  currency, in strict order:
    1. Home currency (CNY): rate 1.0, the lookup is never called.
    2. Live lookup collaborator (behind the Lookup interface).
    3. Static fallback table when the lookup fails or returns junk.
    4. Rate 1.0 when the currency is unknown to both.

  Steps 3 and 4 are degraded modes: they are logged but NEVER returned
  as errors. A subscription must stay creatable and updatable while the
  live-rate service is down; a best-effort number beats a blocked user.

DEGRADATION VISIBILITY:
  Resolution carries a Source field (home/live/fallback/default) so
  callers that want to surface staleness can, without the resolver ever
  failing. The shipped API keeps the original behavior of showing the
  number silently.

CONCURRENCY:
  Resolve is safe for concurrent use as long as the Lookup is. ResolveAll
  deduplicates by currency and resolves distinct currencies in parallel,
  one lookup per currency per pass.

SEE ALSO:
  - fx/client.go: The HTTP lookup collaborator with its own 1h cache
  - money.go: Consumes the resolved rate
*/
package billing

import (
	"context"
	"log"
	"sync"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LOOKUP - Live rate collaborator
// =============================================================================

// Lookup fetches a live exchange rate. Implementations own their caching
// policy; the resolver calls at most once per currency per pass and never
// retries (a failure goes straight to the fallback table so latency stays
// bounded).
type Lookup interface {
	Rate(ctx context.Context, from, to Currency) (decimal.Decimal, error)
}

// LookupFunc adapts a function to the Lookup interface.
type LookupFunc func(ctx context.Context, from, to Currency) (decimal.Decimal, error)

func (f LookupFunc) Rate(ctx context.Context, from, to Currency) (decimal.Decimal, error) {
	return f(ctx, from, to)
}

// =============================================================================
// RESOLUTION - Rate plus provenance
// =============================================================================

// RateSource identifies how a rate was obtained.
type RateSource string

const (
	SourceHome     RateSource = "home"     // currency == CNY, rate 1.0 by definition
	SourceLive     RateSource = "live"     // fresh from the lookup collaborator
	SourceFallback RateSource = "fallback" // static table, lookup unavailable
	SourceDefault  RateSource = "default"  // unknown currency, rate 1.0
)

// Degraded reports whether the rate came from a degraded path.
func (s RateSource) Degraded() bool {
	return s == SourceFallback || s == SourceDefault
}

// Resolution is a resolved exchange rate with its provenance.
type Resolution struct {
	Currency Currency
	Rate     decimal.Decimal
	Source   RateSource
}

// DefaultFallbackRates returns the static approximate CNY rates used when
// the live service is unreachable. Returned fresh on each call so tests
// and callers can mutate their copy freely.
func DefaultFallbackRates() map[Currency]decimal.Decimal {
	return map[Currency]decimal.Decimal{
		USD: decimal.NewFromFloat(7.2),
		EUR: decimal.NewFromFloat(7.8),
		JPY: decimal.NewFromFloat(0.048),
	}
}

// =============================================================================
// RESOLVER
// =============================================================================

// Resolver implements the rate-resolution policy. Fallback is an injected
// read-only table, not a hidden singleton, so tests can substitute their
// own rates.
type Resolver struct {
	Lookup   Lookup
	Fallback map[Currency]decimal.Decimal

	// Logf receives degraded-mode notices. Defaults to log.Printf.
	Logf func(format string, args ...any)
}

// NewResolver builds a resolver over the given lookup with the default
// fallback table.
func NewResolver(lookup Lookup) *Resolver {
	return &Resolver{Lookup: lookup, Fallback: DefaultFallbackRates()}
}

func (r *Resolver) logf(format string, args ...any) {
	if r.Logf != nil {
		r.Logf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// Resolve returns a usable CNY rate for the currency. It never returns an
// error: lookup failures degrade to the fallback table, and currencies
// unknown to both degrade to rate 1.0.
func (r *Resolver) Resolve(ctx context.Context, currency Currency) Resolution {
	if currency == HomeCurrency {
		return Resolution{Currency: currency, Rate: RateIdentity, Source: SourceHome}
	}

	if r.Lookup != nil {
		rate, err := r.Lookup.Rate(ctx, currency, HomeCurrency)
		if err == nil && rate.IsPositive() {
			return Resolution{Currency: currency, Rate: rate, Source: SourceLive}
		}
		if err != nil {
			r.logf("[FX] live rate lookup failed for %s: %v, using fallback", currency, err)
		} else {
			r.logf("[FX] live rate lookup returned non-positive rate for %s, using fallback", currency)
		}
	}

	if rate, ok := r.Fallback[currency]; ok {
		return Resolution{Currency: currency, Rate: rate, Source: SourceFallback}
	}

	r.logf("[FX] currency %s unknown to live service and fallback table, defaulting rate to 1.0", currency)
	return Resolution{Currency: currency, Rate: RateIdentity, Source: SourceDefault}
}

// ResolveAll resolves every distinct currency in the input concurrently.
// Duplicates are deduplicated so one aggregation pass performs at most one
// lookup per currency. The returned map has an entry for every input
// currency.
func (r *Resolver) ResolveAll(ctx context.Context, currencies []Currency) map[Currency]Resolution {
	distinct := make(map[Currency]struct{}, len(currencies))
	for _, c := range currencies {
		distinct[c] = struct{}{}
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[Currency]Resolution, len(distinct))
	)
	for c := range distinct {
		wg.Add(1)
		go func(c Currency) {
			defer wg.Done()
			res := r.Resolve(ctx, c)
			mu.Lock()
			results[c] = res
			mu.Unlock()
		}(c)
	}
	wg.Wait()
	return results
}
