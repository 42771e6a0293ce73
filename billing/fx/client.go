/*
Package fx provides the live exchange-rate lookup collaborator.

PURPOSE:
  HTTP client for an open.er-api.com style endpoint:

    GET {base}/v6/latest/{FROM}
    -> {"result": "success", "rates": {"CNY": 7.19, "EUR": 0.92, ...}}

  One fetch returns the full rate sheet for a base currency, so responses
  are cached per base currency for a bounded interval (default one hour).
  The resolver treats any error from this client as "unavailable" and
  falls back to its static table; there is no retry loop here, a single
  failure or timeout surfaces immediately so the caller's latency stays
  bounded.

CACHING:
  In-process TTL cache guarded by a mutex. Concurrent dashboard renders
  for the same currency may race to fetch on a cold cache; the last
  writer wins, which is harmless for rates. Caching policy belongs to
  this collaborator, not to the resolver.

SEE ALSO:
  - billing/rates.go: Resolution policy consuming this client
*/
package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/subtrack/billing"
)

// DefaultBaseURL is the public endpoint the original deployment used.
const DefaultBaseURL = "https://open.er-api.com"

// DefaultTTL bounds how long a fetched rate sheet is reused.
const DefaultTTL = time.Hour

// Client fetches live rates over HTTP with per-base-currency caching.
// Implements billing.Lookup.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	TTL        time.Duration

	// now is swappable for cache-expiry tests.
	now func() time.Time

	mu    sync.Mutex
	cache map[billing.Currency]cacheEntry
}

type cacheEntry struct {
	rates     map[string]decimal.Decimal
	fetchedAt time.Time
}

// Compile-time check that Client implements billing.Lookup.
var _ billing.Lookup = (*Client)(nil)

// New creates a client for the given base URL. A zero-value timeout on
// the embedded HTTP client would block a cold resolve for the platform
// default, so a short bound is set here; the fallback path should be
// reached promptly when the service is down.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 5 * time.Second},
		TTL:        DefaultTTL,
		now:        time.Now,
		cache:      make(map[billing.Currency]cacheEntry),
	}
}

type ratesResponse struct {
	Result string                 `json:"result"`
	Rates  map[string]json.Number `json:"rates"`
}

// Rate returns the live rate "units of to per 1 unit of from", fetching
// the rate sheet for from if the cached copy is missing or stale. All
// failures are wrapped in billing.ErrRateUnavailable.
func (c *Client) Rate(ctx context.Context, from, to billing.Currency) (decimal.Decimal, error) {
	rates, err := c.sheet(ctx, from)
	if err != nil {
		return decimal.Zero, err
	}
	rate, ok := rates[string(to)]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: no %s rate in %s sheet", billing.ErrRateUnavailable, to, from)
	}
	return rate, nil
}

func (c *Client) sheet(ctx context.Context, from billing.Currency) (map[string]decimal.Decimal, error) {
	c.mu.Lock()
	entry, ok := c.cache[from]
	c.mu.Unlock()
	if ok && c.timeNow().Sub(entry.fetchedAt) < c.ttl() {
		return entry.rates, nil
	}

	rates, err := c.fetch(ctx, from)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.cache == nil {
		c.cache = make(map[billing.Currency]cacheEntry)
	}
	c.cache[from] = cacheEntry{rates: rates, fetchedAt: c.timeNow()}
	c.mu.Unlock()
	return rates, nil
}

func (c *Client) fetch(ctx context.Context, from billing.Currency) (map[string]decimal.Decimal, error) {
	url := fmt.Sprintf("%s/v6/latest/%s", c.BaseURL, from)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", billing.ErrRateUnavailable, err)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", billing.ErrRateUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d from %s", billing.ErrRateUnavailable, resp.StatusCode, url)
	}

	var body ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", billing.ErrRateUnavailable, err)
	}
	if len(body.Rates) == 0 {
		return nil, fmt.Errorf("%w: empty rate sheet for %s", billing.ErrRateUnavailable, from)
	}

	// json.Number preserves the exact decimal text from the wire.
	rates := make(map[string]decimal.Decimal, len(body.Rates))
	for code, num := range body.Rates {
		d, err := decimal.NewFromString(num.String())
		if err != nil {
			continue
		}
		rates[code] = d
	}
	if len(rates) == 0 {
		return nil, fmt.Errorf("%w: no parseable rates for %s", billing.ErrRateUnavailable, from)
	}
	return rates, nil
}

func (c *Client) timeNow() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

func (c *Client) ttl() time.Duration {
	if c.TTL > 0 {
		return c.TTL
	}
	return DefaultTTL
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}
