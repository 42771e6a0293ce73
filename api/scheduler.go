/*
scheduler.go - Background exchange-rate refresh

PURPOSE:
  Periodically re-resolves exchange rates for the distinct currencies of
  all active subscriptions and refreshes the frozen snapshots. Without
  this, a rate captured at creation time stays frozen until the user
  edits the subscription.

DESIGN:
  - Runs a background goroutine with a configurable check interval
    (default 1 hour, matching the collaborator's cache TTL).
  - One lookup per distinct currency per pass (deduplicated by the
    resolver), regardless of how many subscriptions share it.
  - Only live resolutions overwrite stored snapshots. A fallback or
    default resolution means the service is degraded; clobbering a
    previously live rate with an approximate one would lose information.
  - Failures are logged, never fatal: the stored snapshot simply stays.

USAGE:
  scheduler := NewRateRefreshScheduler(store, resolver)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - billing/rates.go: Resolution policy
  - store/sqlite: UpdateExchangeRate
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/subtrack/billing"
	"github.com/warp/subtrack/store/sqlite"
)

// RateRefreshScheduler refreshes frozen rate snapshots in the background.
type RateRefreshScheduler struct {
	Store         *sqlite.Store
	Resolver      *billing.Resolver
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRateRefreshScheduler creates a new scheduler.
func NewRateRefreshScheduler(store *sqlite.Store, resolver *billing.Resolver) *RateRefreshScheduler {
	return &RateRefreshScheduler{
		Store:         store,
		Resolver:      resolver,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (rs *RateRefreshScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)

	go rs.run()

	log.Printf("[Scheduler] Started with check interval: %v", rs.CheckInterval)
}

// Stop stops the scheduler.
func (rs *RateRefreshScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (rs *RateRefreshScheduler) run() {
	defer rs.wg.Done()

	// Run immediately on start
	rs.RefreshOnce(context.Background())

	for {
		select {
		case <-rs.ticker.C:
			rs.RefreshOnce(context.Background())
		case <-rs.stop:
			return
		}
	}
}

// RefreshOnce performs a single refresh pass. Exported so tests and the
// startup path can drive it directly.
func (rs *RateRefreshScheduler) RefreshOnce(ctx context.Context) {
	subs, err := rs.Store.ListActiveSubscriptions(ctx)
	if err != nil {
		log.Printf("[Scheduler] Failed to list active subscriptions: %v", err)
		return
	}
	if len(subs) == 0 {
		return
	}

	currencies := make([]billing.Currency, 0, len(subs))
	for _, s := range subs {
		currencies = append(currencies, s.Currency)
	}
	resolutions := rs.Resolver.ResolveAll(ctx, currencies)

	updated, skipped := 0, 0
	for _, s := range subs {
		res, ok := resolutions[s.Currency]
		if !ok {
			continue
		}
		if res.Source != billing.SourceLive && res.Source != billing.SourceHome {
			// Degraded resolution; keep the stored snapshot.
			skipped++
			continue
		}
		if res.Rate.Equal(s.ExchangeRate) {
			continue
		}
		if err := rs.Store.UpdateExchangeRate(ctx, s.ID, res.Rate, res.Source); err != nil {
			log.Printf("[Scheduler] Failed to refresh rate for %s: %v", s.ID, err)
			continue
		}
		updated++
	}

	if updated > 0 || skipped > 0 {
		log.Printf("[Scheduler] Rate refresh pass: %d updated, %d kept (degraded resolution)", updated, skipped)
	}
}
