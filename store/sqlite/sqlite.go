/*
Package sqlite provides SQLite-backed persistence for users and
subscriptions.

PURPOSE:
  Stores subscription records with their frozen exchange-rate snapshots.
  In production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

KEY TABLES:
  users:          Owner records with display currency preference
  subscriptions:  One row per recurring payment; exchange_rate holds the
                  snapshot captured at write time (decimal string),
                  rate_source records how it was resolved

COLUMN ENCODING:
  Dates are ISO YYYY-MM-DD text (date-only semantics, UTC). Monetary
  amounts and rates are decimal strings, never floats, so nothing is lost
  between the engine's decimal arithmetic and storage.

OWNERSHIP:
  Every subscription query is scoped by user_id. Deleting a user cascades
  to their subscriptions.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block, a single writer at a time.

USAGE:
  store, err := sqlite.New("./data/subtrack.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - subscription/types.go: The records persisted here
  - api/handlers.go: The primary caller
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/subtrack/billing"
	"github.com/warp/subtrack/subscription"
)

// ErrNotFound is returned when a record does not exist or is not owned by
// the requesting user.
var ErrNotFound = errors.New("record not found")

// Store implements persistence using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id                  TEXT PRIMARY KEY,
		email               TEXT NOT NULL UNIQUE,
		full_name           TEXT NOT NULL DEFAULT '',
		currency_preference TEXT NOT NULL DEFAULT 'CNY',
		created_at          TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS subscriptions (
		id                TEXT PRIMARY KEY,
		user_id           TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name              TEXT NOT NULL,
		amount            TEXT NOT NULL,
		currency          TEXT NOT NULL,
		exchange_rate     TEXT NOT NULL DEFAULT '1',
		rate_source       TEXT NOT NULL DEFAULT 'default',
		billing_cycle     TEXT NOT NULL,
		start_date        TEXT NOT NULL,
		next_payment_date TEXT NOT NULL,
		category          TEXT NOT NULL,
		status            TEXT NOT NULL DEFAULT 'active',
		created_at        TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_subscriptions_user ON subscriptions(user_id);
	CREATE INDEX IF NOT EXISTS idx_subscriptions_status ON subscriptions(status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// USERS
// =============================================================================

// SaveUser inserts or updates a user record.
func (s *Store) SaveUser(ctx context.Context, u subscription.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, full_name, currency_preference)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			full_name = excluded.full_name,
			currency_preference = excluded.currency_preference`,
		u.ID, u.Email, u.FullName, string(u.CurrencyPreference))
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// GetUser loads a user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (subscription.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var u subscription.User
	var pref string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, full_name, currency_preference, created_at
		FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.Email, &u.FullName, &pref, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	if err != nil {
		return u, fmt.Errorf("failed to load user: %w", err)
	}
	u.CurrencyPreference = billing.Currency(pref)
	return u, nil
}

// ListUsers returns all users.
func (s *Store) ListUsers(ctx context.Context) ([]subscription.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, email, full_name, currency_preference, created_at
		FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []subscription.User
	for rows.Next() {
		var u subscription.User
		var pref string
		if err := rows.Scan(&u.ID, &u.Email, &u.FullName, &pref, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.CurrencyPreference = billing.Currency(pref)
		users = append(users, u)
	}
	return users, rows.Err()
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

const subscriptionColumns = `
	id, user_id, name, amount, currency, exchange_rate, rate_source,
	billing_cycle, start_date, next_payment_date, category, status, created_at`

// SaveSubscription inserts a new subscription or fully replaces an
// existing one by ID.
func (s *Store) SaveSubscription(ctx context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (
			id, user_id, name, amount, currency, exchange_rate, rate_source,
			billing_cycle, start_date, next_payment_date, category, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			amount = excluded.amount,
			currency = excluded.currency,
			exchange_rate = excluded.exchange_rate,
			rate_source = excluded.rate_source,
			billing_cycle = excluded.billing_cycle,
			start_date = excluded.start_date,
			next_payment_date = excluded.next_payment_date,
			category = excluded.category,
			status = excluded.status`,
		sub.ID, sub.UserID, sub.Name,
		sub.Amount.String(), string(sub.Currency),
		sub.ExchangeRate.String(), string(sub.RateSource),
		string(sub.Cycle), sub.StartDate.String(), sub.NextPaymentDate.String(),
		string(sub.Category), string(sub.Status))
	if err != nil {
		return fmt.Errorf("failed to save subscription: %w", err)
	}
	return nil
}

// GetSubscription loads one subscription owned by the given user.
func (s *Store) GetSubscription(ctx context.Context, userID, id string) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions WHERE id = ? AND user_id = ?`, id, userID)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sub, err
}

// ListSubscriptions returns all subscriptions for a user, newest first.
func (s *Store) ListSubscriptions(ctx context.Context, userID string) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions WHERE user_id = ?
		ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

// ListActiveSubscriptions returns every active subscription across users.
// Used by the rate refresh scheduler.
func (s *Store) ListActiveSubscriptions(ctx context.Context) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions WHERE status = ?
		ORDER BY user_id, id`, string(subscription.StatusActive))
	if err != nil {
		return nil, fmt.Errorf("failed to list active subscriptions: %w", err)
	}
	defer rows.Close()
	return scanSubscriptions(rows)
}

// UpdateStatus sets the status of a user's subscription.
func (s *Store) UpdateStatus(ctx context.Context, userID, id string, status subscription.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions SET status = ? WHERE id = ? AND user_id = ?`,
		string(status), id, userID)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	return requireRow(res)
}

// UpdateExchangeRate refreshes the frozen rate snapshot on a subscription.
// Called by the background refresh pass, which operates across all users,
// so this is not scoped by user_id.
func (s *Store) UpdateExchangeRate(ctx context.Context, id string, rate decimal.Decimal, source billing.RateSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE subscriptions SET exchange_rate = ?, rate_source = ? WHERE id = ?`,
		rate.String(), string(source), id)
	if err != nil {
		return fmt.Errorf("failed to update exchange rate: %w", err)
	}
	return requireRow(res)
}

// DeleteSubscription removes a user's subscription (hard delete).
func (s *Store) DeleteSubscription(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM subscriptions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// =============================================================================
// ROW MAPPING
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (*subscription.Subscription, error) {
	var (
		sub                subscription.Subscription
		amount, rate       string
		currency, source   string
		cycle, start, next string
		category, status   string
		createdAt          time.Time
	)
	err := row.Scan(&sub.ID, &sub.UserID, &sub.Name, &amount, &currency,
		&rate, &source, &cycle, &start, &next, &category, &status, &createdAt)
	if err != nil {
		return nil, err
	}

	if sub.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("corrupt amount %q: %w", amount, err)
	}
	if sub.ExchangeRate, err = decimal.NewFromString(rate); err != nil {
		return nil, fmt.Errorf("corrupt exchange rate %q: %w", rate, err)
	}
	if sub.StartDate, err = billing.ParseDate(start); err != nil {
		return nil, fmt.Errorf("corrupt start date %q: %w", start, err)
	}
	if sub.NextPaymentDate, err = billing.ParseDate(next); err != nil {
		return nil, fmt.Errorf("corrupt next payment date %q: %w", next, err)
	}

	sub.Currency = billing.Currency(currency)
	sub.RateSource = billing.RateSource(source)
	sub.Cycle = billing.Cycle(cycle)
	sub.Category = subscription.Category(category)
	sub.Status = subscription.Status(status)
	sub.CreatedAt = createdAt
	return &sub, nil
}

func scanSubscriptions(rows *sql.Rows) ([]*subscription.Subscription, error) {
	var subs []*subscription.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
