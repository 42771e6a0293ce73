/*
handlers.go - HTTP API handlers for the subscription tracker

PURPOSE:
  Exposes the billing engine and subscription store via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to domain
  logic.

ENDPOINTS:
  Users:
    GET    /api/users                      List users
    POST   /api/users                      Create user
    GET    /api/users/{id}                 Get user

  Subscriptions (scoped by user):
    GET    /api/users/{id}/subscriptions              List
    POST   /api/users/{id}/subscriptions              Create
    PUT    /api/users/{id}/subscriptions/{subID}      Update
    DELETE /api/users/{id}/subscriptions/{subID}      Delete
    POST   /api/users/{id}/subscriptions/{subID}/toggle  Toggle status

  Dashboard:
    GET    /api/users/{id}/dashboard       Overview + list + payment groups

  Demo:
    POST   /api/seed                       Load demo data

REQUEST FLOW:
  1. Parse HTTP request
  2. Call factory / engine / store
  3. Serialize response (display rounding happens here only)

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Unparseable input (invalid date, amount, enum values)
  - 404: Record not found or not owned by the user
  - 500: Internal errors
  Rate-resolution degradation is never an error; the degraded source is
  visible in the rate_source field and in the server log.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - scheduler.go: Background rate refresh
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warp/subtrack/billing"
	"github.com/warp/subtrack/store/sqlite"
	"github.com/warp/subtrack/subscription"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Factory *subscription.Factory

	// Now supplies "today" for next-payment derivation. Swappable for
	// deterministic handler tests.
	Now func() billing.Date
}

// NewHandler creates a new handler with the given store and factory.
func NewHandler(store *sqlite.Store, factory *subscription.Factory) *Handler {
	return &Handler{
		Store:   store,
		Factory: factory,
		Now:     billing.Today,
	}
}

func (h *Handler) today() billing.Date {
	if h.Now != nil {
		return h.Now()
	}
	return billing.Today()
}

// =============================================================================
// USER HANDLERS
// =============================================================================

// ListUsers returns all users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list users", err)
		return
	}

	dtos := make([]UserDTO, len(users))
	for i, u := range users {
		dtos[i] = toUserDTO(u)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateUser creates a user record.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Email == "" {
		writeError(w, http.StatusBadRequest, "id and email are required", nil)
		return
	}

	pref := billing.HomeCurrency
	if req.CurrencyPreference != "" {
		c, err := billing.ParseCurrency(req.CurrencyPreference)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid currency preference", err)
			return
		}
		pref = c
	}

	u := subscription.User{
		ID:                 req.ID,
		Email:              req.Email,
		FullName:           req.FullName,
		CurrencyPreference: pref,
	}
	if err := h.Store.SaveUser(r.Context(), u); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save user", err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(u))
}

// GetUser returns a single user.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.Store.GetUser(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, sqlite.ErrNotFound) {
		writeError(w, http.StatusNotFound, "User not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load user", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserDTO(u))
}

// =============================================================================
// SUBSCRIPTION HANDLERS
// =============================================================================

// ListSubscriptions returns a user's subscriptions with current
// next-payment dates.
func (h *Handler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs, err := h.Store.ListSubscriptions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list subscriptions", err)
		return
	}

	today := h.today()
	dtos := make([]SubscriptionDTO, len(subs))
	for i, s := range subs {
		dtos[i] = toSubscriptionDTO(s, today)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateSubscription builds a subscription from form input, freezing the
// exchange rate resolved at write time.
func (h *Handler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	var req SubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if _, err := h.Store.GetUser(r.Context(), userID); err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			writeError(w, http.StatusNotFound, "User not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load user", err)
		return
	}

	sub, err := h.Factory.Build(r.Context(), userID, req.FormRecord())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid subscription", err)
		return
	}

	if err := h.Store.SaveSubscription(r.Context(), sub); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save subscription", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSubscriptionDTO(sub, h.today()))
}

// UpdateSubscription re-parses the form, recomputes the next payment date
// and refreshes the frozen rate.
func (h *Handler) UpdateSubscription(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	subID := chi.URLParam(r, "subID")

	var req SubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	sub, err := h.Store.GetSubscription(r.Context(), userID, subID)
	if errors.Is(err, sqlite.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Subscription not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load subscription", err)
		return
	}

	if err := h.Factory.Apply(r.Context(), sub, req.FormRecord()); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid subscription", err)
		return
	}

	if err := h.Store.SaveSubscription(r.Context(), sub); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save subscription", err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionDTO(sub, h.today()))
}

// ToggleSubscription flips a subscription between active and paused.
func (h *Handler) ToggleSubscription(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	subID := chi.URLParam(r, "subID")

	sub, err := h.Store.GetSubscription(r.Context(), userID, subID)
	if errors.Is(err, sqlite.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Subscription not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load subscription", err)
		return
	}

	sub.Status = sub.Status.Toggle()
	if err := h.Store.UpdateStatus(r.Context(), userID, subID, sub.Status); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update status", err)
		return
	}
	writeJSON(w, http.StatusOK, toSubscriptionDTO(sub, h.today()))
}

// DeleteSubscription removes a subscription (hard delete).
func (h *Handler) DeleteSubscription(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	subID := chi.URLParam(r, "subID")

	err := h.Store.DeleteSubscription(r.Context(), userID, subID)
	if errors.Is(err, sqlite.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Subscription not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete subscription", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": subID})
}

// =============================================================================
// DASHBOARD
// =============================================================================

// GetDashboard returns the overview figures, the subscription list, and
// the per-payment-date grouping for a user.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	subs, err := h.Store.ListSubscriptions(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list subscriptions", err)
		return
	}

	today := h.today()
	overview := subscription.ComputeOverview(subs, today)
	groups := subscription.GroupByNextPayment(subs, today)

	resp := DashboardDTO{
		Overview: OverviewDTO{
			MonthlyTotal: billing.DisplayRound(overview.MonthlyTotal).String(),
			ActiveCount:  overview.ActiveCount,
		},
		Subscriptions: make([]SubscriptionDTO, len(subs)),
		PaymentGroups: make([]PaymentGroupDTO, len(groups)),
	}
	if overview.NextPayment != nil {
		resp.Overview.NextPayment = &UpcomingPaymentDTO{
			SubscriptionID: overview.NextPayment.SubscriptionID,
			Name:           overview.NextPayment.Name,
			Amount:         overview.NextPayment.Charge.Amount.String(),
			Currency:       string(overview.NextPayment.Charge.Currency),
			Symbol:         overview.NextPayment.Charge.Currency.Symbol(),
			Date:           overview.NextPayment.Date.String(),
		}
	}
	for i, s := range subs {
		resp.Subscriptions[i] = toSubscriptionDTO(s, today)
	}
	for i, g := range groups {
		dto := PaymentGroupDTO{
			Date:          g.Date.String(),
			TotalHome:     billing.DisplayRound(g.TotalHome).String(),
			Subscriptions: make([]SubscriptionDTO, len(g.Subscriptions)),
		}
		for j, s := range g.Subscriptions {
			dto.Subscriptions[j] = toSubscriptionDTO(s, today)
		}
		resp.PaymentGroups[i] = dto
	}

	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
